package cache

import (
	"context"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// MembershipCache caches workspace membership checks. Chunk ingestion
// authorizes the caller against the workspace on every single chunk, so the
// answer is kept in Redis for a short TTL instead of hitting MySQL each time.
type MembershipCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewMembershipCache(client *redisv9.Client, ttl time.Duration) *MembershipCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MembershipCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns (isMember, hit, err). A miss is not an error.
func (c *MembershipCache) Get(ctx context.Context, workspaceID, userID uint) (bool, bool, error) {
	raw, err := c.client.Get(ctx, c.key(workspaceID, userID)).Result()
	if err == redisv9.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("redis get membership failed: %w", err)
	}
	return raw == "1", true, nil
}

func (c *MembershipCache) Set(ctx context.Context, workspaceID, userID uint, isMember bool) error {
	value := "0"
	if isMember {
		value = "1"
	}
	if err := c.client.Set(ctx, c.key(workspaceID, userID), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set membership failed: %w", err)
	}
	return nil
}

func (c *MembershipCache) Invalidate(ctx context.Context, workspaceID, userID uint) error {
	if err := c.client.Del(ctx, c.key(workspaceID, userID)).Err(); err != nil {
		return fmt.Errorf("redis delete membership failed: %w", err)
	}
	return nil
}

func (c *MembershipCache) key(workspaceID, userID uint) string {
	return fmt.Sprintf("ws:member:%d:%d", workspaceID, userID)
}
