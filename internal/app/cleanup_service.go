package app

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"teamspace/internal/blobstore"
	"teamspace/internal/upload"
)

// SweepResult reports one sweep pass over the temporary upload namespace.
type SweepResult struct {
	Cleaned int `json:"cleaned"`
	Errors  int `json:"errors"`
}

// CleanupService deletes abandoned temporary chunks. Expired sessions are
// pruned first and chunks of sessions still in the tracker are never touched,
// so the sweep cannot delete bytes of an in-flight upload even when its
// earliest chunks predate the retention cutoff.
type CleanupService struct {
	blobs      *blobstore.Store
	tracker    *upload.Tracker
	tempPrefix string
	retention  time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCleanupService(blobs *blobstore.Store, tracker *upload.Tracker, tempPrefix string, retention time.Duration) *CleanupService {
	if !strings.HasSuffix(tempPrefix, "/") {
		tempPrefix += "/"
	}
	return &CleanupService{
		blobs:      blobs,
		tracker:    tracker,
		tempPrefix: tempPrefix,
		retention:  retention,
	}
}

// Sweep walks the temporary namespace once. A failure on one key is counted
// and logged but never aborts the rest of the sweep.
func (s *CleanupService) Sweep(ctx context.Context) SweepResult {
	var result SweepResult

	// Prune before listing so chunks of just-expired sessions become
	// sweepable in the same pass.
	if s.tracker != nil {
		if pruned := s.tracker.PruneExpired(s.retention); pruned > 0 {
			log.Printf("cleanup: pruned %d expired upload sessions", pruned)
		}
	}

	keys, err := s.blobs.List(ctx, s.tempPrefix)
	if err != nil {
		log.Printf("cleanup: list temp uploads failed: %v", err)
		result.Errors++
		return result
	}

	cutoff := time.Now().Add(-s.retention)
	for _, key := range keys {
		// A live session protects all of its chunks: an upload resumed
		// near the retention boundary may hold blobs older than the
		// cutoff while still accepting chunks.
		if s.sessionAlive(key) {
			continue
		}
		meta, err := s.blobs.Metadata(ctx, key)
		if err != nil {
			log.Printf("cleanup: read metadata for %s failed: %v", key, err)
			result.Errors++
			continue
		}
		if meta.ModTime.After(cutoff) {
			continue
		}
		if err := s.blobs.Delete(ctx, key); err != nil {
			log.Printf("cleanup: delete %s failed: %v", key, err)
			result.Errors++
			continue
		}
		result.Cleaned++
	}

	return result
}

// sessionAlive reports whether the upload id segment of a temp chunk key
// (tempPrefix/{uploadId}/{index}) still has a tracked session.
func (s *CleanupService) sessionAlive(key string) bool {
	if s.tracker == nil {
		return false
	}
	rest := strings.TrimPrefix(key, s.tempPrefix)
	uploadID, _, found := strings.Cut(rest, "/")
	if !found || uploadID == "" {
		return false
	}
	_, err := s.tracker.Get(uploadID)
	return err == nil
}

// Start runs Sweep on a fixed interval until Close is called.
func (s *CleanupService) Start(ctx context.Context, interval time.Duration) {
	if s.cancel != nil {
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				result := s.Sweep(sweepCtx)
				if result.Cleaned > 0 || result.Errors > 0 {
					log.Printf("cleanup sweep: cleaned=%d errors=%d", result.Cleaned, result.Errors)
				}
			}
		}
	}()
}

func (s *CleanupService) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
