package app

import (
	"context"
	"errors"
	"log"
	"strings"

	"teamspace/internal/cache"
	"teamspace/internal/model"
	"teamspace/internal/repository"
)

var (
	ErrWorkspaceNotFound  = errors.New("workspace not found")
	ErrNotWorkspaceMember = errors.New("caller is not a member of this workspace")
	ErrAlreadyMember      = errors.New("user is already a member of this workspace")
)

type WorkspaceService struct {
	workspaceRepo   *repository.WorkspaceRepository
	userRepo        *repository.UserRepository
	membershipCache *cache.MembershipCache
}

type CreateWorkspaceInput struct {
	OwnerID uint
	Name    string
}

func NewWorkspaceService(
	workspaceRepo *repository.WorkspaceRepository,
	userRepo *repository.UserRepository,
	membershipCache *cache.MembershipCache,
) *WorkspaceService {
	return &WorkspaceService{
		workspaceRepo:   workspaceRepo,
		userRepo:        userRepo,
		membershipCache: membershipCache,
	}
}

func (s *WorkspaceService) Create(input CreateWorkspaceInput) (*model.Workspace, error) {
	if input.OwnerID == 0 {
		return nil, ErrInvalidInput
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrInvalidInput
	}

	workspace := &model.Workspace{
		Name:    name,
		OwnerID: input.OwnerID,
	}
	if err := s.workspaceRepo.Create(workspace); err != nil {
		return nil, err
	}
	return workspace, nil
}

func (s *WorkspaceService) ListMine(userID uint) ([]model.Workspace, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.workspaceRepo.ListByUserID(userID)
}

func (s *WorkspaceService) AddMember(ctx context.Context, callerID, workspaceID, userID uint) (*model.WorkspaceMember, error) {
	if callerID == 0 || workspaceID == 0 || userID == 0 {
		return nil, ErrInvalidInput
	}

	isMember, err := s.IsMember(ctx, workspaceID, callerID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotWorkspaceMember
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidInput
	}

	exists, err := s.workspaceRepo.IsMember(workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyMember
	}

	member := &model.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        model.RoleMember,
	}
	if err := s.workspaceRepo.AddMember(member); err != nil {
		return nil, err
	}

	if s.membershipCache != nil {
		if err := s.membershipCache.Invalidate(ctx, workspaceID, userID); err != nil {
			log.Printf("invalidate membership cache failed: %v", err)
		}
	}
	return member, nil
}

func (s *WorkspaceService) ListMembers(ctx context.Context, callerID, workspaceID uint) ([]model.WorkspaceMember, error) {
	if callerID == 0 || workspaceID == 0 {
		return nil, ErrInvalidInput
	}

	isMember, err := s.IsMember(ctx, workspaceID, callerID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotWorkspaceMember
	}
	return s.workspaceRepo.ListMembers(workspaceID)
}

// IsMember answers the workspace membership check, consulting the Redis cache
// first. Cache failures fall through to MySQL; a wrong answer is worse than a
// slow one.
func (s *WorkspaceService) IsMember(ctx context.Context, workspaceID, userID uint) (bool, error) {
	if s.membershipCache != nil {
		if isMember, hit, err := s.membershipCache.Get(ctx, workspaceID, userID); err == nil && hit {
			return isMember, nil
		}
	}

	isMember, err := s.workspaceRepo.IsMember(workspaceID, userID)
	if err != nil {
		return false, err
	}

	if s.membershipCache != nil {
		if err := s.membershipCache.Set(ctx, workspaceID, userID, isMember); err != nil {
			log.Printf("set membership cache failed: %v", err)
		}
	}
	return isMember, nil
}

func (s *WorkspaceService) ListMemberIDs(workspaceID uint) ([]uint, error) {
	return s.workspaceRepo.ListMemberIDs(workspaceID)
}
