package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"teamspace/internal/model"
	"teamspace/internal/realtime"
)

var (
	ErrEventTypeRequired = errors.New("event type is required")
	ErrEventEnqueue      = errors.New("event audit enqueue failed")
)

// AuditPublisher appends an EventRecord to the durable audit queue.
type AuditPublisher interface {
	Publish(ctx context.Context, record model.EventRecord) error
}

// MemberLister resolves the recipients of a workspace-scoped event.
type MemberLister interface {
	ListMemberIDs(workspaceID uint) ([]uint, error)
	IsMember(ctx context.Context, workspaceID, userID uint) (bool, error)
}

// EventRecords reads back the audit log.
type EventRecords interface {
	ListByWorkspaceID(workspaceID uint, limit int) ([]model.EventRecord, error)
}

// RealtimeService is the event publish pipeline: validate, persist for audit
// (mandatory, via the queue), then best-effort fan-out to currently open
// streams. Delivery failures never fail the publish call and never roll back
// the audit write.
type RealtimeService struct {
	registry *realtime.Registry
	audit    AuditPublisher
	members  MemberLister
	records  EventRecords
}

type PublishEventInput struct {
	Type         string
	Data         any
	TargetUserID *uint
	WorkspaceID  *uint
}

func NewRealtimeService(registry *realtime.Registry, audit AuditPublisher, members MemberLister, records EventRecords) *RealtimeService {
	return &RealtimeService{
		registry: registry,
		audit:    audit,
		members:  members,
		records:  records,
	}
}

// Publish accepts an event and returns its generated id. The audit record is
// always enqueued; whether anyone was listening does not change the outcome.
func (s *RealtimeService) Publish(ctx context.Context, input PublishEventInput) (string, error) {
	eventType := strings.TrimSpace(input.Type)
	if eventType == "" {
		return "", ErrEventTypeRequired
	}

	payload, err := json.Marshal(input.Data)
	if err != nil {
		return "", ErrInvalidInput
	}

	eventID := uuid.NewString()
	record := model.EventRecord{
		EventID:      eventID,
		Type:         eventType,
		Payload:      string(payload),
		TargetUserID: input.TargetUserID,
		WorkspaceID:  input.WorkspaceID,
	}

	if s.audit == nil {
		return "", ErrEventEnqueue
	}
	if err := s.audit.Publish(ctx, record); err != nil {
		log.Printf("enqueue event audit failed: %v", err)
		return "", ErrEventEnqueue
	}

	s.deliver(eventType, input)
	return eventID, nil
}

func (s *RealtimeService) Registry() *realtime.Registry {
	return s.registry
}

// History returns the most recent audit records for a workspace the caller
// belongs to.
func (s *RealtimeService) History(ctx context.Context, userID, workspaceID uint, limit int) ([]model.EventRecord, error) {
	if userID == 0 || workspaceID == 0 {
		return nil, ErrInvalidInput
	}
	if limit <= 0 {
		limit = 50
	}

	isMember, err := s.members.IsMember(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotWorkspaceMember
	}
	return s.records.ListByWorkspaceID(workspaceID, limit)
}

func (s *RealtimeService) deliver(eventType string, input PublishEventInput) {
	event := realtime.Event{Type: eventType, Data: input.Data}

	if input.TargetUserID != nil {
		s.registry.Send(*input.TargetUserID, event)
		return
	}

	if input.WorkspaceID != nil {
		memberIDs, err := s.members.ListMemberIDs(*input.WorkspaceID)
		if err != nil {
			log.Printf("resolve event recipients for workspace %d failed: %v", *input.WorkspaceID, err)
			return
		}
		for _, userID := range memberIDs {
			s.registry.Send(userID, event)
		}
	}
}
