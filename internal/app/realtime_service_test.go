package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamspace/internal/model"
	"teamspace/internal/realtime"
)

type fakeAudit struct {
	records []model.EventRecord
	failure error
}

func (f *fakeAudit) Publish(_ context.Context, record model.EventRecord) error {
	if f.failure != nil {
		return f.failure
	}
	f.records = append(f.records, record)
	return nil
}

type fakeMemberLister struct {
	ids []uint
}

func (f *fakeMemberLister) ListMemberIDs(uint) ([]uint, error) {
	return f.ids, nil
}

func (f *fakeMemberLister) IsMember(_ context.Context, _ uint, userID uint) (bool, error) {
	for _, id := range f.ids {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

type fakeEventRecords struct {
	records []model.EventRecord
}

func (f *fakeEventRecords) ListByWorkspaceID(uint, int) ([]model.EventRecord, error) {
	return f.records, nil
}

func uintPtr(v uint) *uint { return &v }

func TestPublishAuditsAndDeliversToTarget(t *testing.T) {
	registry := realtime.NewRegistry(4)
	audit := &fakeAudit{}
	svc := NewRealtimeService(registry, audit, &fakeMemberLister{}, &fakeEventRecords{})

	conn := registry.Register(7)
	defer registry.Unregister(7, conn)

	eventID, err := svc.Publish(context.Background(), PublishEventInput{
		Type:         "task_assigned",
		Data:         map[string]any{"task_id": 42},
		TargetUserID: uintPtr(7),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, eventID)

	require.Len(t, audit.records, 1)
	assert.Equal(t, eventID, audit.records[0].EventID)
	assert.Equal(t, "task_assigned", audit.records[0].Type)

	select {
	case event := <-conn.Events():
		assert.Equal(t, "task_assigned", event.Type)
	default:
		t.Fatal("expected event delivered to target connection")
	}
}

func TestPublishFansOutToWorkspaceMembers(t *testing.T) {
	registry := realtime.NewRegistry(4)
	svc := NewRealtimeService(registry, &fakeAudit{}, &fakeMemberLister{ids: []uint{1, 2, 3}}, &fakeEventRecords{})

	conn1 := registry.Register(1)
	defer registry.Unregister(1, conn1)
	conn3 := registry.Register(3)
	defer registry.Unregister(3, conn3)

	_, err := svc.Publish(context.Background(), PublishEventInput{
		Type:        "comment_added",
		Data:        map[string]any{"comment_id": 5},
		WorkspaceID: uintPtr(1),
	})
	require.NoError(t, err)

	for _, conn := range []*realtime.Connection{conn1, conn3} {
		select {
		case event := <-conn.Events():
			assert.Equal(t, "comment_added", event.Type)
		default:
			t.Fatal("expected event delivered to workspace member")
		}
	}
}

func TestPublishRequiresType(t *testing.T) {
	svc := NewRealtimeService(realtime.NewRegistry(4), &fakeAudit{}, &fakeMemberLister{}, &fakeEventRecords{})

	_, err := svc.Publish(context.Background(), PublishEventInput{Type: "   "})
	assert.ErrorIs(t, err, ErrEventTypeRequired)
}

func TestPublishFailsWhenAuditFails(t *testing.T) {
	registry := realtime.NewRegistry(4)
	audit := &fakeAudit{failure: errors.New("broker down")}
	svc := NewRealtimeService(registry, audit, &fakeMemberLister{}, &fakeEventRecords{})

	conn := registry.Register(7)
	defer registry.Unregister(7, conn)

	_, err := svc.Publish(context.Background(), PublishEventInput{
		Type:         "task_assigned",
		TargetUserID: uintPtr(7),
	})
	assert.ErrorIs(t, err, ErrEventEnqueue)

	// No delivery without the audit record.
	select {
	case <-conn.Events():
		t.Fatal("event must not be delivered when the audit enqueue fails")
	default:
	}
}

func TestHistoryRequiresMembership(t *testing.T) {
	records := &fakeEventRecords{records: []model.EventRecord{{EventID: "e1", Type: "task_assigned"}}}
	svc := NewRealtimeService(realtime.NewRegistry(4), &fakeAudit{}, &fakeMemberLister{ids: []uint{7}}, records)

	got, err := svc.History(context.Background(), 7, 1, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].EventID)

	_, err = svc.History(context.Background(), 99, 1, 10)
	assert.ErrorIs(t, err, ErrNotWorkspaceMember)
}

func TestPublishSucceedsWithNoOpenConnections(t *testing.T) {
	svc := NewRealtimeService(realtime.NewRegistry(4), &fakeAudit{}, &fakeMemberLister{ids: []uint{9}}, &fakeEventRecords{})

	eventID, err := svc.Publish(context.Background(), PublishEventInput{
		Type:        "file_uploaded",
		WorkspaceID: uintPtr(1),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, eventID)
}
