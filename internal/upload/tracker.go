// Package upload tracks in-flight chunked upload sessions. State is
// process-local and not persisted: a restart loses every in-flight session and
// clients must restart their uploads. Externalize the Tracker behind a shared
// store before running more than one instance.
package upload

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrSessionNotFound means the upload id is unknown here, either because
	// the session expired or because the first chunk never arrived. The
	// client must restart the upload from chunk zero.
	ErrSessionNotFound = errors.New("upload session not found, restart upload")

	ErrChunkIndexOutOfRange = errors.New("chunk index out of declared range")
)

// Session is the accumulation state of one chunked upload. All mutation goes
// through methods holding the session mutex; concurrent chunks for the same
// upload id are safe.
type Session struct {
	ID          string
	UserID      uint
	WorkspaceID uint
	FileName    string
	MimeType    string
	TotalChunks int

	mu           sync.Mutex
	received     map[int]struct{}
	createdAt    time.Time
	lastActivity time.Time
}

// Snapshot is a consistent read of a session's progress.
type Snapshot struct {
	ID           string
	FileName     string
	TotalChunks  int
	Received     int
	Missing      []int
	CreatedAt    time.Time
	LastActivity time.Time
}

// RecordChunk marks index as received and returns the distinct received
// count. Duplicate indices are no-ops on the tracking set.
func (s *Session) RecordChunk(index int) (int, error) {
	if index < 0 || index >= s.TotalChunks {
		return 0, ErrChunkIndexOutOfRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.received[index] = struct{}{}
	s.lastActivity = time.Now()
	return len(s.received), nil
}

func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received) == s.TotalChunks
}

// MissingIndices returns the sorted set {0..TotalChunks-1} \ received.
func (s *Session) MissingIndices() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.missingLocked()
}

func (s *Session) missingLocked() []int {
	missing := make([]int, 0, s.TotalChunks-len(s.received))
	for i := 0; i < s.TotalChunks; i++ {
		if _, ok := s.received[i]; !ok {
			missing = append(missing, i)
		}
	}
	sort.Ints(missing)
	return missing
}

func (s *Session) ReceivedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:           s.ID,
		FileName:     s.FileName,
		TotalChunks:  s.TotalChunks,
		Received:     len(s.received),
		Missing:      s.missingLocked(),
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
	}
}

func (s *Session) lastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Tracker is the process-wide registry of upload sessions.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]*Session)}
}

// StartParams describes the first chunk of a new upload.
type StartParams struct {
	UserID      uint
	WorkspaceID uint
	FileName    string
	MimeType    string
	TotalChunks int
}

// StartOrGet returns the session for uploadID, creating it when this is the
// very first chunk. Creation is gated on chunkIndex == 0: a non-zero first
// chunk for an unknown id means the session expired or was never started, and
// the caller gets ErrSessionNotFound instead of a half-initialized session.
// The second return reports whether the session was created by this call.
func (t *Tracker) StartOrGet(uploadID string, chunkIndex int, params StartParams) (*Session, bool, error) {
	t.mu.RLock()
	session, ok := t.sessions[uploadID]
	t.mu.RUnlock()
	if ok {
		return session, false, nil
	}

	if chunkIndex != 0 {
		return nil, false, ErrSessionNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if session, ok := t.sessions[uploadID]; ok {
		return session, false, nil
	}

	now := time.Now()
	session = &Session{
		ID:           uploadID,
		UserID:       params.UserID,
		WorkspaceID:  params.WorkspaceID,
		FileName:     params.FileName,
		MimeType:     params.MimeType,
		TotalChunks:  params.TotalChunks,
		received:     make(map[int]struct{}),
		createdAt:    now,
		lastActivity: now,
	}
	t.sessions[uploadID] = session
	return session, true, nil
}

func (t *Tracker) Get(uploadID string) (*Session, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	session, ok := t.sessions[uploadID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (t *Tracker) Remove(uploadID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, uploadID)
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// PruneExpired drops sessions idle for longer than maxAge and returns how
// many were removed. The cleanup sweeper deletes their temporary blobs on
// the same schedule.
func (t *Tracker) PruneExpired(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	t.mu.Lock()
	defer t.mu.Unlock()
	pruned := 0
	for id, session := range t.sessions {
		if session.lastActive().Before(cutoff) {
			delete(t.sessions, id)
			pruned++
		}
	}
	return pruned
}
