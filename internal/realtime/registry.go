// Package realtime holds the in-process registry of open SSE connections.
// Like the upload tracker, it is single-instance state: a restart drops every
// registration, and a multi-instance deployment needs a shared pub/sub layer
// behind the same interface.
package realtime

import (
	"sync"
)

const (
	EventTypeConnection = "connection"
	EventTypeHeartbeat  = "heartbeat"
)

// Event is one frame pushed to a client: a type tag plus an opaque payload.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Connection is one user's push channel. Events are delivered through a
// bounded buffer with a dedicated writer on the HTTP handler side, so a slow
// consumer drops events instead of stalling publishers.
type Connection struct {
	userID uint
	events chan Event
	once   sync.Once
}

// Events is the receive side consumed by the SSE handler. The channel is
// closed when the connection is replaced or unregistered.
func (c *Connection) Events() <-chan Event {
	return c.events
}

func (c *Connection) close() {
	c.once.Do(func() {
		close(c.events)
	})
}

// Registry maps user id to its single active connection.
type Registry struct {
	mu         sync.RWMutex
	conns      map[uint]*Connection
	bufferSize int
}

func NewRegistry(bufferSize int) *Registry {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &Registry{
		conns:      make(map[uint]*Connection),
		bufferSize: bufferSize,
	}
}

// Register opens a connection for userID. Last write wins: an existing
// connection for the same user is closed, so the older tab's handler exits
// and stops receiving pushes.
func (r *Registry) Register(userID uint) *Connection {
	conn := &Connection{
		userID: userID,
		events: make(chan Event, r.bufferSize),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev := r.conns[userID]; prev != nil {
		prev.close()
	}
	r.conns[userID] = conn
	return conn
}

// Unregister removes conn if it is still the current connection for userID.
// A stale handle (already replaced by a newer tab) is closed without touching
// the registry entry.
func (r *Registry) Unregister(userID uint, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[userID] == conn {
		delete(r.conns, userID)
	}
	conn.close()
}

// Send delivers the event to userID's connection if one is open. Delivery is
// best-effort and at-most-once: no registered connection or a full buffer
// means the event is dropped, and the caller learns that from the return.
// The registry lock is held across the send so a connection is never closed
// mid-send.
func (r *Registry) Send(userID uint, event Event) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	if !ok {
		return false
	}

	select {
	case conn.events <- event:
		return true
	default:
		return false
	}
}

func (r *Registry) Connected(userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
