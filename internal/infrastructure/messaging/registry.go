// Package messaging implements room-scoped real-time event fan-out.
// It provides the connection registry, the in-process room bus and an
// optional Redis Pub/Sub bridge for multi-instance deployments.
package messaging

import (
	"log/slog"
	"sync"

	"github.com/edupulse/edupulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTION
// ══════════════════════════════════════════════════════════════════════════════

// Conn is a live client connection that can receive room events.
// TrySend must never block: a connection that cannot accept an event
// right now reports false and the event is dropped for that connection.
type Conn interface {
	// ID uniquely identifies the connection.
	ID() string

	// ActorID identifies the authenticated user behind the connection.
	ActorID() string

	// TrySend enqueues an event without blocking. Returns false when the
	// connection's buffer is full or the connection is closed.
	TrySend(event shared.Event) bool

	// Close releases the connection. Idempotent.
	Close()
}

// ChanConn is the channel-backed Conn used by the HTTP streaming layer.
// Events are buffered; the reader drains Events() and forwards them to
// the client.
type ChanConn struct {
	id      string
	actorID string
	events  chan shared.Event
	mu      sync.Mutex
	closed  bool
}

// NewChanConn creates a connection with the given buffer size.
func NewChanConn(id, actorID string, bufferSize int) *ChanConn {
	if bufferSize <= 0 {
		bufferSize = 32
	}
	return &ChanConn{
		id:      id,
		actorID: actorID,
		events:  make(chan shared.Event, bufferSize),
	}
}

// ID returns the connection identifier.
func (c *ChanConn) ID() string { return c.id }

// ActorID returns the user behind the connection.
func (c *ChanConn) ActorID() string { return c.actorID }

// Events returns the channel the reader drains.
func (c *ChanConn) Events() <-chan shared.Event { return c.events }

// TrySend enqueues the event if buffer space is available.
func (c *ChanConn) TrySend(event shared.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.events <- event:
		return true
	default:
		return false
	}
}

// Close closes the connection and its event channel.
func (c *ChanConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
}

// ══════════════════════════════════════════════════════════════════════════════
// ROOM REGISTRY
// ══════════════════════════════════════════════════════════════════════════════

// Registry tracks which connections are members of which course rooms.
// A connection may be in any number of rooms at once. All operations
// are safe for concurrent use.
type Registry struct {
	mu sync.RWMutex
	// rooms: course id -> connection id -> connection
	rooms map[string]map[string]Conn
	// memberships: connection id -> set of course ids, for Disconnect
	memberships map[string]map[string]struct{}
	closed      bool
	logger      *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rooms:       make(map[string]map[string]Conn),
		memberships: make(map[string]map[string]struct{}),
		logger:      logger,
	}
}

// Join adds a connection to a course room. Joining a room the
// connection is already in is a no-op.
func (r *Registry) Join(courseID string, conn Conn) error {
	if conn == nil {
		return shared.ErrNilConn
	}
	if courseID == "" {
		return shared.ErrEmptyCourse
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return shared.ErrRoomClosed
	}

	room, ok := r.rooms[courseID]
	if !ok {
		room = make(map[string]Conn)
		r.rooms[courseID] = room
	}
	room[conn.ID()] = conn

	member, ok := r.memberships[conn.ID()]
	if !ok {
		member = make(map[string]struct{})
		r.memberships[conn.ID()] = member
	}
	member[courseID] = struct{}{}

	r.logger.Debug("connection joined room",
		"course_id", courseID,
		"conn_id", conn.ID(),
		"actor_id", conn.ActorID(),
	)
	return nil
}

// Leave removes a connection from a course room. Leaving a room the
// connection is not in is a no-op.
func (r *Registry) Leave(courseID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveLocked(courseID, connID)
}

func (r *Registry) leaveLocked(courseID, connID string) {
	room, ok := r.rooms[courseID]
	if !ok {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(r.rooms, courseID)
	}

	if member, ok := r.memberships[connID]; ok {
		delete(member, courseID)
		if len(member) == 0 {
			delete(r.memberships, connID)
		}
	}
}

// Disconnect removes a connection from every room it is in.
// Called when the underlying transport closes.
func (r *Registry) Disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	member, ok := r.memberships[connID]
	if !ok {
		return
	}
	for courseID := range member {
		r.leaveLocked(courseID, connID)
	}

	r.logger.Debug("connection disconnected", "conn_id", connID)
}

// Snapshot returns the current members of a room. The slice is a copy:
// joins and leaves after Snapshot returns do not affect it.
func (r *Registry) Snapshot(courseID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[courseID]
	if !ok {
		return nil
	}
	conns := make([]Conn, 0, len(room))
	for _, conn := range room {
		conns = append(conns, conn)
	}
	return conns
}

// RoomSize returns the number of members in a room.
func (r *Registry) RoomSize(courseID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[courseID])
}

// Rooms returns the ids of all rooms with at least one member.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Close marks the registry closed and drops all memberships.
// Subsequent Join calls fail with shared.ErrRoomClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	r.rooms = make(map[string]map[string]Conn)
	r.memberships = make(map[string]map[string]struct{})
}
