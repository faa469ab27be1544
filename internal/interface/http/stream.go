package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/edupulse/edupulse/internal/domain/shared"
	"github.com/edupulse/edupulse/internal/infrastructure/messaging"
	"github.com/edupulse/edupulse/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE ROOM STREAM (Server-Sent Events)
// One HTTP connection joins one course room. Membership lasts exactly as
// long as the connection: closing the stream removes the connection from
// the room and presence set. Missed events are not replayed on reconnect.
// ══════════════════════════════════════════════════════════════════════════════

// streamEnvelope is the SSE data payload.
type streamEnvelope struct {
	Type       shared.EventType       `json:"type"`
	CourseID   string                 `json:"course_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}

func (s *Server) handleCourseStream(w http.ResponseWriter, r *http.Request) {
	actor, _ := handlers.ActorFromContext(r.Context())
	courseID := r.PathValue("id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		handlers.WriteError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Long-lived stream: lift the server's write deadline for this
	// response only.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	// The room is open to enrolled students and the instructor alike;
	// the course must at least exist.
	if _, err := s.deps.CourseRepo.GetByID(r.Context(), courseID); err != nil {
		handlers.WriteDomainError(w, err)
		return
	}

	conn := messaging.NewChanConn(uuid.New().String(), actor.ID, s.config.StreamBufferSize)
	if err := s.deps.Registry.Join(courseID, conn); err != nil {
		handlers.WriteDomainError(w, err)
		return
	}

	s.markPresence(r.Context(), courseID, actor.ID, true)

	defer func() {
		s.deps.Registry.Disconnect(conn.ID())
		conn.Close()
		// Presence cleanup uses a fresh context: the request context is
		// already canceled when the client goes away.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.markPresence(ctx, courseID, actor.ID, false)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Opening comment so proxies flush the response immediately.
	fmt.Fprintf(w, ": connected to course %s\n\n", courseID)
	flusher.Flush()

	s.logger.Debug("stream opened",
		"course_id", courseID,
		"conn_id", conn.ID(),
		"actor_id", actor.ID,
	)

	heartbeat := time.NewTicker(s.config.StreamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case event, ok := <-conn.Events():
			if !ok {
				return
			}
			if err := writeSSE(w, event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSE writes one event in SSE framing.
func writeSSE(w http.ResponseWriter, event shared.Event) error {
	data, err := json.Marshal(streamEnvelope{
		Type:       event.EventType(),
		CourseID:   event.CourseID(),
		OccurredAt: event.OccurredAt(),
		Payload:    event.Payload(),
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType(), data)
	return err
}

// markPresence updates the presence set, logging failures only.
func (s *Server) markPresence(ctx context.Context, courseID, actorID string, online bool) {
	if s.deps.Presence == nil {
		return
	}

	var err error
	if online {
		err = s.deps.Presence.MarkOnline(ctx, courseID, actorID)
	} else {
		err = s.deps.Presence.MarkOffline(ctx, courseID, actorID)
	}
	if err != nil {
		s.logger.Warn("failed to update presence",
			"course_id", courseID,
			"actor_id", actorID,
			"error", err,
		)
	}
}
