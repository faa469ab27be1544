// Package handlers contains shared HTTP handler utilities: actor
// extraction, health checks and response helpers.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/edupulse/edupulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTOR EXTRACTION
// ══════════════════════════════════════════════════════════════════════════════

// Header names for the identity forwarded by the authenticating proxy.
// Authentication itself lives at the gateway; this service trusts the
// forwarded identity.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

type actorContextKey struct{}

// ActorFromRequest extracts the actor from the trusted headers.
func ActorFromRequest(r *http.Request) (shared.Actor, bool) {
	id := r.Header.Get(HeaderActorID)
	if id == "" {
		return shared.Actor{}, false
	}
	role := shared.Role(r.Header.Get(HeaderActorRole))
	if !role.IsValid() {
		role = shared.RoleStudent
	}
	return shared.Actor{ID: id, Role: role}, true
}

// WithActor stores the actor in the request context.
func WithActor(ctx context.Context, actor shared.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext retrieves the actor stored by RequireActor.
func ActorFromContext(ctx context.Context) (shared.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(shared.Actor)
	return actor, ok
}

// RequireActor rejects requests without a forwarded identity and stores
// the actor in the context for downstream handlers.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromRequest(r)
		if !ok {
			WriteError(w, http.StatusUnauthorized, "missing identity")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// Recovery converts handler panics into 500 responses.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic in handler",
						"path", r.URL.Path,
						"panic", rec,
						"stack", string(debug.Stack()),
					)
					WriteError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush forwards to the underlying writer so streaming responses work
// through the logging middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Logging logs one line per request.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, errorBody{Error: message})
}

// WriteDomainError maps a domain error onto an HTTP status.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case shared.IsNotFound(err):
		WriteError(w, http.StatusNotFound, err.Error())
	case shared.IsUnauthorized(err):
		WriteError(w, http.StatusForbidden, err.Error())
	case shared.IsConflict(err):
		WriteError(w, http.StatusConflict, err.Error())
	case shared.IsValidation(err):
		WriteError(w, http.StatusBadRequest, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
