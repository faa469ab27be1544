package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker reports backing-store health.
type HealthChecker interface {
	// CheckPostgres pings the database.
	CheckPostgres(ctx context.Context) error

	// CheckRedis pings Redis. Returns nil when Redis is not configured.
	CheckRedis(ctx context.Context) error
}

// healthResponse is the health endpoint body.
type healthResponse struct {
	Status    string            `json:"status"`
	CheckedAt time.Time         `json:"checked_at"`
	Checks    map[string]string `json:"checks"`
}

// Health returns a handler that reports dependency health.
func Health(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		resp := healthResponse{
			Status:    "ok",
			CheckedAt: time.Now().UTC(),
			Checks:    make(map[string]string),
		}
		status := http.StatusOK

		if checker != nil {
			if err := checker.CheckPostgres(ctx); err != nil {
				resp.Checks["postgres"] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
			} else {
				resp.Checks["postgres"] = "ok"
			}

			if err := checker.CheckRedis(ctx); err != nil {
				resp.Checks["redis"] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
			} else {
				resp.Checks["redis"] = "ok"
			}
		}

		WriteJSON(w, status, resp)
	}
}

// Liveness is a trivial liveness probe.
func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}
