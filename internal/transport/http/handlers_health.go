package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"correio/internal/transport/http/shared"
)

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

func handleHealth(logger *slog.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
				results[name] = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		shared.WriteJSON(w, status, results)
	}
}
