// Package httptransport is the operator-facing HTTP surface: manual publish
// triggers, payment resolution, health and metrics. User traffic arrives over
// chat, not here.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"correio/internal/platform/middleware"
)

// Deps collects everything the router mounts. Health probes are plain funcs
// so main can compose DB and Redis pings without this package importing them.
type Deps struct {
	Submission   SubmissionService
	Publication  PublicationService
	Moderation   ModerationService
	Messages     MessageReader
	Reply        ReplyService
	Reveal       RevealService
	Logger       *slog.Logger
	JWTValidator middleware.JWTValidator
	HealthChecks map[string]HealthCheck
}

// NewRouter wires the admin endpoints. Everything except health and metrics
// sits behind JWT auth.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(deps.Logger))

	r.Get("/healthz", handleHealth(deps.Logger, deps.HealthChecks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.JWTValidator, deps.Logger))

		relay := &relayHandler{
			submission:  deps.Submission,
			publication: deps.Publication,
			moderation:  deps.Moderation,
			messages:    deps.Messages,
			logger:      deps.Logger,
		}
		relay.Register(r)

		reply := &replyHandler{svc: deps.Reply}
		reply.Register(r)

		reveal := &revealHandler{svc: deps.Reveal, logger: deps.Logger}
		reveal.Register(r)
	})

	return r
}
