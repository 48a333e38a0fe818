package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/target/console-api/internal/core"
	domainauth "github.com/target/console-api/internal/domain/auth"
	"github.com/target/console-api/internal/realtime"
	"github.com/target/console-api/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs     *service.JobService
	Resolver core.ActorResolver
	Hub      *realtime.Hub
	Health   map[string]HealthCheck
	// Optional
	MaxBodyBytes   int64
	WSWriteTimeout time.Duration
	Logger         *slog.Logger
}

// NewRouter creates and configures the API router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{Svc: services.Jobs, Logger: logger}
	registerJobRoutes(mux, jobHandlers, services.Resolver)

	if services.Hub != nil {
		ws := realtime.NewHandler(realtime.HandlerOptions{
			Hub:          services.Hub,
			Logger:       logger,
			WriteTimeout: services.WSWriteTimeout,
			Actor:        GetActorFromContext,
		})
		mux.Handle("GET /ws", RequireAuth(services.Resolver)(ws))
	}

	health := &HealthHandler{Checks: services.Health, Logger: logger}
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)

	return LimitBody(services.MaxBodyBytes)(mux)
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers, resolver core.ActorResolver) {
	authed := RequireAuth(resolver)
	admin := RequireRole(resolver, domainauth.RoleAdmin)

	// Worker callbacks carry no user credential; a callback token is checked
	// by the service when signing is configured.
	mux.Handle("POST /api/jobs/callback", http.HandlerFunc(h.Callback))

	mux.Handle("POST /api/jobs", authed(http.HandlerFunc(h.CreateJob)))
	mux.Handle("GET /api/jobs/{id}", authed(http.HandlerFunc(h.GetJob)))
	mux.Handle("GET /api/jobs/organization/{organizationId}", authed(http.HandlerFunc(h.ListOrganizationJobs)))

	mux.Handle("GET /api/jobs", admin(http.HandlerFunc(h.ListJobs)))
	mux.Handle("PUT /api/jobs/{id}", admin(http.HandlerFunc(h.UpdateJob)))
	mux.Handle("DELETE /api/jobs/{id}", admin(http.HandlerFunc(h.DeleteJob)))
}
