package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicware/outpatient-flow/internal/clinic"
)

type RouterConfig struct {
	Service *clinic.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client // nil when the booking gate is disabled
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Post("/bookings", bookingHandler(cfg.Service))
	r.Post("/check-ins", checkInHandler(cfg.Service))
	r.Post("/settlements", settlementHandler(cfg.Service))
	r.Get("/stats", statsHandler(cfg.Service))
	r.Get("/medical-records/{id}", recordInfoHandler(cfg.Service))
	r.Post("/appointments/{id}/cancel", cancelHandler(cfg.Service))
	r.Post("/appointments/{id}/no-show", noShowHandler(cfg.Service))

	return r
}
