package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-booking/internal/metrics"
)

type RouterConfig struct {
	Service  Service
	Postgres Pinger
	Redis    Pinger
	Metrics  *metrics.Collector
	Logger   *zap.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(TracingMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
	}
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	h := &handlers{svc: cfg.Service, log: cfg.Logger}

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", h.bookAppointment)
		r.Get("/{id}", h.getAppointment)
		r.Put("/{id}/cancel", h.cancelAppointment)
		r.Put("/{id}/status", h.updateAppointmentStatus)
	})

	r.Route("/doctors/{id}", func(r chi.Router) {
		r.Get("/schedule", h.doctorSchedule)
		r.Get("/availability", h.doctorAvailability)
	})

	r.Route("/doctor_availability", func(r chi.Router) {
		r.Post("/", h.createAvailability)
		r.Get("/{id}", h.getAvailability)
		r.Put("/{id}", h.updateAvailability)
		r.Delete("/{id}", h.deleteAvailability)
	})

	return r
}
