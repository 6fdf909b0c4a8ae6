package scheduling

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-booking/internal/config"
	"github.com/hackgods/doctor-appointment-booking/internal/metrics"
	redisclient "github.com/hackgods/doctor-appointment-booking/internal/redis"
)

const (
	EventAppointmentBooked        = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled     = "APPOINTMENT_CANCELLED"
	EventAppointmentStatusUpdated = "APPOINTMENT_STATUS_UPDATED"
	EventAvailabilityCreated      = "AVAILABILITY_CREATED"
	EventAvailabilityUpdated      = "AVAILABILITY_UPDATED"
	EventAvailabilityRemoved      = "AVAILABILITY_REMOVED"
)

const tracerName = "github.com/hackgods/doctor-appointment-booking/internal/scheduling"

// Service holds no per-request state; every method may be called concurrently.
type Service struct {
	repo    Repository
	locker  redisclient.Locker
	cfg     config.Config
	log     *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
	now     func() time.Time
}

// NewService wires the core. locker and m may be nil: without a locker,
// bookings rely on the store guard alone.
func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, log *zap.Logger, m *metrics.Collector) *Service {
	if cfg.ScheduleWindow <= 0 {
		cfg.ScheduleWindow = 30 * 24 * time.Hour
	}
	return &Service{
		repo:    repo,
		locker:  locker,
		cfg:     cfg,
		log:     log,
		metrics: m,
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "scheduling."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) withDoctorLock(ctx context.Context, doctorID int64, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	return s.locker.WithDoctorLock(ctx, doctorID, fn)
}

func (s *Service) logEvent(ctx context.Context, ev EventLog, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event", ev.EventType), zap.Error(err))
		data = nil
	}

	ev.Payload = data
	ev.CreatedAt = s.now()

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("failed to insert event log", zap.String("event", ev.EventType), zap.Error(err))
	}
}

func appointmentEvent(eventType string, id int64) EventLog {
	return EventLog{EventType: eventType, AppointmentID: &id}
}

func availabilityEvent(eventType string, id int64) EventLog {
	return EventLog{EventType: eventType, AvailabilityID: &id}
}
