package scheduling

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// GetAppointment returns ErrAppointmentNotFound when the id is unknown.
func (s *Service) GetAppointment(ctx context.Context, id int64) (*Appointment, error) {
	a, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

// Cancel sets the appointment to CANCELLED from any status and records the
// reason. An unknown id is reported as Affected=false, not as an error.
func (s *Service) Cancel(ctx context.Context, id int64, reason *string) (res MutationResult, err error) {
	ctx, span := s.startSpan(ctx, "Cancel", attribute.Int64("appointment_id", id))
	defer func() { endSpan(span, err) }()

	affected, err := s.repo.UpdateAppointmentStatus(ctx, id, StatusChange{
		Status:          StatusCancelled,
		CancelReason:    reason,
		SetCancelReason: true,
	})
	if err != nil {
		return MutationResult{}, fmt.Errorf("cancel appointment: %w", err)
	}

	res = MutationResult{Affected: affected > 0}
	s.metrics.ObserveTransition(string(StatusCancelled), res.Affected)

	if res.Affected {
		s.log.Info("appointment cancelled", zap.Int64("appointment_id", id))
		payload := map[string]any{}
		if reason != nil {
			payload["cancel_reason"] = *reason
		}
		s.logEvent(ctx, appointmentEvent(EventAppointmentCancelled, id), payload)
	}

	return res, nil
}

// UpdateStatus sets any valid status regardless of the current one. Unknown
// status values fail with ErrInvalidStatus; unknown ids report Affected=false.
func (s *Service) UpdateStatus(ctx context.Context, id int64, raw string) (res MutationResult, err error) {
	ctx, span := s.startSpan(ctx, "UpdateStatus",
		attribute.Int64("appointment_id", id),
		attribute.String("status", raw),
	)
	defer func() { endSpan(span, err) }()

	status, err := ParseStatus(raw)
	if err != nil {
		return MutationResult{}, err
	}

	affected, err := s.repo.UpdateAppointmentStatus(ctx, id, StatusChange{Status: status})
	if err != nil {
		return MutationResult{}, fmt.Errorf("update appointment status: %w", err)
	}

	res = MutationResult{Affected: affected > 0}
	s.metrics.ObserveTransition(string(status), res.Affected)

	if res.Affected {
		s.log.Info("appointment status updated",
			zap.Int64("appointment_id", id),
			zap.String("status", string(status)),
		)
		s.logEvent(ctx, appointmentEvent(EventAppointmentStatusUpdated, id), map[string]any{
			"status": status,
		})
	}

	return res, nil
}
