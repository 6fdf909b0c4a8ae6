package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-booking/internal/metrics"
	redisclient "github.com/hackgods/doctor-appointment-booking/internal/redis"
)

type BookRequest struct {
	PatientID int64
	DoctorID  int64
	StartTime time.Time
	EndTime   time.Time
	Reason    *string
}

type BookResult struct {
	AppointmentID int64
}

func (r BookRequest) validate() error {
	var missing []string
	if r.PatientID == 0 {
		missing = append(missing, "patient_id")
	}
	if r.DoctorID == 0 {
		missing = append(missing, "doctor_id")
	}
	if r.StartTime.IsZero() {
		missing = append(missing, "start_time")
	}
	if r.EndTime.IsZero() {
		missing = append(missing, "end_time")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	if !r.StartTime.Before(r.EndTime) {
		return ErrInvalidTimeRange
	}
	return nil
}

// Book commits a new BOOKED appointment once the patient and doctor exist and
// the doctor has no active appointment overlapping [StartTime, EndTime).
// The overlap scan and the insert run inside one WithDoctorBooking call, so
// concurrent bookings for the same doctor cannot both pass the scan.
func (s *Service) Book(ctx context.Context, req BookRequest) (res BookResult, err error) {
	ctx, span := s.startSpan(ctx, "Book",
		attribute.Int64("doctor_id", req.DoctorID),
		attribute.Int64("patient_id", req.PatientID),
	)
	defer func() {
		s.metrics.ObserveBooking(bookingOutcome(err))
		endSpan(span, err)
	}()

	if err := req.validate(); err != nil {
		return BookResult{}, err
	}

	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return BookResult{}, ErrInvalidPatient
		}
		return BookResult{}, fmt.Errorf("load patient: %w", err)
	}

	if _, err := s.repo.GetDoctorByID(ctx, req.DoctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return BookResult{}, ErrInvalidDoctor
		}
		return BookResult{}, fmt.Errorf("load doctor: %w", err)
	}

	var id int64

	err = s.withDoctorLock(ctx, req.DoctorID, func(lockCtx context.Context) error {
		return s.repo.WithDoctorBooking(lockCtx, req.DoctorID, func(txCtx context.Context, tx BookingTx) error {
			conflict, err := hasConflict(txCtx, tx, req.DoctorID, req.StartTime, req.EndTime)
			if err != nil {
				return fmt.Errorf("check conflicts: %w", err)
			}
			if conflict {
				return ErrDoctorUnavailable
			}

			id, err = tx.InsertAppointment(txCtx, NewAppointment{
				PatientID: req.PatientID,
				DoctorID:  req.DoctorID,
				StartTime: req.StartTime,
				EndTime:   req.EndTime,
				Reason:    req.Reason,
			})
			return err
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return BookResult{}, ErrDoctorBusy
		}
		return BookResult{}, err
	}

	span.SetAttributes(attribute.Int64("appointment_id", id))
	s.log.Info("appointment booked",
		zap.Int64("appointment_id", id),
		zap.Int64("doctor_id", req.DoctorID),
		zap.Int64("patient_id", req.PatientID),
	)
	s.logEvent(ctx, appointmentEvent(EventAppointmentBooked, id), map[string]any{
		"doctor_id":  req.DoctorID,
		"patient_id": req.PatientID,
		"start_time": req.StartTime,
		"end_time":   req.EndTime,
	})

	return BookResult{AppointmentID: id}, nil
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeBooked
	case errors.Is(err, ErrConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, ErrValidation):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}

type overlapFinder interface {
	FindOverlapping(ctx context.Context, doctorID int64, start, end time.Time, exclude Status) ([]Appointment, error)
}

// HasConflict reports whether the doctor has an active appointment overlapping
// [start, end). It always reads the store; results are never cached.
func (s *Service) HasConflict(ctx context.Context, doctorID int64, start, end time.Time) (conflict bool, err error) {
	ctx, span := s.startSpan(ctx, "HasConflict", attribute.Int64("doctor_id", doctorID))
	defer func() { endSpan(span, err) }()

	if !start.Before(end) {
		return false, ErrInvalidTimeRange
	}
	return hasConflict(ctx, s.repo, doctorID, start, end)
}

func hasConflict(ctx context.Context, f overlapFinder, doctorID int64, start, end time.Time) (bool, error) {
	candidates, err := f.FindOverlapping(ctx, doctorID, start, end, StatusCancelled)
	if err != nil {
		return false, err
	}
	for _, a := range candidates {
		if a.DoctorID == doctorID && a.Status.Active() && a.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}
