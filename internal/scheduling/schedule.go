package scheduling

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// DoctorSchedule lists the doctor's appointments by start time ascending,
// cancelled ones included. With both from and to it covers
// [from 00:00:00, to 23:59:59]; otherwise [now, now+window].
func (s *Service) DoctorSchedule(ctx context.Context, doctorID int64, from, to *time.Time) (sched *Schedule, err error) {
	ctx, span := s.startSpan(ctx, "DoctorSchedule", attribute.Int64("doctor_id", doctorID))
	defer func() { endSpan(span, err) }()

	sched = &Schedule{DoctorID: doctorID}
	if from != nil && to != nil {
		sched.From = StartOfDay(*from)
		sched.To = EndOfDay(*to)
		sched.Explicit = true
	} else {
		now := s.now()
		sched.From = now
		sched.To = now.Add(s.cfg.ScheduleWindow)
	}

	appts, err := s.repo.ListAppointmentsInRange(ctx, doctorID, sched.From, sched.To)
	if err != nil {
		return nil, fmt.Errorf("list doctor schedule: %w", err)
	}
	sched.Appointments = appts

	return sched, nil
}
