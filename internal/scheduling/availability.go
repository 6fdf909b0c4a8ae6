package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func (s *Service) requireDoctor(ctx context.Context, doctorID int64) error {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return ErrInvalidDoctor
		}
		return fmt.Errorf("load doctor: %w", err)
	}
	return nil
}

func validateWindow(slot AvailabilitySlot) error {
	if !slot.StartTime.Valid() || !slot.EndTime.Valid() {
		return ErrInvalidTimeOfDay
	}
	if slot.StartTime >= slot.EndTime {
		return ErrInvalidTimeRange
	}
	return nil
}

// CreateAvailability publishes a new window. Overlap with the doctor's other
// windows is allowed.
func (s *Service) CreateAvailability(ctx context.Context, in NewAvailability) (slot AvailabilitySlot, err error) {
	ctx, span := s.startSpan(ctx, "CreateAvailability", attribute.Int64("doctor_id", in.DoctorID))
	defer func() { endSpan(span, err) }()

	var missing []string
	if in.DoctorID == 0 {
		missing = append(missing, "doctor_id")
	}
	if in.AvailableDate == nil || in.AvailableDate.IsZero() {
		missing = append(missing, "available_date")
	}
	if in.StartTime == nil {
		missing = append(missing, "start_time")
	}
	if in.EndTime == nil {
		missing = append(missing, "end_time")
	}
	if len(missing) > 0 {
		return AvailabilitySlot{}, &ValidationError{Fields: missing}
	}

	slot = AvailabilitySlot{
		DoctorID:      in.DoctorID,
		AvailableDate: StartOfDay(*in.AvailableDate),
		StartTime:     *in.StartTime,
		EndTime:       *in.EndTime,
	}
	if err := validateWindow(slot); err != nil {
		return AvailabilitySlot{}, err
	}
	if err := s.requireDoctor(ctx, in.DoctorID); err != nil {
		return AvailabilitySlot{}, err
	}

	id, err := s.repo.InsertAvailabilitySlot(ctx, slot)
	if err != nil {
		return AvailabilitySlot{}, fmt.Errorf("create availability: %w", err)
	}
	slot.ID = id

	s.log.Info("availability created", zap.Int64("availability_id", id), zap.Int64("doctor_id", slot.DoctorID))
	s.logEvent(ctx, availabilityEvent(EventAvailabilityCreated, id), slotPayload(slot))

	return slot, nil
}

// UpdateAvailability merges patch over the stored slot and re-checks the
// window on the merged values. A missing id is a hard ErrSlotNotFound.
func (s *Service) UpdateAvailability(ctx context.Context, id int64, patch SlotPatch) (merged AvailabilitySlot, err error) {
	ctx, span := s.startSpan(ctx, "UpdateAvailability", attribute.Int64("availability_id", id))
	defer func() { endSpan(span, err) }()

	cur, err := s.repo.GetAvailabilitySlot(ctx, id)
	if err != nil {
		return AvailabilitySlot{}, fmt.Errorf("load availability: %w", err)
	}

	merged = patch.Apply(*cur)
	if err := validateWindow(merged); err != nil {
		return AvailabilitySlot{}, err
	}
	if merged.DoctorID != cur.DoctorID {
		if err := s.requireDoctor(ctx, merged.DoctorID); err != nil {
			return AvailabilitySlot{}, err
		}
	}

	affected, err := s.repo.UpdateAvailabilitySlot(ctx, merged)
	if err != nil {
		return AvailabilitySlot{}, fmt.Errorf("update availability: %w", err)
	}
	if affected == 0 {
		// deleted between the read and the write
		return AvailabilitySlot{}, ErrSlotNotFound
	}

	s.logEvent(ctx, availabilityEvent(EventAvailabilityUpdated, id), slotPayload(merged))

	return merged, nil
}

// RemoveAvailability deletes the slot; an unknown id reports Affected=false.
func (s *Service) RemoveAvailability(ctx context.Context, id int64) (res MutationResult, err error) {
	ctx, span := s.startSpan(ctx, "RemoveAvailability", attribute.Int64("availability_id", id))
	defer func() { endSpan(span, err) }()

	affected, err := s.repo.DeleteAvailabilitySlot(ctx, id)
	if err != nil {
		return MutationResult{}, fmt.Errorf("remove availability: %w", err)
	}

	res = MutationResult{Affected: affected > 0}
	if res.Affected {
		s.logEvent(ctx, availabilityEvent(EventAvailabilityRemoved, id), map[string]any{})
	}
	return res, nil
}

func (s *Service) GetAvailabilitySlot(ctx context.Context, id int64) (*AvailabilitySlot, error) {
	slot, err := s.repo.GetAvailabilitySlot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get availability: %w", err)
	}
	return slot, nil
}

// AvailabilityForDoctor returns the slots on date when it is given, otherwise
// every slot from today through the schedule window, ordered by date and start.
func (s *Service) AvailabilityForDoctor(ctx context.Context, doctorID int64, date *time.Time) (view *AvailabilityView, err error) {
	ctx, span := s.startSpan(ctx, "AvailabilityForDoctor", attribute.Int64("doctor_id", doctorID))
	defer func() { endSpan(span, err) }()

	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	view = &AvailabilityView{DoctorID: doctorID}
	var filter AvailabilityFilter

	if date != nil {
		day := StartOfDay(*date)
		view.Date = &day
		filter.Date = &day
	} else {
		today := StartOfDay(s.now().UTC())
		view.From = today
		view.To = today.Add(s.cfg.ScheduleWindow)
		filter.From, filter.To = view.From, view.To
	}

	slots, err := s.repo.ListAvailability(ctx, doctorID, filter)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	view.Slots = slots

	return view, nil
}

func slotPayload(slot AvailabilitySlot) map[string]any {
	return map[string]any{
		"doctor_id":      slot.DoctorID,
		"available_date": slot.AvailableDate.Format(time.DateOnly),
		"start_time":     slot.StartTime.String(),
		"end_time":       slot.EndTime.String(),
	}
}
