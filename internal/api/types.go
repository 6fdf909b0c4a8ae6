package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/doctor-appointment-booking/internal/scheduling"
)

const sqlTimestampLayout = "2006-01-02 15:04:05"

// Timestamp accepts RFC 3339 or "YYYY-MM-DD HH:MM:SS". The second form has no
// zone and is read as UTC.
type Timestamp struct {
	time.Time
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(sqlTimestampLayout, raw, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q: want RFC 3339 or YYYY-MM-DD HH:MM:SS", raw)
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string")
	}
	if raw == "" {
		return nil
	}
	v, err := parseTimestamp(raw)
	if err != nil {
		return err
	}
	t.Time = v
	return nil
}

// Date is a calendar day, "YYYY-MM-DD", at UTC midnight.
type Date struct {
	time.Time
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.ParseInLocation(time.DateOnly, raw, time.UTC); err == nil {
		return t, nil
	}
	if t, err := parseTimestamp(raw); err == nil {
		return scheduling.StartOfDay(t.UTC()), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", raw)
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("date must be a string")
	}
	v, err := parseDate(raw)
	if err != nil {
		return err
	}
	d.Time = v
	return nil
}

// Requests

type BookAppointmentRequest struct {
	PatientID int64     `json:"patient_id"`
	DoctorID  int64     `json:"doctor_id"`
	StartTime Timestamp `json:"start_time"`
	EndTime   Timestamp `json:"end_time"`
	Reason    *string   `json:"reason"`
}

type CancelAppointmentRequest struct {
	CancelReason *string `json:"cancel_reason"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// AvailabilityRequest is used for both create and partial update; absent
// fields stay nil.
type AvailabilityRequest struct {
	DoctorID      *int64                `json:"doctor_id"`
	AvailableDate *Date                 `json:"available_date"`
	StartTime     *scheduling.TimeOfDay `json:"start_time"`
	EndTime       *scheduling.TimeOfDay `json:"end_time"`
}

func (r AvailabilityRequest) date() *time.Time {
	if r.AvailableDate == nil {
		return nil
	}
	return &r.AvailableDate.Time
}

func (r AvailabilityRequest) toNew() scheduling.NewAvailability {
	in := scheduling.NewAvailability{
		AvailableDate: r.date(),
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
	}
	if r.DoctorID != nil {
		in.DoctorID = *r.DoctorID
	}
	return in
}

func (r AvailabilityRequest) toPatch() scheduling.SlotPatch {
	return scheduling.SlotPatch{
		DoctorID:      r.DoctorID,
		AvailableDate: r.date(),
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
	}
}

// Responses

type BookAppointmentResponse struct {
	Message       string `json:"message"`
	AppointmentID int64  `json:"appointment_id"`
}

type MutationResponse struct {
	Message  string `json:"message"`
	Affected bool   `json:"affected"`
}

type AppointmentResponse struct {
	ID           int64     `json:"appointment_id"`
	PatientID    int64     `json:"patient_id"`
	DoctorID     int64     `json:"doctor_id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Status       string    `json:"status"`
	Reason       *string   `json:"reason,omitempty"`
	CancelReason *string   `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toAppointmentResponse(a scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		PatientID:    a.PatientID,
		DoctorID:     a.DoctorID,
		StartTime:    a.StartTime,
		EndTime:      a.EndTime,
		Status:       string(a.Status),
		Reason:       a.Reason,
		CancelReason: a.CancelReason,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

type ScheduleResponse struct {
	DoctorID     int64                 `json:"doctor_id"`
	From         time.Time             `json:"from"`
	To           time.Time             `json:"to"`
	Appointments []AppointmentResponse `json:"appointments"`
}

func toScheduleResponse(s *scheduling.Schedule) ScheduleResponse {
	resp := ScheduleResponse{
		DoctorID:     s.DoctorID,
		From:         s.From,
		To:           s.To,
		Appointments: make([]AppointmentResponse, 0, len(s.Appointments)),
	}
	for _, a := range s.Appointments {
		resp.Appointments = append(resp.Appointments, toAppointmentResponse(a))
	}
	return resp
}

type SlotResponse struct {
	ID            int64                `json:"availability_id"`
	DoctorID      int64                `json:"doctor_id"`
	AvailableDate string               `json:"available_date"`
	StartTime     scheduling.TimeOfDay `json:"start_time"`
	EndTime       scheduling.TimeOfDay `json:"end_time"`
}

func toSlotResponse(s scheduling.AvailabilitySlot) SlotResponse {
	return SlotResponse{
		ID:            s.ID,
		DoctorID:      s.DoctorID,
		AvailableDate: s.AvailableDate.Format(time.DateOnly),
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
	}
}

type CreateSlotResponse struct {
	Message        string       `json:"message"`
	AvailabilityID int64        `json:"availability_id"`
	Availability   SlotResponse `json:"availability"`
}

type UpdateSlotResponse struct {
	Message      string       `json:"message"`
	Availability SlotResponse `json:"availability"`
}

// AvailabilityResponse echoes either the requested date or the default
// from/to window.
type AvailabilityResponse struct {
	DoctorID     int64          `json:"doctor_id"`
	Date         string         `json:"date,omitempty"`
	From         string         `json:"from,omitempty"`
	To           string         `json:"to,omitempty"`
	Availability []SlotResponse `json:"availability"`
}

func toAvailabilityResponse(v *scheduling.AvailabilityView) AvailabilityResponse {
	resp := AvailabilityResponse{
		DoctorID:     v.DoctorID,
		Availability: make([]SlotResponse, 0, len(v.Slots)),
	}
	if v.Date != nil {
		resp.Date = v.Date.Format(time.DateOnly)
	} else {
		resp.From = v.From.Format(time.DateOnly)
		resp.To = v.To.Format(time.DateOnly)
	}
	for _, s := range v.Slots {
		resp.Availability = append(resp.Availability, toSlotResponse(s))
	}
	return resp
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}
