package scheduling

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusBooked    Status = "BOOKED"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusNoShow    Status = "NO_SHOW"
)

// Statuses lists every valid appointment status. Any status may follow any other.
var Statuses = []Status{StatusBooked, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow}

func (s Status) IsValid() bool {
	switch s {
	case StatusBooked, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Active reports whether an appointment in this status blocks its time range.
func (s Status) Active() bool {
	return s != StatusCancelled
}

// ParseStatus matches the exact upper-case status names.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

type Doctor struct {
	ID        int64
	FirstName string
	LastName  string
	Specialty string
	CreatedAt time.Time
}

type Patient struct {
	ID        int64
	FirstName string
	LastName  string
	Email     *string
	CreatedAt time.Time
}

type Appointment struct {
	ID           int64
	PatientID    int64
	DoctorID     int64
	StartTime    time.Time
	EndTime      time.Time
	Status       Status
	Reason       *string
	CancelReason *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Overlaps uses half-open intervals: [s1,e1) and [s2,e2) overlap iff
// s1 < e2 and s2 < e1, so touching endpoints do not overlap.
func (a Appointment) Overlaps(start, end time.Time) bool {
	return a.StartTime.Before(end) && start.Before(a.EndTime)
}

// NewAppointment carries the fields written when a booking is committed.
type NewAppointment struct {
	PatientID int64
	DoctorID  int64
	StartTime time.Time
	EndTime   time.Time
	Reason    *string
}

// StatusChange is the only mutation an appointment accepts after creation.
// CancelReason is written only when SetCancelReason is true.
type StatusChange struct {
	Status          Status
	CancelReason    *string
	SetCancelReason bool
}

// TimeOfDay is a wall-clock time within a day, in seconds since midnight.
type TimeOfDay int

const secondsPerDay = 24 * 60 * 60

func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return NewTimeOfDay(t.Hour(), t.Minute(), t.Second()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q: want HH:MM or HH:MM:SS", raw)
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < secondsPerDay
}

func (t TimeOfDay) String() string {
	s := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// AvailabilitySlot is a window a doctor has published on a single day.
// AvailableDate is midnight of that day.
type AvailabilitySlot struct {
	ID            int64
	DoctorID      int64
	AvailableDate time.Time
	StartTime     TimeOfDay
	EndTime       TimeOfDay
}

// NewAvailability holds the create request; every field is required.
type NewAvailability struct {
	DoctorID      int64
	AvailableDate *time.Time
	StartTime     *TimeOfDay
	EndTime       *TimeOfDay
}

// SlotPatch is a partial update. Nil fields keep the current value.
type SlotPatch struct {
	DoctorID      *int64
	AvailableDate *time.Time
	StartTime     *TimeOfDay
	EndTime       *TimeOfDay
}

// Apply returns cur with the patch laid over it. cur is not modified.
func (p SlotPatch) Apply(cur AvailabilitySlot) AvailabilitySlot {
	merged := cur
	if p.DoctorID != nil {
		merged.DoctorID = *p.DoctorID
	}
	if p.AvailableDate != nil {
		merged.AvailableDate = StartOfDay(*p.AvailableDate)
	}
	if p.StartTime != nil {
		merged.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		merged.EndTime = *p.EndTime
	}
	return merged
}

// AvailabilityFilter selects slots of one doctor: an exact Date when set,
// otherwise every date in [From, To].
type AvailabilityFilter struct {
	Date *time.Time
	From time.Time
	To   time.Time
}

type EventLog struct {
	ID             int64
	EventType      string
	AppointmentID  *int64
	AvailabilityID *int64
	Payload        []byte
	CreatedAt      time.Time
}

// MutationResult reports whether a soft-failing mutation touched a row.
type MutationResult struct {
	Affected bool
}

// Schedule is a doctor's appointments within [From, To], cancelled ones included.
type Schedule struct {
	DoctorID     int64
	From         time.Time
	To           time.Time
	Explicit     bool
	Appointments []Appointment
}

// AvailabilityView is the result of a doctor availability lookup. Date is set
// for single-day lookups; From and To bound the default forward window.
type AvailabilityView struct {
	DoctorID int64
	Date     *time.Time
	From     time.Time
	To       time.Time
	Slots    []AvailabilitySlot
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay is the last whole second of t's day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Second)
}
