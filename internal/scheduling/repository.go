package scheduling

import (
	"context"
	"time"
)

// Repository is the record store the scheduling core reads and writes through.
// Lookups of missing rows return the matching ErrXNotFound; mutations that may
// soft-fail report the number of affected rows instead.
type Repository interface {
	GetDoctorByID(ctx context.Context, id int64) (*Doctor, error)
	GetPatientByID(ctx context.Context, id int64) (*Patient, error)
	GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error)

	// For conflict checks outside a booking
	FindOverlapping(ctx context.Context, doctorID int64, start, end time.Time, exclude Status) ([]Appointment, error)

	// WithDoctorBooking runs fn in a single transaction that is serialized
	// against every other WithDoctorBooking call for the same doctor. Either
	// everything fn wrote is committed or nothing is.
	WithDoctorBooking(ctx context.Context, doctorID int64, fn func(ctx context.Context, tx BookingTx) error) error

	UpdateAppointmentStatus(ctx context.Context, id int64, change StatusChange) (int64, error)

	// ListAppointmentsInRange returns appointments whose start is within
	// [from, to], ordered by start ascending.
	ListAppointmentsInRange(ctx context.Context, doctorID int64, from, to time.Time) ([]Appointment, error)

	// Availability
	GetAvailabilitySlot(ctx context.Context, id int64) (*AvailabilitySlot, error)
	InsertAvailabilitySlot(ctx context.Context, slot AvailabilitySlot) (int64, error)
	UpdateAvailabilitySlot(ctx context.Context, slot AvailabilitySlot) (int64, error)
	DeleteAvailabilitySlot(ctx context.Context, id int64) (int64, error)
	// ListAvailability is ordered by date then start time ascending.
	ListAvailability(ctx context.Context, doctorID int64, filter AvailabilityFilter) ([]AvailabilitySlot, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// BookingTx is the view of the store available inside WithDoctorBooking.
type BookingTx interface {
	FindOverlapping(ctx context.Context, doctorID int64, start, end time.Time, exclude Status) ([]Appointment, error)
	InsertAppointment(ctx context.Context, a NewAppointment) (int64, error)
}
