package scheduling

import (
	"errors"
	"strings"
)

// Error classes. Every error returned by this package matches exactly one of
// them with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("scheduling conflict")
	ErrNotFound   = errors.New("not found")
	ErrStore      = errors.New("store failure")
)

type classError struct {
	class error
	msg   string
}

func newError(class error, msg string) error {
	return &classError{class: class, msg: msg}
}

func (e *classError) Error() string { return e.msg }
func (e *classError) Unwrap() error { return e.class }

var (
	ErrInvalidPatient      = newError(ErrValidation, "invalid patient_id (patient not found)")
	ErrInvalidDoctor       = newError(ErrValidation, "invalid doctor_id (doctor not found)")
	ErrInvalidTimeRange    = newError(ErrValidation, "start_time must be earlier than end_time")
	ErrInvalidStatus       = newError(ErrValidation, "valid status is required: BOOKED, CONFIRMED, COMPLETED, CANCELLED, NO_SHOW")
	ErrInvalidTimeOfDay    = newError(ErrValidation, "start_time and end_time must be within a single day")
	ErrDoctorUnavailable   = newError(ErrConflict, "doctor is not available for the requested time slot")
	ErrDoctorBusy          = newError(ErrConflict, "doctor is currently being booked, please retry")
	ErrOverlapsActive      = newError(ErrConflict, "appointment would overlap an active appointment for the doctor")
	ErrPatientNotFound     = newError(ErrNotFound, "patient not found")
	ErrDoctorNotFound      = newError(ErrNotFound, "doctor not found")
	ErrAppointmentNotFound = newError(ErrNotFound, "appointment not found")
	ErrSlotNotFound        = newError(ErrNotFound, "availability slot not found")
)

// ValidationError lists required fields that were missing from a request.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Fields, ", ") + " are required"
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StoreError wraps a persistence failure that has no domain meaning.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "store: " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

// Message returns the caller-facing text of the domain error wrapped in err,
// without the operation context added on the way up. It returns "" when err
// carries no domain error.
func Message(err error) string {
	var ce *classError
	if errors.As(err, &ce) {
		return ce.msg
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return ""
}
