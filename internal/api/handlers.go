package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-booking/internal/scheduling"
)

// Service is the slice of the scheduling core the HTTP layer needs.
type Service interface {
	Book(ctx context.Context, req scheduling.BookRequest) (scheduling.BookResult, error)
	GetAppointment(ctx context.Context, id int64) (*scheduling.Appointment, error)
	Cancel(ctx context.Context, id int64, reason *string) (scheduling.MutationResult, error)
	UpdateStatus(ctx context.Context, id int64, status string) (scheduling.MutationResult, error)
	DoctorSchedule(ctx context.Context, doctorID int64, from, to *time.Time) (*scheduling.Schedule, error)

	CreateAvailability(ctx context.Context, in scheduling.NewAvailability) (scheduling.AvailabilitySlot, error)
	GetAvailabilitySlot(ctx context.Context, id int64) (*scheduling.AvailabilitySlot, error)
	UpdateAvailability(ctx context.Context, id int64, patch scheduling.SlotPatch) (scheduling.AvailabilitySlot, error)
	RemoveAvailability(ctx context.Context, id int64) (scheduling.MutationResult, error)
	AvailabilityForDoctor(ctx context.Context, doctorID int64, date *time.Time) (*scheduling.AvailabilityView, error)
}

var _ Service = (*scheduling.Service)(nil)

type handlers struct {
	svc Service
	log *zap.Logger
}

func (h *handlers) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req BookAppointmentRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	res, err := h.svc.Book(r.Context(), scheduling.BookRequest{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		StartTime: req.StartTime.Time,
		EndTime:   req.EndTime.Time,
		Reason:    req.Reason,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, BookAppointmentResponse{
		Message:       "Appointment booked successfully",
		AppointmentID: res.AppointmentID,
	})
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	// the body is optional
	var req CancelAppointmentRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	res, err := h.svc.Cancel(r.Context(), id, req.CancelReason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	msg := "No appointment cancelled"
	if res.Affected {
		msg = "Appointment cancelled successfully"
	}
	writeJSON(w, http.StatusOK, MutationResponse{Message: msg, Affected: res.Affected})
}

func (h *handlers) updateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	res, err := h.svc.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	msg := "No appointment updated"
	if res.Affected {
		msg = "Appointment status updated successfully"
	}
	writeJSON(w, http.StatusOK, MutationResponse{Message: msg, Affected: res.Affected})
}

func (h *handlers) doctorSchedule(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	from, ok := queryDate(w, r, "from")
	if !ok {
		return
	}
	to, ok := queryDate(w, r, "to")
	if !ok {
		return
	}

	sched, err := h.svc.DoctorSchedule(r.Context(), doctorID, from, to)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toScheduleResponse(sched))
}

func (h *handlers) doctorAvailability(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	date, ok := queryDate(w, r, "date")
	if !ok {
		return
	}

	view, err := h.svc.AvailabilityForDoctor(r.Context(), doctorID, date)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAvailabilityResponse(view))
}

func (h *handlers) createAvailability(w http.ResponseWriter, r *http.Request) {
	var req AvailabilityRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	slot, err := h.svc.CreateAvailability(r.Context(), req.toNew())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateSlotResponse{
		Message:        "Availability slot created successfully",
		AvailabilityID: slot.ID,
		Availability:   toSlotResponse(slot),
	})
}

func (h *handlers) getAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	slot, err := h.svc.GetAvailabilitySlot(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSlotResponse(*slot))
}

func (h *handlers) updateAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req AvailabilityRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	slot, err := h.svc.UpdateAvailability(r.Context(), id, req.toPatch())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, UpdateSlotResponse{
		Message:      "Availability slot updated successfully",
		Availability: toSlotResponse(slot),
	})
}

func (h *handlers) deleteAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	res, err := h.svc.RemoveAvailability(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	msg := "No availability deleted"
	if res.Affected {
		msg = "Availability slot deleted successfully"
	}
	writeJSON(w, http.StatusOK, MutationResponse{Message: msg, Affected: res.Affected})
}

// Helpers

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
	return false
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryDate(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	d, err := parseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, err.Error())
		return nil, false
	}
	return &d, true
}

func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	msg := scheduling.Message(err)

	switch {
	case errors.Is(err, scheduling.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", msg)
	case errors.Is(err, scheduling.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", msg)
	case errors.Is(err, scheduling.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", msg)
	default:
		h.log.Error("request failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message, Status: status})
}
