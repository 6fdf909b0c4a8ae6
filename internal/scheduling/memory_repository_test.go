package scheduling

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var _ Repository = (*memRepository)(nil)

// memRepository is a map-backed Repository. WithDoctorBooking serializes
// callers per doctor the way the Postgres advisory lock does; the data mutex
// is only held per call, so the scan and the insert are separate steps.
type memRepository struct {
	mu           sync.Mutex
	doctors      map[int64]Doctor
	patients     map[int64]Patient
	appointments map[int64]Appointment
	slots        map[int64]AvailabilitySlot
	events       []EventLog
	nextID       int64

	doctorLocks sync.Map // int64 -> *sync.Mutex

	// scanDelay widens the window between the overlap scan and the insert.
	scanDelay time.Duration
	// failWith makes every call return this error.
	failWith error
}

func newMemRepository() *memRepository {
	return &memRepository{
		doctors:      make(map[int64]Doctor),
		patients:     make(map[int64]Patient),
		appointments: make(map[int64]Appointment),
		slots:        make(map[int64]AvailabilitySlot),
	}
}

func (m *memRepository) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memRepository) addDoctor() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.doctors[id] = Doctor{ID: id, FirstName: "Gregory", LastName: "House", Specialty: "Diagnostics"}
	return id
}

func (m *memRepository) addPatient() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.patients[id] = Patient{ID: id, FirstName: "Jane", LastName: "Doe"}
	return id
}

// seedAppointment stores a row directly, bypassing the booking path.
func (m *memRepository) seedAppointment(a Appointment) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.id()
	m.appointments[a.ID] = a
	return a.ID
}

func (m *memRepository) seedSlot(s AvailabilitySlot) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.id()
	m.slots[s.ID] = s
	return s.ID
}

func (m *memRepository) appointment(id int64) Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appointments[id]
}

func (m *memRepository) slot(id int64) AvailabilitySlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[id]
}

func (m *memRepository) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.EventType)
	}
	return out
}

func (m *memRepository) activeFor(doctorID int64) []Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.Status.Active() {
			out = append(out, a)
		}
	}
	return out
}

func (m *memRepository) GetDoctorByID(_ context.Context, id int64) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (m *memRepository) GetPatientByID(_ context.Context, id int64) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *memRepository) GetAppointmentByID(_ context.Context, id int64) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *memRepository) FindOverlapping(_ context.Context, doctorID int64, start, end time.Time, exclude Status) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.Status != exclude && a.Overlaps(start, end) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (m *memRepository) WithDoctorBooking(ctx context.Context, doctorID int64, fn func(ctx context.Context, tx BookingTx) error) error {
	lock, _ := m.doctorLocks.LoadOrStore(doctorID, &sync.Mutex{})
	lock.(*sync.Mutex).Lock()
	defer lock.(*sync.Mutex).Unlock()

	tx := &memBookingTx{repo: m}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range tx.pending {
		m.appointments[a.ID] = a
	}
	return nil
}

type memBookingTx struct {
	repo    *memRepository
	pending []Appointment
}

func (t *memBookingTx) FindOverlapping(ctx context.Context, doctorID int64, start, end time.Time, exclude Status) ([]Appointment, error) {
	out, err := t.repo.FindOverlapping(ctx, doctorID, start, end, exclude)
	if t.repo.scanDelay > 0 {
		time.Sleep(t.repo.scanDelay)
	}
	return out, err
}

func (t *memBookingTx) InsertAppointment(_ context.Context, a NewAppointment) (int64, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	now := time.Now()
	row := Appointment{
		ID:        t.repo.id(),
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
		Status:    StatusBooked,
		Reason:    a.Reason,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.pending = append(t.pending, row)
	return row.ID, nil
}

func (m *memRepository) UpdateAppointmentStatus(_ context.Context, id int64, change StatusChange) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	a, ok := m.appointments[id]
	if !ok {
		return 0, nil
	}
	if change.Status.Active() && !a.Status.Active() {
		// mirrors the exclusion constraint
		for _, other := range m.appointments {
			if other.ID != id && other.DoctorID == a.DoctorID && other.Status.Active() && other.Overlaps(a.StartTime, a.EndTime) {
				return 0, ErrOverlapsActive
			}
		}
	}
	a.Status = change.Status
	if change.SetCancelReason {
		a.CancelReason = change.CancelReason
	}
	a.UpdatedAt = time.Now()
	m.appointments[id] = a
	return 1, nil
}

func (m *memRepository) ListAppointmentsInRange(_ context.Context, doctorID int64, from, to time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && !a.StartTime.Before(from) && !a.StartTime.After(to) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (m *memRepository) GetAvailabilitySlot(_ context.Context, id int64) (*AvailabilitySlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (m *memRepository) InsertAvailabilitySlot(_ context.Context, slot AvailabilitySlot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	slot.ID = m.id()
	m.slots[slot.ID] = slot
	return slot.ID, nil
}

func (m *memRepository) UpdateAvailabilitySlot(_ context.Context, slot AvailabilitySlot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[slot.ID]; !ok {
		return 0, nil
	}
	m.slots[slot.ID] = slot
	return 1, nil
}

func (m *memRepository) DeleteAvailabilitySlot(_ context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[id]; !ok {
		return 0, nil
	}
	delete(m.slots, id)
	return 1, nil
}

func (m *memRepository) ListAvailability(_ context.Context, doctorID int64, filter AvailabilityFilter) ([]AvailabilitySlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AvailabilitySlot
	for _, s := range m.slots {
		if s.DoctorID != doctorID {
			continue
		}
		if filter.Date != nil {
			if !s.AvailableDate.Equal(StartOfDay(*filter.Date)) {
				continue
			}
		} else if s.AvailableDate.Before(StartOfDay(filter.From)) || s.AvailableDate.After(StartOfDay(filter.To)) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AvailableDate.Equal(out[j].AvailableDate) {
			return out[i].AvailableDate.Before(out[j].AvailableDate)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (m *memRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.EventType == "" {
		return errors.New("event type is required")
	}
	m.events = append(m.events, ev)
	return nil
}

func sortAppointments(as []Appointment) {
	sort.Slice(as, func(i, j int) bool {
		if !as[i].StartTime.Equal(as[j].StartTime) {
			return as[i].StartTime.Before(as[j].StartTime)
		}
		return as[i].ID < as[j].ID
	})
}
