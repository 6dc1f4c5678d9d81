package clinic

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// memRepo is an in-memory Repository used by the package tests. It mirrors
// the store's behavior including the doctor/date uniqueness rule over
// active statuses.
type memRepo struct {
	doctors  map[uuid.UUID]*Doctor
	patients map[uuid.UUID]*Patient
	appts    map[uuid.UUID]*Appointment
	avail    map[uuid.UUID][]AvailabilitySlot
	events   []EventLog

	failReplaceAvail error // injected ReplaceAvailability failure
}

func newMemRepo() *memRepo {
	return &memRepo{
		doctors:  make(map[uuid.UUID]*Doctor),
		patients: make(map[uuid.UUID]*Patient),
		appts:    make(map[uuid.UUID]*Appointment),
		avail:    make(map[uuid.UUID][]AvailabilitySlot),
	}
}

func (m *memRepo) addDoctor(d Doctor) *Doctor {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.UserID == uuid.Nil {
		d.UserID = uuid.New()
	}
	m.doctors[d.ID] = &d
	return &d
}

func (m *memRepo) addPatient(name string) *Patient {
	p := &Patient{ID: uuid.New(), Name: name}
	m.patients[p.ID] = p
	return p
}

func (m *memRepo) activeAt(doctorUserID uuid.UUID, at time.Time, exclude *uuid.UUID) *Appointment {
	for _, a := range m.appts {
		if a.DoctorUserID != doctorUserID || !a.Date.Equal(at) || a.Status == StatusCancelled {
			continue
		}
		if exclude != nil && a.ID == *exclude {
			continue
		}
		return a
	}
	return nil
}

func isActive(s Status) bool {
	for _, active := range ActiveStatuses {
		if s == active {
			return true
		}
	}
	return false
}

func (m *memRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) GetDoctorByRef(_ context.Context, ref uuid.UUID) (*Doctor, error) {
	for _, d := range m.doctors {
		if d.ID == ref || d.UserID == ref {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrDoctorNotFound
}

func (m *memRepo) ListDoctorUserIDs(_ context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, d := range m.doctors {
		ids = append(ids, d.UserID)
	}
	return ids, nil
}

func (m *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	a, err := m.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &AppointmentDetail{Appointment: *a}
	if d, err := m.GetDoctorByRef(ctx, a.DoctorUserID); err == nil {
		detail.Doctor = d
	}
	if p, err := m.GetPatientByID(ctx, a.PatientID); err == nil {
		detail.Patient = p
	}
	return detail, nil
}

func (m *memRepo) ListAppointments(ctx context.Context, filter ListFilter) ([]AppointmentDetail, error) {
	var matched []*Appointment
	for _, a := range m.appts {
		if filter.PatientID != uuid.Nil && a.PatientID != filter.PatientID {
			continue
		}
		if filter.DoctorUserID != uuid.Nil && a.DoctorUserID != filter.DoctorUserID {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Date.After(matched[j].Date) })

	var out []AppointmentDetail
	for i, a := range matched {
		if i < filter.Offset {
			continue
		}
		if len(out) >= filter.Limit {
			break
		}
		d, err := m.GetAppointmentDetail(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

func (m *memRepo) ActiveAppointmentAt(_ context.Context, doctorUserID uuid.UUID, at time.Time, exclude *uuid.UUID) (*Appointment, error) {
	if a := m.activeAt(doctorUserID, at, exclude); a != nil {
		cp := *a
		return &cp, nil
	}
	return nil, ErrAppointmentNotFound
}

func (m *memRepo) ListActiveByDoctor(_ context.Context, doctorUserID uuid.UUID) ([]Appointment, error) {
	var out []Appointment
	for _, a := range m.appts {
		if a.DoctorUserID == doctorUserID && isActive(a.Status) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memRepo) ListOccupyingOnDay(_ context.Context, doctorUserID uuid.UUID, day time.Time) ([]Appointment, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var out []Appointment
	for _, a := range m.appts {
		if a.DoctorUserID != doctorUserID || a.Status == StatusCancelled {
			continue
		}
		if a.Date.Before(start) || !a.Date.Before(end) {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memRepo) ListActiveByIDs(_ context.Context, ids []uuid.UUID) ([]Appointment, error) {
	var out []Appointment
	for _, id := range ids {
		if a, ok := m.appts[id]; ok && isActive(a.Status) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memRepo) CreateAppointment(_ context.Context, a *Appointment) (*Appointment, error) {
	if a.Status != StatusCancelled && m.activeAt(a.DoctorUserID, a.Date, nil) != nil {
		return nil, ErrSlotTaken
	}

	cp := *a
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.appts[cp.ID] = &cp

	out := cp
	return &out, nil
}

func (m *memRepo) UpdateAppointment(_ context.Context, a *Appointment) (*Appointment, error) {
	if _, ok := m.appts[a.ID]; !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != StatusCancelled {
		exclude := a.ID
		if m.activeAt(a.DoctorUserID, a.Date, &exclude) != nil {
			return nil, ErrSlotTaken
		}
	}

	cp := *a
	cp.UpdatedAt = time.Now()
	m.appts[cp.ID] = &cp

	out := cp
	return &out, nil
}

func (m *memRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *memRepo) DeleteAppointment(_ context.Context, id uuid.UUID) error {
	if _, ok := m.appts[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(m.appts, id)
	return nil
}

func (m *memRepo) RescheduleBatch(_ context.Context, changes []SwapChange) error {
	// Validate first so a failing batch leaves everything untouched.
	next := make(map[uuid.UUID]time.Time, len(changes))
	for _, ch := range changes {
		if _, ok := m.appts[ch.AppointmentID]; !ok {
			return ErrAppointmentNotFound
		}
		next[ch.AppointmentID] = ch.NewDate
	}

	for _, ch := range changes {
		a := m.appts[ch.AppointmentID]
		for _, other := range m.appts {
			if other.ID == a.ID || other.DoctorUserID != a.DoctorUserID || other.Status == StatusCancelled {
				continue
			}
			otherDate := other.Date
			if d, ok := next[other.ID]; ok {
				otherDate = d
			}
			if otherDate.Equal(ch.NewDate) {
				return ErrSlotTaken
			}
		}
	}

	for _, ch := range changes {
		a := m.appts[ch.AppointmentID]
		a.Date = ch.NewDate
		a.UpdatedAt = time.Now()
	}
	return nil
}

func (m *memRepo) ReplaceAvailability(_ context.Context, doctorUserID uuid.UUID, slots []AvailabilitySlot) error {
	if m.failReplaceAvail != nil {
		return m.failReplaceAvail
	}
	cp := make([]AvailabilitySlot, len(slots))
	copy(cp, slots)
	m.avail[doctorUserID] = cp
	return nil
}

func (m *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	m.events = append(m.events, ev)
	return nil
}

// noopLocker runs the critical section inline; lock contention is not what
// these tests exercise.
type noopLocker struct{}

func (noopLocker) WithScheduleLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
