package clinic

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// WithStoreTimeout bounds every repository call with its own deadline so a
// stalled store connection cannot hold a request (or a schedule lock) open
// indefinitely. A non-positive timeout returns the repository unchanged.
func WithStoreTimeout(next Repository, timeout time.Duration) Repository {
	if timeout <= 0 {
		return next
	}
	return &timeoutRepository{next: next, timeout: timeout}
}

type timeoutRepository struct {
	next    Repository
	timeout time.Duration
}

func (r *timeoutRepository) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *timeoutRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.next.GetPatientByID(ctx, id)
}

func (r *timeoutRepository) GetDoctorByRef(ctx context.Context, ref uuid.UUID) (*Doctor, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.next.GetDoctorByRef(ctx, ref)
}

func (r *timeoutRepository) ListDoctorUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.next.ListDoctorUserIDs(ctx)
}

func (r *timeoutRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.next.GetAppointmentByID(ctx, id)
}

func (r *timeoutRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.next.GetAppointmentDetail(ctx, id)
}

func (r *timeoutRepository) ListAppointments(ctx context.Context, filter ListFilter) ([]AppointmentDetail, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.next.ListAppointments(ctx, filter)
}

func (r *timeoutRepository) ActiveAppointmentAt(ctx context.Context, doctorUserID uuid.UUID, at time.Time, exclude *uuid.UUID) (*Appointment, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.next.ActiveAppointmentAt(ctx, doctorUserID, at, exclude)
}

func (r *timeoutRepository) ListActiveByDoctor(ctx context.Context, doctorUserID uuid.UUID) ([]Appointment, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.next.ListActiveByDoctor(ctx, doctorUserID)
}

func (r *timeoutRepository) ListOccupyingOnDay(ctx context.Context, doctorUserID uuid.UUID, day time.Time) ([]Appointment, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.next.ListOccupyingOnDay(ctx, doctorUserID, day)
}

func (r *timeoutRepository) ListActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]Appointment, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.next.ListActiveByIDs(ctx, ids)
}

func (r *timeoutRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.next.CreateAppointment(ctx, a)
}

func (r *timeoutRepository) UpdateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.next.UpdateAppointment(ctx, a)
}

func (r *timeoutRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.next.UpdateAppointmentStatus(ctx, id, from, to)
}

func (r *timeoutRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.next.DeleteAppointment(ctx, id)
}

func (r *timeoutRepository) RescheduleBatch(ctx context.Context, changes []SwapChange) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.next.RescheduleBatch(ctx, changes)
}

func (r *timeoutRepository) ReplaceAvailability(ctx context.Context, doctorUserID uuid.UUID, slots []AvailabilitySlot) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.next.ReplaceAvailability(ctx, doctorUserID, slots)
}

func (r *timeoutRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.next.InsertEvent(ctx, ev)
}
