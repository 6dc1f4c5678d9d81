package clinic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken is returned when a write would give a doctor two active
	// appointments at the same instant. The store enforces this with a
	// uniqueness constraint, so it holds even when the preceding conflict
	// check raced another writer.
	ErrSlotTaken = errors.New("doctor is not available at this time")
)

// ListFilter narrows appointment listings. Zero-value fields are ignored.
type ListFilter struct {
	PatientID    uuid.UUID
	DoctorUserID uuid.UUID
	Limit        int
	Offset       int
}

// Repository contains all store interactions needed by the scheduling
// engine.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// GetDoctorByRef resolves a doctor by profile id or by clinician
	// account id.
	GetDoctorByRef(ctx context.Context, ref uuid.UUID) (*Doctor, error)
	ListDoctorUserIDs(ctx context.Context) ([]uuid.UUID, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	ListAppointments(ctx context.Context, filter ListFilter) ([]AppointmentDetail, error)

	// Conflict checking and availability derivation. These always read the
	// raw appointment set, never the cached projection.
	ActiveAppointmentAt(ctx context.Context, doctorUserID uuid.UUID, at time.Time, exclude *uuid.UUID) (*Appointment, error)

	// ListActiveByDoctor returns the doctor's scheduled and confirmed
	// appointments, the set the availability projection is built from.
	ListActiveByDoctor(ctx context.Context, doctorUserID uuid.UUID) ([]Appointment, error)

	// ListOccupyingOnDay returns every non-cancelled appointment on the
	// doctor's calendar day. Completed appointments still hold their slots,
	// the same predicate ActiveAppointmentAt applies.
	ListOccupyingOnDay(ctx context.Context, doctorUserID uuid.UUID, day time.Time) ([]Appointment, error)
	ListActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]Appointment, error)

	// Mutations. Create and UpdateAppointment return ErrSlotTaken when the
	// doctor/date uniqueness constraint rejects the write.
	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	UpdateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error

	// RescheduleBatch applies every date change in one transaction; either
	// all appointments move or none do.
	RescheduleBatch(ctx context.Context, changes []SwapChange) error

	// ReplaceAvailability swaps a doctor's entire occupied-slot projection.
	ReplaceAvailability(ctx context.Context, doctorUserID uuid.UUID, slots []AvailabilitySlot) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
