package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinichq/clinic-scheduling/internal/config"
	redisclient "github.com/clinichq/clinic-scheduling/internal/redis"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentDeleted     = "APPOINTMENT_DELETED"
	EventAppointmentsSwapped    = "APPOINTMENTS_BULK_SWAPPED"
)

// RoleDoctor is the actor role under which bulk swaps are scoped to the
// clinician's own appointments. Identity itself is handled upstream; the
// role arrives with the request.
const RoleDoctor = "doctor"

var (
	ErrScheduleBusy      = errors.New("schedule is currently being modified, please retry")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrValidation        = errors.New("invalid request")
	ErrNoSwappable       = errors.New("no swappable appointments found")
)

// InsufficientSlotsError reports a bulk swap that cannot place every
// requested appointment. No writes happen when it is returned.
type InsufficientSlotsError struct {
	Date time.Time
	Need int
	Have int
}

func (e *InsufficientSlotsError) Error() string {
	return fmt.Sprintf("Not enough available slots on %s. Need %d but only %d available.",
		e.Date.Format("2006-01-02"), e.Need, e.Have)
}

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
	log    zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		log:    log,
	}
}

func canTransition(from, to Status) bool {
	switch from {
	case StatusScheduled:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCompleted || to == StatusCancelled
	default:
		return false
	}
}

type BookParams struct {
	DoctorRef uuid.UUID // doctor profile id or clinician account id
	PatientID uuid.UUID
	Date      time.Time
	Reason    string
	Notes     *string
}

// Book creates a single appointment. The conflict check and the insert run
// under a per doctor-instant lock, and the store's uniqueness constraint
// backstops both, so two concurrent bookings of the same slot cannot both
// commit.
func (s *Service) Book(ctx context.Context, p BookParams) (*Appointment, error) {
	if p.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrValidation)
	}
	if p.Reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrValidation)
	}

	doctor, err := s.repo.GetDoctorByRef(ctx, p.DoctorRef)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve doctor: %w", err)
	}

	if _, err := s.repo.GetPatientByID(ctx, p.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	var created *Appointment

	err = s.locker.WithScheduleLock(ctx, redisclient.InstantKey(doctor.UserID, p.Date), func(lockCtx context.Context) error {
		existing, err := s.repo.ActiveAppointmentAt(lockCtx, doctor.UserID, p.Date, nil)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check slot: %w", err)
		}
		if existing != nil {
			return ErrSlotTaken
		}

		appt, err := s.repo.CreateAppointment(lockCtx, &Appointment{
			DoctorUserID: doctor.UserID,
			PatientID:    p.PatientID,
			Date:         p.Date,
			Reason:       p.Reason,
			Notes:        p.Notes,
			Status:       StatusScheduled,
		})
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentBooked, map[string]any{
			"doctor_user_id": doctor.UserID.String(),
			"patient_id":     p.PatientID.String(),
			"date":           p.Date,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	s.resyncLogged(ctx, doctor.UserID)

	return created, nil
}

type UpdateParams struct {
	DoctorRef *uuid.UUID
	Date      *time.Time
	Reason    *string
	Notes     *string
	Status    *Status
}

// Update applies a partial update. A date change is re-validated against
// the doctor's calendar excluding the appointment itself and carries the
// reschedule bookkeeping; a doctor change resyncs both calendars.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	oldDoctorUserID := appt.DoctorUserID

	next := *appt

	if p.DoctorRef != nil {
		doctor, err := s.repo.GetDoctorByRef(ctx, *p.DoctorRef)
		if err != nil {
			return nil, err
		}
		next.DoctorUserID = doctor.UserID
	}
	if p.Reason != nil {
		next.Reason = *p.Reason
	}
	if p.Notes != nil {
		next.Notes = p.Notes
	}
	if p.Status != nil && *p.Status != appt.Status {
		if !canTransition(appt.Status, *p.Status) {
			return nil, ErrInvalidTransition
		}
		next.Status = *p.Status
	}

	dateChanging := p.Date != nil && !p.Date.Equal(appt.Date)
	doctorChanging := next.DoctorUserID != oldDoctorUserID

	if dateChanging {
		next.Date = *p.Date
		if !next.IsRescheduled {
			next.IsRescheduled = true
			orig := appt.Date
			next.OriginalDate = &orig
		}
		next.RescheduleCount++
	}

	var updated *Appointment

	if dateChanging || doctorChanging {
		err = s.locker.WithScheduleLock(ctx, redisclient.InstantKey(next.DoctorUserID, next.Date), func(lockCtx context.Context) error {
			exclude := appt.ID
			existing, err := s.repo.ActiveAppointmentAt(lockCtx, next.DoctorUserID, next.Date, &exclude)
			if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
				return fmt.Errorf("check slot: %w", err)
			}
			if existing != nil {
				return ErrSlotTaken
			}

			updated, err = s.repo.UpdateAppointment(lockCtx, &next)
			if err != nil {
				return fmt.Errorf("update appointment: %w", err)
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, redisclient.ErrLockNotAcquired) {
				return nil, ErrScheduleBusy
			}
			return nil, err
		}
	} else {
		updated, err = s.repo.UpdateAppointment(ctx, &next)
		if err != nil {
			return nil, fmt.Errorf("update appointment: %w", err)
		}
	}

	if dateChanging {
		s.logEvent(ctx, updated.ID, EventAppointmentRescheduled, map[string]any{
			"old_date":         appt.Date,
			"new_date":         updated.Date,
			"reschedule_count": updated.RescheduleCount,
		})
	}

	s.resyncLogged(ctx, updated.DoctorUserID)
	if doctorChanging {
		s.resyncLogged(ctx, oldDoctorUserID)
	}

	return updated, nil
}

// Cancel transitions an appointment to cancelled and frees its slot.
// Cancelling an already-cancelled appointment is a no-op.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.Status == StatusCancelled {
		return appt, nil
	}
	if !canTransition(appt.Status, StatusCancelled) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"doctor_user_id": updated.DoctorUserID.String(),
		"date":           updated.Date,
	})

	s.resyncLogged(ctx, updated.DoctorUserID)

	return updated, nil
}

// Delete hard-removes an appointment. Administrative use only; cancelled is
// the normal terminal state.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteAppointment(ctx, appt.ID); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}

	s.logEvent(ctx, appt.ID, EventAppointmentDeleted, map[string]any{
		"doctor_user_id": appt.DoctorUserID.String(),
		"date":           appt.Date,
	})

	s.resyncLogged(ctx, appt.DoctorUserID)

	return nil
}

// GetAppointment retrieves a fully hydrated appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// ListAppointments retrieves appointments matching the filter with clamped
// pagination.
func (s *Service) ListAppointments(ctx context.Context, filter ListFilter) ([]AppointmentDetail, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20 // default
	}
	if filter.Limit > 100 {
		filter.Limit = 100 // max
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	appointments, err := s.repo.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event_type", eventType).
			Stringer("appointment_id", appointmentID).
			Msg("insert event log")
	}
}
