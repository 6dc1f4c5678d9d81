package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/clinichq/clinic-scheduling/internal/redis"
	"github.com/clinichq/clinic-scheduling/internal/schedule"
)

type SwapParams struct {
	AppointmentIDs []uuid.UUID
	TargetDate     time.Time
	DoctorRef      *uuid.UUID // optional; without it the batch must be single-doctor
	ActorRole      string     // forwarded by the gateway; RoleDoctor narrows ownership
	ActorID        uuid.UUID
}

// Swap reassigns a batch of appointments onto the open slots of one target
// day for a single doctor. Assignment is greedy by position: the i-th
// appointment in submission order takes the i-th open slot. Submission
// order is the priority order; callers rank their batch by it.
//
// The feasibility check and the date updates run under a doctor-day lock
// and the updates commit in one transaction, so a failed swap leaves every
// appointment untouched.
func (s *Service) Swap(ctx context.Context, p SwapParams) ([]SwapChange, error) {
	if len(p.AppointmentIDs) == 0 {
		return nil, fmt.Errorf("%w: appointment ids are required", ErrValidation)
	}
	if p.TargetDate.IsZero() {
		return nil, fmt.Errorf("%w: target date is required", ErrValidation)
	}

	appts, err := s.repo.ListActiveByIDs(ctx, p.AppointmentIDs)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	if p.ActorRole == RoleDoctor {
		appts = filterByDoctor(appts, p.ActorID)
	}

	var doctor *Doctor
	if p.DoctorRef != nil {
		doctor, err = s.repo.GetDoctorByRef(ctx, *p.DoctorRef)
		if err != nil {
			return nil, err
		}
	} else if len(appts) > 0 {
		// Without an explicit doctor the batch must be unambiguous.
		for _, a := range appts[1:] {
			if a.DoctorUserID != appts[0].DoctorUserID {
				return nil, fmt.Errorf("%w: appointments belong to more than one doctor", ErrValidation)
			}
		}
		doctor, err = s.repo.GetDoctorByRef(ctx, appts[0].DoctorUserID)
		if err != nil {
			return nil, err
		}
	}
	if doctor != nil {
		appts = filterByDoctor(appts, doctor.UserID)
	}

	if len(appts) == 0 {
		return nil, ErrNoSwappable
	}

	start, end := s.window(doctor)
	allSlots, err := schedule.Generate(start, end, s.cfg.SlotInterval)
	if err != nil {
		return nil, fmt.Errorf("%w: bad working window %s-%s", ErrValidation, start, end)
	}

	day := midnight(p.TargetDate)

	var changes []SwapChange

	err = s.locker.WithScheduleLock(ctx, redisclient.DayKey(doctor.UserID, day), func(lockCtx context.Context) error {
		// Fresh query against the appointment set; the cached projection is
		// never the authority for conflict decisions. Completed appointments
		// occupy their slots here just as they do for single bookings.
		existing, err := s.repo.ListOccupyingOnDay(lockCtx, doctor.UserID, day)
		if err != nil {
			return fmt.Errorf("list target day: %w", err)
		}

		occupied := make(map[string]bool, len(existing))
		for _, a := range existing {
			occupied[schedule.Label(a.Date)] = true
		}

		available := make([]string, 0, len(allSlots))
		for _, l := range allSlots {
			if !occupied[l] {
				available = append(available, l)
			}
		}

		if len(available) < len(appts) {
			return &InsufficientSlotsError{Date: day, Need: len(appts), Have: len(available)}
		}

		changes = make([]SwapChange, 0, len(appts))
		for i, a := range appts {
			newDate, err := schedule.At(day, available[i])
			if err != nil {
				return fmt.Errorf("combine target date with slot %q: %w", available[i], err)
			}
			changes = append(changes, SwapChange{
				AppointmentID: a.ID,
				OldDate:       a.Date,
				NewDate:       newDate,
			})
		}

		if err := s.repo.RescheduleBatch(lockCtx, changes); err != nil {
			changes = nil
			return fmt.Errorf("apply reschedule batch: %w", err)
		}

		for _, ch := range changes {
			s.logEvent(lockCtx, ch.AppointmentID, EventAppointmentsSwapped, map[string]any{
				"doctor_user_id": doctor.UserID.String(),
				"old_date":       ch.OldDate,
				"new_date":       ch.NewDate,
				"batch_size":     len(changes),
			})
		}

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	s.resyncLogged(ctx, doctor.UserID)

	return changes, nil
}

func filterByDoctor(appts []Appointment, doctorUserID uuid.UUID) []Appointment {
	out := appts[:0]
	for _, a := range appts {
		if a.DoctorUserID == doctorUserID {
			out = append(out, a)
		}
	}
	return out
}
