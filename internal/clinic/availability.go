package clinic

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinichq/clinic-scheduling/internal/schedule"
)

// ResyncAvailability rebuilds a doctor's derived occupied-slot projection
// from the active appointment set. The projection is replaced in full, so
// two consecutive calls with no intervening appointment change produce
// identical rows. It is safe to call at any time; the appointment set alone
// is authoritative.
func (s *Service) ResyncAvailability(ctx context.Context, doctorUserID uuid.UUID) error {
	appts, err := s.repo.ListActiveByDoctor(ctx, doctorUserID)
	if err != nil {
		return fmt.Errorf("list active appointments: %w", err)
	}

	width := time.Duration(s.cfg.SlotInterval) * time.Minute

	slots := make([]AvailabilitySlot, 0, len(appts))
	for _, a := range appts {
		slots = append(slots, AvailabilitySlot{
			DoctorUserID:  doctorUserID,
			Day:           midnight(a.Date),
			StartTime:     schedule.Label(a.Date),
			EndTime:       schedule.Label(a.Date.Add(width)),
			AppointmentID: a.ID,
		})
	}

	if err := s.repo.ReplaceAvailability(ctx, doctorUserID, slots); err != nil {
		return fmt.Errorf("replace availability: %w", err)
	}

	return nil
}

// resyncLogged is the write-path variant: a failed resync must never fail
// the appointment write that triggered it, so it only logs. The periodic
// worker repairs any divergence.
func (s *Service) resyncLogged(ctx context.Context, doctorUserID uuid.UUID) {
	if err := s.ResyncAvailability(ctx, doctorUserID); err != nil {
		s.log.Error().Err(err).
			Stringer("doctor_user_id", doctorUserID).
			Msg("availability resync failed")
	}
}

// ResyncAllDoctors rebuilds every doctor's projection. Used by the resync
// worker as the compensating control for resyncs that failed in-line.
func (s *Service) ResyncAllDoctors(ctx context.Context) error {
	ids, err := s.repo.ListDoctorUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list doctors: %w", err)
	}

	for _, id := range ids {
		if err := s.ResyncAvailability(ctx, id); err != nil {
			s.log.Error().Err(err).
				Stringer("doctor_user_id", id).
				Msg("full resync: doctor failed")
			continue
		}
	}

	return nil
}

// DayGrid computes a doctor's full-day slot grid for one calendar day,
// marking each slot available unless a non-cancelled appointment starts
// there. The grid always reads the raw appointment set, never the
// projection, so it agrees with what booking would accept.
func (s *Service) DayGrid(ctx context.Context, doctorRef uuid.UUID, day time.Time) ([]GridSlot, error) {
	doctor, err := s.repo.GetDoctorByRef(ctx, doctorRef)
	if err != nil {
		return nil, err
	}

	start, end := s.window(doctor)
	labels, err := schedule.Generate(start, end, s.cfg.SlotInterval)
	if err != nil {
		return nil, fmt.Errorf("%w: bad working window %s-%s", ErrValidation, start, end)
	}

	occupying, err := s.repo.ListOccupyingOnDay(ctx, doctor.UserID, day)
	if err != nil {
		return nil, fmt.Errorf("list day appointments: %w", err)
	}

	occupied := make(map[string]bool, len(occupying))
	for _, a := range occupying {
		occupied[schedule.Label(a.Date)] = true
	}

	grid := make([]GridSlot, 0, len(labels))
	for _, l := range labels {
		grid = append(grid, GridSlot{Label: l, Available: !occupied[l]})
	}

	return grid, nil
}

// window returns the doctor's working-hour bounds, falling back to the
// clinic-wide defaults when the profile does not set them.
func (s *Service) window(d *Doctor) (string, string) {
	start, end := s.cfg.WorkDayStart, s.cfg.WorkDayEnd
	if d.DayStart != nil && *d.DayStart != "" {
		start = *d.DayStart
	}
	if d.DayEnd != nil && *d.DayEnd != "" {
		end = *d.DayEnd
	}
	return start, end
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
