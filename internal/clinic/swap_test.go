package clinic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinichq/clinic-scheduling/internal/schedule"
)

func strPtr(s string) *string { return &s }

func mustBook(t *testing.T, svc *Service, doctor *Doctor, patient *Patient, when time.Time) *Appointment {
	t.Helper()
	appt, err := svc.Book(context.Background(), BookParams{
		DoctorRef: doctor.UserID, PatientID: patient.ID, Date: when, Reason: "check",
	})
	if err != nil {
		t.Fatalf("booking %v failed: %v", when, err)
	}
	return appt
}

func TestSwap_ExactFit(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	// Window 09:00-10:30 gives exactly three 30-minute slots.
	doctor := repo.addDoctor(Doctor{Name: "Dr. Osei", DayStart: strPtr("09:00"), DayEnd: strPtr("10:30")})
	patient := repo.addPatient("Ada")

	a := mustBook(t, svc, doctor, patient, at("2025-06-02", "09:00"))
	b := mustBook(t, svc, doctor, patient, at("2025-06-02", "09:30"))
	c := mustBook(t, svc, doctor, patient, at("2025-06-02", "10:00"))

	target := at("2025-06-09", "00:00")
	changes, err := svc.Swap(context.Background(), SwapParams{
		AppointmentIDs: []uuid.UUID{a.ID, b.ID, c.ID},
		TargetDate:     target,
	})
	if err != nil {
		t.Fatalf("swap failed: %v", err)
	}
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(changes))
	}

	grid := map[string]bool{"09:00": true, "09:30": true, "10:00": true}
	seen := make(map[time.Time]bool)
	for _, ch := range changes {
		if !sameDay(ch.NewDate, target) {
			t.Errorf("new date %v not on target day", ch.NewDate)
		}
		if !grid[schedule.Label(ch.NewDate)] {
			t.Errorf("new date %v not aligned to a generated slot", ch.NewDate)
		}
		if seen[ch.NewDate] {
			t.Errorf("duplicate new date %v", ch.NewDate)
		}
		seen[ch.NewDate] = true
	}

	// Submission order is priority order: first id gets the earliest slot.
	if schedule.Label(changes[0].NewDate) != "09:00" ||
		schedule.Label(changes[1].NewDate) != "09:30" ||
		schedule.Label(changes[2].NewDate) != "10:00" {
		t.Errorf("assignment out of submission order: %v", changes)
	}
}

func TestSwap_InsufficientSlotsIsNoOp(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	// Window 09:00-10:00 gives only two slots.
	doctor := repo.addDoctor(Doctor{Name: "Dr. Osei", DayStart: strPtr("09:00"), DayEnd: strPtr("10:00")})
	patient := repo.addPatient("Ada")

	a := mustBook(t, svc, doctor, patient, at("2025-06-02", "09:00"))
	b := mustBook(t, svc, doctor, patient, at("2025-06-02", "09:30"))
	c := mustBook(t, svc, doctor, patient, at("2025-06-03", "09:00"))
	originals := map[uuid.UUID]time.Time{a.ID: a.Date, b.ID: b.Date, c.ID: c.Date}

	_, err := svc.Swap(context.Background(), SwapParams{
		AppointmentIDs: []uuid.UUID{a.ID, b.ID, c.ID},
		TargetDate:     at("2025-06-09", "00:00"),
	})

	var insufficient *InsufficientSlotsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientSlotsError, got %v", err)
	}
	if insufficient.Need != 3 || insufficient.Have != 2 {
		t.Errorf("counts = need %d have %d, want need 3 have 2", insufficient.Need, insufficient.Have)
	}

	for id, want := range originals {
		got, _ := repo.GetAppointmentByID(context.Background(), id)
		if !got.Date.Equal(want) {
			t.Errorf("appointment %s moved to %v on a failed swap", id, got.Date)
		}
	}
}

func TestSwap_TightWindowEndToEnd(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	doctor := repo.addDoctor(Doctor{Name: "Dr. Osei", DayStart: strPtr("10:00"), DayEnd: strPtr("11:00")})
	patient := repo.addPatient("Ada")

	a := mustBook(t, svc, doctor, patient, at("2025-06-02", "10:00"))
	b := mustBook(t, svc, doctor, patient, at("2025-06-02", "10:30"))

	target := at("2025-06-09", "00:00")
	changes, err := svc.Swap(context.Background(), SwapParams{
		AppointmentIDs: []uuid.UUID{a.ID, b.ID},
		TargetDate:     target,
	})
	if err != nil {
		t.Fatalf("swap failed: %v", err)
	}

	if schedule.Label(changes[0].NewDate) != "10:00" || changes[0].AppointmentID != a.ID {
		t.Errorf("first submitted appointment should take 10:00, got %v", changes[0])
	}
	if schedule.Label(changes[1].NewDate) != "10:30" || changes[1].AppointmentID != b.ID {
		t.Errorf("second submitted appointment should take 10:30, got %v", changes[1])
	}
}

func TestSwap_SkipsOccupiedTargetSlots(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	doctor := repo.addDoctor(Doctor{Name: "Dr. Osei", DayStart: strPtr("09:00"), DayEnd: strPtr("10:30")})
	patient := repo.addPatient("Ada")

	// 09:00 on the target day is already held.
	mustBook(t, svc, doctor, patient, at("2025-06-09", "09:00"))
	moving := mustBook(t, svc, doctor, patient, at("2025-06-02", "09:00"))

	changes, err := svc.Swap(context.Background(), SwapParams{
		AppointmentIDs: []uuid.UUID{moving.ID},
		TargetDate:     at("2025-06-09", "00:00"),
	})
	if err != nil {
		t.Fatalf("swap failed: %v", err)
	}
	if schedule.Label(changes[0].NewDate) != "09:30" {
		t.Errorf("expected first open slot 09:30, got %s", schedule.Label(changes[0].NewDate))
	}
}

func TestSwap_TreatsCompletedAsOccupied(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	doctor := repo.addDoctor(Doctor{Name: "Dr. Osei", DayStart: strPtr("09:00"), DayEnd: strPtr("10:00")})
	patient := repo.addPatient("Ada")

	// A completed appointment holds 09:00 on the target day.
	done := mustBook(t, svc, doctor, patient, at("2025-06-09", "09:00"))
	confirmed := StatusConfirmed
	if _, err := svc.Update(context.Background(), done.ID, UpdateParams{Status: &confirmed}); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	completed := StatusCompleted
	if _, err := svc.Update(context.Background(), done.ID, UpdateParams{Status: &completed}); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	moving := mustBook(t, svc, doctor, patient, at("2025-06-02", "09:00"))

	changes, err := svc.Swap(context.Background(), SwapParams{
		AppointmentIDs: []uuid.UUID{moving.ID},
		TargetDate:     at("2025-06-09", "00:00"),
	})
	if err != nil {
		t.Fatalf("swap onto a day with a completed occupant failed: %v", err)
	}
	if schedule.Label(changes[0].NewDate) != "09:30" {
		t.Errorf("expected the free 09:30 slot, got %s", schedule.Label(changes[0].NewDate))
	}
}

func TestSwap_RejectsMixedDoctorBatch(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	docA := repo.addDoctor(Doctor{Name: "Dr. A"})
	docB := repo.addDoctor(Doctor{Name: "Dr. B"})
	patient := repo.addPatient("Ada")

	a := mustBook(t, svc, docA, patient, at("2025-06-02", "09:00"))
	b := mustBook(t, svc, docB, patient, at("2025-06-02", "09:00"))

	_, err := svc.Swap(context.Background(), SwapParams{
		AppointmentIDs: []uuid.UUID{a.ID, b.ID},
		TargetDate:     at("2025-06-09", "00:00"),
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("mixed-doctor batch without a doctor: expected ErrValidation, got %v", err)
	}

	// Naming the doctor disambiguates; the batch narrows to that doctor.
	changes, err := svc.Swap(context.Background(), SwapParams{
		AppointmentIDs: []uuid.UUID{a.ID, b.ID},
		TargetDate:     at("2025-06-09", "00:00"),
		DoctorRef:      &docA.ID,
	})
	if err != nil {
		t.Fatalf("swap failed: %v", err)
	}
	if len(changes) != 1 || changes[0].AppointmentID != a.ID {
		t.Errorf("expected only Dr. A's appointment to move: %v", changes)
	}
}

func TestSwap_ClinicianScope(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	mine := repo.addDoctor(Doctor{Name: "Dr. Mine"})
	theirs := repo.addDoctor(Doctor{Name: "Dr. Theirs"})
	patient := repo.addPatient("Ada")

	other := mustBook(t, svc, theirs, patient, at("2025-06-02", "09:00"))

	_, err := svc.Swap(context.Background(), SwapParams{
		AppointmentIDs: []uuid.UUID{other.ID},
		TargetDate:     at("2025-06-09", "00:00"),
		ActorRole:      RoleDoctor,
		ActorID:        mine.UserID,
	})
	if !errors.Is(err, ErrNoSwappable) {
		t.Errorf("clinician swapping another doctor's appointments: expected ErrNoSwappable, got %v", err)
	}

	own := mustBook(t, svc, mine, patient, at("2025-06-02", "09:00"))
	changes, err := svc.Swap(context.Background(), SwapParams{
		AppointmentIDs: []uuid.UUID{own.ID, other.ID},
		TargetDate:     at("2025-06-09", "00:00"),
		ActorRole:      RoleDoctor,
		ActorID:        mine.UserID,
	})
	if err != nil {
		t.Fatalf("swap failed: %v", err)
	}
	if len(changes) != 1 || changes[0].AppointmentID != own.ID {
		t.Errorf("swap should only touch the clinician's own appointments: %v", changes)
	}
}

func TestSwap_ExcludesCancelled(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	doctor := repo.addDoctor(Doctor{Name: "Dr. Osei"})
	patient := repo.addPatient("Ada")

	appt := mustBook(t, svc, doctor, patient, at("2025-06-02", "09:00"))
	if _, err := svc.Cancel(context.Background(), appt.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	_, err := svc.Swap(context.Background(), SwapParams{
		AppointmentIDs: []uuid.UUID{appt.ID},
		TargetDate:     at("2025-06-09", "00:00"),
	})
	if !errors.Is(err, ErrNoSwappable) {
		t.Errorf("expected ErrNoSwappable for cancelled appointment, got %v", err)
	}
}

func TestSwap_ValidatesInput(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	if _, err := svc.Swap(context.Background(), SwapParams{
		TargetDate: at("2025-06-09", "00:00"),
	}); !errors.Is(err, ErrValidation) {
		t.Errorf("empty id list: expected ErrValidation, got %v", err)
	}

	if _, err := svc.Swap(context.Background(), SwapParams{
		AppointmentIDs: []uuid.UUID{uuid.New()},
	}); !errors.Is(err, ErrValidation) {
		t.Errorf("zero target date: expected ErrValidation, got %v", err)
	}

	if _, err := svc.Swap(context.Background(), SwapParams{
		AppointmentIDs: []uuid.UUID{uuid.New()},
		TargetDate:     at("2025-06-09", "00:00"),
	}); !errors.Is(err, ErrNoSwappable) {
		t.Errorf("unknown ids: expected ErrNoSwappable, got %v", err)
	}
}

func TestSwap_RefreshesProjection(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	doctor := repo.addDoctor(Doctor{Name: "Dr. Osei", DayStart: strPtr("09:00"), DayEnd: strPtr("10:00")})
	patient := repo.addPatient("Ada")

	appt := mustBook(t, svc, doctor, patient, at("2025-06-02", "09:00"))

	if _, err := svc.Swap(context.Background(), SwapParams{
		AppointmentIDs: []uuid.UUID{appt.ID},
		TargetDate:     at("2025-06-09", "00:00"),
	}); err != nil {
		t.Fatalf("swap failed: %v", err)
	}

	slots := repo.avail[doctor.UserID]
	if len(slots) != 1 {
		t.Fatalf("projection holds %d slots, want 1", len(slots))
	}
	wantDay := at("2025-06-09", "00:00")
	if !sameDay(slots[0].Day, wantDay) {
		t.Errorf("projection day = %v, want target day", slots[0].Day)
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
