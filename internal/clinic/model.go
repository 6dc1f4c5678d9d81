package clinic

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ActiveStatuses are the statuses the availability projection is built
// from. Occupancy checks use the broader non-cancelled predicate instead;
// a completed appointment still holds its slot.
var ActiveStatuses = []Status{StatusScheduled, StatusConfirmed}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Doctor is a clinician profile. Appointments reference the clinician's
// account id (UserID), not the profile id; callers may supply either and
// both resolve to the same row.
type Doctor struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	Specialty *string
	WorkDays  []string // nominal working weekdays, informational only
	DayStart  *string  // HH:MM working window start, nil means clinic default
	DayEnd    *string  // HH:MM working window end, nil means clinic default
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID              uuid.UUID
	DoctorUserID    uuid.UUID
	PatientID       uuid.UUID
	Date            time.Time
	Reason          string
	Notes           *string
	Status          Status
	IsRescheduled   bool
	OriginalDate    *time.Time
	RescheduleCount int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AvailabilitySlot is one entry of a doctor's derived occupied-slot
// projection. The projection is a cache of the active appointment set and
// is rebuilt wholesale, never patched.
type AvailabilitySlot struct {
	DoctorUserID  uuid.UUID
	Day           time.Time // calendar day, midnight
	StartTime     string    // HH:MM
	EndTime       string    // HH:MM
	AppointmentID uuid.UUID
}

// GridSlot is one cell of a doctor's full-day availability grid.
type GridSlot struct {
	Label     string
	Available bool
}

// SwapChange records one appointment's move during a bulk reschedule.
type SwapChange struct {
	AppointmentID uuid.UUID
	OldDate       time.Time
	NewDate       time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type AppointmentDetail struct {
	Appointment
	Doctor  *Doctor
	Patient *Patient
}
