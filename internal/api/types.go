package api

import (
	"time"

	"github.com/google/uuid"
)

type BookAppointmentRequest struct {
	Doctor    string  `json:"doctor"` // doctor profile id or clinician account id
	PatientID string  `json:"patient_id"`
	Date      string  `json:"date"` // ISO-8601
	Reason    string  `json:"reason"`
	Notes     *string `json:"notes,omitempty"`
}

type UpdateAppointmentRequest struct {
	Doctor *string `json:"doctor,omitempty"`
	Date   *string `json:"date,omitempty"`
	Reason *string `json:"reason,omitempty"`
	Notes  *string `json:"notes,omitempty"`
	Status *string `json:"status,omitempty"`
}

type BulkSwapRequest struct {
	AppointmentIDs []string `json:"appointmentIds"`
	TargetDate     string   `json:"targetDate"` // YYYY-MM-DD or ISO-8601
	DoctorID       *string  `json:"doctorId,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	DoctorUserID    uuid.UUID  `json:"doctor_user_id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	Date            time.Time  `json:"date"`
	Reason          string     `json:"reason"`
	Notes           *string    `json:"notes,omitempty"`
	Status          string     `json:"status"`
	IsRescheduled   bool       `json:"is_rescheduled"`
	OriginalDate    *time.Time `json:"original_date,omitempty"`
	RescheduleCount int        `json:"reschedule_count"`
	DoctorName      string     `json:"doctor_name,omitempty"`
	PatientName     string     `json:"patient_name,omitempty"`
}

type SwapChangeResponse struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
	OldDate       time.Time `json:"oldDate"`
	NewDate       time.Time `json:"newDate"`
}

type BulkSwapResponse struct {
	Changes []SwapChangeResponse `json:"changes"`
}

type GridSlotResponse struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

type AvailabilityResponse struct {
	Date  string             `json:"date"`
	Slots []GridSlotResponse `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
