package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinichq/clinic-scheduling/internal/clinic"
)

// Actor headers are set by the upstream gateway; identity itself is out of
// scope here.
const (
	headerActorRole = "X-Actor-Role"
	headerActorID   = "X-Actor-Id"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized date format")
}

func bookAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "could not parse JSON")
			return
		}

		doctorRef, err := uuid.Parse(req.Doctor)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid doctor reference", "doctor must be a valid UUID")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid patient id", "patient_id must be a valid UUID")
			return
		}

		date, err := parseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date", err.Error())
			return
		}

		appt, err := svc.Book(r.Context(), clinic.BookParams{
			DoctorRef: doctorRef,
			PatientID: patientID,
			Date:      date,
			Reason:    req.Reason,
			Notes:     req.Notes,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func updateAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "could not parse JSON")
			return
		}

		params := clinic.UpdateParams{
			Reason: req.Reason,
			Notes:  req.Notes,
		}

		if req.Doctor != nil {
			ref, err := uuid.Parse(*req.Doctor)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid doctor reference", "doctor must be a valid UUID")
				return
			}
			params.DoctorRef = &ref
		}

		if req.Date != nil {
			date, err := parseDate(*req.Date)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid date", err.Error())
				return
			}
			params.Date = &date
		}

		if req.Status != nil {
			status := clinic.Status(*req.Status)
			switch status {
			case clinic.StatusScheduled, clinic.StatusConfirmed, clinic.StatusCompleted, clinic.StatusCancelled:
			default:
				writeError(w, http.StatusBadRequest, "invalid status", "unknown status value")
				return
			}
			params.Status = &status
		}

		appt, err := svc.Update(r.Context(), id, params)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Cancel(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func deleteAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			handleServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func bulkSwapHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BulkSwapRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "could not parse JSON")
			return
		}

		ids := make([]uuid.UUID, 0, len(req.AppointmentIDs))
		for _, raw := range req.AppointmentIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid appointment id", "appointmentIds must be valid UUIDs")
				return
			}
			ids = append(ids, id)
		}

		targetDate, err := parseDate(req.TargetDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid target date", err.Error())
			return
		}

		params := clinic.SwapParams{
			AppointmentIDs: ids,
			TargetDate:     targetDate,
			ActorRole:      r.Header.Get(headerActorRole),
		}

		if actorID, err := uuid.Parse(r.Header.Get(headerActorID)); err == nil {
			params.ActorID = actorID
		}

		if req.DoctorID != nil {
			ref, err := uuid.Parse(*req.DoctorID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid doctor id", "doctorId must be a valid UUID")
				return
			}
			params.DoctorRef = &ref
		}

		changes, err := svc.Swap(r.Context(), params)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := BulkSwapResponse{Changes: make([]SwapChangeResponse, 0, len(changes))}
		for _, ch := range changes {
			resp.Changes = append(resp.Changes, SwapChangeResponse{
				AppointmentID: ch.AppointmentID,
				OldDate:       ch.OldDate,
				NewDate:       ch.NewDate,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func doctorAvailabilityHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid doctor id", "id must be a valid UUID")
			return
		}

		dateStr := r.URL.Query().Get("date")
		if dateStr == "" {
			writeError(w, http.StatusBadRequest, "missing date", "date query parameter is required (YYYY-MM-DD)")
			return
		}
		day, err := parseDate(dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date", err.Error())
			return
		}

		grid, err := svc.DayGrid(r.Context(), ref, day)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := AvailabilityResponse{
			Date:  day.Format("2006-01-02"),
			Slots: make([]GridSlotResponse, 0, len(grid)),
		}
		for _, s := range grid {
			resp.Slots = append(resp.Slots, GridSlotResponse{Time: s.Label, Available: s.Available})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		detail, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toDetailResponse(detail))
	}
}

func listAppointmentsHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter clinic.ListFilter

		if v := r.URL.Query().Get("patient_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid patient id", "patient_id must be a valid UUID")
				return
			}
			filter.PatientID = id
		}
		if v := r.URL.Query().Get("doctor_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid doctor id", "doctor_id must be a valid UUID")
				return
			}
			filter.DoctorUserID = id
		}
		filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
		filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

		details, err := svc.ListAppointments(r.Context(), filter)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		out := make([]AppointmentResponse, 0, len(details))
		for i := range details {
			out = append(out, toDetailResponse(&details[i]))
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func toAppointmentResponse(a *clinic.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		DoctorUserID:    a.DoctorUserID,
		PatientID:       a.PatientID,
		Date:            a.Date,
		Reason:          a.Reason,
		Notes:           a.Notes,
		Status:          string(a.Status),
		IsRescheduled:   a.IsRescheduled,
		OriginalDate:    a.OriginalDate,
		RescheduleCount: a.RescheduleCount,
	}
}

func toDetailResponse(d *clinic.AppointmentDetail) AppointmentResponse {
	resp := toAppointmentResponse(&d.Appointment)
	if d.Doctor != nil {
		resp.DoctorName = d.Doctor.Name
	}
	if d.Patient != nil {
		resp.PatientName = d.Patient.Name
	}
	return resp
}

func handleServiceError(w http.ResponseWriter, err error) {
	var insufficient *clinic.InsufficientSlotsError

	switch {
	case errors.Is(err, clinic.ErrDoctorNotFound),
		errors.Is(err, clinic.ErrPatientNotFound),
		errors.Is(err, clinic.ErrAppointmentNotFound),
		errors.Is(err, clinic.ErrNoSwappable):
		writeError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, clinic.ErrSlotTaken):
		writeError(w, http.StatusBadRequest, "Doctor is not available at this time", "")
	case errors.As(err, &insufficient):
		writeError(w, http.StatusBadRequest, insufficient.Error(), "")
	case errors.Is(err, clinic.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, clinic.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, clinic.ErrScheduleBusy):
		writeError(w, http.StatusConflict, err.Error(), "schedule is locked by another request, retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}
