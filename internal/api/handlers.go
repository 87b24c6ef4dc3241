package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicware/outpatient-flow/internal/clinic"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func bookingHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		res, err := svc.Book(r.Context(), clinic.BookingRequest{
			PatientName:   req.PatientName,
			Gender:        req.Gender,
			IDCard:        req.IDCard,
			Phone:         req.Phone,
			InsuranceType: clinic.InsuranceType(req.InsuranceType),
			DoctorID:      doctorID,
			Date:          date,
			TimeSlot:      clinic.TimeSlot(req.TimeSlot),
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		outcome := OutcomeBookedNew
		status := http.StatusCreated
		if res.AlreadyBooked {
			outcome = OutcomeAlreadyBooked
			status = http.StatusOK
		}

		writeJSON(w, status, BookingResponse{
			AppointmentID: res.Appointment.ID,
			ScheduleID:    res.Schedule.ID,
			PatientID:     res.Patient.ID,
			Outcome:       outcome,
			Status:        string(res.Appointment.Status),
		})
	}
}

func checkInHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CheckInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var apptID uuid.UUID
		if req.AppointmentID != "" {
			var err error
			apptID, err = uuid.Parse(req.AppointmentID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
				return
			}
		}

		res, err := svc.CheckIn(r.Context(), clinic.CheckInRequest{
			AppointmentID: apptID,
			IDCard:        req.IDCard,
			Phone:         req.Phone,
			AssignedRoom:  req.AssignedRoom,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, CheckInResponse{
			MedicalRecordID: res.Record.ID,
			AppointmentID:   res.Appointment.ID,
			AssignedRoom:    res.Appointment.AssignedRoom,
			CheckInTime:     res.Appointment.CheckInTime,
		})
	}
}

func settlementHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SettlementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		recordID, err := uuid.Parse(req.MedicalRecordID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_medical_record_id", "medical_record_id must be a valid UUID")
			return
		}

		res, err := svc.Settle(r.Context(), clinic.SettlementRequest{
			MedicalRecordID: recordID,
			TotalAmount:     req.TotalAmount,
			InsuranceAmount: req.InsuranceAmount,
			SelfPayAmount:   req.SelfPayAmount,
			PaymentMethod:   clinic.PaymentMethod(req.PaymentMethod),
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, SettlementResponse{
			BillingID:     res.Billing.ID,
			Status:        string(res.Billing.Status),
			PaidAt:        res.Billing.PaidAt,
			AppointmentID: res.Appointment.ID,
		})
	}
}

func statsHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.Stats(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		out := make([]StatsRow, 0, len(rows))
		for _, row := range rows {
			out = append(out, StatsRow{
				Date:       row.Date.Format("2006-01-02"),
				Department: row.Department,
				Revenue:    row.Revenue,
				Visits:     row.Visits,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func recordInfoHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_medical_record_id", "id must be a valid UUID")
			return
		}

		info, err := svc.RecordInfo(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := RecordInfoResponse{
			MedicalRecordID:   info.Record.ID,
			PatientName:       info.PatientName,
			PatientIDCard:     info.PatientIDCard,
			InsuranceType:     string(info.InsuranceType),
			DoctorName:        info.DoctorName,
			DepartmentName:    info.DepartmentName,
			AppointmentStatus: string(info.AppointmentStatus),
			VisitTime:         info.Record.VisitTime,
		}
		if info.Billing != nil {
			resp.Billing = &BillingInfo{
				ID:            info.Billing.ID,
				TotalAmount:   info.Billing.TotalAmount,
				Status:        string(info.Billing.Status),
				PaidAt:        info.Billing.PaidAt,
				PaymentMethod: string(info.Billing.PaymentMethod),
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func cancelHandler(svc *clinic.Service) http.HandlerFunc {
	return terminateHandler(svc.Cancel)
}

func noShowHandler(svc *clinic.Service) http.HandlerFunc {
	return terminateHandler(svc.MarkNoShow)
}

func terminateHandler(transition func(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := transition(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AppointmentResponse{
			ID:           appt.ID,
			PatientID:    appt.PatientID,
			ScheduleID:   appt.ScheduleID,
			Status:       string(appt.Status),
			AssignedRoom: appt.AssignedRoom,
			CheckInTime:  appt.CheckInTime,
		})
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	var vErr *clinic.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "validation_failed", vErr.Error())
	case errors.Is(err, clinic.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, clinic.ErrNoScheduleForDay):
		writeError(w, http.StatusNotFound, "no_schedule_for_selection", err.Error())
	case errors.Is(err, clinic.ErrScheduleNotFound):
		writeError(w, http.StatusNotFound, "schedule_not_found", err.Error())
	case errors.Is(err, clinic.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, clinic.ErrMedicalRecordNotFound):
		writeError(w, http.StatusNotFound, "medical_record_not_found", err.Error())
	case errors.Is(err, clinic.ErrScheduleClosed):
		writeError(w, http.StatusConflict, "schedule_closed", err.Error())
	case errors.Is(err, clinic.ErrScheduleFull):
		writeError(w, http.StatusConflict, "schedule_full", err.Error())
	case errors.Is(err, clinic.ErrNotBooked):
		writeError(w, http.StatusConflict, "not_booked", err.Error())
	case errors.Is(err, clinic.ErrNotCompleted):
		writeError(w, http.StatusConflict, "not_completed", err.Error())
	case errors.Is(err, clinic.ErrAlreadyPaid):
		writeError(w, http.StatusConflict, "already_paid", err.Error())
	case errors.Is(err, clinic.ErrAmountMismatch):
		writeError(w, http.StatusConflict, "amount_mismatch", err.Error())
	case errors.Is(err, clinic.ErrContended):
		writeError(w, http.StatusConflict, "contention_retry", "the slot is busy, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
