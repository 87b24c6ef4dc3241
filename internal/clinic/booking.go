package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/clinicware/outpatient-flow/internal/redis"
)

type BookingRequest struct {
	PatientName   string
	Gender        string
	IDCard        string
	Phone         string
	InsuranceType InsuranceType
	DoctorID      uuid.UUID
	Date          time.Time
	TimeSlot      TimeSlot
}

func (r BookingRequest) Validate() error {
	if r.PatientName == "" {
		return &ValidationError{Field: "patient_name", Reason: "required"}
	}
	if r.IDCard == "" {
		return &ValidationError{Field: "id_card", Reason: "required"}
	}
	if r.Phone == "" {
		return &ValidationError{Field: "phone", Reason: "required"}
	}
	switch r.InsuranceType {
	case InsurancePublic, InsurancePrivate, InsuranceSelfPay:
	default:
		return &ValidationError{Field: "insurance_type", Reason: "must be PUBLIC, PRIVATE or SELF"}
	}
	if r.DoctorID == uuid.Nil {
		return &ValidationError{Field: "doctor_id", Reason: "required"}
	}
	if r.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "required"}
	}
	switch r.TimeSlot {
	case SlotMorning, SlotAfternoon, SlotEvening:
	default:
		return &ValidationError{Field: "time_slot", Reason: "must be AM, PM or EV"}
	}
	return nil
}

// gateKey identifies the slot before its schedule row id is known; the
// (doctor, date, time slot) triple is unique per schedule.
func (r BookingRequest) gateKey() string {
	return fmt.Sprintf("%s:%s:%s", r.DoctorID, r.Date.Format("2006-01-02"), r.TimeSlot)
}

type BookingResult struct {
	Appointment   *Appointment
	Patient       *Patient
	Schedule      *Schedule
	AlreadyBooked bool
}

// Book admits a patient onto a schedule slot, or returns the existing
// appointment untouched when the same patient already holds one.
//
// The whole decision runs under an exclusive lock on the schedule row:
// the occupancy count, the capacity comparison and the FULL flip are one
// atomic read-decide-write. Reading the count and the status as separate
// unlocked queries would let two bookings both observe a free seat.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var res *BookingResult

	err := s.gate.WithScheduleGate(ctx, req.gateKey(), func(gateCtx context.Context) error {
		return s.repo.ExecTx(gateCtx, func(q Queries) error {
			patient, err := q.EnsurePatient(gateCtx, Patient{
				Name:          req.PatientName,
				Gender:        req.Gender,
				IDCard:        req.IDCard,
				Phone:         req.Phone,
				InsuranceType: req.InsuranceType,
			})
			if err != nil {
				return fmt.Errorf("resolve patient: %w", err)
			}

			sched, err := q.FindScheduleForUpdate(gateCtx, req.DoctorID, req.Date, req.TimeSlot)
			if err != nil {
				return err
			}

			if sched.Status == ScheduleClosed {
				return ErrScheduleClosed
			}

			active, err := q.CountActiveAppointments(gateCtx, sched.ID)
			if err != nil {
				return err
			}

			// Idempotent re-booking short-circuits before the capacity
			// check; holding a seat is not a reason to be turned away.
			existing, err := q.GetAppointmentForPatientSchedule(gateCtx, patient.ID, sched.ID)
			if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
				return fmt.Errorf("check existing appointment: %w", err)
			}
			if existing != nil {
				res = &BookingResult{
					Appointment:   existing,
					Patient:       patient,
					Schedule:      sched,
					AlreadyBooked: true,
				}
				return nil
			}

			if active >= sched.Capacity || sched.Status == ScheduleFull {
				return ErrScheduleFull
			}

			appt, err := q.CreateBookedAppointment(gateCtx, patient.ID, sched.ID)
			if err != nil {
				return fmt.Errorf("create appointment: %w", err)
			}

			if active+1 >= sched.Capacity {
				if err := q.SetScheduleStatus(gateCtx, sched.ID, ScheduleFull); err != nil {
					return err
				}
				sched.Status = ScheduleFull
			}

			if err := logEvent(gateCtx, q, appt.ID, EventAppointmentBooked, map[string]any{
				"schedule_id": sched.ID.String(),
				"patient_id":  patient.ID.String(),
			}); err != nil {
				return err
			}

			res = &BookingResult{
				Appointment: appt,
				Patient:     patient,
				Schedule:    sched,
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrGateHeld) {
			return nil, fmt.Errorf("%w: %s", ErrContended, err)
		}
		return nil, err
	}

	return res, nil
}
