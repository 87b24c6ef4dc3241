package clinic

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type CheckInRequest struct {
	AppointmentID uuid.UUID
	IDCard        string
	Phone         string
	AssignedRoom  string
}

func (r CheckInRequest) Validate() error {
	if r.AppointmentID == uuid.Nil && r.IDCard == "" && r.Phone == "" {
		return &ValidationError{Field: "appointment", Reason: "appointment_id, id_card or phone is required"}
	}
	return nil
}

type CheckInResult struct {
	Appointment *Appointment
	Record      *MedicalRecord
}

// CheckIn converts a BOOKED appointment into an active visit and
// materializes its medical record, all in one transaction.
//
// The record is find-or-create keyed by the appointment; because the
// status leaves BOOKED in the same transaction, a retried check-in is
// stopped by the status guard before a second record could be created.
func (s *Service) CheckIn(ctx context.Context, req CheckInRequest) (*CheckInResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var res *CheckInResult

	err := s.repo.ExecTx(ctx, func(q Queries) error {
		appt, err := s.resolveAppointment(ctx, q, req)
		if err != nil {
			return err
		}

		appt, err = q.GetAppointmentByIDForUpdate(ctx, appt.ID)
		if err != nil {
			return err
		}
		if appt.Status != StatusBooked {
			return ErrNotBooked
		}

		sched, err := q.GetScheduleByID(ctx, appt.ScheduleID)
		if err != nil {
			return err
		}

		room := req.AssignedRoom
		if room == "" {
			room = sched.RoomNo
		}

		appt, err = q.CheckInAppointment(ctx, appt.ID, time.Now(), room)
		if err != nil {
			return fmt.Errorf("check in appointment: %w", err)
		}

		record, err := q.EnsureMedicalRecord(ctx, appt.ID, sched.DoctorID, time.Now())
		if err != nil {
			return err
		}

		if err := logEvent(ctx, q, appt.ID, EventCheckInCompleted, map[string]any{
			"medical_record_id": record.ID.String(),
			"assigned_room":     room,
		}); err != nil {
			return err
		}

		res = &CheckInResult{Appointment: appt, Record: record}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// resolveAppointment finds the target by id when given, otherwise by
// patient id-card then phone, taking the most recently created BOOKED
// appointment. Recency settles ambiguity; it is not an error.
func (s *Service) resolveAppointment(ctx context.Context, q Queries, req CheckInRequest) (*Appointment, error) {
	if req.AppointmentID != uuid.Nil {
		return q.GetAppointmentByID(ctx, req.AppointmentID)
	}
	if req.IDCard != "" {
		return q.FindLatestBookedByIDCard(ctx, req.IDCard)
	}
	return q.FindLatestBookedByPhone(ctx, req.Phone)
}
