package clinic

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Cancel releases a BOOKED appointment. The schedule row is locked first,
// then the appointment (parent before child, same order as booking), so a
// cancel racing a booking on the same slot serializes with it. Freeing a
// seat reopens a FULL schedule.
func (s *Service) Cancel(ctx context.Context, appointmentID uuid.UUID) (*Appointment, error) {
	return s.terminate(ctx, appointmentID, StatusCancelled, EventAppointmentCancelled)
}

// MarkNoShow closes out a BOOKED appointment whose patient never arrived.
func (s *Service) MarkNoShow(ctx context.Context, appointmentID uuid.UUID) (*Appointment, error) {
	return s.terminate(ctx, appointmentID, StatusNoShow, EventAppointmentNoShow)
}

func (s *Service) terminate(ctx context.Context, appointmentID uuid.UUID, to AppointmentStatus, event string) (*Appointment, error) {
	var result *Appointment

	err := s.repo.ExecTx(ctx, func(q Queries) error {
		appt, err := q.GetAppointmentByID(ctx, appointmentID)
		if err != nil {
			return err
		}

		if _, err := q.GetScheduleByIDForUpdate(ctx, appt.ScheduleID); err != nil {
			return err
		}

		appt, err = q.GetAppointmentByIDForUpdate(ctx, appt.ID)
		if err != nil {
			return err
		}
		if appt.Status != StatusBooked {
			return ErrNotBooked
		}

		appt, err = q.UpdateAppointmentStatus(ctx, appt.ID, StatusBooked, to)
		if err != nil {
			return fmt.Errorf("terminate appointment: %w", err)
		}

		if err := s.reopenIfFull(ctx, q, appt.ScheduleID); err != nil {
			return err
		}

		if err := logEvent(ctx, q, appt.ID, event, map[string]any{
			"schedule_id": appt.ScheduleID.String(),
		}); err != nil {
			return err
		}

		result = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// reopenIfFull flips a FULL schedule back to OPEN now that a seat is
// free. CLOSED stays closed; releasing a seat does not reopen bookings
// an operator shut down.
func (s *Service) reopenIfFull(ctx context.Context, q Queries, scheduleID uuid.UUID) error {
	sched, err := q.GetScheduleByID(ctx, scheduleID)
	if err != nil {
		return err
	}
	if sched.Status != ScheduleFull {
		return nil
	}

	active, err := q.CountActiveAppointments(ctx, scheduleID)
	if err != nil {
		return err
	}
	if active < sched.Capacity {
		return q.SetScheduleStatus(ctx, scheduleID, ScheduleOpen)
	}
	return nil
}

// SweepNoShows marks every BOOKED appointment on a schedule dated before
// asOf as NO_SHOW. Intended to be called by the worker periodically; each
// appointment is terminated in its own transaction so one contended row
// does not stall the sweep.
func (s *Service) SweepNoShows(ctx context.Context, asOf time.Time) (int, error) {
	var candidates []Appointment

	err := s.repo.ExecTx(ctx, func(q Queries) error {
		var err error
		candidates, err = q.FindNoShowCandidates(ctx, asOf)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("find no-show candidates: %w", err)
	}

	swept := 0
	for _, appt := range candidates {
		if _, err := s.MarkNoShow(ctx, appt.ID); err != nil {
			// Lost a race with a check-in or cancel; skip it.
			continue
		}
		swept++
	}
	return swept, nil
}
