package clinic

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) appointmentStatus(id uuid.UUID) AppointmentStatus {
	var status AppointmentStatus
	f.store.view(func(st *memState) {
		status = st.appointments[id].Status
	})
	return status
}

func TestCancelReopensFullSchedule(t *testing.T) {
	f := newFixture(1, ScheduleOpen)

	booked, err := f.svc.Book(context.Background(), f.bookingRequest(1))
	require.NoError(t, err)
	require.Equal(t, ScheduleFull, f.scheduleStatus())

	appt, err := f.svc.Cancel(context.Background(), booked.Appointment.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, appt.Status)
	assert.Equal(t, ScheduleOpen, f.scheduleStatus())

	// The freed seat is bookable again.
	_, err = f.svc.Book(context.Background(), f.bookingRequest(2))
	require.NoError(t, err)
	assert.Equal(t, ScheduleFull, f.scheduleStatus())
}

func TestCancelLeavesClosedScheduleClosed(t *testing.T) {
	f := newFixture(1, ScheduleOpen)

	booked, err := f.svc.Book(context.Background(), f.bookingRequest(1))
	require.NoError(t, err)

	// Operator shut the slot down after it filled.
	f.store.view(func(st *memState) {
		s := st.schedules[f.schedule.ID]
		s.Status = ScheduleClosed
		st.schedules[f.schedule.ID] = s
	})

	_, err = f.svc.Cancel(context.Background(), booked.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, ScheduleClosed, f.scheduleStatus())
}

func TestCancelRequiresBookedStatus(t *testing.T) {
	f := newFixture(3, ScheduleOpen)
	visit := bookAndCheckIn(t, f, 1)

	_, err := f.svc.Cancel(context.Background(), visit.Appointment.ID)
	assert.ErrorIs(t, err, ErrNotBooked)
	assert.Equal(t, StatusCompleted, f.appointmentStatus(visit.Appointment.ID))
}

func TestCancelUnknownAppointment(t *testing.T) {
	f := newFixture(3, ScheduleOpen)

	_, err := f.svc.Cancel(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestMarkNoShowReopensFullSchedule(t *testing.T) {
	f := newFixture(1, ScheduleOpen)

	booked, err := f.svc.Book(context.Background(), f.bookingRequest(1))
	require.NoError(t, err)
	require.Equal(t, ScheduleFull, f.scheduleStatus())

	appt, err := f.svc.MarkNoShow(context.Background(), booked.Appointment.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusNoShow, appt.Status)
	assert.Equal(t, ScheduleOpen, f.scheduleStatus())
}

func TestMarkNoShowRequiresBookedStatus(t *testing.T) {
	f := newFixture(3, ScheduleOpen)

	booked, err := f.svc.Book(context.Background(), f.bookingRequest(1))
	require.NoError(t, err)
	_, err = f.svc.Cancel(context.Background(), booked.Appointment.ID)
	require.NoError(t, err)

	_, err = f.svc.MarkNoShow(context.Background(), booked.Appointment.ID)
	assert.ErrorIs(t, err, ErrNotBooked)
	assert.Equal(t, StatusCancelled, f.appointmentStatus(booked.Appointment.ID))
}

func TestSweepNoShows(t *testing.T) {
	f := newFixture(5, ScheduleOpen)

	stale, err := f.svc.Book(context.Background(), f.bookingRequest(1))
	require.NoError(t, err)
	visited := bookAndCheckIn(t, f, 2)

	// A later schedule for the same doctor; its booking must survive the
	// sweep untouched.
	future := Schedule{
		ID:       uuid.New(),
		DoctorID: f.doctor.ID,
		Date:     date(2026, 9, 5),
		TimeSlot: SlotMorning,
		RoomNo:   "R201",
		Capacity: 5,
		Status:   ScheduleOpen,
	}
	f.store.view(func(st *memState) {
		st.schedules[future.ID] = future
	})
	req := f.bookingRequest(3)
	req.Date = future.Date
	upcoming, err := f.svc.Book(context.Background(), req)
	require.NoError(t, err)

	swept, err := f.svc.SweepNoShows(context.Background(), date(2026, 9, 2))
	require.NoError(t, err)

	assert.Equal(t, 1, swept)
	assert.Equal(t, StatusNoShow, f.appointmentStatus(stale.Appointment.ID))
	assert.Equal(t, StatusCompleted, f.appointmentStatus(visited.Appointment.ID))
	assert.Equal(t, StatusBooked, f.appointmentStatus(upcoming.Appointment.ID))
}

func TestSweepNoShowsNothingDue(t *testing.T) {
	f := newFixture(5, ScheduleOpen)

	booked, err := f.svc.Book(context.Background(), f.bookingRequest(1))
	require.NoError(t, err)

	swept, err := f.svc.SweepNoShows(context.Background(), f.schedule.Date)
	require.NoError(t, err)

	assert.Zero(t, swept)
	assert.Equal(t, StatusBooked, f.appointmentStatus(booked.Appointment.ID))
}
