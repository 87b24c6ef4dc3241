package clinic

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookCreatesAppointment(t *testing.T) {
	f := newFixture(3, ScheduleOpen)

	res, err := f.svc.Book(context.Background(), f.bookingRequest(1))
	require.NoError(t, err)

	assert.False(t, res.AlreadyBooked)
	assert.Equal(t, StatusBooked, res.Appointment.Status)
	assert.Equal(t, f.schedule.ID, res.Appointment.ScheduleID)
	assert.Equal(t, ScheduleOpen, f.scheduleStatus())

	f.store.view(func(st *memState) {
		p, ok := st.patients[res.Patient.ID]
		require.True(t, ok)
		assert.Equal(t, "Patient B", p.Name)
		require.Len(t, st.events, 1)
		assert.Equal(t, EventAppointmentBooked, st.events[0].EventType)
	})
}

func TestBookIsIdempotentPerPatientAndSchedule(t *testing.T) {
	f := newFixture(5, ScheduleOpen)

	first, err := f.svc.Book(context.Background(), f.bookingRequest(1))
	require.NoError(t, err)

	second, err := f.svc.Book(context.Background(), f.bookingRequest(1))
	require.NoError(t, err)

	assert.True(t, second.AlreadyBooked)
	assert.Equal(t, first.Appointment.ID, second.Appointment.ID)
	assert.Equal(t, 1, f.appointmentCount())
}

func TestBookRebookingFullScheduleStillIdempotent(t *testing.T) {
	f := newFixture(1, ScheduleOpen)

	first, err := f.svc.Book(context.Background(), f.bookingRequest(1))
	require.NoError(t, err)
	require.Equal(t, ScheduleFull, f.scheduleStatus())

	// The seat holder repeats the booking; a full schedule is not a
	// reason to turn away someone already admitted.
	second, err := f.svc.Book(context.Background(), f.bookingRequest(1))
	require.NoError(t, err)
	assert.True(t, second.AlreadyBooked)
	assert.Equal(t, first.Appointment.ID, second.Appointment.ID)
}

func TestBookReusesExistingPatientWithoutUpdatingContact(t *testing.T) {
	f := newFixture(5, ScheduleOpen)

	res, err := f.svc.Book(context.Background(), f.bookingRequest(1))
	require.NoError(t, err)

	req := f.bookingRequest(1)
	req.PatientName = "Different Name"
	req.Phone = "13912345678"
	req.TimeSlot = f.schedule.TimeSlot

	// Same schedule so the second call resolves idempotently, but the
	// patient row is matched by id-card and left untouched.
	second, err := f.svc.Book(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, res.Patient.ID, second.Patient.ID)

	f.store.view(func(st *memState) {
		p := st.patients[res.Patient.ID]
		assert.Equal(t, "Patient B", p.Name)
		assert.NotEqual(t, "13912345678", p.Phone)
	})
}

func TestBookRejectsClosedSchedule(t *testing.T) {
	f := newFixture(3, ScheduleClosed)

	_, err := f.svc.Book(context.Background(), f.bookingRequest(1))
	assert.ErrorIs(t, err, ErrScheduleClosed)
	assert.Equal(t, 0, f.appointmentCount())
}

func TestBookFillsScheduleAndRejectsOverflow(t *testing.T) {
	f := newFixture(2, ScheduleOpen)

	_, err := f.svc.Book(context.Background(), f.bookingRequest(1))
	require.NoError(t, err)
	assert.Equal(t, ScheduleOpen, f.scheduleStatus())

	_, err = f.svc.Book(context.Background(), f.bookingRequest(2))
	require.NoError(t, err)
	assert.Equal(t, ScheduleFull, f.scheduleStatus())

	_, err = f.svc.Book(context.Background(), f.bookingRequest(3))
	assert.ErrorIs(t, err, ErrScheduleFull)
	assert.Equal(t, 2, f.appointmentCount())
}

func TestBookUnknownScheduleSelection(t *testing.T) {
	f := newFixture(3, ScheduleOpen)

	req := f.bookingRequest(1)
	req.TimeSlot = SlotEvening

	_, err := f.svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoScheduleForDay)
}

func TestBookValidation(t *testing.T) {
	f := newFixture(3, ScheduleOpen)

	cases := map[string]func(*BookingRequest){
		"missing name":    func(r *BookingRequest) { r.PatientName = "" },
		"missing id card": func(r *BookingRequest) { r.IDCard = "" },
		"missing phone":   func(r *BookingRequest) { r.Phone = "" },
		"bad insurance":   func(r *BookingRequest) { r.InsuranceType = "GOLD" },
		"bad time slot":   func(r *BookingRequest) { r.TimeSlot = "NOON" },
		"missing doctor":  func(r *BookingRequest) { r.DoctorID = uuid.Nil },
		"zero date":       func(r *BookingRequest) { r.Date = time.Time{} },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := f.bookingRequest(1)
			mutate(&req)

			_, err := f.svc.Book(context.Background(), req)
			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
			assert.Equal(t, 0, f.appointmentCount())
		})
	}
}

// Capacity C with N > C concurrent distinct-patient bookings: exactly C
// admitted, the rest rejected as full, schedule flipped to FULL.
func TestConcurrentAdmissionHonorsCapacity(t *testing.T) {
	const capacity = 2
	const callers = 8

	f := newFixture(capacity, ScheduleOpen)

	var wg sync.WaitGroup
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Book(context.Background(), f.bookingRequest(i))
		}(i)
	}
	wg.Wait()

	admitted, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			admitted++
		case assert.ErrorIs(t, err, ErrScheduleFull):
			rejected++
		}
	}

	assert.Equal(t, capacity, admitted)
	assert.Equal(t, callers-capacity, rejected)
	assert.Equal(t, capacity, f.appointmentCount())
	assert.Equal(t, ScheduleFull, f.scheduleStatus())
}
