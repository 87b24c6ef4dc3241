package clinic

import (
	"time"

	"github.com/google/uuid"
)

type fixture struct {
	store      *memStore
	svc        *Service
	department Department
	doctor     Doctor
	schedule   Schedule
}

func newFixture(capacity int, status ScheduleStatus) *fixture {
	store := newMemStore()

	dep := Department{ID: uuid.New(), Name: "Cardiology", Code: "CARD", IsActive: true}
	doc := Doctor{
		ID:              uuid.New(),
		DepartmentID:    dep.ID,
		Name:            "Dr. Wen",
		Title:           TitleAttending,
		Phone:           "13800001111",
		SlotsPerDayHint: 20,
	}
	sched := Schedule{
		ID:       uuid.New(),
		DoctorID: doc.ID,
		Date:     date(2026, 9, 1),
		TimeSlot: SlotMorning,
		RoomNo:   "R201",
		Capacity: capacity,
		Status:   status,
	}

	store.state.departments[dep.ID] = dep
	store.state.doctors[doc.ID] = doc
	store.state.schedules[sched.ID] = sched

	return &fixture{
		store:      store,
		svc:        NewService(store, nil),
		department: dep,
		doctor:     doc,
		schedule:   sched,
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (f *fixture) bookingRequest(seq int) BookingRequest {
	return BookingRequest{
		PatientName:   "Patient " + string(rune('A'+seq)),
		IDCard:        "11010119900101" + pad4(seq),
		Phone:         "1390000" + pad4(seq),
		InsuranceType: InsurancePublic,
		DoctorID:      f.doctor.ID,
		Date:          f.schedule.Date,
		TimeSlot:      f.schedule.TimeSlot,
	}
}

func pad4(n int) string {
	digits := "0123456789"
	return string([]byte{
		digits[n/1000%10],
		digits[n/100%10],
		digits[n/10%10],
		digits[n%10],
	})
}

func (f *fixture) scheduleStatus() ScheduleStatus {
	var status ScheduleStatus
	f.store.view(func(st *memState) {
		status = st.schedules[f.schedule.ID].Status
	})
	return status
}

func (f *fixture) appointmentCount() int {
	var n int
	f.store.view(func(st *memState) {
		n = len(st.appointments)
	})
	return n
}
