package clinic

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory Repository for tests. ExecTx serializes all
// transactions behind one mutex, which models the row-lock discipline of
// the real store closely enough to drive concurrency tests, and restores
// a snapshot on error so a failed transaction leaves nothing behind.
type memStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	departments  map[uuid.UUID]Department
	doctors      map[uuid.UUID]Doctor
	patients     map[uuid.UUID]Patient
	schedules    map[uuid.UUID]Schedule
	appointments map[uuid.UUID]Appointment
	records      map[uuid.UUID]MedicalRecord
	billings     map[uuid.UUID]Billing
	events       []VisitEvent
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		departments:  make(map[uuid.UUID]Department),
		doctors:      make(map[uuid.UUID]Doctor),
		patients:     make(map[uuid.UUID]Patient),
		schedules:    make(map[uuid.UUID]Schedule),
		appointments: make(map[uuid.UUID]Appointment),
		records:      make(map[uuid.UUID]MedicalRecord),
		billings:     make(map[uuid.UUID]Billing),
	}}
}

func (st *memState) clone() *memState {
	c := &memState{
		departments:  make(map[uuid.UUID]Department, len(st.departments)),
		doctors:      make(map[uuid.UUID]Doctor, len(st.doctors)),
		patients:     make(map[uuid.UUID]Patient, len(st.patients)),
		schedules:    make(map[uuid.UUID]Schedule, len(st.schedules)),
		appointments: make(map[uuid.UUID]Appointment, len(st.appointments)),
		records:      make(map[uuid.UUID]MedicalRecord, len(st.records)),
		billings:     make(map[uuid.UUID]Billing, len(st.billings)),
		events:       append([]VisitEvent(nil), st.events...),
	}
	for k, v := range st.departments {
		c.departments[k] = v
	}
	for k, v := range st.doctors {
		c.doctors[k] = v
	}
	for k, v := range st.patients {
		c.patients[k] = v
	}
	for k, v := range st.schedules {
		c.schedules[k] = v
	}
	for k, v := range st.appointments {
		c.appointments[k] = v
	}
	for k, v := range st.records {
		c.records[k] = v
	}
	for k, v := range st.billings {
		c.billings[k] = v
	}
	return c
}

func (s *memStore) ExecTx(_ context.Context, fn func(q Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(&memQueries{st: s.state}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// snapshot-free read access for test assertions
func (s *memStore) view(fn func(st *memState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

type memQueries struct {
	st *memState
}

func (q *memQueries) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := q.st.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (q *memQueries) EnsurePatient(_ context.Context, p Patient) (*Patient, error) {
	for _, existing := range q.st.patients {
		if existing.IDCard == p.IDCard {
			return &existing, nil
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	q.st.patients[p.ID] = p
	return &p, nil
}

func (q *memQueries) GetScheduleByID(_ context.Context, id uuid.UUID) (*Schedule, error) {
	s, ok := q.st.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	return &s, nil
}

func (q *memQueries) GetScheduleByIDForUpdate(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return q.GetScheduleByID(ctx, id)
}

func (q *memQueries) FindScheduleForUpdate(_ context.Context, doctorID uuid.UUID, date time.Time, slot TimeSlot) (*Schedule, error) {
	for _, s := range q.st.schedules {
		if s.DoctorID == doctorID && s.Date.Equal(date) && s.TimeSlot == slot {
			return &s, nil
		}
	}
	return nil, ErrNoScheduleForDay
}

func (q *memQueries) SetScheduleStatus(_ context.Context, id uuid.UUID, status ScheduleStatus) error {
	s, ok := q.st.schedules[id]
	if !ok {
		return ErrScheduleNotFound
	}
	s.Status = status
	q.st.schedules[id] = s
	return nil
}

func (q *memQueries) CountActiveAppointments(_ context.Context, scheduleID uuid.UUID) (int, error) {
	n := 0
	for _, a := range q.st.appointments {
		if a.ScheduleID != scheduleID {
			continue
		}
		switch a.Status {
		case StatusBooked, StatusCompleted, StatusPaid:
			n++
		}
	}
	return n, nil
}

func (q *memQueries) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := q.st.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (q *memQueries) GetAppointmentByIDForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return q.GetAppointmentByID(ctx, id)
}

func (q *memQueries) GetAppointmentForPatientSchedule(_ context.Context, patientID, scheduleID uuid.UUID) (*Appointment, error) {
	for _, a := range q.st.appointments {
		if a.PatientID == patientID && a.ScheduleID == scheduleID {
			return &a, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (q *memQueries) findLatestBooked(match func(p Patient) bool) (*Appointment, error) {
	var best *Appointment
	for _, a := range q.st.appointments {
		if a.Status != StatusBooked {
			continue
		}
		p, ok := q.st.patients[a.PatientID]
		if !ok || !match(p) {
			continue
		}
		a := a
		if best == nil || a.CreatedAt.After(best.CreatedAt) {
			best = &a
		}
	}
	if best == nil {
		return nil, ErrAppointmentNotFound
	}
	return best, nil
}

func (q *memQueries) FindLatestBookedByIDCard(_ context.Context, idCard string) (*Appointment, error) {
	return q.findLatestBooked(func(p Patient) bool { return p.IDCard == idCard })
}

func (q *memQueries) FindLatestBookedByPhone(_ context.Context, phone string) (*Appointment, error) {
	return q.findLatestBooked(func(p Patient) bool { return p.Phone == phone })
}

func (q *memQueries) CreateBookedAppointment(_ context.Context, patientID, scheduleID uuid.UUID) (*Appointment, error) {
	a := Appointment{
		ID:         uuid.New(),
		PatientID:  patientID,
		ScheduleID: scheduleID,
		Status:     StatusBooked,
		CreatedAt:  time.Now(),
	}
	q.st.appointments[a.ID] = a
	return &a, nil
}

func (q *memQueries) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	a, ok := q.st.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	q.st.appointments[id] = a
	return &a, nil
}

func (q *memQueries) CheckInAppointment(_ context.Context, id uuid.UUID, at time.Time, room string) (*Appointment, error) {
	a, ok := q.st.appointments[id]
	if !ok || a.Status != StatusBooked {
		return nil, ErrAppointmentNotFound
	}
	a.Status = StatusCompleted
	a.CheckInTime = &at
	a.AssignedRoom = room
	q.st.appointments[id] = a
	return &a, nil
}

func (q *memQueries) FindNoShowCandidates(_ context.Context, before time.Time) ([]Appointment, error) {
	var result []Appointment
	for _, a := range q.st.appointments {
		if a.Status != StatusBooked {
			continue
		}
		s, ok := q.st.schedules[a.ScheduleID]
		if ok && s.Date.Before(before) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (q *memQueries) EnsureMedicalRecord(_ context.Context, appointmentID, doctorID uuid.UUID, at time.Time) (*MedicalRecord, error) {
	for _, r := range q.st.records {
		if r.AppointmentID == appointmentID {
			return &r, nil
		}
	}
	r := MedicalRecord{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		DoctorID:      doctorID,
		VisitTime:     at,
	}
	q.st.records[r.ID] = r
	return &r, nil
}

func (q *memQueries) GetMedicalRecordForUpdate(_ context.Context, id uuid.UUID) (*MedicalRecord, error) {
	r, ok := q.st.records[id]
	if !ok {
		return nil, ErrMedicalRecordNotFound
	}
	return &r, nil
}

func (q *memQueries) GetMedicalRecordInfo(ctx context.Context, id uuid.UUID) (*RecordInfo, error) {
	r, ok := q.st.records[id]
	if !ok {
		return nil, ErrMedicalRecordNotFound
	}
	a := q.st.appointments[r.AppointmentID]
	p := q.st.patients[a.PatientID]
	doc := q.st.doctors[r.DoctorID]
	dep := q.st.departments[doc.DepartmentID]

	info := &RecordInfo{
		Record:            r,
		PatientName:       p.Name,
		PatientIDCard:     p.IDCard,
		InsuranceType:     p.InsuranceType,
		DoctorName:        doc.Name,
		DepartmentName:    dep.Name,
		AppointmentStatus: a.Status,
	}
	if b, err := q.GetBillingForRecordForUpdate(ctx, r.ID); err == nil {
		info.Billing = b
	}
	return info, nil
}

func (q *memQueries) GetBillingForRecordForUpdate(_ context.Context, medicalRecordID uuid.UUID) (*Billing, error) {
	for _, b := range q.st.billings {
		if b.MedicalRecordID == medicalRecordID {
			return &b, nil
		}
	}
	return nil, ErrBillingNotFound
}

func (q *memQueries) CreateBilling(_ context.Context, b Billing) (*Billing, error) {
	b.ID = uuid.New()
	q.st.billings[b.ID] = b
	return &b, nil
}

func (q *memQueries) UpdateBilling(_ context.Context, b Billing) (*Billing, error) {
	if _, ok := q.st.billings[b.ID]; !ok {
		return nil, ErrBillingNotFound
	}
	q.st.billings[b.ID] = b
	return &b, nil
}

func (q *memQueries) RevenueStats(_ context.Context) ([]RevenueRow, error) {
	type key struct {
		date string
		dept string
	}
	agg := make(map[key]*RevenueRow)

	for _, b := range q.st.billings {
		if b.Status != BillingPaid || b.PaidAt == nil {
			continue
		}
		r := q.st.records[b.MedicalRecordID]
		doc := q.st.doctors[r.DoctorID]
		dep := q.st.departments[doc.DepartmentID]

		day := b.PaidAt.Truncate(24 * time.Hour)
		k := key{date: day.Format("2006-01-02"), dept: dep.Name}
		row, ok := agg[k]
		if !ok {
			row = &RevenueRow{Date: day, Department: dep.Name, Revenue: decimal.Zero}
			agg[k] = row
		}
		row.Revenue = row.Revenue.Add(b.TotalAmount)
		row.Visits++
	}

	result := make([]RevenueRow, 0, len(agg))
	for _, row := range agg {
		result = append(result, *row)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].Department < result[j].Department
	})
	return result, nil
}

func (q *memQueries) InsertEvent(_ context.Context, ev VisitEvent) error {
	ev.ID = int64(len(q.st.events) + 1)
	ev.CreatedAt = time.Now()
	q.st.events = append(q.st.events, ev)
	return nil
}
