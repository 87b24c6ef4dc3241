package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgLockNotAvailable is raised when a FOR UPDATE wait exceeds the session
// lock_timeout set by the db package.
const pgLockNotAvailable = "55P03"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) ExecTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgQueries{db: tx}); err != nil {
		return mapLockErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func mapLockErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return fmt.Errorf("%w: %s", ErrContended, pgErr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrContended, err)
	}
	return err
}

// dbtx is satisfied by both pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgQueries struct {
	db dbtx
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID,
		&d.DepartmentID,
		&d.Name,
		&d.Title,
		&d.Phone,
		&d.SlotsPerDayHint,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Gender,
		&p.IDCard,
		&p.Phone,
		&p.InsuranceType,
		&p.Address,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanSchedule(row pgx.Row, missing error) (*Schedule, error) {
	var s Schedule
	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&s.TimeSlot,
		&s.RoomNo,
		&s.Capacity,
		&s.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, missing
		}
		return nil, err
	}
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var checkIn *time.Time
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ScheduleID,
		&a.Status,
		&checkIn,
		&a.AssignedRoom,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	a.CheckInTime = checkIn
	return &a, nil
}

func scanMedicalRecord(row pgx.Row) (*MedicalRecord, error) {
	var m MedicalRecord
	err := row.Scan(
		&m.ID,
		&m.AppointmentID,
		&m.DoctorID,
		&m.Diagnosis,
		&m.Treatment,
		&m.Prescription,
		&m.VisitTime,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMedicalRecordNotFound
		}
		return nil, err
	}
	return &m, nil
}

func scanBilling(row pgx.Row) (*Billing, error) {
	var b Billing
	var paidAt *time.Time
	err := row.Scan(
		&b.ID,
		&b.MedicalRecordID,
		&b.TotalAmount,
		&b.InsuranceAmount,
		&b.SelfPayAmount,
		&b.Status,
		&paidAt,
		&b.PaymentMethod,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBillingNotFound
		}
		return nil, err
	}
	b.PaidAt = paidAt
	return &b, nil
}

// Interface methods

func (q *pgQueries) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, department_id, name, title, phone, slots_per_day_hint
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (q *pgQueries) EnsurePatient(ctx context.Context, p Patient) (*Patient, error) {
	// The unique key on id_card makes the insert a no-op when two first
	// bookings for the same person race; both land on the same row.
	_, err := q.db.Exec(ctx, `
		INSERT INTO patients (id, name, gender, id_card, phone, insurance_type, address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id_card) DO NOTHING
	`, uuid.New(), p.Name, p.Gender, p.IDCard, p.Phone, p.InsuranceType, p.Address)
	if err != nil {
		return nil, fmt.Errorf("ensure patient: %w", err)
	}

	row := q.db.QueryRow(ctx, `
		SELECT id, name, gender, id_card, phone, insurance_type, address, created_at
		FROM patients
		WHERE id_card = $1
	`, p.IDCard)
	return scanPatient(row)
}

func (q *pgQueries) GetScheduleByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, doctor_id, date, time_slot, room_no, capacity, status
		FROM schedules
		WHERE id = $1
	`, id)
	return scanSchedule(row, ErrScheduleNotFound)
}

func (q *pgQueries) GetScheduleByIDForUpdate(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, doctor_id, date, time_slot, room_no, capacity, status
		FROM schedules
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanSchedule(row, ErrScheduleNotFound)
}

func (q *pgQueries) FindScheduleForUpdate(ctx context.Context, doctorID uuid.UUID, date time.Time, slot TimeSlot) (*Schedule, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, doctor_id, date, time_slot, room_no, capacity, status
		FROM schedules
		WHERE doctor_id = $1 AND date = $2 AND time_slot = $3
		FOR UPDATE
	`, doctorID, date, slot)
	return scanSchedule(row, ErrNoScheduleForDay)
}

func (q *pgQueries) SetScheduleStatus(ctx context.Context, id uuid.UUID, status ScheduleStatus) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE schedules SET status = $2 WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("set schedule status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (q *pgQueries) CountActiveAppointments(ctx context.Context, scheduleID uuid.UUID) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE schedule_id = $1
		  AND status IN ('BOOKED', 'COMPLETED', 'PAID')
	`, scheduleID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active appointments: %w", err)
	}
	return n, nil
}

func (q *pgQueries) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, patient_id, schedule_id, status, check_in_time, assigned_room, created_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (q *pgQueries) GetAppointmentByIDForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, patient_id, schedule_id, status, check_in_time, assigned_room, created_at
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanAppointment(row)
}

func (q *pgQueries) GetAppointmentForPatientSchedule(ctx context.Context, patientID, scheduleID uuid.UUID) (*Appointment, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, patient_id, schedule_id, status, check_in_time, assigned_room, created_at
		FROM appointments
		WHERE patient_id = $1 AND schedule_id = $2
	`, patientID, scheduleID)
	return scanAppointment(row)
}

func (q *pgQueries) FindLatestBookedByIDCard(ctx context.Context, idCard string) (*Appointment, error) {
	row := q.db.QueryRow(ctx, `
		SELECT a.id, a.patient_id, a.schedule_id, a.status, a.check_in_time, a.assigned_room, a.created_at
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE p.id_card = $1 AND a.status = 'BOOKED'
		ORDER BY a.created_at DESC
		LIMIT 1
	`, idCard)
	return scanAppointment(row)
}

func (q *pgQueries) FindLatestBookedByPhone(ctx context.Context, phone string) (*Appointment, error) {
	row := q.db.QueryRow(ctx, `
		SELECT a.id, a.patient_id, a.schedule_id, a.status, a.check_in_time, a.assigned_room, a.created_at
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE p.phone = $1 AND a.status = 'BOOKED'
		ORDER BY a.created_at DESC
		LIMIT 1
	`, phone)
	return scanAppointment(row)
}

func (q *pgQueries) CreateBookedAppointment(ctx context.Context, patientID, scheduleID uuid.UUID) (*Appointment, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, schedule_id, status, assigned_room, created_at)
		VALUES ($1, $2, $3, 'BOOKED', '', now())
		RETURNING id, patient_id, schedule_id, status, check_in_time, assigned_room, created_at
	`, uuid.New(), patientID, scheduleID)
	return scanAppointment(row)
}

func (q *pgQueries) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2
		WHERE id = $1
		  AND status = $3
		RETURNING id, patient_id, schedule_id, status, check_in_time, assigned_room, created_at
	`, id, to, from)
	return scanAppointment(row)
}

func (q *pgQueries) CheckInAppointment(ctx context.Context, id uuid.UUID, at time.Time, room string) (*Appointment, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'COMPLETED',
		    check_in_time = $2,
		    assigned_room = $3
		WHERE id = $1
		  AND status = 'BOOKED'
		RETURNING id, patient_id, schedule_id, status, check_in_time, assigned_room, created_at
	`, id, at, room)
	return scanAppointment(row)
}

func (q *pgQueries) FindNoShowCandidates(ctx context.Context, before time.Time) ([]Appointment, error) {
	rows, err := q.db.Query(ctx, `
		SELECT a.id, a.patient_id, a.schedule_id, a.status, a.check_in_time, a.assigned_room, a.created_at
		FROM appointments a
		JOIN schedules s ON s.id = a.schedule_id
		WHERE a.status = 'BOOKED'
		  AND s.date < $1
	`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (q *pgQueries) EnsureMedicalRecord(ctx context.Context, appointmentID, doctorID uuid.UUID, at time.Time) (*MedicalRecord, error) {
	_, err := q.db.Exec(ctx, `
		INSERT INTO medical_records (id, appointment_id, doctor_id, diagnosis, treatment, prescription, visit_time)
		VALUES ($1, $2, $3, '', '', '', $4)
		ON CONFLICT (appointment_id) DO NOTHING
	`, uuid.New(), appointmentID, doctorID, at)
	if err != nil {
		return nil, fmt.Errorf("ensure medical record: %w", err)
	}

	row := q.db.QueryRow(ctx, `
		SELECT id, appointment_id, doctor_id, diagnosis, treatment, prescription, visit_time
		FROM medical_records
		WHERE appointment_id = $1
	`, appointmentID)
	return scanMedicalRecord(row)
}

func (q *pgQueries) GetMedicalRecordForUpdate(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, appointment_id, doctor_id, diagnosis, treatment, prescription, visit_time
		FROM medical_records
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanMedicalRecord(row)
}

func (q *pgQueries) GetMedicalRecordInfo(ctx context.Context, id uuid.UUID) (*RecordInfo, error) {
	row := q.db.QueryRow(ctx, `
		SELECT mr.id, mr.appointment_id, mr.doctor_id, mr.diagnosis, mr.treatment, mr.prescription, mr.visit_time,
		       p.name, p.id_card, p.insurance_type,
		       doc.name, dep.name,
		       a.status
		FROM medical_records mr
		JOIN appointments a ON a.id = mr.appointment_id
		JOIN patients p ON p.id = a.patient_id
		JOIN doctors doc ON doc.id = mr.doctor_id
		JOIN departments dep ON dep.id = doc.department_id
		WHERE mr.id = $1
	`, id)

	var info RecordInfo
	err := row.Scan(
		&info.Record.ID,
		&info.Record.AppointmentID,
		&info.Record.DoctorID,
		&info.Record.Diagnosis,
		&info.Record.Treatment,
		&info.Record.Prescription,
		&info.Record.VisitTime,
		&info.PatientName,
		&info.PatientIDCard,
		&info.InsuranceType,
		&info.DoctorName,
		&info.DepartmentName,
		&info.AppointmentStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMedicalRecordNotFound
		}
		return nil, err
	}

	b, err := q.getBillingForRecord(ctx, info.Record.ID, false)
	if err != nil && !errors.Is(err, ErrBillingNotFound) {
		return nil, err
	}
	info.Billing = b
	return &info, nil
}

func (q *pgQueries) getBillingForRecord(ctx context.Context, medicalRecordID uuid.UUID, forUpdate bool) (*Billing, error) {
	sql := `
		SELECT id, medical_record_id, total_amount, insurance_amount, self_pay_amount, status, paid_at, payment_method
		FROM billings
		WHERE medical_record_id = $1
	`
	if forUpdate {
		sql += " FOR UPDATE"
	}
	return scanBilling(q.db.QueryRow(ctx, sql, medicalRecordID))
}

func (q *pgQueries) GetBillingForRecordForUpdate(ctx context.Context, medicalRecordID uuid.UUID) (*Billing, error) {
	return q.getBillingForRecord(ctx, medicalRecordID, true)
}

func (q *pgQueries) CreateBilling(ctx context.Context, b Billing) (*Billing, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO billings (id, medical_record_id, total_amount, insurance_amount, self_pay_amount, status, paid_at, payment_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, medical_record_id, total_amount, insurance_amount, self_pay_amount, status, paid_at, payment_method
	`, uuid.New(), b.MedicalRecordID, b.TotalAmount, b.InsuranceAmount, b.SelfPayAmount, b.Status, b.PaidAt, b.PaymentMethod)
	return scanBilling(row)
}

func (q *pgQueries) UpdateBilling(ctx context.Context, b Billing) (*Billing, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE billings
		SET total_amount = $2,
		    insurance_amount = $3,
		    self_pay_amount = $4,
		    status = $5,
		    paid_at = $6,
		    payment_method = $7
		WHERE id = $1
		RETURNING id, medical_record_id, total_amount, insurance_amount, self_pay_amount, status, paid_at, payment_method
	`, b.ID, b.TotalAmount, b.InsuranceAmount, b.SelfPayAmount, b.Status, b.PaidAt, b.PaymentMethod)
	return scanBilling(row)
}

func (q *pgQueries) RevenueStats(ctx context.Context) ([]RevenueRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT b.paid_at::date AS stat_date,
		       dep.name,
		       SUM(b.total_amount),
		       COUNT(*)
		FROM billings b
		JOIN medical_records mr ON mr.id = b.medical_record_id
		JOIN doctors doc ON doc.id = mr.doctor_id
		JOIN departments dep ON dep.id = doc.department_id
		WHERE b.status = 'PAID'
		GROUP BY stat_date, dep.name
		ORDER BY stat_date DESC, dep.name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RevenueRow
	for rows.Next() {
		var r RevenueRow
		if err := rows.Scan(&r.Date, &r.Department, &r.Revenue, &r.Visits); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (q *pgQueries) InsertEvent(ctx context.Context, ev VisitEvent) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO visit_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, now())
	`, ev.EventType, ev.AppointmentID, ev.Payload)
	if err != nil {
		return fmt.Errorf("insert visit event: %w", err)
	}
	return nil
}
