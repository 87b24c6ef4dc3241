package clinic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound        = errors.New("doctor not found")
	ErrPatientNotFound       = errors.New("patient not found")
	ErrScheduleNotFound      = errors.New("schedule not found")
	ErrNoScheduleForDay      = errors.New("no schedule for selected doctor, date and time slot")
	ErrAppointmentNotFound   = errors.New("appointment not found")
	ErrMedicalRecordNotFound = errors.New("medical record not found")
	ErrBillingNotFound       = errors.New("billing not found")

	// ErrContended means a row lock could not be acquired within the
	// configured bound. The transaction rolled back; callers may retry.
	ErrContended = errors.New("row lock wait timed out, retry")
)

// Repository opens transactions against the shared store. Every state
// transition runs inside exactly one ExecTx call; fn sees a Queries view
// scoped to that transaction, and any error rolls the whole thing back.
type Repository interface {
	ExecTx(ctx context.Context, fn func(q Queries) error) error
}

// Queries contains all store interactions needed by the services.
// Methods named *ForUpdate take an exclusive row lock held until the
// surrounding transaction commits or rolls back.
type Queries interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)

	// EnsurePatient resolves a patient by id-card, creating one with the
	// given contact fields on first sight. Contact fields of an existing
	// patient are never updated.
	EnsurePatient(ctx context.Context, p Patient) (*Patient, error)

	GetScheduleByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	GetScheduleByIDForUpdate(ctx context.Context, id uuid.UUID) (*Schedule, error)
	FindScheduleForUpdate(ctx context.Context, doctorID uuid.UUID, date time.Time, slot TimeSlot) (*Schedule, error)
	SetScheduleStatus(ctx context.Context, id uuid.UUID, status ScheduleStatus) error

	// CountActiveAppointments counts appointments holding a seat on the
	// schedule, i.e. status BOOKED, COMPLETED or PAID.
	CountActiveAppointments(ctx context.Context, scheduleID uuid.UUID) (int, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentByIDForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentForPatientSchedule(ctx context.Context, patientID, scheduleID uuid.UUID) (*Appointment, error)
	FindLatestBookedByIDCard(ctx context.Context, idCard string) (*Appointment, error)
	FindLatestBookedByPhone(ctx context.Context, phone string) (*Appointment, error)
	CreateBookedAppointment(ctx context.Context, patientID, scheduleID uuid.UUID) (*Appointment, error)

	// UpdateAppointmentStatus transitions id from one status to another,
	// returning ErrAppointmentNotFound if the row is absent or not in the
	// expected from status.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	CheckInAppointment(ctx context.Context, id uuid.UUID, at time.Time, room string) (*Appointment, error)

	// FindNoShowCandidates returns BOOKED appointments whose schedule date
	// is strictly before the given day.
	FindNoShowCandidates(ctx context.Context, before time.Time) ([]Appointment, error)

	EnsureMedicalRecord(ctx context.Context, appointmentID, doctorID uuid.UUID, at time.Time) (*MedicalRecord, error)
	GetMedicalRecordForUpdate(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
	GetMedicalRecordInfo(ctx context.Context, id uuid.UUID) (*RecordInfo, error)

	GetBillingForRecordForUpdate(ctx context.Context, medicalRecordID uuid.UUID) (*Billing, error)
	CreateBilling(ctx context.Context, b Billing) (*Billing, error)
	UpdateBilling(ctx context.Context, b Billing) (*Billing, error)

	RevenueStats(ctx context.Context) ([]RevenueRow, error)

	InsertEvent(ctx context.Context, ev VisitEvent) error
}
