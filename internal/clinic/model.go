package clinic

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "BOOKED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusPaid      AppointmentStatus = "PAID"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusNoShow    AppointmentStatus = "NO_SHOW"
)

type ScheduleStatus string

const (
	ScheduleOpen   ScheduleStatus = "OPEN"
	ScheduleFull   ScheduleStatus = "FULL"
	ScheduleClosed ScheduleStatus = "CLOSED"
)

type TimeSlot string

const (
	SlotMorning   TimeSlot = "AM"
	SlotAfternoon TimeSlot = "PM"
	SlotEvening   TimeSlot = "EV"
)

type InsuranceType string

const (
	InsurancePublic  InsuranceType = "PUBLIC"
	InsurancePrivate InsuranceType = "PRIVATE"
	InsuranceSelfPay InsuranceType = "SELF"
)

type BillingStatus string

const (
	BillingPending  BillingStatus = "PENDING"
	BillingPaid     BillingStatus = "PAID"
	BillingRefunded BillingStatus = "REFUNDED"
)

type PaymentMethod string

const (
	PayCash      PaymentMethod = "CASH"
	PayCard      PaymentMethod = "CARD"
	PayInsurance PaymentMethod = "INSURANCE"
)

type DoctorTitle string

const (
	TitleResident  DoctorTitle = "RESIDENT"
	TitleAttending DoctorTitle = "ATTENDING"
	TitleChief     DoctorTitle = "CHIEF"
)

type Department struct {
	ID       uuid.UUID
	Name     string
	Code     string
	Location string
	IsActive bool
}

type Doctor struct {
	ID              uuid.UUID
	DepartmentID    uuid.UUID
	Name            string
	Title           DoctorTitle
	Phone           string
	SlotsPerDayHint int
}

type Patient struct {
	ID            uuid.UUID
	Name          string
	Gender        string
	IDCard        string
	Phone         string
	InsuranceType InsuranceType
	Address       string
	CreatedAt     time.Time
}

// Schedule is one bookable (doctor, date, time slot) unit.
type Schedule struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
	Date     time.Time
	TimeSlot TimeSlot
	RoomNo   string
	Capacity int
	Status   ScheduleStatus
}

type Appointment struct {
	ID           uuid.UUID
	PatientID    uuid.UUID
	ScheduleID   uuid.UUID
	Status       AppointmentStatus
	CheckInTime  *time.Time
	AssignedRoom string
	CreatedAt    time.Time
}

type MedicalRecord struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	DoctorID      uuid.UUID
	Diagnosis     string
	Treatment     string
	Prescription  string
	VisitTime     time.Time
}

type Billing struct {
	ID              uuid.UUID
	MedicalRecordID uuid.UUID
	TotalAmount     decimal.Decimal
	InsuranceAmount decimal.Decimal
	SelfPayAmount   decimal.Decimal
	Status          BillingStatus
	PaidAt          *time.Time
	PaymentMethod   PaymentMethod
}

// VisitEvent is an append-only audit row written inside the same
// transaction as the transition it describes.
type VisitEvent struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// RevenueRow is one line of the paid-settlement rollup.
type RevenueRow struct {
	Date       time.Time
	Department string
	Revenue    decimal.Decimal
	Visits     int
}

// RecordInfo is the joined view served to the settlement screen.
type RecordInfo struct {
	Record            MedicalRecord
	PatientName       string
	PatientIDCard     string
	InsuranceType     InsuranceType
	DoctorName        string
	DepartmentName    string
	AppointmentStatus AppointmentStatus
	Billing           *Billing
}
