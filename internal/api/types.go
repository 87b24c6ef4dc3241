package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OutcomeBookedNew     = "BOOKED_NEW"
	OutcomeAlreadyBooked = "ALREADY_BOOKED"
)

type BookingRequest struct {
	PatientName   string `json:"patient_name"`
	Gender        string `json:"gender,omitempty"`
	IDCard        string `json:"id_card"`
	Phone         string `json:"phone"`
	InsuranceType string `json:"insurance_type"`
	DoctorID      string `json:"doctor_id"`
	Date          string `json:"date"` // YYYY-MM-DD
	TimeSlot      string `json:"time_slot"`
}

type BookingResponse struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	ScheduleID    uuid.UUID `json:"schedule_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Outcome       string    `json:"outcome"`
	Status        string    `json:"status"`
}

type CheckInRequest struct {
	AppointmentID string `json:"appointment_id,omitempty"`
	IDCard        string `json:"id_card,omitempty"`
	Phone         string `json:"phone,omitempty"`
	AssignedRoom  string `json:"assigned_room,omitempty"`
}

type CheckInResponse struct {
	MedicalRecordID uuid.UUID  `json:"medical_record_id"`
	AppointmentID   uuid.UUID  `json:"appointment_id"`
	AssignedRoom    string     `json:"assigned_room"`
	CheckInTime     *time.Time `json:"check_in_time,omitempty"`
}

type SettlementRequest struct {
	MedicalRecordID string          `json:"medical_record_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	InsuranceAmount decimal.Decimal `json:"insurance_amount"`
	SelfPayAmount   decimal.Decimal `json:"self_pay_amount"`
	PaymentMethod   string          `json:"payment_method"`
}

type SettlementResponse struct {
	BillingID     uuid.UUID  `json:"billing_id"`
	Status        string     `json:"status"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
}

type AppointmentResponse struct {
	ID           uuid.UUID  `json:"id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	ScheduleID   uuid.UUID  `json:"schedule_id"`
	Status       string     `json:"status"`
	AssignedRoom string     `json:"assigned_room,omitempty"`
	CheckInTime  *time.Time `json:"check_in_time,omitempty"`
}

type StatsRow struct {
	Date       string          `json:"date"`
	Department string          `json:"department"`
	Revenue    decimal.Decimal `json:"revenue"`
	Visits     int             `json:"visits"`
}

type BillingInfo struct {
	ID            uuid.UUID       `json:"id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        string          `json:"status"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
}

type RecordInfoResponse struct {
	MedicalRecordID   uuid.UUID    `json:"medical_record_id"`
	PatientName       string       `json:"patient_name"`
	PatientIDCard     string       `json:"patient_id_card"`
	InsuranceType     string       `json:"insurance_type"`
	DoctorName        string       `json:"doctor_name"`
	DepartmentName    string       `json:"department_name"`
	AppointmentStatus string       `json:"appointment_status"`
	VisitTime         time.Time    `json:"visit_time"`
	Billing           *BillingInfo `json:"billing,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
