package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	redisclient "github.com/clinicware/outpatient-flow/internal/redis"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventCheckInCompleted     = "CHECK_IN_COMPLETED"
	EventSettlementPaid       = "SETTLEMENT_PAID"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentNoShow    = "APPOINTMENT_NO_SHOW"
)

var (
	ErrScheduleClosed = errors.New("schedule is closed")
	ErrScheduleFull   = errors.New("schedule is full")
	ErrNotBooked      = errors.New("appointment is not in booked status")
	ErrNotCompleted   = errors.New("visit is not completed, cannot settle")
	ErrAlreadyPaid    = errors.New("medical record is already settled")
	ErrAmountMismatch = errors.New("total amount does not equal insurance plus self-pay")
)

// ValidationError rejects malformed input before any transaction opens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Service owns the booking, check-in, settlement and reporting flows.
// Each operation runs as one transaction against the shared store.
type Service struct {
	repo Repository
	gate redisclient.Gate
}

func NewService(repo Repository, gate redisclient.Gate) *Service {
	if gate == nil {
		gate = redisclient.NoopGate{}
	}
	return &Service{
		repo: repo,
		gate: gate,
	}
}

// logEvent appends an audit row inside the caller's transaction, so the
// event commits or rolls back together with the transition it records.
func logEvent(ctx context.Context, q Queries, appointmentID uuid.UUID, eventType string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	apptID := appointmentID
	return q.InsertEvent(ctx, VisitEvent{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
	})
}
