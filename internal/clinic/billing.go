package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// amountTolerance absorbs representation noise in float-derived inputs.
var amountTolerance = decimal.NewFromFloat(0.01)

type SettlementRequest struct {
	MedicalRecordID uuid.UUID
	TotalAmount     decimal.Decimal
	InsuranceAmount decimal.Decimal
	SelfPayAmount   decimal.Decimal
	PaymentMethod   PaymentMethod
}

func (r SettlementRequest) Validate() error {
	if r.MedicalRecordID == uuid.Nil {
		return &ValidationError{Field: "medical_record_id", Reason: "required"}
	}
	switch r.PaymentMethod {
	case PayCash, PayCard, PayInsurance:
	default:
		return &ValidationError{Field: "payment_method", Reason: "must be CASH, CARD or INSURANCE"}
	}
	if r.TotalAmount.IsNegative() || r.InsuranceAmount.IsNegative() || r.SelfPayAmount.IsNegative() {
		return ErrAmountMismatch
	}
	diff := r.TotalAmount.Sub(r.InsuranceAmount.Add(r.SelfPayAmount)).Abs()
	if diff.GreaterThan(amountTolerance) {
		return ErrAmountMismatch
	}
	return nil
}

type SettlementResult struct {
	Billing     *Billing
	Appointment *Appointment
}

// Settle reconciles the finances of a completed visit and advances the
// appointment to PAID, atomically.
//
// The amount invariant is checked before any transaction opens; a
// violating request never touches storage. Inside the transaction the
// medical record and its appointment rows are locked, so two settlements
// of the same record serialize and the loser sees ErrAlreadyPaid.
func (s *Service) Settle(ctx context.Context, req SettlementRequest) (*SettlementResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var res *SettlementResult

	err := s.repo.ExecTx(ctx, func(q Queries) error {
		record, err := q.GetMedicalRecordForUpdate(ctx, req.MedicalRecordID)
		if err != nil {
			return err
		}

		appt, err := q.GetAppointmentByIDForUpdate(ctx, record.AppointmentID)
		if err != nil {
			return err
		}
		if appt.Status != StatusCompleted {
			return ErrNotCompleted
		}

		now := time.Now()
		var billing *Billing

		existing, err := q.GetBillingForRecordForUpdate(ctx, record.ID)
		switch {
		case err == nil:
			if existing.Status == BillingPaid {
				return ErrAlreadyPaid
			}
			existing.TotalAmount = req.TotalAmount
			existing.InsuranceAmount = req.InsuranceAmount
			existing.SelfPayAmount = req.SelfPayAmount
			existing.PaymentMethod = req.PaymentMethod
			existing.Status = BillingPaid
			existing.PaidAt = &now
			billing, err = q.UpdateBilling(ctx, *existing)
			if err != nil {
				return fmt.Errorf("update billing: %w", err)
			}
		case errors.Is(err, ErrBillingNotFound):
			billing, err = q.CreateBilling(ctx, Billing{
				MedicalRecordID: record.ID,
				TotalAmount:     req.TotalAmount,
				InsuranceAmount: req.InsuranceAmount,
				SelfPayAmount:   req.SelfPayAmount,
				Status:          BillingPaid,
				PaidAt:          &now,
				PaymentMethod:   req.PaymentMethod,
			})
			if err != nil {
				return fmt.Errorf("create billing: %w", err)
			}
		default:
			return err
		}

		appt, err = q.UpdateAppointmentStatus(ctx, appt.ID, StatusCompleted, StatusPaid)
		if err != nil {
			return fmt.Errorf("mark appointment paid: %w", err)
		}

		if err := logEvent(ctx, q, appt.ID, EventSettlementPaid, map[string]any{
			"billing_id":   billing.ID.String(),
			"total_amount": billing.TotalAmount.String(),
		}); err != nil {
			return err
		}

		res = &SettlementResult{Billing: billing, Appointment: appt}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}
