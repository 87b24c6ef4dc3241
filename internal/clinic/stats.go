package clinic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Stats rolls up paid settlements by date and department, date descending
// then department ascending. It reads committed state only, recomputed on
// every call.
func (s *Service) Stats(ctx context.Context) ([]RevenueRow, error) {
	var rows []RevenueRow

	err := s.repo.ExecTx(ctx, func(q Queries) error {
		var err error
		rows, err = q.RevenueStats(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("revenue stats: %w", err)
	}

	return rows, nil
}

// RecordInfo serves the settlement screen: the medical record joined with
// patient, doctor, department and any billing already on file.
func (s *Service) RecordInfo(ctx context.Context, medicalRecordID uuid.UUID) (*RecordInfo, error) {
	var info *RecordInfo

	err := s.repo.ExecTx(ctx, func(q Queries) error {
		var err error
		info, err = q.GetMedicalRecordInfo(ctx, medicalRecordID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return info, nil
}
