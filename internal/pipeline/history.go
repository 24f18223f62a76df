package pipeline

import (
	"fmt"

	"partpipe/internal/model"
)

// GetHistory returns the most recent pipeline operations, ordered newest first.
func (s *Service) GetHistory(limit int) ([]*model.PipelineOperation, error) {
	ops, err := s.database.ListPipelineOperations(limit)
	if err != nil {
		return nil, fmt.Errorf("listing pipeline operations: %w", err)
	}
	return ops, nil
}

// GetExports returns the export records for one operation.
func (s *Service) GetExports(operationID int64) ([]*model.ExportRecord, error) {
	recs, err := s.database.ListExportRecords(operationID)
	if err != nil {
		return nil, fmt.Errorf("listing export records: %w", err)
	}
	return recs, nil
}
