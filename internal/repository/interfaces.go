package repository

import (
	"context"

	"github.com/fluwatch/pipeline/internal/domain"
)

// BatchResult reports the outcome of one bounded batch insert.
type BatchResult struct {
	Inserted   int
	Duplicates int
}

// CaseRepository defines persistence for canonical case records. The import
// loader is the only writer.
type CaseRepository interface {
	// InsertBatch writes records in one transaction with per-record
	// conflict tolerance: an external_id collision skips that record only,
	// never the batch.
	InsertBatch(ctx context.Context, records []domain.CaseRecord) (BatchResult, error)
	Count(ctx context.Context) (int64, error)
}

// ImportAuditRepository defines persistence for import run bookkeeping.
type ImportAuditRepository interface {
	Create(ctx context.Context, audit domain.ImportAudit) error
	Update(ctx context.Context, audit domain.ImportAudit) error
	// HasCompletedImport reports whether a byte-identical file was already
	// imported with a terminal success status.
	HasCompletedImport(ctx context.Context, contentHash string) (bool, error)
	ListRecent(ctx context.Context, limit int) ([]domain.ImportAudit, error)
}

// RowErrorRepository persists per-row failures for operator inspection.
// Recording is best-effort; a failure here never fails a run.
type RowErrorRepository interface {
	Record(ctx context.Context, rowError domain.RowError) error
}
