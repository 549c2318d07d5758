package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluwatch/pipeline/internal/domain"
	"github.com/fluwatch/pipeline/internal/repository"
)

// ErrAlreadyImported signals that a byte-identical file already completed a
// prior run; the caller should report a no-op, not an error condition.
var ErrAlreadyImported = errors.New("file already imported")

// DefaultBatchSize bounds transaction size and memory, not correctness.
const DefaultBatchSize = 1000

// Loader is the only component with write access to the case store. It owns
// transaction boundaries, row-level deduplication against prior runs, and
// the audit lifecycle.
type Loader struct {
	cases     repository.CaseRepository
	audits    repository.ImportAuditRepository
	batchSize int
	log       *slog.Logger
	now       func() time.Time
}

// NewLoader creates a loader. batchSize <= 0 selects DefaultBatchSize.
func NewLoader(cases repository.CaseRepository, audits repository.ImportAuditRepository, batchSize int, log *slog.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Loader{
		cases:     cases,
		audits:    audits,
		batchSize: batchSize,
		log:       log,
		now:       time.Now,
	}
}

// LoadStats reports one load phase. Failed covers only storage-level
// failures; callers fold in upstream parse/validation counts before
// finalizing.
type LoadStats struct {
	Batches       int
	FailedBatches int
	Inserted      int
	Duplicates    int
	Failed        int
}

// ContentHash is the file-level duplicate key: a hex sha256 of the raw
// source bytes.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Begin opens an import run. If a byte-identical file already completed a
// prior run the audit is not created and ErrAlreadyImported is returned;
// this guard fires before any row-level work.
func (l *Loader) Begin(ctx context.Context, source domain.DataSource, filename string, content []byte, totalRows int) (domain.ImportAudit, error) {
	hash := ContentHash(content)

	seen, err := l.audits.HasCompletedImport(ctx, hash)
	if err != nil {
		return domain.ImportAudit{}, fmt.Errorf("failed to check import history: %w", err)
	}
	if seen {
		return domain.ImportAudit{}, fmt.Errorf("%w: %s (hash %s)", ErrAlreadyImported, filename, hash[:12])
	}

	audit := domain.NewImportAudit(source, filename, hash, totalRows)
	if err := l.audits.Create(ctx, audit); err != nil {
		return domain.ImportAudit{}, fmt.Errorf("failed to create import audit: %w", err)
	}

	l.log.Info("import started",
		"source", source, "file", filename, "rows", totalRows, "hash", hash[:12])
	return audit, nil
}

// Load writes accepted records in bounded batches. A duplicate external_id
// skips that record only; a storage error fails that batch only, is logged
// into the audit's bounded error log, and the run continues with the next
// batch.
func (l *Loader) Load(ctx context.Context, audit *domain.ImportAudit, records []domain.CaseRecord) LoadStats {
	var stats LoadStats

	for start := 0; start < len(records); start += l.batchSize {
		end := start + l.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]
		stats.Batches++

		result, err := l.cases.InsertBatch(ctx, batch)
		if err != nil {
			stats.FailedBatches++
			stats.Failed += len(batch)
			audit.AppendError(fmt.Sprintf("batch %d: %v", stats.Batches, err))
			l.log.Warn("batch insert failed",
				"file", audit.Filename, "batch", stats.Batches, "rows", len(batch), "error", err)
			continue
		}

		stats.Inserted += result.Inserted
		stats.Duplicates += result.Duplicates
	}

	return stats
}

// Fail marks the run failed after an unrecoverable error, preserving any
// partial state captured so far.
func (l *Loader) Fail(ctx context.Context, audit *domain.ImportAudit, cause error) error {
	audit.AppendError(cause.Error())
	audit.Status = domain.ImportFailed
	completed := l.now()
	audit.CompletedAt = &completed

	if err := l.audits.Update(ctx, *audit); err != nil {
		return fmt.Errorf("failed to record failed import: %w", err)
	}

	l.log.Error("import failed", "file", audit.Filename, "error", cause)
	return nil
}

// Finalize writes the terminal audit state. The run is failed when storage
// rejected every batch; completed when nothing at all went wrong at the row
// level; completed_with_errors otherwise. The audit row is persisted on
// every path so operators can always see what happened.
func (l *Loader) Finalize(ctx context.Context, audit *domain.ImportAudit, stats LoadStats) error {
	audit.SuccessfulRows = stats.Inserted
	audit.FailedRows = stats.Failed
	audit.DuplicateRows = stats.Duplicates

	switch {
	case stats.Batches > 0 && stats.FailedBatches == stats.Batches:
		audit.Status = domain.ImportFailed
	case stats.Failed == 0 && stats.Duplicates == 0 && stats.FailedBatches == 0:
		audit.Status = domain.ImportCompleted
	default:
		audit.Status = domain.ImportCompletedWithErrors
	}

	completed := l.now()
	audit.CompletedAt = &completed

	if err := l.audits.Update(ctx, *audit); err != nil {
		return fmt.Errorf("failed to finalize import audit: %w", err)
	}

	l.log.Info("import finished",
		"file", audit.Filename,
		"status", audit.Status,
		"successful", audit.SuccessfulRows,
		"failed", audit.FailedRows,
		"duplicates", audit.DuplicateRows,
		"merged", audit.MergedRows,
		"duration", audit.Duration())
	return nil
}
