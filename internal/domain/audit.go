package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImportStatus tracks the lifecycle of one import run.
type ImportStatus string

const (
	ImportInProgress          ImportStatus = "in_progress"
	ImportCompleted           ImportStatus = "completed"
	ImportCompletedWithErrors ImportStatus = "completed_with_errors"
	ImportFailed              ImportStatus = "failed"
)

// Terminal reports whether the status ends the run.
func (s ImportStatus) Terminal() bool {
	return s != ImportInProgress
}

// MaxAuditErrors caps the audit error log so a pathological input cannot
// bloat the audits table.
const MaxAuditErrors = 100

// ImportAudit records one execution of the pipeline against one source file.
// It is created and owned exclusively by the import loader for the duration
// of a run. Row counts satisfy
// total_rows = successful + failed + duplicate + merged for terminal runs.
type ImportAudit struct {
	ID             uuid.UUID    `json:"id"`
	Source         DataSource   `json:"source"`
	Filename       string       `json:"filename"`
	ContentHash    string       `json:"content_hash"`
	TotalRows      int          `json:"total_rows"`
	SuccessfulRows int          `json:"successful_rows"`
	FailedRows     int          `json:"failed_rows"`
	DuplicateRows  int          `json:"duplicate_rows"`
	MergedRows     int          `json:"merged_rows"`
	Status         ImportStatus `json:"status"`
	StartedAt      time.Time    `json:"started_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	ErrorLog       []string     `json:"error_log,omitempty"`
}

// NewImportAudit starts an in-progress audit for one source file.
func NewImportAudit(source DataSource, filename, contentHash string, totalRows int) ImportAudit {
	return ImportAudit{
		ID:          uuid.New(),
		Source:      source,
		Filename:    filename,
		ContentHash: contentHash,
		TotalRows:   totalRows,
		Status:      ImportInProgress,
		StartedAt:   time.Now(),
	}
}

// AppendError records a representative failure reason, dropping entries
// beyond MaxAuditErrors.
func (a *ImportAudit) AppendError(msg string) {
	if len(a.ErrorLog) >= MaxAuditErrors {
		return
	}
	a.ErrorLog = append(a.ErrorLog, msg)
}

// Duration is the elapsed run time, zero until the run completes.
func (a ImportAudit) Duration() time.Duration {
	if a.CompletedAt == nil {
		return 0
	}
	return a.CompletedAt.Sub(a.StartedAt)
}

// Stale reports whether an in-progress audit is older than the given
// threshold, meaning the owning process likely died mid-run.
func (a ImportAudit) Stale(threshold time.Duration, now time.Time) bool {
	return a.Status == ImportInProgress && now.Sub(a.StartedAt) > threshold
}

// RowError is a persisted per-row failure, kept separate from the audit's
// bounded error log so operators can inspect every rejected row.
type RowError struct {
	ID        int64      `json:"id"`
	Source    DataSource `json:"source"`
	Filename  string     `json:"filename"`
	RowNumber *int       `json:"row_number,omitempty"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"created_at"`
}
