package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fluwatch/pipeline/internal/domain"
)

// importAuditRepository implements ImportAuditRepository on pgx.
type importAuditRepository struct {
	pool *pgxpool.Pool
}

// NewImportAuditRepository creates an audit repository backed by pgxpool.
func NewImportAuditRepository(pool *pgxpool.Pool) ImportAuditRepository {
	return &importAuditRepository{pool: pool}
}

func (r *importAuditRepository) Create(ctx context.Context, audit domain.ImportAudit) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO import_audits (
			id, source, filename, content_hash, total_rows, successful_rows,
			failed_rows, duplicate_rows, merged_rows, status, started_at,
			completed_at, error_log
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		audit.ID,
		string(audit.Source),
		audit.Filename,
		audit.ContentHash,
		audit.TotalRows,
		audit.SuccessfulRows,
		audit.FailedRows,
		audit.DuplicateRows,
		audit.MergedRows,
		string(audit.Status),
		audit.StartedAt,
		audit.CompletedAt,
		audit.ErrorLog,
	)
	if err != nil {
		return fmt.Errorf("failed to create import audit: %w", err)
	}
	return nil
}

func (r *importAuditRepository) Update(ctx context.Context, audit domain.ImportAudit) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE import_audits
		 SET total_rows = $2, successful_rows = $3, failed_rows = $4,
		     duplicate_rows = $5, merged_rows = $6, status = $7,
		     completed_at = $8, error_log = $9
		 WHERE id = $1`,
		audit.ID,
		audit.TotalRows,
		audit.SuccessfulRows,
		audit.FailedRows,
		audit.DuplicateRows,
		audit.MergedRows,
		string(audit.Status),
		audit.CompletedAt,
		audit.ErrorLog,
	)
	if err != nil {
		return fmt.Errorf("failed to update import audit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("import audit %s not found", audit.ID)
	}
	return nil
}

func (r *importAuditRepository) HasCompletedImport(ctx context.Context, contentHash string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM import_audits
			WHERE content_hash = $1
			  AND status IN ('completed', 'completed_with_errors')
		)`,
		contentHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check prior imports: %w", err)
	}
	return exists, nil
}

func (r *importAuditRepository) ListRecent(ctx context.Context, limit int) ([]domain.ImportAudit, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, source, filename, content_hash, total_rows, successful_rows,
		        failed_rows, duplicate_rows, merged_rows, status, started_at,
		        completed_at, error_log
		 FROM import_audits
		 ORDER BY started_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list import audits: %w", err)
	}
	defer rows.Close()

	audits := []domain.ImportAudit{}
	for rows.Next() {
		var (
			audit       domain.ImportAudit
			source      string
			status      string
			completedAt pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&audit.ID,
			&source,
			&audit.Filename,
			&audit.ContentHash,
			&audit.TotalRows,
			&audit.SuccessfulRows,
			&audit.FailedRows,
			&audit.DuplicateRows,
			&audit.MergedRows,
			&status,
			&audit.StartedAt,
			&completedAt,
			&audit.ErrorLog,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan import audit: %w", scanErr)
		}

		audit.Source = domain.DataSource(source)
		audit.Status = domain.ImportStatus(status)
		if completedAt.Valid {
			t := completedAt.Time
			audit.CompletedAt = &t
		}

		audits = append(audits, audit)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate import audits: %w", rowsErr)
	}

	return audits, nil
}
