package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fluwatch/pipeline/internal/domain"
)

type rowErrorRepository struct {
	pool *pgxpool.Pool
}

// NewRowErrorRepository wires a repository backed by pgxpool.
func NewRowErrorRepository(pool *pgxpool.Pool) RowErrorRepository {
	return &rowErrorRepository{pool: pool}
}

func (r *rowErrorRepository) Record(ctx context.Context, rowError domain.RowError) error {
	if r.pool == nil {
		return fmt.Errorf("row error repository not initialized")
	}

	var rowNumber any
	if rowError.RowNumber != nil {
		rowNumber = *rowError.RowNumber
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO ingestion_row_errors (source, filename, row_number, message)
		 VALUES ($1, $2, $3, $4)`,
		string(rowError.Source),
		rowError.Filename,
		rowNumber,
		rowError.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to record row error: %w", err)
	}

	return nil
}
