package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fluwatch/pipeline/internal/db"
	"github.com/fluwatch/pipeline/internal/domain"
)

const insertCaseSQL = `
INSERT INTO h5n1_cases (
	external_id, case_date, report_date, animal_category, animal_species,
	animals_affected, animals_dead, detection_count, country, state_province,
	county, city, latitude, longitude, geom, data_source, status, severity,
	description, extra_metadata
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
	CASE
		WHEN $13::double precision IS NULL OR $14::double precision IS NULL THEN NULL
		ELSE ST_SetSRID(ST_MakePoint($14::double precision, $13::double precision), 4326)
	END,
	$15, $16, $17, $18, $19
)
ON CONFLICT (external_id) DO NOTHING`

// caseRepository implements CaseRepository on pgx.
type caseRepository struct {
	conn *db.Connection
}

// NewCaseRepository creates a case repository backed by a database connection.
func NewCaseRepository(conn *db.Connection) CaseRepository {
	return &caseRepository{conn: conn}
}

// buildCaseBatch queues one insert statement per record. Nil pointers pass
// through as SQL NULLs.
func buildCaseBatch(records []domain.CaseRecord) (*pgx.Batch, error) {
	batch := &pgx.Batch{}
	for i := range records {
		record := &records[i]
		metadata, err := record.MetadataJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata for %s: %w", record.ExternalID, err)
		}
		batch.Queue(insertCaseSQL,
			record.ExternalID,
			record.CaseDate,
			record.ReportDate,
			string(record.AnimalCategory),
			nullableText(record.AnimalSpecies),
			record.AnimalsAffected,
			record.AnimalsDead,
			record.DetectionCount,
			record.Country,
			nullableText(record.StateProvince),
			nullableText(record.County),
			nullableText(record.City),
			record.Latitude,
			record.Longitude,
			string(record.DataSource),
			string(record.Status),
			string(record.Severity),
			nullableText(record.Description),
			metadata,
		)
	}
	return batch, nil
}

// InsertBatch inserts records inside one transaction using a pipelined
// batch. Each statement carries ON CONFLICT DO NOTHING, so one duplicate
// external_id skips that row and the rest of the batch still commits.
func (r *caseRepository) InsertBatch(ctx context.Context, records []domain.CaseRecord) (BatchResult, error) {
	var result BatchResult
	if len(records) == 0 {
		return result, nil
	}

	batch, err := buildCaseBatch(records)
	if err != nil {
		return result, err
	}

	err = r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		for i := range records {
			tag, execErr := results.Exec()
			if execErr != nil {
				_ = results.Close()
				return fmt.Errorf("failed to insert case %s: %w", records[i].ExternalID, execErr)
			}
			if tag.RowsAffected() == 0 {
				result.Duplicates++
			} else {
				result.Inserted++
			}
		}
		return results.Close()
	})
	if err != nil {
		return BatchResult{}, err
	}

	return result, nil
}

// Count returns the total number of persisted cases.
func (r *caseRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.conn.Pool.QueryRow(ctx, `SELECT count(*) FROM h5n1_cases`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cases: %w", err)
	}
	return count, nil
}

func nullableText(value string) any {
	if value == "" {
		return nil
	}
	return value
}
