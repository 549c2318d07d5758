package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fluwatch/pipeline/internal/domain"
	"github.com/fluwatch/pipeline/internal/geocode"
	"github.com/fluwatch/pipeline/internal/loader"
	"github.com/fluwatch/pipeline/internal/parser"
	"github.com/fluwatch/pipeline/internal/repository"
	"github.com/fluwatch/pipeline/internal/validate"
)

// Pipeline sequences normalize, geocode, validate and load for each source
// file. It is the only component that talks to all the others; control flows
// strictly forward.
type Pipeline struct {
	geocoder    *geocode.Resolver
	loader      *loader.Loader
	rowErrors   repository.RowErrorRepository
	log         *slog.Logger
	skipGeocode bool
	now         func() time.Time
}

// Options tune one pipeline instance.
type Options struct {
	// SkipGeocode bypasses coordinate resolution for fast validation-only
	// runs.
	SkipGeocode bool
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// New assembles a pipeline. rowErrors may be nil; per-row failures are then
// only counted, not persisted.
func New(geocoder *geocode.Resolver, ld *loader.Loader, rowErrors repository.RowErrorRepository, log *slog.Logger, opts Options) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		geocoder:    geocoder,
		loader:      ld,
		rowErrors:   rowErrors,
		log:         log,
		skipGeocode: opts.SkipGeocode,
		now:         now,
	}
}

// SourceResult is the observable outcome of one source run.
type SourceResult struct {
	Source          string
	Filename        string
	Audit           domain.ImportAudit
	AlreadyImported bool
	ParseStats      parser.ParseStats
	GeocodeStats    geocode.Stats
	RejectedCounts  map[string]int
	Elapsed         time.Duration
}

// RunSource executes the full chain for one source file. Only source-read
// errors and audit-bookkeeping failures surface as errors; row-level
// problems are absorbed into counters and the audit's error log.
func (p *Pipeline) RunSource(ctx context.Context, src parser.Source, path string) (SourceResult, error) {
	started := p.now()
	filename := filepath.Base(path)
	result := SourceResult{Source: src.Name, Filename: filename}

	content, err := os.ReadFile(path)
	if err != nil {
		return result, fmt.Errorf("failed to read source file %s: %w", path, err)
	}

	table, err := parser.ReadTable(filename, content)
	if err != nil {
		// Unparseable input is fatal to this source's run, but the audit
		// trail must still show the attempt.
		audit, beginErr := p.loader.Begin(ctx, src.DataSource, filename, content, 0)
		if beginErr == nil {
			_ = p.loader.Fail(ctx, &audit, err)
			result.Audit = audit
		}
		return result, err
	}

	p.log.Info("source read", "source", src.Name, "file", filename, "rows", len(table.Rows))

	records, stats := parser.Normalize(table, src, p.now())
	result.ParseStats = stats

	audit, err := p.loader.Begin(ctx, src.DataSource, filename, content, stats.TotalRows)
	if err != nil {
		if isAlreadyImported(err) {
			result.AlreadyImported = true
			result.Elapsed = p.now().Sub(started)
			p.log.Info("file already imported, 0 new rows",
				"source", src.Name, "file", filename, "rows", stats.TotalRows)
			return result, nil
		}
		return result, err
	}
	audit.MergedRows = stats.MergedRows

	for _, skipped := range stats.Skipped {
		p.recordRowError(ctx, src.DataSource, filename, skipped.RowNumber, skipped.Reason)
	}

	if !p.skipGeocode && p.geocoder != nil {
		result.GeocodeStats = p.geocoder.ResolveBatch(records)
		p.log.Info("geocoding complete",
			"source", src.Name,
			"resolved", result.GeocodeStats.Resolved,
			"unresolved", result.GeocodeStats.Unresolved,
			"pct", fmt.Sprintf("%.1f", result.GeocodeStats.PercentResolved()))
	}

	validation := validate.Records(records, p.now())
	result.RejectedCounts = validation.ReasonCounts
	for _, rejection := range validation.Rejected {
		p.recordRowError(ctx, src.DataSource, filename, rejection.Record.SourceRow,
			"validation of "+rejection.Record.ExternalID+": "+strings.Join(rejection.Reasons, "; "))
	}

	loadStats := p.loader.Load(ctx, &audit, validation.Accepted)
	loadStats.Failed += len(stats.Skipped) + len(validation.Rejected)

	if err := p.loader.Finalize(ctx, &audit, loadStats); err != nil {
		return result, err
	}

	result.Audit = audit
	result.Elapsed = p.now().Sub(started)
	return result, nil
}

// Summary aggregates results across sources for the end-of-run report.
type Summary struct {
	Results    []SourceResult
	Successful int
	Failed     int
	Duplicates int
	Elapsed    time.Duration
}

// Run processes the selected sources sequentially: each file is fully
// normalized, geocoded, validated and loaded before the next begins.
// sourceFiles maps source name to file path.
func (p *Pipeline) Run(ctx context.Context, sources map[string]parser.Source, sourceFiles map[string]string) (Summary, error) {
	started := p.now()
	summary := Summary{}

	names := make([]string, 0, len(sourceFiles))
	for name := range sourceFiles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		src, ok := sources[name]
		if !ok {
			return summary, fmt.Errorf("unknown source %q", name)
		}

		result, err := p.RunSource(ctx, src, sourceFiles[name])
		if err != nil {
			summary.Results = append(summary.Results, result)
			return summary, fmt.Errorf("source %s: %w", name, err)
		}

		summary.Results = append(summary.Results, result)
		summary.Successful += result.Audit.SuccessfulRows
		summary.Failed += result.Audit.FailedRows
		summary.Duplicates += result.Audit.DuplicateRows
	}

	summary.Elapsed = p.now().Sub(started)
	p.log.Info("ingestion run complete",
		"sources", len(names),
		"successful", summary.Successful,
		"failed", summary.Failed,
		"duplicates", summary.Duplicates,
		"elapsed", summary.Elapsed)
	return summary, nil
}

func (p *Pipeline) recordRowError(ctx context.Context, source domain.DataSource, filename string, rowNumber int, message string) {
	if p.rowErrors == nil {
		return
	}
	rowError := domain.RowError{Source: source, Filename: filename, Message: message}
	if rowNumber > 0 {
		rowError.RowNumber = &rowNumber
	}
	if err := p.rowErrors.Record(ctx, rowError); err != nil {
		p.log.Warn("failed to persist row error", "file", filename, "error", err)
	}
}

func isAlreadyImported(err error) bool {
	return errors.Is(err, loader.ErrAlreadyImported)
}
