package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/fluwatch/pipeline/internal/domain"
)

// Canonical field names used as rename-map targets.
const (
	FieldCaseDate   = "case_date"
	FieldReportDate = "report_date"
	FieldCountry    = "country"
	FieldState      = "state_province"
	FieldCounty     = "county"
	FieldCity       = "city"
	FieldSpecies    = "animal_species"
	FieldAffected   = "animals_affected"
	FieldDead       = "animals_dead"
)

// Row holds one raw row keyed by canonical field name, plus any declared
// metadata fields keyed by their original header.
type Row map[string]string

// Defaults are the values a source never provides in its columns.
type Defaults struct {
	AnimalCategory  domain.AnimalCategory
	Status          domain.CaseStatus
	Country         string
	AnimalsAffected int // 0 means no default
}

// Source is the declarative description of one tabular source. Onboarding a
// new source means adding one of these, not touching the validator or loader.
type Source struct {
	Name           string
	Prefix         string
	DataSource     domain.DataSource
	Rename         map[string]string // raw header -> canonical field
	DateLayouts    []string          // layouts tried for case_date/report_date
	Defaults       Defaults
	MetadataFields []string // raw headers preserved into extra_metadata
	// Transform applies source-specific logic after renaming and defaults,
	// e.g. category inference from the species name.
	Transform func(rec *domain.CaseRecord, row Row) error
	// NaturalKey returns the fields that identify one event for this
	// source. Evaluated before in-file merging so the surviving record's
	// external ID stays stable.
	NaturalKey func(rec domain.CaseRecord) []string
}

// SkippedRow records one row excluded during normalization.
type SkippedRow struct {
	RowNumber int
	Reason    string
}

// ParseStats summarizes one normalization pass.
type ParseStats struct {
	TotalRows  int
	Parsed     int
	MergedRows int // raw rows folded into another record by natural key
	Skipped    []SkippedRow
}

var defaultDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
}

// Normalize turns a raw table into canonical case records. Bad rows are
// counted and skipped, never fatal. Rows within the same file that share a
// natural key are merged: magnitude fields are summed and detection_count
// incremented, rather than silently dropping the later row.
func Normalize(table Table, src Source, now time.Time) ([]domain.CaseRecord, ParseStats) {
	stats := ParseStats{TotalRows: len(table.Rows)}

	type entry struct {
		record   domain.CaseRecord
		keyParts []string
	}
	var order []string
	merged := make(map[string]*entry)

	for i, raw := range table.Rows {
		rowNumber := i + 2 // header occupies row 1

		record, err := normalizeRow(table.Headers, raw, src)
		if err != nil {
			stats.Skipped = append(stats.Skipped, SkippedRow{RowNumber: rowNumber, Reason: err.Error()})
			continue
		}
		record.SourceRow = rowNumber

		keyParts := src.NaturalKey(record)
		key := strings.Join(keyParts, "|")

		if existing, ok := merged[key]; ok {
			mergeRecord(&existing.record, record)
			stats.MergedRows++
			continue
		}

		merged[key] = &entry{record: record, keyParts: keyParts}
		order = append(order, key)
	}

	records := make([]domain.CaseRecord, 0, len(order))
	for _, key := range order {
		e := merged[key]
		record := e.record

		if record.DetectionCount > 1 {
			record.Description = fmt.Sprintf("Aggregated from %d detections sharing one event key", record.DetectionCount)
		}

		magnitude := record.DetectionCount
		if record.AnimalsAffected != nil {
			magnitude = *record.AnimalsAffected
		}
		record.Severity = domain.ComputeSeverity(record.AnimalCategory, magnitude)
		record.ExternalID = ExternalID(src.Prefix, e.keyParts)

		records = append(records, record)
		stats.Parsed++
	}

	return records, stats
}

func normalizeRow(headers []string, raw []string, src Source) (domain.CaseRecord, error) {
	row := make(Row, len(headers))
	for i, header := range headers {
		if i >= len(raw) || raw[i] == "" {
			continue
		}
		if canonical, ok := src.Rename[header]; ok {
			row[canonical] = raw[i]
		}
		for _, meta := range src.MetadataFields {
			if header == meta {
				row[header] = raw[i]
			}
		}
	}

	layouts := src.DateLayouts
	if len(layouts) == 0 {
		layouts = defaultDateLayouts
	}

	caseDate, err := parseDate(row[FieldCaseDate], layouts)
	if err != nil {
		return domain.CaseRecord{}, fmt.Errorf("invalid case date %q", row[FieldCaseDate])
	}

	record := domain.CaseRecord{
		CaseDate:       caseDate,
		AnimalCategory: src.Defaults.AnimalCategory,
		AnimalSpecies:  strings.TrimSpace(row[FieldSpecies]),
		DetectionCount: 1,
		Country:        strings.TrimSpace(row[FieldCountry]),
		StateProvince:  titleCase(row[FieldState]),
		County:         titleCase(row[FieldCounty]),
		City:           titleCase(row[FieldCity]),
		DataSource:     src.DataSource,
		Status:         src.Defaults.Status,
	}

	if record.Country == "" {
		record.Country = src.Defaults.Country
	}

	// Unparseable optional dates are dropped, not fatal.
	if rd, err := parseDate(row[FieldReportDate], layouts); err == nil {
		record.ReportDate = &rd
	}

	if n, ok := parseCount(row[FieldAffected]); ok {
		record.AnimalsAffected = &n
	} else if src.Defaults.AnimalsAffected > 0 {
		n := src.Defaults.AnimalsAffected
		record.AnimalsAffected = &n
	}

	if n, ok := parseCount(row[FieldDead]); ok {
		record.AnimalsDead = &n
	}

	for _, meta := range src.MetadataFields {
		value, ok := row[meta]
		if !ok {
			continue
		}
		if record.ExtraMetadata == nil {
			record.ExtraMetadata = make(map[string]string, len(src.MetadataFields))
		}
		record.ExtraMetadata[snakeCase(meta)] = value
	}

	if src.Transform != nil {
		if err := src.Transform(&record, row); err != nil {
			return domain.CaseRecord{}, err
		}
	}

	if record.AnimalCategory == "" {
		return domain.CaseRecord{}, fmt.Errorf("no animal category for row")
	}

	return record, nil
}

// mergeRecord folds a colliding row into the surviving record.
func mergeRecord(dst *domain.CaseRecord, src domain.CaseRecord) {
	dst.DetectionCount += src.DetectionCount
	dst.AnimalsAffected = sumCounts(dst.AnimalsAffected, src.AnimalsAffected)
	dst.AnimalsDead = sumCounts(dst.AnimalsDead, src.AnimalsDead)
}

func sumCounts(a, b *int) *int {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	sum := *a + *b
	return &sum
}

func parseDate(value string, layouts []string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}

// parseCount reads a non-negative integer, tolerating thousands separators
// and float renderings like "40000.0".
func parseCount(value string) (int, bool) {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if value == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(value); err == nil && n >= 0 {
		return n, true
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 && f == float64(int(f)) {
		return int(f), true
	}
	return 0, false
}

func titleCase(value string) string {
	words := strings.Fields(strings.ToLower(value))
	for i, word := range words {
		first, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(first)) + word[size:]
	}
	return strings.Join(words, " ")
}

func snakeCase(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), "_"))
}
