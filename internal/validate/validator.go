package validate

import (
	"fmt"
	"time"

	"github.com/fluwatch/pipeline/internal/domain"
)

// Rejection reason identifiers, stable for reporting layers.
const (
	ReasonMissingField     = "missing_required_field"
	ReasonInvalidEnum      = "invalid_enum_value"
	ReasonFutureDate       = "future_case_date"
	ReasonBadCoordinate    = "coordinate_out_of_range"
	ReasonDeadExceedsTotal = "animals_dead_exceeds_affected"
)

// Rejection carries a record together with every rule it violated.
type Rejection struct {
	Record  domain.CaseRecord
	Reasons []string
}

// Result partitions a batch into accepted and rejected records. ReasonCounts
// is keyed by reason identifier and is suitable for direct exposure to a
// reporting layer.
type Result struct {
	Accepted     []domain.CaseRecord
	Rejected     []Rejection
	ReasonCounts map[string]int
}

// Records is the final content gate before persistence. All applicable rule
// failures are collected per record, not just the first. Accepted records
// are passed through unmodified.
func Records(records []domain.CaseRecord, now time.Time) Result {
	result := Result{
		Accepted:     make([]domain.CaseRecord, 0, len(records)),
		ReasonCounts: make(map[string]int),
	}

	for _, record := range records {
		reasons := checkRecord(record, now)
		if len(reasons) == 0 {
			result.Accepted = append(result.Accepted, record)
			continue
		}
		result.Rejected = append(result.Rejected, Rejection{Record: record, Reasons: reasons})
		for _, reason := range reasons {
			result.ReasonCounts[reasonID(reason)]++
		}
	}

	return result
}

func checkRecord(record domain.CaseRecord, now time.Time) []string {
	var reasons []string

	if record.CaseDate.IsZero() {
		reasons = append(reasons, reason(ReasonMissingField, "case_date"))
	} else if record.CaseDate.After(now) {
		reasons = append(reasons, reason(ReasonFutureDate, record.CaseDate.Format("2006-01-02")))
	}

	if record.AnimalCategory == "" {
		reasons = append(reasons, reason(ReasonMissingField, "animal_category"))
	} else if !record.AnimalCategory.Valid() {
		reasons = append(reasons, reason(ReasonInvalidEnum, "animal_category="+string(record.AnimalCategory)))
	}

	if record.Country == "" {
		reasons = append(reasons, reason(ReasonMissingField, "country"))
	}

	if record.DataSource == "" {
		reasons = append(reasons, reason(ReasonMissingField, "data_source"))
	} else if !record.DataSource.Valid() {
		reasons = append(reasons, reason(ReasonInvalidEnum, "data_source="+string(record.DataSource)))
	}

	if record.Status == "" {
		reasons = append(reasons, reason(ReasonMissingField, "status"))
	} else if !record.Status.Valid() {
		reasons = append(reasons, reason(ReasonInvalidEnum, "status="+string(record.Status)))
	}

	if record.Severity != "" && !record.Severity.Valid() {
		reasons = append(reasons, reason(ReasonInvalidEnum, "severity="+string(record.Severity)))
	}

	if record.Latitude != nil && (*record.Latitude < -90 || *record.Latitude > 90) {
		reasons = append(reasons, reason(ReasonBadCoordinate, fmt.Sprintf("latitude=%v", *record.Latitude)))
	}
	if record.Longitude != nil && (*record.Longitude < -180 || *record.Longitude > 180) {
		reasons = append(reasons, reason(ReasonBadCoordinate, fmt.Sprintf("longitude=%v", *record.Longitude)))
	}

	if record.AnimalsDead != nil && record.AnimalsAffected != nil && *record.AnimalsDead > *record.AnimalsAffected {
		reasons = append(reasons, reason(ReasonDeadExceedsTotal,
			fmt.Sprintf("dead=%d affected=%d", *record.AnimalsDead, *record.AnimalsAffected)))
	}

	return reasons
}

func reason(id, detail string) string {
	return id + ": " + detail
}

// reasonID strips the detail suffix back off for count aggregation.
func reasonID(r string) string {
	for i := 0; i < len(r); i++ {
		if r[i] == ':' {
			return r[:i]
		}
	}
	return r
}
