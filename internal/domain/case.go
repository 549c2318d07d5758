package domain

import (
	"encoding/json"
	"time"
)

// AnimalCategory classifies the affected animal population.
type AnimalCategory string

const (
	CategoryPoultry        AnimalCategory = "poultry"
	CategoryWildBird       AnimalCategory = "wild_bird"
	CategoryWildMammal     AnimalCategory = "wild_mammal"
	CategoryDomesticMammal AnimalCategory = "domestic_mammal"
	CategoryOther          AnimalCategory = "other"
)

// Valid reports whether the category is a declared enum member.
func (c AnimalCategory) Valid() bool {
	switch c {
	case CategoryPoultry, CategoryWildBird, CategoryWildMammal, CategoryDomesticMammal, CategoryOther:
		return true
	}
	return false
}

// DataSource identifies the reporting organization.
type DataSource string

const (
	SourceUSDA        DataSource = "usda"
	SourceCDC         DataSource = "cdc"
	SourceWOAH        DataSource = "woah"
	SourceStateAgency DataSource = "state_agency"
	SourceOther       DataSource = "other"
)

func (s DataSource) Valid() bool {
	switch s {
	case SourceUSDA, SourceCDC, SourceWOAH, SourceStateAgency, SourceOther:
		return true
	}
	return false
}

// CaseStatus is the confirmation state of a detection.
type CaseStatus string

const (
	StatusConfirmed          CaseStatus = "confirmed"
	StatusSuspected          CaseStatus = "suspected"
	StatusUnderInvestigation CaseStatus = "under_investigation"
	StatusNegative           CaseStatus = "negative"
	StatusInconclusive       CaseStatus = "inconclusive"
)

func (s CaseStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusSuspected, StatusUnderInvestigation, StatusNegative, StatusInconclusive:
		return true
	}
	return false
}

// Severity is derived from animal category and outbreak magnitude, never
// taken from input data.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// CaseRecord is the canonical normalized unit: one detection/outbreak event
// for one animal population at one place and time.
type CaseRecord struct {
	ExternalID      string            `json:"external_id"`
	CaseDate        time.Time         `json:"case_date"`
	ReportDate      *time.Time        `json:"report_date,omitempty"`
	AnimalCategory  AnimalCategory    `json:"animal_category"`
	AnimalSpecies   string            `json:"animal_species,omitempty"`
	AnimalsAffected *int              `json:"animals_affected,omitempty"`
	AnimalsDead     *int              `json:"animals_dead,omitempty"`
	DetectionCount  int               `json:"detection_count"`
	Country         string            `json:"country"`
	StateProvince   string            `json:"state_province,omitempty"`
	County          string            `json:"county,omitempty"`
	City            string            `json:"city,omitempty"`
	Latitude        *float64          `json:"latitude,omitempty"`
	Longitude       *float64          `json:"longitude,omitempty"`
	DataSource      DataSource        `json:"data_source"`
	Status          CaseStatus        `json:"status"`
	Severity        Severity          `json:"severity"`
	Description     string            `json:"description,omitempty"`
	ExtraMetadata   map[string]string `json:"extra_metadata,omitempty"`

	// SourceRow is the 1-based file row this record came from (the first
	// contributing row when detections were merged). Provenance only, never
	// persisted.
	SourceRow int `json:"-"`
}

// MetadataJSON serializes the extra metadata bag for JSONB storage. An empty
// bag marshals to an empty JSON object so the column round-trips cleanly.
func (r *CaseRecord) MetadataJSON() (json.RawMessage, error) {
	if r.ExtraMetadata == nil {
		return json.RawMessage(`{}`), nil
	}
	return json.Marshal(r.ExtraMetadata)
}

// MetadataFromJSON restores the metadata bag from its stored form.
func MetadataFromJSON(raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// ComputeSeverity derives severity from the affected count and category.
// Domestic and production categories escalate at much lower counts than wild
// populations because of human-contact risk. For a fixed category the result
// is non-decreasing in affected.
func ComputeSeverity(category AnimalCategory, affected int) Severity {
	switch category {
	case CategoryPoultry:
		switch {
		case affected > 50000:
			return SeverityCritical
		case affected > 10000:
			return SeverityHigh
		case affected > 100:
			return SeverityMedium
		}
		return SeverityLow
	case CategoryDomesticMammal:
		// Any domestic mammal detection implies human contact.
		if affected > 50 {
			return SeverityCritical
		}
		return SeverityHigh
	case CategoryWildMammal:
		switch {
		case affected > 10000:
			return SeverityCritical
		case affected > 100:
			return SeverityHigh
		}
		return SeverityMedium
	default:
		// Wild birds and uncategorized detections.
		switch {
		case affected > 50000:
			return SeverityCritical
		case affected > 10000:
			return SeverityHigh
		case affected > 100:
			return SeverityMedium
		}
		return SeverityLow
	}
}
