package parser

import (
	"sort"
	"strconv"
	"strings"

	"github.com/fluwatch/pipeline/internal/domain"
)

const keyDateLayout = "2006-01-02"

// domesticMammalSpecies marks species treated as domestic rather than wild.
// Matching is substring-based on the lowercased species label.
var domesticMammalSpecies = []string{
	"domestic cat",
	"domestic dog",
	"domestic cattle",
	"domestic pig",
	"dairy cattle",
	"beef cattle",
	"alpaca",
	"llama",
	"goat",
	"sheep",
	"horse",
}

// CommercialSource parses USDA commercial and backyard poultry flock data.
// Columns: County, State, Outbreak Date (MM-DD-YYYY), Flock Type, Flock Size.
func CommercialSource() Source {
	return Source{
		Name:       "commercial",
		Prefix:     "COMM",
		DataSource: domain.SourceUSDA,
		Rename: map[string]string{
			"County":        FieldCounty,
			"State":         FieldState,
			"Outbreak Date": FieldCaseDate,
			"Flock Type":    FieldSpecies,
			"Flock Size":    FieldAffected,
		},
		DateLayouts: []string{"01-02-2006", "2006-01-02"},
		Defaults: Defaults{
			AnimalCategory: domain.CategoryPoultry,
			Status:         domain.StatusConfirmed,
			Country:        "USA",
		},
		NaturalKey: func(rec domain.CaseRecord) []string {
			// Flock size distinguishes separate farms hit on the same day.
			return []string{
				rec.County,
				rec.StateProvince,
				rec.CaseDate.Format(keyDateLayout),
				rec.AnimalSpecies,
				countKey(rec.AnimalsAffected),
			}
		},
	}
}

// WildBirdSource parses USDA HPAI detections in wild birds. Strain and
// sampling details land in extra_metadata.
func WildBirdSource() Source {
	return Source{
		Name:       "wild_bird",
		Prefix:     "WILD",
		DataSource: domain.SourceUSDA,
		Rename: map[string]string{
			"State":           FieldState,
			"County":          FieldCounty,
			"Collection Date": FieldCaseDate,
			"Date Detected":   FieldReportDate,
			"Bird Species":    FieldSpecies,
		},
		Defaults: Defaults{
			AnimalCategory:  domain.CategoryWildBird,
			Status:          domain.StatusConfirmed,
			Country:         "USA",
			AnimalsAffected: 1, // individual bird detections
		},
		MetadataFields: []string{
			"HPAI Strain",
			"WOAH Classification",
			"Sampling Method",
			"Submitting Agency",
		},
		Transform: func(rec *domain.CaseRecord, row Row) error {
			rec.AnimalSpecies = titleCase(rec.AnimalSpecies)
			return nil
		},
		NaturalKey: func(rec domain.CaseRecord) []string {
			report := ""
			if rec.ReportDate != nil {
				report = rec.ReportDate.Format(keyDateLayout)
			}
			return []string{
				rec.County,
				rec.StateProvince,
				rec.CaseDate.Format(keyDateLayout),
				report,
				rec.AnimalSpecies,
				rec.ExtraMetadata["hpai_strain"],
			}
		},
	}
}

// MammalSource parses USDA HPAI detections in mammals. The animal category
// is inferred from the species label rather than defaulted.
func MammalSource() Source {
	return Source{
		Name:       "mammal",
		Prefix:     "MAMM",
		DataSource: domain.SourceUSDA,
		Rename: map[string]string{
			"State":          FieldState,
			"County":         FieldCounty,
			"Date Collected": FieldCaseDate,
			"Date Detected":  FieldReportDate,
			"Species":        FieldSpecies,
		},
		Defaults: Defaults{
			Status:          domain.StatusConfirmed,
			Country:         "USA",
			AnimalsAffected: 1,
		},
		MetadataFields: []string{"HPAI Strain"},
		Transform: func(rec *domain.CaseRecord, row Row) error {
			rec.AnimalSpecies = titleCase(rec.AnimalSpecies)
			rec.AnimalCategory = mammalCategory(rec.AnimalSpecies)
			return nil
		},
		NaturalKey: func(rec domain.CaseRecord) []string {
			return []string{
				rec.County,
				rec.StateProvince,
				rec.CaseDate.Format(keyDateLayout),
				rec.AnimalSpecies,
				countKey(rec.AnimalsAffected),
			}
		},
	}
}

// Sources returns the registry of built-in source specs keyed by name.
func Sources() map[string]Source {
	return map[string]Source{
		"commercial": CommercialSource(),
		"wild_bird":  WildBirdSource(),
		"mammal":     MammalSource(),
	}
}

// SourceNames returns the registered source names, sorted.
func SourceNames() []string {
	sources := Sources()
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func mammalCategory(species string) domain.AnimalCategory {
	lower := strings.ToLower(species)
	for _, domestic := range domesticMammalSpecies {
		if strings.Contains(lower, domestic) {
			return domain.CategoryDomesticMammal
		}
	}
	return domain.CategoryWildMammal
}

func countKey(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
