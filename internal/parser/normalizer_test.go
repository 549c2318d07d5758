package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/fluwatch/pipeline/internal/domain"
)

var testNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func commercialTable(rows ...string) Table {
	payload := "County,State,Outbreak Date,Flock Type,Flock Size\n" + strings.Join(rows, "\n") + "\n"
	table, err := ReadTable("commercial.csv", []byte(payload))
	if err != nil {
		panic(err)
	}
	return table
}

func TestNormalizeCommercialRow(t *testing.T) {
	table := commercialTable("Canyon,IDAHO,05-19-2022,Commercial Table Egg Layer,\"1,200,000\"")

	records, stats := Normalize(table, CommercialSource(), testNow)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d (skipped: %v)", len(records), stats.Skipped)
	}

	rec := records[0]
	if rec.CaseDate != time.Date(2022, 5, 19, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("case date: got %s", rec.CaseDate)
	}
	if rec.County != "Canyon" || rec.StateProvince != "Idaho" {
		t.Fatalf("location not title-cased: %q / %q", rec.County, rec.StateProvince)
	}
	if rec.Country != "USA" {
		t.Fatalf("country default: got %q", rec.Country)
	}
	if rec.AnimalCategory != domain.CategoryPoultry || rec.Status != domain.StatusConfirmed {
		t.Fatalf("defaults not applied: %s / %s", rec.AnimalCategory, rec.Status)
	}
	if rec.AnimalsAffected == nil || *rec.AnimalsAffected != 1200000 {
		t.Fatalf("flock size not parsed: %v", rec.AnimalsAffected)
	}
	if rec.Severity != domain.SeverityCritical {
		t.Fatalf("severity: got %s, want critical", rec.Severity)
	}
	if !strings.HasPrefix(rec.ExternalID, "COMM_") {
		t.Fatalf("external ID: %q", rec.ExternalID)
	}
	if stats.Parsed != 1 || stats.TotalRows != 1 || len(stats.Skipped) != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestNormalizeMergesRowsSharingNaturalKey(t *testing.T) {
	// Two raw rows describing the same flock event must collapse into one
	// record with summed magnitudes, not a dropped row.
	table := commercialTable(
		"Canyon,Idaho,05-19-2022,WOAH Non-Poultry,10",
		"Canyon,Idaho,05-19-2022,WOAH Non-Poultry,10",
		"Weld,Colorado,04-09-2022,Commercial Broiler,50000",
	)

	records, stats := Normalize(table, CommercialSource(), testNow)
	if len(records) != 2 {
		t.Fatalf("expected 2 records after merge, got %d", len(records))
	}
	if stats.MergedRows != 1 || stats.Parsed != 2 || stats.TotalRows != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	merged := records[0]
	if merged.DetectionCount != 2 {
		t.Fatalf("detection count: got %d, want 2", merged.DetectionCount)
	}
	if merged.AnimalsAffected == nil || *merged.AnimalsAffected != 20 {
		t.Fatalf("affected not summed: %v", merged.AnimalsAffected)
	}
	if merged.Description == "" {
		t.Fatalf("merged record should describe its aggregation")
	}

	// The ID must come from the pre-merge key so a re-run of the same file
	// reproduces it.
	single, _ := Normalize(commercialTable("Canyon,Idaho,05-19-2022,WOAH Non-Poultry,10"), CommercialSource(), testNow)
	if single[0].ExternalID != merged.ExternalID {
		t.Fatalf("merge changed external ID: %s vs %s", merged.ExternalID, single[0].ExternalID)
	}

	if merged.SourceRow != 2 {
		t.Fatalf("merged record should keep the first contributing row, got %d", merged.SourceRow)
	}
	if records[1].SourceRow != 4 {
		t.Fatalf("source row: got %d, want 4", records[1].SourceRow)
	}
}

func TestNormalizeSkipsBadDates(t *testing.T) {
	table := commercialTable(
		"Canyon,Idaho,not-a-date,Backyard,40",
		"Weld,Colorado,04-09-2022,Commercial Broiler,50000",
	)

	records, stats := Normalize(table, CommercialSource(), testNow)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if len(stats.Skipped) != 1 {
		t.Fatalf("expected 1 skipped row, got %d", len(stats.Skipped))
	}
	if stats.Skipped[0].RowNumber != 2 {
		t.Fatalf("skip should reference file row 2, got %d", stats.Skipped[0].RowNumber)
	}
	if !strings.Contains(stats.Skipped[0].Reason, "date") {
		t.Fatalf("skip reason should mention the date: %q", stats.Skipped[0].Reason)
	}
}

func TestNormalizeWildBirdMetadataAndDefaults(t *testing.T) {
	payload := "State,County,Collection Date,Date Detected,Bird Species,HPAI Strain,Sampling Method\n" +
		"Idaho,Canyon,2022-05-01,2022-05-04,mallard duck,EA/AM H5N1,Hunter harvest\n"
	table, err := ReadTable("wild_birds.csv", []byte(payload))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	records, stats := Normalize(table, WildBirdSource(), testNow)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d (skipped: %v)", len(records), stats.Skipped)
	}

	rec := records[0]
	if rec.AnimalSpecies != "Mallard Duck" {
		t.Fatalf("species: got %q", rec.AnimalSpecies)
	}
	if rec.AnimalsAffected == nil || *rec.AnimalsAffected != 1 {
		t.Fatalf("individual detection should default affected to 1: %v", rec.AnimalsAffected)
	}
	if rec.ReportDate == nil || !rec.ReportDate.Equal(time.Date(2022, 5, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("report date: %v", rec.ReportDate)
	}
	if rec.ExtraMetadata["hpai_strain"] != "EA/AM H5N1" {
		t.Fatalf("metadata keys should be snake_case: %v", rec.ExtraMetadata)
	}
	if rec.ExtraMetadata["sampling_method"] != "Hunter harvest" {
		t.Fatalf("metadata values should be verbatim: %v", rec.ExtraMetadata)
	}
	if rec.Severity != domain.SeverityLow {
		t.Fatalf("single wild bird: got %s, want low", rec.Severity)
	}
}

func TestNormalizeMammalCategoryInference(t *testing.T) {
	payload := "State,County,Date Collected,Species\n" +
		"Texas,Deaf Smith,2024-03-25,Domestic cattle\n" +
		"Oregon,Lane,2024-03-25,Harbor seal\n"
	table, err := ReadTable("mammals.csv", []byte(payload))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	records, stats := Normalize(table, MammalSource(), testNow)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d (skipped: %v)", len(records), stats.Skipped)
	}

	if records[0].AnimalCategory != domain.CategoryDomesticMammal {
		t.Fatalf("cattle should be domestic: %s", records[0].AnimalCategory)
	}
	if records[0].Severity != domain.SeverityHigh {
		t.Fatalf("domestic mammal detection: got %s, want high", records[0].Severity)
	}
	if records[1].AnimalCategory != domain.CategoryWildMammal {
		t.Fatalf("seal should be wild: %s", records[1].AnimalCategory)
	}
	if records[1].Severity != domain.SeverityMedium {
		t.Fatalf("wild mammal detection: got %s, want medium", records[1].Severity)
	}
}

func TestTitleCaseHandlesNonASCII(t *testing.T) {
	cases := map[string]string{
		"ESPAÑOLA":      "Española",
		"doña ana":      "Doña Ana",
		"CANYON COUNTY": "Canyon County",
		"":              "",
	}
	for in, want := range cases {
		if got := titleCase(in); got != want {
			t.Errorf("titleCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseCountTolerantForms(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"40000", 40000, true},
		{"1,200,000", 1200000, true},
		{"40000.0", 40000, true},
		{"", 0, false},
		{"unknown", 0, false},
		{"-5", 0, false},
		{"3.7", 0, false},
	}

	for _, tc := range cases {
		got, ok := parseCount(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("parseCount(%q) = (%d, %v), want (%d, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
