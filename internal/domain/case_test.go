package domain

import "testing"

func TestComputeSeverityPoultryThresholds(t *testing.T) {
	cases := []struct {
		affected int
		want     Severity
	}{
		{0, SeverityLow},
		{100, SeverityLow},
		{101, SeverityMedium},
		{10000, SeverityMedium},
		{10001, SeverityHigh},
		{50000, SeverityHigh},
		{50001, SeverityCritical},
	}

	for _, tc := range cases {
		if got := ComputeSeverity(CategoryPoultry, tc.affected); got != tc.want {
			t.Errorf("poultry affected=%d: got %s, want %s", tc.affected, got, tc.want)
		}
	}
}

func TestComputeSeverityDomesticMammalNeverLow(t *testing.T) {
	if got := ComputeSeverity(CategoryDomesticMammal, 1); got != SeverityHigh {
		t.Fatalf("single domestic mammal detection: got %s, want %s", got, SeverityHigh)
	}
	if got := ComputeSeverity(CategoryDomesticMammal, 51); got != SeverityCritical {
		t.Fatalf("51 domestic mammals: got %s, want %s", got, SeverityCritical)
	}
}

func TestComputeSeverityWildMammalFloorIsMedium(t *testing.T) {
	if got := ComputeSeverity(CategoryWildMammal, 1); got != SeverityMedium {
		t.Fatalf("single wild mammal detection: got %s, want %s", got, SeverityMedium)
	}
}

func TestComputeSeverityMonotonic(t *testing.T) {
	categories := []AnimalCategory{
		CategoryPoultry, CategoryWildBird, CategoryWildMammal, CategoryDomesticMammal, CategoryOther,
	}
	rank := map[Severity]int{
		SeverityLow: 0, SeverityMedium: 1, SeverityHigh: 2, SeverityCritical: 3,
	}

	for _, category := range categories {
		prev := -1
		for _, affected := range []int{0, 1, 50, 51, 100, 101, 10000, 10001, 50000, 50001, 1000000} {
			got := rank[ComputeSeverity(category, affected)]
			if got < prev {
				t.Fatalf("%s: severity decreased at affected=%d", category, affected)
			}
			prev = got
		}
	}
}

func TestMetadataJSONEmptyBag(t *testing.T) {
	record := CaseRecord{}
	raw, err := record.MetadataJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != "{}" {
		t.Fatalf("empty bag: got %s, want {}", raw)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	record := CaseRecord{ExtraMetadata: map[string]string{
		"hpai_strain":     "EA/AM H5N1",
		"sampling_method": "Hunter harvest",
	}}

	raw, err := record.MetadataJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	restored, err := MetadataFromJSON(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if restored["hpai_strain"] != "EA/AM H5N1" || restored["sampling_method"] != "Hunter harvest" {
		t.Fatalf("round trip lost values: %v", restored)
	}
}
