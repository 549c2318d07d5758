package geocode

import (
	"testing"

	"github.com/fluwatch/pipeline/internal/domain"
)

const countyCSV = `county,state,latitude,longitude
Canyon,Idaho,43.6254,-116.7089
Weld,Colorado,40.5548,-104.3930
Bad,Idaho,not-a-number,0
`

func TestResolvePrefersCountyTable(t *testing.T) {
	r := NewResolver(nil)
	if err := r.LoadCountyTable([]byte(countyCSV)); err != nil {
		t.Fatalf("load: %v", err)
	}

	point, ok := r.Resolve("Canyon", "Idaho")
	if !ok {
		t.Fatalf("expected county hit")
	}
	if point.Lat != 43.6254 || point.Lon != -116.7089 {
		t.Fatalf("unexpected point: %+v", point)
	}
}

func TestResolveNormalizesNamesAndStateCodes(t *testing.T) {
	r := NewResolver(nil)
	if err := r.LoadCountyTable([]byte(countyCSV)); err != nil {
		t.Fatalf("load: %v", err)
	}

	exact, _ := r.Resolve("Canyon", "Idaho")
	messy, ok := r.Resolve("  canyon ", "ID")
	if !ok || messy != exact {
		t.Fatalf("\"canyon, ID\" should match \"Canyon, Idaho\": %+v vs %+v", messy, exact)
	}
}

func TestResolveHandlesNonASCIICountyNames(t *testing.T) {
	r := NewResolver(nil)
	table := "county,state,latitude,longitude\nDoña Ana,New Mexico,32.3199,-106.7637\n"
	if err := r.LoadCountyTable([]byte(table)); err != nil {
		t.Fatalf("load: %v", err)
	}

	point, ok := r.Resolve("DOÑA ANA", "NM")
	if !ok {
		t.Fatalf("accented county name should resolve regardless of input case")
	}
	if point.Lat != 32.3199 {
		t.Fatalf("unexpected point: %+v", point)
	}
}

func TestResolveFallsBackToStateCentroid(t *testing.T) {
	r := NewResolver(nil)
	if err := r.LoadCountyTable([]byte(countyCSV)); err != nil {
		t.Fatalf("load: %v", err)
	}

	point, ok := r.Resolve("Nowhere", "Texas")
	if !ok {
		t.Fatalf("expected state centroid fallback")
	}
	if point.Lat < 25 || point.Lat > 37 || point.Lon > -93 || point.Lon < -107 {
		t.Fatalf("point not in Texas: %+v", point)
	}
}

func TestResolveUnknownLocation(t *testing.T) {
	r := NewResolver(nil)

	if _, ok := r.Resolve("Nowhere", "Atlantis"); ok {
		t.Fatalf("unknown state should not resolve")
	}
	if _, ok := r.Resolve("", ""); ok {
		t.Fatalf("empty location should not resolve")
	}
}

func TestResolveCachesFallbackHits(t *testing.T) {
	r := NewResolver(nil)

	if r.CacheSize() != 0 {
		t.Fatalf("fresh resolver should have empty cache")
	}
	if _, ok := r.Resolve("Nowhere", "Texas"); !ok {
		t.Fatalf("expected fallback hit")
	}
	if r.CacheSize() != 1 {
		t.Fatalf("fallback hit should be cached, cache size %d", r.CacheSize())
	}
}

func TestResolveBatchFillsCoordinatesInPlace(t *testing.T) {
	r := NewResolver(nil)
	if err := r.LoadCountyTable([]byte(countyCSV)); err != nil {
		t.Fatalf("load: %v", err)
	}

	records := []domain.CaseRecord{
		{County: "Canyon", StateProvince: "Idaho"},
		{County: "Somewhere", StateProvince: "Colorado"},
		{County: "Lost", StateProvince: "Atlantis"},
	}

	stats := r.ResolveBatch(records)
	if stats.Resolved != 2 || stats.Unresolved != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if records[0].Latitude == nil || *records[0].Latitude != 43.6254 {
		t.Fatalf("county record not filled: %v", records[0].Latitude)
	}
	if records[1].Latitude == nil {
		t.Fatalf("state fallback record not filled")
	}
	if records[2].Latitude != nil {
		t.Fatalf("unresolvable record must keep nil coordinates")
	}
	if pct := stats.PercentResolved(); pct < 66 || pct > 67 {
		t.Fatalf("percent resolved: got %f", pct)
	}
}

func TestLoadCountyTableSkipsBadRowsAndRequiresColumns(t *testing.T) {
	r := NewResolver(nil)
	if err := r.LoadCountyTable([]byte(countyCSV)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := r.Resolve("Bad", "Idaho"); ok {
		// The bad row falls through to the Idaho state centroid instead.
		point, _ := r.Resolve("Bad", "Idaho")
		if point.Lon == 0 {
			t.Fatalf("unparseable row should have been dropped from the table")
		}
	}

	if err := r.LoadCountyTable([]byte("county,latitude,longitude\nCanyon,1,2\n")); err == nil {
		t.Fatalf("missing state column should fail")
	}
}
