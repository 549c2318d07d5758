package geocode

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/fluwatch/pipeline/internal/domain"
)

// Point is an approximate WGS-84 coordinate pair.
type Point struct {
	Lat float64
	Lon float64
}

// Resolver maps (county, state) pairs to approximate coordinates using a
// tiered lookup: cache, county centroid table, state centroid fallback.
// It owns its cache; separate pipeline runs get separate resolvers unless
// one is shared deliberately, in which case the mutex keeps it safe.
type Resolver struct {
	log *slog.Logger

	mu       sync.Mutex
	cache    map[string]Point
	counties map[string]Point
}

// NewResolver creates a resolver with an empty cache and no county table.
func NewResolver(log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		log:   log,
		cache: make(map[string]Point),
	}
}

// LoadCountyTable ingests a county centroid CSV with columns
// county, state, latitude, longitude. The table is optional; without it
// resolution falls through to state centroids.
func (r *Resolver) LoadCountyTable(payload []byte) error {
	reader := csv.NewReader(bytes.NewReader(payload))
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read county lookup table: %w", err)
	}
	if len(rows) < 2 {
		return fmt.Errorf("county lookup table has no data rows")
	}

	columns := make(map[string]int, len(rows[0]))
	for i, header := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, required := range []string{"county", "state", "latitude", "longitude"} {
		if _, ok := columns[required]; !ok {
			return fmt.Errorf("county lookup table missing column %q", required)
		}
	}

	counties := make(map[string]Point, len(rows)-1)
	for _, row := range rows[1:] {
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(row[columns["latitude"]]), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(row[columns["longitude"]]), 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		key := lookupKey(row[columns["county"]], row[columns["state"]])
		counties[key] = Point{Lat: lat, Lon: lon}
	}

	r.mu.Lock()
	r.counties = counties
	r.mu.Unlock()

	r.log.Info("loaded county centroid table", "counties", len(counties))
	return nil
}

// Resolve returns an approximate point for a county/state pair, or false if
// no tier can place it. Fallback hits are cached alongside exact ones.
func (r *Resolver) Resolve(county, state string) (Point, bool) {
	state = expandStateCode(state)
	key := lookupKey(county, state)
	if key == "|" {
		return Point{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if point, ok := r.cache[key]; ok {
		return point, true
	}

	if point, ok := r.counties[key]; ok {
		r.cache[key] = point
		return point, true
	}

	if point, ok := stateCentroids[normalizeName(state)]; ok {
		r.cache[key] = point
		return point, true
	}

	return Point{}, false
}

// Stats describes one batch resolution pass.
type Stats struct {
	Resolved   int
	Unresolved int
}

// PercentResolved is the geocoding success rate for reporting.
func (s Stats) PercentResolved() float64 {
	total := s.Resolved + s.Unresolved
	if total == 0 {
		return 0
	}
	return float64(s.Resolved) / float64(total) * 100
}

// ResolveBatch fills coordinates in place for every resolvable record.
// Unresolvable records keep nil coordinates and flow onward; missing
// location is a reporting metric, not an error.
func (r *Resolver) ResolveBatch(records []domain.CaseRecord) Stats {
	var stats Stats
	for i := range records {
		point, ok := r.Resolve(records[i].County, records[i].StateProvince)
		if !ok {
			stats.Unresolved++
			continue
		}
		lat, lon := point.Lat, point.Lon
		records[i].Latitude = &lat
		records[i].Longitude = &lon
		stats.Resolved++
	}
	return stats
}

// CacheSize reports the number of cached lookups.
func (r *Resolver) CacheSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

// lookupKey normalizes county and state so "Canyon, Idaho" and
// "canyon , ID" hit the same entry.
func lookupKey(county, state string) string {
	return normalizeName(county) + "|" + normalizeName(expandStateCode(state))
}

func normalizeName(value string) string {
	words := strings.Fields(strings.ToLower(value))
	for i, word := range words {
		first, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(first)) + word[size:]
	}
	return strings.Join(words, " ")
}

func expandStateCode(state string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(state))
	if full, ok := stateCodes[trimmed]; ok {
		return full
	}
	return state
}
