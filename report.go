package geosieve

import (
	"encoding/json"
	"fmt"
	"os"
	"unicode/utf8"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/agnivade/levenshtein"
)

const (
	// reportGeohashPrecision gives ~150m cells, enough to find a centroid on a map.
	reportGeohashPrecision = 7

	// maxNearMissDistance bounds the edit distance of a near-miss hint.
	maxNearMissDistance = 2
)

// Report describes every record the attribute tier could not decide.
type Report struct {
	Stats   Stats         `json:"stats"`
	Entries []ReportEntry `json:"entries"`
}

// ReportEntry is one record that went to the spatial tier.
type ReportEntry struct {
	Index    int       `json:"index"`
	Name     string    `json:"name,omitempty"`
	Tier     MatchTier `json:"tier"`
	Centroid []float64 `json:"centroid,omitempty"` // [lon, lat]
	Geohash  string    `json:"geohash,omitempty"`
	Excluded string    `json:"excluded,omitempty"`
	NearMiss *NearMiss `json:"near_miss,omitempty"`
}

// NearMiss points at a reference name that almost matched an attribute,
// which usually means a misspelling or transliteration in the source.
type NearMiss struct {
	Field     string `json:"field"`
	Value     string `json:"value"`
	Reference string `json:"reference"`
	Distance  int    `json:"distance"`
}

// Report builds the diagnostics for r. Near-miss hints are only computed for
// records that ended up unmatched.
func (r *Result) Report() Report {
	rep := Report{Stats: r.Stats, Entries: []ReportEntry{}}
	for _, rec := range r.Records {
		if rec.Spatial == nil {
			continue
		}
		e := ReportEntry{Index: rec.Index, Tier: rec.Tier}
		e.Name, _ = stringValue(rec.Props["name"])

		if rec.Spatial.Excluded() {
			e.Excluded = rec.Spatial.Err.Error()
		} else {
			c := rec.Spatial.Centroid
			e.Centroid = []float64{c[0], c[1]}
			e.Geohash = geohash.EncodeWithPrecision(c[1], c[0], reportGeohashPrecision)
		}
		if rec.Tier == TierUnmatched {
			e.NearMiss = r.nearMiss(rec.Props)
		}
		rep.Entries = append(rep.Entries, e)
	}
	return rep
}

func (r *Result) nearMiss(props map[string]interface{}) *NearMiss {
	if r.ref == nil {
		return nil
	}
	var best *NearMiss
	for _, f := range r.chain {
		v, ok := f.Get(props)
		if !ok || utf8.RuneCountInString(v) <= 3 {
			continue
		}
		key := foldName(v)
		for name := range r.ref.names {
			d := levenshtein.ComputeDistance(key, name)
			if d == 0 || d > maxNearMissDistance {
				continue
			}
			if best == nil || d < best.Distance || (d == best.Distance && name < best.Reference) {
				best = &NearMiss{Field: f.Name, Value: v, Reference: name, Distance: d}
			}
		}
	}
	return best
}

// WriteFile writes the report as indented JSON.
func (rep Report) WriteFile(path string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}
