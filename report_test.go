package geosieve

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func fixtureResult(t *testing.T) *Result {
	t.Helper()
	countries, err := ReadDataset(filepath.Join("testdata", "countries.geojson"), "countries")
	if err != nil {
		t.Fatalf("loading countries: %v", err)
	}
	provinces, err := ReadDataset(filepath.Join("testdata", "provinces.geojson"), "provinces")
	if err != nil {
		t.Fatalf("loading provinces: %v", err)
	}
	s, err := New(WithDataDir(t.TempDir()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := s.Classify(context.Background(), countries, provinces)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	return res
}

func TestReport(t *testing.T) {
	rep := fixtureResult(t).Report()

	if rep.Stats.Total != 9 {
		t.Errorf("Stats.Total = %d, want 9", rep.Stats.Total)
	}

	byIndex := make(map[int]ReportEntry)
	for _, e := range rep.Entries {
		byIndex[e.Index] = e
	}
	// Every record the attribute tier left open, and nothing else.
	for _, i := range []int{2, 3, 4, 5, 6, 7, 8} {
		if _, ok := byIndex[i]; !ok {
			t.Errorf("record %d missing from report", i)
		}
	}
	if len(rep.Entries) != 7 {
		t.Errorf("len(Entries) = %d, want 7", len(rep.Entries))
	}

	zeeland := byIndex[8]
	if zeeland.Tier != TierSpatial || zeeland.Name != "Zeeland" {
		t.Errorf("Zeeland entry = %+v", zeeland)
	}
	if len(zeeland.Geohash) != reportGeohashPrecision || !strings.HasPrefix(zeeland.Geohash, "u1") {
		t.Errorf("Zeeland geohash = %q, want a 7-character hash starting with u1", zeeland.Geohash)
	}
	if zeeland.NearMiss != nil {
		t.Errorf("matched record has near-miss hint %+v", zeeland.NearMiss)
	}

	mystery := byIndex[5]
	if mystery.Excluded == "" || mystery.Geohash != "" || mystery.Centroid != nil {
		t.Errorf("excluded record entry = %+v", mystery)
	}

	texas := byIndex[3]
	if texas.Tier != TierUnmatched || texas.NearMiss != nil || len(texas.Centroid) != 2 {
		t.Errorf("Texas entry = %+v", texas)
	}
}

func TestReportNearMiss(t *testing.T) {
	rep := fixtureResult(t).Report()

	var flevoland *ReportEntry
	for i := range rep.Entries {
		if rep.Entries[i].Index == 6 {
			flevoland = &rep.Entries[i]
		}
	}
	if flevoland == nil {
		t.Fatal("Flevoland missing from report")
	}

	want := NearMiss{Field: "country", Value: "Netherland", Reference: "netherlands", Distance: 1}
	if flevoland.NearMiss == nil || *flevoland.NearMiss != want {
		t.Errorf("NearMiss = %+v, want %+v", flevoland.NearMiss, want)
	}
}

func TestReportWithoutReference(t *testing.T) {
	res := &Result{Records: []ProvinceRecord{{
		Index:   0,
		Props:   map[string]interface{}{"country": "Netherland"},
		Tier:    TierUnmatched,
		Spatial: &SpatialOutcome{Tier: TierUnmatched, Err: ErrMalformedGeometry},
	}}}

	rep := res.Report()
	if len(rep.Entries) != 1 || rep.Entries[0].NearMiss != nil {
		t.Errorf("Report() = %+v, want one entry without hint", rep)
	}
}

func TestReportWriteFile(t *testing.T) {
	rep := fixtureResult(t).Report()
	path := filepath.Join(t.TempDir(), "report.json")

	if err := rep.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Report
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if decoded.Stats != rep.Stats || len(decoded.Entries) != len(rep.Entries) {
		t.Errorf("decoded report differs: %+v", decoded)
	}

	if err := rep.WriteFile(filepath.Join(t.TempDir(), "missing", "report.json")); err == nil {
		t.Error("WriteFile into a missing directory succeeded")
	}
}
