package geosieve

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/paulmach/orb"
)

func TestBuildReferenceSet(t *testing.T) {
	ref := fixtureReference(t)

	if got, want := ref.ISO2(), []string{"BE", "CY", "NL"}; !slices.Equal(got, want) {
		t.Errorf("ISO2() = %v, want %v", got, want)
	}
	if got, want := ref.ISO3(), []string{"BEL", "CYP", "NLD"}; !slices.Equal(got, want) {
		t.Errorf("ISO3() = %v, want %v", got, want)
	}
	if got, want := ref.Names(), []string{"belgium", "cyprus", "france", "netherlands"}; !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if ref.ISO2Source() != "ISO_A2" {
		t.Errorf("ISO2Source() = %q, want ISO_A2", ref.ISO2Source())
	}
	if ref.ISO2Backfilled() {
		t.Error("ISO2Backfilled() = true for a dataset with short codes")
	}

	members := ref.Members()
	if len(members) != 4 {
		t.Fatalf("len(Members()) = %d, want 4", len(members))
	}
	for _, m := range members {
		if m.LongCode == "USA" || m.LongCode == "TUR" {
			t.Errorf("non-European country %s in members", m.LongCode)
		}
	}
	if len(ref.Boundary()) != 4 {
		t.Errorf("len(Boundary()) = %d, want 4", len(ref.Boundary()))
	}
}

func TestBuildReferenceSetSentinelCodesAreSkipped(t *testing.T) {
	ref := fixtureReference(t)

	// France carries -99 for both codes in Natural Earth.
	if ref.HasISO3("-99") || ref.HasISO2("-9") {
		t.Error("sentinel code made it into the code sets")
	}
	if !ref.HasName("France") {
		t.Error("France is missing from the name set")
	}
	if !ref.Intersects(orb.Point{2.35, 48.85}) {
		t.Error("Paris is outside the boundary")
	}
}

func TestBuildReferenceSetMissingLongCode(t *testing.T) {
	ds, err := ReadDataset(filepath.Join("testdata", "countries_no_long_code.geojson"), "countries")
	if err != nil {
		t.Fatalf("loading countries: %v", err)
	}

	_, err = BuildReferenceSet(ds, EuropeProfile(), StaticRegistry{"BEL": "BE"}, nil)
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("err = %v, want ErrSchema", err)
	}
}

func TestBuildReferenceSetBackfill(t *testing.T) {
	ds, err := ReadDataset(filepath.Join("testdata", "countries_no_iso2.geojson"), "countries")
	if err != nil {
		t.Fatalf("loading countries: %v", err)
	}

	tests := []struct {
		name           string
		reg            CodeRegistry
		wantISO2       []string
		wantBackfilled bool
	}{
		{
			name:           "static registry",
			reg:            StaticRegistry{"BEL": "BE", "NLD": "nl", "CYP": "CY", "USA": "US"},
			wantISO2:       []string{"BE", "CY", "NL"},
			wantBackfilled: true,
		},
		{
			name:           "partial registry",
			reg:            StaticRegistry{"BEL": "BE"},
			wantISO2:       []string{"BE"},
			wantBackfilled: true,
		},
		{
			name:           "registry knows nothing",
			reg:            StaticRegistry{},
			wantISO2:       []string{},
			wantBackfilled: false,
		},
		{
			name:           "no registry",
			reg:            nil,
			wantISO2:       []string{},
			wantBackfilled: false,
		},
		{
			name:           "broken registry",
			reg:            failingRegistry{},
			wantISO2:       []string{},
			wantBackfilled: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := BuildReferenceSet(ds, EuropeProfile(), tt.reg, nil)
			if err != nil {
				t.Fatalf("BuildReferenceSet: %v", err)
			}
			if got := ref.ISO2(); !slices.Equal(got, tt.wantISO2) {
				t.Errorf("ISO2() = %v, want %v", got, tt.wantISO2)
			}
			if ref.ISO2Backfilled() != tt.wantBackfilled {
				t.Errorf("ISO2Backfilled() = %v, want %v", ref.ISO2Backfilled(), tt.wantBackfilled)
			}
			// Long codes and names are unaffected by the registry.
			if !ref.HasISO3("NLD") || !ref.HasName("netherlands") {
				t.Error("long code or name set lost an entry")
			}
		})
	}
}

type failingRegistry struct{}

func (failingRegistry) Alpha2(string) (string, error) {
	return "", errors.New("registry offline")
}

func TestBackfillISO2(t *testing.T) {
	got, err := BackfillISO2([]string{"BEL", "XXX", "NLD"}, StaticRegistry{"BEL": "be", "NLD": "NLD"})
	if err != nil {
		t.Fatalf("BackfillISO2: %v", err)
	}
	// NLD maps to a three-letter value and is dropped.
	if len(got) != 1 || !got["BE"] {
		t.Errorf("BackfillISO2 = %v, want map[BE:true]", got)
	}

	got, err = BackfillISO2([]string{"BEL"}, nil)
	if !errors.Is(err, ErrLookupUnavailable) || len(got) != 0 {
		t.Errorf("nil registry: got (%v, %v), want empty set and ErrLookupUnavailable", got, err)
	}

	got, err = BackfillISO2([]string{"BEL"}, failingRegistry{})
	if !errors.Is(err, ErrLookupUnavailable) || len(got) != 0 {
		t.Errorf("failing registry: got (%v, %v), want empty set and ErrLookupUnavailable", got, err)
	}

	got, err = BackfillISO2(nil, StaticRegistry{})
	if err != nil || len(got) != 0 {
		t.Errorf("no codes: got (%v, %v), want empty set and nil", got, err)
	}
}

func TestBuildReferenceSetOverridesIgnoreCase(t *testing.T) {
	ds, err := ReadDataset(filepath.Join("testdata", "countries.geojson"), "countries")
	if err != nil {
		t.Fatalf("loading countries: %v", err)
	}

	p := EuropeProfile()
	p.Overrides = []string{"CYPRUS", "turkey"}
	ref, err := BuildReferenceSet(ds, p, nil, nil)
	if err != nil {
		t.Fatalf("BuildReferenceSet: %v", err)
	}
	if !ref.HasISO3("CYP") || !ref.HasISO3("TUR") {
		t.Errorf("ISO3() = %v, want CYP and TUR included", ref.ISO3())
	}
	if ref.HasISO3("USA") {
		t.Error("USA included without an override")
	}
}
