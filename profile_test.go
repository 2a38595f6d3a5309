package geosieve

import (
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestEuropeProfileIsValid(t *testing.T) {
	if err := EuropeProfile().validate(); err != nil {
		t.Fatalf("EuropeProfile().validate() = %v", err)
	}
}

func TestLoadProfile(t *testing.T) {
	p, err := LoadProfile(filepath.Join("testdata", "profile_turkey.yaml"))
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}

	if p.Name != "europe-tr" {
		t.Errorf("Name = %q, want europe-tr", p.Name)
	}
	if !slices.Equal(p.Overrides, []string{"Cyprus", "Turkey"}) {
		t.Errorf("Overrides = %v", p.Overrides)
	}
	// Keys absent from the file keep the Europe defaults.
	def := EuropeProfile()
	if !slices.Equal(p.CandidateFields, def.CandidateFields) {
		t.Errorf("CandidateFields = %v, want defaults", p.CandidateFields)
	}
	if p.Projection != LAEAEurope {
		t.Errorf("Projection = %+v, want %+v", p.Projection, LAEAEurope)
	}
}

func TestLoadProfileErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{"missing file", "no-such-profile.yaml"},
		{"nothing to match", "profile_invalid.yaml"},
		{"origin out of range", "profile_bad_origin.yaml"},
		{"not a mapping", "profile_not_mapping.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadProfile(filepath.Join("testdata", tt.file)); err == nil {
				t.Errorf("LoadProfile(%s) succeeded, want error", tt.file)
			}
		})
	}
}

func TestProfileValidate(t *testing.T) {
	p := EuropeProfile()
	p.LongCodeColumns = nil
	if p.validate() == nil {
		t.Error("profile without long code columns validated")
	}

	p = EuropeProfile()
	p.CandidateFields = []string{}
	err := p.validate()
	if err == nil || !strings.Contains(err.Error(), "candidate_fields") {
		t.Errorf("profile without candidate fields: err = %v", err)
	}

	p = EuropeProfile()
	p.NameColumns = []string{"NAME", ""}
	if p.validate() == nil {
		t.Error("profile with a blank name column validated")
	}

	p = EuropeProfile()
	p.Continent = ""
	if err := p.validate(); err != nil {
		t.Errorf("overrides alone should be enough: %v", err)
	}
}
