package geosieve

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Profile describes the target region and the column names the pipeline
// looks for in each input. All column lists are in priority order.
type Profile struct {
	Name      string   `yaml:"name"`
	Continent string   `yaml:"continent"`
	Overrides []string `yaml:"overrides"` // country names that belong to the region regardless of continent

	ContinentColumns []string `yaml:"continent_columns" validate:"dive,required"`
	OverrideColumns  []string `yaml:"override_columns" validate:"dive,required"`
	LongCodeColumns  []string `yaml:"long_code_columns" validate:"min=1,dive,required"`
	ShortCodeColumns []string `yaml:"short_code_columns" validate:"dive,required"`
	NameColumns      []string `yaml:"name_columns" validate:"dive,required"`

	// CandidateFields are the province attributes inspected by the attribute tier.
	CandidateFields []string `yaml:"candidate_fields" validate:"min=1,dive,required"`
	// OutputColumns is the fixed output schema, without geometry.
	OutputColumns []string `yaml:"output_columns" validate:"dive,required"`

	Projection LAEAParams `yaml:"projection"`
}

// EuropeProfile matches Natural Earth admin-0/admin-1 dumps against Europe.
// Cyprus is listed under Asia in Natural Earth and is added back explicitly.
func EuropeProfile() Profile {
	return Profile{
		Name:             "europe",
		Continent:        "Europe",
		Overrides:        []string{"Cyprus"},
		ContinentColumns: []string{"CONTINENT", "continent"},
		OverrideColumns:  []string{"NAME", "name"},
		LongCodeColumns:  []string{"iso_a3", "ISO_A3", "ISO_A3_EH", "ADM0_A3"},
		ShortCodeColumns: []string{"iso_a2", "ISO_A2", "ISO_A2_EH"},
		NameColumns:      []string{"name", "NAME", "NAME_LONG", "SOVEREIGNT", "admin", "ADMIN"},
		CandidateFields: []string{
			"admin", "ADMIN",
			"adm0_name", "ADM0_NAME", "NAME_0",
			"country", "COUNTRY", "CNTRY_NAME", "COUNTRYAFF", "SOVEREIGNT",
			"iso_a2", "ISO_A2", "iso_3166_2",
			"iso_a3", "ISO_A3", "ADM0_A3",
		},
		OutputColumns: []string{"name", "name_en", "iso_a2", "iso_a3", "adm0_name", "type_en"},
		Projection:    LAEAEurope,
	}
}

// LoadProfile reads a YAML profile. Keys missing from the file keep the
// values of the Europe profile.
func LoadProfile(path string) (Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("reading profile %s: %w", path, err)
	}

	p := EuropeProfile()
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Profile{}, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	if err := p.validate(); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

var profileValidator = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their YAML key.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}()

func (p Profile) validate() error {
	if p.Continent == "" && len(p.Overrides) == 0 {
		return fmt.Errorf("%w: no continent and no overrides, nothing can match", ErrInvalidProfile)
	}

	err := profileValidator.Struct(p)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
		}
		return nil
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fieldMessage(e))
	}
	return fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(msgs, "; "))
}

func fieldMessage(e validator.FieldError) string {
	field := strings.TrimPrefix(e.Namespace(), "Profile.")
	switch e.Tag() {
	case "required":
		return field + " must not be empty"
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, e.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", field, e.Param())
	default:
		return field + " is invalid"
	}
}
