package geosieve

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
)

// nestedPropertiesKey is the column some exports use to hold the whole attribute mapping.
const nestedPropertiesKey = "properties"

// Dataset is a loaded geometry collection in EPSG:4326.
type Dataset struct {
	Name     string             // label used in errors and logs
	Features []*geojson.Feature // in source order; the slice index is the record index
	CRS      string             // CRS declared by the source, "" when none

	columns map[string]bool
	nested  bool
}

// ReadDataset loads a GeoJSON FeatureCollection from path.
func ReadDataset(path, name string) (*Dataset, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s dataset: %w", name, err)
	}
	defer fh.Close()
	return ParseDataset(fh, name)
}

// ParseDataset decodes a GeoJSON FeatureCollection and reprojects it to
// EPSG:4326 when the document declares another supported CRS.
func ParseDataset(r io.Reader, name string) (*Dataset, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s dataset: %w", name, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("decoding %s dataset: %w", name, err)
	}
	return NewDataset(name, fc)
}

// NewDataset wraps an already decoded collection.
func NewDataset(name string, fc *geojson.FeatureCollection) (*Dataset, error) {
	crs := declaredCRS(fc.ExtraMembers)
	toWGS84, err := reprojectionFor(crs)
	if err != nil {
		return nil, fmt.Errorf("%s dataset: %w", name, err)
	}

	ds := &Dataset{
		Name:     name,
		Features: fc.Features,
		CRS:      crs,
		columns:  make(map[string]bool),
	}

	ds.nested = len(fc.Features) > 0
	for _, f := range fc.Features {
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		if _, ok := f.Properties[nestedPropertiesKey].(map[string]interface{}); !ok {
			ds.nested = false
		}
		if toWGS84 != nil && f.Geometry != nil {
			f.Geometry = project.Geometry(f.Geometry, toWGS84)
		}
	}
	for _, f := range fc.Features {
		for k := range ds.Props(f) {
			ds.columns[k] = true
		}
	}
	return ds, nil
}

// Len returns the number of records.
func (ds *Dataset) Len() int {
	return len(ds.Features)
}

// HasColumn reports whether any record carries the attribute.
func (ds *Dataset) HasColumn(col string) bool {
	return ds.columns[col]
}

// FirstColumn returns the first of cols present in the dataset.
func (ds *Dataset) FirstColumn(cols []string) (string, bool) {
	for _, c := range cols {
		if ds.columns[c] {
			return c, true
		}
	}
	return "", false
}

// PresentColumns returns every column of cols present in the dataset, in order.
func (ds *Dataset) PresentColumns(cols []string) []string {
	var out []string
	for _, c := range cols {
		if ds.columns[c] {
			out = append(out, c)
		}
	}
	return out
}

// Nested reports whether attributes live under a "properties" member of each feature.
func (ds *Dataset) Nested() bool {
	return ds.nested
}

// Props returns the attribute mapping of f. Datasets where every feature
// wraps its attributes in a nested "properties" object are read through
// the nested map so both export shapes look the same to callers.
func (ds *Dataset) Props(f *geojson.Feature) map[string]interface{} {
	if ds.nested {
		if m, ok := f.Properties[nestedPropertiesKey].(map[string]interface{}); ok {
			return m
		}
	}
	return f.Properties
}

// declaredCRS reads the legacy GeoJSON 2008 "crs" member.
func declaredCRS(extra geojson.Properties) string {
	crs, ok := extra["crs"].(map[string]interface{})
	if !ok {
		return ""
	}
	props, ok := crs["properties"].(map[string]interface{})
	if !ok {
		return ""
	}
	name, _ := props["name"].(string)
	return name
}

// reprojectionFor returns the projection to EPSG:4326 for a declared CRS,
// nil when coordinates are already lon/lat.
func reprojectionFor(crs string) (orb.Projection, error) {
	code := strings.ToUpper(crs)
	switch {
	case code == "",
		strings.HasSuffix(code, "CRS84"),
		strings.HasSuffix(code, ":4326"):
		return nil, nil
	case strings.HasSuffix(code, ":3857"), strings.HasSuffix(code, ":900913"):
		return project.Mercator.ToWGS84, nil
	case strings.HasSuffix(code, ":3035"):
		return NewLAEA(LAEAEurope).ToWGS84, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedCRS, crs)
}
