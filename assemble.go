package geosieve

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/paulmach/orb/geojson"
)

// ProvinceRecord is one candidate region and the tier that decided it.
type ProvinceRecord struct {
	Index    int
	Feature  *geojson.Feature
	Props    map[string]interface{} // attribute view the classifier read
	Tier     MatchTier
	Decision Decision        // attribute tier outcome
	Spatial  *SpatialOutcome // nil when the attribute tier matched
}

// Stats counts records per outcome.
type Stats struct {
	Total     int
	Attribute int
	Spatial   int
	Unmatched int // includes Excluded
	Excluded  int // geometry unusable for the spatial tier
}

// Result is the filtered, column-normalized output of a run.
type Result struct {
	Features []*geojson.Feature // retained records in source order
	Indices  []int              // source index of each retained feature
	Records  []ProvinceRecord   // every candidate record, in source order
	Columns  []string           // output columns present in the source
	Stats    Stats

	ref   *ReferenceSet
	chain FieldChain
}

// Assemble merges attribute and spatial hits, keeps source order, collapses
// duplicate indices and projects each feature onto the output schema.
func Assemble(ds *Dataset, records []ProvinceRecord, p Profile) *Result {
	res := &Result{
		Records: records,
		Columns: ds.PresentColumns(p.OutputColumns),
	}

	seen := make(map[int]bool, len(records))
	for _, rec := range records {
		res.Stats.Total++
		switch rec.Tier {
		case TierAttribute:
			res.Stats.Attribute++
		case TierSpatial:
			res.Stats.Spatial++
		default:
			res.Stats.Unmatched++
			if rec.Spatial != nil && rec.Spatial.Excluded() {
				res.Stats.Excluded++
			}
			continue
		}
		if !seen[rec.Index] {
			seen[rec.Index] = true
			res.Indices = append(res.Indices, rec.Index)
		}
	}
	slices.Sort(res.Indices)

	for _, i := range res.Indices {
		src := ds.Features[i]
		f := geojson.NewFeature(src.Geometry)
		f.ID = src.ID
		f.Properties = normalizeProperties(ds.Props(src), res.Columns)
		res.Features = append(res.Features, f)
	}
	return res
}

// normalizeProperties keeps only the output columns. A non-null English name
// replaces the local one, even when empty, and the name_en column is dropped.
func normalizeProperties(props map[string]interface{}, columns []string) geojson.Properties {
	out := make(geojson.Properties, len(columns))
	hasEnglish := false
	for _, c := range columns {
		if c == "name_en" {
			hasEnglish = true
			continue
		}
		out[c] = props[c]
	}
	if !hasEnglish {
		return out
	}

	if en, ok := props["name_en"]; ok && en != nil {
		out["name"] = en
	} else if _, ok := out["name"]; !ok {
		out["name"] = nil
	}
	return out
}

// Len returns the number of retained records.
func (r *Result) Len() int {
	return len(r.Features)
}

// Reference returns the reference set the result was classified against,
// nil for results built directly with Assemble.
func (r *Result) Reference() *ReferenceSet {
	return r.ref
}

// Names returns the "name" value of every retained record, "" where it is null.
func (r *Result) Names() []string {
	names := make([]string, len(r.Features))
	for i, f := range r.Features {
		names[i], _ = f.Properties["name"].(string)
	}
	return names
}

// FeatureCollection returns the retained records as a GeoJSON collection.
func (r *Result) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range r.Features {
		fc.Append(f)
	}
	return fc
}

// WriteFile serializes the result as GeoJSON at path. The file is written to
// a temporary name in the same directory and renamed into place, so a failed
// write never leaves a truncated result behind.
func (r *Result) WriteFile(path string) error {
	b, err := r.FeatureCollection().MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}

	success := false
	defer func() {
		tmp.Close()
		if !success {
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(b); err != nil {
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Chmod(0644); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming result into %s: %w", path, err)
	}
	success = true
	return nil
}

// ReadResult loads a file written by WriteFile.
func ReadResult(path string) (*geojson.FeatureCollection, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading result %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("decoding result %s: %w", path, err)
	}
	return fc, nil
}
