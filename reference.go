package geosieve

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/paulmach/orb"
)

// CountryRecord is one row of the country reference dataset.
type CountryRecord struct {
	Index     int
	ShortCode string // "" when the dataset has no short-code column or the value is null
	LongCode  string
	Names     []string
	Continent string
	Geometry  orb.Geometry
}

// ReferenceSet holds the accepted identifiers of the target region and its
// boundary. It is built once per run and never modified afterwards, so one
// value is shared by every classification worker.
type ReferenceSet struct {
	iso2  map[string]bool
	iso3  map[string]bool
	names map[string]bool

	members  []CountryRecord
	boundary orb.MultiPolygon
	index    *boundaryIndex

	iso2Source     string
	iso2Backfilled bool
	longCodeColumn string
	nameColumns    []string
}

// HasISO2 reports whether code (any case) is a short code of the region.
func (r *ReferenceSet) HasISO2(code string) bool { return r.iso2[toUpper(code)] }

// HasISO3 reports whether code (any case) is a long code of the region.
func (r *ReferenceSet) HasISO3(code string) bool { return r.iso3[toUpper(code)] }

// HasName reports whether name matches a region country name, ignoring case.
func (r *ReferenceSet) HasName(name string) bool { return r.names[foldName(name)] }

// ISO2 returns the sorted short codes.
func (r *ReferenceSet) ISO2() []string { return slices.Sorted(maps.Keys(r.iso2)) }

// ISO3 returns the sorted long codes.
func (r *ReferenceSet) ISO3() []string { return slices.Sorted(maps.Keys(r.iso3)) }

// Names returns the sorted case-folded names.
func (r *ReferenceSet) Names() []string { return slices.Sorted(maps.Keys(r.names)) }

// Members returns the reference rows that belong to the region.
func (r *ReferenceSet) Members() []CountryRecord { return slices.Clone(r.members) }

// Boundary returns the union of member geometries in EPSG:4326.
// The returned value is shared; callers must not modify it.
func (r *ReferenceSet) Boundary() orb.MultiPolygon { return r.boundary }

// ISO2Source is the short-code column the set was read from, "" if none existed.
func (r *ReferenceSet) ISO2Source() string { return r.iso2Source }

// ISO2Backfilled reports whether the short codes came from a CodeRegistry.
func (r *ReferenceSet) ISO2Backfilled() bool { return r.iso2Backfilled }

// BuildReferenceSet derives the region's code and name sets and its boundary
// from a country-level dataset. reg may be nil; it is only consulted when the
// dataset yields no short codes. The only fatal error is a missing long-code
// column, reported as a *SchemaError.
func BuildReferenceSet(ds *Dataset, p Profile, reg CodeRegistry, logger *slog.Logger) (*ReferenceSet, error) {
	logger = orDiscard(logger)

	longCol, ok := ds.FirstColumn(p.LongCodeColumns)
	if !ok {
		return nil, &SchemaError{Dataset: ds.Name, Candidates: p.LongCodeColumns}
	}

	ref := &ReferenceSet{
		iso2:           make(map[string]bool),
		iso3:           make(map[string]bool),
		names:          make(map[string]bool),
		longCodeColumn: longCol,
		nameColumns:    ds.PresentColumns(p.NameColumns),
	}
	if len(ref.nameColumns) == 0 {
		logger.Warn("no name columns in reference dataset, name matching disabled",
			"dataset", ds.Name, "candidates", p.NameColumns)
	}
	if col, ok := ds.FirstColumn(p.ShortCodeColumns); ok {
		ref.iso2Source = col
	}

	continentCol, hasContinent := ds.FirstColumn(p.ContinentColumns)
	if !hasContinent {
		logger.Warn("no continent column in reference dataset, only overrides can match",
			"dataset", ds.Name, "candidates", p.ContinentColumns)
	}
	overrideCols := ds.PresentColumns(p.OverrideColumns)
	overrides := make(map[string]bool, len(p.Overrides))
	for _, o := range p.Overrides {
		overrides[foldName(o)] = true
	}

	for i, f := range ds.Features {
		props := ds.Props(f)

		member := false
		if hasContinent {
			c, _ := stringValue(props[continentCol])
			member = c == p.Continent
		}
		for _, col := range overrideCols {
			if v, ok := stringValue(props[col]); ok && overrides[foldName(v)] {
				member = true
			}
		}
		if !member {
			continue
		}

		rec := CountryRecord{Index: i, Geometry: f.Geometry}
		rec.LongCode, _ = stringValue(props[longCol])
		if ref.iso2Source != "" {
			rec.ShortCode, _ = stringValue(props[ref.iso2Source])
		}
		if hasContinent {
			rec.Continent, _ = stringValue(props[continentCol])
		}
		for _, col := range ref.nameColumns {
			if v, ok := stringValue(props[col]); ok {
				rec.Names = append(rec.Names, v)
			}
		}
		ref.add(rec, logger)
	}

	if len(ref.iso2) == 0 {
		iso2, err := BackfillISO2(ref.ISO3(), reg)
		if err != nil {
			logger.Warn("short codes unavailable, matching on long codes and names only", "error", err)
		} else {
			ref.iso2 = iso2
			ref.iso2Backfilled = len(iso2) > 0
		}
	}

	ref.index = newBoundaryIndex(ref.boundary)

	logger.Info("reference set built",
		"dataset", ds.Name,
		"members", len(ref.members),
		"iso2", len(ref.iso2),
		"iso3", len(ref.iso3),
		"names", len(ref.names),
		"long_code_column", longCol,
		"short_code_column", ref.iso2Source,
		"iso2_backfilled", ref.iso2Backfilled)
	return ref, nil
}

func (r *ReferenceSet) add(rec CountryRecord, logger *slog.Logger) {
	if rec.LongCode != "" {
		r.iso3[toUpper(rec.LongCode)] = true
	}
	if rec.ShortCode != "" {
		r.iso2[toUpper(rec.ShortCode)] = true
	}
	for _, n := range rec.Names {
		r.names[foldName(n)] = true
	}

	switch g := rec.Geometry.(type) {
	case orb.Polygon:
		r.boundary = append(r.boundary, g)
	case orb.MultiPolygon:
		r.boundary = append(r.boundary, g...)
	default:
		logger.Warn("reference country has no polygonal geometry, left out of boundary",
			"index", rec.Index, "long_code", rec.LongCode)
	}
	r.members = append(r.members, rec)
}

// BackfillISO2 derives short codes from long codes through reg. Codes the
// registry does not know are skipped. A nil registry, or a registry that
// fails outright, yields an empty set and an error wrapping ErrLookupUnavailable.
// An empty set with a nil error is a valid outcome.
func BackfillISO2(iso3 []string, reg CodeRegistry) (map[string]bool, error) {
	out := make(map[string]bool)
	if reg == nil {
		return out, fmt.Errorf("%w: no code registry configured", ErrLookupUnavailable)
	}

	for _, code := range iso3 {
		iso2, err := reg.Alpha2(code)
		if errors.Is(err, ErrCodeNotFound) {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrLookupUnavailable) {
				return make(map[string]bool), err
			}
			return make(map[string]bool), fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
		}
		if iso2 = toUpper(iso2); len(iso2) == 2 {
			out[iso2] = true
		}
	}
	return out, nil
}
