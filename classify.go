package geosieve

import (
	"strings"
	"unicode/utf8"
)

// MatchTier names the stage that decided a record.
type MatchTier string

const (
	TierUnmatched MatchTier = "unmatched"
	TierAttribute MatchTier = "attribute"
	TierSpatial   MatchTier = "spatial"
)

// MatchKind tells which reference set confirmed an attribute match.
type MatchKind string

const (
	KindNone MatchKind = ""
	KindISO2 MatchKind = "iso2"
	KindISO3 MatchKind = "iso3"
	KindName MatchKind = "name"
)

// FieldAccessor extracts a candidate identifier from a record's attributes.
// It returns false when the field is absent or holds a missing value.
type FieldAccessor func(props map[string]interface{}) (string, bool)

// Field pairs an attribute name with the accessor that reads it.
type Field struct {
	Name string
	Get  FieldAccessor
}

// FieldChain is the ordered list of fields the attribute tier tries. The
// order is a priority order on field names only: the first field whose value
// matches a reference set decides the record.
type FieldChain []Field

// NewFieldChain builds a chain over the given attribute names. Every field
// is read as a whole trimmed value, so a subdivision code such as "BE-VAN"
// is only ever compared against the name set.
func NewFieldChain(names []string) FieldChain {
	chain := make(FieldChain, 0, len(names))
	for _, name := range names {
		chain = append(chain, Field{Name: name, Get: attributeField(name)})
	}
	return chain
}

func attributeField(name string) FieldAccessor {
	return func(props map[string]interface{}) (string, bool) {
		return stringValue(props[name])
	}
}

// Decision is the outcome of the attribute tier for one record.
type Decision struct {
	Match bool
	Field string    // the field that matched
	Value string    // its trimmed value
	Kind  MatchKind // which set confirmed it
}

// Tier returns TierAttribute for a match and TierUnmatched otherwise.
func (d Decision) Tier() MatchTier {
	if d.Match {
		return TierAttribute
	}
	return TierUnmatched
}

// ClassifyAttributes runs the fallback chain over props. Values are
// dispatched on their length: two characters are tried as short codes,
// three as long codes, anything else as a country name.
//
// It has no side effects and depends only on its arguments, so records can
// be classified in any order and in parallel.
func ClassifyAttributes(props map[string]interface{}, ref *ReferenceSet, chain FieldChain) Decision {
	for _, f := range chain {
		v, ok := f.Get(props)
		if !ok {
			continue
		}
		if kind, ok := ref.matchValue(v); ok {
			return Decision{Match: true, Field: f.Name, Value: v, Kind: kind}
		}
	}
	return Decision{}
}

func (r *ReferenceSet) matchValue(v string) (MatchKind, bool) {
	v = strings.TrimSpace(v)
	switch utf8.RuneCountInString(v) {
	case 2:
		return KindISO2, r.HasISO2(v)
	case 3:
		return KindISO3, r.HasISO3(v)
	default:
		return KindName, r.HasName(v)
	}
}
