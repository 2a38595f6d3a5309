package geosieve

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// nullSentinels are placeholder values Natural Earth writes where a code is unknown.
var nullSentinels = map[string]bool{
	"-99": true,
	"-1":  true,
}

// foldName returns the case-insensitive comparison key for a name.
// "Straße" and "STRASSE" share a key. Casers are stateful, so each call
// builds its own.
func foldName(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// toUpper converts a code to its canonical uppercase form.
func toUpper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// stringValue converts a raw attribute value to a trimmed string.
// The second result is false for values that count as missing: nil, empty
// strings, false, zero, NaN and Natural Earth's placeholder codes.
func stringValue(v any) (string, bool) {
	var s string
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		s = x
	case bool:
		if !x {
			return "", false
		}
		s = strconv.FormatBool(x)
	case float64:
		if x == 0 || math.IsNaN(x) {
			return "", false
		}
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		if x == 0 {
			return "", false
		}
		s = strconv.Itoa(x)
	default:
		return "", false
	}

	s = strings.TrimSpace(s)
	if s == "" || nullSentinels[s] {
		return "", false
	}
	return s, true
}
