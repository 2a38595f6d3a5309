package geosieve

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchema is matched by every *SchemaError.
	ErrSchema = errors.New("dataset schema error")

	// ErrLookupUnavailable reports that the short-code registry is missing or failed.
	// The pipeline recovers from it by leaving the ISO-2 set empty.
	ErrLookupUnavailable = errors.New("code lookup unavailable")

	// ErrCodeNotFound is returned by a CodeRegistry for a code it does not know.
	ErrCodeNotFound = errors.New("country code not found")

	// ErrUnsupportedCRS is returned when a dataset declares a CRS we cannot reproject.
	ErrUnsupportedCRS = errors.New("unsupported coordinate reference system")

	// ErrMalformedGeometry marks a record whose geometry cannot be used by the spatial tier.
	ErrMalformedGeometry = errors.New("malformed geometry")

	// ErrInvalidProfile is wrapped by every profile validation failure.
	ErrInvalidProfile = errors.New("invalid profile")

	// ErrProjection marks a reprojection that produced no finite coordinates.
	ErrProjection = errors.New("projection failed")
)

// SchemaError reports that a mandatory column is missing from a dataset.
type SchemaError struct {
	Dataset    string   // which input, e.g. "countries"
	Candidates []string // column names that were tried, in priority order
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: none of the columns [%s] is present", e.Dataset, strings.Join(e.Candidates, ", "))
}

// Is makes errors.Is(err, ErrSchema) true for any SchemaError.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}
