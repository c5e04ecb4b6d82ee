// Package category holds the stocking-rate Category Index and the
// nearest-category resolver.
//
// A dataset only carries growth for a finite set of stocking rates. Requested
// rates are snapped up to the next category present in the data, never down.
package category

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
)

// Policy decides what Resolve does with a rate above the largest category.
type Policy int

const (
	// PolicyStrict rejects rates above the largest category.
	PolicyStrict Policy = iota
	// PolicyClamp resolves rates above the largest category to that category.
	PolicyClamp
)

// ParsePolicy parses the config spelling of a Policy ("error" or "clamp").
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "error", "strict":
		return PolicyStrict, nil
	case "clamp":
		return PolicyClamp, nil
	}
	return PolicyStrict, fmt.Errorf("unknown above-max policy %q (want error or clamp)", s)
}

func (p Policy) String() string {
	if p == PolicyClamp {
		return "clamp"
	}
	return "error"
}

var (
	// ErrNoCategories is returned when resolving against an empty index.
	ErrNoCategories = errors.New("no stocking rate categories available")

	// ErrRateAboveCategories is wrapped by ResolutionError when a rate exceeds the largest category.
	ErrRateAboveCategories = errors.New("requested stocking rate exceeds available data")

	// ErrInvalidRate is wrapped by ResolutionError for NaN rates.
	ErrInvalidRate = errors.New("stocking rate is not a number")
)

// ResolutionError reports a stocking rate that cannot be mapped to a category.
type ResolutionError struct {
	Rate float64
	Max  float64
	Err  error
}

func (e *ResolutionError) Error() string {
	if errors.Is(e.Err, ErrInvalidRate) {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: stocking rate %g is above the largest category %g", e.Err, e.Rate, e.Max)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Index is the ascending, duplicate-free set of stocking-rate categories
// present in a dataset. It is immutable and safe for concurrent use.
type Index struct {
	values []float64
	policy Policy
}

// New builds an Index from raw category values in any order.
// The input slice is not modified. NaN values are dropped.
func New(values []float64, policy Policy) *Index {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	sort.Float64s(sorted)
	return &Index{values: slices.Compact(sorted), policy: policy}
}

// Values returns a copy of the categories in ascending order.
func (x *Index) Values() []float64 {
	return slices.Clone(x.values)
}

// Len returns the number of categories.
func (x *Index) Len() int { return len(x.values) }

// Policy returns the above-max policy the index resolves with.
func (x *Index) Policy() Policy { return x.policy }

// Min returns the smallest category, or false when the index is empty.
func (x *Index) Min() (float64, bool) {
	if len(x.values) == 0 {
		return 0, false
	}
	return x.values[0], true
}

// Max returns the largest category, or false when the index is empty.
func (x *Index) Max() (float64, bool) {
	if len(x.values) == 0 {
		return 0, false
	}
	return x.values[len(x.values)-1], true
}

// Equal reports whether both indexes hold the same categories.
func (x *Index) Equal(other *Index) bool {
	return slices.Equal(x.values, other.values)
}

// Resolve maps a requested stocking rate to the smallest category that is
// greater than or equal to it.
func (x *Index) Resolve(rate float64) (float64, error) {
	if len(x.values) == 0 {
		return 0, ErrNoCategories
	}
	if math.IsNaN(rate) {
		return 0, &ResolutionError{Rate: rate, Err: ErrInvalidRate}
	}

	i := sort.SearchFloat64s(x.values, rate)
	if i < len(x.values) {
		return x.values[i], nil
	}

	largest := x.values[len(x.values)-1]
	if x.policy == PolicyClamp {
		return largest, nil
	}
	return 0, &ResolutionError{Rate: rate, Max: largest, Err: ErrRateAboveCategories}
}
