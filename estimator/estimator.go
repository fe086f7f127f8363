// Package estimator defines the call boundary to the externally trained
// emission regression model and the schema reconciliation protecting it.
package estimator

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Features is a single-row input record for the estimator, keyed by
// column name. Values are the raw feature values (strings for
// categorical columns, numbers for the rest).
type Features map[string]any

// Clone returns a deep copy of the feature record. The reconciler only
// ever mutates its own copy, never the caller's record.
func (f Features) Clone() Features {
	copied := make(Features, len(f))
	for k, v := range f {
		copied[k] = v
	}
	return copied
}

// Fingerprint returns a canonical string representation of the record,
// stable across map iteration order. Used as a cache key.
func (f Features) Fingerprint() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, f[k]))
	}
	return strings.Join(pairs, ",")
}

// Estimator is the opaque, independently trained and versioned model
// producing the authoritative total for a waste treatment event.
type Estimator interface {
	// Estimate returns the predicted total emission in kgCO2eq for one
	// feature record. The expected input schema belongs to the model
	// and can drift ahead of the caller's known fields.
	Estimate(ctx context.Context, features Features) (float64, error)
}

// SchemaReporter is optionally implemented by estimators that can
// enumerate their required input columns. When available, the
// reconciler diffs the feature record against the reported schema
// instead of parsing failure messages.
type SchemaReporter interface {
	RequiredFeatures(ctx context.Context) ([]string, error)
}
