package estimator

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// Failure shapes produced by the estimator when its expected input
// schema drifted ahead of the caller. Two generations of the model
// runtime word it differently.
var (
	missingSetShape  = regexp.MustCompile(`columns are missing: \{([^}]*)\}`)
	missingListShape = regexp.MustCompile(`now missing:\s*\[([^\]]*)\]`)
)

// guardedAttempts bounds the fill-and-retry loop. After exhausting it,
// one final unguarded call is made and its result, success or failure,
// surfaces as is. This guarantees termination even if missing columns
// keep reappearing in different combinations.
const guardedAttempts = 4

// neutralDefault is the value filled in for columns the model expects
// but the caller does not know about.
const neutralDefault = 0.0

// Reconciler makes an estimator call succeed despite schema drift. On
// a failure citing missing columns, it fills them with a neutral
// default on a local copy of the record and retries, bounded. Failures
// it cannot recognize propagate unchanged.
type Reconciler struct {
	estimator Estimator
}

func NewReconciler(est Estimator) *Reconciler {
	return &Reconciler{estimator: est}
}

// Estimate runs the estimator against the feature record, reconciling
// the record with the model's expected schema as needed. The caller's
// record is never mutated.
func (r *Reconciler) Estimate(ctx context.Context, features Features) (float64, error) {
	record := features.Clone()

	// Structured capability query first: when the estimator reports
	// its schema, fill the gap before burning any attempt. A failing
	// query is not fatal, the retry loop below covers it.
	if reporter, ok := r.estimator.(SchemaReporter); ok {
		required, err := reporter.RequiredFeatures(ctx)
		if err != nil {
			slog.Debug("estimator schema query failed, falling back to retries", "err", err)
		}
		fillMissing(record, required)
	}

	for attempt := 0; attempt < guardedAttempts; attempt++ {
		total, err := r.estimator.Estimate(ctx, record)
		if err == nil {
			return total, nil
		}

		missing := missingColumns(err)
		if len(missing) == 0 {
			// Not a schema problem this layer can fix. Preserve the
			// original failure verbatim for the caller to diagnose.
			return 0, err
		}

		slog.Warn("estimator schema drifted, filling missing columns",
			"attempt", attempt+1, "missing", strings.Join(missing, ","))
		fillMissing(record, missing)
	}

	return r.estimator.Estimate(ctx, record)
}

func fillMissing(record Features, columns []string) {
	for _, column := range columns {
		if _, present := record[column]; !present {
			record[column] = neutralDefault
		}
	}
}

// missingColumns extracts the union of missing column names from a
// schema-mismatch failure. An empty result means the failure does not
// match any recognized shape.
func missingColumns(err error) []string {
	msg := err.Error()

	names := make(map[string]struct{})
	for _, shape := range []*regexp.Regexp{missingSetShape, missingListShape} {
		match := shape.FindStringSubmatch(msg)
		if match == nil {
			continue
		}
		for _, part := range strings.Split(match[1], ",") {
			name := strings.Trim(strings.TrimSpace(part), `'"`)
			if name != "" {
				names[name] = struct{}{}
			}
		}
	}

	columns := make([]string, 0, len(names))
	for name := range names {
		columns = append(columns, name)
	}
	sort.Strings(columns)
	return columns
}
