package detect

import (
	"github.com/hostwatch/hostwatch-ai/internal/faults"
)

// Scorer assigns an anomaly score to each row of a feature matrix.
// Lower scores mean more anomalous, matching the convention of the
// calibrated threshold: a row is flagged when score < threshold.
type Scorer interface {
	// Name returns the algorithm identifier used for artifact storage.
	Name() string

	// Fit trains the scorer on a matrix of normal (baseline) rows.
	Fit(X [][]float64) error

	// ScoreSamples returns one score per row. Requires a prior Fit.
	ScoreSamples(X [][]float64) ([]float64, error)

	// IsFitted reports whether Fit has completed successfully.
	IsFitted() bool
}

// NewScorer constructs the scorer named by algo.
func NewScorer(algo string, p ForestParams) (Scorer, error) {
	switch algo {
	case "isolation_forest":
		return NewIsolationForest(p), nil
	default:
		return nil, faults.Configf("unknown anomaly algorithm %q", algo)
	}
}
