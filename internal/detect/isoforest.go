package detect

import (
	"bytes"
	"encoding/gob"
	"math"
	"math/rand"

	"github.com/hostwatch/hostwatch-ai/internal/faults"
)

// ForestParams configures an isolation forest.
type ForestParams struct {
	NumTrees      int
	SubSampleSize int
	MaxDepth      int
	Seed          int64
}

// isoNode is a single node of an isolation tree. Fields are exported so a
// fitted forest gob-encodes for artifact persistence.
type isoNode struct {
	SplitFeature int
	SplitValue   float64
	Left         *isoNode
	Right        *isoNode
	Size         int
	IsLeaf       bool
}

// IsolationForest isolates anomalies by random recursive partitioning:
// points that separate from the rest in few splits get short average path
// lengths. ScoreSamples returns the negated standard anomaly score, so lower
// values mean more anomalous and flagging is score < threshold.
type IsolationForest struct {
	Params ForestParams
	Trees  []*isoNode

	// SampleSize is the per-tree sample size actually used by the last Fit:
	// SubSampleSize capped at the training set size. It is the c(n) base for
	// scoring and must survive persistence with the trees.
	SampleSize int

	rng *rand.Rand
}

// NewIsolationForest creates an unfitted forest. The seed makes training
// deterministic for a given dataset.
func NewIsolationForest(p ForestParams) *IsolationForest {
	return &IsolationForest{Params: p}
}

// Name implements Scorer.
func (f *IsolationForest) Name() string { return "isolation_forest" }

// IsFitted implements Scorer.
func (f *IsolationForest) IsFitted() bool { return len(f.Trees) > 0 }

// Fit builds Params.NumTrees isolation trees, each on a random sub-sample of
// at most Params.SubSampleSize rows.
func (f *IsolationForest) Fit(X [][]float64) error {
	if len(X) == 0 {
		return faults.Dataf("isolation forest: empty training matrix")
	}
	if len(X[0]) == 0 {
		return faults.Dataf("isolation forest: training rows have no features")
	}

	f.rng = rand.New(rand.NewSource(f.Params.Seed))
	f.Trees = make([]*isoNode, 0, f.Params.NumTrees)
	f.SampleSize = f.Params.SubSampleSize
	if f.SampleSize > len(X) || f.SampleSize <= 0 {
		f.SampleSize = len(X)
	}

	for i := 0; i < f.Params.NumTrees; i++ {
		sample := f.sampleRows(X)
		f.Trees = append(f.Trees, f.buildTree(sample, 0))
	}
	return nil
}

// ScoreSamples returns one score per row, lower = more anomalous.
func (f *IsolationForest) ScoreSamples(X [][]float64) ([]float64, error) {
	if !f.IsFitted() {
		return nil, faults.Statef("isolation forest not fitted")
	}

	c := averagePathLength(f.effectiveSampleSize())
	scores := make([]float64, len(X))
	for i, row := range X {
		var total float64
		for _, tree := range f.Trees {
			total += pathLength(tree, row, 0)
		}
		avg := total / float64(len(f.Trees))
		// Standard score in (0,1], higher = more anomalous; negate so
		// the calibrated "flag when below threshold" rule applies.
		scores[i] = -math.Pow(2, -avg/c)
	}
	return scores, nil
}

// effectiveSampleSize is the normalization constant base: the sample size a
// tree actually saw, never below 2 so c(n) stays positive.
func (f *IsolationForest) effectiveSampleSize() int {
	n := f.SampleSize
	if n < 2 {
		n = 2
	}
	return n
}

// sampleRows draws SampleSize rows via Fisher-Yates shuffle.
func (f *IsolationForest) sampleRows(X [][]float64) [][]float64 {
	size := f.SampleSize

	shuffled := make([][]float64, len(X))
	copy(shuffled, X)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := f.rng.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:size]
}

func (f *IsolationForest) buildTree(rows [][]float64, depth int) *isoNode {
	if len(rows) <= 1 || depth >= f.Params.MaxDepth || allIdentical(rows) {
		return &isoNode{Size: len(rows), IsLeaf: true}
	}

	feature := f.rng.Intn(len(rows[0]))
	minVal, maxVal := featureRange(rows, feature)
	split := minVal + f.rng.Float64()*(maxVal-minVal)

	var left, right [][]float64
	for _, row := range rows {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &isoNode{Size: len(rows), IsLeaf: true}
	}

	return &isoNode{
		SplitFeature: feature,
		SplitValue:   split,
		Left:         f.buildTree(left, depth+1),
		Right:        f.buildTree(right, depth+1),
		Size:         len(rows),
	}
}

func pathLength(node *isoNode, row []float64, depth int) float64 {
	if node.IsLeaf {
		return float64(depth) + averagePathLength(node.Size)
	}
	if row[node.SplitFeature] < node.SplitValue {
		return pathLength(node.Left, row, depth+1)
	}
	return pathLength(node.Right, row, depth+1)
}

// averagePathLength is c(n), the expected path length of an unsuccessful
// search in a BST of n nodes: c(n) = 2H(n-1) - 2(n-1)/n.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	h := math.Log(float64(n-1)) + 0.5772156649
	return 2*h - 2*float64(n-1)/float64(n)
}

// encodeForest serializes a fitted forest for artifact storage. Only
// exported fields travel; the training rng is rebuilt on the next Fit.
func encodeForest(f *IsolationForest) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeForest(blob []byte) (*IsolationForest, error) {
	f := &IsolationForest{}
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(f); err != nil {
		return nil, err
	}
	return f, nil
}

func allIdentical(rows [][]float64) bool {
	if len(rows) <= 1 {
		return true
	}
	first := rows[0]
	for i := 1; i < len(rows); i++ {
		for j := range first {
			if math.Abs(rows[i][j]-first[j]) > 1e-10 {
				return false
			}
		}
	}
	return true
}

func featureRange(rows [][]float64, feature int) (float64, float64) {
	minVal, maxVal := rows[0][feature], rows[0][feature]
	for _, row := range rows {
		v := row[feature]
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	return minVal, maxVal
}
