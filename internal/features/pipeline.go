package features

import (
	"bytes"
	"encoding/gob"
	"math"

	"github.com/hostwatch/hostwatch-ai/internal/faults"
)

// Params configures the feature engineering chain.
type Params struct {
	// MetricColumns are the raw columns features are derived from.
	MetricColumns []string

	// IOColumns is the throughput subset that additionally gets burstiness.
	IOColumns []string

	ShortWindow int
	LongWindow  int
	SlopeWindow int
	BurstWindow int
	LagPeriods  []int
	EMAAlphas   []float64
}

// DefaultParams returns the standard feature configuration.
func DefaultParams() Params {
	return Params{
		MetricColumns: []string{
			ColCPUPct,
			ColMemPct,
			ColDiskReadBPS,
			ColDiskWriteBPS,
			ColNetUpBPS,
			ColNetDownBPS,
			ColSwapPct,
		},
		IOColumns: []string{
			ColDiskReadBPS,
			ColDiskWriteBPS,
			ColNetUpBPS,
			ColNetDownBPS,
		},
		ShortWindow: 5,
		LongWindow:  30,
		SlopeWindow: 10,
		BurstWindow: 10,
		LagPeriods:  []int{1, 2, 3, 5},
		EMAAlphas:   []float64{0.1, 0.3},
	}
}

// Pipeline turns raw sample frames into scaled feature matrices. Fitting
// freezes both the per-feature scaling parameters and the column schema;
// every later Transform reproduces exactly that schema regardless of which
// optional raw columns a batch carries.
type Pipeline struct {
	params Params
	scaler *standardScaler
	schema []string
	fitted bool
}

// NewPipeline creates an unfitted pipeline.
func NewPipeline(p Params) *Pipeline {
	return &Pipeline{params: p}
}

// IsFitted reports whether FitTransform has completed.
func (p *Pipeline) IsFitted() bool { return p.fitted }

// Schema returns the frozen feature names, or nil before fitting.
func (p *Pipeline) Schema() []string {
	if !p.fitted {
		return nil
	}
	out := make([]string, len(p.schema))
	copy(out, p.schema)
	return out
}

// FitTransform runs the full feature chain on a training frame, fits the
// scaler on the result, freezes the schema, and returns the scaled matrix.
func (p *Pipeline) FitTransform(raw *Frame) ([][]float64, error) {
	eng, err := p.engineer(raw)
	if err != nil {
		return nil, err
	}

	schema := eng.Columns()
	X := eng.Matrix(schema)

	p.scaler = fitScaler(X)
	p.schema = schema
	p.fitted = true

	p.scaler.transform(X)
	return X, nil
}

// Transform recomputes the feature chain on new data and applies the frozen
// scaler. Schema columns missing from the freshly computed frame are
// zero-filled; columns are reordered to match the frozen schema exactly.
func (p *Pipeline) Transform(raw *Frame) ([][]float64, error) {
	if !p.fitted {
		return nil, faults.Statef("feature pipeline not fitted; call FitTransform first")
	}

	eng, err := p.engineer(raw)
	if err != nil {
		return nil, err
	}

	X := eng.Matrix(p.schema)
	p.scaler.transform(X)
	return X, nil
}

// engineer applies the derivation chain in fixed order: raw metrics, lags,
// rolling statistics, EMA, slope, burstiness (throughput subset), then the
// single global NaN→0 pass.
func (p *Pipeline) engineer(raw *Frame) (*Frame, error) {
	out := NewFrame(raw.Len())

	present := make([]string, 0, len(p.params.MetricColumns))
	for _, col := range p.params.MetricColumns {
		if raw.Has(col) {
			vals := raw.Column(col)
			copied := make([]float64, len(vals))
			copy(copied, vals)
			out.Add(col, copied)
			present = append(present, col)
		}
	}
	if len(present) == 0 {
		return nil, faults.Dataf("no metric columns present in batch (want one of %v)", p.params.MetricColumns)
	}

	w := &Windows{
		Short:      p.params.ShortWindow,
		Long:       p.params.LongWindow,
		LagPeriods: p.params.LagPeriods,
	}

	w.AddLags(out, p.params.MetricColumns)
	w.AddRollingStats(out, p.params.MetricColumns)
	w.AddEMA(out, p.params.MetricColumns, p.params.EMAAlphas)
	w.AddSlope(out, p.params.MetricColumns, p.params.SlopeWindow)
	w.AddBurstiness(out, p.params.IOColumns, p.params.BurstWindow)

	out.FillNaN(0.0)
	return out, nil
}

// standardScaler centers and scales each feature column. Zero-variance
// columns keep scale 1 so they pass through centered but undivided.
type standardScaler struct {
	means  []float64
	scales []float64
}

func fitScaler(X [][]float64) *standardScaler {
	if len(X) == 0 {
		return &standardScaler{}
	}
	nCols := len(X[0])
	means := make([]float64, nCols)
	scales := make([]float64, nCols)

	for j := 0; j < nCols; j++ {
		var sum float64
		for i := range X {
			sum += X[i][j]
		}
		mean := sum / float64(len(X))

		var ss float64
		for i := range X {
			d := X[i][j] - mean
			ss += d * d
		}
		std := math.Sqrt(ss / float64(len(X)))
		if std == 0 {
			std = 1.0
		}
		means[j] = mean
		scales[j] = std
	}
	return &standardScaler{means: means, scales: scales}
}

// transform scales X in place.
func (s *standardScaler) transform(X [][]float64) {
	if len(s.means) == 0 {
		return
	}
	for i := range X {
		for j := range X[i] {
			X[i][j] = (X[i][j] - s.means[j]) / s.scales[j]
		}
	}
}

// pipelineState is the serialized form of a fitted pipeline.
type pipelineState struct {
	Params Params
	Schema []string
	Means  []float64
	Scales []float64
	Fitted bool
}

// GobEncode serializes the pipeline, including frozen scaler state, so a
// fitted pipeline round-trips through the artifact store.
func (p *Pipeline) GobEncode() ([]byte, error) {
	st := pipelineState{
		Params: p.params,
		Schema: p.schema,
		Fitted: p.fitted,
	}
	if p.scaler != nil {
		st.Means = p.scaler.means
		st.Scales = p.scaler.scales
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode restores a pipeline serialized by GobEncode.
func (p *Pipeline) GobDecode(data []byte) error {
	var st pipelineState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return err
	}
	p.params = st.Params
	p.schema = st.Schema
	p.fitted = st.Fitted
	p.scaler = &standardScaler{means: st.Means, scales: st.Scales}
	return nil
}
