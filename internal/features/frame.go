package features

import (
	"math"

	"github.com/hostwatch/hostwatch-ai/internal/store"
)

// Frame is an ordered collection of equal-length named float columns. It is
// the working representation for feature engineering: raw metric columns go
// in, derived columns are appended, and the result is flattened to a
// row-major matrix in a caller-chosen column order.
type Frame struct {
	n    int
	cols []string
	data map[string][]float64
}

// NewFrame creates an empty frame for n rows.
func NewFrame(n int) *Frame {
	return &Frame{
		n:    n,
		data: make(map[string][]float64),
	}
}

// Len returns the row count.
func (f *Frame) Len() int { return f.n }

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.cols))
	copy(out, f.cols)
	return out
}

// Has reports whether the named column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.data[name]
	return ok
}

// Column returns the named column, or nil if absent. The returned slice is
// the frame's backing storage; callers must not mutate it.
func (f *Frame) Column(name string) []float64 {
	return f.data[name]
}

// Add appends a column. Values must have exactly Len elements; adding an
// existing name overwrites its values but keeps its position.
func (f *Frame) Add(name string, values []float64) {
	if len(values) != f.n {
		panic("features: column length mismatch")
	}
	if _, ok := f.data[name]; !ok {
		f.cols = append(f.cols, name)
	}
	f.data[name] = values
}

// FillNaN replaces every NaN cell in every column with v. This is the single
// global undefined-value pass: it runs once after the full feature set is
// assembled, never per-column.
func (f *Frame) FillNaN(v float64) {
	for _, col := range f.cols {
		vals := f.data[col]
		for i, x := range vals {
			if math.IsNaN(x) {
				vals[i] = v
			}
		}
	}
}

// Matrix flattens the frame to a row-major matrix with columns in the given
// order. Columns absent from the frame are emitted zero-filled, which is how
// optional raw metrics missing from a batch are tolerated.
func (f *Frame) Matrix(columns []string) [][]float64 {
	out := make([][]float64, f.n)
	for i := range out {
		out[i] = make([]float64, len(columns))
	}
	for j, name := range columns {
		vals, ok := f.data[name]
		if !ok {
			continue // stays zero
		}
		for i := 0; i < f.n; i++ {
			out[i][j] = vals[i]
		}
	}
	return out
}

// Raw metric column names shared by the sampler, the feature pipeline, and
// event extraction.
const (
	ColCPUPct       = "cpu_pct"
	ColMemPct       = "mem_pct"
	ColSwapPct      = "swap_pct"
	ColDiskReadBPS  = "disk_read_bps"
	ColDiskWriteBPS = "disk_write_bps"
	ColNetUpBPS     = "net_up_bps"
	ColNetDownBPS   = "net_down_bps"
	ColProcCount    = "proc_count"
	ColCPUTemp      = "cpu_temp"
)

// FrameFromSamples converts a ts-ascending sample batch into a raw metric
// frame. The cpu_temp column is only added when at least one sample carries
// a reading; rows without one hold NaN until the global fill pass.
func FrameFromSamples(samples []store.Sample) *Frame {
	n := len(samples)
	f := NewFrame(n)

	cpu := make([]float64, n)
	mem := make([]float64, n)
	swap := make([]float64, n)
	diskR := make([]float64, n)
	diskW := make([]float64, n)
	netUp := make([]float64, n)
	netDown := make([]float64, n)
	procs := make([]float64, n)

	hasTemp := false
	for _, s := range samples {
		if s.CPUTemp != nil {
			hasTemp = true
			break
		}
	}
	var temp []float64
	if hasTemp {
		temp = make([]float64, n)
	}

	for i, s := range samples {
		cpu[i] = s.CPUPct
		mem[i] = s.MemPct
		swap[i] = s.SwapPct
		diskR[i] = s.DiskReadBPS
		diskW[i] = s.DiskWriteBPS
		netUp[i] = s.NetUpBPS
		netDown[i] = s.NetDownBPS
		procs[i] = float64(s.ProcCount)
		if hasTemp {
			if s.CPUTemp != nil {
				temp[i] = *s.CPUTemp
			} else {
				temp[i] = math.NaN()
			}
		}
	}

	f.Add(ColCPUPct, cpu)
	f.Add(ColMemPct, mem)
	f.Add(ColSwapPct, swap)
	f.Add(ColDiskReadBPS, diskR)
	f.Add(ColDiskWriteBPS, diskW)
	f.Add(ColNetUpBPS, netUp)
	f.Add(ColNetDownBPS, netDown)
	f.Add(ColProcCount, procs)
	if hasTemp {
		f.Add(ColCPUTemp, temp)
	}
	return f
}
