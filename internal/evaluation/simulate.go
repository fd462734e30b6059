// Package evaluation generates labeled synthetic data for offline scoring
// of the detection pipeline.
package evaluation

import (
	"math"
	"math/rand"

	"github.com/hostwatch/hostwatch-ai/internal/faults"
	"github.com/hostwatch/hostwatch-ai/internal/store"
)

// Anomaly injection types.
const (
	AnomalyCPUSpike     = "cpu_spike"
	AnomalyMemoryLeak   = "memory_leak"
	AnomalyIOStorm      = "io_storm"
	AnomalyNetworkFlood = "network_flood"
	AnomalySwapPressure = "swap_pressure"
)

// AllAnomalyTypes lists every supported injection type.
var AllAnomalyTypes = []string{
	AnomalyCPUSpike,
	AnomalyMemoryLeak,
	AnomalyIOStorm,
	AnomalyNetworkFlood,
	AnomalySwapPressure,
}

// Generator produces synthetic host metrics with realistic daily cycles and
// noise. Seeded, so runs are reproducible.
type Generator struct {
	host string
	rng  *rand.Rand
}

// NewGenerator creates a generator attributing samples to host.
func NewGenerator(host string, seed int64) *Generator {
	return &Generator{host: host, rng: rand.New(rand.NewSource(seed))}
}

// GenerateBaseline produces n normal samples starting at startTS, spaced
// intervalSeconds apart. CPU and network follow a daily sine cycle, memory
// grows slowly, disk throughput is log-normal bursts.
func (g *Generator) GenerateBaseline(n int, startTS int64, intervalSeconds int) []store.Sample {
	samples := make([]store.Sample, n)
	cycle := 2 * math.Pi / (86400 / float64(intervalSeconds))

	for i := 0; i < n; i++ {
		t := float64(i)
		day := math.Sin(t * cycle)

		cpu := clamp(30+10*day+g.rng.NormFloat64()*5, 0, 100)
		memPct := clamp(40+t/float64(n)*20+g.rng.NormFloat64()*3, 0, 100)
		swap := clamp(5+g.rng.NormFloat64()*2, 0, 100)

		netUpBase := 1e6 * (1 + 0.5*day)
		netDownBase := 5e6 * (1 + 0.5*day)

		samples[i] = store.Sample{
			TS:           startTS + int64(i*intervalSeconds),
			Host:         g.host,
			CPUPct:       cpu,
			MemPct:       memPct,
			SwapPct:      swap,
			DiskReadBPS:  g.logNormal(10, 2),
			DiskWriteBPS: g.logNormal(10, 2),
			NetUpBPS:     g.logNormal(math.Log(netUpBase), 0.5),
			NetDownBPS:   g.logNormal(math.Log(netDownBase), 0.5),
			ProcCount:    g.poisson(200),
		}
	}
	return samples
}

// InjectAnomalies mutates a contamination fraction of randomly chosen
// samples with one of the given anomaly types each, returning the modified
// copy and per-sample ground-truth labels.
func (g *Generator) InjectAnomalies(samples []store.Sample, types []string, contamination float64) ([]store.Sample, []bool, error) {
	if len(types) == 0 {
		return nil, nil, faults.Configf("no anomaly types given")
	}
	for _, t := range types {
		if !isKnownAnomalyType(t) {
			return nil, nil, faults.Configf("unknown anomaly type %q", t)
		}
	}
	if contamination <= 0 || contamination >= 1 {
		return nil, nil, faults.Configf("contamination must be in (0,1), got %g", contamination)
	}

	out := make([]store.Sample, len(samples))
	copy(out, samples)
	labels := make([]bool, len(out))

	n := int(float64(len(out)) * contamination)
	for _, idx := range g.rng.Perm(len(out))[:n] {
		switch types[g.rng.Intn(len(types))] {
		case AnomalyCPUSpike:
			out[idx].CPUPct = g.uniform(90, 100)
		case AnomalyMemoryLeak:
			out[idx].MemPct = g.uniform(85, 100)
		case AnomalyIOStorm:
			out[idx].DiskReadBPS = g.uniform(1e8, 1e9)
			out[idx].DiskWriteBPS = g.uniform(1e8, 1e9)
		case AnomalyNetworkFlood:
			out[idx].NetUpBPS = g.uniform(1e8, 1e9)
			out[idx].NetDownBPS = g.uniform(1e8, 1e9)
		case AnomalySwapPressure:
			out[idx].SwapPct = g.uniform(80, 100)
		}
		labels[idx] = true
	}
	return out, labels, nil
}

func isKnownAnomalyType(t string) bool {
	for _, known := range AllAnomalyTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func (g *Generator) logNormal(mu, sigma float64) float64 {
	return math.Exp(mu + sigma*g.rng.NormFloat64())
}

// poisson approximates a Poisson draw with a normal for the large lambdas
// used here (process counts around 200).
func (g *Generator) poisson(lambda float64) int64 {
	v := math.Round(lambda + math.Sqrt(lambda)*g.rng.NormFloat64())
	if v < 0 {
		return 0
	}
	return int64(v)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
