package evaluation

import (
	"testing"
)

func TestGenerateBaseline(t *testing.T) {
	g := NewGenerator("synthetic", 42)
	samples := g.GenerateBaseline(500, 1000, 1)

	if len(samples) != 500 {
		t.Fatalf("got %d samples, want 500", len(samples))
	}
	for i, s := range samples {
		if s.TS != 1000+int64(i) {
			t.Fatalf("ts[%d] = %d, want %d", i, s.TS, 1000+int64(i))
		}
		if s.CPUPct < 0 || s.CPUPct > 100 {
			t.Errorf("cpu_pct out of range: %v", s.CPUPct)
		}
		if s.MemPct < 0 || s.MemPct > 100 {
			t.Errorf("mem_pct out of range: %v", s.MemPct)
		}
		if s.DiskReadBPS < 0 || s.NetDownBPS < 0 {
			t.Errorf("negative throughput at %d", i)
		}
	}
}

func TestGenerateBaseline_Deterministic(t *testing.T) {
	a := NewGenerator("synthetic", 42).GenerateBaseline(100, 0, 1)
	b := NewGenerator("synthetic", 42).GenerateBaseline(100, 0, 1)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs across identically seeded generators", i)
		}
	}
}

func TestInjectAnomalies(t *testing.T) {
	g := NewGenerator("synthetic", 42)
	baseline := g.GenerateBaseline(1000, 0, 1)

	mutated, labels, err := g.InjectAnomalies(baseline, AllAnomalyTypes, 0.05)
	if err != nil {
		t.Fatalf("InjectAnomalies failed: %v", err)
	}
	if len(mutated) != len(baseline) || len(labels) != len(baseline) {
		t.Fatal("output lengths must match input")
	}

	injected := 0
	for i, label := range labels {
		if label {
			injected++
			if mutated[i] == baseline[i] {
				t.Errorf("labeled sample %d was not mutated", i)
			}
		} else if mutated[i] != baseline[i] {
			t.Errorf("unlabeled sample %d was mutated", i)
		}
	}
	if injected != 50 {
		t.Errorf("injected %d anomalies, want 50", injected)
	}

	// Input slice stays untouched.
	clean := NewGenerator("synthetic", 42).GenerateBaseline(1000, 0, 1)
	for i := range clean {
		if baseline[i] != clean[i] {
			t.Fatal("InjectAnomalies mutated its input")
		}
	}
}

func TestInjectAnomalies_CPUSpikeRange(t *testing.T) {
	g := NewGenerator("synthetic", 1)
	baseline := g.GenerateBaseline(200, 0, 1)

	mutated, labels, err := g.InjectAnomalies(baseline, []string{AnomalyCPUSpike}, 0.1)
	if err != nil {
		t.Fatalf("InjectAnomalies failed: %v", err)
	}
	for i, label := range labels {
		if label && mutated[i].CPUPct < 90 {
			t.Errorf("cpu spike at %d is %v, want >= 90", i, mutated[i].CPUPct)
		}
	}
}

func TestInjectAnomalies_Errors(t *testing.T) {
	g := NewGenerator("synthetic", 1)
	baseline := g.GenerateBaseline(10, 0, 1)

	if _, _, err := g.InjectAnomalies(baseline, nil, 0.1); err == nil {
		t.Error("empty type list should fail")
	}
	if _, _, err := g.InjectAnomalies(baseline, []string{"disk_melt"}, 0.1); err == nil {
		t.Error("unknown type should fail")
	}
	if _, _, err := g.InjectAnomalies(baseline, AllAnomalyTypes, 0); err == nil {
		t.Error("zero contamination should fail")
	}
	if _, _, err := g.InjectAnomalies(baseline, AllAnomalyTypes, 1); err == nil {
		t.Error("full contamination should fail")
	}
}
