// Package ingest samples host metrics and persists them in batches.
package ingest

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/shirou/gopsutil/v4/sensors"
	"go.uber.org/zap"

	"github.com/hostwatch/hostwatch-ai/internal/store"
)

// cpuTempSensors are the sensor keys tried in order for a CPU temperature
// reading.
var cpuTempSensors = []string{"coretemp", "k10temp", "zenpower", "cpu_thermal"}

// Sampler reads host metrics through gopsutil. Disk and network throughput
// come from monotonic byte counters, so the sampler keeps the previous
// reading and reports deltas per second; the first sample reports 0.
type Sampler struct {
	host   string
	logger *zap.Logger

	lastSampleAt  time.Time
	lastDiskRead  uint64
	lastDiskWrite uint64
	lastNetSent   uint64
	lastNetRecv   uint64
	havePrevious  bool
}

// NewSampler creates a sampler attributing samples to host.
func NewSampler(host string, logger *zap.Logger) *Sampler {
	return &Sampler{host: host, logger: logger}
}

// Sample reads all metrics once. Individual metric failures degrade to zero
// values instead of failing the whole sample; a host with a missing sensor
// still produces usable rows.
func (s *Sampler) Sample(ctx context.Context) store.Sample {
	now := time.Now()
	sample := store.Sample{
		TS:   now.UTC().Unix(),
		Host: s.host,
	}

	if pcts, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		s.logger.Warn("cpu percent read failed", zap.Error(err))
	} else if len(pcts) > 0 {
		sample.CPUPct = pcts[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		s.logger.Warn("virtual memory read failed", zap.Error(err))
	} else {
		sample.MemPct = vm.UsedPercent
	}

	if swap, err := mem.SwapMemoryWithContext(ctx); err != nil {
		s.logger.Warn("swap memory read failed", zap.Error(err))
	} else {
		sample.SwapPct = swap.UsedPercent
	}

	if pids, err := process.PidsWithContext(ctx); err != nil {
		s.logger.Warn("process list read failed", zap.Error(err))
	} else {
		sample.ProcCount = int64(len(pids))
	}

	elapsed := 1.0
	if s.havePrevious {
		elapsed = now.Sub(s.lastSampleAt).Seconds()
	}
	s.sampleDiskIO(ctx, &sample, elapsed)
	s.sampleNetIO(ctx, &sample, elapsed)
	s.lastSampleAt = now
	s.havePrevious = true

	if temp, ok := s.cpuTemp(ctx); ok {
		sample.CPUTemp = &temp
	}
	return sample
}

func (s *Sampler) sampleDiskIO(ctx context.Context, sample *store.Sample, elapsed float64) {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		s.logger.Warn("disk io read failed", zap.Error(err))
		return
	}
	var read, write uint64
	for _, c := range counters {
		read += c.ReadBytes
		write += c.WriteBytes
	}
	if s.havePrevious && elapsed > 0 && read >= s.lastDiskRead && write >= s.lastDiskWrite {
		sample.DiskReadBPS = float64(read-s.lastDiskRead) / elapsed
		sample.DiskWriteBPS = float64(write-s.lastDiskWrite) / elapsed
	}
	s.lastDiskRead, s.lastDiskWrite = read, write
}

func (s *Sampler) sampleNetIO(ctx context.Context, sample *store.Sample, elapsed float64) {
	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil || len(counters) == 0 {
		if err != nil {
			s.logger.Warn("net io read failed", zap.Error(err))
		}
		return
	}
	sent, recv := counters[0].BytesSent, counters[0].BytesRecv
	if s.havePrevious && elapsed > 0 && sent >= s.lastNetSent && recv >= s.lastNetRecv {
		sample.NetUpBPS = float64(sent-s.lastNetSent) / elapsed
		sample.NetDownBPS = float64(recv-s.lastNetRecv) / elapsed
	}
	s.lastNetSent, s.lastNetRecv = sent, recv
}

func (s *Sampler) cpuTemp(ctx context.Context) (float64, bool) {
	readings, err := sensors.TemperaturesWithContext(ctx)
	if err != nil || len(readings) == 0 {
		return 0, false
	}
	for _, key := range cpuTempSensors {
		for _, r := range readings {
			if r.SensorKey == key {
				return r.Temperature, true
			}
		}
	}
	return 0, false
}
