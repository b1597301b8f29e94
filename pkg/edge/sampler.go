package edge

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
	"github.com/Clawue884/sidra-monitoring/pkg/telemetry"
)

// Sampler assembles one metrics sample per tick. Every metric is best
// effort: a source that fails or is absent (no GPU, no systemd, no
// docker) omits its fields rather than failing the sample.
type Sampler struct {
	Host     string
	Role     inventory.Role
	RootPath string

	// CPU usage is a delta between consecutive ticks, so the first
	// sample after start reports no cpu_pct.
	mu           sync.Mutex
	lastCPUTotal float64
	lastCPUIdle  float64
}

// Sample collects the current system, GPU, and service state.
func (s *Sampler) Sample(ctx context.Context) *telemetry.Sample {
	sample := &telemetry.Sample{
		Host:      s.Host,
		Role:      s.Role,
		Timestamp: time.Now().UTC(),
		Metrics:   make(map[string]float64),
	}

	if pct, ok := s.cpuPercent(ctx); ok {
		sample.Metrics[telemetry.MetricCPUPct] = pct
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		sample.Metrics[telemetry.MetricMemPct] = clamp(vm.UsedPercent, 0, 100)
	}
	root := s.RootPath
	if root == "" {
		root = "/"
	}
	if du, err := disk.UsageWithContext(ctx, root); err == nil {
		sample.Metrics[telemetry.MetricDiskPct] = clamp(du.UsedPercent, 0, 100)
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		sample.Metrics[telemetry.MetricLoad1] = avg.Load1
		sample.Metrics[telemetry.MetricLoad5] = avg.Load5
		sample.Metrics[telemetry.MetricLoad15] = avg.Load15
	}
	if info, err := host.InfoWithContext(ctx); err == nil {
		sample.Metrics[telemetry.MetricUptimeSec] = float64(info.Uptime)
		sample.Metrics[telemetry.MetricProcCount] = float64(info.Procs)
	}

	for name, value := range gpuMetrics(ctx) {
		sample.Metrics[name] = value
	}

	sample.Services = sampleServices(ctx)
	return sample
}

// cpuPercent derives busy percentage from the delta of cumulative CPU
// times between this tick and the previous one.
func (s *Sampler) cpuPercent(ctx context.Context) (float64, bool) {
	stats, err := cpu.TimesWithContext(ctx, false)
	if err != nil || len(stats) == 0 {
		return 0, false
	}
	t := stats[0]
	total := t.User + t.System + t.Nice + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal + t.Guest + t.GuestNice
	idle := t.Idle + t.Iowait

	s.mu.Lock()
	deltaTotal := total - s.lastCPUTotal
	deltaIdle := idle - s.lastCPUIdle
	hasPrev := s.lastCPUTotal > 0
	s.lastCPUTotal = total
	s.lastCPUIdle = idle
	s.mu.Unlock()

	if !hasPrev || deltaTotal <= 0 {
		return 0, false
	}
	return clamp((deltaTotal-deltaIdle)/deltaTotal*100, 0, 100), true
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
