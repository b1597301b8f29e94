package edge

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/Clawue884/sidra-monitoring/pkg/telemetry"
)

const gpuQueryTimeout = 10 * time.Second

var gpuQueryArgs = []string{
	"--query-gpu=index,temperature.gpu,utilization.gpu,memory.used,memory.total,power.draw",
	"--format=csv,noheader,nounits",
}

// gpuMetrics queries nvidia-smi and aggregates across GPUs: hottest
// temperature, highest utilization, fleet-wide memory percentage, and
// total power draw. A host without nvidia-smi reports no GPU fields.
func gpuMetrics(ctx context.Context) map[string]float64 {
	ctx, cancel := context.WithTimeout(ctx, gpuQueryTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "nvidia-smi", gpuQueryArgs...).Output()
	if err != nil {
		return nil
	}
	return parseGPUCSV(string(out))
}

func parseGPUCSV(out string) map[string]float64 {
	var (
		maxTemp, maxUtil, power float64
		memUsed, memTotal       float64
		seen                    bool
	)

	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Split(line, ",")
		if len(fields) < 6 {
			continue
		}
		seen = true
		if v, ok := gpuField(fields[1]); ok && v > maxTemp {
			maxTemp = v
		}
		if v, ok := gpuField(fields[2]); ok && v > maxUtil {
			maxUtil = v
		}
		if v, ok := gpuField(fields[3]); ok {
			memUsed += v
		}
		if v, ok := gpuField(fields[4]); ok {
			memTotal += v
		}
		if v, ok := gpuField(fields[5]); ok {
			power += v
		}
	}
	if !seen {
		return nil
	}

	metrics := map[string]float64{
		telemetry.MetricGPUTempC:   maxTemp,
		telemetry.MetricGPUUtilPct: maxUtil,
		telemetry.MetricGPUPowerW:  power,
	}
	if memTotal > 0 {
		metrics[telemetry.MetricGPUMemPct] = clamp(memUsed/memTotal*100, 0, 100)
	}
	return metrics
}

// gpuField parses one CSV cell; nvidia-smi reports "[N/A]" for fields
// the GPU does not support.
func gpuField(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "[N/A") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
