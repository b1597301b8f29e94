package telemetry

import (
	"time"

	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
)

// Well-known metric names reported by the edge collector.
const (
	MetricCPUPct     = "cpu_pct"
	MetricMemPct     = "mem_pct"
	MetricDiskPct    = "disk_pct"
	MetricLoad1      = "load1"
	MetricLoad5      = "load5"
	MetricLoad15     = "load15"
	MetricUptimeSec  = "uptime_sec"
	MetricProcCount  = "proc_count"
	MetricGPUTempC   = "gpu_temp_c"
	MetricGPUUtilPct = "gpu_util_pct"
	MetricGPUMemPct  = "gpu_mem_pct"
	MetricGPUPowerW  = "gpu_power_w"
)

// ServiceStatus carries free-form service health observed on a host.
type ServiceStatus struct {
	// FailedUnits lists systemd units in a failed state.
	FailedUnits []string `json:"failed_units,omitempty" yaml:"failed_units,omitempty"`

	// UnhealthyContainers lists container names whose health check is failing.
	UnhealthyContainers []string `json:"unhealthy_containers,omitempty" yaml:"unhealthy_containers,omitempty"`
}

// Sample is one metrics push from an edge collector. Samples are
// append-only facts: once built they are never mutated.
type Sample struct {
	Host      string             `json:"host" yaml:"host"`
	Role      inventory.Role     `json:"role,omitempty" yaml:"role,omitempty"`
	Timestamp time.Time          `json:"timestamp" yaml:"timestamp"`
	Metrics   map[string]float64 `json:"metrics" yaml:"metrics"`
	Services  ServiceStatus      `json:"services,omitempty" yaml:"services,omitempty"`
}

// Value returns the named metric and whether it was reported.
func (s *Sample) Value(name string) (float64, bool) {
	v, ok := s.Metrics[name]
	return v, ok
}
