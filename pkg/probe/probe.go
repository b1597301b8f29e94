package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
)

// Probe is a single-host, single-concern discovery check. Probes are
// stateless and idempotent; a probe never returns an error past its
// own boundary, failures are encoded in the result status instead.
type Probe interface {
	// Kind identifies the probe in the static registry.
	Kind() inventory.ProbeKind

	// Run executes the check against one host. Implementations must
	// respect the context deadline on every blocking call.
	Run(ctx context.Context, host inventory.Identity, cfg Config) inventory.ProbeResult
}

// Config carries per-probe tunables shared by all probe kinds.
type Config struct {
	// Timeout bounds one probe run end to end.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// ConnectTimeout bounds a single TCP connect attempt (port scan,
	// reachability gate).
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`

	// Ports is the port list scanned by the ports probe.
	Ports []int `json:"ports" yaml:"ports"`

	// GatePorts are the ports the reachability probe tries in order.
	GatePorts []int `json:"gate_ports" yaml:"gate_ports"`
}

// DefaultConfig returns the probe defaults used when configuration
// leaves them unset.
func DefaultConfig() Config {
	return Config{
		Timeout:        10 * time.Second,
		ConnectTimeout: 2 * time.Second,
		Ports:          CommonPorts(),
		GatePorts:      []int{22, 80, 443},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if len(c.Ports) == 0 {
		c.Ports = def.Ports
	}
	if len(c.GatePorts) == 0 {
		c.GatePorts = def.GatePorts
	}
	return c
}

// Execute runs one probe under its hard deadline with panic isolation.
// This is the only way the coordinator invokes probes: whatever happens
// inside the probe, the caller gets a populated ProbeResult.
func Execute(ctx context.Context, p Probe, host inventory.Identity, cfg Config) (res inventory.ProbeResult) {
	cfg = cfg.withDefaults()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res = inventory.ProbeResult{
				Kind:   p.Kind(),
				Status: inventory.StatusError,
				Detail: fmt.Sprintf("probe panic: %v", r),
			}
		}
		res.Kind = p.Kind()
		if res.CapturedAt.IsZero() {
			res.CapturedAt = start
		}
		res.Duration = time.Since(start)
		observeProbe(res)
	}()

	runCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	res = p.Run(runCtx, host, cfg)
	if runCtx.Err() != nil && res.Status == inventory.StatusError {
		res.Status = inventory.StatusTimeout
	}
	return res
}

// SkippedResult builds the result recorded for a probe that was not run
// because its precondition failed (host unreachable, ssh auth failed).
func SkippedResult(kind inventory.ProbeKind, status inventory.ProbeStatus, detail string) inventory.ProbeResult {
	return inventory.ProbeResult{
		Kind:       kind,
		Status:     status,
		Detail:     detail,
		CapturedAt: time.Now(),
	}
}
