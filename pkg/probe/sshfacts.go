package probe

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Clawue884/sidra-monitoring/pkg/errors"
	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
	"github.com/Clawue884/sidra-monitoring/pkg/remote"
)

// SSHFactsProbe gathers host facts over SSH: kernel, distribution, CPU
// and memory sizing. The probe is a sequence of sub-steps, each
// individually fault-isolated: a failed command leaves its fields out
// of the payload instead of failing the probe.
type SSHFactsProbe struct {
	Runner remote.Runner
}

func (p *SSHFactsProbe) Kind() inventory.ProbeKind {
	return inventory.ProbeSSHFacts
}

func (p *SSHFactsProbe) Run(ctx context.Context, host inventory.Identity, cfg Config) inventory.ProbeResult {
	res := inventory.ProbeResult{
		Kind:       inventory.ProbeSSHFacts,
		CapturedAt: time.Now(),
		Payload:    make(map[string]any, 6),
	}

	// First command doubles as the authentication gate.
	out, err := p.Runner.Run(ctx, host.Addr, "uname -sr")
	if err != nil {
		res.Status = statusFromError(err)
		res.Detail = err.Error()
		res.Payload = nil
		return res
	}
	if out.Success() {
		res.Payload["kernel"] = strings.TrimSpace(out.Stdout)
	}

	if out, err := p.Runner.Run(ctx, host.Addr, "hostname -f"); err == nil && out.Success() {
		res.Payload["hostname"] = strings.TrimSpace(out.Stdout)
	}

	if out, err := p.Runner.Run(ctx, host.Addr, "cat /etc/os-release"); err == nil && out.Success() {
		if name := osReleaseField(out.Stdout, "PRETTY_NAME"); name != "" {
			res.Payload["os"] = name
		}
		if id := osReleaseField(out.Stdout, "ID"); id != "" {
			res.Payload["os_family"] = id
		}
	}

	if out, err := p.Runner.Run(ctx, host.Addr, "nproc"); err == nil && out.Success() {
		if n, convErr := strconv.Atoi(strings.TrimSpace(out.Stdout)); convErr == nil {
			res.Payload["cpu_count"] = n
		}
	}

	if out, err := p.Runner.Run(ctx, host.Addr, "grep MemTotal /proc/meminfo | awk '{print $2}'"); err == nil && out.Success() {
		if kb, convErr := strconv.ParseInt(strings.TrimSpace(out.Stdout), 10, 64); convErr == nil {
			res.Payload["mem_total_kb"] = kb
		}
	}

	if out, err := p.Runner.Run(ctx, host.Addr, "uptime -p"); err == nil && out.Success() {
		res.Payload["uptime"] = strings.TrimSpace(out.Stdout)
	}

	res.Status = inventory.StatusOK
	return res
}

// osReleaseField extracts a field value from /etc/os-release content.
func osReleaseField(content, key string) string {
	for _, line := range strings.Split(content, "\n") {
		if after, found := strings.CutPrefix(strings.TrimSpace(line), key+"="); found {
			return strings.Trim(after, `"`)
		}
	}
	return ""
}

// statusFromError maps a runner transport error to a probe status.
func statusFromError(err error) inventory.ProbeStatus {
	switch errors.GetCode(err) {
	case errors.ErrCodeAuthFailed:
		return inventory.StatusAuthFailed
	case errors.ErrCodeTimeout:
		return inventory.StatusTimeout
	case errors.ErrCodeUnreachable:
		return inventory.StatusUnreachable
	default:
		return inventory.StatusError
	}
}
