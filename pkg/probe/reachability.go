package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
)

// ReachabilityProbe is the gating probe: a TCP connect check against a
// short list of common ports. ICMP needs raw sockets, so TCP connect is
// the check; any accepted or refused connection proves a network path.
type ReachabilityProbe struct{}

func (p *ReachabilityProbe) Kind() inventory.ProbeKind {
	return inventory.ProbeReachability
}

func (p *ReachabilityProbe) Run(ctx context.Context, host inventory.Identity, cfg Config) inventory.ProbeResult {
	res := inventory.ProbeResult{
		Kind:       inventory.ProbeReachability,
		CapturedAt: time.Now(),
		Payload:    make(map[string]any, 2),
	}

	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	for _, port := range cfg.GatePorts {
		if ctx.Err() != nil {
			res.Status = inventory.StatusTimeout
			res.Detail = "reachability check deadline exceeded"
			return res
		}

		conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host.Addr, fmt.Sprintf("%d", port)))
		if err == nil || errors.Is(err, syscall.ECONNREFUSED) {
			if conn != nil {
				conn.Close()
			}
			res.Status = inventory.StatusOK
			res.Payload["via_port"] = port
			if names, lookupErr := net.LookupAddr(host.Addr); lookupErr == nil && len(names) > 0 {
				res.Payload["hostname"] = names[0]
			}
			return res
		}
	}

	res.Status = inventory.StatusUnreachable
	res.Detail = fmt.Sprintf("no gate port answered on %s", host.Addr)
	return res
}
