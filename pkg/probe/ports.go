package probe

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
)

// serviceNames maps well-known ports to the service usually behind them.
var serviceNames = map[int]string{
	22:    "ssh",
	80:    "http",
	443:   "https",
	3000:  "grafana/node",
	3306:  "mysql",
	5432:  "postgresql",
	5672:  "rabbitmq",
	6379:  "redis",
	8080:  "http-alt",
	8443:  "https-alt",
	9000:  "portainer",
	9090:  "prometheus",
	9100:  "node-exporter",
	11434: "ollama",
	27017: "mongodb",
}

// CommonPorts returns the default scan list.
func CommonPorts() []int {
	ports := make([]int, 0, len(serviceNames))
	for p := range serviceNames {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}

// ServiceName returns the well-known service for a port, or "unknown".
func ServiceName(port int) string {
	if name, ok := serviceNames[port]; ok {
		return name
	}
	return "unknown"
}

// PortsProbe scans the configured port list with per-port TCP connects.
// A closed or filtered port is an individual observation, never a probe
// failure.
type PortsProbe struct{}

func (p *PortsProbe) Kind() inventory.ProbeKind {
	return inventory.ProbePorts
}

func (p *PortsProbe) Run(ctx context.Context, host inventory.Identity, cfg Config) inventory.ProbeResult {
	res := inventory.ProbeResult{
		Kind:       inventory.ProbePorts,
		CapturedAt: time.Now(),
	}

	var mu sync.Mutex
	open := make([]int, 0, 4)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)

	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	for _, port := range cfg.Ports {
		g.Go(func() error {
			conn, err := dialer.DialContext(gctx, "tcp", net.JoinHostPort(host.Addr, fmt.Sprintf("%d", port)))
			if err != nil {
				return nil
			}
			conn.Close()
			mu.Lock()
			open = append(open, port)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	if ctx.Err() != nil {
		res.Status = inventory.StatusTimeout
		res.Detail = "port scan deadline exceeded"
		return res
	}

	sort.Ints(open)
	services := make(map[string]any, len(open))
	for _, port := range open {
		services[fmt.Sprintf("%d", port)] = ServiceName(port)
	}

	res.Status = inventory.StatusOK
	res.Payload = map[string]any{
		"open":     open,
		"services": services,
		"scanned":  len(cfg.Ports),
	}
	return res
}
