package probe

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
	"github.com/Clawue884/sidra-monitoring/pkg/remote"
)

// engineSpec describes how one database engine is detected.
type engineSpec struct {
	name       string
	port       int
	versionCmd string
}

var engines = []engineSpec{
	{"postgresql", 5432, "psql --version 2>/dev/null"},
	{"mysql", 3306, "mysql --version 2>/dev/null"},
	{"redis", 6379, "redis-server --version 2>/dev/null"},
	{"mongodb", 27017, "mongod --version 2>/dev/null | head -1"},
}

// DatabaseProbe detects database engines on the host: a TCP check per
// well-known engine port, then a best-effort version query over SSH for
// open ones. Hosts with no database ports open report ok with an empty
// payload.
type DatabaseProbe struct {
	Runner remote.Runner
}

func (p *DatabaseProbe) Kind() inventory.ProbeKind {
	return inventory.ProbeDatabase
}

func (p *DatabaseProbe) Run(ctx context.Context, host inventory.Identity, cfg Config) inventory.ProbeResult {
	res := inventory.ProbeResult{
		Kind:       inventory.ProbeDatabase,
		CapturedAt: time.Now(),
		Payload:    map[string]any{},
	}

	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	found := make(map[string]any, 2)

	for _, eng := range engines {
		if ctx.Err() != nil {
			res.Status = inventory.StatusTimeout
			res.Detail = "database detection deadline exceeded"
			return res
		}

		conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host.Addr, fmt.Sprintf("%d", eng.port)))
		if err != nil {
			continue
		}
		conn.Close()

		info := map[string]any{"port": eng.port}
		if out, runErr := p.Runner.Run(ctx, host.Addr, eng.versionCmd); runErr == nil && out.Success() {
			if v := strings.TrimSpace(out.Stdout); v != "" {
				info["version"] = v
			}
		}
		found[eng.name] = info
	}

	res.Status = inventory.StatusOK
	if len(found) > 0 {
		res.Payload["engines"] = found
	}
	return res
}
