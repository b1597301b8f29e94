package edge

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/Clawue884/sidra-monitoring/pkg/telemetry"
)

const serviceQueryTimeout = 10 * time.Second

// sampleServices reports failed systemd units and unhealthy docker
// containers. Hosts without systemd or docker report empty lists.
func sampleServices(ctx context.Context) telemetry.ServiceStatus {
	ctx, cancel := context.WithTimeout(ctx, serviceQueryTimeout)
	defer cancel()

	return telemetry.ServiceStatus{
		FailedUnits:         failedUnits(ctx),
		UnhealthyContainers: unhealthyContainers(ctx),
	}
}

func failedUnits(ctx context.Context) []string {
	conn, err := dbus.NewSystemdConnectionContext(ctx)
	if err != nil {
		slog.Debug("systemd not available", "error", err)
		return nil
	}
	defer conn.Close()

	units, err := conn.ListUnitsFilteredContext(ctx, []string{"failed"})
	if err != nil {
		slog.Debug("listing failed units", "error", err)
		return nil
	}

	names := make([]string, 0, len(units))
	for _, u := range units {
		names = append(names, u.Name)
	}
	return names
}

func unhealthyContainers(ctx context.Context) []string {
	out, err := exec.CommandContext(ctx,
		"docker", "ps", "--filter", "health=unhealthy", "--format", "{{.Names}}").Output()
	if err != nil {
		return nil
	}

	var names []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line != "" {
			names = append(names, line)
		}
	}
	return names
}
