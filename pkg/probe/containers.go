package probe

import (
	"context"
	"strings"
	"time"

	"github.com/distribution/reference"

	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
	"github.com/Clawue884/sidra-monitoring/pkg/remote"
)

// ContainersProbe lists running containers on the host via the docker
// CLI over SSH. An absent docker daemon is not a failure: the host
// simply runs no containers, so the probe reports ok with an empty
// payload.
type ContainersProbe struct {
	Runner remote.Runner
}

func (p *ContainersProbe) Kind() inventory.ProbeKind {
	return inventory.ProbeContainers
}

func (p *ContainersProbe) Run(ctx context.Context, host inventory.Identity, cfg Config) inventory.ProbeResult {
	res := inventory.ProbeResult{
		Kind:       inventory.ProbeContainers,
		CapturedAt: time.Now(),
		Payload:    map[string]any{},
	}

	out, err := p.Runner.Run(ctx, host.Addr, `docker ps --format '{{.Names}}|{{.Image}}|{{.Status}}'`)
	if err != nil {
		res.Status = statusFromError(err)
		res.Detail = err.Error()
		return res
	}
	if !out.Success() {
		// docker not installed or daemon not running
		res.Status = inventory.StatusOK
		res.Detail = "docker not present"
		return res
	}

	containers := make([]map[string]any, 0, 8)
	unhealthy := make([]string, 0)

	for _, line := range strings.Split(strings.TrimSpace(out.Stdout), "\n") {
		parts := strings.SplitN(line, "|", 3)
		if len(parts) != 3 || parts[0] == "" {
			continue
		}
		name, image, status := parts[0], parts[1], parts[2]

		entry := map[string]any{
			"name":   name,
			"image":  normalizeImage(image),
			"status": status,
		}
		if strings.Contains(strings.ToLower(status), "unhealthy") {
			entry["healthy"] = false
			unhealthy = append(unhealthy, name)
		} else {
			entry["healthy"] = true
		}
		containers = append(containers, entry)
	}

	res.Status = inventory.StatusOK
	res.Payload["count"] = len(containers)
	res.Payload["containers"] = containers
	if len(unhealthy) > 0 {
		res.Payload["unhealthy"] = unhealthy
	}
	return res
}

// normalizeImage canonicalizes a docker image reference, e.g.
// "redis" -> "docker.io/library/redis". Unparseable references are
// kept verbatim.
func normalizeImage(image string) string {
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return image
	}
	return named.String()
}
