package probe

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
	"github.com/Clawue884/sidra-monitoring/pkg/remote"
)

// StorageProbe inventories mounted filesystems over SSH. Pseudo
// filesystems are filtered out; the block device listing is a
// best-effort extra.
type StorageProbe struct {
	Runner remote.Runner
}

func (p *StorageProbe) Kind() inventory.ProbeKind {
	return inventory.ProbeStorage
}

func (p *StorageProbe) Run(ctx context.Context, host inventory.Identity, cfg Config) inventory.ProbeResult {
	res := inventory.ProbeResult{
		Kind:       inventory.ProbeStorage,
		CapturedAt: time.Now(),
		Payload:    map[string]any{},
	}

	out, err := p.Runner.Run(ctx, host.Addr, "df -P -k 2>/dev/null | tail -n +2")
	if err != nil {
		res.Status = statusFromError(err)
		res.Detail = err.Error()
		return res
	}
	if !out.Success() {
		res.Status = inventory.StatusError
		res.Detail = strings.TrimSpace(out.Stderr)
		return res
	}

	mounts := parseDF(out.Stdout)
	res.Payload["mounts"] = mounts
	res.Payload["count"] = len(mounts)

	if out, err := p.Runner.Run(ctx, host.Addr, "lsblk -rno NAME,TYPE,SIZE 2>/dev/null"); err == nil && out.Success() {
		if devices := parseLsblk(out.Stdout); len(devices) > 0 {
			res.Payload["block_devices"] = devices
		}
	}

	res.Status = inventory.StatusOK
	return res
}

// parseDF parses `df -P -k` output lines into mount entries, skipping
// pseudo filesystems.
func parseDF(output string) []map[string]any {
	mounts := make([]map[string]any, 0, 8)

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		device := fields[0]
		if strings.HasPrefix(device, "tmpfs") || strings.HasPrefix(device, "devtmpfs") ||
			strings.HasPrefix(device, "overlay") || device == "none" {
			continue
		}

		sizeKB, _ := strconv.ParseInt(fields[1], 10, 64)
		usedKB, _ := strconv.ParseInt(fields[2], 10, 64)
		usePct, _ := strconv.ParseFloat(strings.TrimSuffix(fields[4], "%"), 64)

		mounts = append(mounts, map[string]any{
			"device":     device,
			"mountpoint": fields[5],
			"size_kb":    sizeKB,
			"used_kb":    usedKB,
			"use_pct":    usePct,
		})
	}
	return mounts
}

// parseLsblk parses `lsblk -rno NAME,TYPE,SIZE` into disk entries.
func parseLsblk(output string) []map[string]any {
	devices := make([]map[string]any, 0, 4)

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[1] != "disk" {
			continue
		}
		devices = append(devices, map[string]any{
			"name": fields[0],
			"size": fields[2],
		})
	}
	return devices
}
