package discovery

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
	"github.com/Clawue884/sidra-monitoring/pkg/probe"
)

// Coordinator runs the full probe set for one host and merges the
// results into a single HostRecord. One coordinator call owns its
// record exclusively, so the record itself needs no locking; the mutex
// below only guards the merge from concurrent probe goroutines.
//
// The coordinator always returns a populated record: a probe timeout or
// failure is reflected as that probe's result status, never as a
// missing record. Fleet discovery must make progress even when
// individual hosts or subsystems are broken.
type Coordinator struct {
	Registry map[inventory.ProbeKind]probe.Probe
	Config   probe.Config
}

// NewCoordinator builds a coordinator over the given probe registry.
func NewCoordinator(registry map[inventory.ProbeKind]probe.Probe, cfg probe.Config) *Coordinator {
	return &Coordinator{Registry: registry, Config: cfg}
}

// Discover probes one host. The reachability probe gates everything
// else: an unreachable host is not probed further, so a dead host costs
// one gate timeout instead of the full probe budget.
func (c *Coordinator) Discover(ctx context.Context, host inventory.Identity) *inventory.HostRecord {
	rec := inventory.NewHostRecord(host)

	gate := probe.Execute(ctx, c.Registry[inventory.ProbeReachability], host, c.Config)
	rec.SetResult(gate)

	if !gate.OK() {
		slog.Debug("host gate failed, skipping remaining probes",
			"host", host.Addr, "status", gate.Status)
		for _, kind := range inventory.Kinds() {
			if kind == inventory.ProbeReachability {
				continue
			}
			rec.SetResult(probe.SkippedResult(kind, inventory.StatusUnreachable, "host unreachable"))
		}
		return rec
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	// ports and ssh_facts run concurrently; the shell-dependent probes
	// wait for the ssh_facts outcome because an auth failure skips them.
	g.Go(func() error {
		res := probe.Execute(gctx, c.Registry[inventory.ProbePorts], host, c.Config)
		mu.Lock()
		rec.SetResult(res)
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		facts := probe.Execute(gctx, c.Registry[inventory.ProbeSSHFacts], host, c.Config)
		mu.Lock()
		rec.SetResult(facts)
		mu.Unlock()

		if facts.Status == inventory.StatusAuthFailed {
			slog.Debug("ssh auth failed, skipping shell probes", "host", host.Addr)
			mu.Lock()
			for _, kind := range inventory.Kinds() {
				if probe.ShellDependent(kind) {
					rec.SetResult(probe.SkippedResult(kind, inventory.StatusAuthFailed, "ssh authentication failed"))
				}
			}
			mu.Unlock()
			return nil
		}

		var sg errgroup.Group
		for _, kind := range inventory.Kinds() {
			if !probe.ShellDependent(kind) {
				continue
			}
			sg.Go(func() error {
				res := probe.Execute(gctx, c.Registry[kind], host, c.Config)
				mu.Lock()
				rec.SetResult(res)
				mu.Unlock()
				return nil
			})
		}
		return sg.Wait()
	})

	g.Wait()
	return rec
}
