package discovery

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
)

// Orchestrator runs host discovery across a fleet with bounded
// parallelism: a weighted semaphore caps the number of in-flight host
// coordinators so scanning hundreds of hosts does not open unbounded
// sockets.
type Orchestrator struct {
	Coordinator *Coordinator

	// Concurrency is the maximum number of hosts probed at once.
	// Zero selects the default of 4x the CPU count.
	Concurrency int64
}

// NewOrchestrator builds an orchestrator over the given coordinator.
func NewOrchestrator(c *Coordinator, concurrency int64) *Orchestrator {
	return &Orchestrator{Coordinator: c, Concurrency: concurrency}
}

func (o *Orchestrator) concurrency() int64 {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return int64(4 * runtime.NumCPU())
}

// DiscoverFleet probes every host and assembles the run's snapshot.
// Completeness is the contract: every requested host appears in the
// snapshot with exactly one record, however broken the host turned out
// to be. Hosts whose gate probe failed are listed in the snapshot's
// failed set.
//
// The snapshot is immutable once returned; a new run produces a new
// snapshot.
func (o *Orchestrator) DiscoverFleet(ctx context.Context, hosts []inventory.Identity) *inventory.Snapshot {
	start := time.Now()
	runID := uuid.New().String()

	slog.Info("starting fleet discovery",
		"run", runID,
		"hosts", len(hosts),
		"concurrency", o.concurrency(),
	)

	snap := &inventory.Snapshot{
		ID:      runID,
		TakenAt: start.UTC(),
		Hosts:   make(map[string]*inventory.HostRecord, len(hosts)),
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = semaphore.NewWeighted(o.concurrency())
	)

	for _, host := range hosts {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Run aborted: the host is recorded as failed rather than
			// silently dropped.
			mu.Lock()
			snap.Hosts[host.Addr] = inventory.NewHostRecord(host)
			snap.Failed = append(snap.Failed, host.Addr)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			rec := o.Coordinator.Discover(ctx, host)

			mu.Lock()
			snap.Hosts[host.Addr] = rec
			if !rec.Reachable {
				snap.Failed = append(snap.Failed, host.Addr)
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Strings(snap.Failed)

	fleetRunDuration.Observe(time.Since(start).Seconds())
	fleetHostsScanned.Add(float64(len(hosts)))

	slog.Info("fleet discovery complete",
		"run", runID,
		"hosts", snap.HostCount(),
		"reachable", snap.ReachableCount(),
		"failed", len(snap.Failed),
		"duration", time.Since(start),
	)
	return snap
}
