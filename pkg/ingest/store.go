package ingest

import (
	"sort"
	"sync"
	"time"

	"github.com/Clawue884/sidra-monitoring/pkg/errors"
	"github.com/Clawue884/sidra-monitoring/pkg/telemetry"
)

const (
	// DefaultMaxHistory is the per-host ring size: the live sample plus
	// a short tail for rate-of-change checks.
	DefaultMaxHistory = 10

	// DefaultFreshness rejects samples whose timestamp is too far in
	// the past relative to the collector's clock.
	DefaultFreshness = 10 * time.Minute

	// DefaultFutureSkew tolerates modest clock drift on edge hosts.
	DefaultFutureSkew = 2 * time.Minute
)

// hostSlot holds one host's samples. Each slot has its own lock so
// concurrent pushes for the same host serialize without blocking other
// hosts, and a reader never sees fields from two pushes interleaved.
type hostSlot struct {
	mu      sync.Mutex
	latest  *telemetry.Sample
	history []*telemetry.Sample
}

// SampleStore keeps the latest sample per host plus a bounded recent
// history ring.
type SampleStore struct {
	MaxHistory int
	Freshness  time.Duration
	FutureSkew time.Duration

	// now is swappable for tests.
	now func() time.Time

	mu    sync.RWMutex
	slots map[string]*hostSlot
}

// NewSampleStore builds a store with the given ring size; zero or
// negative picks the default.
func NewSampleStore(maxHistory int) *SampleStore {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &SampleStore{
		MaxHistory: maxHistory,
		Freshness:  DefaultFreshness,
		FutureSkew: DefaultFutureSkew,
		now:        time.Now,
		slots:      make(map[string]*hostSlot),
	}
}

// Apply validates and stores one sample. The returned bool reports
// whether stored state changed: re-applying the sample already stored
// for that timestamp is an accepted no-op. Validation failures are
// INVALID_SAMPLE errors whose message is the rejection reason returned
// to the pusher.
func (s *SampleStore) Apply(sample *telemetry.Sample) (bool, error) {
	if err := s.validate(sample); err != nil {
		return false, err
	}

	slot := s.slot(sample.Host)

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.latest != nil {
		// Last-applied-timestamp-wins: a sample older than the stored
		// one was reordered in flight and must not clobber newer state.
		if sample.Timestamp.Before(slot.latest.Timestamp) {
			return false, errors.New(errors.ErrCodeInvalidSample, "stale sample")
		}
		if sample.Timestamp.Equal(slot.latest.Timestamp) {
			return false, nil
		}
	}

	slot.latest = sample
	slot.history = append(slot.history, sample)
	if len(slot.history) > s.MaxHistory {
		slot.history = slot.history[len(slot.history)-s.MaxHistory:]
	}
	return true, nil
}

func (s *SampleStore) validate(sample *telemetry.Sample) error {
	if sample == nil {
		return errors.New(errors.ErrCodeInvalidSample, "empty sample")
	}
	if sample.Host == "" {
		return errors.New(errors.ErrCodeInvalidSample, "missing host identity")
	}
	if sample.Timestamp.IsZero() {
		return errors.New(errors.ErrCodeInvalidSample, "missing timestamp")
	}
	if len(sample.Metrics) == 0 && len(sample.Services.FailedUnits) == 0 &&
		len(sample.Services.UnhealthyContainers) == 0 {
		return errors.New(errors.ErrCodeInvalidSample, "sample carries no data")
	}

	now := s.now()
	if sample.Timestamp.Before(now.Add(-s.Freshness)) {
		return errors.New(errors.ErrCodeInvalidSample, "stale sample")
	}
	if sample.Timestamp.After(now.Add(s.FutureSkew)) {
		return errors.New(errors.ErrCodeInvalidSample, "future sample")
	}
	return nil
}

// Latest returns the most recent sample for a host.
func (s *SampleStore) Latest(host string) (*telemetry.Sample, bool) {
	s.mu.RLock()
	slot, ok := s.slots[host]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.latest == nil {
		return nil, false
	}
	return slot.latest, true
}

// History returns the recent samples for a host, oldest first.
func (s *SampleStore) History(host string) []*telemetry.Sample {
	s.mu.RLock()
	slot, ok := s.slots[host]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	out := make([]*telemetry.Sample, len(slot.history))
	copy(out, slot.history)
	return out
}

// Hosts lists hosts with at least one stored sample, sorted.
func (s *SampleStore) Hosts() []string {
	s.mu.RLock()
	hosts := make([]string, 0, len(s.slots))
	for host := range s.slots {
		hosts = append(hosts, host)
	}
	s.mu.RUnlock()
	sort.Strings(hosts)
	return hosts
}

func (s *SampleStore) slot(host string) *hostSlot {
	s.mu.RLock()
	slot, ok := s.slots[host]
	s.mu.RUnlock()
	if ok {
		return slot
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if slot, ok = s.slots[host]; ok {
		return slot
	}
	slot = &hostSlot{}
	s.slots[host] = slot
	return slot
}
