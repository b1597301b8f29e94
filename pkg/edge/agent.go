package edge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Clawue884/sidra-monitoring/pkg/errors"
)

// State is the agent lifecycle phase.
type State string

const (
	StateStopped  State = "stopped"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// DefaultInterval is the sampling period when none is configured.
const DefaultInterval = 30 * time.Second

// Agent runs the sample-and-push loop on a monitored host. One
// goroutine owns the loop, so a tick never overlaps the previous one:
// the push attempt (bounded by the sender timeout) completes or times
// out before the agent sleeps to the next interval. Stop is
// cooperative, observed between ticks.
type Agent struct {
	Sampler  *Sampler
	Sender   *Sender
	Interval time.Duration

	mu    sync.Mutex
	state State
	stop  chan struct{}
	done  chan struct{}
}

// NewAgent builds a stopped agent.
func NewAgent(sampler *Sampler, sender *Sender, interval time.Duration) *Agent {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Agent{
		Sampler:  sampler,
		Sender:   sender,
		Interval: interval,
		state:    StateStopped,
	}
}

// State reports the current lifecycle phase.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Start launches the sampling loop. Starting a non-stopped agent is an
// error.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateStopped {
		a.mu.Unlock()
		return errors.Newf(errors.ErrCodeInternal, "agent is %s, not stopped", a.state)
	}
	a.state = StateRunning
	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	stop, done := a.stop, a.done
	a.mu.Unlock()

	slog.Info("edge agent starting",
		"host", a.Sampler.Host,
		"interval", a.Interval,
		"central", a.Sender.URL,
	)

	go a.run(ctx, stop, done)
	return nil
}

// Stop requests a cooperative shutdown and waits for the loop to exit.
// Stopping an already stopped agent is a no-op.
func (a *Agent) Stop() {
	a.mu.Lock()
	if a.state != StateRunning {
		a.mu.Unlock()
		return
	}
	a.state = StateStopping
	stop, done := a.stop, a.done
	a.mu.Unlock()

	close(stop)
	<-done

	a.mu.Lock()
	a.state = StateStopped
	a.mu.Unlock()
	slog.Info("edge agent stopped", "host", a.Sampler.Host)
}

func (a *Agent) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.Interval)
	defer ticker.Stop()

	a.tick(ctx)
	for {
		select {
		case <-ticker.C:
			a.tick(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			a.mu.Lock()
			a.state = StateStopped
			a.mu.Unlock()
			return
		}
	}
}

// tick samples and pushes once. A push failure is logged and dropped;
// the next tick is attempted regardless.
func (a *Agent) tick(ctx context.Context) {
	sample := a.Sampler.Sample(ctx)
	if err := a.Sender.Push(ctx, sample); err != nil {
		slog.Warn("sample push failed",
			"host", sample.Host,
			"metrics", len(sample.Metrics),
			"error", err,
		)
		return
	}
	slog.Debug("sample pushed", "host", sample.Host, "metrics", len(sample.Metrics))
}
