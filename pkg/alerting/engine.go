package alerting

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
	"github.com/Clawue884/sidra-monitoring/pkg/telemetry"
)

// Severity is an alert's current state.
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// EventKind distinguishes the two transition edges consumers care
// about: leaving ok (fired) and returning to ok (resolved). A
// warning-to-critical escalation is a fired event at the new severity.
type EventKind string

const (
	EventFired    EventKind = "fired"
	EventResolved EventKind = "resolved"
)

// Event is emitted on every severity transition.
type Event struct {
	Kind     EventKind `json:"kind"`
	Host     string    `json:"host"`
	Metric   string    `json:"metric"`
	Severity Severity  `json:"severity"`
	Previous Severity  `json:"previous"`
	Value    float64   `json:"value"`
	Version  uint64    `json:"version"`
	At       time.Time `json:"at"`
}

// Alert tracks one (host, metric) key through its severity lifecycle.
// At most one Alert exists per key; resolving transitions the severity
// back to ok and stamps ResolvedAt rather than deleting the record.
type Alert struct {
	Host       string        `json:"host"`
	Metric     string        `json:"metric"`
	Severity   Severity      `json:"severity"`
	Rule       ThresholdRule `json:"rule"`
	Value      float64       `json:"value"`
	FirstSeen  time.Time     `json:"first_seen"`
	LastSeen   time.Time     `json:"last_seen"`
	ResolvedAt time.Time     `json:"resolved_at,omitempty"`
	// Version increments on every severity transition, never on a
	// repeated sample at the same severity.
	Version uint64 `json:"version"`
}

// alertState pairs an Alert with its own lock so transitions for one
// key serialize without blocking unrelated keys.
type alertState struct {
	mu    sync.Mutex
	alert Alert
}

// Engine evaluates incoming samples against threshold rules and drives
// each (host, metric) alert through ok, warning, and critical.
type Engine struct {
	rules []ThresholdRule

	// notify, when set, receives every transition event. Called
	// outside the per-key lock.
	notify func(Event)

	mu     sync.RWMutex
	states map[string]*alertState
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier registers a callback invoked for every fired and
// resolved event.
func WithNotifier(fn func(Event)) Option {
	return func(e *Engine) {
		e.notify = fn
	}
}

// NewEngine builds an engine over the given rule set.
func NewEngine(rules []ThresholdRule, opts ...Option) *Engine {
	e := &Engine{
		rules:  rules,
		states: make(map[string]*alertState),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate applies one sample to the engine and returns the transition
// events it produced. A metric with no matching rule for the sample's
// role produces nothing. Repeated samples at the same severity update
// last-seen only; the dedup contract is that no event and no version
// bump happen without a severity change.
func (e *Engine) Evaluate(sample *telemetry.Sample) []Event {
	if sample == nil {
		return nil
	}

	var events []Event
	for metric, value := range sample.Metrics {
		rule, ok := e.match(metric, sample.Role)
		if !ok {
			continue
		}
		if ev, transitioned := e.apply(sample, metric, value, rule); transitioned {
			events = append(events, ev)
		}
	}

	// Map iteration order is random; stable event order keeps logs and
	// persisted audit rows deterministic per sample.
	sort.Slice(events, func(i, j int) bool { return events[i].Metric < events[j].Metric })

	for _, ev := range events {
		observeTransition(ev)
		slog.Info("alert transition",
			"host", ev.Host,
			"metric", ev.Metric,
			"kind", ev.Kind,
			"severity", ev.Severity,
			"previous", ev.Previous,
			"value", ev.Value,
			"version", ev.Version,
		)
		if e.notify != nil {
			e.notify(ev)
		}
	}
	return events
}

// apply runs the state machine for one key under its lock.
func (e *Engine) apply(sample *telemetry.Sample, metric string, value float64, rule ThresholdRule) (Event, bool) {
	st := e.state(sample.Host, metric)

	st.mu.Lock()
	defer st.mu.Unlock()

	a := &st.alert
	if a.FirstSeen.IsZero() {
		a.Host = sample.Host
		a.Metric = metric
		a.Severity = SeverityOK
		a.FirstSeen = sample.Timestamp
	}

	next := rule.SeverityFor(value)
	a.LastSeen = sample.Timestamp
	a.Value = value
	a.Rule = rule

	if next == a.Severity {
		return Event{}, false
	}

	prev := a.Severity
	a.Severity = next
	a.Version++

	kind := EventFired
	if next == SeverityOK {
		kind = EventResolved
		a.ResolvedAt = sample.Timestamp
	} else {
		a.ResolvedAt = time.Time{}
	}

	return Event{
		Kind:     kind,
		Host:     a.Host,
		Metric:   a.Metric,
		Severity: next,
		Previous: prev,
		Value:    value,
		Version:  a.Version,
		At:       sample.Timestamp,
	}, true
}

// SetRules replaces the rule set. Tracked alert state is kept; each
// key is evaluated under the new rules from the next sample on.
func (e *Engine) SetRules(rules []ThresholdRule) {
	e.mu.Lock()
	e.rules = rules
	e.mu.Unlock()
}

// match returns the first rule applicable to the metric and role.
func (e *Engine) match(metric string, role inventory.Role) (ThresholdRule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, r := range e.rules {
		if r.Matches(metric, role) {
			return r, true
		}
	}
	return ThresholdRule{}, false
}

// state returns the tracked state for a key, creating it on first use.
func (e *Engine) state(host, metric string) *alertState {
	key := host + "\x00" + metric

	e.mu.RLock()
	st, ok := e.states[key]
	e.mu.RUnlock()
	if ok {
		return st
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok = e.states[key]; ok {
		return st
	}
	st = &alertState{}
	e.states[key] = st
	return st
}

// Active returns all alerts currently above ok, sorted by host then
// metric.
func (e *Engine) Active() []Alert {
	return e.collect(func(a Alert) bool { return a.Severity != SeverityOK })
}

// Resolved returns alerts that fired at least once and are back at ok.
func (e *Engine) Resolved() []Alert {
	return e.collect(func(a Alert) bool {
		return a.Severity == SeverityOK && !a.ResolvedAt.IsZero()
	})
}

// Alert returns the tracked alert for a key, if any.
func (e *Engine) Alert(host, metric string) (Alert, bool) {
	e.mu.RLock()
	st, ok := e.states[host+"\x00"+metric]
	e.mu.RUnlock()
	if !ok {
		return Alert{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.alert, true
}

func (e *Engine) collect(keep func(Alert) bool) []Alert {
	e.mu.RLock()
	states := make([]*alertState, 0, len(e.states))
	for _, st := range e.states {
		states = append(states, st)
	}
	e.mu.RUnlock()

	var out []Alert
	for _, st := range states {
		st.mu.Lock()
		a := st.alert
		st.mu.Unlock()
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Host != out[j].Host {
			return out[i].Host < out[j].Host
		}
		return out[i].Metric < out[j].Metric
	})
	return out
}
