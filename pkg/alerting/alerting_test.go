package alerting

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clawue884/sidra-monitoring/pkg/errors"
	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
	"github.com/Clawue884/sidra-monitoring/pkg/telemetry"
)

func cpuRule() ThresholdRule {
	return ThresholdRule{Metric: "cpu_pct", Warning: 80, Critical: 90}
}

func sampleAt(host string, ts time.Time, metrics map[string]float64) *telemetry.Sample {
	return &telemetry.Sample{Host: host, Timestamp: ts, Metrics: metrics}
}

func TestEngine_SeverityLifecycle(t *testing.T) {
	e := NewEngine([]ThresholdRule{cpuRule()})
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	values := []float64{70, 85, 95, 72}
	var all []Event
	for i, v := range values {
		evs := e.Evaluate(sampleAt("edge-1", base.Add(time.Duration(i)*time.Minute), map[string]float64{"cpu_pct": v}))
		all = append(all, evs...)
	}

	require.Len(t, all, 3, "expected exactly three transitions")

	assert.Equal(t, EventFired, all[0].Kind)
	assert.Equal(t, SeverityWarning, all[0].Severity)
	assert.Equal(t, SeverityOK, all[0].Previous)
	assert.Equal(t, uint64(1), all[0].Version)

	assert.Equal(t, EventFired, all[1].Kind)
	assert.Equal(t, SeverityCritical, all[1].Severity)
	assert.Equal(t, SeverityWarning, all[1].Previous)
	assert.Equal(t, uint64(2), all[1].Version)

	assert.Equal(t, EventResolved, all[2].Kind)
	assert.Equal(t, SeverityOK, all[2].Severity)
	assert.Equal(t, SeverityCritical, all[2].Previous)
	assert.Equal(t, uint64(3), all[2].Version)

	a, ok := e.Alert("edge-1", "cpu_pct")
	require.True(t, ok)
	assert.Equal(t, SeverityOK, a.Severity)
	assert.Equal(t, base.Add(3*time.Minute), a.ResolvedAt)
}

func TestEngine_Deduplication(t *testing.T) {
	e := NewEngine([]ThresholdRule{cpuRule()})
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	evs := e.Evaluate(sampleAt("edge-1", base, map[string]float64{"cpu_pct": 85}))
	require.Len(t, evs, 1)

	// Same severity again: no event, no version bump, last-seen moves.
	evs = e.Evaluate(sampleAt("edge-1", base.Add(time.Minute), map[string]float64{"cpu_pct": 87}))
	assert.Empty(t, evs)

	a, _ := e.Alert("edge-1", "cpu_pct")
	assert.Equal(t, uint64(1), a.Version)
	assert.Equal(t, base.Add(time.Minute), a.LastSeen)
	assert.Equal(t, 87.0, a.Value)
}

func TestEngine_IdempotentReplay(t *testing.T) {
	e := NewEngine([]ThresholdRule{cpuRule()})
	s := sampleAt("edge-1", time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), map[string]float64{"cpu_pct": 92})

	first := e.Evaluate(s)
	second := e.Evaluate(s)

	require.Len(t, first, 1)
	assert.Empty(t, second)

	a, _ := e.Alert("edge-1", "cpu_pct")
	assert.Equal(t, SeverityCritical, a.Severity)
	assert.Equal(t, uint64(1), a.Version)
}

func TestEngine_BoundaryBelongsToHigherSeverity(t *testing.T) {
	gt := cpuRule()
	assert.Equal(t, SeverityOK, gt.SeverityFor(79.99))
	assert.Equal(t, SeverityWarning, gt.SeverityFor(80))
	assert.Equal(t, SeverityWarning, gt.SeverityFor(89.99))
	assert.Equal(t, SeverityCritical, gt.SeverityFor(90))

	lt := ThresholdRule{Metric: "disk_free_pct", Warning: 20, Critical: 10, Direction: DirectionLessThan}
	assert.Equal(t, SeverityOK, lt.SeverityFor(20.01))
	assert.Equal(t, SeverityWarning, lt.SeverityFor(20))
	assert.Equal(t, SeverityCritical, lt.SeverityFor(10))
}

func TestEngine_RoleFilter(t *testing.T) {
	rules := []ThresholdRule{
		{Metric: "gpu_temp_c", Warning: 80, Critical: 90, Roles: []inventory.Role{inventory.RoleGPU}},
	}
	e := NewEngine(rules)
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	s := sampleAt("edge-1", ts, map[string]float64{"gpu_temp_c": 95})
	assert.Empty(t, e.Evaluate(s), "rule must not apply to a host without the gpu role")
	_, tracked := e.Alert("edge-1", "gpu_temp_c")
	assert.False(t, tracked)

	s.Role = inventory.RoleGPU
	evs := e.Evaluate(s)
	require.Len(t, evs, 1)
	assert.Equal(t, SeverityCritical, evs[0].Severity)
}

func TestEngine_RuleMatchFoldsCase(t *testing.T) {
	r := ThresholdRule{Metric: "CPU_PCT", Warning: 80, Critical: 90, Roles: []inventory.Role{"GPU"}}
	assert.True(t, r.Matches("cpu_pct", inventory.RoleGPU))
	assert.False(t, r.Matches("mem_pct", inventory.RoleGPU))
}

func TestEngine_ActiveAndResolved(t *testing.T) {
	e := NewEngine([]ThresholdRule{cpuRule(), {Metric: "mem_pct", Warning: 85, Critical: 95}})
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	e.Evaluate(sampleAt("edge-2", ts, map[string]float64{"cpu_pct": 85, "mem_pct": 50}))
	e.Evaluate(sampleAt("edge-1", ts, map[string]float64{"cpu_pct": 96}))
	e.Evaluate(sampleAt("edge-1", ts.Add(time.Minute), map[string]float64{"cpu_pct": 40}))

	active := e.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "edge-2", active[0].Host)
	assert.Equal(t, SeverityWarning, active[0].Severity)

	resolved := e.Resolved()
	require.Len(t, resolved, 1)
	assert.Equal(t, "edge-1", resolved[0].Host)
	assert.False(t, resolved[0].ResolvedAt.IsZero())
}

func TestEngine_ConcurrentSameKeySingleFire(t *testing.T) {
	var mu sync.Mutex
	var fired int
	e := NewEngine([]ThresholdRule{cpuRule()}, WithNotifier(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Kind == EventFired {
			fired++
		}
	}))

	s := sampleAt("edge-1", time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), map[string]float64{"cpu_pct": 99})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Evaluate(s)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fired, "near-simultaneous identical samples must not double-fire")
	a, _ := e.Alert("edge-1", "cpu_pct")
	assert.Equal(t, uint64(1), a.Version)
}

func TestEngine_RuleReload(t *testing.T) {
	e := NewEngine([]ThresholdRule{cpuRule()})
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	evs := e.Evaluate(sampleAt("edge-1", base, map[string]float64{"cpu_pct": 85}))
	require.Len(t, evs, 1)
	assert.Equal(t, SeverityWarning, evs[0].Severity)

	// Loosened bounds take effect on the next sample and resolve the
	// previously warning value.
	e.SetRules([]ThresholdRule{{Metric: "cpu_pct", Warning: 90, Critical: 95}})

	evs = e.Evaluate(sampleAt("edge-1", base.Add(time.Minute), map[string]float64{"cpu_pct": 85}))
	require.Len(t, evs, 1)
	assert.Equal(t, EventResolved, evs[0].Kind)
	assert.Equal(t, uint64(2), evs[0].Version)
}

func TestRuleValidation(t *testing.T) {
	tests := []struct {
		name    string
		rule    ThresholdRule
		wantErr bool
	}{
		{"valid greater_than", ThresholdRule{Metric: "cpu_pct", Warning: 80, Critical: 90}, false},
		{"valid less_than", ThresholdRule{Metric: "disk_free_pct", Warning: 20, Critical: 10, Direction: DirectionLessThan}, false},
		{"empty metric", ThresholdRule{Warning: 80, Critical: 90}, true},
		{"inverted greater_than bounds", ThresholdRule{Metric: "cpu_pct", Warning: 90, Critical: 80}, true},
		{"equal bounds", ThresholdRule{Metric: "cpu_pct", Warning: 90, Critical: 90}, true},
		{"inverted less_than bounds", ThresholdRule{Metric: "disk_free_pct", Warning: 10, Critical: 20, Direction: DirectionLessThan}, true},
		{"unknown direction", ThresholdRule{Metric: "cpu_pct", Warning: 80, Critical: 90, Direction: "sideways"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rule.Validate()
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeConfig, errors.GetCode(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseRules(t *testing.T) {
	doc := []byte(`
rules:
  - metric: cpu_pct
    warning: 80
    critical: 90
  - metric: gpu_temp_c
    warning: 80
    critical: 90
    roles: [gpu]
`)
	rules, err := ParseRules(doc)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "cpu_pct", rules[0].Metric)
	assert.Equal(t, []inventory.Role{inventory.RoleGPU}, rules[1].Roles)

	_, err = ParseRules([]byte("rules:\n  - metric: cpu_pct\n    warning: 95\n    critical: 90\n"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfig, errors.GetCode(err))
}

func TestDefaultRulesValidate(t *testing.T) {
	for _, r := range DefaultRules() {
		assert.NoError(t, r.Validate(), "rule %s", r.Metric)
	}
}
