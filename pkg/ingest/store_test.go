package ingest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clawue884/sidra-monitoring/pkg/errors"
	"github.com/Clawue884/sidra-monitoring/pkg/telemetry"
)

var storeNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func testStore(maxHistory int) *SampleStore {
	s := NewSampleStore(maxHistory)
	s.now = func() time.Time { return storeNow }
	return s
}

func mkSample(host string, ts time.Time, cpu float64) *telemetry.Sample {
	return &telemetry.Sample{
		Host:      host,
		Timestamp: ts,
		Metrics:   map[string]float64{"cpu_pct": cpu},
	}
}

func TestSampleStore_ApplyAndQuery(t *testing.T) {
	s := testStore(0)

	applied, err := s.Apply(mkSample("edge-1", storeNow, 42))
	require.NoError(t, err)
	assert.True(t, applied)

	latest, ok := s.Latest("edge-1")
	require.True(t, ok)
	assert.Equal(t, 42.0, latest.Metrics["cpu_pct"])
	assert.Equal(t, []string{"edge-1"}, s.Hosts())
	assert.Len(t, s.History("edge-1"), 1)
}

func TestSampleStore_Validation(t *testing.T) {
	s := testStore(0)

	tests := []struct {
		name   string
		sample *telemetry.Sample
		reason string
	}{
		{"nil sample", nil, "empty sample"},
		{"missing host", mkSample("", storeNow, 1), "missing host identity"},
		{"missing timestamp", mkSample("edge-1", time.Time{}, 1), "missing timestamp"},
		{
			"no data",
			&telemetry.Sample{Host: "edge-1", Timestamp: storeNow},
			"sample carries no data",
		},
		{"stale", mkSample("edge-1", storeNow.Add(-11*time.Minute), 1), "stale sample"},
		{"future", mkSample("edge-1", storeNow.Add(5*time.Minute), 1), "future sample"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			applied, err := s.Apply(tc.sample)
			assert.False(t, applied)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeInvalidSample, errors.GetCode(err))
			assert.Equal(t, tc.reason, errors.GetMessage(err))
		})
	}

	_, ok := s.Latest("edge-1")
	assert.False(t, ok, "rejected samples must not alter stored state")
}

func TestSampleStore_ReorderedPushRejected(t *testing.T) {
	s := testStore(0)

	_, err := s.Apply(mkSample("edge-1", storeNow, 50))
	require.NoError(t, err)

	// An older sample delivered late must not clobber newer state.
	applied, err := s.Apply(mkSample("edge-1", storeNow.Add(-5*time.Minute), 99))
	assert.False(t, applied)
	require.Error(t, err)
	assert.Equal(t, "stale sample", errors.GetMessage(err))

	latest, _ := s.Latest("edge-1")
	assert.Equal(t, 50.0, latest.Metrics["cpu_pct"])
}

func TestSampleStore_SameTimestampIdempotent(t *testing.T) {
	s := testStore(0)

	sample := mkSample("edge-1", storeNow, 50)
	applied, err := s.Apply(sample)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.Apply(mkSample("edge-1", storeNow, 50))
	require.NoError(t, err)
	assert.False(t, applied, "re-applying the stored timestamp is a no-op")
	assert.Len(t, s.History("edge-1"), 1)
}

func TestSampleStore_HistoryBounded(t *testing.T) {
	s := testStore(3)

	for i := range 10 {
		_, err := s.Apply(mkSample("edge-1", storeNow.Add(time.Duration(i-9)*time.Second), float64(i)))
		require.NoError(t, err)
	}

	hist := s.History("edge-1")
	require.Len(t, hist, 3)
	assert.Equal(t, 7.0, hist[0].Metrics["cpu_pct"])
	assert.Equal(t, 9.0, hist[2].Metrics["cpu_pct"])

	latest, _ := s.Latest("edge-1")
	assert.Equal(t, 9.0, latest.Metrics["cpu_pct"])
}

func TestSampleStore_ConcurrentDistinctHosts(t *testing.T) {
	s := testStore(0)

	const hosts = 8
	const pushes = 50

	var wg sync.WaitGroup
	for h := range hosts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			host := fmt.Sprintf("edge-%d", h)
			for i := range pushes {
				v := float64(h*1000 + i)
				sample := &telemetry.Sample{
					Host:      host,
					Timestamp: storeNow.Add(time.Duration(i-pushes) * time.Second),
					Metrics:   map[string]float64{"a": v, "b": v},
				}
				if _, err := s.Apply(sample); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	require.Len(t, s.Hosts(), hosts)
	for h := range hosts {
		host := fmt.Sprintf("edge-%d", h)
		latest, ok := s.Latest(host)
		require.True(t, ok, host)
		// All fields of a stored sample come from one push.
		assert.Equal(t, latest.Metrics["a"], latest.Metrics["b"], host)
		assert.Equal(t, float64(h*1000+pushes-1), latest.Metrics["a"], host)
	}
}
