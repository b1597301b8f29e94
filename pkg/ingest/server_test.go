package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clawue884/sidra-monitoring/pkg/alerting"
	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
	"github.com/Clawue884/sidra-monitoring/pkg/telemetry"
)

type fakeSink struct {
	mu      sync.Mutex
	samples []*telemetry.Sample
}

func (f *fakeSink) WriteSample(_ context.Context, s *telemetry.Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, s)
	return nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []alerting.Event
}

func (f *fakeAudit) RecordEvent(_ context.Context, ev alerting.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func newTestServer(t *testing.T) (*Server, *httptest.Server, *fakeSink, *fakeAudit) {
	t.Helper()

	engine := alerting.NewEngine([]alerting.ThresholdRule{
		{Metric: "cpu_pct", Warning: 80, Critical: 90},
	})
	sink := &fakeSink{}
	audit := &fakeAudit{}

	cfg := NewConfig()
	srv := NewServer(cfg, engine, WithSink(sink), WithAuditLog(audit))
	srv.SetReady(true)

	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return srv, ts, sink, audit
}

func postSample(t *testing.T, url string, sample *telemetry.Sample) (*http.Response, IngestResponse) {
	t.Helper()
	body, err := json.Marshal(sample)
	require.NoError(t, err)

	resp, err := http.Post(url+"/v1/ingest", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var ir IngestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ir))
	return resp, ir
}

func TestServer_IngestFlow(t *testing.T) {
	_, ts, sink, audit := newTestServer(t)

	sample := &telemetry.Sample{
		Host:      "edge-1",
		Timestamp: time.Now().UTC(),
		Metrics:   map[string]float64{"cpu_pct": 96},
	}
	resp, ir := postSample(t, ts.URL, sample)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "accepted", ir.Status)

	// Accepted samples reach the engine, the audit log, and the sink.
	alertsResp, err := http.Get(ts.URL + "/v1/alerts")
	require.NoError(t, err)
	defer alertsResp.Body.Close()

	var alerts AlertsResponse
	require.NoError(t, json.NewDecoder(alertsResp.Body).Decode(&alerts))
	require.Len(t, alerts.Active, 1)
	assert.Equal(t, "edge-1", alerts.Active[0].Host)
	assert.Equal(t, alerting.SeverityCritical, alerts.Active[0].Severity)

	audit.mu.Lock()
	require.Len(t, audit.events, 1)
	assert.Equal(t, alerting.EventFired, audit.events[0].Kind)
	audit.mu.Unlock()

	sink.mu.Lock()
	assert.Len(t, sink.samples, 1)
	sink.mu.Unlock()
}

func TestServer_StaleSampleRejectedWithoutSideEffects(t *testing.T) {
	srv, ts, sink, _ := newTestServer(t)

	now := time.Now().UTC()
	_, ir := postSample(t, ts.URL, &telemetry.Sample{
		Host:      "edge-1",
		Timestamp: now,
		Metrics:   map[string]float64{"cpu_pct": 96},
	})
	require.Equal(t, "accepted", ir.Status)

	// An older push must not alter stored state or alert state.
	resp, ir := postSample(t, ts.URL, &telemetry.Sample{
		Host:      "edge-1",
		Timestamp: now.Add(-10 * time.Minute),
		Metrics:   map[string]float64{"cpu_pct": 10},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "rejected", ir.Status)
	assert.Equal(t, "stale sample", ir.Reason)

	latest, ok := srv.Store().Latest("edge-1")
	require.True(t, ok)
	assert.Equal(t, 96.0, latest.Metrics["cpu_pct"])

	sink.mu.Lock()
	assert.Len(t, sink.samples, 1, "rejected samples never reach the sink")
	sink.mu.Unlock()
}

func TestServer_ReplayedSampleDoesNotDoubleFire(t *testing.T) {
	_, ts, _, audit := newTestServer(t)

	sample := &telemetry.Sample{
		Host:      "edge-1",
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Metrics:   map[string]float64{"cpu_pct": 96},
	}
	_, ir := postSample(t, ts.URL, sample)
	require.Equal(t, "accepted", ir.Status)

	resp, ir := postSample(t, ts.URL, sample)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "accepted", ir.Status)

	audit.mu.Lock()
	assert.Len(t, audit.events, 1, "identical replay must not produce a second fired event")
	audit.mu.Unlock()
}

func TestServer_MalformedPayload(t *testing.T) {
	_, ts, _, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/ingest", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var ir IngestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ir))
	assert.Equal(t, "rejected", ir.Status)
	assert.Equal(t, "malformed payload", ir.Reason)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	_, ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/ingest")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_Inventory(t *testing.T) {
	srv, ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/inventory")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	snap := &inventory.Snapshot{
		ID:      "run-1",
		TakenAt: time.Now().UTC(),
		Hosts: map[string]*inventory.HostRecord{
			"10.0.0.1": inventory.NewHostRecord(inventory.Identity{Addr: "10.0.0.1"}),
		},
	}
	srv.SetSnapshot(snap)

	resp, err = http.Get(ts.URL + "/v1/inventory")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got inventory.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "run-1", got.ID)
	assert.Contains(t, got.Hosts, "10.0.0.1")
}

func TestServer_SampleHistory(t *testing.T) {
	_, ts, _, _ := newTestServer(t)

	now := time.Now().UTC()
	for i := range 3 {
		_, ir := postSample(t, ts.URL, &telemetry.Sample{
			Host:      "edge-1",
			Timestamp: now.Add(time.Duration(i-3) * time.Minute),
			Metrics:   map[string]float64{"cpu_pct": float64(i)},
		})
		require.Equal(t, "accepted", ir.Status)
	}

	resp, err := http.Get(ts.URL + "/v1/samples/edge-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history []*telemetry.Sample
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	assert.Len(t, history, 3)

	resp, err = http.Get(ts.URL + "/v1/samples/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_HealthAndReady(t *testing.T) {
	srv, ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "sidra-collector", health.Service)
	assert.NotEmpty(t, health.Version)

	resp, err = http.Get(ts.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	srv.SetReady(false)
	resp, err = http.Get(ts.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
