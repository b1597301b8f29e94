package tsdb

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Clawue884/sidra-monitoring/pkg/telemetry"
)

// Writer accepts samples for long-term storage. The store itself is an
// external collaborator; this package only ships samples to it.
type Writer interface {
	WriteSample(ctx context.Context, sample *telemetry.Sample) error
}

// DefaultWriteTimeout bounds one import request.
const DefaultWriteTimeout = 10 * time.Second

// VictoriaWriter posts samples to a VictoriaMetrics-compatible endpoint
// in Prometheus text exposition format.
type VictoriaWriter struct {
	// URL is the base URL, e.g. http://localhost:8428.
	URL string

	Timeout time.Duration
	Client  *http.Client
}

// WriteSample converts one sample to exposition lines and imports them.
func (w *VictoriaWriter) WriteSample(ctx context.Context, sample *telemetry.Sample) error {
	body := FormatSample(sample)
	if body == "" {
		return nil
	}

	timeout := w.Timeout
	if timeout == 0 {
		timeout = DefaultWriteTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(w.URL, "/")+"/api/v1/import/prometheus", strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("building import request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("importing sample: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("import failed with status %d", resp.StatusCode)
	}
	return nil
}

// FormatSample renders one sample as Prometheus exposition lines,
// sorted by metric name for deterministic output. Metric names carry
// the sidra_ prefix; the host (and role when declared) become labels.
func FormatSample(sample *telemetry.Sample) string {
	if sample == nil || len(sample.Metrics) == 0 {
		return ""
	}

	names := make([]string, 0, len(sample.Metrics))
	for name := range sample.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	labels := fmt.Sprintf("host=%q", sample.Host)
	if sample.Role != "" {
		labels += fmt.Sprintf(",role=%q", sample.Role)
	}
	ts := sample.Timestamp.UnixMilli()

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "sidra_%s{%s} %v %d\n", name, labels, sample.Metrics[name], ts)
	}
	return b.String()
}

// Noop discards samples. Used when no time-series store is configured.
type Noop struct{}

func (Noop) WriteSample(context.Context, *telemetry.Sample) error { return nil }
