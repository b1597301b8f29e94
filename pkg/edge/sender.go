package edge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Clawue884/sidra-monitoring/pkg/telemetry"
)

// DefaultPushTimeout bounds one push attempt so a wedged collector
// cannot stall the sampling loop past a tick.
const DefaultPushTimeout = 30 * time.Second

// Sender pushes samples to the central ingest endpoint. Delivery is
// fire and forget: a failed push is reported to the caller for logging
// and the sample is dropped, never queued or retried.
type Sender struct {
	// URL is the collector base URL, e.g. http://central:8200.
	URL string

	Timeout time.Duration
	Client  *http.Client
}

// Push delivers one sample. A rejection by the collector is returned as
// an error carrying the reason code.
func (s *Sender) Push(ctx context.Context, sample *telemetry.Sample) error {
	timeout := s.Timeout
	if timeout == 0 {
		timeout = DefaultPushTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("encoding sample: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL+"/v1/ingest", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("pushing sample: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var rejection struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &rejection) == nil && rejection.Reason != "" {
		return fmt.Errorf("sample rejected: %s", rejection.Reason)
	}
	return fmt.Errorf("push failed with status %d", resp.StatusCode)
}
