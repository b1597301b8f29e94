package ingest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Clawue884/sidra-monitoring/pkg/alerting"
	"github.com/Clawue884/sidra-monitoring/pkg/errors"
	"github.com/Clawue884/sidra-monitoring/pkg/serializers"
	"github.com/Clawue884/sidra-monitoring/pkg/telemetry"
)

// maxSampleBytes bounds one push body.
const maxSampleBytes = 1 << 20

// IngestResponse tells the pusher whether its sample was applied.
type IngestResponse struct {
	Status string `json:"status"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// AlertsResponse is the reply to GET /v1/alerts.
type AlertsResponse struct {
	Active   []alerting.Alert `json:"active"`
	Resolved []alerting.Alert `json:"resolved,omitempty"`
	At       time.Time        `json:"at"`
}

// handleIngest handles POST /v1/ingest.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, errors.ErrCodeMethodNotAllowed,
			"Method not allowed", false, nil)
		return
	}

	var sample telemetry.Sample
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSampleBytes))
	if err == nil {
		err = json.Unmarshal(body, &sample)
	}
	if err != nil {
		samplesIngested.WithLabelValues("rejected").Inc()
		serializers.RespondJSON(w, http.StatusBadRequest, IngestResponse{
			Status: "rejected",
			Code:   string(errors.ErrCodeInvalidSample),
			Reason: "malformed payload",
		})
		return
	}

	applied, err := s.store.Apply(&sample)
	if err != nil {
		samplesIngested.WithLabelValues("rejected").Inc()
		slog.Debug("sample rejected", "host", sample.Host, "error", err)
		serializers.RespondJSON(w, http.StatusBadRequest, IngestResponse{
			Status: "rejected",
			Code:   string(errors.GetCode(err)),
			Reason: errors.GetMessage(err),
		})
		return
	}

	samplesIngested.WithLabelValues("accepted").Inc()
	if applied {
		s.process(r, &sample)
	}

	serializers.RespondJSON(w, http.StatusAccepted, IngestResponse{Status: "accepted"})
}

// process feeds an applied sample to the alert engine and the optional
// collaborators. Collaborator failures are logged, never returned to
// the pusher.
func (s *Server) process(r *http.Request, sample *telemetry.Sample) {
	events := s.engine.Evaluate(sample)

	if s.audit != nil {
		for _, ev := range events {
			if err := s.audit.RecordEvent(r.Context(), ev); err != nil {
				slog.Warn("persisting alert event", "host", ev.Host, "metric", ev.Metric, "error", err)
			}
		}
	}

	if s.sink != nil {
		if err := s.sink.WriteSample(r.Context(), sample); err != nil {
			slog.Warn("forwarding sample to time-series store", "host", sample.Host, "error", err)
		}
	}
}

// handleAlerts handles GET /v1/alerts. The active set is always
// included; pass ?resolved=true for recently resolved alerts too.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, errors.ErrCodeMethodNotAllowed,
			"Method not allowed", false, nil)
		return
	}

	resp := AlertsResponse{
		Active: s.engine.Active(),
		At:     time.Now().UTC(),
	}
	if r.URL.Query().Get("resolved") == "true" {
		resp.Resolved = s.engine.Resolved()
	}

	serializers.RespondJSON(w, http.StatusOK, resp)
}

// handleInventory handles GET /v1/inventory, serving the latest
// discovery snapshot.
func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, errors.ErrCodeMethodNotAllowed,
			"Method not allowed", false, nil)
		return
	}

	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()

	if snap == nil {
		writeError(w, r, http.StatusNotFound, errors.ErrCodeInvalidRequest,
			"No discovery snapshot available", true, nil)
		return
	}

	serializers.RespondJSON(w, http.StatusOK, snap)
}

// handleSamples handles GET /v1/samples/{host}, returning the recent
// history ring for one host.
func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, errors.ErrCodeMethodNotAllowed,
			"Method not allowed", false, nil)
		return
	}

	host := strings.TrimPrefix(r.URL.Path, "/v1/samples/")
	if host == "" {
		writeError(w, r, http.StatusBadRequest, errors.ErrCodeInvalidRequest,
			"Missing host in path", false, nil)
		return
	}

	history := s.store.History(host)
	if len(history) == 0 {
		writeError(w, r, http.StatusNotFound, errors.ErrCodeInvalidRequest,
			"No samples for host", false, map[string]any{"host": host})
		return
	}

	serializers.RespondJSON(w, http.StatusOK, history)
}
