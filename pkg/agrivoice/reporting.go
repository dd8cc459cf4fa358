package agrivoice

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/agrisarthi/agrivoice/pkg/logging"
	"github.com/agrisarthi/agrivoice/pkg/registry"
	"github.com/agrisarthi/agrivoice/pkg/transports"
)

// reportingHandler serves call history and transcripts and accepts
// outbound call requests. Mounted on the transport's HTTP server.
type reportingHandler struct {
	registry *registry.Registry
	dialer   transports.OutboundDialer
	logger   *slog.Logger
}

func newReportingHandler(reg *registry.Registry, dialer transports.OutboundDialer) *reportingHandler {
	return &reportingHandler{
		registry: reg,
		dialer:   dialer,
		logger:   logging.NewComponentLogger(slog.Default(), "reporting"),
	}
}

func (h *reportingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/calls")
	path = strings.Trim(path, "/")
	switch {
	case path == "" && r.Method == http.MethodGet:
		h.listCalls(w)
	case path == "" && r.Method == http.MethodPost:
		h.createCall(w, r)
	case strings.HasSuffix(path, "/transcript") && r.Method == http.MethodGet:
		h.transcript(w, strings.TrimSuffix(path, "/transcript"))
	default:
		http.NotFound(w, r)
	}
}

func (h *reportingHandler) listCalls(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{"calls": h.registry.History()})
}

func (h *reportingHandler) transcript(w http.ResponseWriter, callID string) {
	if _, ok := h.registry.Lookup(callID); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown call"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"call_id":    callID,
		"transcript": h.registry.Transcript(callID),
	})
}

func (h *reportingHandler) createCall(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To   string `json:"to"`
		From string `json:"from"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.To) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to number is required"})
		return
	}
	callID, err := h.dialer.Dial(r.Context(), req.To, req.From, "")
	if err != nil {
		h.logger.Warn("outbound_call_failed", "to", req.To, "error", err.Error())
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "call creation failed"})
		return
	}
	h.registry.StartCall(callID, registry.DirectionOutbound, req.From, req.To, time.Now())
	h.logger.Info("outbound_call_created", "call_id", callID, "to", req.To)
	writeJSON(w, http.StatusCreated, map[string]string{"call_id": callID})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
