package agrivoice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agrisarthi/agrivoice/pkg/registry"
)

type stubDialer struct {
	sid  string
	err  error
	to   string
	from string
}

func (s *stubDialer) Dial(_ context.Context, to, from, _ string) (string, error) {
	s.to = to
	s.from = from
	if s.err != nil {
		return "", s.err
	}
	return s.sid, nil
}

func TestListCalls(t *testing.T) {
	reg := registry.New()
	reg.StartCall("CA1", registry.DirectionInbound, "+15550001", "", time.Unix(1700000000, 0))
	h := newReportingHandler(reg, &stubDialer{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/calls", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var payload struct {
		Calls []registry.CallRecord `json:"calls"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(payload.Calls) != 1 || payload.Calls[0].CallID != "CA1" {
		t.Fatalf("unexpected calls %+v", payload.Calls)
	}
}

func TestTranscriptForKnownCall(t *testing.T) {
	reg := registry.New()
	reg.StartCall("CA1", registry.DirectionInbound, "+15550001", "", time.Now())
	reg.AppendTranscript("CA1", registry.TranscriptEntry{Role: registry.RoleFarmer, Text: "wheat price"})
	h := newReportingHandler(reg, &stubDialer{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/calls/CA1/transcript", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var payload struct {
		Transcript []registry.TranscriptEntry `json:"transcript"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(payload.Transcript) != 1 || payload.Transcript[0].Text != "wheat price" {
		t.Fatalf("unexpected transcript %+v", payload.Transcript)
	}
}

func TestTranscriptForUnknownCallIs404(t *testing.T) {
	h := newReportingHandler(registry.New(), &stubDialer{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/calls/missing/transcript", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCreateOutboundCall(t *testing.T) {
	reg := registry.New()
	dialer := &stubDialer{sid: "CA777"}
	h := newReportingHandler(reg, dialer)

	body := strings.NewReader(`{"to": "+919876500000", "from": "+15550002"}`)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/calls", body))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if dialer.to != "+919876500000" || dialer.from != "+15550002" {
		t.Fatalf("dialer got to=%q from=%q", dialer.to, dialer.from)
	}
	rec, ok := reg.Lookup("CA777")
	if !ok || rec.Direction != registry.DirectionOutbound || rec.ToNumber != "+919876500000" {
		t.Fatalf("expected outbound record, got %+v ok=%v", rec, ok)
	}
}

func TestCreateOutboundCallRequiresTo(t *testing.T) {
	h := newReportingHandler(registry.New(), &stubDialer{sid: "CA1"})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/calls", strings.NewReader(`{}`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreateOutboundCallDialFailure(t *testing.T) {
	h := newReportingHandler(registry.New(), &stubDialer{err: errors.New("twilio down")})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/calls", strings.NewReader(`{"to": "+1"}`)))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}
