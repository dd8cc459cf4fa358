package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	restinterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
)

type stubTranscriber struct {
	res *restinterfaces.PreRecordedResponse
	err error

	gotOptions *interfaces.PreRecordedTranscriptionOptions
}

func (s *stubTranscriber) FromStream(_ context.Context, _ io.Reader, options *interfaces.PreRecordedTranscriptionOptions) (*restinterfaces.PreRecordedResponse, error) {
	s.gotOptions = options
	return s.res, s.err
}

func responseFromJSON(t *testing.T, raw string) *restinterfaces.PreRecordedResponse {
	t.Helper()
	var res restinterfaces.PreRecordedResponse
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	return &res
}

func newTestSTT(stub *stubTranscriber) *BatchSTT {
	return &BatchSTT{cfg: Config{}.withDefaults(), dg: stub, logger: slog.Default()}
}

func TestNewWiresRESTClient(t *testing.T) {
	b := New(Config{APIKey: "dg-key"})
	if b.dg == nil {
		t.Fatalf("expected prerecorded client to be wired")
	}
	if b.cfg.Model != "nova-2" {
		t.Fatalf("expected defaults applied, got %q", b.cfg.Model)
	}
}

func TestTranscribeExtractsTranscript(t *testing.T) {
	stub := &stubTranscriber{res: responseFromJSON(t, `{
		"results": {"channels": [{
			"detected_language": "hi",
			"alternatives": [{"transcript": " wheat price today "}]
		}]}
	}`)}
	b := newTestSTT(stub)
	res, err := b.Transcribe(context.Background(), []byte("RIFFfake"))
	if err != nil {
		t.Fatalf("transcribe error: %v", err)
	}
	if res.Text != "wheat price today" {
		t.Fatalf("expected trimmed transcript, got %q", res.Text)
	}
	if res.Language != "hi" {
		t.Fatalf("expected detected language, got %s", res.Language)
	}
	if stub.gotOptions == nil || stub.gotOptions.Model != "nova-2" {
		t.Fatalf("expected default model in options")
	}
}

func TestTranscribeDefaultsLanguage(t *testing.T) {
	stub := &stubTranscriber{res: responseFromJSON(t, `{
		"results": {"channels": [{"alternatives": [{"transcript": "hello"}]}]}
	}`)}
	b := newTestSTT(stub)
	res, err := b.Transcribe(context.Background(), []byte("RIFFfake"))
	if err != nil {
		t.Fatalf("transcribe error: %v", err)
	}
	if res.Language != "en" {
		t.Fatalf("expected configured language fallback, got %s", res.Language)
	}
}

func TestTranscribeEmptyChannelsFails(t *testing.T) {
	stub := &stubTranscriber{res: responseFromJSON(t, `{"results": {"channels": []}}`)}
	b := newTestSTT(stub)
	if _, err := b.Transcribe(context.Background(), []byte("RIFFfake")); err == nil {
		t.Fatalf("expected error on empty channels")
	}
}

func TestTranscribeRequestErrorWrapped(t *testing.T) {
	stub := &stubTranscriber{err: errors.New("boom")}
	b := newTestSTT(stub)
	if _, err := b.Transcribe(context.Background(), []byte("RIFFfake")); err == nil {
		t.Fatalf("expected error from transport failure")
	}
}
