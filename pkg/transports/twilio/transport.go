package twilio

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agrisarthi/agrivoice/pkg/errorsx"
	"github.com/agrisarthi/agrivoice/pkg/transports"
	twilioclient "github.com/twilio/twilio-go/client"
)

type Config struct {
	ServerAddr      string `mapstructure:"server_addr"`
	PublicURL       string `mapstructure:"public_url"`
	AccountSID      string `mapstructure:"account_sid"`
	AuthToken       string `mapstructure:"auth_token"`
	FromNumber      string `mapstructure:"from_number"`
	VoicePath       string `mapstructure:"voice_path"`
	WebsocketPath   string `mapstructure:"ws_path"`
	FallbackMessage string `mapstructure:"fallback_message"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.VoicePath == "" {
		c.VoicePath = "/voice"
	}
	if c.WebsocketPath == "" {
		c.WebsocketPath = "/ws"
	}
	if c.FallbackMessage == "" {
		c.FallbackMessage = "Sorry, our voice service is unavailable right now. Please call again later."
	}
	return c
}

// Transport serves the Twilio media-stream WebSocket and the TwiML
// voice webhook, and relays outbound audio and clear signals.
type Transport struct {
	cfg      Config
	server   *http.Server
	upgrader websocket.Upgrader
	handler  transports.SessionHandler

	mu       sync.Mutex
	conns    map[string]*streamConn
	extraMux map[string]http.Handler

	draining atomic.Bool
}

func New(cfg Config) *Transport {
	return &Transport{
		cfg: cfg.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns:    make(map[string]*streamConn),
		extraMux: make(map[string]http.Handler),
	}
}

func (t *Transport) Name() string { return "twilio" }

func (t *Transport) SetHandler(h transports.SessionHandler) { t.handler = h }

// Handle mounts an extra HTTP route (reporting endpoints) on the
// transport's server. Must be called before Start.
func (t *Transport) Handle(path string, h http.Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.extraMux[path] = h
}

func (t *Transport) ReadyFields() map[string]any {
	return map[string]any{
		"webhook_url": t.voiceWebhookURL(),
		"ws_url":      t.websocketURLStatic(),
	}
}

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc(t.cfg.VoicePath, t.handleVoice)
	mux.Handle(t.cfg.WebsocketPath, t)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	t.mu.Lock()
	for path, h := range t.extraMux {
		mux.Handle(path, h)
	}
	t.mu.Unlock()
	t.server = &http.Server{
		Addr:              t.cfg.ServerAddr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	go func() {
		<-ctx.Done()
		_ = t.server.Close()
	}()
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("twilio_transport_server_error", "error", err.Error())
		}
	}()
	return nil
}

func (t *Transport) Stop() error {
	t.draining.Store(true)
	if t.server != nil {
		_ = t.server.Close()
	}
	t.mu.Lock()
	for _, c := range t.conns {
		_ = c.close()
	}
	t.conns = make(map[string]*streamConn)
	t.mu.Unlock()
	return nil
}

// ServeHTTP runs one media-stream connection. This goroutine is the
// session's inbound event loop: events are decoded once into the
// closed enum and handed to the session layer in arrival order.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if t.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var streamID, callID, traceID string
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var evt wireEvent
		if err := json.Unmarshal(msg, &evt); err != nil {
			slog.Debug("twilio_event_decode_skipped",
				"reason_code", string(errorsx.ReasonTransportDecode))
			continue
		}
		switch evt.Event {
		case "connected":
			t.dispatch(transports.Event{Type: transports.EventConnected})
		case "start":
			if evt.Start == nil {
				continue
			}
			streamID = evt.Start.StreamID
			callID = evt.Start.CallSID
			traceID = uuid.NewString()
			t.attach(streamID, conn)
			t.dispatch(transports.Event{
				Type:     transports.EventStart,
				StreamID: streamID,
				CallID:   callID,
				From:     evt.Start.From,
				TraceID:  traceID,
			})
		case "media":
			if evt.Media == nil || streamID == "" {
				continue
			}
			payload, err := base64.StdEncoding.DecodeString(evt.Media.Payload)
			if err != nil {
				slog.Debug("twilio_media_decode_skipped",
					"stream_id", streamID,
					"reason_code", string(errorsx.ReasonTransportDecode))
				continue
			}
			t.dispatch(transports.Event{
				Type:     transports.EventMedia,
				StreamID: streamID,
				CallID:   callID,
				TraceID:  traceID,
				Audio:    payload,
			})
		case "stop":
			t.dispatch(transports.Event{
				Type:     transports.EventStop,
				StreamID: streamID,
				CallID:   callID,
				TraceID:  traceID,
			})
			t.detach(streamID)
			return
		default:
			slog.Debug("twilio_event_unknown", "event", evt.Event)
		}
	}
	if streamID != "" {
		t.dispatch(transports.Event{
			Type:     transports.EventDisconnect,
			StreamID: streamID,
			CallID:   callID,
			TraceID:  traceID,
		})
		t.detach(streamID)
	}
}

func (t *Transport) dispatch(evt transports.Event) {
	if t.handler != nil {
		t.handler.HandleEvent(evt)
	}
}

// SendAudio enqueues one base64 media message for the stream.
func (t *Transport) SendAudio(streamID string, frame []byte) error {
	c := t.conn(streamID)
	if c == nil {
		return errorsx.Wrap(errors.New("no active stream "+streamID), errorsx.ReasonTransportSend)
	}
	msg := map[string]any{
		"event":     "media",
		"streamSid": streamID,
		"media": map[string]any{
			"payload": base64.StdEncoding.EncodeToString(frame),
		},
	}
	return c.enqueue(msg)
}

// Clear cancels audio still queued for playback on the platform side.
func (t *Transport) Clear(streamID string) error {
	c := t.conn(streamID)
	if c == nil {
		return nil
	}
	msg := map[string]any{
		"event":     "clear",
		"streamSid": streamID,
	}
	return c.enqueue(msg)
}

// Dial places an outbound call through the Twilio REST API.
func (t *Transport) Dial(ctx context.Context, to, from, callbackURL string) (string, error) {
	if from == "" {
		from = t.cfg.FromNumber
	}
	if callbackURL == "" {
		callbackURL = t.voiceWebhookURL()
	}
	return NewDialer(t.cfg).Dial(ctx, to, from, callbackURL)
}

func (t *Transport) handleVoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if t.cfg.AuthToken != "" && !t.validateTwilioRequest(r) {
		slog.Warn("twilio_invalid_signature",
			"reason_code", string(errorsx.ReasonTransportInvalidSignature))
		w.WriteHeader(http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	if t.draining.Load() {
		// Media service unavailable: speak a short apology instead of
		// connecting the stream.
		_, _ = w.Write([]byte(`<Response><Say>` + xmlEscape(t.cfg.FallbackMessage) + `</Say></Response>`))
		return
	}
	twiml := `<Response><Connect><Stream url="` + t.websocketURL(r) + `"/></Connect><Pause length="60"/></Response>`
	_, _ = w.Write([]byte(twiml))
}

func (t *Transport) websocketURL(r *http.Request) string {
	if t.cfg.PublicURL != "" {
		return "wss://" + normalizePublicURL(t.cfg.PublicURL) + t.cfg.WebsocketPath
	}
	host := r.Host
	if host == "" {
		host = strings.TrimPrefix(t.cfg.ServerAddr, ":")
	}
	return "wss://" + host + t.cfg.WebsocketPath
}

func (t *Transport) websocketURLStatic() string {
	if t.cfg.PublicURL != "" {
		return "wss://" + normalizePublicURL(t.cfg.PublicURL) + t.cfg.WebsocketPath
	}
	addr := t.cfg.ServerAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "ws://" + addr + t.cfg.WebsocketPath
}

func (t *Transport) voiceWebhookURL() string {
	if t.cfg.PublicURL != "" {
		return "https://" + normalizePublicURL(t.cfg.PublicURL) + t.cfg.VoicePath
	}
	addr := t.cfg.ServerAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + t.cfg.VoicePath
}

func (t *Transport) attach(streamID string, conn *websocket.Conn) {
	c := &streamConn{
		conn:   conn,
		sendCh: make(chan []byte, 256),
	}
	t.mu.Lock()
	if old := t.conns[streamID]; old != nil {
		_ = old.close()
	}
	t.conns[streamID] = c
	t.mu.Unlock()
	go c.loop()
}

func (t *Transport) detach(streamID string) {
	t.mu.Lock()
	c := t.conns[streamID]
	delete(t.conns, streamID)
	t.mu.Unlock()
	if c != nil {
		_ = c.close()
	}
}

func (t *Transport) conn(streamID string) *streamConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[streamID]
}

func (t *Transport) validateTwilioRequest(r *http.Request) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" || t.cfg.AuthToken == "" {
		return false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return false
	}
	params := make(map[string]string, len(form))
	for k := range form {
		params[k] = form.Get(k)
	}
	validator := twilioclient.NewRequestValidator(t.cfg.AuthToken)
	return validator.Validate(t.requestURL(r), params, signature)
}

func (t *Transport) requestURL(r *http.Request) string {
	if t.cfg.PublicURL != "" {
		return strings.TrimRight(t.cfg.PublicURL, "/") + r.URL.RequestURI()
	}
	scheme := r.URL.Scheme
	if scheme == "" {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		} else {
			scheme = "https"
		}
	}
	host := r.Host
	if host == "" {
		host = strings.TrimPrefix(t.cfg.ServerAddr, ":")
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

// streamConn owns the write side of one media stream: a buffered
// channel drained by a single writer goroutine, so outbound sends
// never block the session loop.
type streamConn struct {
	conn   *websocket.Conn
	sendCh chan []byte
	closed atomic.Bool
}

func (c *streamConn) enqueue(msg map[string]any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case c.sendCh <- b:
	default:
	}
	return nil
}

func (c *streamConn) loop() {
	for msg := range c.sendCh {
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (c *streamConn) close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.sendCh)
	}
	return c.conn.Close()
}

type wireStart struct {
	CallSID  string `json:"callSid"`
	StreamID string `json:"streamSid"`
	From     string `json:"from"`
}

type wireMedia struct {
	Payload string `json:"payload"`
}

type wireEvent struct {
	Event string     `json:"event"`
	Start *wireStart `json:"start,omitempty"`
	Media *wireMedia `json:"media,omitempty"`
}

func xmlEscape(in string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(in)
}

func normalizePublicURL(v string) string {
	v = strings.TrimPrefix(v, "https://")
	v = strings.TrimPrefix(v, "http://")
	return strings.TrimRight(v, "/")
}
