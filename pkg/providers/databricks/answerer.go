package databricks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/agrisarthi/agrivoice/pkg/errorsx"
	"github.com/agrisarthi/agrivoice/pkg/logging"
	"github.com/agrisarthi/agrivoice/pkg/resilience"
)

// Phrases that signal the agent failed to find data. One retry often
// succeeds because the serving endpoint warms its SQL warehouse on
// first use.
var sorryPhrases = []string{
	"couldn't find",
	"sorry",
	"not available",
	"no price data",
	"unable to find",
}

type Config struct {
	Host       string        `mapstructure:"host"`
	Token      string        `mapstructure:"token"`
	Endpoint   string        `mapstructure:"endpoint"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	Backoff    time.Duration `mapstructure:"backoff"`
}

func (c Config) withDefaults() Config {
	if c.Endpoint == "" {
		c.Endpoint = "agents_agrisarthi-main-agrisarthi_agent"
	}
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 1
	}
	return c
}

// Answerer invokes a Databricks model-serving agent endpoint.
type Answerer struct {
	cfg    Config
	http   *http.Client
	retry  resilience.RetryPolicy
	logger *slog.Logger
}

func New(cfg Config) *Answerer {
	return NewWithHTTPClient(cfg, nil)
}

func NewWithHTTPClient(cfg Config, hc *http.Client) *Answerer {
	if hc == nil {
		hc = &http.Client{}
	}
	cfg = cfg.withDefaults()
	return &Answerer{
		cfg:    cfg,
		http:   hc,
		retry:  resilience.NewRetryPolicy(cfg.MaxRetries, cfg.Backoff),
		logger: logging.NewComponentLogger(slog.Default(), "databricks_answerer"),
	}
}

func (a *Answerer) Name() string { return "databricks_agent" }

func (a *Answerer) Invoke(ctx context.Context, text string) (string, error) {
	return a.invoke(ctx, text, true)
}

func (a *Answerer) invoke(ctx context.Context, text string, retry bool) (string, error) {
	var reply string
	err := a.retry.Do(func() error {
		var postErr error
		reply, postErr = a.post(ctx, text)
		return postErr
	})
	if err != nil {
		return "", err
	}
	if retry && saidSorry(reply) {
		a.logger.Info("answerer_retry_after_sorry")
		return a.invoke(ctx, text, false)
	}
	return reply, nil
}

func (a *Answerer) post(ctx context.Context, text string) (string, error) {
	payload := map[string]any{
		"messages": []map[string]string{{"role": "user", "content": text}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	url := strings.TrimRight(a.cfg.Host, "/") + "/serving-endpoints/" + a.cfg.Endpoint + "/invocations"

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", errorsx.Wrap(err, errorsx.ReasonAnswerTimeout)
		}
		return "", errorsx.Wrap(err, errorsx.ReasonAnswerRequest)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonAnswerRequest)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errorsx.Wrap(fmt.Errorf("serving endpoint status %d: %s", resp.StatusCode, truncate(raw, 300)), errorsx.ReasonAnswerRequest)
	}
	reply, err := extractReply(raw)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonAnswerRequest)
	}
	return reply, nil
}

// extractReply handles the agent response formats the endpoint is
// known to produce: a messages list with a final ai entry, an OpenAI
// style choices list, or a bare output field.
func extractReply(raw []byte) (string, error) {
	var data struct {
		Messages []struct {
			Type      string          `json:"type"`
			Content   string          `json:"content"`
			ToolCalls json.RawMessage `json:"tool_calls"`
		} `json:"messages"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Output string `json:"output"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", err
	}
	for i := len(data.Messages) - 1; i >= 0; i-- {
		msg := data.Messages[i]
		hasToolCalls := len(msg.ToolCalls) > 0 && string(msg.ToolCalls) != "null" && string(msg.ToolCalls) != "[]"
		if msg.Type == "ai" && msg.Content != "" && !hasToolCalls {
			return msg.Content, nil
		}
	}
	if len(data.Messages) > 0 && data.Messages[len(data.Messages)-1].Content != "" {
		return data.Messages[len(data.Messages)-1].Content, nil
	}
	if len(data.Choices) > 0 && data.Choices[0].Message.Content != "" {
		return data.Choices[0].Message.Content, nil
	}
	if data.Output != "" {
		return data.Output, nil
	}
	return "", errors.New("no reply in agent response")
}

func saidSorry(reply string) bool {
	lower := strings.ToLower(reply)
	for _, p := range sorryPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
