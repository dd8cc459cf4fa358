package sarvam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.sarvam.ai"

// Config holds the shared Sarvam API settings. One client backs both
// the STT and TTS providers.
type Config struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	STTModel   string        `mapstructure:"stt_model"`
	TTSModel   string        `mapstructure:"tts_model"`
	Translate  string        `mapstructure:"translate_model"`
	Speaker    string        `mapstructure:"speaker"`
	STTTimeout time.Duration `mapstructure:"stt_timeout"`
	TTSTimeout time.Duration `mapstructure:"tts_timeout"`
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.STTModel == "" {
		c.STTModel = "saaras:v2.5"
	}
	if c.TTSModel == "" {
		c.TTSModel = "bulbul:v2"
	}
	if c.Translate == "" {
		c.Translate = "mayura:v1"
	}
	if c.Speaker == "" {
		c.Speaker = "anushka"
	}
	if c.STTTimeout <= 0 {
		c.STTTimeout = 30 * time.Second
	}
	if c.TTSTimeout <= 0 {
		c.TTSTimeout = 15 * time.Second
	}
	return c
}

type client struct {
	cfg  Config
	http *http.Client
}

func newClient(cfg Config, hc *http.Client) *client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &client{cfg: cfg.withDefaults(), http: hc}
}

func (c *client) postMultipart(ctx context.Context, path string, fields map[string]string, fileField, fileName string, file []byte, timeout time.Duration, out any) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	fw, err := w.CreateFormFile(fileField, fileName)
	if err != nil {
		return err
	}
	if _, err := fw.Write(file); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("api-subscription-key", c.cfg.APIKey)
	return c.do(req, out)
}

func (c *client) postJSON(ctx context.Context, path string, payload any, timeout time.Duration, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-subscription-key", c.cfg.APIKey)
	return c.do(req, out)
}

func (c *client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sarvam %s: status %d: %s", req.URL.Path, resp.StatusCode, truncate(raw, 200))
	}
	return json.Unmarshal(raw, out)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
