package configutil

import (
	"testing"
	"time"
)

func TestDecodeSettingsMatchesLooseKeys(t *testing.T) {
	var out struct {
		APIKey  string        `mapstructure:"api_key"`
		Timeout time.Duration `mapstructure:"timeout"`
		Retries int           `mapstructure:"max_retries"`
	}
	err := DecodeSettings(map[string]any{
		"api-key":     "secret",
		"timeout":     "30s",
		"MAX_RETRIES": "3",
	}, &out)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if out.APIKey != "secret" {
		t.Fatalf("expected loose key match, got %q", out.APIKey)
	}
	if out.Timeout != 30*time.Second {
		t.Fatalf("expected duration parse, got %v", out.Timeout)
	}
	if out.Retries != 3 {
		t.Fatalf("expected weak int conversion, got %d", out.Retries)
	}
}

func TestDecodeSettingsEmptyInputIsNoop(t *testing.T) {
	var out struct {
		APIKey string `mapstructure:"api_key"`
	}
	if err := DecodeSettings(nil, &out); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestRequireString(t *testing.T) {
	if err := RequireString("  ", "vendors.stt.settings.api_key"); err == nil {
		t.Fatalf("expected error for blank value")
	}
	if err := RequireString("x", "path"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIntValue(t *testing.T) {
	if got := IntValue(0, 7); got != 7 {
		t.Fatalf("expected fallback, got %d", got)
	}
	if got := IntValue(3, 7); got != 3 {
		t.Fatalf("expected value, got %d", got)
	}
}
