package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
environment: test
predictor:
  base_url: http://localhost:8000
redis:
  addr: localhost:6379
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Cache.Validity != 24*time.Hour {
		t.Fatalf("expected 24h validity default, got %v", cfg.Cache.Validity)
	}
	if cfg.Cache.StalenessHint != time.Hour {
		t.Fatalf("expected 1h staleness default, got %v", cfg.Cache.StalenessHint)
	}
	if cfg.Predictor.MaxAttempts != 3 {
		t.Fatalf("expected 3 attempts default, got %v", cfg.Predictor.MaxAttempts)
	}
	if cfg.Redis.Prefix != "tikr" {
		t.Fatalf("expected tikr prefix default, got %q", cfg.Redis.Prefix)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing predictor url", `
environment: test
redis:
  addr: localhost:6379
`},
		{"missing redis addr", `
environment: test
predictor:
  base_url: http://localhost:8000
`},
		{"hint exceeds validity", minimalYAML + `
cache:
  validity: 1h
  staleness_hint: 2h
`},
		{"refresh without tickers", minimalYAML + `
refresh:
  enabled: true
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("PREDICTOR_URL", "http://inference:9000")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("TICKERS", "AAPL,MSFT")
	t.Setenv("PORT", "9090")
	t.Setenv("WEBSOCKET_ENABLED", "true")

	cfg, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Predictor.BaseURL != "http://inference:9000" {
		t.Fatalf("predictor url not overridden: %q", cfg.Predictor.BaseURL)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("redis addr not overridden: %q", cfg.Redis.Addr)
	}
	if len(cfg.Refresh.Tickers) != 2 || cfg.Refresh.Tickers[0] != "AAPL" {
		t.Fatalf("tickers not overridden: %v", cfg.Refresh.Tickers)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port not overridden: %d", cfg.Server.Port)
	}
	if !cfg.WebSocket.Enabled {
		t.Fatalf("websocket flag not overridden")
	}
}
