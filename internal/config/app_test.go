package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func parseConfig(t *testing.T, toml string) *AppConfig {
	t.Helper()
	v := viper.New()
	setAppDefaults(v)
	v.SetConfigType("toml")
	if err := v.ReadConfig(strings.NewReader(toml)); err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return &cfg
}

func TestParseMinimalConfig(t *testing.T) {
	cfg := parseConfig(t, `
[[monitor]]
id = "live"
streams = [
  { url = "https://example.com/master.m3u8" },
]
`)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(cfg.Monitor) != 1 {
		t.Fatalf("monitor count = %d, want 1", len(cfg.Monitor))
	}
	if cfg.Monitor[0].ID != "live" {
		t.Fatalf("monitor ID = %q, want live", cfg.Monitor[0].ID)
	}
	if cfg.Monitor[0].Streams[0].URL != "https://example.com/master.m3u8" {
		t.Fatalf("stream URL = %q", cfg.Monitor[0].Streams[0].URL)
	}
	if cfg.Defaults.StaleLimitMs != 6000 {
		t.Fatalf("default stale_limit_ms = %d, want 6000", cfg.Defaults.StaleLimitMs)
	}
	if cfg.Server.LogFormat != "pretty" {
		t.Fatalf("default log_format = %q, want pretty", cfg.Server.LogFormat)
	}
}

func TestParseFullConfig(t *testing.T) {
	cfg := parseConfig(t, `
[server]
listen = "127.0.0.1:9090"
log_format = "json"

[defaults]
stale_limit_ms = 8000
scte35 = true
error_limit = 50

[[webhook]]
url = "https://hooks.example.com/alerts"
events = ["error", "cue_out_started"]
secret = "my-key"

[[monitor]]
id = "channel-1"
stale_limit_ms = 10000
streams = [
  { id = "primary", url = "https://cdn1.example.com/master.m3u8" },
  { url = "https://cdn2.example.com/master.m3u8" },
]

[[monitor]]
id = "channel-2"
scte35 = false
streams = [
  { url = "https://cdn3.example.com/master.m3u8" },
]
`)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Server.Listen != "127.0.0.1:9090" {
		t.Fatalf("listen = %q", cfg.Server.Listen)
	}
	if cfg.Server.LogFormat != "json" {
		t.Fatalf("log_format = %q", cfg.Server.LogFormat)
	}
	if cfg.Defaults.StaleLimitMs != 8000 || !cfg.Defaults.Scte35 || cfg.Defaults.ErrorLimit != 50 {
		t.Fatalf("defaults = %+v", cfg.Defaults)
	}
	if len(cfg.Webhook) != 1 || cfg.Webhook[0].Secret != "my-key" {
		t.Fatalf("webhook = %+v", cfg.Webhook)
	}
	if len(cfg.Monitor) != 2 {
		t.Fatalf("monitor count = %d, want 2", len(cfg.Monitor))
	}

	m1 := cfg.Monitor[0].ToMonitorConfig(cfg.Defaults)
	if m1.StaleLimit.Milliseconds() != 10000 {
		t.Fatalf("monitor 1 stale_limit = %s", m1.StaleLimit)
	}
	if !m1.Scte35Enabled {
		t.Fatal("monitor 1 should inherit scte35=true from defaults")
	}

	items := cfg.Monitor[0].ToStreamItems()
	if len(items) != 2 || items[0].ID != "primary" || items[1].ID != "stream_2" {
		t.Fatalf("stream items = %+v", items)
	}

	m2 := cfg.Monitor[1].ToMonitorConfig(cfg.Defaults)
	if m2.Scte35Enabled {
		t.Fatal("monitor 2 should override scte35 to false")
	}
}

func TestValidateRejectsDuplicateMonitorIDs(t *testing.T) {
	cfg := parseConfig(t, `
[[monitor]]
id = "same"
streams = [{ url = "https://a.com/m.m3u8" }]

[[monitor]]
id = "same"
streams = [{ url = "https://b.com/m.m3u8" }]
`)
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate monitor ID") {
		t.Fatalf("err = %v, want duplicate monitor ID", err)
	}
}

func TestValidateRejectsEmptyStreams(t *testing.T) {
	cfg := parseConfig(t, `
[[monitor]]
id = "empty"
streams = []
`)
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "has no streams") {
		t.Fatalf("err = %v, want has no streams", err)
	}
}

func TestValidateRejectsInvalidStreamURL(t *testing.T) {
	cfg := parseConfig(t, `
[[monitor]]
id = "bad"
streams = [{ url = "not-a-url" }]
`)
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "stream URL must use http or https") {
		t.Fatalf("err = %v, want scheme error", err)
	}
}

func TestValidateRejectsInvalidLogFormat(t *testing.T) {
	cfg := parseConfig(t, `
[server]
log_format = "xml"

[[monitor]]
id = "ok"
streams = [{ url = "https://example.com/m.m3u8" }]
`)
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "invalid log_format") {
		t.Fatalf("err = %v, want invalid log_format", err)
	}
}

func TestValidateRejectsDuplicateStreamURLs(t *testing.T) {
	cfg := parseConfig(t, `
[[monitor]]
id = "dup"
streams = [
  { url = "https://a.com/m.m3u8" },
  { url = "https://a.com/m.m3u8" },
]
`)
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate stream URLs") {
		t.Fatalf("err = %v, want duplicate stream URLs", err)
	}
}
