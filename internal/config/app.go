package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"

	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
)

// AppConfig is the top-level TOML configuration: the HTTP server, the
// per-field defaults every monitor inherits, the webhook subscriptions, and
// the monitors themselves.
//
// Example file:
//
//	[server]
//	listen = "0.0.0.0:8080"
//	log_format = "json"
//
//	[defaults]
//	stale_limit_ms = 6000
//	scte35 = false
//
//	[[webhook]]
//	url = "https://hooks.example.com/hls-alerts"
//	events = ["error", "cue_out_started", "cue_in_returned"]
//
//	[[monitor]]
//	id = "live-channel-1"
//	stale_limit_ms = 8000
//	scte35 = true
//	streams = [
//	  { id = "cdn-primary", url = "https://cdn1.example.com/live/master.m3u8" },
//	  { url = "https://cdn2.example.com/live/master.m3u8" },
//	]
type AppConfig struct {
	Server   ServerConfig    `mapstructure:"server"`
	Defaults DefaultsConfig  `mapstructure:"defaults"`
	Webhook  []WebhookDef    `mapstructure:"webhook"`
	Monitor  []MonitorDef    `mapstructure:"monitor"`
}

// ServerConfig holds the REST façade's listen address and log output format.
type ServerConfig struct {
	Listen    string `mapstructure:"listen"`
	LogFormat string `mapstructure:"log_format"`
}

// DefaultsConfig holds the monitor field defaults every MonitorDef inherits
// unless it overrides the field itself.
type DefaultsConfig struct {
	StaleLimitMs                int64    `mapstructure:"stale_limit_ms"`
	PollIntervalMs              int64    `mapstructure:"poll_interval_ms"`
	Scte35                      bool     `mapstructure:"scte35"`
	ErrorLimit                  int      `mapstructure:"error_limit"`
	EventLimit                  int      `mapstructure:"event_limit"`
	TargetDurationTolerance     float64  `mapstructure:"target_duration_tolerance"`
	MseqGapThreshold            uint64   `mapstructure:"mseq_gap_threshold"`
	VariantSyncDriftThreshold   uint64   `mapstructure:"variant_sync_drift_threshold"`
	VariantFailureThreshold     uint32   `mapstructure:"variant_failure_threshold"`
	SegmentDurationAnomalyRatio float64  `mapstructure:"segment_duration_anomaly_ratio"`
	ProgramDateTimeEnabled      bool     `mapstructure:"program_date_time_enabled"`
	DateRangeEnabled            bool     `mapstructure:"date_range_enabled"`
}

// WebhookDef is one [[webhook]] subscription entry.
type WebhookDef struct {
	URL    string   `mapstructure:"url"`
	Secret string   `mapstructure:"secret"`
	Events []string `mapstructure:"events"`
}

// MonitorDef is one [[monitor]] entry: an ID, optional field overrides, and
// the streams it watches.
type MonitorDef struct {
	ID                          string   `mapstructure:"id"`
	StaleLimitMs                *int64   `mapstructure:"stale_limit_ms"`
	PollIntervalMs              *int64   `mapstructure:"poll_interval_ms"`
	Scte35                      *bool    `mapstructure:"scte35"`
	TargetDurationTolerance     *float64 `mapstructure:"target_duration_tolerance"`
	MseqGapThreshold            *uint64  `mapstructure:"mseq_gap_threshold"`
	VariantSyncDriftThreshold   *uint64  `mapstructure:"variant_sync_drift_threshold"`
	VariantFailureThreshold     *uint32  `mapstructure:"variant_failure_threshold"`
	SegmentDurationAnomalyRatio *float64 `mapstructure:"segment_duration_anomaly_ratio"`
	Streams                     []StreamDef `mapstructure:"streams"`
}

// StreamDef is one stream entry under a monitor; ID is auto-generated as
// stream_{n} (1-based) when left blank.
type StreamDef struct {
	ID  string `mapstructure:"id"`
	URL string `mapstructure:"url"`
}

// DefaultDefaultsConfig mirrors DefaultMonitorConfig's values so an absent
// [defaults] table produces the same monitor behavior as omitting overrides
// entirely.
func DefaultDefaultsConfig() DefaultsConfig {
	d := DefaultMonitorConfig()
	return DefaultsConfig{
		StaleLimitMs:                d.StaleLimit.Milliseconds(),
		PollIntervalMs:              d.PollInterval.Milliseconds(),
		Scte35:                      d.Scte35Enabled,
		ErrorLimit:                  d.ErrorLimit,
		EventLimit:                  d.EventLimit,
		TargetDurationTolerance:     d.TargetDurationTolerance,
		MseqGapThreshold:            d.MseqGapThreshold,
		VariantSyncDriftThreshold:   d.VariantSyncDriftThreshold,
		VariantFailureThreshold:     d.VariantFailureThreshold,
		SegmentDurationAnomalyRatio: d.SegmentDurationAnomalyRatio,
		ProgramDateTimeEnabled:      d.ProgramDateTimeEnabled,
		DateRangeEnabled:            d.DateRangeEnabled,
	}
}

// ToMonitorConfig builds the MonitorConfig these defaults describe.
func (d DefaultsConfig) ToMonitorConfig() MonitorConfig {
	c := DefaultMonitorConfig().
		WithStaleLimit(time.Duration(d.StaleLimitMs) * time.Millisecond).
		WithScte35(d.Scte35).
		WithErrorLimit(d.ErrorLimit).
		WithEventLimit(d.EventLimit)
	if d.PollIntervalMs > 0 {
		c = c.WithPollInterval(time.Duration(d.PollIntervalMs) * time.Millisecond)
	}
	if d.TargetDurationTolerance > 0 {
		c.TargetDurationTolerance = d.TargetDurationTolerance
	}
	if d.MseqGapThreshold > 0 {
		c.MseqGapThreshold = d.MseqGapThreshold
	}
	if d.VariantSyncDriftThreshold > 0 {
		c.VariantSyncDriftThreshold = d.VariantSyncDriftThreshold
	}
	if d.VariantFailureThreshold > 0 {
		c.VariantFailureThreshold = d.VariantFailureThreshold
	}
	if d.SegmentDurationAnomalyRatio > 0 {
		c.SegmentDurationAnomalyRatio = d.SegmentDurationAnomalyRatio
	}
	c.ProgramDateTimeEnabled = d.ProgramDateTimeEnabled
	c.DateRangeEnabled = d.DateRangeEnabled
	return c
}

// ToMonitorConfig builds the MonitorConfig for this monitor definition,
// starting from defaults and applying every field m overrides.
func (m MonitorDef) ToMonitorConfig(defaults DefaultsConfig) MonitorConfig {
	c := defaults.ToMonitorConfig()
	if m.StaleLimitMs != nil {
		c = c.WithStaleLimit(time.Duration(*m.StaleLimitMs) * time.Millisecond)
	}
	if m.PollIntervalMs != nil {
		c = c.WithPollInterval(time.Duration(*m.PollIntervalMs) * time.Millisecond)
	}
	if m.Scte35 != nil {
		c = c.WithScte35(*m.Scte35)
	}
	if m.TargetDurationTolerance != nil {
		c.TargetDurationTolerance = *m.TargetDurationTolerance
	}
	if m.MseqGapThreshold != nil {
		c.MseqGapThreshold = *m.MseqGapThreshold
	}
	if m.VariantSyncDriftThreshold != nil {
		c.VariantSyncDriftThreshold = *m.VariantSyncDriftThreshold
	}
	if m.VariantFailureThreshold != nil {
		c.VariantFailureThreshold = *m.VariantFailureThreshold
	}
	if m.SegmentDurationAnomalyRatio != nil {
		c.SegmentDurationAnomalyRatio = *m.SegmentDurationAnomalyRatio
	}
	return c
}

// ToStreamItems builds the StreamItems for this monitor, assigning
// stream_{n} (1-based) to any entry with a blank ID.
func (m MonitorDef) ToStreamItems() []hlsstate.StreamItem {
	items := make([]hlsstate.StreamItem, len(m.Streams))
	for i, s := range m.Streams {
		id := s.ID
		if id == "" {
			id = fmt.Sprintf("stream_%d", i+1)
		}
		items[i] = hlsstate.StreamItem{ID: id, URL: s.URL}
	}
	return items
}

// Load reads an AppConfig from configPath (TOML) with viper, falling back
// to built-in defaults for anything the file doesn't set, then validates it.
func Load(configPath string) (*AppConfig, error) {
	v := viper.New()
	setAppDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("hlsmonitor")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/hlsmonitor")
	}

	v.SetEnvPrefix("HLSMONITOR")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func setAppDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "0.0.0.0:8080")
	v.SetDefault("server.log_format", "pretty")

	d := DefaultDefaultsConfig()
	v.SetDefault("defaults.stale_limit_ms", d.StaleLimitMs)
	v.SetDefault("defaults.scte35", d.Scte35)
	v.SetDefault("defaults.error_limit", d.ErrorLimit)
	v.SetDefault("defaults.event_limit", d.EventLimit)
}

// Validate checks the configuration for the same mistakes the reference
// config loader rejects: malformed webhook/stream URLs, empty or duplicate
// monitor IDs, monitors with no streams, duplicate stream URLs within a
// monitor, and an unrecognized log format. Returns the first error found.
func (c *AppConfig) Validate() error {
	for i, wh := range c.Webhook {
		if _, err := url.Parse(wh.URL); err != nil || wh.URL == "" {
			return fmt.Errorf("invalid webhook URL at index %d: %q", i, wh.URL)
		}
	}

	seenIDs := make(map[string]bool, len(c.Monitor))
	for _, m := range c.Monitor {
		if m.ID == "" {
			return errors.New("monitor ID must not be empty")
		}
		if seenIDs[m.ID] {
			return fmt.Errorf("duplicate monitor ID: %s", m.ID)
		}
		seenIDs[m.ID] = true

		if len(m.Streams) == 0 {
			return fmt.Errorf("monitor %q has no streams", m.ID)
		}

		seenURLs := make(map[string]bool, len(m.Streams))
		for j, s := range m.Streams {
			parsed, err := url.Parse(s.URL)
			if err != nil {
				return fmt.Errorf("invalid stream URL in monitor %q at index %d: %q (%w)", m.ID, j, s.URL, err)
			}
			if parsed.Scheme != "http" && parsed.Scheme != "https" {
				return fmt.Errorf("stream URL must use http or https in monitor %q: %s", m.ID, s.URL)
			}
			if seenURLs[s.URL] {
				return fmt.Errorf("duplicate stream URLs in monitor %q", m.ID)
			}
			seenURLs[s.URL] = true
		}
	}

	switch c.Server.LogFormat {
	case "pretty", "json":
	default:
		return fmt.Errorf("invalid log_format %q: must be 'pretty' or 'json'", c.Server.LogFormat)
	}

	return nil
}
