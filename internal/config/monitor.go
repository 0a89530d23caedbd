// Package config holds the monitor's per-monitor configuration defaults and
// the outer application configuration loaded from a TOML file.
package config

import "time"

// MonitorConfig is the immutable configuration snapshot a Monitor is built
// with. It never changes for the lifetime of the monitor; reconfiguring
// means creating a new one.
type MonitorConfig struct {
	StaleLimit     time.Duration
	PollInterval   time.Duration
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	ErrorLimit     int
	EventLimit     int

	Scte35Enabled bool

	TargetDurationTolerance   float64
	MseqGapThreshold          uint64
	VariantSyncDriftThreshold uint64
	VariantFailureThreshold   uint32
	SegmentDurationAnomalyRatio float64
	MaxConcurrentFetches      int

	ProgramDateTimeEnabled bool
	DateRangeEnabled       bool
}

// DefaultMonitorConfig returns the configuration every monitor gets unless
// overridden, matching the reference defaults field for field.
func DefaultMonitorConfig() MonitorConfig {
	staleLimit := 6000 * time.Millisecond
	return MonitorConfig{
		StaleLimit:                  staleLimit,
		PollInterval:                staleLimit / 2,
		RequestTimeout:              10 * time.Second,
		MaxRetries:                  3,
		RetryBackoff:                100 * time.Millisecond,
		ErrorLimit:                  100,
		EventLimit:                  200,
		Scte35Enabled:               false,
		TargetDurationTolerance:     0.5,
		MseqGapThreshold:            5,
		VariantSyncDriftThreshold:   3,
		VariantFailureThreshold:     3,
		SegmentDurationAnomalyRatio: 0.5,
		MaxConcurrentFetches:        4,
		ProgramDateTimeEnabled:      false,
		DateRangeEnabled:            false,
	}
}

// WithStaleLimit returns a copy with StaleLimit set to d. If PollInterval is
// still at the default derived from the previous StaleLimit (half of it), it
// is re-derived from the new value; PollInterval is then clamped so it never
// exceeds StaleLimit.
func (c MonitorConfig) WithStaleLimit(d time.Duration) MonitorConfig {
	if c.PollInterval == c.StaleLimit/2 {
		c.PollInterval = d / 2
	}
	c.StaleLimit = d
	if c.PollInterval > c.StaleLimit {
		c.PollInterval = c.StaleLimit
	}
	return c
}

// WithPollInterval returns a copy with PollInterval set to d.
func (c MonitorConfig) WithPollInterval(d time.Duration) MonitorConfig {
	c.PollInterval = d
	return c
}

// WithErrorLimit returns a copy with ErrorLimit set to n.
func (c MonitorConfig) WithErrorLimit(n int) MonitorConfig {
	c.ErrorLimit = n
	return c
}

// WithEventLimit returns a copy with EventLimit set to n.
func (c MonitorConfig) WithEventLimit(n int) MonitorConfig {
	c.EventLimit = n
	return c
}

// WithScte35 returns a copy with Scte35Enabled set to enabled.
func (c MonitorConfig) WithScte35(enabled bool) MonitorConfig {
	c.Scte35Enabled = enabled
	return c
}
