// Package checks is the composable battery of validation checks the engine
// runs against each freshly parsed playlist snapshot, comparing it with the
// variant's state from the previous poll.
package checks

import (
	"strings"

	"github.com/agleyzer/hlsmonitor/internal/config"
	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
)

// Check compares a variant's previous state with a fresh snapshot and
// returns zero or more errors found.
type Check interface {
	Name() string
	Check(prev hlsstate.VariantState, curr hlsstate.PlaylistSnapshot, ctx hlsstate.CheckContext) []monitorerr.MonitorError
}

// StreamCheck reasons across every variant of a stream at once, for
// conditions no single variant can see on its own (sync drift, availability).
type StreamCheck interface {
	Name() string
	Check(variants map[string]hlsstate.VariantState, ctx hlsstate.StreamCheckContext) []monitorerr.MonitorError
}

// DefaultChecks builds the per-variant check battery for cfg: the five
// always-on structural checks, SCTE-35 when enabled, then the
// threshold/tolerance-driven checks, with ProgramDateTime and DateRange
// appended last when their toggles are set.
func DefaultChecks(cfg config.MonitorConfig) []Check {
	out := []Check{
		MediaSequenceCheck{},
		PlaylistSizeCheck{},
		PlaylistContentCheck{},
		SegmentContinuityCheck{},
		DiscontinuityCheck{},
	}

	if cfg.Scte35Enabled {
		out = append(out, Scte35Check{})
	}

	out = append(out,
		NewTargetDurationCheck(cfg.TargetDurationTolerance),
		GapCheck{},
		NewMseqGapCheck(cfg.MseqGapThreshold),
		PlaylistTypeCheck{},
		NewSegmentDurationAnomalyCheck(cfg.SegmentDurationAnomalyRatio),
		VersionCheck{},
	)

	if cfg.ProgramDateTimeEnabled {
		out = append(out, ProgramDateTimeCheck{})
	}
	if cfg.DateRangeEnabled {
		out = append(out, DateRangeCheck{})
	}

	return out
}

// DefaultStreamChecks builds the cross-variant check battery for cfg.
func DefaultStreamChecks(cfg config.MonitorConfig) []StreamCheck {
	return []StreamCheck{
		NewVariantSyncDriftCheck(cfg.VariantSyncDriftThreshold),
		NewVariantAvailabilityCheck(cfg.VariantFailureThreshold),
	}
}

// normalizeURI strips a trailing query string, so a CDN-appended token
// doesn't register as a content change.
func normalizeURI(uri string) string {
	before, _, _ := strings.Cut(uri, "?")
	return before
}
