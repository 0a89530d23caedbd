// Package hlsstate holds the monitor's data model: the lifecycle state
// machine, per-variant state carried across polls, and the immutable
// per-poll playlist snapshot that checks compare against it.
package hlsstate

import "time"

// MonitorState is a lifecycle state of a Monitor.
type MonitorState string

const (
	Idle     MonitorState = "Idle"
	Active   MonitorState = "Active"
	Stopping MonitorState = "Stopping"
	Stopped  MonitorState = "Stopped"
)

// CanTransitionTo reports whether moving from s to next is a legal edge in
// the lifecycle graph: Idle->Active, Active->Stopping, Stopping->Stopped,
// Stopped->Active. No other transition, including self-transitions, is legal.
func (s MonitorState) CanTransitionTo(next MonitorState) bool {
	switch s {
	case Idle:
		return next == Active
	case Active:
		return next == Stopping
	case Stopping:
		return next == Stopped
	case Stopped:
		return next == Active
	default:
		return false
	}
}

// StreamItem identifies one monitored stream.
type StreamItem struct {
	ID  string
	URL string
}

// DateRangeSnapshot mirrors an EXT-X-DATERANGE tag observed on a segment.
type DateRangeSnapshot struct {
	ID        string
	Class     string
	StartDate time.Time
	EndDate   *time.Time
	Duration  *float64
	EndOnNext bool
}

// SegmentSnapshot is one segment of a freshly parsed media playlist.
type SegmentSnapshot struct {
	URI              string
	Duration         float64
	Discontinuity    bool
	CueOut           bool
	CueIn            bool
	CueOutCont       *string
	Gap              bool
	ProgramDateTime  *time.Time
	DateRange        *DateRangeSnapshot
}

// PlaylistSnapshot is the immutable result of parsing one media playlist fetch.
type PlaylistSnapshot struct {
	MediaSequence         uint64
	DiscontinuitySequence uint64
	Segments              []SegmentSnapshot
	TargetDuration        float64
	PlaylistType          string // "EVENT", "VOD", or "" when absent
	Version               *int

	CueOutCount   int
	CueInCount    int
	HasCueOut     bool
	HasCueIn      bool
	HasCueOutCont bool
	HasGaps       bool
}

// SegmentInfo is the trimmed per-segment record a VariantState keeps from the
// previous poll, enough for SegmentContinuity and Discontinuity to compare
// against without retaining the full snapshot.
type SegmentInfo struct {
	URI           string
	Discontinuity bool
}

// VariantState is the per-variant state carried across polls.
type VariantState struct {
	MediaType             string
	MediaSequence         uint64
	SegmentURIs           []string
	DiscontinuitySequence uint64
	NextIsDiscontinuity   bool
	PrevSegments          []SegmentInfo
	TotalDuration         float64

	CueOutCount int
	CueInCount  int
	InCueOut    bool
	CueOutDur   *float64
	Version     *int
}

// NewVariantState reduces a freshly parsed snapshot into the VariantState the
// next poll will compare against, per the engine's replace-after-check step.
func NewVariantState(mediaType string, snap PlaylistSnapshot, newInCueOut bool) VariantState {
	uris := make([]string, len(snap.Segments))
	prevSegs := make([]SegmentInfo, len(snap.Segments))
	var total float64
	for i, seg := range snap.Segments {
		uris[i] = seg.URI
		prevSegs[i] = SegmentInfo{URI: seg.URI, Discontinuity: seg.Discontinuity}
		total += seg.Duration
	}

	var nextIsDisc bool
	if len(snap.Segments) > 0 {
		nextIsDisc = snap.Segments[0].Discontinuity
	}
	if len(snap.Segments) > 1 && snap.Segments[1].Discontinuity {
		nextIsDisc = true
	}

	return VariantState{
		MediaType:             mediaType,
		MediaSequence:         snap.MediaSequence,
		SegmentURIs:           uris,
		DiscontinuitySequence: snap.DiscontinuitySequence,
		NextIsDiscontinuity:   nextIsDisc,
		PrevSegments:          prevSegs,
		TotalDuration:         total,
		CueOutCount:           boolToCount(snap.HasCueOut),
		CueInCount:            boolToCount(snap.HasCueIn),
		InCueOut:              newInCueOut,
		Version:               snap.Version,
	}
}

func boolToCount(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CheckContext carries per-stream identity into a PerVariantCheck.
type CheckContext struct {
	StreamURL  string
	StreamID   string
	MediaType  string
	VariantKey string
}

// StreamCheckContext carries per-stream identity and failure counters into a
// StreamCheck, which reasons across all of a stream's variants at once.
type StreamCheckContext struct {
	StreamURL       string
	StreamID        string
	VariantFailures map[string]uint32
}

// VariantStatus is the read-only façade view of one variant's current state.
type VariantStatus struct {
	Key                   string
	MediaType             string
	MediaSequence         uint64
	DiscontinuitySequence uint64
	SegmentCount          int
	InCueOut              bool
	ConsecutiveFailures   uint32
}

// StreamStatus is the read-only façade view of one stream's current state.
type StreamStatus struct {
	StreamID         string
	StreamURL        string
	LastFetch        time.Time
	LastContentChange time.Time
	WasStale         bool
	Variants         []VariantStatus
}
