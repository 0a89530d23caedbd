// Package monitorerr defines the closed set of validation error kinds the
// monitoring engine can raise, and the bounded ring buffer streams keep them in.
package monitorerr

import (
	"time"

	"github.com/google/uuid"
)

// Type is the closed set of validation error kinds a check can produce.
type Type string

const (
	ManifestRetrieval      Type = "ManifestRetrieval"
	MediaSequence          Type = "MediaSequence"
	PlaylistSize           Type = "PlaylistSize"
	PlaylistContent        Type = "PlaylistContent"
	SegmentContinuity      Type = "SegmentContinuity"
	DiscontinuitySequence  Type = "DiscontinuitySequence"
	StaleManifest          Type = "StaleManifest"
	Scte35Violation        Type = "Scte35Violation"
	TargetDurationExceeded Type = "TargetDurationExceeded"
	GapDetected            Type = "GapDetected"
	MediaSequenceGap       Type = "MediaSequenceGap"
	PlaylistTypeViolation  Type = "PlaylistTypeViolation"
	SegmentDurationAnomaly Type = "SegmentDurationAnomaly"
	VersionViolation       Type = "VersionViolation"
	ProgramDateTimeJump    Type = "ProgramDateTimeJump"
	DateRangeViolation     Type = "DateRangeViolation"
	VariantSyncDrift       Type = "VariantSyncDrift"
	VariantUnavailable     Type = "VariantUnavailable"
)

// String returns the human-readable label, e.g. StaleManifest ->
// "Stale Manifest", used wherever a Type is formatted with %s or %v. Webhook
// payloads and metric labels carry the raw constant value instead.
func (t Type) String() string {
	switch t {
	case ManifestRetrieval:
		return "Manifest Retrieval"
	case MediaSequence:
		return "Media Sequence"
	case PlaylistSize:
		return "Playlist Size"
	case PlaylistContent:
		return "Playlist Content"
	case SegmentContinuity:
		return "Segment Continuity"
	case DiscontinuitySequence:
		return "Discontinuity Sequence"
	case StaleManifest:
		return "Stale Manifest"
	case Scte35Violation:
		return "SCTE-35 Violation"
	case TargetDurationExceeded:
		return "Target Duration Exceeded"
	case GapDetected:
		return "Gap Detected"
	case MediaSequenceGap:
		return "Media Sequence Gap"
	case PlaylistTypeViolation:
		return "Playlist Type Violation"
	case SegmentDurationAnomaly:
		return "Segment Duration Anomaly"
	case VersionViolation:
		return "Version Violation"
	case ProgramDateTimeJump:
		return "Program Date Time Jump"
	case DateRangeViolation:
		return "Date Range Violation"
	case VariantSyncDrift:
		return "Variant Sync Drift"
	case VariantUnavailable:
		return "Variant Unavailable"
	default:
		return string(t)
	}
}

// MonitorError is a single validation failure recorded against a stream.
type MonitorError struct {
	ID         string
	Timestamp  time.Time
	ErrorType  Type
	MediaType  string
	Variant    string
	Details    string
	StreamURL  string
	StreamID   string
	StatusCode *int
}

// New builds a MonitorError with a fresh ID and the current timestamp.
func New(errType Type, mediaType, variant, details, streamURL, streamID string) MonitorError {
	return MonitorError{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		ErrorType: errType,
		MediaType: mediaType,
		Variant:   variant,
		Details:   details,
		StreamURL: streamURL,
		StreamID:  streamID,
	}
}

// WithStatusCode attaches an HTTP status code to a ManifestRetrieval error.
func (e MonitorError) WithStatusCode(code int) MonitorError {
	e.StatusCode = &code
	return e
}

// Ring is a fixed-capacity chronological store of MonitorErrors. Once full,
// pushing a new entry evicts the oldest.
type Ring struct {
	capacity int
	entries  []MonitorError
}

// NewRing creates a Ring with the given capacity. A non-positive capacity is
// treated as 1, since an unbounded ring defeats the memory bound it exists for.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{capacity: capacity, entries: make([]MonitorError, 0, capacity)}
}

// Push appends an entry, evicting the oldest if the ring is at capacity.
func (r *Ring) Push(e MonitorError) {
	if len(r.entries) >= r.capacity {
		r.entries = append(r.entries[1:], e)
		return
	}
	r.entries = append(r.entries, e)
}

// List returns entries newest-first.
func (r *Ring) List() []MonitorError {
	out := make([]MonitorError, len(r.entries))
	for i, e := range r.entries {
		out[len(r.entries)-1-i] = e
	}
	return out
}

// ListChronological returns entries oldest-first, i.e. insertion order.
func (r *Ring) ListChronological() []MonitorError {
	out := make([]MonitorError, len(r.entries))
	copy(out, r.entries)
	return out
}

// Clear empties the ring.
func (r *Ring) Clear() {
	r.entries = r.entries[:0]
}

// Len returns the number of entries currently stored.
func (r *Ring) Len() int {
	return len(r.entries)
}

// IsEmpty reports whether the ring holds no entries.
func (r *Ring) IsEmpty() bool {
	return len(r.entries) == 0
}
