// Package event defines monitor lifecycle/ad-break events and their ring buffer.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the closed set of event kinds the engine emits between polls.
type Kind string

const (
	CueOutStarted       Kind = "CueOutStarted"
	CueInReturned       Kind = "CueInReturned"
	CueOutCont          Kind = "CueOutCont"
	DiscontinuityChange Kind = "DiscontinuityChanged"
	ManifestUpdated     Kind = "ManifestUpdated"
	StaleRecovered      Kind = "StaleRecovered"
)

// Tag returns the kind's short label, e.g. CueOutStarted -> "CUE-OUT"; kinds
// outside the known set return their own name.
func (k Kind) Tag() string {
	switch k {
	case CueOutStarted:
		return "CUE-OUT"
	case CueInReturned:
		return "CUE-IN"
	case CueOutCont:
		return "CUE-OUT-CONT"
	case DiscontinuityChange:
		return "DISC"
	case ManifestUpdated:
		return "UPDATE"
	case StaleRecovered:
		return "RECOVERED"
	default:
		return string(k)
	}
}

// MonitorEvent is a single observation recorded against a stream/variant.
type MonitorEvent struct {
	ID         string
	Timestamp  time.Time
	Kind       Kind
	StreamID   string
	MediaType  string
	VariantKey string
	Details    string
}

// New builds a MonitorEvent with a fresh ID and the current timestamp.
func New(kind Kind, streamID, mediaType, variantKey, details string) MonitorEvent {
	return MonitorEvent{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Kind:       kind,
		StreamID:   streamID,
		MediaType:  mediaType,
		VariantKey: variantKey,
		Details:    details,
	}
}

// Ring is a fixed-capacity chronological store of MonitorEvents. Once full,
// pushing a new entry evicts the oldest.
type Ring struct {
	capacity int
	entries  []MonitorEvent
}

// NewRing creates a Ring with the given capacity, clamped to a minimum of 1.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{capacity: capacity, entries: make([]MonitorEvent, 0, capacity)}
}

// Push appends an entry, evicting the oldest if the ring is at capacity.
func (r *Ring) Push(e MonitorEvent) {
	if len(r.entries) >= r.capacity {
		r.entries = append(r.entries[1:], e)
		return
	}
	r.entries = append(r.entries, e)
}

// List returns entries newest-first.
func (r *Ring) List() []MonitorEvent {
	out := make([]MonitorEvent, len(r.entries))
	for i, e := range r.entries {
		out[len(r.entries)-1-i] = e
	}
	return out
}

// ListChronological returns entries oldest-first, i.e. insertion order.
func (r *Ring) ListChronological() []MonitorEvent {
	out := make([]MonitorEvent, len(r.entries))
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
