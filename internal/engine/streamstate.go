// Package engine is the monitor engine (C5): it owns per-stream state,
// schedules polls, orchestrates the loader/parser/check battery
// concurrently, drives the monitor lifecycle, and fans out notifications
// to the webhook dispatcher (C6).
//
// The per-stream guard below is grounded the same way the teacher's
// Raft FSM (internal/cluster/fsm.go) guarded ClusterState: a single
// mutex-protected struct that is the sole writer's responsibility, with
// readers (the façade, metrics) only ever seeing a deep copy taken under
// a read lock. There is no replicated log here — persistence is
// process-local per spec §1 — so the struct is a plain guarded value
// rather than a raft.FSM.
package engine

import (
	"sync"
	"time"

	"github.com/agleyzer/hlsmonitor/internal/event"
	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
)

// streamState is the per-stream mutable aggregate described in spec §3. The
// poll loop is its only writer apart from ClearErrors, which the REST façade
// calls; Status/Errors/Events are read-only snapshots
// safe to call from another goroutine (the REST façade, metrics).
type streamState struct {
	mu sync.RWMutex

	item hlsstate.StreamItem

	variants        map[string]hlsstate.VariantState
	knownVariants   map[string]string // variant key -> media type, monotonically grows (I4)
	variantFailures map[string]uint32

	lastFetch         time.Time
	lastContentChange time.Time
	wasStale          bool

	errors *monitorerr.Ring
	events *event.Ring
}

func newStreamState(item hlsstate.StreamItem, errorLimit, eventLimit int) *streamState {
	return &streamState{
		item:            item,
		variants:        make(map[string]hlsstate.VariantState),
		knownVariants:   make(map[string]string),
		variantFailures: make(map[string]uint32),
		errors:          monitorerr.NewRing(errorLimit),
		events:          event.NewRing(eventLimit),
	}
}

// Status returns a read-only snapshot of the stream and all its known
// variants, safe to hand to a façade caller.
func (s *streamState) Status() hlsstate.StreamStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := hlsstate.StreamStatus{
		StreamID:          s.item.ID,
		StreamURL:         s.item.URL,
		LastFetch:         s.lastFetch,
		LastContentChange: s.lastContentChange,
		WasStale:          s.wasStale,
	}

	for key, mediaType := range s.knownVariants {
		v, ok := s.variants[key]
		status := hlsstate.VariantStatus{
			Key:                 key,
			MediaType:           mediaType,
			ConsecutiveFailures: s.variantFailures[key],
		}
		if ok {
			status.MediaSequence = v.MediaSequence
			status.DiscontinuitySequence = v.DiscontinuitySequence
			status.SegmentCount = len(v.SegmentURIs)
			status.InCueOut = v.InCueOut
		}
		out.Variants = append(out.Variants, status)
	}

	return out
}

// Errors returns the stream's current errors, newest-first (I2).
func (s *streamState) Errors() []monitorerr.MonitorError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errors.List()
}

// Events returns the stream's current events, newest-first (I2).
func (s *streamState) Events() []event.MonitorEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events.List()
}

// ClearErrors empties the stream's error ring. Idempotent.
func (s *streamState) ClearErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors.Clear()
}

// variantFailureSnapshot copies the current per-variant failure counters,
// used to build a StreamCheckContext without holding the lock during check
// execution.
func (s *streamState) variantFailureSnapshot() map[string]uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]uint32, len(s.variantFailures))
	for k, v := range s.variantFailures {
		out[k] = v
	}
	return out
}

// variantSnapshot copies the current variant-state map for StreamChecks.
func (s *streamState) variantSnapshot() map[string]hlsstate.VariantState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]hlsstate.VariantState, len(s.variants))
	for k, v := range s.variants {
		out[k] = v
	}
	return out
}
