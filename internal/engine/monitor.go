package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/agleyzer/hlsmonitor/internal/checks"
	"github.com/agleyzer/hlsmonitor/internal/config"
	"github.com/agleyzer/hlsmonitor/internal/event"
	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/loader"
	"github.com/agleyzer/hlsmonitor/internal/metrics"
	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
	"github.com/agleyzer/hlsmonitor/internal/parser"
)

// Monitor is the top-level aggregate described in spec §3: a set of
// monitored streams, a lifecycle state machine, and the per-stream state
// the poll loop accumulates across polls.
type Monitor struct {
	id        string
	alias     string
	cfg       config.MonitorConfig
	createdAt time.Time

	mu             sync.RWMutex
	state          hlsstate.MonitorState
	streams        []hlsstate.StreamItem
	streamData     map[string]*streamState
	lastPoll       time.Time
	manifestErrors map[string]uint64
	stopRequested  chan struct{}

	ld               loader.Loader
	perVariantChecks []checks.Check
	streamChecks     []checks.StreamCheck
	notifier         *notificationQueue
	logger           *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New builds an Idle Monitor for alias/cfg over items. Stream IDs left blank
// are assigned a random one.
func New(alias string, cfg config.MonitorConfig, items []hlsstate.StreamItem, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	assigned := make([]hlsstate.StreamItem, len(items))
	copy(assigned, items)
	for i := range assigned {
		if assigned[i].ID == "" {
			assigned[i].ID = uuid.NewString()
		}
	}

	return &Monitor{
		id:               uuid.NewString(),
		alias:            alias,
		cfg:              cfg,
		createdAt:        time.Now().UTC(),
		state:            hlsstate.Idle,
		streams:          assigned,
		streamData:       make(map[string]*streamState),
		manifestErrors:   make(map[string]uint64),
		ld:               loader.New(loader.Config{RequestTimeout: cfg.RequestTimeout, MaxRetries: cfg.MaxRetries, RetryBackoff: cfg.RetryBackoff}),
		perVariantChecks: checks.DefaultChecks(cfg),
		streamChecks:     checks.DefaultStreamChecks(cfg),
		notifier:         newNotificationQueue(),
		logger:           logger,
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithLoader overrides the loader New built, for tests that need a fake
// Loader instead of a real HTTP client.
func (m *Monitor) WithLoader(ld loader.Loader) *Monitor {
	m.ld = ld
	return m
}

func (m *Monitor) ID() string               { return m.id }
func (m *Monitor) Alias() string            { return m.alias }
func (m *Monitor) CreatedAt() time.Time     { return m.createdAt }
func (m *Monitor) Config() config.MonitorConfig { return m.cfg }

func (m *Monitor) State() hlsstate.MonitorState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Monitor) LastChecked() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastPoll
}

// Streams returns a copy of the monitor's configured stream list.
func (m *Monitor) Streams() []hlsstate.StreamItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]hlsstate.StreamItem, len(m.streams))
	copy(out, m.streams)
	return out
}

// AddStreams appends items to the monitor, assigning IDs where blank.
func (m *Monitor) AddStreams(items []hlsstate.StreamItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		m.streams = append(m.streams, item)
	}
}

// RemoveStream drops streamID from the monitor and its accumulated state.
// Reports whether it was present.
func (m *Monitor) RemoveStream(streamID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.streams {
		if s.ID == streamID {
			m.streams = append(m.streams[:i], m.streams[i+1:]...)
			delete(m.streamData, streamID)
			delete(m.manifestErrors, streamID)
			return true
		}
	}
	return false
}

// Errors returns every stream's errors merged, newest-first.
func (m *Monitor) Errors() []monitorerr.MonitorError {
	var all []monitorerr.MonitorError
	for _, ss := range m.streamStates() {
		all = append(all, ss.Errors()...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	return all
}

// ClearErrors empties every stream's error ring. Idempotent.
func (m *Monitor) ClearErrors() {
	for _, ss := range m.streamStates() {
		ss.ClearErrors()
	}
}

// Events returns every stream's events merged, newest-first.
func (m *Monitor) Events() []event.MonitorEvent {
	var all []event.MonitorEvent
	for _, ss := range m.streamStates() {
		all = append(all, ss.Events()...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	return all
}

// StreamStatus returns a read-only snapshot of every configured stream,
// including ones never successfully fetched yet.
func (m *Monitor) StreamStatus() []hlsstate.StreamStatus {
	items := m.Streams()
	out := make([]hlsstate.StreamStatus, 0, len(items))
	for _, item := range items {
		if ss := m.lookupStreamState(item.ID); ss != nil {
			out = append(out, ss.Status())
			continue
		}
		out = append(out, hlsstate.StreamStatus{StreamID: item.ID, StreamURL: item.URL})
	}
	return out
}

// Notifications returns the channel the webhook dispatcher should consume
// errors and events from.
func (m *Monitor) Notifications() <-chan Notification {
	return m.notifier.C()
}

// Start transitions Idle/Stopped -> Active and spawns the polling task. A
// no-op returning nil if already Active.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state == hlsstate.Active {
		m.mu.Unlock()
		return nil
	}
	if !m.state.CanTransitionTo(hlsstate.Active) {
		s := m.state
		m.mu.Unlock()
		return fmt.Errorf("monitor %s: cannot start from state %s", m.id, s)
	}
	m.state = hlsstate.Active
	m.stopRequested = make(chan struct{}, 1)
	m.mu.Unlock()
	metrics.ActiveMonitors.Inc()

	pollCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		m.pollLoop(pollCtx)
	}()
	return nil
}

// Stop requests a transition to Stopping; the poll loop observes this at the
// top of its next iteration and moves to Stopped. A no-op if not Active.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state != hlsstate.Active {
		m.mu.Unlock()
		return
	}
	m.state = hlsstate.Stopping
	wake := m.stopRequested
	m.mu.Unlock()

	if wake != nil {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

func (m *Monitor) pollLoop(ctx context.Context) {
	for {
		m.mu.Lock()
		if m.state == hlsstate.Stopping {
			m.state = hlsstate.Stopped
			m.mu.Unlock()
			metrics.ActiveMonitors.Dec()
			return
		}
		wake := m.stopRequested
		m.mu.Unlock()

		m.pollAllStreams(ctx)

		interval := m.cfg.PollInterval + m.jitter()
		if interval < time.Millisecond {
			interval = time.Millisecond
		}

		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.state = hlsstate.Stopped
			m.mu.Unlock()
			metrics.ActiveMonitors.Dec()
			return
		case <-wake:
			// Loop back to observe Stopping immediately instead of waiting
			// out the rest of the interval.
		case <-time.After(interval):
		}
	}
}

// PollOnce runs a single synchronous pass over every stream and returns the
// errors it produced, for the one-shot validate mode (§6).
func (m *Monitor) PollOnce(ctx context.Context) []monitorerr.MonitorError {
	return m.pollAllStreams(ctx)
}

func (m *Monitor) jitter() time.Duration {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	span := float64(m.cfg.PollInterval) / 7
	return time.Duration((m.rng.Float64()*2 - 1) * span)
}

func (m *Monitor) pollAllStreams(ctx context.Context) []monitorerr.MonitorError {
	items := m.Streams()
	var all []monitorerr.MonitorError
	for _, item := range items {
		all = append(all, m.pollStream(ctx, item)...)
	}
	m.mu.Lock()
	m.lastPoll = time.Now().UTC()
	m.mu.Unlock()
	return all
}

func (m *Monitor) streamStates() []*streamState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*streamState, 0, len(m.streamData))
	for _, ss := range m.streamData {
		out = append(out, ss)
	}
	return out
}

func (m *Monitor) lookupStreamState(id string) *streamState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.streamData[id]
}

func (m *Monitor) getOrCreateStreamState(item hlsstate.StreamItem) *streamState {
	m.mu.Lock()
	defer m.mu.Unlock()
	ss, ok := m.streamData[item.ID]
	if !ok {
		ss = newStreamState(item, m.cfg.ErrorLimit, m.cfg.EventLimit)
		m.streamData[item.ID] = ss
	}
	return ss
}

// recordError pushes e into ss's ring, forwards it on the notification
// queue, and bumps the monitor's manifest-error counter for ManifestRetrieval
// errors (§4.5 "Error recording").
func (m *Monitor) recordError(ss *streamState, e monitorerr.MonitorError) {
	ss.mu.Lock()
	ss.errors.Push(e)
	ss.mu.Unlock()

	if e.ErrorType == monitorerr.ManifestRetrieval {
		m.mu.Lock()
		m.manifestErrors[e.StreamID]++
		m.mu.Unlock()
	}
	metrics.ErrorsTotal.WithLabelValues(m.id, string(e.ErrorType)).Inc()
	m.notifier.Notify(errorNotification(m.id, e))
}

func (m *Monitor) recordEvent(ss *streamState, ev event.MonitorEvent) {
	ss.mu.Lock()
	ss.events.Push(ev)
	ss.mu.Unlock()
	metrics.EventsTotal.WithLabelValues(m.id, string(ev.Kind)).Inc()
	m.notifier.Notify(eventNotification(m.id, ev))
}

// touchFetch updates lastFetch unconditionally and lastContentChange only
// when contentChanged, preserving I3 (last_content_change <= last_fetch).
func (m *Monitor) touchFetch(ss *streamState, contentChanged bool) {
	now := time.Now().UTC()
	ss.mu.Lock()
	ss.lastFetch = now
	if contentChanged {
		ss.lastContentChange = now
	}
	ss.mu.Unlock()
}

type fetchResult struct {
	target   parser.Target
	manifest loader.Manifest
	err      error
}

// fetchVariants fetches every target concurrently, bounded by
// MaxConcurrentFetches, and returns results in input order regardless of
// completion order (§4.5 step 5, §9 "Concurrency within a poll").
func (m *Monitor) fetchVariants(ctx context.Context, targets []parser.Target) []fetchResult {
	maxGoroutines := m.cfg.MaxConcurrentFetches
	if maxGoroutines <= 0 {
		maxGoroutines = 1
	}

	results := make([]fetchResult, len(targets))
	p := pool.New().WithMaxGoroutines(maxGoroutines)
	for i, t := range targets {
		i, t := i, t
		p.Go(func() {
			manifest, err := m.ld.Load(ctx, t.URL)
			results[i] = fetchResult{target: t, manifest: manifest, err: err}
		})
	}
	p.Wait()
	return results
}

// pollStream runs the per-poll sequence of §4.5 against one stream.
func (m *Monitor) pollStream(ctx context.Context, item hlsstate.StreamItem) []monitorerr.MonitorError {
	ss := m.getOrCreateStreamState(item)
	var produced []monitorerr.MonitorError

	start := time.Now()
	defer func() {
		metrics.PollsTotal.WithLabelValues(m.id, item.ID).Inc()
		metrics.PollDuration.WithLabelValues(m.id).Observe(time.Since(start).Seconds())
	}()

	manifest, err := m.ld.Load(ctx, item.URL)
	if err != nil {
		var le *loader.LoadError
		if errors.As(err, &le) && le.IsLastTry {
			e := monitorerr.New(monitorerr.ManifestRetrieval, "", "", le.Error(), item.URL, item.ID)
			if le.StatusCode != nil {
				e = e.WithStatusCode(*le.StatusCode)
			}
			produced = append(produced, e)
			m.recordError(ss, e)
		} else {
			m.logger.Debug("transient manifest fetch failure", "stream_id", item.ID, "url", item.URL, "error", err)
		}
		m.touchFetch(ss, false)
		return produced
	}

	isMaster, targets, perr := parser.ParseTop(manifest.Body, item.URL)
	if perr != nil {
		e := monitorerr.New(monitorerr.ManifestRetrieval, "", "", perr.Error(), item.URL, item.ID)
		produced = append(produced, e)
		m.recordError(ss, e)
		m.touchFetch(ss, false)
		return produced
	}
	if !isMaster {
		// A bare media playlist without EXT-X-STREAM-INF produces no
		// variants; this is not itself an error (§4.5 step 2).
		m.touchFetch(ss, false)
		return produced
	}

	ss.mu.Lock()
	for _, t := range targets {
		ss.knownVariants[t.Key] = t.MediaType
	}
	ss.mu.Unlock()

	results := m.fetchVariants(ctx, targets)

	contentChanged := false
	for _, r := range results {
		if r.err != nil {
			ss.mu.Lock()
			ss.variantFailures[r.target.Key]++
			ss.mu.Unlock()

			var le *loader.LoadError
			e := monitorerr.New(monitorerr.ManifestRetrieval, r.target.MediaType, r.target.Key, r.err.Error(), item.URL, item.ID)
			if errors.As(r.err, &le) && le.StatusCode != nil {
				e = e.WithStatusCode(*le.StatusCode)
			}
			produced = append(produced, e)
			m.recordError(ss, e)
			continue
		}

		snap, perr := parser.ParseMedia(r.manifest.Body, r.target.URL)
		if perr != nil {
			ss.mu.Lock()
			ss.variantFailures[r.target.Key]++
			ss.mu.Unlock()

			e := monitorerr.New(monitorerr.ManifestRetrieval, r.target.MediaType, r.target.Key, perr.Error(), item.URL, item.ID)
			produced = append(produced, e)
			m.recordError(ss, e)
			continue
		}

		ss.mu.Lock()
		ss.variantFailures[r.target.Key] = 0
		prev, hadPrev := ss.variants[r.target.Key]
		ss.mu.Unlock()

		if hadPrev {
			if snap.MediaSequence != prev.MediaSequence || len(snap.Segments) != len(prev.SegmentURIs) {
				contentChanged = true
			}

			checkCtx := hlsstate.CheckContext{StreamURL: item.URL, StreamID: item.ID, MediaType: r.target.MediaType, VariantKey: r.target.Key}
			for _, c := range m.perVariantChecks {
				for _, e := range c.Check(prev, snap, checkCtx) {
					produced = append(produced, e)
					m.recordError(ss, e)
				}
			}

			m.emitVariantEvents(ss, item, r.target, prev, snap)
		} else {
			contentChanged = true
		}

		newInCueOut := latchCueOut(prev, snap)
		ss.mu.Lock()
		ss.variants[r.target.Key] = hlsstate.NewVariantState(r.target.MediaType, snap, newInCueOut)
		ss.mu.Unlock()
	}

	variantsSnap := ss.variantSnapshot()
	failuresSnap := ss.variantFailureSnapshot()
	streamCtx := hlsstate.StreamCheckContext{StreamURL: item.URL, StreamID: item.ID, VariantFailures: failuresSnap}
	for _, sc := range m.streamChecks {
		for _, e := range sc.Check(variantsSnap, streamCtx) {
			produced = append(produced, e)
			m.recordError(ss, e)
		}
	}

	m.touchFetch(ss, contentChanged)

	ss.mu.RLock()
	elapsed := time.Now().UTC().Sub(ss.lastContentChange)
	wasStale := ss.wasStale
	ss.mu.RUnlock()

	if e := checks.CheckStale(elapsed, m.cfg.StaleLimit, item.URL, item.ID); e != nil {
		produced = append(produced, *e)
		m.recordError(ss, *e)
		ss.mu.Lock()
		ss.wasStale = true
		ss.mu.Unlock()
	} else if wasStale && contentChanged {
		ss.mu.Lock()
		ss.wasStale = false
		ss.mu.Unlock()
		m.recordEvent(ss, event.New(event.StaleRecovered, item.ID, "", "", "content resumed changing after a stale period"))
	}

	return produced
}

// emitVariantEvents raises the per-poll events of §4.5 step 6.
func (m *Monitor) emitVariantEvents(ss *streamState, item hlsstate.StreamItem, target parser.Target, prev hlsstate.VariantState, snap hlsstate.PlaylistSnapshot) {
	if snap.MediaSequence != prev.MediaSequence {
		m.recordEvent(ss, event.New(event.ManifestUpdated, item.ID, target.MediaType, target.Key,
			fmt.Sprintf("mseq %d -> %d", prev.MediaSequence, snap.MediaSequence)))
	}
	if !prev.InCueOut && snap.HasCueOut {
		m.recordEvent(ss, event.New(event.CueOutStarted, item.ID, target.MediaType, target.Key,
			fmt.Sprintf("CUE-OUT at mseq(%d)", snap.MediaSequence)))
	}
	if prev.InCueOut && snap.HasCueIn {
		m.recordEvent(ss, event.New(event.CueInReturned, item.ID, target.MediaType, target.Key,
			fmt.Sprintf("CUE-IN at mseq(%d)", snap.MediaSequence)))
	}
	if snap.HasCueOutCont {
		m.recordEvent(ss, event.New(event.CueOutCont, item.ID, target.MediaType, target.Key,
			fmt.Sprintf("CUE-OUT-CONT at mseq(%d)", snap.MediaSequence)))
	}
	if snap.DiscontinuitySequence != prev.DiscontinuitySequence {
		m.recordEvent(ss, event.New(event.DiscontinuityChange, item.ID, target.MediaType, target.Key,
			fmt.Sprintf("dseq %d -> %d", prev.DiscontinuitySequence, snap.DiscontinuitySequence)))
	}
}

// latchCueOut applies the SCTE35 latch update from §4.3: the new in_cue_out
// is derived from the fresh snapshot's markers, falling back to the
// previous latch only when the snapshot carries neither.
func latchCueOut(prev hlsstate.VariantState, curr hlsstate.PlaylistSnapshot) bool {
	switch {
	case curr.HasCueOut:
		return !curr.HasCueIn
	case curr.HasCueIn:
		return false
	default:
		return prev.InCueOut
	}
}
