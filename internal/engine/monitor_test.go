package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agleyzer/hlsmonitor/internal/config"
	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/loader"
)

// sequenceLoader serves a configured sequence of bodies per URL, repeating
// the last entry once exhausted, the way a live origin keeps serving its
// latest snapshot.
type sequenceLoader struct {
	mu    sync.Mutex
	bodes map[string][]string
	idx   map[string]int
	fail  map[string]int // remaining forced failures per URL
}

func newSequenceLoader() *sequenceLoader {
	return &sequenceLoader{bodes: map[string][]string{}, idx: map[string]int{}, fail: map[string]int{}}
}

func (s *sequenceLoader) set(url string, bodies ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodes[url] = bodies
}

func (s *sequenceLoader) Load(_ context.Context, url string) (loader.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := s.fail[url]; n > 0 {
		s.fail[url] = n - 1
		return loader.Manifest{}, &loader.LoadError{Kind: loader.KindNetwork, URL: url, IsLastTry: true}
	}

	seq := s.bodes[url]
	if len(seq) == 0 {
		return loader.Manifest{}, fmt.Errorf("sequenceLoader: no body configured for %s", url)
	}
	i := s.idx[url]
	if i >= len(seq) {
		i = len(seq) - 1
	}
	body := seq[i]
	if s.idx[url] < len(seq)-1 {
		s.idx[url]++
	}
	return loader.Manifest{URL: url, Body: []byte(body)}, nil
}

const masterBody = "#EXTM3U\n" +
	"#EXT-X-STREAM-INF:BANDWIDTH=1212000\n" +
	"level_0.m3u8\n" +
	"#EXT-X-STREAM-INF:BANDWIDTH=2424000\n" +
	"level_1.m3u8\n"

func media(mseq uint64, uris []string, extraTags ...string) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:10\n")
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", mseq)
	for _, tag := range extraTags {
		b.WriteString(tag)
		b.WriteString("\n")
	}
	for _, u := range uris {
		b.WriteString("#EXTINF:8.0,\n")
		b.WriteString(u)
		b.WriteString("\n")
	}
	return b.String()
}

func testMonitor(t *testing.T, ld *sequenceLoader, cfg config.MonitorConfig) *Monitor {
	t.Helper()
	items := []hlsstate.StreamItem{{ID: "stream_1", URL: "https://mock/master.m3u8"}}
	m := New("test", cfg, items, nil)
	m.WithLoader(ld)
	ld.set(items[0].URL, masterBody)
	return m
}

// S1 — segment continuity violation: the window freezes for one poll while
// mseq still advances, so the new first segment doesn't match where the old
// window predicted it would land.
func TestSegmentContinuityViolation(t *testing.T) {
	cfg := config.DefaultMonitorConfig()
	ld := newSequenceLoader()
	m := testMonitor(t, ld, cfg)

	ld.set("https://mock/level_0.m3u8",
		media(0, []string{"a0", "a1"}),
		media(1, []string{"a1", "a2"}),
		media(2, []string{"a1", "a2"}),
		media(3, []string{"a2", "a3"}),
	)
	ld.set("https://mock/level_1.m3u8", media(0, []string{"b0", "b1"}))

	ctx := context.Background()
	var all []string
	for i := 0; i < 4; i++ {
		for _, e := range m.PollOnce(ctx) {
			all = append(all, e.Details)
		}
	}

	found := false
	for _, d := range all {
		if strings.Contains(d, "Expected first item-uri in mseq(2) to be: 'a2'. Got: 'a1'") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected segment continuity error, got: %v", all)
	}
}

// S3 — media-sequence regression.
func TestMediaSequenceRegression(t *testing.T) {
	cfg := config.DefaultMonitorConfig()
	ld := newSequenceLoader()
	m := testMonitor(t, ld, cfg)

	ld.set("https://mock/level_0.m3u8",
		media(0, []string{"a0"}),
		media(1, []string{"a1"}),
		media(3, []string{"a3"}),
		media(2, []string{"a2"}),
	)
	ld.set("https://mock/level_1.m3u8", media(0, []string{"b0"}))

	ctx := context.Background()
	var last []string
	for i := 0; i < 4; i++ {
		errs := m.PollOnce(ctx)
		last = nil
		for _, e := range errs {
			last = append(last, e.Details)
		}
	}

	found := false
	for _, d := range last {
		if strings.Contains(d, "Expected mediaSequence >= 3. Got: 2") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected mediaSequence regression error on last poll, got: %v", last)
	}
}

// CUE-OUT/CUE-IN event pair, SCTE35 enabled: introduce CUE-OUT, hold it, then
// CUE-IN, and expect exactly one start/return event pair with no violations.
func TestCueOutCueInEventPair(t *testing.T) {
	cfg := config.DefaultMonitorConfig()
	cfg.Scte35Enabled = true
	ld := newSequenceLoader()
	m := testMonitor(t, ld, cfg)

	ld.set("https://mock/level_0.m3u8",
		media(0, []string{"a0"}),
		media(1, []string{"a1"}, "#EXT-X-CUE-OUT:DURATION=30"),
		media(2, []string{"a2"}, "#EXT-X-CUE-OUT-CONT:ElapsedTime=8.0"),
		media(3, []string{"a3"}, "#EXT-X-CUE-IN"),
	)
	ld.set("https://mock/level_1.m3u8",
		media(0, []string{"b0"}),
		media(1, []string{"b1"}),
		media(2, []string{"b2"}),
		media(3, []string{"b3"}),
	)

	ctx := context.Background()
	var scteErrs []string
	for i := 0; i < 4; i++ {
		for _, e := range m.PollOnce(ctx) {
			if string(e.ErrorType) == "Scte35Violation" {
				scteErrs = append(scteErrs, e.Details)
			}
		}
	}
	if len(scteErrs) != 0 {
		t.Fatalf("expected no SCTE35 violations, got: %v", scteErrs)
	}

	var starts, returns int
	for _, ev := range m.Events() {
		if ev.VariantKey != "1212000" {
			continue
		}
		switch ev.Kind {
		case "CueOutStarted":
			starts++
		case "CueInReturned":
			returns++
		}
	}
	if starts != 1 || returns != 1 {
		t.Fatalf("starts=%d returns=%d, want 1 and 1", starts, returns)
	}
}

// Stale then recovered: the origin freezes past stale_limit, then advances.
func TestStaleThenRecovered(t *testing.T) {
	cfg := config.DefaultMonitorConfig()
	cfg.StaleLimit = 30 * time.Millisecond
	ld := newSequenceLoader()
	m := testMonitor(t, ld, cfg)

	frozen := media(0, []string{"a0"})
	ld.set("https://mock/level_0.m3u8", frozen, frozen, media(1, []string{"a1"}))
	ld.set("https://mock/level_1.m3u8", frozen, frozen, media(1, []string{"b1"}))

	ctx := context.Background()
	m.PollOnce(ctx) // establishes baseline content-change time

	time.Sleep(40 * time.Millisecond)
	staleErrs := m.PollOnce(ctx)
	foundStale := false
	for _, e := range staleErrs {
		if e.ErrorType == "StaleManifest" {
			foundStale = true
		}
	}
	if !foundStale {
		t.Fatalf("expected StaleManifest error while frozen, got: %v", staleErrs)
	}

	m.PollOnce(ctx) // content changes now

	recovered := 0
	for _, ev := range m.Events() {
		if ev.Kind == "StaleRecovered" {
			recovered++
		}
	}
	if recovered != 1 {
		t.Fatalf("recovered events = %d, want 1", recovered)
	}
}

func TestLifecycleIdempotence(t *testing.T) {
	cfg := config.DefaultMonitorConfig()
	cfg.PollInterval = 10 * time.Millisecond
	ld := newSequenceLoader()
	m := testMonitor(t, ld, cfg)
	ld.set("https://mock/level_0.m3u8", media(0, []string{"a0"}))
	ld.set("https://mock/level_1.m3u8", media(0, []string{"b0"}))

	if m.State() != hlsstate.Idle {
		t.Fatalf("initial state = %s, want Idle", m.State())
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("second Start should be a no-op, got: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for m.State() != hlsstate.Active && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if m.State() != hlsstate.Active {
		t.Fatalf("state = %s, want Active", m.State())
	}

	m.Stop()
	m.Stop() // second Stop finds a non-Active monitor: a no-op that must not panic

	deadline = time.Now().Add(time.Second)
	for m.State() != hlsstate.Stopped && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if m.State() != hlsstate.Stopped {
		t.Fatalf("state = %s, want Stopped", m.State())
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("restart from Stopped: %v", err)
	}
	m.Stop()
}

func TestAddRemoveStream(t *testing.T) {
	cfg := config.DefaultMonitorConfig()
	ld := newSequenceLoader()
	m := testMonitor(t, ld, cfg)

	m.AddStreams([]hlsstate.StreamItem{{URL: "https://mock/other.m3u8"}})
	if len(m.Streams()) != 2 {
		t.Fatalf("streams = %d, want 2", len(m.Streams()))
	}

	id := m.Streams()[1].ID
	if !m.RemoveStream(id) {
		t.Fatalf("RemoveStream(%s) = false, want true", id)
	}
	if m.RemoveStream(id) {
		t.Fatalf("second RemoveStream(%s) = true, want false", id)
	}
	if len(m.Streams()) != 1 {
		t.Fatalf("streams = %d, want 1", len(m.Streams()))
	}
}
