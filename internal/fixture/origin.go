// Package fixture implements a tiny live HLS origin server used by the
// integration tests: it serves an evolving master playlist and per-variant
// media playlists, advancing its sliding window on a timer or on demand, so
// the monitoring engine can be pointed at something that behaves like a real
// encoder without needing a network fixture.
package fixture

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// VariantSpec describes one variant stream's static properties: its
// bandwidth/resolution for the master playlist, and the full segment
// sequence its sliding window is drawn from.
type VariantSpec struct {
	Bandwidth      int
	Resolution     string
	TargetDuration int
	SegmentURIs    []string
	SegmentSeconds float64
}

// Origin is a multi-variant live HLS origin: a master playlist plus one
// sliding-window media playlist per variant.
type Origin struct {
	windowSize int
	variants   []VariantSpec
	playlists  []*window

	mu      sync.RWMutex
	advance chan struct{}
}

// New builds an Origin over variants, each windowed to windowSize segments.
func New(variants []VariantSpec, windowSize int) *Origin {
	playlists := make([]*window, len(variants))
	for i, v := range variants {
		w := windowSize
		if w > len(v.SegmentURIs) {
			w = len(v.SegmentURIs)
		}
		playlists[i] = &window{segments: v.SegmentURIs, size: w, targetDuration: v.TargetDuration, segmentSeconds: v.SegmentSeconds}
	}
	return &Origin{variants: variants, windowSize: windowSize, playlists: playlists, advance: make(chan struct{}, 1)}
}

// Master renders the top-level master playlist listing every variant.
func (o *Origin) Master() string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:6\n")
	for i, v := range o.variants {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d", v.Bandwidth)
		if v.Resolution != "" {
			fmt.Fprintf(&b, ",RESOLUTION=%s", v.Resolution)
		}
		b.WriteByte('\n')
		fmt.Fprintf(&b, "variant_%d.m3u8\n", i)
	}
	return b.String()
}

// Variant renders variant i's current media playlist window.
func (o *Origin) Variant(i int) (string, error) {
	if i < 0 || i >= len(o.playlists) {
		return "", fmt.Errorf("variant index %d out of range", i)
	}
	return o.playlists[i].render(), nil
}

// Advance moves every variant's sliding window forward by one segment.
func (o *Origin) Advance() {
	for _, w := range o.playlists {
		w.advance()
	}
}

// Freeze sets whether one variant's window is held in place; a frozen window
// ignores Advance until Freeze(variant, false) is called. Used to drive a
// monitor into stale-manifest detection.
func (o *Origin) Freeze(variant int, frozen bool) {
	if variant < 0 || variant >= len(o.playlists) {
		return
	}
	o.playlists[variant].setFrozen(frozen)
}

// InjectMediaSequenceRegression forces variant i's next render to report a
// media sequence lower than its last one, simulating an encoder restart.
func (o *Origin) InjectMediaSequenceRegression(variant int) {
	if variant < 0 || variant >= len(o.playlists) {
		return
	}
	o.playlists[variant].regressSequence()
}

// RunAutoAdvance advances every variant once per interval until ctx is
// cancelled.
func (o *Origin) RunAutoAdvance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Advance()
		}
	}
}

// window is one variant's sliding-window media playlist state.
type window struct {
	mu             sync.RWMutex
	segments       []string
	size           int
	position       int
	mediaSequence  uint64
	targetDuration int
	segmentSeconds float64
	frozen         bool
}

func (w *window) render() string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:6\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", w.targetDuration)
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", w.mediaSequence)

	total := len(w.segments)
	for i := 0; i < w.size; i++ {
		idx := (w.position + i) % total
		fmt.Fprintf(&b, "#EXTINF:%.3f,\n", w.segmentSeconds)
		b.WriteString(w.segments[idx])
		b.WriteByte('\n')
	}
	return b.String()
}

func (w *window) advance() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.frozen {
		return
	}
	w.position = (w.position + 1) % len(w.segments)
	w.mediaSequence++
}

func (w *window) setFrozen(frozen bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frozen = frozen
}

func (w *window) regressSequence() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mediaSequence > 0 {
		w.mediaSequence--
	}
}
