// Package integration exercises the monitoring engine, REST façade, and
// webhook dispatcher together against a synthetic HLS origin, the way a
// deployed hlsmonitor process would see them.
package integration

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agleyzer/hlsmonitor/internal/api"
	"github.com/agleyzer/hlsmonitor/internal/config"
	"github.com/agleyzer/hlsmonitor/internal/engine"
	"github.com/agleyzer/hlsmonitor/internal/fixture"
	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
)

// Harness wires a fixture.Origin behind an httptest.Server, a Monitor
// pointed at it, and the REST façade in front of that Monitor.
type Harness struct {
	t      *testing.T
	Origin *fixture.Origin
	origin *httptest.Server
	api    *httptest.Server
	reg    *api.Registry

	logger  *slog.Logger
	monitor *engine.Monitor
	cancel  context.CancelFunc
}

// twoVariantOrigin builds an Origin with two bandwidth-ranked variants, each
// with a 20-segment loop, suitable as a baseline for most scenarios.
func twoVariantOrigin() *fixture.Origin {
	segs := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = "seg" + itoa(i) + ".ts"
		}
		return out
	}
	return fixture.New([]fixture.VariantSpec{
		{Bandwidth: 1_200_000, Resolution: "640x360", TargetDuration: 6, SegmentSeconds: 6, SegmentURIs: segs(20)},
		{Bandwidth: 2_400_000, Resolution: "1280x720", TargetDuration: 6, SegmentSeconds: 6, SegmentURIs: segs(20)},
	}, 6)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

// NewHarness starts a synthetic origin and the REST façade over an empty
// registry. No Monitor is created here and cfg is not used; StartMonitor
// registers and starts one.
func NewHarness(t *testing.T, cfg config.MonitorConfig) *Harness {
	t.Helper()

	origin := twoVariantOrigin()
	originSrv := fixture.NewTestServer(origin)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

	reg := api.NewRegistry(logger, nil)
	apiSrv := httptest.NewServer(api.Router(reg))

	h := &Harness{t: t, Origin: origin, origin: originSrv, api: apiSrv, reg: reg, logger: logger}
	t.Cleanup(h.Close)
	return h
}

// APIBaseURL returns the REST façade's base URL for this harness.
func (h *Harness) APIBaseURL() string { return h.api.URL }

// OriginMasterURL returns the synthetic origin's master playlist URL.
func (h *Harness) OriginMasterURL() string { return h.origin.URL + "/master.m3u8" }

// StartMonitor registers and starts a Monitor against the synthetic origin.
func (h *Harness) StartMonitor(cfg config.MonitorConfig) *engine.Monitor {
	h.t.Helper()

	items := []hlsstate.StreamItem{{ID: "origin", URL: h.OriginMasterURL()}}
	m := engine.New("integration", cfg, items, h.logger)
	h.reg.Add(m)
	h.monitor = m

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	if err := m.Start(ctx); err != nil {
		h.t.Fatalf("starting monitor: %v", err)
	}
	return m
}

// WaitForCondition polls cond until it returns true or timeout elapses.
func (h *Harness) WaitForCondition(cond func() bool, timeout time.Duration, description string) {
	h.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	h.t.Fatalf("timeout waiting for condition: %s", description)
}

// Close stops the monitor and both test servers.
func (h *Harness) Close() {
	if h.monitor != nil {
		h.monitor.Stop()
	}
	if h.cancel != nil {
		h.cancel()
	}
	h.api.Close()
	h.origin.Close()
}
