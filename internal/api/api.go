// Package api implements the REST façade over the monitor engine: a chi
// router exposing monitor CRUD, lifecycle control, and error/event/status
// inspection, plus the process's /health and /metrics endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/agleyzer/hlsmonitor/internal/config"
	"github.com/agleyzer/hlsmonitor/internal/engine"
	"github.com/agleyzer/hlsmonitor/internal/hlsstate"
	"github.com/agleyzer/hlsmonitor/internal/metrics"
)

// Registry owns every live Monitor the façade manages, keyed by monitor ID.
type Registry struct {
	mu       sync.RWMutex
	monitors map[string]*engine.Monitor
	logger   *slog.Logger
	onCreate func(*engine.Monitor)
}

// NewRegistry builds an empty Registry. onCreate, if non-nil, is called with
// every newly created Monitor so the caller can wire its Notifications()
// channel into a shared webhook dispatcher.
func NewRegistry(logger *slog.Logger, onCreate func(*engine.Monitor)) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{monitors: make(map[string]*engine.Monitor), logger: logger, onCreate: onCreate}
}

// Router builds the chi router for the REST façade, mounted under /api/v1,
// plus /health and /metrics at the root.
func Router(reg *Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/monitors", func(r chi.Router) {
			r.Post("/", reg.handleCreate)
			r.Get("/", reg.handleList)
			r.Delete("/", reg.handleDeleteAll)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", reg.handleGet)
				r.Delete("/", reg.handleDelete)
				r.Post("/start", reg.handleStart)
				r.Post("/stop", reg.handleStop)

				r.Get("/streams", reg.handleGetStreams)
				r.Put("/streams", reg.handleAddStreams)
				r.Delete("/streams/{streamID}", reg.handleRemoveStream)

				r.Get("/errors", reg.handleGetErrors)
				r.Delete("/errors", reg.handleClearErrors)

				r.Get("/status", reg.handleGetStatus)
				r.Get("/events", reg.handleGetEvents)
			})
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// apiError is the façade's uniform error response: {"error": kind, "message": ...}.
type apiError struct {
	status  int
	kind    string
	message string
}

func (e *apiError) Error() string { return e.message }

func errNotFound(msg string) *apiError   { return &apiError{http.StatusNotFound, "not_found", msg} }
func errBadRequest(msg string) *apiError { return &apiError{http.StatusBadRequest, "bad_request", msg} }
func errConflict(msg string) *apiError   { return &apiError{http.StatusConflict, "conflict", msg} }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, err *apiError) {
	writeJSON(w, err.status, map[string]string{"error": err.kind, "message": err.message})
}

// streamInput accepts either a bare URL string or a {id, url} object, the
// way the reference API does, so simple clients can POST a flat URL list.
type streamInput struct {
	ID  string
	URL string
}

func (s *streamInput) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		s.URL = asString
		return nil
	}
	var asObject struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &asObject); err != nil {
		return err
	}
	s.ID, s.URL = asObject.ID, asObject.URL
	return nil
}

func isValidStreamURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func toStreamItems(inputs []streamInput, startIndex int) []hlsstate.StreamItem {
	items := make([]hlsstate.StreamItem, len(inputs))
	for i, s := range inputs {
		id := s.ID
		if id == "" {
			id = idForIndex(startIndex + i)
		}
		items[i] = hlsstate.StreamItem{ID: id, URL: s.URL}
	}
	return items
}

func idForIndex(i int) string {
	return "stream_" + itoa(i+1)
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

func validateStreamInputs(inputs []streamInput) *apiError {
	if len(inputs) == 0 {
		return errBadRequest("streams array must not be empty")
	}
	seen := make(map[string]bool, len(inputs))
	for _, s := range inputs {
		if !isValidStreamURL(s.URL) {
			return errBadRequest("invalid stream URL: " + s.URL)
		}
		if seen[s.URL] {
			return errBadRequest("duplicate stream URLs are not allowed within the same monitor")
		}
		seen[s.URL] = true
	}
	return nil
}

type createMonitorRequest struct {
	Streams                     []streamInput `json:"streams"`
	StaleLimitMs                *int64        `json:"stale_limit_ms"`
	PollIntervalMs              *int64        `json:"poll_interval_ms"`
	Scte35                      bool          `json:"scte35"`
	TargetDurationTolerance     *float64      `json:"target_duration_tolerance"`
	MseqGapThreshold            *uint64       `json:"mseq_gap_threshold"`
	VariantSyncDriftThreshold   *uint64       `json:"variant_sync_drift_threshold"`
	VariantFailureThreshold     *uint32       `json:"variant_failure_threshold"`
	SegmentDurationAnomalyRatio *float64      `json:"segment_duration_anomaly_ratio"`
	MaxConcurrentFetches        *int          `json:"max_concurrent_fetches"`
}

func (req createMonitorRequest) toMonitorConfig() config.MonitorConfig {
	c := config.DefaultMonitorConfig().WithScte35(req.Scte35)
	if req.StaleLimitMs != nil {
		c = c.WithStaleLimit(time.Duration(*req.StaleLimitMs) * time.Millisecond)
	}
	if req.PollIntervalMs != nil {
		c = c.WithPollInterval(time.Duration(*req.PollIntervalMs) * time.Millisecond)
	}
	if req.TargetDurationTolerance != nil {
		c.TargetDurationTolerance = *req.TargetDurationTolerance
	}
	if req.MseqGapThreshold != nil {
		c.MseqGapThreshold = *req.MseqGapThreshold
	}
	if req.VariantSyncDriftThreshold != nil {
		c.VariantSyncDriftThreshold = *req.VariantSyncDriftThreshold
	}
	if req.VariantFailureThreshold != nil {
		c.VariantFailureThreshold = *req.VariantFailureThreshold
	}
	if req.SegmentDurationAnomalyRatio != nil {
		c.SegmentDurationAnomalyRatio = *req.SegmentDurationAnomalyRatio
	}
	if req.MaxConcurrentFetches != nil {
		c.MaxConcurrentFetches = *req.MaxConcurrentFetches
	}
	return c
}

type createMonitorResponse struct {
	ID             string              `json:"id"`
	Streams        []hlsstate.StreamItem `json:"streams"`
	StaleLimitMs   int64               `json:"stale_limit_ms"`
	PollIntervalMs int64               `json:"poll_interval_ms"`
	Scte35         bool                `json:"scte35"`
}

// handleCreate is POST /api/v1/monitors.
func (reg *Registry) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createMonitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, errBadRequest("invalid JSON body"))
		return
	}
	if apiErr := validateStreamInputs(req.Streams); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	cfg := req.toMonitorConfig()
	items := toStreamItems(req.Streams, 0)

	m := engine.New(uuid.NewString(), cfg, items, reg.logger)
	if reg.onCreate != nil {
		reg.onCreate(m)
	}

	reg.mu.Lock()
	reg.monitors[m.ID()] = m
	reg.mu.Unlock()

	writeJSON(w, http.StatusCreated, createMonitorResponse{
		ID:             m.ID(),
		Streams:        items,
		StaleLimitMs:   cfg.StaleLimit.Milliseconds(),
		PollIntervalMs: cfg.PollInterval.Milliseconds(),
		Scte35:         cfg.Scte35Enabled,
	})
}

type monitorSummary struct {
	ID          string `json:"id"`
	State       string `json:"state"`
	CreatedAt   string `json:"created_at"`
	StreamCount int    `json:"stream_count"`
	ErrorCount  int    `json:"error_count"`
}

// handleList is GET /api/v1/monitors.
func (reg *Registry) handleList(w http.ResponseWriter, r *http.Request) {
	monitors := reg.snapshot()
	summaries := make([]monitorSummary, 0, len(monitors))
	for _, m := range monitors {
		summaries = append(summaries, monitorSummary{
			ID:          m.ID(),
			State:       string(m.State()),
			CreatedAt:   m.CreatedAt().Format(time.RFC3339Nano),
			StreamCount: len(m.Streams()),
			ErrorCount:  len(m.Errors()),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].CreatedAt < summaries[j].CreatedAt })
	writeJSON(w, http.StatusOK, summaries)
}

type monitorDetail struct {
	ID             string                `json:"id"`
	State          string                `json:"state"`
	CreatedAt      string                `json:"created_at"`
	LastChecked    *string               `json:"last_checked"`
	Streams        []hlsstate.StreamItem `json:"streams"`
	StaleLimitMs   int64                 `json:"stale_limit_ms"`
	PollIntervalMs int64                 `json:"poll_interval_ms"`
	Scte35         bool                  `json:"scte35"`
	ErrorCount     int                   `json:"error_count"`
}

// handleGet is GET /api/v1/monitors/{id}.
func (reg *Registry) handleGet(w http.ResponseWriter, r *http.Request) {
	m, apiErr := reg.lookup(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	var lastChecked *string
	if lc := m.LastChecked(); !lc.IsZero() {
		s := lc.Format(time.RFC3339Nano)
		lastChecked = &s
	}

	cfg := m.Config()
	writeJSON(w, http.StatusOK, monitorDetail{
		ID:             m.ID(),
		State:          string(m.State()),
		CreatedAt:      m.CreatedAt().Format(time.RFC3339Nano),
		LastChecked:    lastChecked,
		Streams:        m.Streams(),
		StaleLimitMs:   cfg.StaleLimit.Milliseconds(),
		PollIntervalMs: cfg.PollInterval.Milliseconds(),
		Scte35:         cfg.Scte35Enabled,
		ErrorCount:     len(m.Errors()),
	})
}

// handleDelete is DELETE /api/v1/monitors/{id}.
func (reg *Registry) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	reg.mu.Lock()
	m, ok := reg.monitors[id]
	if ok {
		delete(reg.monitors, id)
	}
	reg.mu.Unlock()

	if !ok {
		writeAPIError(w, errNotFound("monitor "+id+" not found"))
		return
	}
	m.Stop()

	writeJSON(w, http.StatusOK, map[string]string{"message": "monitor stopped and deleted", "id": id})
}

// handleDeleteAll is DELETE /api/v1/monitors.
func (reg *Registry) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	reg.mu.Lock()
	ids := make([]string, 0, len(reg.monitors))
	for id, m := range reg.monitors {
		m.Stop()
		ids = append(ids, id)
	}
	reg.monitors = make(map[string]*engine.Monitor)
	reg.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "all monitors stopped and deleted",
		"deleted_count": len(ids),
		"deleted_ids":  ids,
	})
}

// handleStart is POST /api/v1/monitors/{id}/start.
func (reg *Registry) handleStart(w http.ResponseWriter, r *http.Request) {
	m, apiErr := reg.lookup(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	if err := m.Start(context.Background()); err != nil {
		writeAPIError(w, &apiError{http.StatusInternalServerError, "internal_error", err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "monitor started"})
}

// handleStop is POST /api/v1/monitors/{id}/stop.
func (reg *Registry) handleStop(w http.ResponseWriter, r *http.Request) {
	m, apiErr := reg.lookup(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	m.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"message": "monitor stopped"})
}

// handleGetStreams is GET /api/v1/monitors/{id}/streams.
func (reg *Registry) handleGetStreams(w http.ResponseWriter, r *http.Request) {
	m, apiErr := reg.lookup(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"streams": m.Streams()})
}

type addStreamsRequest struct {
	Streams []streamInput `json:"streams"`
}

// handleAddStreams is PUT /api/v1/monitors/{id}/streams.
func (reg *Registry) handleAddStreams(w http.ResponseWriter, r *http.Request) {
	m, apiErr := reg.lookup(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	var req addStreamsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, errBadRequest("invalid JSON body"))
		return
	}
	if apiErr := validateStreamInputs(req.Streams); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	existing := m.Streams()
	existingURLs := make(map[string]bool, len(existing))
	for _, s := range existing {
		existingURLs[s.URL] = true
	}
	for _, s := range req.Streams {
		if existingURLs[s.URL] {
			writeAPIError(w, errConflict("one or more streams are already being monitored"))
			return
		}
	}

	newItems := toStreamItems(req.Streams, len(existing))
	m.AddStreams(newItems)

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "streams added",
		"streams": m.Streams(),
	})
}

// handleRemoveStream is DELETE /api/v1/monitors/{id}/streams/{streamID}.
func (reg *Registry) handleRemoveStream(w http.ResponseWriter, r *http.Request) {
	m, apiErr := reg.lookup(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	streamID := chi.URLParam(r, "streamID")
	if !m.RemoveStream(streamID) {
		writeAPIError(w, errNotFound("stream "+streamID+" not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "stream removed",
		"streams": m.Streams(),
	})
}

// handleGetErrors is GET /api/v1/monitors/{id}/errors.
func (reg *Registry) handleGetErrors(w http.ResponseWriter, r *http.Request) {
	m, apiErr := reg.lookup(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	var lastChecked *string
	if lc := m.LastChecked(); !lc.IsZero() {
		s := lc.Format(time.RFC3339Nano)
		lastChecked = &s
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"last_checked": lastChecked,
		"state":        string(m.State()),
		"errors":       m.Errors(),
	})
}

// handleClearErrors is DELETE /api/v1/monitors/{id}/errors.
func (reg *Registry) handleClearErrors(w http.ResponseWriter, r *http.Request) {
	m, apiErr := reg.lookup(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	m.ClearErrors()
	writeJSON(w, http.StatusOK, map[string]string{"message": "errors cleared"})
}

// handleGetStatus is GET /api/v1/monitors/{id}/status.
func (reg *Registry) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	m, apiErr := reg.lookup(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"monitor_id": m.ID(),
		"state":      string(m.State()),
		"streams":    m.StreamStatus(),
	})
}

// handleGetEvents is GET /api/v1/monitors/{id}/events.
func (reg *Registry) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	m, apiErr := reg.lookup(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"monitor_id": m.ID(),
		"events":     m.Events(),
	})
}

func (reg *Registry) lookup(r *http.Request) (*engine.Monitor, *apiError) {
	id := chi.URLParam(r, "id")
	reg.mu.RLock()
	m, ok := reg.monitors[id]
	reg.mu.RUnlock()
	if !ok {
		return nil, errNotFound("monitor " + id + " not found")
	}
	return m, nil
}

func (reg *Registry) snapshot() []*engine.Monitor {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*engine.Monitor, 0, len(reg.monitors))
	for _, m := range reg.monitors {
		out = append(out, m)
	}
	return out
}

// Get returns the monitor with id, if the registry holds one.
func (reg *Registry) Get(id string) (*engine.Monitor, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	m, ok := reg.monitors[id]
	return m, ok
}

// Add registers an already-built monitor, e.g. one constructed at startup
// from the TOML config's [[monitor]] entries.
func (reg *Registry) Add(m *engine.Monitor) {
	reg.mu.Lock()
	reg.monitors[m.ID()] = m
	reg.mu.Unlock()
}

// All returns every monitor the registry currently holds.
func (reg *Registry) All() []*engine.Monitor {
	return reg.snapshot()
}
