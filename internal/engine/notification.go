package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/agleyzer/hlsmonitor/internal/event"
	"github.com/agleyzer/hlsmonitor/internal/monitorerr"
)

// NotificationType is the closed set of webhook payload "type" values (§6).
type NotificationType string

const (
	NotifyError               NotificationType = "error"
	NotifyCueOutStarted       NotificationType = "cue_out_started"
	NotifyCueInReturned       NotificationType = "cue_in_returned"
	NotifyCueOutCont          NotificationType = "cue_out_cont"
	NotifyDiscontinuityChange NotificationType = "discontinuity_changed"
	NotifyManifestUpdated     NotificationType = "manifest_updated"
	NotifyStaleRecovered      NotificationType = "stale_recovered"
)

// eventKindToNotification maps a MonitorEvent kind to its wire notification type.
func eventKindToNotification(k event.Kind) NotificationType {
	switch k {
	case event.CueOutStarted:
		return NotifyCueOutStarted
	case event.CueInReturned:
		return NotifyCueInReturned
	case event.CueOutCont:
		return NotifyCueOutCont
	case event.DiscontinuityChange:
		return NotifyDiscontinuityChange
	case event.ManifestUpdated:
		return NotifyManifestUpdated
	case event.StaleRecovered:
		return NotifyStaleRecovered
	default:
		return NotificationType(k)
	}
}

// Notification is one outbound item: either a MonitorError or a MonitorEvent,
// tagged with the monitor/stream it was raised against.
type Notification struct {
	Type      NotificationType
	MonitorID string
	StreamID  string
	Error     *monitorerr.MonitorError
	Event     *event.MonitorEvent
}

func errorNotification(monitorID string, e monitorerr.MonitorError) Notification {
	return Notification{Type: NotifyError, MonitorID: monitorID, StreamID: e.StreamID, Error: &e}
}

func eventNotification(monitorID string, e event.MonitorEvent) Notification {
	return Notification{Type: eventKindToNotification(e.Kind), MonitorID: monitorID, StreamID: e.StreamID, Event: &e}
}

// WebhookPayload is the JSON body POSTed to subscribers (§6).
type WebhookPayload struct {
	Version   int            `json:"version"`
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Type      string         `json:"type"`
	MonitorID string         `json:"monitor_id"`
	StreamID  string         `json:"stream_id"`
	Data      map[string]any `json:"data"`
}

// Payload renders n as the §6 wire payload.
func (n Notification) Payload() WebhookPayload {
	p := WebhookPayload{
		Version:   1,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Type:      string(n.Type),
		MonitorID: n.MonitorID,
		StreamID:  n.StreamID,
	}

	switch {
	case n.Error != nil:
		var statusCode any
		if n.Error.StatusCode != nil {
			statusCode = *n.Error.StatusCode
		}
		p.Data = map[string]any{
			"error_type":  string(n.Error.ErrorType),
			"media_type":  n.Error.MediaType,
			"variant":     n.Error.Variant,
			"details":     n.Error.Details,
			"url":         n.Error.StreamURL,
			"status_code": statusCode,
		}
	case n.Event != nil:
		p.Data = map[string]any{
			"kind":        string(n.Event.Kind),
			"media_type":  n.Event.MediaType,
			"variant_key": n.Event.VariantKey,
			"details":     n.Event.Details,
		}
	}

	return p
}

// notificationQueue is an unbounded multi-producer single-consumer queue
// (§9 "Notifications"). Go channels are bounded, so producers never block on
// a slow dispatcher: an internal goroutine pumps a growable slice buffer
// into the consumer-facing channel, only sending when the consumer is ready.
type notificationQueue struct {
	in     chan Notification
	out    chan Notification
	closed chan struct{}
}

func newNotificationQueue() *notificationQueue {
	q := &notificationQueue{
		in:     make(chan Notification),
		out:    make(chan Notification),
		closed: make(chan struct{}),
	}
	go q.pump()
	return q
}

func (q *notificationQueue) pump() {
	defer close(q.out)
	var buf []Notification
	for {
		if len(buf) == 0 {
			v, ok := <-q.in
			if !ok {
				return
			}
			buf = append(buf, v)
			continue
		}
		select {
		case v, ok := <-q.in:
			if !ok {
				for _, item := range buf {
					q.out <- item
				}
				return
			}
			buf = append(buf, v)
		case q.out <- buf[0]:
			buf = buf[1:]
		}
	}
}

// Notify enqueues n. Never blocks the caller beyond a channel handoff to the
// pump goroutine.
func (q *notificationQueue) Notify(n Notification) {
	select {
	case q.in <- n:
	case <-q.closed:
	}
}

// Close signals the pump to drain and stop once all producers are done.
// Safe to call once.
func (q *notificationQueue) Close() {
	close(q.closed)
	close(q.in)
}

// C returns the consumer-facing channel the webhook dispatcher reads from.
func (q *notificationQueue) C() <-chan Notification {
	return q.out
}
