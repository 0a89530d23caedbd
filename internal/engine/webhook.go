package engine

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/agleyzer/hlsmonitor/internal/metrics"
)

// Webhook is one outbound subscription: a URL, an optional HMAC secret, and
// an optional filter over notification types (empty = accept all), per §4.6.
type Webhook struct {
	URL        string
	Secret     string
	EventTypes []NotificationType
}

func (w Webhook) accepts(t NotificationType) bool {
	if len(w.EventTypes) == 0 {
		return true
	}
	for _, et := range w.EventTypes {
		if et == t {
			return true
		}
	}
	return false
}

// DispatcherConfig controls the webhook dispatcher's delivery behaviour.
type DispatcherConfig struct {
	MaxRetries      int
	RetryBackoff    time.Duration
	DeliveryTimeout time.Duration
	UserAgent       string
}

// DefaultDispatcherConfig matches §4.6/§7's defaults: 500ms base backoff
// doubling per attempt, no dead-letter queue.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		MaxRetries:      3,
		RetryBackoff:    500 * time.Millisecond,
		DeliveryTimeout: 10 * time.Second,
		UserAgent:       "hls-monitor/1.0",
	}
}

// Dispatcher is the webhook dispatcher (C6): it consumes notifications from
// one or more monitors and POSTs signed JSON to every subscribed webhook.
type Dispatcher struct {
	webhooks []Webhook
	cfg      DispatcherConfig
	client   *http.Client
	logger   *slog.Logger
}

// NewDispatcher builds a Dispatcher posting to webhooks.
func NewDispatcher(webhooks []Webhook, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "hls-monitor/1.0"
	}
	return &Dispatcher{
		webhooks: webhooks,
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.DeliveryTimeout},
		logger:   logger,
	}
}

// Run consumes notifications until ch is closed or ctx is done. Intended to
// be run as the monitoring engine's one additional task (§5).
func (d *Dispatcher) Run(ctx context.Context, ch <-chan Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			d.deliver(ctx, n)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	body, err := json.Marshal(n.Payload())
	if err != nil {
		d.logger.Warn("failed to serialize webhook payload, skipping", "type", n.Type, "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, wh := range d.webhooks {
		if !wh.accepts(n.Type) {
			continue
		}
		wg.Add(1)
		go func(wh Webhook) {
			defer wg.Done()
			d.post(ctx, wh, n.Type, body)
		}(wh)
	}
	wg.Wait()
}

// post delivers body to wh with the retry budget of §4.6: one attempt plus up
// to MaxRetries retries, RetryBackoff*2^(retry-1) backoff (500ms base by
// default), 4xx other than 429 fails fast.
func (d *Dispatcher) post(ctx context.Context, wh Webhook, notifType NotificationType, body []byte) {
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := d.cfg.RetryBackoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(body))
		if err != nil {
			d.logger.Warn("failed to build webhook request", "url", wh.URL, "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", d.cfg.UserAgent)
		if wh.Secret != "" {
			req.Header.Set("X-HLS-Signature-256", "sha256="+signBody(body, wh.Secret))
		}

		resp, err := d.client.Do(req)
		if err != nil {
			if attempt == d.cfg.MaxRetries {
				d.logger.Warn("webhook delivery failed permanently", "url", wh.URL, "type", notifType, "error", err)
				metrics.WebhookDeliveriesTotal.WithLabelValues("retry_exhausted").Inc()
			}
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			metrics.WebhookDeliveriesTotal.WithLabelValues("success").Inc()
			return
		}

		fatal := resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode >= 400 && resp.StatusCode < 500
		if fatal {
			d.logger.Warn("webhook rejected delivery, not retrying", "url", wh.URL, "type", notifType, "status", resp.StatusCode)
			metrics.WebhookDeliveriesTotal.WithLabelValues("fatal").Inc()
			return
		}
		if attempt == d.cfg.MaxRetries {
			d.logger.Warn("webhook delivery failed permanently", "url", wh.URL, "type", notifType, "status", resp.StatusCode)
			metrics.WebhookDeliveriesTotal.WithLabelValues("retry_exhausted").Inc()
		}
	}
}

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
