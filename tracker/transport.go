package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shopdemo/api/metrics"
	"shopdemo/api/models"
)

// DefaultBaseURL is where the storefront's collector posts events.
const DefaultBaseURL = "http://analytics-service:3002/analytics"

// Message is one outbound event. Body is marshalled as the JSON request body.
type Message struct {
	Kind models.EventKind
	Body any
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Emitter accepts messages without blocking the caller.
type Emitter interface {
	Emit(msg Message) bool
}

// HTTPSender posts messages to <BaseURL>/<kind>.
type HTTPSender struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPSender(baseURL string, client *http.Client) *HTTPSender {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSender{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg.Body)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", msg.Kind, err)
	}

	url := s.BaseURL + "/" + string(msg.Kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", msg.Kind, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s event: %w", msg.Kind, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("analytics tracking failed: %s returned %d", url, resp.StatusCode)
	}
	return nil
}

type DispatcherConfig struct {
	// QueueSize bounds the number of messages waiting for a worker.
	QueueSize int
	// Workers is the number of concurrent sends.
	Workers int
	// SendTimeout caps a single delivery attempt.
	SendTimeout time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	return c
}

// Dispatcher is a bounded outbound queue drained by a fixed set of workers.
// Delivery is at most once: a message that does not fit in the queue, or
// whose send fails, is logged and discarded.
type Dispatcher struct {
	sender      Sender
	logger      *zap.Logger
	sendTimeout time.Duration

	queue  chan Message
	group  *errgroup.Group
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(sender Sender, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	d := &Dispatcher{
		sender:      sender,
		logger:      logger,
		sendTimeout: cfg.SendTimeout,
		queue:       make(chan Message, cfg.QueueSize),
		group:       group,
		cancel:      cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		group.Go(func() error {
			d.work(ctx)
			return nil
		})
	}
	return d
}

// Emit queues msg and reports whether it was accepted. It never blocks.
func (d *Dispatcher) Emit(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(msg, "dispatcher closed")
		return false
	}
	select {
	case d.queue <- msg:
		return true
	default:
		d.drop(msg, "queue full")
		return false
	}
}

// Close stops accepting messages and waits for the queue to drain. If ctx
// expires first, in-flight sends are cancelled, the rest of the queue is
// dropped and ctx's error is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- d.group.Wait() }()

	select {
	case err := <-done:
		d.cancel()
		return err
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	for msg := range d.queue {
		if ctx.Err() != nil {
			d.drop(msg, "shutting down")
			continue
		}
		d.deliver(ctx, msg)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	if err := d.sender.Send(sendCtx, msg); err != nil {
		metrics.TrackerMessages.WithLabelValues(string(msg.Kind), metrics.OutcomeFailed).Inc()
		d.logger.Warn("Error sending analytics", zap.String("kind", string(msg.Kind)), zap.Error(err))
		return
	}
	metrics.TrackerMessages.WithLabelValues(string(msg.Kind), metrics.OutcomeSent).Inc()
}

func (d *Dispatcher) drop(msg Message, reason string) {
	metrics.TrackerMessages.WithLabelValues(string(msg.Kind), metrics.OutcomeDropped).Inc()
	d.logger.Warn("Dropped analytics event", zap.String("kind", string(msg.Kind)), zap.String("reason", reason))
}
