package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crimson-sun/sectriage/internal/model"
)

const (
	defaultBatchSize     = 50
	defaultFlushInterval = 5 * time.Second
	defaultTimeout       = 10 * time.Second
	defaultBackoff       = time.Second
	maxRetries           = 3

	// BatchHeader carries the batch id so receivers can drop replays.
	BatchHeader = "X-Sectriage-Batch"
)

// TierFunc maps an event id to its catalog tier.
type TierFunc func(id int) model.Tier

// Alert is one finding as a receiver sees it.
type Alert struct {
	Timestamp  *time.Time     `json:"timestamp,omitempty"`
	EventID    int            `json:"event_id"`
	EventName  string         `json:"event_name"`
	Tier       string         `json:"tier"`
	Computer   string         `json:"computer"`
	User       string         `json:"user"`
	Score      int            `json:"suspicious_score"`
	HighRisk   bool           `json:"high_risk"`
	Reasons    []string       `json:"reasons"`
	ReasonText string         `json:"reason_text"`
	Raw        map[string]any `json:"raw_data,omitempty"`
}

// Batch is the body of one POST.
type Batch struct {
	ID       string    `json:"batch_id"`
	SentAt   time.Time `json:"sent_at"`
	Count    int       `json:"count"`
	HighRisk int       `json:"high_risk"`
	MaxScore int       `json:"max_score"`
	Alerts   []Alert   `json:"alerts"`
}

// Option configures a webhook Output.
type Option func(*Output)

// WithHeaders sets custom HTTP headers sent with every POST.
func WithHeaders(h map[string]string) Option {
	return func(o *Output) { o.headers = h }
}

// WithBatchSize sets the number of findings accumulated before a flush. Default: 50.
func WithBatchSize(n int) Option {
	return func(o *Output) { o.batchSize = n }
}

// WithFlushInterval sets the maximum time between flushes. Default: 5s.
func WithFlushInterval(d time.Duration) Option {
	return func(o *Output) { o.flushInterval = d }
}

// WithTimeout sets the HTTP client timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(o *Output) { o.client.Timeout = d }
}

// WithBackoff sets the delay before the first retry. It doubles per attempt.
// Default: 1s.
func WithBackoff(d time.Duration) Option {
	return func(o *Output) { o.backoff = d }
}

// WithMinScore forwards only findings scoring at least n. Default: 0 (all).
func WithMinScore(n int) Option {
	return func(o *Output) { o.minScore = n }
}

// WithTier labels each alert with the catalog tier of its event id.
func WithTier(f TierFunc) Option {
	return func(o *Output) { o.tier = f }
}

// WithOnError sets a callback invoked when a timer-triggered flush fails.
// Default: logs a warning via slog.
func WithOnError(f func(error)) Option {
	return func(o *Output) { o.errFunc = f }
}

// Output POSTs batched findings to an HTTP endpoint as a Batch document.
// Findings accumulate until batchSize is reached or flushInterval elapses.
// 5xx responses are retried with exponential backoff under the same batch id.
type Output struct {
	client        *http.Client
	url           string
	headers       map[string]string
	batchSize     int
	flushInterval time.Duration
	backoff       time.Duration
	minScore      int
	tier          TierFunc
	errFunc       func(error)
	mu            sync.Mutex
	pending       []Alert
	timer         *time.Timer
}

// New creates a webhook output targeting the given URL.
func New(url string, opts ...Option) *Output {
	o := &Output{
		client:        &http.Client{Timeout: defaultTimeout},
		url:           url,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		backoff:       defaultBackoff,
		errFunc:       func(err error) { slog.Warn("webhook flush error", "error", err) },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Output) alert(f model.Finding) Alert {
	a := Alert{
		EventID:    f.EventID,
		EventName:  f.EventName,
		Tier:       model.TierNone.String(),
		Computer:   f.Computer,
		User:       f.User,
		Score:      f.Score,
		HighRisk:   f.HighRisk(),
		Reasons:    f.Reasons,
		ReasonText: f.ReasonText(),
		Raw:        f.Raw,
	}
	if !f.Timestamp.IsZero() {
		ts := f.Timestamp
		a.Timestamp = &ts
	}
	if o.tier != nil {
		a.Tier = o.tier(f.EventID).String()
	}
	return a
}

// Write queues a finding. A full batch is sent before Write returns; otherwise
// the first queued finding arms the flush timer.
func (o *Output) Write(_ context.Context, f model.Finding) error {
	if f.Score < o.minScore {
		return nil
	}
	a := o.alert(f.Clone())

	o.mu.Lock()
	defer o.mu.Unlock()

	o.pending = append(o.pending, a)

	if len(o.pending) >= o.batchSize {
		return o.flushLocked()
	}

	if len(o.pending) == 1 {
		o.timer = time.AfterFunc(o.flushInterval, func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if err := o.flushLocked(); err != nil {
				o.errFunc(err)
			}
		})
	}
	return nil
}

// Flush sends the pending batch now.
func (o *Output) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.flushLocked()
}

// Close flushes any remaining findings and stops the timer.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	return o.flushLocked()
}

// flushLocked sends the pending batch. Caller must hold o.mu.
func (o *Output) flushLocked() error {
	if len(o.pending) == 0 {
		return nil
	}
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}

	b := newBatch(o.pending)
	o.pending = nil

	body, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}
	return o.postWithRetry(b.ID, body)
}

func newBatch(alerts []Alert) Batch {
	b := Batch{
		ID:     uuid.NewString(),
		SentAt: time.Now().UTC(),
		Count:  len(alerts),
		Alerts: alerts,
	}
	for _, a := range alerts {
		if a.HighRisk {
			b.HighRisk++
		}
		b.MaxScore = max(b.MaxScore, a.Score)
	}
	return b
}

func (o *Output) postWithRetry(id string, body []byte) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(o.backoff << (attempt - 1))
		}

		req, err := http.NewRequest(http.MethodPost, o.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(BatchHeader, id)
		for k, v := range o.headers {
			req.Header.Set(k, v)
		}

		resp, err := o.client.Do(req)
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		lastErr = fmt.Errorf("webhook: batch %s: HTTP %d", id, resp.StatusCode)
		if resp.StatusCode < 500 {
			return lastErr
		}
	}
	return lastErr
}
