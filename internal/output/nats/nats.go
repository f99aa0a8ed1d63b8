package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/crimson-sun/sectriage/internal/engine/compactor"
	"github.com/crimson-sun/sectriage/internal/model"
	"github.com/crimson-sun/sectriage/internal/output"
)

// DefaultSubject is the subject prefix findings are published under.
const DefaultSubject = "sectriage.findings"

// Config holds NATS connection settings.
type Config struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string

	// Subject is the prefix; findings go to "{Subject}.{tier}".
	Subject string

	// Name is the client name for connection identification.
	Name string

	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration

	// Token for token-based authentication (optional).
	Token string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Subject:       DefaultSubject,
		Name:          "sectriage",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// publisher is the subset of *nats.Conn the output uses.
type publisher interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// TierFunc maps an event id to its catalog tier.
type TierFunc func(id int) model.Tier

// Output publishes each finding as JSON. The subject carries the base tier so
// subscribers can filter, e.g. "sectriage.findings.high".
type Output struct {
	conn      publisher
	subject   string
	tier      TierFunc
	verbosity compactor.Verbosity
	timeout   time.Duration
}

// Connect dials the server and returns an Output.
func Connect(cfg Config, tier TierFunc, verbosity compactor.Verbosity) (*Output, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats output: disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats output: reconnected", "url", c.ConnectedUrl())
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats output: connect %s: %w", cfg.URL, err)
	}
	return newOutput(conn, cfg, tier, verbosity), nil
}

func newOutput(conn publisher, cfg Config, tier TierFunc, verbosity compactor.Verbosity) *Output {
	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Output{conn: conn, subject: subject, tier: tier, verbosity: verbosity, timeout: timeout}
}

// Subject returns the subject a finding is published to.
func (o *Output) Subject(f model.Finding) string {
	t := model.TierNone
	if o.tier != nil {
		t = o.tier(f.EventID)
	}
	return o.subject + "." + t.String()
}

func (o *Output) Write(ctx context.Context, f model.Finding) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(output.FormatFinding(f, o.verbosity))
	if err != nil {
		return fmt.Errorf("nats output: marshal: %w", err)
	}
	if err := o.conn.Publish(o.Subject(f), data); err != nil {
		return fmt.Errorf("nats output: publish: %w", err)
	}
	return nil
}

// Flush waits for the server to acknowledge everything published so far.
func (o *Output) Flush() error {
	if err := o.conn.FlushTimeout(o.timeout); err != nil {
		return fmt.Errorf("nats output: flush: %w", err)
	}
	return nil
}

// Close flushes pending publishes and closes the connection.
func (o *Output) Close() error {
	err := o.Flush()
	o.conn.Close()
	return err
}
