package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/crimson-sun/sectriage/internal/connector"
	"github.com/crimson-sun/sectriage/internal/engine/normalizer"
	"github.com/crimson-sun/sectriage/internal/model"
)

func init() {
	connector.Register("file", func() connector.Connector {
		return &Connector{}
	})
}

// Connector reads exported Windows security records from a local file.
// cfg.Endpoint is the path; "-" reads stdin.
type Connector struct {
	stdin io.Reader // overridable in tests
}

func (c *Connector) open(cfg connector.ConnectorConfig) (io.ReadCloser, string, error) {
	path := cfg.Endpoint
	if path == "" {
		return nil, "", fmt.Errorf("file connector: missing path")
	}
	if path == "-" {
		in := c.stdin
		if in == nil {
			in = os.Stdin
		}
		return io.NopCloser(in), "stdin", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("file connector: %w", err)
	}
	return f, path, nil
}

// Query reads the whole file, applying the time window and limit.
func (c *Connector) Query(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) ([]model.RawEvent, error) {
	rc, source, err := c.open(cfg)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var out []model.RawEvent
	err = connector.DecodeEvents(rc, source, func(ev model.RawEvent) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !params.InRange(eventTime(ev)) {
			return nil
		}
		out = append(out, ev)
		if params.Limit > 0 && len(out) >= params.Limit {
			return errLimit
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimit) {
		return nil, fmt.Errorf("file connector: %w", err)
	}
	return out, nil
}

// Stream emits records as they are decoded and closes the channel at EOF.
// A decode error is logged and ends the stream early.
func (c *Connector) Stream(ctx context.Context, cfg connector.ConnectorConfig) (<-chan model.RawEvent, error) {
	rc, source, err := c.open(cfg)
	if err != nil {
		return nil, err
	}

	ch := make(chan model.RawEvent, 64)
	go func() {
		defer close(ch)
		defer rc.Close()
		err := connector.DecodeEvents(rc, source, func(ev model.RawEvent) error {
			select {
			case ch <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && ctx.Err() == nil {
			slog.Warn("file connector: stream stopped", "source", source, "error", err)
		}
	}()
	return ch, nil
}

var errLimit = errors.New("limit reached")

func eventTime(ev model.RawEvent) time.Time {
	return normalizer.Normalize(ev).Timestamp
}
