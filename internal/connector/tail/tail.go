package tail

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	nxtail "github.com/nxadm/tail"

	"github.com/crimson-sun/sectriage/internal/connector"
	"github.com/crimson-sun/sectriage/internal/metrics"
	"github.com/crimson-sun/sectriage/internal/model"
)

func init() {
	connector.Register("tail", func() connector.Connector {
		return &Connector{}
	})
}

// Connector follows a growing NDJSON file, one record per line, surviving
// rotation. Extra keys: "from" ("end" to skip existing lines, default
// "start"), "poll" ("true" to poll instead of inotify).
type Connector struct{}

// Query is not supported; use the file connector for one-shot reads.
func (c *Connector) Query(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) ([]model.RawEvent, error) {
	return nil, connector.ErrUnsupported
}

// Stream tails cfg.Endpoint until ctx is cancelled. Malformed lines are
// logged and dropped.
func (c *Connector) Stream(ctx context.Context, cfg connector.ConnectorConfig) (<-chan model.RawEvent, error) {
	path := cfg.Endpoint
	if path == "" || path == "-" {
		return nil, fmt.Errorf("tail connector: a file path is required")
	}

	tc := nxtail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Poll:      cfg.Extra["poll"] == "true",
		Logger:    nxtail.DiscardingLogger,
	}
	if cfg.Extra["from"] == "end" {
		tc.Location = &nxtail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}

	t, err := nxtail.TailFile(path, tc)
	if err != nil {
		return nil, fmt.Errorf("tail connector: %w", err)
	}

	ch := make(chan model.RawEvent, 64)
	go func() {
		defer close(ch)
		defer t.Cleanup()
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case line, ok := <-t.Lines:
				if !ok {
					return
				}
				if line.Err != nil {
					slog.Warn("tail connector: read error", "path", path, "error", line.Err)
					continue
				}
				ev, ok, err := connector.DecodeLine([]byte(line.Text), path)
				if err != nil {
					slog.Warn("tail connector: malformed line", "path", path, "line", line.Num, "error", err)
					continue
				}
				if !ok {
					continue
				}
				metrics.ConnectorEvents.WithLabelValues("tail").Inc()
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
