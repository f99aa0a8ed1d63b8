package splunk

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/crimson-sun/sectriage/internal/connector"
	"github.com/crimson-sun/sectriage/internal/connector/httpclient"
	"github.com/crimson-sun/sectriage/internal/metrics"
	"github.com/crimson-sun/sectriage/internal/model"
)

const (
	defaultEndpoint     = "https://localhost:8089"
	defaultSearch       = `search index=main sourcetype="WinEventLog:Security"`
	defaultPollInterval = 30 * time.Second
	defaultLookback     = 24 * time.Hour
	exportPath          = "/services/search/jobs/export"
)

func init() {
	connector.Register("splunk", func() connector.Connector {
		return &Connector{}
	})
}

// Connector runs searches against Splunk's streaming export endpoint, which
// returns one {"result": {...}} envelope per line.
//
// Extra keys: "search" (SPL, default WinEventLog:Security in index=main),
// "insecure" ("true" skips TLS verification), "poll_interval" (Stream),
// "timeout" (per request, default none).
type Connector struct{}

func newClient(cfg connector.ConnectorConfig) *httpclient.Client {
	baseURL := cfg.Endpoint
	if baseURL == "" {
		baseURL = defaultEndpoint
	}
	var opts []httpclient.Option
	if cfg.Extra["insecure"] == "true" {
		opts = append(opts, httpclient.WithInsecureTLS())
	}
	timeout := time.Duration(0) // exports can run long
	if raw := cfg.Extra["timeout"]; raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			timeout = d
		}
	}
	opts = append(opts, httpclient.WithTimeout(timeout))
	return httpclient.New(strings.TrimRight(baseURL, "/"), cfg.APIKey, opts...)
}

// buildSearch returns the SPL for one export. Searches must start with a
// generating command, so a bare query gets "search " prepended.
func buildSearch(cfg connector.ConnectorConfig, filter string, limit int) string {
	spl := strings.TrimSpace(cfg.Extra["search"])
	if spl == "" {
		spl = defaultSearch
	}
	if !strings.HasPrefix(spl, "search ") && !strings.HasPrefix(spl, "|") {
		spl = "search " + spl
	}
	if filter != "" {
		spl += " " + filter
	}
	if limit > 0 {
		spl += " | head " + strconv.Itoa(limit)
	}
	return spl
}

func epoch(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

// export runs one search over [earliest, latest) and calls fn per result row.
func export(ctx context.Context, client *httpclient.Client, spl string, earliest, latest time.Time, fn func(model.RawEvent) error) error {
	form := url.Values{}
	form.Set("search", spl)
	form.Set("output_mode", "json")
	form.Set("earliest_time", epoch(earliest))
	form.Set("latest_time", epoch(latest))

	body, err := client.PostFormStream(ctx, exportPath, form)
	if err != nil {
		return err
	}
	defer body.Close()
	return decodeExport(body, fn)
}

// decodeExport forwards rows that carry a "result" object; preview rows,
// messages and lastrow markers are dropped.
func decodeExport(r io.Reader, fn func(model.RawEvent) error) error {
	return connector.DecodeEvents(r, "splunk", func(ev model.RawEvent) error {
		if _, ok := ev.Fields["result"].(map[string]any); !ok {
			return nil
		}
		if preview, _ := ev.Fields["preview"].(bool); preview {
			return nil
		}
		metrics.ConnectorEvents.WithLabelValues("splunk").Inc()
		return fn(ev)
	})
}

// Query exports events in the window. Defaults to the last 24 hours.
func (c *Connector) Query(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) ([]model.RawEvent, error) {
	client := newClient(cfg)

	now := time.Now()
	start, end := params.Start, params.End
	if end.IsZero() {
		end = now
	}
	if start.IsZero() {
		start = end.Add(-defaultLookback)
	}

	var results []model.RawEvent
	err := export(ctx, client, buildSearch(cfg, params.Filter, params.Limit), start, end, func(ev model.RawEvent) error {
		results = append(results, ev)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("splunk connector: %w", err)
	}
	if params.Limit > 0 && len(results) > params.Limit {
		results = results[:params.Limit]
	}
	return results, nil
}

// Stream polls the export endpoint, each poll covering the time since the
// previous one.
func (c *Connector) Stream(ctx context.Context, cfg connector.ConnectorConfig) (<-chan model.RawEvent, error) {
	client := newClient(cfg)
	spl := buildSearch(cfg, "", 0)

	pollInterval := defaultPollInterval
	if raw := cfg.Extra["poll_interval"]; raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			pollInterval = d
		}
	}

	ch := make(chan model.RawEvent, 64)
	go func() {
		defer close(ch)
		last := time.Now().Add(-pollInterval)

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		last = poll(ctx, client, spl, last, ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				last = poll(ctx, client, spl, last, ch)
			}
		}
	}()
	return ch, nil
}

// poll exports [last, now) and returns the next lower bound. On failure the
// window is kept so the next poll retries it.
func poll(ctx context.Context, client *httpclient.Client, spl string, last time.Time, ch chan<- model.RawEvent) time.Time {
	now := time.Now().Truncate(time.Second)
	if !now.After(last) {
		return last
	}
	err := export(ctx, client, spl, last, now, func(ev model.RawEvent) error {
		select {
		case ch <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("splunk connector: poll error", "error", err)
		}
		return last
	}
	return now
}
