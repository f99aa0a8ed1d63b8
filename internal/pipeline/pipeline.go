package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crimson-sun/sectriage/internal/connector"
	"github.com/crimson-sun/sectriage/internal/engine"
	"github.com/crimson-sun/sectriage/internal/output"
	"github.com/crimson-sun/sectriage/internal/report"
)

const defaultFlushInterval = time.Second

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers sets the parallelism of Query. Default: 1.
func WithWorkers(n int) Option {
	return func(p *Pipeline) { p.workers = n }
}

// WithReportOptions sizes the run report.
func WithReportOptions(o report.Options) Option {
	return func(p *Pipeline) { p.reportOpts = o }
}

// WithFlushInterval sets how often Stream flushes buffered outputs. Default: 1s.
func WithFlushInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.flushInterval = d }
}

// Pipeline connects a connector, engine, and output into a processing
// pipeline, and accumulates a report of everything it processed.
type Pipeline struct {
	connector     connector.Connector
	engine        *engine.Engine
	output        output.Output
	runID         string
	workers       int
	reportOpts    report.Options
	flushInterval time.Duration
	report        *report.Builder
}

// New creates a Pipeline from the given components. Each Pipeline gets a
// fresh run id.
func New(conn connector.Connector, eng *engine.Engine, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		connector:     conn,
		engine:        eng,
		output:        out,
		runID:         uuid.NewString(),
		workers:       1,
		reportOpts:    report.DefaultOptions(),
		flushInterval: defaultFlushInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.report = report.NewBuilder(p.runID, p.reportOpts)
	return p
}

// RunID identifies this run in logs and the report.
func (p *Pipeline) RunID() string { return p.runID }

// Report returns a snapshot of the run report.
func (p *Pipeline) Report() report.Report { return p.report.Report() }

// Stream starts the pipeline in streaming mode, processing events as they
// arrive. Blocks until the source is exhausted, the context is cancelled, or
// an output fails.
func (p *Pipeline) Stream(ctx context.Context, cfg connector.ConnectorConfig) error {
	ch, err := p.connector.Stream(ctx, cfg)
	if err != nil {
		return fmt.Errorf("pipeline stream: %w", err)
	}
	slog.Info("pipeline: streaming", "run_id", p.runID, "provider", cfg.Provider, "source", cfg.Endpoint)

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.flush()
			return ctx.Err()
		case <-ticker.C:
			p.flush()
		case raw, ok := <-ch:
			if !ok {
				p.flush()
				p.logDone("stream")
				return nil
			}
			res := p.engine.Process(raw)
			p.report.Add(res)
			if res.Outcome != engine.Flagged {
				continue
			}
			if err := p.output.Write(ctx, res.Finding); err != nil {
				return fmt.Errorf("pipeline output: %w", err)
			}
		}
	}
}

// Query runs the pipeline in one-shot query mode. Findings are written in
// input order.
func (p *Pipeline) Query(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) error {
	raws, err := p.connector.Query(ctx, cfg, params)
	if err != nil {
		return fmt.Errorf("pipeline query: %w", err)
	}

	results, err := p.engine.ProcessBatchParallel(ctx, raws, p.workers)
	if err != nil {
		return fmt.Errorf("pipeline process batch: %w", err)
	}
	p.report.AddAll(results)

	for _, f := range engine.Findings(results) {
		if err := p.output.Write(ctx, f); err != nil {
			return fmt.Errorf("pipeline output: %w", err)
		}
	}
	p.logDone("query")
	return nil
}

func (p *Pipeline) flush() {
	if err := output.Flush(p.output); err != nil {
		slog.Warn("pipeline: flush failed", "run_id", p.runID, "error", err)
	}
}

func (p *Pipeline) logDone(mode string) {
	s := p.report.Stats()
	slog.Info("pipeline: "+mode+" complete",
		"run_id", p.runID,
		"records", s.Total,
		"skipped", s.Skipped,
		"findings", s.Flagged,
	)
}

// Close shuts down the output.
func (p *Pipeline) Close() error {
	return p.output.Close()
}
