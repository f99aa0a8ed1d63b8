package sectriage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/crimson-sun/sectriage/internal/connector"
	"github.com/crimson-sun/sectriage/internal/engine"
	"github.com/crimson-sun/sectriage/internal/engine/catalog"
	"github.com/crimson-sun/sectriage/internal/engine/classifier"
	"github.com/crimson-sun/sectriage/internal/engine/compactor"
	"github.com/crimson-sun/sectriage/internal/engine/rules"
	"github.com/crimson-sun/sectriage/internal/model"
	"github.com/crimson-sun/sectriage/internal/report"
)

// Triage classifies Windows Security records against the built-in event
// catalog, the built-in heuristics and any custom rules. Safe for concurrent
// use.
type Triage struct {
	engine    *engine.Engine
	catalog   *catalog.Catalog
	compactor *compactor.Compactor
	opts      options
}

// New creates a Triage instance. It fails only when custom rules cannot be
// loaded or compiled.
func New(opts ...Option) (*Triage, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var extra []classifier.Heuristic
	if o.rulesPath != "" {
		rs, err := rules.LoadFile(o.rulesPath)
		if err != nil {
			return nil, fmt.Errorf("sectriage: %w", err)
		}
		extra = append(extra, rules.Heuristics(rs)...)
	}
	if len(o.rulesYAML) > 0 {
		rs, err := rules.Parse(o.rulesYAML)
		if err != nil {
			return nil, fmt.Errorf("sectriage: %w", err)
		}
		extra = append(extra, rules.Heuristics(rs)...)
	}

	cat := catalog.Default()
	return &Triage{
		engine:    engine.New(cat, classifier.New(cat, extra...)),
		catalog:   cat,
		compactor: compactor.New(compactor.ParseVerbosity(o.verbosity)),
		opts:      o,
	}, nil
}

// Classify scores one record. ok is false when the record has no usable
// EventCode or scores zero.
func (t *Triage) Classify(record map[string]any) (Finding, bool) {
	res := t.engine.Process(model.RawEvent{Received: time.Now(), Fields: record})
	if res.Outcome != engine.Flagged {
		return Finding{}, false
	}
	return t.finding(res.Finding), true
}

// ClassifyJSON scores one JSON-encoded record.
func (t *Triage) ClassifyJSON(data []byte) (Finding, bool, error) {
	raw, ok, err := connector.DecodeLine(data, "")
	if err != nil {
		return Finding{}, false, fmt.Errorf("sectriage: %w", err)
	}
	if !ok {
		return Finding{}, false, nil
	}
	res := t.engine.Process(raw)
	if res.Outcome != engine.Flagged {
		return Finding{}, false, nil
	}
	return t.finding(res.Finding), true, nil
}

// ClassifyBatch scores many records and returns the findings in input order.
// Records that are skipped or score zero produce nothing.
func (t *Triage) ClassifyBatch(ctx context.Context, records []map[string]any) ([]Finding, error) {
	raws := make([]model.RawEvent, len(records))
	now := time.Now()
	for i, r := range records {
		raws[i] = model.RawEvent{Received: now, Fields: r}
	}
	results, err := t.engine.ProcessBatchParallel(ctx, raws, t.opts.workers)
	if err != nil {
		return nil, fmt.Errorf("sectriage: %w", err)
	}
	return t.findings(results), nil
}

// Analyze reads a whole export (JSON array or NDJSON) and returns its
// findings plus a summary.
func (t *Triage) Analyze(ctx context.Context, r io.Reader) ([]Finding, Summary, error) {
	var raws []model.RawEvent
	err := connector.DecodeEvents(r, "", func(ev model.RawEvent) error {
		raws = append(raws, ev)
		return ctx.Err()
	})
	if err != nil {
		return nil, Summary{}, fmt.Errorf("sectriage: decode: %w", err)
	}

	results, err := t.engine.ProcessBatchParallel(ctx, raws, t.opts.workers)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("sectriage: %w", err)
	}

	rep := report.Build("", report.Options{
		TopN:          t.opts.topN,
		HighRiskLimit: t.opts.highRiskN,
		BurstWindow:   time.Minute,
	}, results)
	return t.findings(results), t.summary(rep), nil
}

// Describe returns the display name of an event id, or "Event {id}" when the
// id is not in the catalog.
func (t *Triage) Describe(id int) string {
	return t.catalog.Describe(id)
}

func (t *Triage) findings(results []engine.Result) []Finding {
	fs := engine.Findings(results)
	out := make([]Finding, len(fs))
	for i, f := range fs {
		out[i] = t.finding(f)
	}
	return out
}

// finding converts the internal finding to the public type, trimming the raw
// record only when a verbosity below full was requested.
func (t *Triage) finding(f model.Finding) Finding {
	f = t.compactor.Compact(f.Clone())
	return Finding{
		Timestamp: f.Timestamp,
		EventID:   f.EventID,
		EventName: f.EventName,
		Computer:  f.Computer,
		User:      f.User,
		Score:     f.Score,
		Reasons:   f.Reasons,
		Raw:       f.Raw,
	}
}

func (t *Triage) summary(r report.Report) Summary {
	s := Summary{
		Records:   r.Input.Records,
		Skipped:   r.Input.Skipped,
		Findings:  r.TotalFindings,
		EventIDs:  r.EventIDs,
		Hosts:     r.Hosts,
		Users:     r.Users,
		TopEvents: make([]EventCount, len(r.TopEvents)),
		HighRisk:  make([]Finding, len(r.HighRisk)),
	}
	for i, ec := range r.TopEvents {
		s.TopEvents[i] = EventCount{EventID: ec.EventID, EventName: ec.EventName, Count: ec.Count}
	}
	for i, f := range r.HighRisk {
		s.HighRisk[i] = t.finding(f)
	}
	return s
}
