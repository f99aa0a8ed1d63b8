package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/crimson-sun/sectriage/internal/engine/catalog"
	"github.com/crimson-sun/sectriage/internal/engine/classifier"
	"github.com/crimson-sun/sectriage/internal/engine/normalizer"
	"github.com/crimson-sun/sectriage/internal/metrics"
	"github.com/crimson-sun/sectriage/internal/model"
)

// Outcome is what happened to one record.
type Outcome int

const (
	Skipped Outcome = iota // no usable event id
	Clean                  // scored zero
	Flagged                // produced a finding
)

func (o Outcome) String() string {
	switch o {
	case Clean:
		return "clean"
	case Flagged:
		return "flagged"
	default:
		return "skipped"
	}
}

// Result is the engine's verdict for one raw event.
type Result struct {
	Record  model.Record
	Finding model.Finding // zero unless Outcome == Flagged
	Outcome Outcome
}

// Stats counts outcomes over a batch.
type Stats struct {
	Total   int
	Skipped int
	Clean   int
	Flagged int
}

// Add records one outcome.
func (s *Stats) Add(o Outcome) {
	s.Total++
	switch o {
	case Skipped:
		s.Skipped++
	case Clean:
		s.Clean++
	case Flagged:
		s.Flagged++
	}
}

// Engine orchestrates the normalize → classify pipeline. Findings leave the
// engine with their raw record intact; outputs apply verbosity when rendering.
// It is stateless apart from metrics and safe for concurrent use.
type Engine struct {
	catalog    *catalog.Catalog
	classifier *classifier.Classifier
}

// New creates an Engine with the provided components.
func New(cat *catalog.Catalog, cls *classifier.Classifier) *Engine {
	return &Engine{
		catalog:    cat,
		classifier: cls,
	}
}

// Catalog returns the event catalog the engine classifies against.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Process normalizes and classifies a single raw event.
func (e *Engine) Process(raw model.RawEvent) Result {
	rec := normalizer.Normalize(raw)
	res := Result{Record: rec, Outcome: Skipped}

	if rec.HasEventID {
		res.Outcome = Clean
		if f, ok := e.classifier.Classify(rec); ok {
			res.Outcome = Flagged
			res.Finding = f
		}
	}

	observe(res, e.catalog)
	return res
}

// ProcessBatch processes raws sequentially. Results are in input order.
func (e *Engine) ProcessBatch(raws []model.RawEvent) []Result {
	results := make([]Result, len(raws))
	for i, raw := range raws {
		results[i] = e.Process(raw)
	}
	return results
}

// ProcessBatchParallel splits raws across workers. Results are identical to
// ProcessBatch, in input order. The only error is context cancellation.
func (e *Engine) ProcessBatchParallel(ctx context.Context, raws []model.RawEvent, workers int) ([]Result, error) {
	if workers <= 1 || len(raws) < 2*workers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return e.ProcessBatch(raws), nil
	}

	results := make([]Result, len(raws))
	chunk := (len(raws) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(raws); start += chunk {
		end := min(start+chunk, len(raws))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%256 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				results[i] = e.Process(raws[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Findings returns the findings among results, in order.
func Findings(results []Result) []model.Finding {
	var out []model.Finding
	for _, r := range results {
		if r.Outcome == Flagged {
			out = append(out, r.Finding)
		}
	}
	return out
}

// Tally counts the outcomes of results.
func Tally(results []Result) Stats {
	var s Stats
	for _, r := range results {
		s.Add(r.Outcome)
	}
	return s
}

func observe(res Result, cat *catalog.Catalog) {
	metrics.RecordsTotal.WithLabelValues(res.Outcome.String()).Inc()
	if res.Outcome != Flagged {
		return
	}
	metrics.FindingsTotal.WithLabelValues(cat.Tier(res.Finding.EventID).String()).Inc()
	metrics.FindingScore.Observe(float64(res.Finding.Score))
}
