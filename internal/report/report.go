package report

import (
	"slices"
	"sync"
	"time"

	"github.com/crimson-sun/sectriage/internal/engine"
	"github.com/crimson-sun/sectriage/internal/model"
)

// Options controls report sizing.
type Options struct {
	TopN          int           // rows in the event frequency ranking (default 10)
	HighRiskLimit int           // high-risk findings listed in full (default 5)
	BurstWindow   time.Duration // grouping window for bursts; 0 disables burst detection
}

// DefaultOptions returns the sizes used by the CLI when none are configured.
func DefaultOptions() Options {
	return Options{TopN: 10, HighRiskLimit: 5, BurstWindow: time.Minute}
}

// InputStats describes everything the engine saw, flagged or not.
type InputStats struct {
	Records    int       `json:"records"`
	Skipped    int       `json:"skipped"`
	Clean      int       `json:"clean"`
	Flagged    int       `json:"flagged"`
	EventCodes int       `json:"distinct_event_codes"`
	Computers  int       `json:"distinct_computers"`
	Users      int       `json:"distinct_users"`
	First      time.Time `json:"first_seen,omitzero"`
	Last       time.Time `json:"last_seen,omitzero"`
}

// EventCount is one row of the frequency ranking.
type EventCount struct {
	EventID   int    `json:"event_id"`
	EventName string `json:"event_name"`
	Count     int    `json:"count"`
}

// Report summarizes one run.
type Report struct {
	RunID         string          `json:"run_id,omitempty"`
	Input         InputStats      `json:"input"`
	TotalFindings int             `json:"total_findings"`
	EventIDs      int             `json:"distinct_event_ids"`
	Hosts         int             `json:"distinct_hosts"`
	Users         int             `json:"distinct_users"`
	TopEvents     []EventCount    `json:"top_events"`
	HighRisk      []model.Finding `json:"high_risk"`
	Bursts        []Burst         `json:"bursts,omitempty"`
}

// Builder accumulates engine results into a Report. Safe for concurrent use.
type Builder struct {
	mu    sync.Mutex
	opts  Options
	runID string

	stats      engine.Stats
	inCodes    map[int]struct{}
	inHosts    map[string]struct{}
	inUsers    map[string]struct{}
	first      time.Time
	last       time.Time
	findings   int
	hosts      map[string]struct{}
	users      map[string]struct{}
	counts     map[int]*EventCount
	countOrder []*EventCount // first-seen order
	highRisk   []model.Finding
	bursts     *burstTracker
}

// NewBuilder creates a Builder. Non-positive sizes fall back to DefaultOptions.
func NewBuilder(runID string, opts Options) *Builder {
	def := DefaultOptions()
	if opts.TopN <= 0 {
		opts.TopN = def.TopN
	}
	if opts.HighRiskLimit <= 0 {
		opts.HighRiskLimit = def.HighRiskLimit
	}
	b := &Builder{
		opts:    opts,
		runID:   runID,
		inCodes: make(map[int]struct{}),
		inHosts: make(map[string]struct{}),
		inUsers: make(map[string]struct{}),
		hosts:   make(map[string]struct{}),
		users:   make(map[string]struct{}),
		counts:  make(map[int]*EventCount),
	}
	if opts.BurstWindow > 0 {
		b.bursts = newBurstTracker(opts.BurstWindow)
	}
	return b
}

// Add records one engine result.
func (b *Builder) Add(res engine.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.Add(res.Outcome)
	rec := res.Record
	if rec.HasEventID {
		b.inCodes[rec.EventID] = struct{}{}
	}
	// The Unknown fill-in is not a distinct host or user of the input.
	if rec.Computer != model.Unknown {
		b.inHosts[rec.Computer] = struct{}{}
	}
	if rec.User != model.Unknown {
		b.inUsers[rec.User] = struct{}{}
	}
	if ts := rec.Timestamp; !ts.IsZero() {
		if b.first.IsZero() || ts.Before(b.first) {
			b.first = ts
		}
		if ts.After(b.last) {
			b.last = ts
		}
	}

	if res.Outcome != engine.Flagged {
		return
	}
	f := res.Finding
	b.findings++
	b.hosts[f.Computer] = struct{}{}
	b.users[f.User] = struct{}{}

	c, ok := b.counts[f.EventID]
	if !ok {
		c = &EventCount{EventID: f.EventID, EventName: f.EventName}
		b.counts[f.EventID] = c
		b.countOrder = append(b.countOrder, c)
	}
	c.Count++

	if f.HighRisk() && len(b.highRisk) < b.opts.HighRiskLimit {
		b.highRisk = append(b.highRisk, f)
	}
	if b.bursts != nil {
		b.bursts.add(f)
	}
}

// AddAll records a batch of results in order.
func (b *Builder) AddAll(results []engine.Result) {
	for _, r := range results {
		b.Add(r)
	}
}

// Stats returns the outcome counts so far.
func (b *Builder) Stats() engine.Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Report returns a snapshot of the summary. The Builder stays usable.
func (b *Builder) Report() Report {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := Report{
		RunID: b.runID,
		Input: InputStats{
			Records:    b.stats.Total,
			Skipped:    b.stats.Skipped,
			Clean:      b.stats.Clean,
			Flagged:    b.stats.Flagged,
			EventCodes: len(b.inCodes),
			Computers:  len(b.inHosts),
			Users:      len(b.inUsers),
			First:      b.first,
			Last:       b.last,
		},
		TotalFindings: b.findings,
		EventIDs:      len(b.counts),
		Hosts:         len(b.hosts),
		Users:         len(b.users),
		TopEvents:     topEvents(b.countOrder, b.opts.TopN),
		HighRisk:      make([]model.Finding, 0, len(b.highRisk)),
	}
	for _, f := range b.highRisk {
		r.HighRisk = append(r.HighRisk, f.Clone())
	}
	if b.bursts != nil {
		r.Bursts = b.bursts.snapshot()
	}
	return r
}

// topEvents ranks by count descending. The stable sort keeps first-seen
// order among equal counts.
func topEvents(order []*EventCount, n int) []EventCount {
	rows := make([]EventCount, len(order))
	for i, c := range order {
		rows[i] = *c
	}
	slices.SortStableFunc(rows, func(a, b EventCount) int {
		return b.Count - a.Count
	})
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

// Build is a convenience for one-shot runs.
func Build(runID string, opts Options, results []engine.Result) Report {
	b := NewBuilder(runID, opts)
	b.AddAll(results)
	return b.Report()
}
