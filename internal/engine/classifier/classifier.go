package classifier

import (
	"fmt"
	"maps"

	"github.com/crimson-sun/sectriage/internal/engine/catalog"
	"github.com/crimson-sun/sectriage/internal/model"
)

// tierRule is the base score for one risk tier.
type tierRule struct {
	tier   model.Tier
	score  int
	prefix string
}

// Checked in priority order; the first matching tier wins.
var tierRules = []tierRule{
	{tier: model.TierHigh, score: 3, prefix: "High-risk event"},
	{tier: model.TierMedium, score: 2, prefix: "Medium-risk event"},
	{tier: model.TierLow, score: 1, prefix: "Info event"},
}

// BaseScore returns the score a tier contributes on its own.
func BaseScore(t model.Tier) int {
	for _, r := range tierRules {
		if r.tier == t {
			return r.score
		}
	}
	return 0
}

// Hit is the contribution of one heuristic to a record's score.
type Hit struct {
	Score  int
	Reason string
}

// Heuristic is a field-specific rule evaluated in addition to the base tier.
type Heuristic interface {
	Name() string
	Evaluate(rec model.Record) (Hit, bool)
}

// Classifier scores normalized records against the event catalog and heuristics.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	catalog    *catalog.Catalog
	heuristics []Heuristic
}

// New creates a Classifier using the built-in heuristics followed by extra.
func New(cat *catalog.Catalog, extra ...Heuristic) *Classifier {
	hs := append(DefaultHeuristics(), extra...)
	return &Classifier{catalog: cat, heuristics: hs}
}

// Heuristics returns the heuristics in evaluation order.
func (c *Classifier) Heuristics() []Heuristic {
	return append([]Heuristic(nil), c.heuristics...)
}

// Classify decides whether rec is suspicious. It returns ok=false for records
// without a usable event id and for records that score zero.
func (c *Classifier) Classify(rec model.Record) (model.Finding, bool) {
	if !rec.HasEventID {
		return model.Finding{}, false
	}

	score := 0
	var reasons []string

	name := c.catalog.Describe(rec.EventID)
	tier := c.catalog.Tier(rec.EventID)
	for _, tr := range tierRules {
		if tier == tr.tier {
			score += tr.score
			reasons = append(reasons, fmt.Sprintf("%s: %s", tr.prefix, name))
			break
		}
	}

	for _, h := range c.heuristics {
		hit, ok := h.Evaluate(rec)
		if !ok || hit.Score <= 0 {
			continue
		}
		score += hit.Score
		reasons = append(reasons, hit.Reason)
	}

	if score <= 0 {
		return model.Finding{}, false
	}

	f := model.Finding{
		Timestamp: rec.Timestamp,
		EventID:   rec.EventID,
		EventName: name,
		Computer:  rec.Computer,
		User:      rec.User,
		Score:     score,
		Reasons:   reasons,
	}
	if score >= model.RawRetentionScore {
		f.Raw = maps.Clone(rec.Fields)
		if f.Raw == nil {
			f.Raw = map[string]any{}
		}
	}
	return f, true
}
