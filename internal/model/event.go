package model

import (
	"maps"
	"strings"
	"time"
)

// Finding is a classified, suspicious log record.
// Findings are created by the classifier and never mutated afterwards.
type Finding struct {
	Timestamp time.Time      `json:"timestamp"`
	EventID   int            `json:"event_id"`
	EventName string         `json:"event_name"`
	Computer  string         `json:"computer"`
	User      string         `json:"user"`
	Score     int            `json:"suspicious_score"`
	Reasons   []string       `json:"reasons"`
	Raw       map[string]any `json:"raw_data,omitempty"` // only retained for Score >= RawRetentionScore
}

// RawRetentionScore is the minimum score at which the full record is kept.
const RawRetentionScore = 3

// Unknown fills a record's computer or user when the source has neither.
const Unknown = "Unknown"

// ReasonText joins the reasons for display and CSV export.
func (f Finding) ReasonText() string {
	if len(f.Reasons) == 0 {
		return "Generic suspicious"
	}
	return strings.Join(f.Reasons, "; ")
}

// HighRisk reports whether the finding crossed the raw retention threshold.
func (f Finding) HighRisk() bool {
	return f.Score >= RawRetentionScore
}

// Clone returns a deep-enough copy for consumers that need to modify a finding
// (reasons slice and top-level raw map are copied).
func (f Finding) Clone() Finding {
	f.Reasons = append([]string(nil), f.Reasons...)
	if f.Raw != nil {
		f.Raw = maps.Clone(f.Raw)
	}
	return f
}
