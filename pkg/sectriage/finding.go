package sectriage

import "time"

// Finding is a suspicious record with its score and the reasons behind it.
// This is the stable public type; internal representations may evolve
// independently without breaking consumers.
type Finding struct {
	Timestamp time.Time      `json:"timestamp"`          // zero when the record had no parseable _time
	EventID   int            `json:"event_id"`           // Windows event id
	EventName string         `json:"event_name"`         // catalog name, or "Event {id}"
	Computer  string         `json:"computer"`           // "Unknown" when absent
	User      string         `json:"user"`               // "Unknown" when absent
	Score     int            `json:"suspicious_score"`   // sum of tier and heuristic contributions
	Reasons   []string       `json:"reasons"`            // one entry per contribution, in order
	Raw       map[string]any `json:"raw_data,omitempty"` // only for Score >= 3
}

// HighRisk reports whether the finding scored 3 or more.
func (f Finding) HighRisk() bool {
	return f.Score >= 3
}

// EventCount is one row of a frequency ranking.
type EventCount struct {
	EventID   int    `json:"event_id"`
	EventName string `json:"event_name"`
	Count     int    `json:"count"`
}

// Summary describes one Analyze call.
type Summary struct {
	Records   int          `json:"records"` // records read
	Skipped   int          `json:"skipped"` // records without a usable EventCode
	Findings  int          `json:"total_findings"`
	EventIDs  int          `json:"distinct_event_ids"` // across findings
	Hosts     int          `json:"distinct_hosts"`
	Users     int          `json:"distinct_users"`
	TopEvents []EventCount `json:"top_events"`
	HighRisk  []Finding    `json:"high_risk"`
}
