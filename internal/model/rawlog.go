package model

import "time"

// RawEvent is the intermediate type produced by connectors and consumed by the engine.
type RawEvent struct {
	Received time.Time
	Source   string         // connector name or file path
	Fields   map[string]any // one exported record, either the "result" envelope or its body
}
