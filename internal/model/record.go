package model

import "time"

// Record is a normalized Windows security log record.
// Fallbacks for missing fields are applied by the normalizer, so every
// string field is safe to read directly.
type Record struct {
	EventID    int
	HasEventID bool // false when EventCode is absent, zero, or not an integer

	Timestamp   time.Time
	Computer    string
	User        string // user, falling back to Account_Name
	ProcessName string // New_Process_Name, only meaningful for 4688
	LogonType   string // Logon_Type as a decimal string, only meaningful for 4624

	Fields map[string]any // the full original record
}
