// Package normalizer turns exported Windows security records into model.Record.
package normalizer

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/crimson-sun/sectriage/internal/model"
)

// Source field names as they appear in Splunk/WinEventLog JSON exports.
const (
	FieldEventCode   = "EventCode"
	FieldTime        = "_time"
	FieldComputer    = "ComputerName"
	FieldUser        = "user"
	FieldAccountName = "Account_Name"
	FieldProcessName = "New_Process_Name"
	FieldLogonType   = "Logon_Type"

	envelopeKey = "result"
	unknown     = model.Unknown
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02 15:04:05.000 MST",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"01/02/2006 03:04:05 PM",
}

// Normalize converts one raw event into a Record. It never fails: missing or
// malformed fields fall back to their documented defaults.
func Normalize(raw model.RawEvent) model.Record {
	fields := Unwrap(raw.Fields)

	rec := model.Record{
		Computer: firstNonEmpty(stringField(fields[FieldComputer]), unknown),
		User: firstNonEmpty(
			stringField(fields[FieldUser]),
			stringField(fields[FieldAccountName]),
			unknown,
		),
		ProcessName: stringField(fields[FieldProcessName]),
		LogonType:   stringField(fields[FieldLogonType]),
		Fields:      fields,
	}
	rec.EventID, rec.HasEventID = EventID(fields[FieldEventCode])
	rec.Timestamp = Timestamp(fields[FieldTime])
	return rec
}

// Unwrap returns the body of a {"result": {...}} export envelope, or fields
// unchanged when it is already a bare record.
func Unwrap(fields map[string]any) map[string]any {
	if inner, ok := fields[envelopeKey].(map[string]any); ok {
		return inner
	}
	return fields
}

// EventID converts an EventCode value into an integer id. Zero, fractional,
// out-of-range and non-numeric values report ok=false.
func EventID(v any) (int, bool) {
	var id int64
	switch n := v.(type) {
	case int:
		id = int64(n)
	case int32:
		id = int64(n)
	case int64:
		id = n
	case uint32:
		id = int64(n)
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		id = int64(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		id = i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 32)
		if err != nil {
			return 0, false
		}
		id = i
	case []any:
		if len(n) == 0 {
			return 0, false
		}
		return EventID(n[0])
	default:
		return 0, false
	}
	if id == 0 || id > math.MaxInt32 || id < math.MinInt32 {
		return 0, false
	}
	return int(id), true
}

// Timestamp parses a _time value. Strings are tried against the known export
// layouts; numbers are epoch seconds. Unparseable values yield the zero time.
func Timestamp(v any) time.Time {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts
			}
		}
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			return epoch(secs)
		}
	case float64:
		return epoch(t)
	case json.Number:
		if secs, err := t.Float64(); err == nil {
			return epoch(secs)
		}
	case time.Time:
		return t
	}
	return time.Time{}
}

func epoch(secs float64) time.Time {
	if secs <= 0 || math.IsInf(secs, 0) || math.IsNaN(secs) {
		return time.Time{}
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

// stringField renders a scalar field as a string. Multi-valued fields resolve
// to their first meaningful element; Windows uses "-" as an empty placeholder.
func stringField(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		if s == math.Trunc(s) && math.Abs(s) < 1<<63 {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	case []any:
		for _, item := range s {
			if str := stringField(item); str != "" && str != "-" {
				return str
			}
		}
		return ""
	default:
		return ""
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
