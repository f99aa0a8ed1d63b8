package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/sectriage/internal/engine"
	"github.com/crimson-sun/sectriage/internal/model"
)

var t0 = time.Date(2016, 8, 24, 16, 48, 0, 0, time.UTC)

func flagged(id int, name, host, user string, score int, offset time.Duration) engine.Result {
	f := model.Finding{
		Timestamp: t0.Add(offset),
		EventID:   id,
		EventName: name,
		Computer:  host,
		User:      user,
		Score:     score,
		Reasons:   []string{"reason"},
	}
	if score >= model.RawRetentionScore {
		f.Raw = map[string]any{"EventCode": id}
	}
	return engine.Result{
		Record:  model.Record{EventID: id, HasEventID: true, Timestamp: f.Timestamp, Computer: host, User: user},
		Finding: f,
		Outcome: engine.Flagged,
	}
}

func clean(id int, host, user string) engine.Result {
	return engine.Result{
		Record:  model.Record{EventID: id, HasEventID: true, Computer: host, User: user},
		Outcome: engine.Clean,
	}
}

func skipped() engine.Result {
	return engine.Result{
		Record:  model.Record{Computer: "Unknown", User: "Unknown"},
		Outcome: engine.Skipped,
	}
}

func TestReportEmpty(t *testing.T) {
	r := Build("run-1", DefaultOptions(), nil)
	assert.Equal(t, "run-1", r.RunID)
	assert.Zero(t, r.TotalFindings)
	assert.Empty(t, r.TopEvents)
	assert.Empty(t, r.HighRisk)
	assert.Empty(t, r.Bursts)
	assert.True(t, r.Input.First.IsZero())
}

func TestReportCounts(t *testing.T) {
	results := []engine.Result{
		flagged(4625, "Failed Logon", "DC01", "admin", 3, 0),
		flagged(4624, "Successful Logon", "WS01", "bob", 2, time.Second),
		flagged(4625, "Failed Logon", "DC01", "eve", 3, 2*time.Second),
		clean(4608, "WS02", "SYSTEM"),
		skipped(),
	}
	r := Build("", DefaultOptions(), results)

	assert.Equal(t, 3, r.TotalFindings)
	assert.Equal(t, 2, r.EventIDs)
	assert.Equal(t, 2, r.Hosts)
	assert.Equal(t, 3, r.Users)

	assert.Equal(t, 5, r.Input.Records)
	assert.Equal(t, 1, r.Input.Skipped)
	assert.Equal(t, 1, r.Input.Clean)
	assert.Equal(t, 3, r.Input.Flagged)
	assert.Equal(t, 3, r.Input.EventCodes)
	assert.Equal(t, 3, r.Input.Computers, "DC01, WS01, WS02")
	assert.Equal(t, 4, r.Input.Users, "admin, bob, eve, SYSTEM")
	assert.Equal(t, t0, r.Input.First)
	assert.Equal(t, t0.Add(2*time.Second), r.Input.Last)
}

func TestTopEventsTiesKeepFirstSeenOrder(t *testing.T) {
	results := []engine.Result{
		flagged(4689, "Process Exit", "h", "u", 1, 0),
		flagged(4624, "Successful Logon", "h", "u", 1, 0),
		flagged(4625, "Failed Logon", "h", "u", 3, 0),
		flagged(4624, "Successful Logon", "h", "u", 1, 0),
		flagged(4625, "Failed Logon", "h", "u", 3, 0),
		flagged(7036, "Service Started/Stopped", "h", "u", 1, 0),
	}
	r := Build("", Options{TopN: 3}, results)

	require.Len(t, r.TopEvents, 3)
	assert.Equal(t, EventCount{EventID: 4624, EventName: "Successful Logon", Count: 2}, r.TopEvents[0])
	assert.Equal(t, EventCount{EventID: 4625, EventName: "Failed Logon", Count: 2}, r.TopEvents[1])
	assert.Equal(t, EventCount{EventID: 4689, EventName: "Process Exit", Count: 1}, r.TopEvents[2])
}

func TestHighRiskLimit(t *testing.T) {
	var results []engine.Result
	for i := 0; i < 8; i++ {
		results = append(results, flagged(4624, "Successful Logon", "h", "u", 2, 0))
		results = append(results, flagged(4625, "Failed Logon", "h", "u", 3, time.Duration(i)*time.Second))
	}
	r := Build("", Options{HighRiskLimit: 5}, results)

	require.Len(t, r.HighRisk, 5)
	for i, f := range r.HighRisk {
		assert.Equal(t, 4625, f.EventID)
		assert.Equal(t, t0.Add(time.Duration(i)*time.Second), f.Timestamp)
		assert.NotNil(t, f.Raw)
	}
}

func TestReportSnapshotIsIndependent(t *testing.T) {
	b := NewBuilder("", DefaultOptions())
	b.Add(flagged(1102, "Security Log Cleared", "h", "u", 3, 0))

	r := b.Report()
	r.HighRisk[0].Reasons[0] = "changed"

	again := b.Report()
	assert.Equal(t, "reason", again.HighRisk[0].Reasons[0])

	b.Add(flagged(1102, "Security Log Cleared", "h", "u", 3, 0))
	assert.Equal(t, 2, b.Report().TotalFindings)
	assert.Equal(t, 1, r.TotalFindings)
	assert.Equal(t, 2, b.Stats().Flagged)
}

func TestBursts(t *testing.T) {
	opts := Options{BurstWindow: 5 * time.Second}
	results := []engine.Result{
		flagged(4625, "Failed Logon", "DC01", "a", 3, 0),
		flagged(4624, "Successful Logon", "WS01", "b", 1, 0),
		flagged(4625, "Failed Logon", "DC01", "b", 3, time.Second),
		flagged(4625, "Failed Logon", "DC01", "c", 3, 2*time.Second),
		flagged(4625, "Failed Logon", "WS01", "c", 3, 2*time.Second), // other host
		flagged(4624, "Successful Logon", "WS01", "b", 1, 3*time.Second),
		flagged(4625, "Failed Logon", "DC01", "d", 3, 30*time.Second), // outside window
	}
	r := Build("", opts, results)

	require.Len(t, r.Bursts, 2)
	assert.Equal(t, 4625, r.Bursts[0].EventID)
	assert.Equal(t, "DC01", r.Bursts[0].Computer)
	assert.Equal(t, 3, r.Bursts[0].Count)
	assert.Equal(t, "2s", r.Bursts[0].Span())

	assert.Equal(t, 4624, r.Bursts[1].EventID)
	assert.Equal(t, 2, r.Bursts[1].Count)
	assert.Equal(t, "3s", r.Bursts[1].Span())
}

func TestBurstsIgnoreUntimedFindings(t *testing.T) {
	untimed := func(user string) engine.Result {
		r := flagged(4625, "Failed Logon", "DC01", user, 3, 0)
		r.Finding.Timestamp = time.Time{}
		r.Record.Timestamp = time.Time{}
		return r
	}
	results := []engine.Result{
		untimed("a"),
		untimed("b"),
		flagged(4625, "Failed Logon", "DC01", "c", 3, 0),
		untimed("d"),
		flagged(4625, "Failed Logon", "DC01", "e", 3, time.Hour),
	}
	r := Build("", Options{BurstWindow: 5 * time.Second}, results)

	assert.Empty(t, r.Bursts)
	assert.Equal(t, 5, r.TotalFindings)
}

func TestInputCountsExcludeUnknown(t *testing.T) {
	results := []engine.Result{
		clean(4608, model.Unknown, model.Unknown),
		clean(4608, model.Unknown, model.Unknown),
		skipped(),
	}
	r := Build("", DefaultOptions(), results)

	assert.Equal(t, 3, r.Input.Records)
	assert.Zero(t, r.Input.Computers)
	assert.Zero(t, r.Input.Users)
}

func TestBurstsDisabled(t *testing.T) {
	results := []engine.Result{
		flagged(4625, "Failed Logon", "DC01", "a", 3, 0),
		flagged(4625, "Failed Logon", "DC01", "a", 3, 0),
	}
	r := Build("", Options{}, results)
	assert.Empty(t, r.Bursts)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "500ms"},
		{0, "0ms"},
		{time.Second, "1s"},
		{45 * time.Second, "45s"},
		{time.Minute, "1m"},
		{90 * time.Second, "1m30s"},
		{5 * time.Minute, "5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d), tt.d.String())
	}
}

func TestWriteText(t *testing.T) {
	results := []engine.Result{
		flagged(4625, "Failed Logon", "DC01", "admin", 3, 0),
		flagged(4624, "Successful Logon", "WS01", "bob", 2, time.Second),
		skipped(),
	}
	r := Build("abc", DefaultOptions(), results)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "=== Summary ===")
	assert.Contains(t, out, "abc")
	assert.Contains(t, out, "=== Top events ===")
	assert.Contains(t, out, "Failed Logon")
	assert.Contains(t, out, "=== High-risk findings ===")
	assert.Contains(t, out, "2016-08-24T16:48:00Z")
	assert.NotContains(t, out, "=== Bursts ===")
}

func TestWriteJSON(t *testing.T) {
	r := Build("abc", DefaultOptions(), []engine.Result{
		flagged(4625, "Failed Logon", "DC01", "admin", 3, 0),
	})

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, r))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "abc", got["run_id"])
	assert.EqualValues(t, 1, got["total_findings"])
	assert.Len(t, got["top_events"], 1)
	assert.Len(t, got["high_risk"], 1)
}
