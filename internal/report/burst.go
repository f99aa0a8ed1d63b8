package report

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/crimson-sun/sectriage/internal/model"
)

// Burst is a run of findings with the same event id on the same host inside
// one window, e.g. repeated failed logons against a domain controller.
type Burst struct {
	EventID   int       `json:"event_id"`
	EventName string    `json:"event_name"`
	Computer  string    `json:"computer"`
	Count     int       `json:"count"`
	First     time.Time `json:"first,omitzero"`
	Last      time.Time `json:"last,omitzero"`

	seq int
}

// Span returns a short human-readable duration of the burst.
func (b Burst) Span() string {
	return formatDuration(b.Last.Sub(b.First))
}

// burstTracker groups findings by event id and computer. A group stays open
// while findings arrive within window of its first finding. Findings without
// a timestamp cannot be placed in a window and are not tracked.
type burstTracker struct {
	window time.Duration
	open   map[string]*Burst
	seq    int
	done   []*Burst // groups that reached two findings
}

func newBurstTracker(window time.Duration) *burstTracker {
	return &burstTracker{window: window, open: make(map[string]*Burst)}
}

func (t *burstTracker) add(f model.Finding) {
	if f.Timestamp.IsZero() {
		return
	}
	key := strconv.Itoa(f.EventID) + "|" + f.Computer
	t.seq++

	b, ok := t.open[key]
	if ok && f.Timestamp.Sub(b.First) <= t.window {
		b.Count++
		if f.Timestamp.After(b.Last) {
			b.Last = f.Timestamp
		}
		if b.Count == 2 {
			t.done = append(t.done, b)
		}
		return
	}

	// New group: either a new key or outside the window.
	t.open[key] = &Burst{
		EventID:   f.EventID,
		EventName: f.EventName,
		Computer:  f.Computer,
		Count:     1,
		First:     f.Timestamp,
		Last:      f.Timestamp,
		seq:       t.seq,
	}
}

// snapshot returns bursts in first-occurrence order.
func (t *burstTracker) snapshot() []Burst {
	out := make([]Burst, len(t.done))
	for i, b := range t.done {
		out[i] = *b
	}
	slices.SortFunc(out, func(a, b Burst) int { return a.seq - b.seq })
	return out
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm%ds", mins, secs)
}
