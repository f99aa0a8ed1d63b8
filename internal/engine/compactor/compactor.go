package compactor

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/crimson-sun/sectriage/internal/model"
)

// Verbosity controls how much of a retained raw record survives compaction.
type Verbosity int

const (
	Minimal  Verbosity = iota // drop raw records entirely
	Standard                  // drop placeholder fields, truncate long values
	Full                      // retain everything
)

const maxValueLen = 2000

// ParseVerbosity maps "minimal", "standard" or "full" to a Verbosity.
// Unknown strings default to Full, which leaves raw records untouched.
func ParseVerbosity(s string) Verbosity {
	switch strings.ToLower(s) {
	case "minimal":
		return Minimal
	case "standard":
		return Standard
	default:
		return Full
	}
}

func (v Verbosity) String() string {
	switch v {
	case Minimal:
		return "minimal"
	case Full:
		return "full"
	default:
		return "standard"
	}
}

// Compactor trims findings for output.
type Compactor struct {
	Verbosity Verbosity
}

// New creates a Compactor with the given verbosity level.
func New(v Verbosity) *Compactor {
	return &Compactor{Verbosity: v}
}

// Compact returns a copy of f with its raw record compacted. The input is
// never modified.
func (c *Compactor) Compact(f model.Finding) model.Finding {
	if f.Raw == nil {
		return f
	}
	switch c.Verbosity {
	case Minimal:
		f.Raw = nil
	case Standard:
		f.Raw = compactFields(f.Raw)
	}
	return f
}

// Summary renders a finding as a single line for console listings.
func Summary(f model.Finding) string {
	var b strings.Builder
	b.WriteByte('[')
	if f.Timestamp.IsZero() {
		b.WriteString("-")
	} else {
		b.WriteString(f.Timestamp.Format(time.DateTime))
	}
	b.WriteString("] ")
	b.WriteString(f.Computer)
	b.WriteString(" - ")
	b.WriteString(f.EventName)
	return truncate(b.String(), 160)
}

// compactFields drops empty values and Windows "-" placeholders and truncates
// long strings. Nested values are kept as-is.
func compactFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			s := strings.TrimSpace(val)
			if s == "" || s == "-" {
				continue
			}
			out[k] = truncate(val, maxValueLen)
		case []any:
			if len(val) == 0 {
				continue
			}
			out[k] = val
		default:
			out[k] = v
		}
	}
	return out
}

// truncate shortens s to at most maxRunes runes, appending "..." when cut.
func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	i := 0
	for pos := range s {
		if i == maxRunes {
			return s[:pos] + "..."
		}
		i++
	}
	return s
}
