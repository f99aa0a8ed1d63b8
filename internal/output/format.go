package output

import (
	"fmt"
	"strings"

	"github.com/crimson-sun/sectriage/internal/engine/compactor"
	"github.com/crimson-sun/sectriage/internal/model"
)

// Format selects how line-oriented outputs render a finding.
type Format int

const (
	JSON Format = iota // one JSON object per line
	Text               // one human-readable line
)

// ParseFormat maps "json" or "text" to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return JSON, nil
	case "text":
		return Text, nil
	default:
		return JSON, fmt.Errorf("unknown output format %q", s)
	}
}

func (f Format) String() string {
	if f == Text {
		return "text"
	}
	return "json"
}

// FormatFinding returns a copy of the finding with its raw record trimmed for
// rendering. At Minimal the raw record is dropped (omitted from JSON via
// omitempty). At Standard empty and "-" fields are dropped and long values
// shortened. At Full the finding is returned as-is.
func FormatFinding(f model.Finding, verbosity compactor.Verbosity) model.Finding {
	return compactor.New(verbosity).Compact(f)
}

// TextLine renders a finding as a single human-readable line.
func TextLine(f model.Finding) string {
	return fmt.Sprintf("%s score=%d user=%s reasons=%q",
		compactor.Summary(f), f.Score, f.User, f.ReasonText())
}
