package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/crimson-sun/sectriage/internal/engine/compactor"
	"github.com/crimson-sun/sectriage/internal/model"
	"github.com/crimson-sun/sectriage/internal/output"
)

// Output writes findings to stdout as NDJSON or text lines.
type Output struct {
	mu        sync.Mutex
	w         io.Writer
	enc       *json.Encoder
	format    output.Format
	verbosity compactor.Verbosity
}

// New creates a new stdout Output with verbosity-aware field omission
// and optional pretty-printed JSON.
func New(verbosity compactor.Verbosity, format output.Format, pretty bool) *Output {
	return NewWriter(os.Stdout, verbosity, format, pretty)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, verbosity compactor.Verbosity, format output.Format, pretty bool) *Output {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return &Output{w: w, enc: enc, format: format, verbosity: verbosity}
}

func (o *Output) Write(_ context.Context, f model.Finding) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	formatted := output.FormatFinding(f, o.verbosity)
	if o.format == output.Text {
		if _, err := fmt.Fprintln(o.w, output.TextLine(formatted)); err != nil {
			return fmt.Errorf("stdout output: %w", err)
		}
		return nil
	}
	if err := o.enc.Encode(formatted); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}
