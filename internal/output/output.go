package output

import (
	"context"

	"github.com/crimson-sun/sectriage/internal/model"
)

// Output defines the interface for finding destinations.
type Output interface {
	Write(ctx context.Context, f model.Finding) error
	Close() error
}

// Flusher is implemented by buffered outputs. Streaming runs flush
// periodically so findings become visible before Close.
type Flusher interface {
	Flush() error
}

// Flush flushes o if it buffers.
func Flush(o Output) error {
	if f, ok := o.(Flusher); ok {
		return f.Flush()
	}
	return nil
}
