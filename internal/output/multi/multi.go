package multi

import (
	"context"
	"errors"

	"github.com/crimson-sun/sectriage/internal/metrics"
	"github.com/crimson-sun/sectriage/internal/model"
	"github.com/crimson-sun/sectriage/internal/output"
)

// named attaches a metrics label to an output.
type named struct {
	output.Output
	name string
}

func (n named) Flush() error { return output.Flush(n.Output) }

// Named labels o for the output error metric.
func Named(name string, o output.Output) output.Output {
	return named{Output: o, name: name}
}

func nameOf(o output.Output) string {
	if n, ok := o.(named); ok {
		return n.name
	}
	return "output"
}

// Multi fans out findings to multiple output.Output implementations.
// Each Write call delivers the finding to every wrapped output sequentially.
// If one output fails, the remaining outputs still receive the finding.
type Multi struct {
	outputs []output.Output
}

// New creates a Multi that fans out to the given outputs.
func New(outputs ...output.Output) *Multi {
	return &Multi{outputs: outputs}
}

// Len returns the number of wrapped outputs.
func (m *Multi) Len() int { return len(m.outputs) }

// Write delivers the finding to every wrapped output. Errors are collected
// but do not prevent delivery to subsequent outputs.
func (m *Multi) Write(ctx context.Context, f model.Finding) error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Write(ctx, f); err != nil {
			metrics.OutputErrors.WithLabelValues(nameOf(o)).Inc()
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush flushes every buffered output, collecting errors.
func (m *Multi) Flush() error {
	var errs []error
	for _, o := range m.outputs {
		if err := output.Flush(o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close calls Close on every wrapped output, collecting errors.
func (m *Multi) Close() error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
