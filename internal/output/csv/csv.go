package csv

import (
	"context"
	stdcsv "encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/crimson-sun/sectriage/internal/model"
)

// Header is the fixed column order of the export.
var Header = []string{
	"timestamp", "event_id", "event_name", "computer", "user",
	"suspicious_score", "reasons", "raw_data",
}

// Output writes findings as CSV rows with a header line.
type Output struct {
	mu     sync.Mutex
	w      *stdcsv.Writer
	closer io.Closer
}

// New creates (truncating) the CSV file at path and writes the header.
func New(path string) (*Output, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv output: create %s: %w", path, err)
	}
	o, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	o.closer = f
	return o, nil
}

// NewWriter writes CSV to w. Close does not close w.
func NewWriter(w io.Writer) (*Output, error) {
	cw := stdcsv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return nil, fmt.Errorf("csv output: header: %w", err)
	}
	return &Output{w: cw}, nil
}

// Row renders a finding in Header order.
func Row(f model.Finding) ([]string, error) {
	ts := ""
	if !f.Timestamp.IsZero() {
		ts = f.Timestamp.Format(time.RFC3339)
	}
	raw := ""
	if f.Raw != nil {
		data, err := json.Marshal(f.Raw)
		if err != nil {
			return nil, fmt.Errorf("csv output: marshal raw: %w", err)
		}
		raw = string(data)
	}
	return []string{
		ts,
		strconv.Itoa(f.EventID),
		f.EventName,
		f.Computer,
		f.User,
		strconv.Itoa(f.Score),
		f.ReasonText(),
		raw,
	}, nil
}

func (o *Output) Write(_ context.Context, f model.Finding) error {
	row, err := Row(f)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.w.Write(row); err != nil {
		return fmt.Errorf("csv output: write: %w", err)
	}
	return nil
}

// Flush writes buffered rows through.
func (o *Output) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.w.Flush()
	if err := o.w.Error(); err != nil {
		return fmt.Errorf("csv output: flush: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	err := o.Flush()
	if o.closer != nil {
		if cerr := o.closer.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("csv output: close: %w", cerr)
		}
	}
	return err
}
