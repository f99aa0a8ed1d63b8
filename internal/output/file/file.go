package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/crimson-sun/sectriage/internal/engine/compactor"
	"github.com/crimson-sun/sectriage/internal/model"
	"github.com/crimson-sun/sectriage/internal/output"
)

const defaultBufSize = 64 * 1024 // 64KB

// Option configures a file Output.
type Option func(*Output)

// WithMaxSize sets the file size in megabytes at which rotation triggers.
// 0 (default) disables rotation.
func WithMaxSize(mb int) Option {
	return func(o *Output) { o.maxSizeMB = mb }
}

// WithMaxBackups sets how many rotated files are kept. 0 keeps all.
func WithMaxBackups(n int) Option {
	return func(o *Output) { o.maxBackups = n }
}

// WithCompress gzips rotated files.
func WithCompress() Option {
	return func(o *Output) { o.compress = true }
}

// WithBufSize sets the bufio.Writer buffer size. Default: 64KB.
func WithBufSize(bytes int) Option {
	return func(o *Output) { o.bufSize = bytes }
}

// Output writes NDJSON findings to a file with buffered I/O. With a max size
// set, rotation is delegated to lumberjack.
type Output struct {
	w          *bufio.Writer
	sink       interface{ Close() error }
	mu         sync.Mutex
	path       string
	verbosity  compactor.Verbosity
	maxSizeMB  int
	maxBackups int
	compress   bool
	bufSize    int
}

// New creates a file output that appends NDJSON to the given path.
func New(path string, verbosity compactor.Verbosity, opts ...Option) (*Output, error) {
	o := &Output{
		path:      path,
		verbosity: verbosity,
		bufSize:   defaultBufSize,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.maxSizeMB > 0 {
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    o.maxSizeMB,
			MaxBackups: o.maxBackups,
			Compress:   o.compress,
		}
		o.sink = lj
		o.w = bufio.NewWriterSize(lj, o.bufSize)
		return o, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file output: open %s: %w", path, err)
	}
	o.sink = f
	o.w = bufio.NewWriterSize(f, o.bufSize)
	return o, nil
}

// Write JSON-encodes the finding and appends it as a line to the file.
func (o *Output) Write(_ context.Context, f model.Finding) error {
	formatted := output.FormatFinding(f, o.verbosity)
	data, err := json.Marshal(formatted)
	if err != nil {
		return fmt.Errorf("file output: marshal: %w", err)
	}
	data = append(data, '\n')

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, err := o.w.Write(data); err != nil {
		return fmt.Errorf("file output: write: %w", err)
	}
	return nil
}

// Flush writes buffered findings through to the file.
func (o *Output) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.w.Flush(); err != nil {
		return fmt.Errorf("file output: flush: %w", err)
	}
	return nil
}

// Close flushes the buffer and closes the file.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.w.Flush(); err != nil {
		o.sink.Close()
		return fmt.Errorf("file output: flush: %w", err)
	}
	return o.sink.Close()
}
