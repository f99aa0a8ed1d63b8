package connector

import (
	"context"
	"errors"
	"time"

	"github.com/crimson-sun/sectriage/internal/model"
)

// ErrUnsupported is returned by connectors that do not implement a mode.
var ErrUnsupported = errors.New("connector: operation not supported")

// Connector defines the interface all log source connectors must implement.
type Connector interface {
	// Stream opens a long-lived source and sends raw events as they arrive.
	// The channel is closed when the source is exhausted or ctx is cancelled.
	Stream(ctx context.Context, cfg ConnectorConfig) (<-chan model.RawEvent, error)

	// Query fetches a batch of historical events matching the given parameters.
	Query(ctx context.Context, cfg ConnectorConfig, params QueryParams) ([]model.RawEvent, error)
}

// ConnectorConfig holds provider-specific connection settings.
type ConnectorConfig struct {
	Provider string
	APIKey   string
	Endpoint string // URL for remote sources, path for local ones ("-" is stdin)
	Extra    map[string]string
}

// QueryParams defines filters for historical queries. Zero values mean unbounded.
type QueryParams struct {
	Start  time.Time
	End    time.Time
	Limit  int
	Filter string
}

// InRange reports whether ts falls inside the query window. Records with no
// timestamp are always in range.
func (p QueryParams) InRange(ts time.Time) bool {
	if ts.IsZero() {
		return true
	}
	if !p.Start.IsZero() && ts.Before(p.Start) {
		return false
	}
	if !p.End.IsZero() && !ts.Before(p.End) {
		return false
	}
	return true
}
