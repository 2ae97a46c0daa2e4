package analytics

import (
	"context"
	"time"
)

// RequestRecord is one pipeline run's usage footprint.
type RequestRecord struct {
	Question    string
	Kind        string
	ResultCount int
	Status      string
	Duration    time.Duration
	CreatedAt   time.Time
}

// Recorder persists usage records. Recording is best-effort: callers log
// and swallow errors, a run never fails on analytics.
type Recorder interface {
	Record(ctx context.Context, rec RequestRecord) error
}

// Noop is used when no database is configured.
type Noop struct{}

func (Noop) Record(ctx context.Context, rec RequestRecord) error { return nil }

var _ Recorder = Noop{}
