package analytics

import (
	"context"
	"fmt"
	"time"
)

// Reporter answers read queries over the event log.
type Reporter struct {
	events EventStore
	source TimeSource
	now    func() time.Time
}

// NewReporter creates a reporter windowing summaries on the given time source.
func NewReporter(events EventStore, source TimeSource) *Reporter {
	return &Reporter{events: events, source: source, now: time.Now}
}

// Query returns one page of filtered events and the total number of matches.
func (r *Reporter) Query(ctx context.Context, f Filter) (Page, error) {
	events, err := r.events.Events(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("%w: read events: %w", ErrStorage, err)
	}

	return Query(events, f), nil
}

// Summary computes a fresh summary as of now.
func (r *Reporter) Summary(ctx context.Context) (*Report, error) {
	return r.SummaryAt(ctx, r.now())
}

// SummaryAt computes a fresh summary as of the given instant.
func (r *Reporter) SummaryAt(ctx context.Context, now time.Time) (*Report, error) {
	events, err := r.events.Events(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read events: %w", ErrStorage, err)
	}

	return Summarize(events, now, r.source), nil
}
