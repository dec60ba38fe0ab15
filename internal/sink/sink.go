// Package sink publishes selected traders to downstream consumers.
package sink

import (
	"context"

	"trader-alpha-lab/internal/domain"
)

// CandidateSink receives one event per selected trader after a cycle
// commits. Implementations must tolerate duplicate events across
// cycles.
type CandidateSink interface {
	// Publish delivers one candidate event.
	Publish(ctx context.Context, event *domain.CandidateEvent) error

	// Close releases the underlying connection.
	Close() error
}

// NopSink discards every event. Used when no downstream is configured.
type NopSink struct{}

// Compile-time interface check.
var _ CandidateSink = (*NopSink)(nil)

func (NopSink) Publish(context.Context, *domain.CandidateEvent) error { return nil }
func (NopSink) Close() error                                          { return nil }
