package stream

import (
	"context"

	"cc-intelligence-be/pkg/research"
)

// Stream is one open research stream. The event channel is closed after the
// terminal event is delivered or the stream is cancelled.
//
// Guarantees: at most one terminal event per stream; if the transport dies
// before a terminal event the stream synthesizes a failed event rather than
// leaving the consumer waiting.
type Stream interface {
	// Events yields the ordered event sequence for this stream.
	Events() <-chan research.Event

	// Cancel closes the underlying connection and suppresses any further
	// event delivery. Idempotent; safe to call after natural completion.
	Cancel()
}

// Client opens one streaming connection per (company, research-area) request.
// Real and simulated producers are interchangeable behind this interface.
type Client interface {
	Open(ctx context.Context, areaID research.AreaID, company string) (Stream, error)
}
