// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package broadcast

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/encore/internal/logging"
	"github.com/tomtom215/encore/internal/metrics"
	"github.com/tomtom215/encore/internal/models"
)

// DefaultQueueSize is used when New is given a non-positive size.
const DefaultQueueSize = 1024

// ErrTransportPublish wraps every sink failure.
var ErrTransportPublish = errors.New("transport publish failed")

// Sink is a destination for envelopes.
type Sink interface {
	Name() string
	Send(ctx context.Context, env models.Envelope) error
}

// Broadcaster owns the bounded event queue between the watcher and the sinks.
type Broadcaster struct {
	queue chan models.Event
	sinks []Sink
}

// New creates a broadcaster writing to sinks in the given order.
func New(queueSize int, sinks ...Sink) *Broadcaster {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Broadcaster{
		queue: make(chan models.Event, queueSize),
		sinks: sinks,
	}
}

// Publish enqueues event without blocking. When the queue is full the event
// is dropped and counted.
func (b *Broadcaster) Publish(event models.Event) {
	select {
	case b.queue <- event:
		metrics.BroadcastQueueDepth.Set(float64(len(b.queue)))
	default:
		metrics.BroadcastDropped.Inc()
		logging.Warn().
			Str("tenant_id", event.Tenant()).
			Str("type", event.EventType()).
			Int64("emitted_at", event.Emitted()).
			Msg("broadcast queue full, event dropped")
	}
}

// Serve implements suture.Service. Events still queued when ctx is cancelled
// are delivered before Serve returns.
func (b *Broadcaster) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			b.drain()
			return ctx.Err()
		case event := <-b.queue:
			metrics.BroadcastQueueDepth.Set(float64(len(b.queue)))
			b.deliver(ctx, event)
		}
	}
}

func (b *Broadcaster) drain() {
	ctx := context.Background()
	for {
		select {
		case event := <-b.queue:
			b.deliver(ctx, event)
		default:
			metrics.BroadcastQueueDepth.Set(0)
			return
		}
	}
}

// deliver writes one event to every sink. A failing sink does not prevent
// delivery to the others.
func (b *Broadcaster) deliver(ctx context.Context, event models.Event) {
	env, err := models.NewEnvelope(event)
	if err != nil {
		logging.Error().Err(err).Str("tenant_id", event.Tenant()).Msg("failed to encode event")
		return
	}

	for _, sink := range b.sinks {
		if err := sink.Send(ctx, env); err != nil {
			metrics.RecordPublishFailure(sink.Name())
			logging.Warn().
				Err(fmt.Errorf("%w: %s: %w", ErrTransportPublish, sink.Name(), err)).
				Str("tenant_id", env.TenantID).
				Str("type", env.Type).
				Msg("sink publish failed")
		}
	}
}

// Pending returns the number of queued events.
func (b *Broadcaster) Pending() int {
	return len(b.queue)
}

// Close releases sinks that hold connections.
func (b *Broadcaster) Close() error {
	var errs []error
	for _, sink := range b.sinks {
		if c, ok := sink.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s sink: %w", sink.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
