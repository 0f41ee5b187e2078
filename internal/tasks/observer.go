package tasks

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodsort/internal/models"
)

// Observer receives every assignment a run produces, in track-then-assignment order.
// Report is called synchronously from the pipeline.
type Observer interface {
	Report(ctx context.Context, event models.AssignmentEvent)
}

// ObserverFunc adapts a function to [Observer].
type ObserverFunc func(ctx context.Context, event models.AssignmentEvent)

// Report calls f.
func (f ObserverFunc) Report(ctx context.Context, event models.AssignmentEvent) {
	f(ctx, event)
}

// discard is used when a run has no observer.
var discard = ObserverFunc(func(context.Context, models.AssignmentEvent) {})

// ChannelObserver delivers events to a channel, waiting at most timeout for the consumer.
// Events that cannot be delivered in time are dropped and counted.
type ChannelObserver struct {
	ch      chan<- models.AssignmentEvent
	timeout time.Duration
	logger  *log.Logger
	dropped atomic.Int64
}

// NewChannelObserver returns an observer writing to ch. A non-positive timeout waits only for ctx.
func NewChannelObserver(ch chan<- models.AssignmentEvent, timeout time.Duration, logger *log.Logger) *ChannelObserver {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ChannelObserver{ch: ch, timeout: timeout, logger: logger}
}

// Report blocks until the consumer accepts the event, the timeout passes or ctx ends.
func (o *ChannelObserver) Report(ctx context.Context, event models.AssignmentEvent) {
	var expired <-chan time.Time
	if o.timeout > 0 {
		timer := time.NewTimer(o.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case o.ch <- event:
	case <-expired:
		o.dropped.Add(1)
		o.logger.Warn("dropped assignment report", "track", event.Title, "label", event.Label, "timeout", o.timeout)
	case <-ctx.Done():
		o.dropped.Add(1)
	}
}

// Dropped returns the number of events that were not delivered.
func (o *ChannelObserver) Dropped() int64 {
	return o.dropped.Load()
}
