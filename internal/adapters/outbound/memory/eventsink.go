// eventsink.go provides an in-memory implementation of EventSink that keeps
// published events for inspection. For production, use the sns adapter.
package memory

import (
	"context"
	"sync"

	"github.com/ideomind/unreal-dashboard/internal/ports/outbound"
)

// Compile-time check that EventSink implements outbound.EventSink
var _ outbound.EventSink = (*EventSink)(nil)

// EventSink is an in-memory implementation of the EventSink port.
// All operations are safe for concurrent use.
type EventSink struct {
	mu     sync.RWMutex
	events []outbound.Event
	closed bool

	// publishErr, when set, is returned by Publish instead of storing the event.
	publishErr error
}

// NewEventSink creates a new in-memory event sink.
func NewEventSink() *EventSink {
	return &EventSink{
		events: make([]outbound.Event, 0),
	}
}

// Publish stores the event in memory. Events published after Close are dropped.
func (s *EventSink) Publish(ctx context.Context, event outbound.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	if s.publishErr != nil {
		return s.publishErr
	}
	s.events = append(s.events, event)
	return nil
}

// Close marks the sink as closed.
func (s *EventSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// GetCreditedEvents returns all payment credited events.
func (s *EventSink) GetCreditedEvents() []outbound.PaymentCreditedEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]outbound.PaymentCreditedEvent, 0)
	for _, e := range s.events {
		if ce, ok := e.(outbound.PaymentCreditedEvent); ok {
			result = append(result, ce)
		}
	}
	return result
}

// GetEventCount returns the number of published events.
func (s *EventSink) GetEventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// FailWith makes subsequent Publish calls return err. Pass nil to recover.
func (s *EventSink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishErr = err
}
