package hxbus

import (
	"context"
	"fmt"

	"github.com/pthm/hxbus/internal/metrics"
)

// ActionEvent is queued when a round trip originates from an observer.
type ActionEvent struct {
	Source *Observer
	Phase  Phase
}

// EventQueue holds the action events of one request, delivered phase by
// phase in the order they were queued. It is request scoped and not safe
// for concurrent use.
type EventQueue struct {
	events []ActionEvent
}

// NewEventQueue creates an empty queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Enqueue adds an event.
func (q *EventQueue) Enqueue(ev ActionEvent) {
	q.events = append(q.events, ev)
	metrics.ActionsQueued.WithLabelValues(ev.Phase.String()).Inc()
}

// Len returns the number of pending events for phase.
func (q *EventQueue) Len(phase Phase) int {
	n := 0
	for _, ev := range q.events {
		if ev.Phase == phase {
			n++
		}
	}
	return n
}

// Events returns the pending events for phase, in queue order.
func (q *EventQueue) Events(phase Phase) []ActionEvent {
	var out []ActionEvent
	for _, ev := range q.events {
		if ev.Phase == phase {
			out = append(out, ev)
		}
	}
	return out
}

// Deliver removes the events of phase from the queue and hands each to
// its observer's listeners. Delivery stops at the first listener error.
func (q *EventQueue) Deliver(ctx context.Context, phase Phase) error {
	var pending, rest []ActionEvent
	for _, ev := range q.events {
		if ev.Phase == phase {
			pending = append(pending, ev)
		} else {
			rest = append(rest, ev)
		}
	}
	q.events = rest

	ctx = WithPhase(ctx, phase)
	for _, ev := range pending {
		for _, l := range ev.Source.listeners {
			if err := l(ctx, ev); err != nil {
				return fmt.Errorf("action %s: %w", ev.Source.ClientID(), err)
			}
		}
	}
	return nil
}
