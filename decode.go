package hxbus

import "net/http"

// Decode checks whether the round trip r was issued by this observer and,
// if so, queues an action event for it.
//
// The event is delivered in the apply-request-values phase when the
// observer is immediate, in invoke-application otherwise. A missing or
// different source leaves the queue untouched: several observers may
// share a page and each checks independently.
func (o *Observer) Decode(r *http.Request, q *EventQueue) bool {
	source := SourceID(r)
	if source == "" {
		return false
	}
	if id := o.ClientID(); id == "" || id != source {
		return false
	}

	phase := PhaseInvokeApplication
	if o.durable.Immediate {
		phase = PhaseApplyRequestValues
	}
	q.Enqueue(ActionEvent{Source: o, Phase: phase})
	return true
}
