// Package push delivers server-originated bus events to browsers.
//
// A Broker fans messages out per group. The WebSocketHandler subscribes a
// browser connection to one group and forwards every message as a text
// frame, which the client runtime hands to hxbus.dispatchSocketMessage.
package push

import (
	"context"
	"errors"
	"strings"

	"github.com/pthm/hxbus"
)

// ErrClosed is returned when using a closed broker.
var ErrClosed = errors.New("push: broker closed")

// Message asks every subscriber of Group to dispatch Events, a
// space-separated list of event names.
type Message struct {
	Group  string `json:"group"`
	Events string `json:"events"`
}

// Normalize applies the default group and trims the events.
func (m Message) Normalize() Message {
	if m.Group == "" {
		m.Group = hxbus.DefaultGroup
	}
	m.Events = strings.Join(strings.Fields(m.Events), " ")
	return m
}

// Broker publishes messages to group subscribers.
type Broker interface {
	// Publish sends m to the current subscribers of m.Group.
	Publish(ctx context.Context, m Message) error
	// Subscribe returns the messages of group until ctx is done, at which
	// point the channel is closed.
	Subscribe(ctx context.Context, group string) (<-chan Message, error)
	Close() error
}

func validate(m Message) error {
	if m.Events == "" {
		return errors.New("push: message has no events")
	}
	return nil
}
