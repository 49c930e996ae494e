package push

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/pthm/hxbus/internal/metrics"
)

const topicPrefix = "hxbus."

// Memory is an in-process broker backed by a watermill go channel.
type Memory struct {
	mu     sync.RWMutex
	pubsub *gochannel.GoChannel
	closed bool
}

// NewMemory creates an in-process broker.
func NewMemory() *Memory {
	return &Memory{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 64,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
	}
}

// Publish implements Broker.
func (b *Memory) Publish(ctx context.Context, m Message) error {
	m = m.Normalize()
	if err := validate(m); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := b.pubsub.Publish(topicPrefix+m.Group, msg); err != nil {
		return fmt.Errorf("push: publish: %w", err)
	}
	metrics.PushMessages.WithLabelValues("memory", "out").Inc()
	return nil
}

// Subscribe implements Broker.
func (b *Memory) Subscribe(ctx context.Context, group string) (<-chan Message, error) {
	if group == "" {
		group = Message{}.Normalize().Group
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}

	in, err := b.pubsub.Subscribe(ctx, topicPrefix+group)
	if err != nil {
		return nil, fmt.Errorf("push: subscribe: %w", err)
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		for msg := range in {
			var m Message
			err := json.Unmarshal(msg.Payload, &m)
			msg.Ack()
			if err != nil {
				continue
			}
			metrics.PushMessages.WithLabelValues("memory", "in").Inc()
			select {
			case out <- m:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close closes the broker and every subscription.
func (b *Memory) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}
