package push

import (
	"context"
	"fmt"
	"strings"

	backend "github.com/redis/go-redis/v9"

	"github.com/pthm/hxbus/internal/metrics"
)

// Redis is a broker backed by Redis pub/sub, for deployments with
// several server instances.
type Redis struct {
	client *backend.Client
	prefix string
	owned  bool
}

// RedisOption configures a Redis broker.
type RedisOption func(*Redis)

// WithChannelPrefix sets the prefix of the Redis channels.
func WithChannelPrefix(prefix string) RedisOption {
	return func(b *Redis) {
		b.prefix = prefix
	}
}

// NewRedis creates a Redis broker connected to address.
func NewRedis(address, password string, db int, opts ...RedisOption) *Redis {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	b := NewRedisFromClient(rdb, opts...)
	b.owned = true
	return b
}

// NewRedisFromClient creates a Redis broker from an existing client. The
// client is not closed by Close.
func NewRedisFromClient(client *backend.Client, opts ...RedisOption) *Redis {
	b := &Redis{
		client: client,
		prefix: "hxbus:push:",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Redis) channel(group string) string {
	return b.prefix + group
}

// Publish implements Broker. The Redis payload is the events list.
func (b *Redis) Publish(ctx context.Context, m Message) error {
	m = m.Normalize()
	if err := validate(m); err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel(m.Group), m.Events).Err(); err != nil {
		return fmt.Errorf("push: redis publish: %w", err)
	}
	metrics.PushMessages.WithLabelValues("redis", "out").Inc()
	return nil
}

// Subscribe implements Broker. It returns once Redis has confirmed the
// subscription.
func (b *Redis) Subscribe(ctx context.Context, group string) (<-chan Message, error) {
	if group == "" {
		group = Message{}.Normalize().Group
	}

	ps := b.client.Subscribe(ctx, b.channel(group))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("push: redis subscribe: %w", err)
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		defer ps.Close()

		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				metrics.PushMessages.WithLabelValues("redis", "in").Inc()
				m := Message{
					Group:  strings.TrimPrefix(msg.Channel, b.prefix),
					Events: msg.Payload,
				}
				select {
				case out <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the client if the broker created it.
func (b *Redis) Close() error {
	if b.owned {
		return b.client.Close()
	}
	return nil
}
