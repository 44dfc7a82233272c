package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "codex:project:"

// Name returns the Redis pub/sub channel for key.
func Name(prefix, key string) string {
	return prefix + key
}

// RedisDialer connects to project channels over Redis pub/sub.
type RedisDialer struct {
	client redis.UniversalClient
	prefix string
	buffer int
}

func NewRedisDialer(client redis.UniversalClient, prefix string) *RedisDialer {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisDialer{client: client, prefix: prefix, buffer: 64}
}

func (d *RedisDialer) Dial(ctx context.Context, key string) (Conn, error) {
	name := Name(d.prefix, key)
	ps := d.client.Subscribe(ctx, name)

	// The first reply confirms the subscription or reports why it failed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", name, err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &redisConn{
		client:   d.client,
		ps:       ps,
		name:     name,
		messages: make(chan []byte, d.buffer),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
	go c.pump(runCtx)
	return c, nil
}

type redisConn struct {
	client redis.UniversalClient
	ps     *redis.PubSub
	name   string

	messages chan []byte
	done     chan struct{}
	cancel   context.CancelFunc

	mu     sync.Mutex
	err    error
	closed bool
}

func (c *redisConn) Publish(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return errors.New("connection closed")
	default:
	}
	if err := c.client.Publish(ctx, c.name, data).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", c.name, err)
	}
	return nil
}

func (c *redisConn) Messages() <-chan []byte {
	return c.messages
}

func (c *redisConn) Done() <-chan struct{} {
	return c.done
}

func (c *redisConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *redisConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	return c.ps.Close()
}

// pump forwards payloads until the subscription fails or is closed. Any
// receive error ends the connection; reconnecting is the manager's job.
func (c *redisConn) pump(ctx context.Context) {
	defer close(c.done)
	defer close(c.messages)

	for {
		msg, err := c.ps.ReceiveMessage(ctx)
		if err != nil {
			c.mu.Lock()
			if !c.closed {
				c.err = err
			}
			c.mu.Unlock()
			return
		}

		select {
		case c.messages <- []byte(msg.Payload):
		case <-ctx.Done():
			return
		}
	}
}

// Publisher sends events to project channels without subscribing to them. It
// is used by processes that only produce messages, such as the assistant
// worker and the HTTP message endpoint.
type Publisher struct {
	client redis.UniversalClient
	prefix string
}

func NewPublisher(client redis.UniversalClient, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Publisher{client: client, prefix: prefix}
}

func (p *Publisher) Publish(ctx context.Context, key, event string, payload any) error {
	data, err := Encode(event, "", payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event, err)
	}
	name := Name(p.prefix, key)
	if err := p.client.Publish(ctx, name, data).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", name, err)
	}
	return nil
}
