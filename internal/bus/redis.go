package bus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	PublishTimeout time.Duration
	// PingInterval is how long a subscription waits for traffic before
	// probing the connection. A second silent interval marks it dead.
	PingInterval time.Duration
}

type redisBus struct {
	rdb  *redis.Client
	opts RedisOptions
}

func NewRedisBus(rdb *redis.Client, opts RedisOptions) Bus {
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 3 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	return &redisBus{rdb: rdb, opts: opts}
}

func (b *redisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, b.opts.PublishTimeout)
	defer cancel()

	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("%w: publish %s: %v", ErrBusUnavailable, channel, err)
	}
	return nil
}

func (b *redisBus) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := b.rdb.Subscribe(ctx, channel)

	// Wait for the subscribe confirmation so an unreachable server fails here
	// rather than on the first Next.
	if _, err := ps.ReceiveTimeout(ctx, b.opts.PublishTimeout); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %v", ErrBusUnavailable, channel, err)
	}

	sub := &redisSubscription{ps: ps, pingInterval: b.opts.PingInterval}
	// go-redis reads do not observe context cancellation, so closing the
	// PubSub is what unblocks a pending Next.
	sub.stop = context.AfterFunc(ctx, func() { _ = ps.Close() })
	return sub, nil
}

func (b *redisBus) Close() error {
	return nil
}

type redisSubscription struct {
	ps           *redis.PubSub
	pingInterval time.Duration
	stop         func() bool
	pingPending  bool
}

func (s *redisSubscription) Next(ctx context.Context) (Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Message{}, err
		}

		msg, err := s.ps.ReceiveTimeout(ctx, s.pingInterval)
		if err != nil {
			if ctx.Err() != nil {
				return Message{}, ctx.Err()
			}
			if isTimeout(err) {
				if s.pingPending {
					return Message{}, fmt.Errorf("%w: subscription unresponsive", ErrBusUnavailable)
				}
				if err := s.ps.Ping(ctx); err != nil {
					return Message{}, fmt.Errorf("%w: ping: %v", ErrBusUnavailable, err)
				}
				s.pingPending = true
				continue
			}
			if errors.Is(err, redis.ErrClosed) {
				return Message{}, ErrClosed
			}
			return Message{}, fmt.Errorf("%w: receive: %v", ErrBusUnavailable, err)
		}

		s.pingPending = false
		switch m := msg.(type) {
		case *redis.Message:
			return Message{Channel: m.Channel, Payload: []byte(m.Payload)}, nil
		case *redis.Subscription:
			if m.Kind == "unsubscribe" && m.Count == 0 {
				return Message{}, ErrClosed
			}
		case *redis.Pong:
		}
	}
}

func (s *redisSubscription) Close() error {
	if s.stop != nil {
		s.stop()
	}
	return s.ps.Close()
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
