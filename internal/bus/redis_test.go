package bus_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"socialnet/internal/bus"
)

func newTestBus(t *testing.T) (*miniredis.Miniredis, *redis.Client, bus.Bus) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb, bus.NewRedisBus(rdb, bus.RedisOptions{
		PublishTimeout: time.Second,
		PingInterval:   time.Minute,
	})
}

func TestRedisBus_FanOut(t *testing.T) {
	_, _, b := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := b.Subscribe(ctx, "dispatch")
	require.NoError(t, err)
	defer first.Close()
	second, err := b.Subscribe(ctx, "dispatch")
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, b.Publish(ctx, "dispatch", []byte(`{"id":"n1"}`)))

	for _, sub := range []bus.Subscription{first, second} {
		msg, err := sub.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, "dispatch", msg.Channel)
		assert.JSONEq(t, `{"id":"n1"}`, string(msg.Payload))
	}
}

func TestRedisBus_NoBacklogForLateSubscriber(t *testing.T) {
	_, _, b := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, b.Publish(ctx, "dispatch", []byte("early")))

	sub, err := b.Subscribe(ctx, "dispatch")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, b.Publish(ctx, "dispatch", []byte("late")))

	msg, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "late", string(msg.Payload))
}

func TestRedisBus_PublishFailsWhenUnreachable(t *testing.T) {
	mr, _, b := newTestBus(t)
	mr.Close()

	err := b.Publish(context.Background(), "dispatch", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, bus.ErrBusUnavailable))
}

func TestRedisBus_SubscribeFailsWhenUnreachable(t *testing.T) {
	mr, _, b := newTestBus(t)
	mr.Close()

	_, err := b.Subscribe(context.Background(), "dispatch")
	require.Error(t, err)
	assert.True(t, errors.Is(err, bus.ErrBusUnavailable))
}

func TestRedisBus_SubscribeBoundedWhenServerSilent(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	rdb := redis.NewClient(&redis.Options{Addr: ln.Addr().String(), MaxRetries: -1, ReadTimeout: 500 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })
	b := bus.NewRedisBus(rdb, bus.RedisOptions{PublishTimeout: 200 * time.Millisecond, PingInterval: time.Minute})

	start := time.Now()
	_, err = b.Subscribe(context.Background(), "dispatch")

	assert.ErrorIs(t, err, bus.ErrBusUnavailable)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestRedisBus_NextReturnsOnCancel(t *testing.T) {
	_, _, b := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := b.Subscribe(ctx, "dispatch")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := sub.Next(ctx)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Next did not return after cancellation")
	}
}

func TestConsumer_SurvivesFailingHandlers(t *testing.T) {
	_, rdb, b := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []string
	handler := func(ctx context.Context, msg bus.Message) error {
		switch string(msg.Payload) {
		case "boom":
			panic("malformed")
		case "bad":
			return errors.New("cannot handle")
		}
		mu.Lock()
		seen = append(seen, string(msg.Payload))
		mu.Unlock()
		return nil
	}

	c := bus.NewConsumer(b, zap.NewNop(), bus.ConsumerOptions{HandlerTimeout: time.Second})
	stopped := make(chan struct{})
	go func() {
		_ = c.Run(ctx, "comments", handler)
		close(stopped)
	}()

	require.Eventually(t, func() bool {
		n, _ := rdb.PubSubNumSub(context.Background(), "comments").Result()
		return n["comments"] == 1
	}, 3*time.Second, 20*time.Millisecond)

	for _, p := range []string{"boom", "bad", "good"} {
		require.NoError(t, b.Publish(context.Background(), "comments", []byte(p)))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0] == "good"
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumer_ResubscribesAfterOutage(t *testing.T) {
	mr, rdb, b := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received atomic.Int32
	c := bus.NewConsumer(b, zap.NewNop(), bus.ConsumerOptions{
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
	})
	go func() {
		_ = c.Run(ctx, "dispatch", func(ctx context.Context, msg bus.Message) error {
			received.Add(1)
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		n, _ := rdb.PubSubNumSub(context.Background(), "dispatch").Result()
		return n["dispatch"] == 1
	}, 3*time.Second, 20*time.Millisecond)

	mr.Close()
	require.NoError(t, mr.Restart())

	require.Eventually(t, func() bool {
		_ = b.Publish(context.Background(), "dispatch", []byte("after-restart"))
		return received.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)
}
