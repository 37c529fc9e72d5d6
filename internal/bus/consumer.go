package bus

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"socialnet/internal/pkg/metrics"
)

type ConsumerOptions struct {
	HandlerTimeout time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Consumer drives a subscription for the lifetime of a context, resubscribing
// with exponential backoff whenever the stream fails or terminates.
type Consumer struct {
	sub  Subscriber
	log  *zap.Logger
	opts ConsumerOptions
}

func NewConsumer(sub Subscriber, log *zap.Logger, opts ConsumerOptions) *Consumer {
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = 5 * time.Second
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 250 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	return &Consumer{sub: sub, log: log, opts: opts}
}

// Run blocks until ctx is cancelled. It only returns nil.
func (c *Consumer) Run(ctx context.Context, channel string, h Handler) error {
	log := c.log.With(zap.String("channel", channel))
	bo := c.newBackOff()

	for {
		sub, err := c.sub.Subscribe(ctx, channel)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.BusReconnects.WithLabelValues(channel).Inc()
			wait := bo.NextBackOff()
			log.Warn("subscribe failed", zap.Error(err), zap.Duration("retry_in", wait))
			if !sleep(ctx, wait) {
				return nil
			}
			continue
		}

		log.Info("subscribed")

		err = c.drain(ctx, sub, channel, h, bo)
		_ = sub.Close()
		if ctx.Err() != nil {
			log.Info("consumer stopped")
			return nil
		}

		metrics.BusReconnects.WithLabelValues(channel).Inc()
		wait := bo.NextBackOff()
		log.Warn("subscription terminated", zap.Error(err), zap.Duration("retry_in", wait))
		if !sleep(ctx, wait) {
			return nil
		}
	}
}

// drain resets the backoff only once a message arrives, so a subscription that
// connects and dies straight away keeps backing off.
func (c *Consumer) drain(ctx context.Context, sub Subscription, channel string, h Handler, bo backoff.BackOff) error {
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return err
		}
		bo.Reset()
		c.dispatch(ctx, channel, msg, h)
	}
}

func (c *Consumer) dispatch(ctx context.Context, channel string, msg Message, h Handler) {
	hctx, cancel := context.WithTimeout(ctx, c.opts.HandlerTimeout)
	defer cancel()

	outcome := "ok"
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			c.log.Error("handler panicked",
				zap.String("channel", channel),
				zap.Any("panic", r),
				zap.ByteString("payload", msg.Payload))
		}
		metrics.BusMessages.WithLabelValues(channel, outcome).Inc()
	}()

	if err := h(hctx, msg); err != nil {
		outcome = "error"
		c.log.Warn("handler failed",
			zap.String("channel", channel),
			zap.Error(err),
			zap.ByteString("payload", msg.Payload))
	}
}

func (c *Consumer) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialBackoff
	b.MaxInterval = c.opts.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d == backoff.Stop {
		d = time.Second
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
