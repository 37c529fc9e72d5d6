package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type KafkaOptions struct {
	Brokers        []string
	GroupPrefix    string
	PublishTimeout time.Duration
}

// kafkaBus maps channels onto topics. Each Subscribe joins a fresh consumer
// group positioned at the newest offset, which gives every subscriber its own
// copy of each message and skips anything published while it was away.
type kafkaBus struct {
	opts   KafkaOptions
	writer *kafka.Writer
}

func NewKafkaBus(opts KafkaOptions) Bus {
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 3 * time.Second
	}
	if opts.GroupPrefix == "" {
		opts.GroupPrefix = "socialnet"
	}
	return &kafkaBus{
		opts: opts,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(opts.Brokers...),
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			WriteTimeout:           opts.PublishTimeout,
			MaxAttempts:            1,
		},
	}
}

func (b *kafkaBus) Publish(ctx context.Context, channel string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, b.opts.PublishTimeout)
	defer cancel()

	err := b.writer.WriteMessages(ctx, kafka.Message{
		Topic: channel,
		Value: payload,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%w: publish %s: %v", ErrBusUnavailable, channel, err)
	}
	return nil
}

func (b *kafkaBus) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(b.opts.Brokers) == 0 {
		return nil, fmt.Errorf("%w: no kafka brokers configured", ErrBusUnavailable)
	}

	dialCtx, cancel := context.WithTimeout(ctx, b.opts.PublishTimeout)
	defer cancel()
	conn, err := (&kafka.Dialer{Timeout: b.opts.PublishTimeout}).DialContext(dialCtx, "tcp", b.opts.Brokers[0])
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe %s: %v", ErrBusUnavailable, channel, err)
	}
	_ = conn.Close()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.opts.Brokers,
		GroupID:     fmt.Sprintf("%s-%s-%s", b.opts.GroupPrefix, channel, uuid.NewString()),
		Topic:       channel,
		MinBytes:    1,
		MaxBytes:    10 << 20,
		StartOffset: kafka.LastOffset,
		MaxWait:     time.Second,
	})
	return &kafkaSubscription{reader: reader}, nil
}

func (b *kafkaBus) Close() error {
	return b.writer.Close()
}

type kafkaSubscription struct {
	reader *kafka.Reader
}

func (s *kafkaSubscription) Next(ctx context.Context) (Message, error) {
	m, err := s.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Message{}, ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			return Message{}, ErrClosed
		}
		return Message{}, fmt.Errorf("%w: read: %v", ErrBusUnavailable, err)
	}
	return Message{Channel: m.Topic, Payload: m.Value}, nil
}

func (s *kafkaSubscription) Close() error {
	return s.reader.Close()
}
