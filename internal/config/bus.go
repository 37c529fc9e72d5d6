package config

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"socialnet/internal/bus"
)

// NewBus builds the message bus selected by BUS_DRIVER. The redis driver
// shares the given client.
func NewBus(cfg *Config, rdb *redis.Client) (bus.Bus, error) {
	switch cfg.BusDriver {
	case "", "redis":
		return bus.NewRedisBus(rdb, bus.RedisOptions{
			PublishTimeout: cfg.BusPublishTimeout,
		}), nil
	case "kafka":
		return bus.NewKafkaBus(bus.KafkaOptions{
			Brokers:        cfg.KafkaBrokers,
			GroupPrefix:    cfg.KafkaGroupPrefix,
			PublishTimeout: cfg.BusPublishTimeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown BUS_DRIVER %q", cfg.BusDriver)
	}
}

func (c *Config) ConsumerOptions() bus.ConsumerOptions {
	return bus.ConsumerOptions{
		HandlerTimeout: c.BusHandlerTimeout,
		MaxBackoff:     c.BusReconnectMaxWait,
	}
}
