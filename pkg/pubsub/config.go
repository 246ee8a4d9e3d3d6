package pubsub

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultBufferSize = 256

// KafkaConfig holds Kafka-specific configuration.
type KafkaConfig struct {
	Brokers    string `mapstructure:"brokers"`
	Topic      string `mapstructure:"topic"`
	GroupID    string `mapstructure:"group_id"`
	Partitions int    `mapstructure:"partitions"`
}

// Config holds the configuration for the pub/sub system.
type Config struct {
	Driver     string      `mapstructure:"driver"` // "redis", "kafka"
	BufferSize int         `mapstructure:"buffer_size"`
	InstanceID string      `mapstructure:"instance_id"`
	Redis      RedisConfig `mapstructure:"redis"`
	Kafka      KafkaConfig `mapstructure:"kafka"`
}

// RedisConfig holds Redis-specific configuration.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Driver:     "redis",
		BufferSize: defaultBufferSize,
		Redis: RedisConfig{
			Address:      "localhost:6379",
			Password:     "",
			DB:           0,
			PoolSize:     10,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:    "localhost:9092",
			Topic:      "party-room-events",
			GroupID:    "party-service",
			Partitions: 8,
		},
	}
}

// NewPubSub creates a new PubSub instance based on the configuration.
// For the redis driver an existing client may be shared; pass nil to dial
// a dedicated one from cfg.Redis.
func NewPubSub(cfg Config, client *redis.Client) (PubSub, error) {
	switch cfg.Driver {
	case "kafka":
		return NewKafkaPubSub(cfg.Kafka, cfg.InstanceID, cfg.BufferSize)
	case "redis", "":
		if client != nil {
			return NewRedisPubSubFromClient(client, cfg.BufferSize), nil
		}
		return NewRedisPubSub(cfg.Redis, cfg.BufferSize)
	default:
		return nil, fmt.Errorf("unsupported pubsub driver: %s", cfg.Driver)
	}
}
