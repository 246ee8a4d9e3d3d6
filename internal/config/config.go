package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/weiawesome/wes-io-live/party-service/internal/reconcile"
	pkgconfig "github.com/weiawesome/wes-io-live/party-service/pkg/config"
	"github.com/weiawesome/wes-io-live/party-service/pkg/database"
	"github.com/weiawesome/wes-io-live/party-service/pkg/jwt"
	"github.com/weiawesome/wes-io-live/party-service/pkg/pubsub"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Auth      jwt.Config
	Redis     RedisConfig
	Bus       pubsub.Config
	Reconcile reconcile.Config
	Catalog   CatalogConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host       string
	Port       int
	InstanceID string        `mapstructure:"instance_id"`
	WSPath     string        `mapstructure:"ws_path"`
	OpTimeout  time.Duration `mapstructure:"op_timeout"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type RedisConfig struct {
	Address    string
	Password   string
	DB         int
	PoolSize   int    `mapstructure:"pool_size"`
	RoomPrefix string `mapstructure:"room_prefix"`
}

type CatalogConfig struct {
	Enabled  bool
	Database database.Config
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Options lets callers (tests, alternative entry points) point Load at a
// specific config directory.
type Options = pkgconfig.Options

func Load() (*Config, error) {
	return LoadWith(Options{Path: "./config", Name: "config"})
}

func LoadWith(opts Options) (*Config, error) {
	v, err := pkgconfig.Load(opts)
	if err != nil {
		return nil, err
	}

	setDefaults(v)
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Parse durations
	cfg.Server.OpTimeout = parseDuration(v, "server.op_timeout", 5*time.Second)
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Auth.TTL = parseDuration(v, "auth.ttl", 24*time.Hour)
	cfg.Auth.Leeway = parseDuration(v, "auth.leeway", 0)
	cfg.Reconcile.DuplicateTolerance = parseDuration(v, "reconcile.duplicate_tolerance", 2*time.Second)
	cfg.Reconcile.Throttle = parseDuration(v, "reconcile.throttle", time.Second)
	cfg.Reconcile.PulseDelay = parseDuration(v, "reconcile.pulse_delay", time.Second)
	cfg.Reconcile.PulseStep = parseDuration(v, "reconcile.pulse_step", time.Second)

	if cfg.Server.InstanceID == "" {
		cfg.Server.InstanceID = defaultInstanceID()
	}
	cfg.Bus.InstanceID = cfg.Server.InstanceID

	// The redis bus driver shares the room store's connection settings.
	cfg.Bus.Redis.Address = cfg.Redis.Address
	cfg.Bus.Redis.Password = cfg.Redis.Password
	cfg.Bus.Redis.DB = cfg.Redis.DB
	cfg.Bus.Redis.PoolSize = cfg.Redis.PoolSize

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.instance_id", "")
	v.SetDefault("server.ws_path", "/ws")
	v.SetDefault("server.op_timeout", "5s")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("auth.algorithm", jwt.AlgHS256)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.public_key", "")
	v.SetDefault("auth.private_key", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.ttl", "24h")
	v.SetDefault("auth.leeway", "0s")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.room_prefix", "party:room")
	v.SetDefault("bus.driver", "redis")
	v.SetDefault("bus.buffer_size", 256)
	v.SetDefault("bus.kafka.brokers", "localhost:9092")
	v.SetDefault("bus.kafka.topic", "party-room-events")
	v.SetDefault("bus.kafka.group_id", "party-service")
	v.SetDefault("bus.kafka.partitions", 8)
	v.SetDefault("reconcile.duplicate_tolerance", "2s")
	v.SetDefault("reconcile.throttle", "1s")
	v.SetDefault("reconcile.pulse_delay", "1s")
	v.SetDefault("reconcile.pulse_step", "1s")
	v.SetDefault("catalog.enabled", true)
	v.SetDefault("catalog.database.driver", "sqlite")
	v.SetDefault("catalog.database.file_path", "party.db")
	v.SetDefault("catalog.database.max_idle_conns", 5)
	v.SetDefault("catalog.database.max_open_conns", 10)
	v.SetDefault("catalog.database.conn_max_lifetime", 60)
	v.SetDefault("catalog.database.log_level", "warn")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Override from environment
func bindEnv(v *viper.Viper) {
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.instance_id", "INSTANCE_ID")
	v.BindEnv("auth.algorithm", "JWT_ALGORITHM")
	v.BindEnv("auth.secret", "JWT_SECRET")
	v.BindEnv("auth.public_key", "JWT_PUBLIC_KEY")
	v.BindEnv("auth.private_key", "JWT_PRIVATE_KEY")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("bus.driver", "BUS_DRIVER")
	v.BindEnv("bus.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("bus.kafka.topic", "KAFKA_TOPIC")
	v.BindEnv("catalog.enabled", "CATALOG_ENABLED")
	v.BindEnv("catalog.database.driver", "DB_DRIVER")
	v.BindEnv("catalog.database.host", "DB_HOST")
	v.BindEnv("catalog.database.port", "DB_PORT")
	v.BindEnv("catalog.database.user", "DB_USER")
	v.BindEnv("catalog.database.password", "DB_PASSWORD")
	v.BindEnv("catalog.database.dbname", "DB_NAME")
	v.BindEnv("catalog.database.file_path", "DB_FILE_PATH")
	v.BindEnv("log.level", "LOG_LEVEL")
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Server.WSPath == "" || c.Server.WSPath[0] != '/' {
		return fmt.Errorf("invalid server.ws_path %q", c.Server.WSPath)
	}
	switch c.Bus.Driver {
	case "redis", "kafka":
	default:
		return fmt.Errorf("unsupported bus.driver %q", c.Bus.Driver)
	}
	return nil
}

func defaultInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "party"
	}
	return fmt.Sprintf("%s-%s", host, uuid.New().String()[:8])
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
