package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	pkgconfig "github.com/weiawesome/wes-io-collab/pkg/config"
	"github.com/weiawesome/wes-io-collab/pkg/pubsub"
)

// Drivers for pluggable components.
const (
	StoreDriverRedis  = "redis"
	StoreDriverMemory = "memory"

	PresenceDriverMemory = "memory"
	PresenceDriverRedis  = "redis"

	BroadcastDriverLocal = "local"
	BroadcastDriverRedis = pubsub.DriverRedis
	BroadcastDriverKafka = pubsub.DriverKafka
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Redis     RedisConfig
	Store     StoreConfig
	Presence  PresenceConfig
	Broadcast BroadcastConfig
	Kafka     KafkaConfig
	Archive   ArchiveConfig
	Session   SessionConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host       string
	Port       int
	InstanceID string `mapstructure:"instance_id"`
}

type WebSocketConfig struct {
	Path           string
	PingInterval   time.Duration `mapstructure:"-"`
	PongWait       time.Duration `mapstructure:"-"`
	WriteWait      time.Duration `mapstructure:"-"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"-"`
	WriteTimeout time.Duration `mapstructure:"-"`
}

// StoreConfig selects the room State Store. KeyPrefix is prepended to the
// `{room}_content` style keys; KeyTTL > 0 expires abandoned rooms.
type StoreConfig struct {
	Driver    string
	KeyPrefix string        `mapstructure:"key_prefix"`
	KeyTTL    time.Duration `mapstructure:"-"`
}

type PresenceConfig struct {
	Driver    string
	KeyPrefix string `mapstructure:"key_prefix"`
}

type BroadcastConfig struct {
	Driver     string
	BufferSize int `mapstructure:"buffer_size"`
}

type KafkaConfig struct {
	Brokers    string
	Partitions int
	GroupID    string `mapstructure:"group_id"`
}

type ArchiveConfig struct {
	Enabled bool
	Topic   string
}

type SessionConfig struct {
	DefaultDuration time.Duration `mapstructure:"-"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper applies defaults and env bindings to v and decodes it.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.instance_id", "INSTANCE_ID")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("store.driver", "STORE_DRIVER")
	v.BindEnv("presence.driver", "PRESENCE_DRIVER")
	v.BindEnv("broadcast.driver", "BROADCAST_DRIVER")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("archive.enabled", "ARCHIVE_ENABLED")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Durations are read as strings so a bad value falls back to its default.
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.Redis.ReadTimeout = pkgconfig.Duration(v, "redis.read_timeout", 3*time.Second)
	cfg.Redis.WriteTimeout = pkgconfig.Duration(v, "redis.write_timeout", 3*time.Second)
	cfg.Store.KeyTTL = pkgconfig.Duration(v, "store.key_ttl", 0)
	cfg.Session.DefaultDuration = pkgconfig.Duration(v, "session.default_duration", time.Hour)

	if cfg.Server.InstanceID == "" {
		cfg.Server.InstanceID = uuid.New().String()
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "collab-service"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8089)
	v.SetDefault("server.instance_id", "")
	v.SetDefault("websocket.path", "/collab/ws")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("store.driver", StoreDriverRedis)
	v.SetDefault("store.key_prefix", "")
	v.SetDefault("store.key_ttl", "0s")
	v.SetDefault("presence.driver", PresenceDriverMemory)
	v.SetDefault("presence.key_prefix", "collab:presence")
	v.SetDefault("broadcast.driver", BroadcastDriverLocal)
	v.SetDefault("broadcast.buffer_size", 256)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.partitions", 4)
	v.SetDefault("kafka.group_id", "collab-service")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.topic", "collab-session-snapshots")
	v.SetDefault("session.default_duration", "1h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Validate rejects driver names the service cannot construct.
func (c *Config) Validate() error {
	c.Store.Driver = strings.ToLower(c.Store.Driver)
	c.Presence.Driver = strings.ToLower(c.Presence.Driver)
	c.Broadcast.Driver = strings.ToLower(c.Broadcast.Driver)

	switch c.Store.Driver {
	case StoreDriverRedis, StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	switch c.Presence.Driver {
	case PresenceDriverMemory, PresenceDriverRedis:
	default:
		return fmt.Errorf("unsupported presence driver %q", c.Presence.Driver)
	}
	switch c.Broadcast.Driver {
	case BroadcastDriverLocal, BroadcastDriverRedis, BroadcastDriverKafka:
	default:
		return fmt.Errorf("unsupported broadcast driver %q", c.Broadcast.Driver)
	}
	if c.Broadcast.Driver != BroadcastDriverLocal && c.Presence.Driver == PresenceDriverMemory {
		return fmt.Errorf("broadcast driver %q spans instances and needs presence driver %q", c.Broadcast.Driver, PresenceDriverRedis)
	}
	if c.Session.DefaultDuration <= 0 {
		return fmt.Errorf("session.default_duration must be positive")
	}
	return nil
}

// PubSub derives the pub/sub configuration used by the broadcast relay.
func (c *Config) PubSub() pubsub.Config {
	return pubsub.Config{
		Driver: c.Broadcast.Driver,
		Redis: pubsub.RedisConfig{
			Address:      c.Redis.Address,
			Password:     c.Redis.Password,
			DB:           c.Redis.DB,
			PoolSize:     c.Redis.PoolSize,
			ReadTimeout:  c.Redis.ReadTimeout,
			WriteTimeout: c.Redis.WriteTimeout,
		},
		Kafka: pubsub.KafkaConfig{
			Brokers:    c.Kafka.Brokers,
			GroupID:    c.Kafka.GroupID + "-" + c.Server.InstanceID,
			Partitions: c.Kafka.Partitions,
			Topics:     []string{"collab-to-peers"},
		},
		BufferSize: c.Broadcast.BufferSize,
	}
}
