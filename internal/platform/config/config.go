// Package config loads process configuration from an optional dotenv file in
// the application root, with OS environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	strs "github.com/jardisPsr/foundation/pkg/platform/strings"
)

// EnvFile is the dotenv file looked up in the application root.
const EnvFile = ".env"

// Config is the full process configuration.
type Config struct {
	AppRoot    string
	DomainRoot string

	Server         Server
	Log            LogConfig
	Cache          CacheConfig
	RedisCache     RedisConfig
	RedisMessaging RedisConfig
	Database       DatabaseConfig
	Kafka          KafkaConfig
	AMQP           AMQPConfig
	Messaging      MessagingConfig

	// Env holds every known key with upper-case names, as exposed through
	// the kernel.
	Env map[string]any
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
}

type LogConfig struct {
	Mode  string // production | development
	Level string // debug | info | warn | error
}

type CacheConfig struct {
	Driver     string // memory | redis | "" (disabled)
	Prefix     string
	DefaultTTL time.Duration
}

// RedisConfig describes one Redis client. An empty URL means the client is
// not configured.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig describes the SQL writer and its read replicas.
type DatabaseConfig struct {
	Driver          string // pgx | postgres
	WriterDSN       string
	ReaderDSNs      []string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	ClientID      string
	ConsumerGroup string
	Topics        []string
	CreateTopics  bool
}

type AMQPConfig struct {
	URL      string
	Exchange string
	Queue    string
}

type MessagingConfig struct {
	Driver string // kafka | redis | amqp | memory | "" (disabled)
	// EventTopic receives domain events of successful bounded-context
	// executions. Empty disables publishing.
	EventTopic string
}

var defaults = map[string]any{
	"server_addr":           ":8080",
	"log_mode":              "development",
	"log_level":             "info",
	"cache_driver":          "memory",
	"cache_prefix":          "foundation:",
	"cache_default_ttl":     "10m",
	"redis_pool_size":       10,
	"redis_min_idle_conns":  2,
	"redis_dial_timeout":    "5s",
	"redis_read_timeout":    "3s",
	"redis_write_timeout":   "3s",
	"db_driver":             "pgx",
	"db_max_open_conns":     20,
	"db_max_idle_conns":     5,
	"db_conn_max_lifetime":  "30m",
	"kafka_client_id":       "foundation",
	"kafka_consumer_group":  "foundation",
	"kafka_create_topics":   false,
	"amqp_exchange":         "foundation",
	"messaging_driver":      "",
	"messaging_event_topic": "",
	"redis_url":             "",
	"redis_messaging_url":   "",
	"db_writer_dsn":         "",
	"db_reader_dsns":        "",
	"kafka_brokers":         "",
	"kafka_topics":          "",
	"amqp_url":              "",
	"amqp_queue":            "",
	"domain_root":           "",
}

// Load reads <appRoot>/.env when present and overlays the OS environment.
// appRoot must be absolute.
func Load(appRoot string) (Config, error) {
	if !filepath.IsAbs(appRoot) {
		return Config{}, fmt.Errorf("app root %q is not absolute", appRoot)
	}
	appRoot = filepath.Clean(appRoot)

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()

	envPath := filepath.Join(appRoot, EnvFile)
	if _, err := os.Stat(envPath); err == nil {
		v.SetConfigFile(envPath)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read %s: %w", envPath, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("stat %s: %w", envPath, err)
	}

	domainRoot := v.GetString("domain_root")
	switch {
	case domainRoot == "":
		domainRoot = filepath.Join(appRoot, "domain")
	case !filepath.IsAbs(domainRoot):
		domainRoot = filepath.Join(appRoot, domainRoot)
	}

	cfg := Config{
		AppRoot:    appRoot,
		DomainRoot: filepath.Clean(domainRoot),
		Server:     Server{Addr: v.GetString("server_addr")},
		Log: LogConfig{
			Mode:  v.GetString("log_mode"),
			Level: v.GetString("log_level"),
		},
		Cache: CacheConfig{
			Driver:     strings.ToLower(v.GetString("cache_driver")),
			Prefix:     v.GetString("cache_prefix"),
			DefaultTTL: v.GetDuration("cache_default_ttl"),
		},
		RedisCache:     redisConfig(v, v.GetString("redis_url")),
		RedisMessaging: redisConfig(v, firstNonEmpty(v.GetString("redis_messaging_url"), v.GetString("redis_url"))),
		Database: DatabaseConfig{
			Driver:          v.GetString("db_driver"),
			WriterDSN:       v.GetString("db_writer_dsn"),
			ReaderDSNs:      strs.Split(v.GetString("db_reader_dsns"), ","),
			MaxOpenConns:    v.GetInt("db_max_open_conns"),
			MaxIdleConns:    v.GetInt("db_max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db_conn_max_lifetime"),
		},
		Kafka: KafkaConfig{
			Brokers:       strs.DedupeAndTrim(strs.Split(v.GetString("kafka_brokers"), ",")),
			ClientID:      v.GetString("kafka_client_id"),
			ConsumerGroup: v.GetString("kafka_consumer_group"),
			Topics:        strs.DedupeAndTrim(strs.Split(v.GetString("kafka_topics"), ",")),
			CreateTopics:  v.GetBool("kafka_create_topics"),
		},
		AMQP: AMQPConfig{
			URL:      v.GetString("amqp_url"),
			Exchange: v.GetString("amqp_exchange"),
			Queue:    v.GetString("amqp_queue"),
		},
		Messaging: MessagingConfig{
			Driver:     strings.ToLower(v.GetString("messaging_driver")),
			EventTopic: v.GetString("messaging_event_topic"),
		},
	}

	cfg.Env = make(map[string]any, len(v.AllKeys())+2)
	for _, key := range v.AllKeys() {
		cfg.Env[strings.ToUpper(key)] = v.Get(key)
	}
	cfg.Env["APP_ROOT"] = cfg.AppRoot
	cfg.Env["DOMAIN_ROOT"] = cfg.DomainRoot

	return cfg, nil
}

func redisConfig(v *viper.Viper, url string) RedisConfig {
	return RedisConfig{
		URL:          url,
		PoolSize:     v.GetInt("redis_pool_size"),
		MinIdleConns: v.GetInt("redis_min_idle_conns"),
		DialTimeout:  v.GetDuration("redis_dial_timeout"),
		ReadTimeout:  v.GetDuration("redis_read_timeout"),
		WriteTimeout: v.GetDuration("redis_write_timeout"),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
