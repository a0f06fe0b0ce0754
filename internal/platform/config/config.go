// Package config loads the server configuration from an optional YAML file
// and ONBOARDING_* environment variables, the latter taking precedence.
// Nested keys use a double underscore: ONBOARDING_FLOW__REDIRECT_DELAY=5s.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "ONBOARDING_"

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Session  SessionConfig  `koanf:"session"`
	Flow     FlowConfig     `koanf:"flow"`
	Gateways GatewaysConfig `koanf:"gateways"`
	Redis    RedisConfig    `koanf:"redis"`
	Audit    AuditConfig    `koanf:"audit"`
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// SessionConfig bounds how long an idle registration session lives.
type SessionConfig struct {
	TTL             time.Duration `koanf:"ttl"`
	JanitorInterval time.Duration `koanf:"janitor_interval"`
}

// FlowConfig holds the user-facing constants of the signup flows.
type FlowConfig struct {
	RedirectDelay   time.Duration `koanf:"redirect_delay"`
	CallbackBaseURL string        `koanf:"callback_base_url"`
	DefaultOTP      string        `koanf:"default_otp"`
	ContentTitle    string        `koanf:"content_title"`
	ContentBody     string        `koanf:"content_description"`
}

// GatewaysConfig points at the OTP and one-click backends. Mock replaces
// both with in-process fakes.
type GatewaysConfig struct {
	Mock        bool          `koanf:"mock"`
	MockLatency time.Duration `koanf:"mock_latency"`
	WalletURL   string        `koanf:"wallet_url"`
	Timeout     time.Duration `koanf:"timeout"`
	OtpURL      string        `koanf:"otp_url"`
	OtpAPIKey   string        `koanf:"otp_api_key"`
	OneClickURL string        `koanf:"oneclick_url"`
	OneClickKey string        `koanf:"oneclick_api_key"`
}

// RedisConfig selects the Redis session store when URL is set.
type RedisConfig struct {
	URL          string        `koanf:"url"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// AuditConfig selects the audit sinks. With Kafka brokers events are
// produced to Topic and, when PostgresDSN is also set, a worker consumes
// them into Postgres. With only a DSN events are written directly.
type AuditConfig struct {
	PostgresDSN  string   `koanf:"postgres_dsn"`
	KafkaBrokers []string `koanf:"kafka_brokers"`
	KafkaTopic   string   `koanf:"kafka_topic"`
	KafkaGroup   string   `koanf:"kafka_group"`
	BufferSize   int      `koanf:"buffer_size"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Session: SessionConfig{
			TTL:             30 * time.Minute,
			JanitorInterval: time.Minute,
		},
		Flow: FlowConfig{
			RedirectDelay: 8 * time.Second,
			DefaultOTP:    "111111",
			ContentTitle:  "Signup",
			ContentBody:   "Register to Slooow",
		},
		Gateways: GatewaysConfig{
			Mock:        true,
			MockLatency: 300 * time.Millisecond,
			WalletURL:   "http://localhost:3001/1-click",
			Timeout:     10 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Audit: AuditConfig{
			KafkaTopic: "onboarding.audit",
			KafkaGroup: "onboarding-audit-writer",
			BufferSize: 256,
		},
	}
}

// Load reads envFile (if present), then path (if set), then the
// environment, over Default.
func Load(path, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	// Comma-separated broker lists arrive from the environment as a string.
	if len(cfg.Audit.KafkaBrokers) == 1 && strings.Contains(cfg.Audit.KafkaBrokers[0], ",") {
		cfg.Audit.KafkaBrokers = splitList(cfg.Audit.KafkaBrokers[0])
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey maps ONBOARDING_AUDIT__KAFKA_TOPIC to audit.kafka_topic.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	if c.Flow.RedirectDelay < 0 {
		errs = append(errs, errors.New("flow.redirect_delay must not be negative"))
	}
	if !c.Gateways.Mock {
		if c.Gateways.OtpURL == "" {
			errs = append(errs, errors.New("gateways.otp_url is required unless gateways.mock is set"))
		}
		if c.Gateways.OneClickURL == "" {
			errs = append(errs, errors.New("gateways.oneclick_url is required unless gateways.mock is set"))
		}
	}
	if len(c.Audit.KafkaBrokers) > 0 && c.Audit.KafkaTopic == "" {
		errs = append(errs, errors.New("audit.kafka_topic is required with kafka brokers"))
	}
	return errors.Join(errs...)
}
