package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cwrk-planet/burner-chat/internal/domain"
	"github.com/cwrk-planet/burner-chat/pkg/logger"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	BroadcastRedis = "redis"
	BroadcastNATS  = "nats"
)

type GRPC struct {
	Addr           string        `yaml:"addr"           env:"BURNER_GRPC_ADDR"`
	HealthInterval time.Duration `yaml:"healthInterval" env:"BURNER_GRPC_HEALTH_INTERVAL"`
}

type HTTP struct {
	Addr           string        `yaml:"addr"           env:"BURNER_HTTP_ADDR"`
	ReadTimeout    time.Duration `yaml:"readTimeout"    env:"BURNER_HTTP_READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"   env:"BURNER_HTTP_WRITE_TIMEOUT"`
	IdleTimeout    time.Duration `yaml:"idleTimeout"    env:"BURNER_HTTP_IDLE_TIMEOUT"`
	RequestTimeout time.Duration `yaml:"requestTimeout" env:"BURNER_HTTP_REQUEST_TIMEOUT"`
	CORSOrigins    []string      `yaml:"corsOrigins"    env:"BURNER_HTTP_CORS_ORIGINS" envSeparator:","`
	LandingPath    string        `yaml:"landingPath"    env:"BURNER_HTTP_LANDING_PATH"`
	IndexFile      string        `yaml:"indexFile"      env:"BURNER_HTTP_INDEX_FILE"`
}

type Session struct {
	CookieName string `yaml:"cookieName" env:"BURNER_SESSION_COOKIE_NAME"`
	// Secure включается всегда в prod
	Secure bool `yaml:"secure" env:"BURNER_SESSION_SECURE"`
}

type Logging struct {
	Env       string `yaml:"env"       env:"BURNER_LOG_ENV"`        // dev|prod
	Service   string `yaml:"service"   env:"BURNER_LOG_SERVICE"`    // burner-chat
	Version   string `yaml:"version"   env:"BURNER_LOG_VERSION"`    // v0.1.0
	Backend   string `yaml:"backend"   env:"BURNER_LOG_BACKEND"`    // std|zap
	AddSource bool   `yaml:"addSource" env:"BURNER_LOG_ADD_SOURCE"` // false|true
	Debug     bool   `yaml:"debug"     env:"BURNER_LOG_DEBUG"`      // false|true
}

type Redis struct {
	Addr         string        `yaml:"addr"         env:"BURNER_REDIS_ADDR"`
	Password     string        `yaml:"password"     env:"BURNER_REDIS_PASSWORD"`
	DB           int           `yaml:"db"           env:"BURNER_REDIS_DB"`
	PoolSize     int           `yaml:"poolSize"     env:"BURNER_REDIS_POOL_SIZE"`
	DialTimeout  time.Duration `yaml:"dialTimeout"  env:"BURNER_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `yaml:"readTimeout"  env:"BURNER_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"writeTimeout" env:"BURNER_REDIS_WRITE_TIMEOUT"`
}

type Room struct {
	TTL      time.Duration `yaml:"ttl"      env:"BURNER_ROOM_TTL"`
	Capacity int           `yaml:"capacity" env:"BURNER_ROOM_CAPACITY"`
	IDLength int           `yaml:"idLength" env:"BURNER_ROOM_ID_LENGTH"`
}

type Broadcast struct {
	Backend string `yaml:"backend" env:"BURNER_BROADCAST_BACKEND"` // redis|nats
	NATSURL string `yaml:"natsUrl" env:"BURNER_NATS_URL"`
}

type Config struct {
	HTTP      HTTP      `yaml:"http"`
	GRPC      GRPC      `yaml:"grpc"`
	Session   Session   `yaml:"session"`
	Logging   Logging   `yaml:"logging"`
	Redis     Redis     `yaml:"redis"`
	Room      Room      `yaml:"room"`
	Broadcast Broadcast `yaml:"broadcast"`
}

// LoadConfig: YAML из CONFIG_PATH (по умолчанию ./config/config.yaml),
// поверх него переменные окружения BURNER_*. Файл по умолчанию необязателен.
func LoadConfig() (*Config, error) {
	path, explicit := os.LookupEnv("CONFIG_PATH")
	explicit = explicit && path != ""
	if !explicit {
		path = "./config/config.yaml"
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProd: боевое окружение (secure cookie, json-логи). Env понимается так же,
// как его понимает логгер.
func (c *Config) IsProd() bool {
	return logger.ParseEnv(c.Logging.Env) == logger.EnvProd
}

func (c *Config) validate() error {
	// установка дефолтов, если значения не указаны
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	c.HTTP.ReadTimeout = durationOr(c.HTTP.ReadTimeout, 10*time.Second)
	c.HTTP.WriteTimeout = durationOr(c.HTTP.WriteTimeout, 15*time.Second)
	c.HTTP.IdleTimeout = durationOr(c.HTTP.IdleTimeout, 60*time.Second)
	c.HTTP.RequestTimeout = durationOr(c.HTTP.RequestTimeout, 30*time.Second)
	if c.HTTP.LandingPath == "" {
		c.HTTP.LandingPath = "/"
	}

	if c.GRPC.Addr == "" {
		c.GRPC.Addr = ":9090"
	}
	c.GRPC.HealthInterval = durationOr(c.GRPC.HealthInterval, 5*time.Second)

	if c.Session.CookieName == "" {
		c.Session.CookieName = "x-auth-token"
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "burner-chat"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = string(logger.DetectEnv())
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.IsProd() {
		c.Session.Secure = true
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}

	c.Room.TTL = durationOr(c.Room.TTL, 600*time.Second)
	if c.Room.Capacity == 0 {
		c.Room.Capacity = domain.DefaultCapacity
	}
	if c.Room.Capacity < 1 || c.Room.Capacity > domain.DefaultCapacity {
		return fmt.Errorf("room.capacity must be in [1, %d]", domain.DefaultCapacity)
	}
	if c.Room.IDLength == 0 {
		c.Room.IDLength = 21
	}

	switch c.Broadcast.Backend {
	case "":
		c.Broadcast.Backend = BroadcastRedis
	case BroadcastRedis:
	case BroadcastNATS:
		if c.Broadcast.NATSURL == "" {
			return errors.New("broadcast.natsUrl is required for nats backend")
		}
	default:
		return fmt.Errorf("broadcast.backend: unknown %q (redis|nats)", c.Broadcast.Backend)
	}
	return nil
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
