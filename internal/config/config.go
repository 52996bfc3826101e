package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel   string  `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat  string  `yaml:"log-format" env:"LOG_FORMAT" env-default:"json"`
	HTTPPort   string  `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort string  `yaml:"socket-port" env:"SOCKET_PORT" env-default:"8001"`
	Redis      Redis   `yaml:"redis"`
	Session    Session `yaml:"session"`
}

type Redis struct {
	Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	StatsKey string `yaml:"stats-key" env:"REDIS_STATS_KEY" env-default:"connectfour:stats"`
}

// Session tunes connection handling and room lifetime.
type Session struct {
	SendQueueSize int           `yaml:"send-queue-size" env:"SESSION_SEND_QUEUE_SIZE" env-default:"64"`
	WriteTimeout  time.Duration `yaml:"write-timeout" env:"SESSION_WRITE_TIMEOUT" env-default:"10s"`
	PingInterval  time.Duration `yaml:"ping-interval" env:"SESSION_PING_INTERVAL" env-default:"30s"`
	RoomIdleTTL   time.Duration `yaml:"room-idle-ttl" env:"SESSION_ROOM_IDLE_TTL" env-default:"10m"`
	SweepInterval time.Duration `yaml:"sweep-interval" env:"SESSION_SWEEP_INTERVAL" env-default:"1m"`
	MaxNameLength int           `yaml:"max-name-length" env:"SESSION_MAX_NAME_LENGTH" env-default:"32"`
	// MaxMessageSize caps one inbound message in bytes; larger ones close the connection.
	MaxMessageSize int64 `yaml:"max-message-size" env:"SESSION_MAX_MESSAGE_SIZE" env-default:"4096"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

// Load reads configuration from the environment only.
func Load() (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadEnv(config); err != nil {
		return nil, fmt.Errorf("unable to read environment: %w", err)
	}

	return config, nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
