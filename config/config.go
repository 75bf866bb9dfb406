package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Addr string `yaml:"addr"` // host:port единственного слушателя (WS + служебный HTTP)
}

type WS struct {
	PingInterval   string `yaml:"pingInterval"`   // период keepalive-пингов
	SendBuffer     int    `yaml:"sendBuffer"`     // ёмкость исходящей очереди соединения
	MaxMessageSize int64  `yaml:"maxMessageSize"` // лимит входящего кадра, байт
	MaxChatLen     int    `yaml:"maxChatLen"`     // лимит текста chat-сообщения
}

type Logging struct {
	Env       string `yaml:"env"`     // dev|stage|prod
	Service   string `yaml:"service"` // sync-service
	Version   string `yaml:"version"` // v0.1.0
	Backend   string `yaml:"backend"` // std|zap
	AddSource bool   `yaml:"addSource"`
	Debug     bool   `yaml:"debug"`
}

type Config struct {
	Server  Server  `yaml:"server"`
	WS      WS      `yaml:"ws"`
	Logging Logging `yaml:"logging"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	// установка дефолтов, если значения не указаны
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:5001"
	}
	if c.WS.PingInterval == "" {
		c.WS.PingInterval = "15s"
	}
	if _, err := time.ParseDuration(c.WS.PingInterval); err != nil {
		return errors.New("ws.pingInterval is not a valid duration")
	}
	if c.WS.SendBuffer <= 0 {
		c.WS.SendBuffer = 256
	}
	if c.WS.MaxMessageSize <= 0 {
		c.WS.MaxMessageSize = 1 << 20
	}
	if c.WS.MaxChatLen <= 0 {
		c.WS.MaxChatLen = 4000
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "sync-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	return nil
}

// PingEvery возвращает ws.pingInterval уже распарсенным.
func (c *Config) PingEvery() time.Duration {
	d, err := time.ParseDuration(c.WS.PingInterval)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}
