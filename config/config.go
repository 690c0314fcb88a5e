package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	UI          UIConfig          `yaml:"ui"`
	Session     SessionConfig     `yaml:"session"`
	Translation TranslationConfig `yaml:"translation"`
	Backend     BackendConfig     `yaml:"backend"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig is the listener backends connect back to.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// UIConfig is the websocket fan-out used by UI collaborators.
type UIConfig struct {
	Addr        string        `yaml:"addr"`
	MaxClients  int           `yaml:"max_clients"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

type SessionConfig struct {
	AutoContinue    bool          `yaml:"auto_continue"`
	WriteRetries    int           `yaml:"write_retries"`
	WriteRetryDelay time.Duration `yaml:"write_retry_delay"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	StartTimeout    time.Duration `yaml:"start_timeout"`
}

type TranslationConfig struct {
	Enabled    bool   `yaml:"enabled"`
	LocalRoot  string `yaml:"local_root"`
	RemoteRoot string `yaml:"remote_root"`
}

type BackendConfig struct {
	Interpreter string   `yaml:"interpreter"`
	Args        []string `yaml:"args"`
	// AutoStart makes serve launch a backend at startup and again whenever
	// the session empties.
	AutoStart      bool          `yaml:"auto_start"`
	ConnectRetries int           `yaml:"connect_retries"`
	ConnectDelay   time.Duration `yaml:"connect_delay"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: "127.0.0.1:42424",
		},
		UI: UIConfig{
			Addr:        ":8080",
			MaxClients:  16,
			IdleTimeout: 1 * time.Hour,
		},
		Session: SessionConfig{
			AutoContinue:    true,
			WriteRetries:    3,
			WriteRetryDelay: 50 * time.Millisecond,
			WriteTimeout:    2 * time.Second,
			StartTimeout:    10 * time.Second,
		},
		Backend: BackendConfig{
			Interpreter:    "rdb-backend",
			ConnectRetries: 10,
			ConnectDelay:   200 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load config from yml
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// NewLogger builds the process logger described by the logging section.
func (l LoggingConfig) NewLogger() (*zap.SugaredLogger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}

	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Sugar(), nil
}
