package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Duration is a time.Duration that reads "2s"-style strings or integer
// milliseconds from JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("duration must be a string like \"2s\" or milliseconds: %s", data)
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

type HistoryConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type MirrorConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Host    string `json:"host"`
}

type Config struct {
	Endpoint          string        `json:"endpoint"`
	Namespace         string        `json:"namespace"`
	HeartbeatInterval Duration      `json:"heartbeatInterval"`
	LogDir            string        `json:"logDir"`
	LogLevel          string        `json:"logLevel"`
	History           HistoryConfig `json:"history"`
	Mirror            MirrorConfig  `json:"mirror"`
}

// envOverrides are applied on top of the config file.
type envOverrides struct {
	Endpoint          string `env:"STREAMSIM_ENDPOINT"`
	HeartbeatInterval string `env:"STREAMSIM_HEARTBEAT_INTERVAL"`
	LogLevel          string `env:"STREAMSIM_LOG_LEVEL"`
	HistoryEnabled    *bool  `env:"STREAMSIM_HISTORY_ENABLED"`
	MirrorEnabled     *bool  `env:"STREAMSIM_MIRROR_ENABLED"`
	MirrorPort        *int   `env:"STREAMSIM_MIRROR_PORT"`
}

func Defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Endpoint:          "localhost:8000",
		Namespace:         "/",
		HeartbeatInterval: Duration(2000 * time.Millisecond),
		LogDir:            filepath.Join(home, ".streamsim", "logs"),
		LogLevel:          "info",
		History: HistoryConfig{
			Path: filepath.Join(home, ".streamsim", "history.db"),
		},
		Mirror: MirrorConfig{
			Port: 8090,
			Host: "127.0.0.1",
		},
	}
}

func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".streamsim", "config.json")
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadEnv loads dotenvPath if it exists and applies STREAMSIM_* variables
// to cfg.
func LoadEnv(cfg *Config, dotenvPath string) error {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", dotenvPath, err)
		}
	}
	var o envOverrides
	if _, err := env.UnmarshalFromEnviron(&o); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	if o.Endpoint != "" {
		cfg.Endpoint = o.Endpoint
	}
	if o.HeartbeatInterval != "" {
		d, err := time.ParseDuration(o.HeartbeatInterval)
		if err != nil {
			return fmt.Errorf("STREAMSIM_HEARTBEAT_INTERVAL: %w", err)
		}
		cfg.HeartbeatInterval = Duration(d)
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.HistoryEnabled != nil {
		cfg.History.Enabled = *o.HistoryEnabled
	}
	if o.MirrorEnabled != nil {
		cfg.Mirror.Enabled = *o.MirrorEnabled
	}
	if o.MirrorPort != nil {
		cfg.Mirror.Port = *o.MirrorPort
	}
	return nil
}
