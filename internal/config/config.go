// Package config loads runtime settings from an optional YAML file overlaid
// by DNASIGIL_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "DNASIGIL_"

type Config struct {
	Store   StoreConfig   `yaml:"store" envPrefix:"STORE_"`
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
	Metrics MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`
	// Seed fixes the random source. Zero seeds from the clock.
	Seed int64 `yaml:"seed" env:"SEED"`
	// EventBuffer sizes the channel publisher; zero disables it.
	EventBuffer int `yaml:"event_buffer" env:"EVENT_BUFFER" validate:"gte=0,lte=65536"`
}

type StoreConfig struct {
	Kind string `yaml:"kind" env:"KIND" validate:"oneof=memory sqlite badger"`
	// Path is the SQLite file or Badger directory. Badger runs in memory
	// when it is empty.
	Path string `yaml:"path" env:"PATH" validate:"required_if=Kind sqlite"`
}

type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Textfile is where short-lived processes write the collected metrics
	// in Prometheus text format on exit.
	Textfile string `yaml:"textfile" env:"TEXTFILE"`
}

func Default() Config {
	return Config{
		Store: StoreConfig{Kind: "memory"},
		Log:   LogConfig{Level: "info"},
	}
}

var validate = validator.New()

// Load reads path (when non-empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	return LoadWith(Default(), path)
}

// LoadWith is Load starting from base instead of Default.
func LoadWith(base Config, path string) (Config, error) {
	cfg := base
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q (value %v)", f.Namespace(), f.Tag(), f.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
