// Package config loads application settings from defaults, an optional YAML
// file, WORDSTAGE_ environment variables and command-line flags, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment overrides. Nested keys use a double
// underscore: WORDSTAGE_REVIEW__BATCH_SIZE.
const EnvPrefix = "WORDSTAGE_"

// Config is the complete application configuration.
type Config struct {
	LogLevel  string        `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string        `koanf:"log_format" validate:"oneof=text json"`
	Store     StoreConfig   `koanf:"store"`
	Review    ReviewConfig  `koanf:"review"`
	Writing   WritingConfig `koanf:"writing"`
	Server    ServerConfig  `koanf:"server"`
	Import    ImportConfig  `koanf:"import"`
}

// StoreConfig selects where cards are kept.
type StoreConfig struct {
	Backend string `koanf:"backend" validate:"oneof=yaml sqlite"`
	Path    string `koanf:"path" validate:"required"`
}

// ReviewConfig holds review session settings.
type ReviewConfig struct {
	BatchSize int    `koanf:"batch_size" validate:"min=1"`
	Direction string `koanf:"direction" validate:"oneof=english-to-target target-to-english both"`
}

// WritingConfig holds the writing exercise and evaluator settings.
type WritingConfig struct {
	Words      int    `koanf:"words" validate:"min=1"`
	Level      string `koanf:"level" validate:"oneof=A1 A2 B1 B2 C1 C2"`
	Model      string `koanf:"model" validate:"required"`
	APIKey     string `koanf:"api_key"`
	MaxRetries int    `koanf:"max_retries" validate:"min=0"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

// ImportConfig holds deck import settings.
type ImportConfig struct {
	ReposDir string `koanf:"repos_dir" validate:"required"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Store: StoreConfig{
			Backend: "yaml",
			Path:    "data.yaml",
		},
		Review: ReviewConfig{
			BatchSize: 20,
			Direction: "english-to-target",
		},
		Writing: WritingConfig{
			Words:      10,
			Level:      "B1",
			Model:      "gemini-2.5-flash",
			MaxRetries: 2,
		},
		Server: ServerConfig{
			Addr: "localhost:8080",
		},
		Import: ImportConfig{
			ReposDir: "repos",
		},
	}
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"log-level":  "log_level",
	"log-format": "log_format",
	"backend":    "store.backend",
	"store":      "store.path",
	"batch-size": "review.batch_size",
	"direction":  "review.direction",
	"words":      "writing.words",
	"level":      "writing.level",
	"model":      "writing.model",
	"addr":       "server.addr",
	"repos-dir":  "import.repos_dir",
}

// RegisterFlags adds every configurable flag to flags, with defaults taken from
// Default. The --config flag names the YAML file to load.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("config", "", "Path to a YAML configuration file")
	flags.String("log-level", d.LogLevel, "Log level: debug, info, warn or error")
	flags.String("log-format", d.LogFormat, "Log format: text or json")
	flags.String("backend", d.Store.Backend, "Card store backend: yaml or sqlite")
	flags.String("store", d.Store.Path, "Path to the card store file")
	flags.Int("batch-size", d.Review.BatchSize, "Number of cards drawn into a review session")
	flags.String("direction", d.Review.Direction, "Prompt direction: english-to-target, target-to-english or both")
	flags.Int("words", d.Writing.Words, "Number of words in a writing exercise")
	flags.String("level", d.Writing.Level, "CEFR level for writing evaluation")
	flags.String("model", d.Writing.Model, "Gemini model used to evaluate writing")
	flags.String("addr", d.Server.Addr, "HTTP listen address")
	flags.String("repos-dir", d.Import.ReposDir, "Directory where deck repositories are cloned")
}

// Load builds the configuration. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	configPath := ""
	if flags != nil {
		if f := flags.Lookup("config"); f != nil {
			configPath = f.Value.String()
		}
	}
	if configPath == "" {
		configPath = os.Getenv(EnvPrefix + "CONFIG")
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
			return nil, fmt.Errorf("config file %s does not exist", configPath)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.Writing.APIKey == "" {
		cfg.Writing.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
