package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "RECALLRANK_"

// Config holds all runtime settings. Values are resolved in order:
// defaults, then YAML config file, then RECALLRANK_* environment
// variables, then command-line flags.
type Config struct {
	Deck        string  `koanf:"deck" validate:"required"`
	DeckRepo    string  `koanf:"deck-repo"` // optional git URL the deck file lives in
	ReposDir    string  `koanf:"repos-dir" validate:"required"`
	DB          string  `koanf:"db" validate:"required"`
	Model       string  `koanf:"model"` // empty selects the built-in default model
	Addr        string  `koanf:"addr" validate:"required"`
	SessionSize int     `koanf:"session-size" validate:"min=1"`
	MinPriority float64 `koanf:"min-priority" validate:"gte=0,lte=1"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Deck:        "data/flashcards.csv",
		ReposDir:    "repos",
		DB:          "recallrank.db",
		Addr:        ":8080",
		SessionSize: 5,
		MinPriority: 0,
	}
}

// Load resolves the configuration. path may be empty to skip the config
// file; flags may be nil to skip the flag overlay.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// RECALLRANK_SESSION_SIZE -> session-size
	err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "_", "-")
			return key, value
		},
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
