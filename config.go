package storygraph

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ybkang/storygraph/llm"
)

// Config holds engine settings. Values load in precedence order: defaults,
// then the optional YAML file, then environment variables with the
// STORYGRAPH_ prefix.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path" env:"DB_PATH"`

	// LLM configures the chat provider. Leave Provider empty to run with
	// the deterministic parser-backed extractor only.
	LLM llm.Config `yaml:"llm" envPrefix:"LLM_"`

	// HopLimit bounds the context walk for updates.
	HopLimit int `yaml:"hop_limit" env:"HOP_LIMIT"`

	// MaxContextItems caps the chapters in an update context bundle.
	MaxContextItems int `yaml:"max_context_items" env:"MAX_CONTEXT_ITEMS"`

	// FallbackChapters is how many recent chapters anchor an update when
	// no mentioned entity is found in the graph.
	FallbackChapters int `yaml:"fallback_chapters" env:"FALLBACK_CHAPTERS"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		DBPath:           "storygraph.db",
		HopLimit:         2,
		MaxContextItems:  20,
		FallbackChapters: 3,
		LogLevel:         "info",
	}
}

// LoadConfig builds a Config from defaults, an optional YAML file, and the
// environment. A missing .env file is not an error; a named YAML file that
// does not exist is.
func LoadConfig(yamlPath string) (Config, error) {
	godotenv.Load()

	cfg := DefaultConfig()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "STORYGRAPH_"}); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}
