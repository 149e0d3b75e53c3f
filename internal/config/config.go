// Package config loads service configuration from a JSON file backend with
// environment-variable overrides. A local .env file, if present, is folded
// into the environment before overrides are applied.
package config

import (
	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Ollama  OllamaConfig
	Storage StorageConfig
	Search  SearchConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
	MCP  bool // serve MCP tools over stdio alongside HTTP
}

type OllamaConfig struct {
	BaseURL    string
	EmbedModel string
	Dimensions int
}

type StorageConfig struct {
	DataDir string
}

type SearchConfig struct {
	DefaultLimit    int
	MaxLimit        int
	SuggestLimit    int
	SuggestMinScore float64
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8765,
			MCP:  false,
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			EmbedModel: "nomic-embed-text",
			Dimensions: 768,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Search: SearchConfig{
			DefaultLimit:    10,
			MaxLimit:        50,
			SuggestLimit:    5,
			SuggestMinScore: 0.35,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/uiscout/config.json, then applies UISCOUT_* environment
// variables, which override backend values. A .env file in the working
// directory is loaded first (existing environment variables win).
func Load() (Config, error) {
	_ = godotenv.Load() // missing .env is not an error

	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}
