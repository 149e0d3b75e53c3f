package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "UISCOUT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp", typ: kBool, env: "UISCOUT_SERVER_MCP",
		apply:   func(cfg *Config, v any) { cfg.Server.MCP = v.(bool) },
		extract: func(cfg Config) any { return cfg.Server.MCP },
	},
	{
		key: "ollama.base_url", typ: kString, env: "UISCOUT_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "UISCOUT_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "ollama.dimensions", typ: kInt, env: "UISCOUT_OLLAMA_DIMENSIONS",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Dimensions = v.(int) },
		extract: func(cfg Config) any { return cfg.Ollama.Dimensions },
	},
	{
		key: "storage.data_dir", typ: kString, env: "UISCOUT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "search.default_limit", typ: kInt, env: "UISCOUT_SEARCH_DEFAULT_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Search.DefaultLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Search.DefaultLimit },
	},
	{
		key: "search.max_limit", typ: kInt, env: "UISCOUT_SEARCH_MAX_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Search.MaxLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Search.MaxLimit },
	},
	{
		key: "search.suggest_limit", typ: kInt, env: "UISCOUT_SEARCH_SUGGEST_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Search.SuggestLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Search.SuggestLimit },
	},
	{
		key: "search.suggest_min_score", typ: kFloat, env: "UISCOUT_SEARCH_SUGGEST_MIN_SCORE",
		apply:   func(cfg *Config, v any) { cfg.Search.SuggestMinScore = v.(float64) },
		extract: func(cfg Config) any { return cfg.Search.SuggestMinScore },
	},
	{
		key: "log.level", typ: kString, env: "UISCOUT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, spec := range specs {
		switch spec.typ {
		case kInt:
			v, ok, err := b.GetInt(spec.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", spec.key, err)
			}
			if ok {
				spec.apply(cfg, v)
			}
		case kString:
			v, ok, err := b.GetString(spec.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", spec.key, err)
			}
			if ok {
				spec.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(spec.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", spec.key, err)
			}
			if ok {
				parsed, err := strconv.ParseBool(v)
				if err != nil {
					return fmt.Errorf("invalid bool for %s: %w", spec.key, err)
				}
				spec.apply(cfg, parsed)
			}
		case kFloat:
			v, ok, err := b.GetString(spec.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", spec.key, err)
			}
			if ok {
				parsed, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return fmt.Errorf("invalid float for %s: %w", spec.key, err)
				}
				spec.apply(cfg, parsed)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, spec := range specs {
		raw, ok := os.LookupEnv(spec.env)
		if !ok || raw == "" {
			continue
		}
		switch spec.typ {
		case kString:
			spec.apply(cfg, raw)
		case kInt:
			if v, err := strconv.Atoi(raw); err == nil {
				spec.apply(cfg, v)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] ignoring %s: %v\n", spec.env, err)
			}
		case kBool:
			if v, err := strconv.ParseBool(raw); err == nil {
				spec.apply(cfg, v)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] ignoring %s: %v\n", spec.env, err)
			}
		case kFloat:
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				spec.apply(cfg, v)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] ignoring %s: %v\n", spec.env, err)
			}
		}
	}
}
