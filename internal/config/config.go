// Package config loads bot configuration from defaults, an optional YAML
// file, and COURSEBOT_* environment variables, in increasing precedence.
// Secrets (platform token, provider API key) come from the environment only.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Provider ProviderConfig `yaml:"provider"`
	Bot      BotConfig      `yaml:"bot"`
	Ops      OpsConfig      `yaml:"ops"`
	Storage  StorageConfig  `yaml:"storage"`
}

type GatewayConfig struct {
	// URL is the websocket endpoint delivering inbound events.
	URL string `yaml:"url"`
	// APIBase is the REST endpoint for outbound sends and history fetches.
	APIBase string `yaml:"api_base"`
	// Token authenticates against the chat platform. Env only.
	Token string `yaml:"-"`
}

type ProviderConfig struct {
	// APIKey authenticates against the completion provider. Env only.
	APIKey  string `yaml:"-"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// Persona is an optional system instruction prepended to every prompt.
	Persona string `yaml:"persona"`
	// Permits bounds simultaneous in-flight provider calls.
	Permits int `yaml:"permits"`
}

type BotConfig struct {
	// HelpChannel is the only channel where the ask command is accepted.
	HelpChannel string `yaml:"help_channel"`
	// AdminRole gates document ingestion.
	AdminRole string `yaml:"admin_role"`
	// HistoryWindow is how many recent messages are scanned for an image.
	HistoryWindow int `yaml:"history_window"`
	// SimilarityThreshold is the minimum fuzzy-match ratio for a cache hit.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	// CacheCapacity bounds retained cache records; 0 keeps everything.
	CacheCapacity int `yaml:"cache_capacity"`
}

type OpsConfig struct {
	Port int `yaml:"port"`
	// Token authenticates the local ops API. Env only.
	Token string `yaml:"-"`
}

type StorageConfig struct {
	// DataDir holds the SQLite database; ":memory:" keeps state transient.
	DataDir string `yaml:"data_dir"`
}

func defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			URL:     "wss://gateway.chat.example.com/v1",
			APIBase: "https://api.chat.example.com/v1",
		},
		Provider: ProviderConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4",
			Permits: 3,
		},
		Bot: BotConfig{
			HelpChannel:         "help",
			AdminRole:           "Lecturer",
			HistoryWindow:       50,
			SimilarityThreshold: 0.7,
			CacheCapacity:       0,
		},
		Ops: OpsConfig{
			Port: 4600,
		},
		Storage: StorageConfig{
			DataDir: ":memory:",
		},
	}
}

// Load reads configuration. path names an optional YAML file; an empty
// path skips the file layer. Environment variables override file values;
// missing required secrets produce an error naming the variable to set.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.Gateway.Token == "" {
		return Config{}, fmt.Errorf("missing required config: platform token (set COURSEBOT_GATEWAY_TOKEN)")
	}
	if cfg.Provider.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: provider API key (set COURSEBOT_PROVIDER_API_KEY)")
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	envString("COURSEBOT_GATEWAY_URL", &cfg.Gateway.URL)
	envString("COURSEBOT_GATEWAY_API_BASE", &cfg.Gateway.APIBase)
	envString("COURSEBOT_GATEWAY_TOKEN", &cfg.Gateway.Token)
	envString("COURSEBOT_PROVIDER_API_KEY", &cfg.Provider.APIKey)
	envString("COURSEBOT_PROVIDER_BASE_URL", &cfg.Provider.BaseURL)
	envString("COURSEBOT_PROVIDER_MODEL", &cfg.Provider.Model)
	envString("COURSEBOT_PROVIDER_PERSONA", &cfg.Provider.Persona)
	envInt("COURSEBOT_PROVIDER_PERMITS", &cfg.Provider.Permits)
	envString("COURSEBOT_HELP_CHANNEL", &cfg.Bot.HelpChannel)
	envString("COURSEBOT_ADMIN_ROLE", &cfg.Bot.AdminRole)
	envInt("COURSEBOT_HISTORY_WINDOW", &cfg.Bot.HistoryWindow)
	envFloat("COURSEBOT_SIMILARITY_THRESHOLD", &cfg.Bot.SimilarityThreshold)
	envInt("COURSEBOT_CACHE_CAPACITY", &cfg.Bot.CacheCapacity)
	envInt("COURSEBOT_OPS_PORT", &cfg.Ops.Port)
	envString("COURSEBOT_OPS_TOKEN", &cfg.Ops.Token)
	envString("COURSEBOT_DATA_DIR", &cfg.Storage.DataDir)
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			*dst = i
		}
	}
}

func envFloat(name string, dst *float64) {
	if v := os.Getenv(name); v != "" {
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			*dst = f
		}
	}
}
