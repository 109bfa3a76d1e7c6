package proxy

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the agent proxy daemon configuration, loaded from YAML.
type Config struct {
	ListenAddr string    `yaml:"listenAddr" validate:"required"`
	LogLevel   string    `yaml:"logLevel" validate:"omitempty,oneof=debug info warn error"`
	LLM        LLMConfig `yaml:"llm"`

	// MarketDataURL overrides the market listing endpoint; empty keeps
	// the public default.
	MarketDataURL string `yaml:"marketDataUrl" validate:"omitempty,url"`

	// SearchEndpoint enables the web search tool when set.
	SearchEndpoint string `yaml:"searchEndpoint" validate:"omitempty,url"`
	SearchAPIKey   string `yaml:"searchApiKey"`
}

// DefaultConfig returns a config suitable for local development, minus
// the LLM API key which has no sensible default.
func DefaultConfig() Config {
	return Config{
		ListenAddr: ":8080",
		LogLevel:   "info",
		LLM: LLMConfig{
			Timeout: defaultLLMTimeout,
		},
	}
}

// LoadConfig reads and validates a YAML config file, layering it over
// the defaults. The LLM API key may come from the environment instead
// of the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("LLM_API_KEY")
	}
	if cfg.LLM.Timeout <= 0 {
		cfg.LLM.Timeout = defaultLLMTimeout
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
