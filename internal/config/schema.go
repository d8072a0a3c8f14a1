package config

import (
	"fmt"
	"time"

	"github.com/jackzampolin/distill/internal/providers"
)

// Config holds distill configuration.
// Loaded from ./config.yaml or ~/.distill/config.yaml.
type Config struct {
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	Type      string  `mapstructure:"type" yaml:"type"`             // "openrouter", "openai"
	Model     string  `mapstructure:"model" yaml:"model"`           // Default model name
	APIKey    string  `mapstructure:"api_key" yaml:"api_key"`       // API key (supports ${ENV_VAR} syntax)
	RateLimit int     `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled"`
	TimeoutS  int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	BaseURL   string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
}

// DefaultsCfg specifies extraction defaults.
type DefaultsCfg struct {
	LLMProvider       string  `mapstructure:"llm_provider" yaml:"llm_provider"`
	MaxRetries        int     `mapstructure:"max_retries" yaml:"max_retries"`
	TimeoutPerAttempt int     `mapstructure:"timeout_per_attempt_seconds" yaml:"timeout_per_attempt_seconds"`
	Temperature       float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	MaxWorkers        int     `mapstructure:"max_workers" yaml:"max_workers"` // Batch extraction concurrency
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"openrouter": {
				Type:      "openrouter",
				Model:     "anthropic/claude-3.5-sonnet",
				APIKey:    "${OPENROUTER_API_KEY}",
				RateLimit: 150,
				Enabled:   true,
				TimeoutS:  120,
			},
			"openai": {
				Type:      "openai",
				Model:     "gpt-4o-2024-08-06",
				APIKey:    "${OPENAI_API_KEY}",
				RateLimit: 150,
				Enabled:   false,
				TimeoutS:  120,
			},
		},
		Defaults: DefaultsCfg{
			LLMProvider:       "openrouter",
			MaxRetries:        3,
			TimeoutPerAttempt: 120,
			MaxWorkers:        4,
		},
	}
}

// BuildRegistry instantiates every enabled provider into a registry.
// API key ${ENV_VAR} references are resolved at build time.
func (c *Config) BuildRegistry() (*providers.Registry, error) {
	reg := providers.NewRegistry()
	for name, p := range c.LLMProviders {
		if !p.Enabled {
			continue
		}
		timeout := time.Duration(p.TimeoutS) * time.Second
		switch p.Type {
		case "openrouter":
			reg.RegisterLLM(name, providers.NewOpenRouterClient(providers.OpenRouterConfig{
				APIKey:       ResolveEnvVars(p.APIKey),
				BaseURL:      p.BaseURL,
				DefaultModel: p.Model,
				Timeout:      timeout,
				RPM:          p.RateLimit,
			}))
		case "openai":
			reg.RegisterLLM(name, providers.NewOpenAIClient(providers.OpenAIConfig{
				APIKey:       ResolveEnvVars(p.APIKey),
				BaseURL:      p.BaseURL,
				DefaultModel: p.Model,
				Timeout:      timeout,
				RPM:          p.RateLimit,
			}))
		default:
			return nil, fmt.Errorf("provider %q has unknown type %q", name, p.Type)
		}
	}
	return reg, nil
}
