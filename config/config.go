package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"ai_proposal_agent/generator"
)

// LLMConfig selects and tunes the completion backend.
type LLMConfig struct {
	Provider       string  `mapstructure:"provider"`
	Model          string  `mapstructure:"model"`
	APIKey         string  `mapstructure:"api_key"`
	BaseURL        string  `mapstructure:"base_url"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	MaxRetries     int     `mapstructure:"max_retries"`
	BackoffSeconds float64 `mapstructure:"backoff_seconds"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// StorageConfig picks where saved proposals live. Driver is "file" or "sqlite".
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Dir    string `mapstructure:"dir"`
	DSN    string `mapstructure:"dsn"`
}

type ExportConfig struct {
	Dir      string `mapstructure:"dir"`
	LogoPath string `mapstructure:"logo_path"`
}

// Config is the application configuration.
type Config struct {
	LLM         LLMConfig     `mapstructure:"llm"`
	ServerAddr  string        `mapstructure:"server_addr"`
	Storage     StorageConfig `mapstructure:"storage"`
	Export      ExportConfig  `mapstructure:"export"`
	PromptsFile string        `mapstructure:"prompts_file"`
	LogFile     string        `mapstructure:"log_file"`
	Verbose     bool          `mapstructure:"verbose"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.max_retries", generator.DefaultMaxRetries)
	v.SetDefault("llm.backoff_seconds", generator.DefaultBackoff.Seconds())
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.dir", "data/proposals")
	v.SetDefault("storage.dsn", "data/proposals.db")
	v.SetDefault("export.dir", "data/exports")
	v.SetDefault("export.logo_path", "")
	v.SetDefault("prompts_file", "")
	v.SetDefault("log_file", "logs/app.log")
	v.SetDefault("verbose", false)
}

// Load reads .env, then the config file (explicit path, or config.{yaml,json}
// in . and ./config), then PROPOSAL_* environment overrides. A missing
// default config file is not an error.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("PROPOSAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerKey(cfg.LLM.Provider)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func providerKey(provider string) string {
	switch provider {
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	case "deepseek":
		if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("OPENAI_API_KEY")
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

// Validate rejects settings the pipeline cannot run with. API keys are
// checked when the backend is built, so the mock provider needs none.
func (c Config) Validate() error {
	var problems []string
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		problems = append(problems, "llm.temperature must be within [0, 1]")
	}
	if c.LLM.MaxTokens <= 0 {
		problems = append(problems, "llm.max_tokens must be positive")
	}
	if c.LLM.MaxRetries <= 0 {
		problems = append(problems, "llm.max_retries must be positive")
	}
	if c.LLM.BackoffSeconds < 0 {
		problems = append(problems, "llm.backoff_seconds must not be negative")
	}
	switch c.Storage.Driver {
	case "file", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("storage.driver %q not supported", c.Storage.Driver))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Settings converts the LLM section into what concrete clients take.
func (c LLMConfig) Settings() *generator.LLMSettings {
	return &generator.LLMSettings{
		Provider:    c.Provider,
		Model:       c.Model,
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}
}

func (c LLMConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffSeconds * float64(time.Second))
}

func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
