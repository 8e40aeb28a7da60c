package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"portfolio-rag/internal/errs"
)

// EnvPrefix marks environment variables that override the config file.
// PORTFOLIO_LLM_MODEL maps to llm.model, PORTFOLIO_DATA_INDEX_DIR to
// data.index_dir.
const EnvPrefix = "PORTFOLIO_"

// DataConfig locates the portfolio file and the persisted index.
type DataConfig struct {
	RecordsFile string `koanf:"records_file" yaml:"records_file"`
	IndexDir    string `koanf:"index_dir" yaml:"index_dir"`
	Compress    bool   `koanf:"compress" yaml:"compress"`
	Source      string `koanf:"source" yaml:"source"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type        string `koanf:"type" yaml:"type"`
	BaseURL     string `koanf:"base_url" yaml:"base_url"`
	APIKeyEnv   string `koanf:"api_key_env" yaml:"api_key_env"`
	Model       string `koanf:"model" yaml:"model"`
	TimeoutSecs int    `koanf:"timeout_secs" yaml:"timeout_secs"`
	Dimension   int    `koanf:"dimension" yaml:"dimension"`
}

// LLMConfig selects and configures the language model.
type LLMConfig struct {
	Type        string  `koanf:"type" yaml:"type"`
	BaseURL     string  `koanf:"base_url" yaml:"base_url"`
	APIKeyEnv   string  `koanf:"api_key_env" yaml:"api_key_env"`
	Model       string  `koanf:"model" yaml:"model"`
	Temperature float64 `koanf:"temperature" yaml:"temperature"`
	MaxTokens   int     `koanf:"max_tokens" yaml:"max_tokens"`
	TimeoutSecs int     `koanf:"timeout_secs" yaml:"timeout_secs"`
}

// AnswerConfig tunes retrieval and the answer prompt.
type AnswerConfig struct {
	TopK     int    `koanf:"top_k" yaml:"top_k"`
	Language string `koanf:"language" yaml:"language"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Data     DataConfig     `koanf:"data" yaml:"data"`
	Embedder EmbedderConfig `koanf:"embedder" yaml:"embedder"`
	LLM      LLMConfig      `koanf:"llm" yaml:"llm"`
	Answer   AnswerConfig   `koanf:"answer" yaml:"answer"`
	Log      LogConfig      `koanf:"log" yaml:"log"`
}

// Load reads a config from path and applies PORTFOLIO_* overrides. A missing
// file is not an error: defaults and environment still apply.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(data), kyaml.Parser()); err != nil {
			return nil, errs.Wrap(err, errs.CodeConfigLoadFailure, "parsing config file", errs.FieldPath(path))
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, errs.Wrap(err, errs.CodeConfigLoadFailure, "reading config file", errs.FieldPath(path))
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errs.Wrap(err, errs.CodeConfigLoadFailure, "loading environment overrides")
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errs.Wrap(err, errs.CodeConfigLoadFailure, "decoding config", errs.FieldPath(path))
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps PORTFOLIO_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// LoadDefault tries ./config.yaml first, then ~/.config/portfolio-rag/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, Default()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects values no component can work with.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "ollama", "openai", "hashing":
	default:
		return errs.New(errs.CodeConfigInvalidValue, fmt.Sprintf("unknown embedder type %q", c.Embedder.Type))
	}
	switch c.LLM.Type {
	case "ollama", "openai", "anthropic":
	default:
		return errs.New(errs.CodeConfigInvalidValue, fmt.Sprintf("unknown llm type %q", c.LLM.Type))
	}
	if c.Answer.TopK < 1 {
		return errs.New(errs.CodeConfigInvalidValue, "answer.top_k must be at least 1")
	}
	if c.LLM.Temperature < 0 {
		return errs.New(errs.CodeConfigInvalidValue, "llm.temperature cannot be negative")
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "portfolio-rag", "config.yaml"), nil
}

// Default returns the configuration used when nothing is set.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Data.RecordsFile == "" {
		cfg.Data.RecordsFile = filepath.Join("data", "portfolio_entreprises.csv")
	}
	if cfg.Data.IndexDir == "" {
		cfg.Data.IndexDir = filepath.Join("data", "vectorstore")
	}
	if cfg.Data.Source == "" {
		cfg.Data.Source = "portfolio_csv"
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "ollama"
	}
	switch cfg.Embedder.Type {
	case "ollama":
		if cfg.Embedder.BaseURL == "" {
			cfg.Embedder.BaseURL = "http://localhost:11434"
		}
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "llama3.2:3b"
		}
	case "openai":
		if cfg.Embedder.BaseURL == "" {
			cfg.Embedder.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.APIKeyEnv == "" {
			cfg.Embedder.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "text-embedding-3-small"
		}
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 30
	}
	if cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = 512
	}

	if cfg.LLM.Type == "" {
		cfg.LLM.Type = "ollama"
	}
	switch cfg.LLM.Type {
	case "ollama":
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = "http://localhost:11434"
		}
		if cfg.LLM.Model == "" {
			cfg.LLM.Model = "llama3.2:3b"
		}
	case "openai":
		if cfg.LLM.APIKeyEnv == "" {
			cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.LLM.Model == "" {
			cfg.LLM.Model = "gpt-4o-mini"
		}
	case "anthropic":
		if cfg.LLM.APIKeyEnv == "" {
			cfg.LLM.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
		if cfg.LLM.Model == "" {
			cfg.LLM.Model = "claude-sonnet-4-5"
		}
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.3
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 120
	}

	if cfg.Answer.TopK == 0 {
		cfg.Answer.TopK = 3
	}
	if cfg.Answer.Language == "" {
		cfg.Answer.Language = "French"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}
