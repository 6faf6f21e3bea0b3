package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	DefaultAddr          = ":5050"
	DefaultMiroBaseURL   = "https://api.miro.com"
	DefaultTextModel     = "gpt-4.1"
	DefaultImageModel    = "gpt-image-1"
	DefaultImageSize     = "1024x1024"
	DefaultImageQuality  = "low"
	DefaultTemperature   = 0.9
	DefaultMaxTokens     = 500
	CacheTTL             = 300 * time.Second
	PublishAttempts      = 3
	PublishRetryDelay    = 2 * time.Second
	ProviderOpenAI       = "openai"
	ProviderMock         = "mock"
	defaultTextTimeout   = 30 * time.Second
	defaultImageTimeout  = 90 * time.Second
	defaultDownloadLimit = 10 * time.Second
)

// Config is the whole service configuration. Values come from built-in
// defaults, then the JSON file, then the environment.
type Config struct {
	ServerAddr string      `json:"server_addr,omitempty" env:"SERVER_ADDR"`
	Port       string      `json:"port,omitempty" env:"PORT"`
	LogFile    string      `json:"log_file,omitempty" env:"LOG_FILE"`
	Verbose    bool        `json:"verbose,omitempty" env:"VERBOSE"`
	LLM        LLMConfig   `json:"llm"`
	Board      BoardConfig `json:"board"`

	CacheTTL          time.Duration `json:"-"`
	PublishAttempts   int           `json:"-"`
	PublishRetryDelay time.Duration `json:"-"`
}

// LLMConfig selects the generation provider and models.
type LLMConfig struct {
	Provider     string  `json:"provider,omitempty" env:"LLM_PROVIDER"`
	APIKey       string  `json:"api_key,omitempty" env:"OPENAI_API_KEY"`
	BaseURL      string  `json:"base_url,omitempty" env:"OPENAI_BASE_URL"`
	TextModel    string  `json:"text_model,omitempty" env:"OPENAI_TEXT_MODEL"`
	ImageModel   string  `json:"image_model,omitempty" env:"OPENAI_IMAGE_MODEL"`
	ImageSize    string  `json:"image_size,omitempty" env:"OPENAI_IMAGE_SIZE"`
	ImageQuality string  `json:"image_quality,omitempty" env:"OPENAI_IMAGE_QUALITY"`
	Temperature  float64 `json:"temperature,omitempty" env:"OPENAI_TEMPERATURE"`
	MaxTokens    int64   `json:"max_tokens,omitempty" env:"OPENAI_MAX_TOKENS"`

	TextTimeout     time.Duration `json:"-"`
	ImageTimeout    time.Duration `json:"-"`
	DownloadTimeout time.Duration `json:"-"`
}

// BoardConfig holds the whiteboard REST credentials.
type BoardConfig struct {
	Token          string `json:"token,omitempty" env:"MIRO_TOKEN"`
	BaseURL        string `json:"base_url,omitempty" env:"MIRO_BASE_URL"`
	DefaultBoardID string `json:"default_board_id,omitempty" env:"MIRO_BOARD_ID"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ServerAddr: DefaultAddr,
		LLM: LLMConfig{
			Provider:        ProviderOpenAI,
			TextModel:       DefaultTextModel,
			ImageModel:      DefaultImageModel,
			ImageSize:       DefaultImageSize,
			ImageQuality:    DefaultImageQuality,
			Temperature:     DefaultTemperature,
			MaxTokens:       DefaultMaxTokens,
			TextTimeout:     defaultTextTimeout,
			ImageTimeout:    defaultImageTimeout,
			DownloadTimeout: defaultDownloadLimit,
		},
		Board: BoardConfig{
			BaseURL: DefaultMiroBaseURL,
		},
		CacheTTL:          CacheTTL,
		PublishAttempts:   PublishAttempts,
		PublishRetryDelay: PublishRetryDelay,
	}
}

// Load reads the JSON config at path (a missing file is fine), then the
// dotenv file at envFile (also optional), then the process environment.
func Load(path, envFile string) (Config, error) {
	if envFile != "" {
		// variables already set in the environment win over the file
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return load(path, env.Options{})
}

func load(path string, opts env.Options) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, err
		}
	}
	if err := env.Parse(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if p := strings.TrimSpace(c.Port); p != "" {
		c.ServerAddr = ":" + strings.TrimPrefix(p, ":")
	}
	if c.ServerAddr == "" {
		c.ServerAddr = DefaultAddr
	}
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderOpenAI
	}
	c.Board.BaseURL = strings.TrimRight(c.Board.BaseURL, "/")
	if c.Board.BaseURL == "" {
		c.Board.BaseURL = DefaultMiroBaseURL
	}
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			return errors.New("openai api key missing; set OPENAI_API_KEY or llm.api_key")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("llm provider %s not supported", c.LLM.Provider)
	}
	if c.LLM.TextModel == "" || c.LLM.ImageModel == "" {
		return errors.New("llm text_model and image_model are required")
	}
	return nil
}
