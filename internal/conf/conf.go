package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shanbot/shanbot/internal/biz/domain"
	"github.com/shanbot/shanbot/internal/biz/usecase"
)

// Config represents application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Store configuration
	Store StoreConfig

	// Gemini drafter configuration
	Gemini GeminiConfig

	// ManyChat delivery configuration
	ManyChat ManyChatConfig

	// Message buffering / review behavior
	Behavior BehaviorConfig

	// Prompts configuration (loaded from YAML)
	Prompts *PromptsConfig

	// Debug mode
	Debug bool
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port          int
	WebhookSecret string
}

// StoreConfig contains persistence configuration
type StoreConfig struct {
	DBPath string
}

// GeminiConfig contains drafter configuration
type GeminiConfig struct {
	APIKey         string
	Model          string
	TimeoutSeconds int
}

// ManyChatConfig contains delivery configuration
type ManyChatConfig struct {
	APIToken       string
	TimeoutSeconds int
}

// BehaviorConfig contains the business tuning knobs
type BehaviorConfig struct {
	BufferWindowSeconds  int  // debounce quiet period
	BaseDelaySeconds     int  // auto-mode "thinking time" floor
	AutoModeEnabled      bool // initial auto-mode state
	ReviewRetentionHours int  // terminal review records older than this are purged
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	dbPath := os.Getenv("SHANBOT_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".shanbot", "shanbot.db")
	}

	promptsConfig, _ := LoadPromptsConfig(os.Getenv("PROMPTS_CONFIG_PATH"))

	return &Config{
		Server: ServerConfig{
			Port:          envInt("PORT", 8090),
			WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		},
		Store: StoreConfig{
			DBPath: dbPath,
		},
		Gemini: GeminiConfig{
			APIKey:         os.Getenv("GEMINI_API_KEY"),
			Model:          os.Getenv("GEMINI_MODEL"),
			TimeoutSeconds: envInt("GEMINI_TIMEOUT_SECONDS", 30),
		},
		ManyChat: ManyChatConfig{
			APIToken:       os.Getenv("MANYCHAT_API_TOKEN"),
			TimeoutSeconds: envInt("MANYCHAT_TIMEOUT_SECONDS", 15),
		},
		Behavior: BehaviorConfig{
			BufferWindowSeconds:  envInt("BUFFER_WINDOW_SECONDS", 60),
			BaseDelaySeconds:     envInt("AUTO_BASE_DELAY_SECONDS", 30),
			AutoModeEnabled:      os.Getenv("AUTO_MODE") == "true",
			ReviewRetentionHours: envInt("REVIEW_RETENTION_HOURS", 720),
		},
		Prompts: promptsConfig,
		Debug:   os.Getenv("DEBUG") == "true",
	}
}

// envInt reads an integer environment variable with a default
func envInt(name string, def int) int {
	if val := os.Getenv(name); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// BufferWindow returns the debounce quiet period
func (c *Config) BufferWindow() time.Duration {
	return time.Duration(c.Behavior.BufferWindowSeconds) * time.Second
}

// InitialPolicy returns the auto-mode policy at startup
func (c *Config) InitialPolicy() domain.AutoModePolicy {
	return domain.AutoModePolicy{
		Enabled:   c.Behavior.AutoModeEnabled,
		BaseDelay: time.Duration(c.Behavior.BaseDelaySeconds) * time.Second,
	}
}

// ToPromptConfig converts to the prompt builder configuration
func (c *Config) ToPromptConfig() usecase.PromptConfig {
	if c.Prompts == nil {
		return usecase.DefaultPromptConfig
	}

	cfg := usecase.PromptConfig{
		SystemPrompt:      c.Prompts.Persona.SystemPrompt,
		HistoryMarker:     c.Prompts.Persona.HistoryMarker,
		CurrentMarker:     c.Prompts.Persona.CurrentMarker,
		MaxHistoryCount:   c.Prompts.History.MaxCount,
		MaxHistoryMinutes: c.Prompts.History.MaxMinutes,
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = usecase.DefaultPromptConfig.SystemPrompt
	}
	if cfg.HistoryMarker == "" {
		cfg.HistoryMarker = usecase.DefaultPromptConfig.HistoryMarker
	}
	if cfg.CurrentMarker == "" {
		cfg.CurrentMarker = usecase.DefaultPromptConfig.CurrentMarker
	}
	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return &ConfigError{Field: "GEMINI_API_KEY", Message: "required"}
	}
	if c.ManyChat.APIToken == "" {
		return &ConfigError{Field: "MANYCHAT_API_TOKEN", Message: "required"}
	}
	if c.Behavior.BufferWindowSeconds <= 0 {
		return &ConfigError{Field: "BUFFER_WINDOW_SECONDS", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
