package config

import (
	"encoding/json"
	"fmt"
	"os"
)

type Config struct {
	Port        int            `json:"port"`
	JWTSecret   string         `json:"jwt_secret"`
	JWTTTLHours int            `json:"jwt_ttl_hours"`
	LogLevel    string         `json:"log_level"`
	LogConsole  bool           `json:"log_console"`
	CORSOrigins []string       `json:"cors_origins"`
	Database    DatabaseConfig `json:"database"`
	AI          AIConfig       `json:"ai"`
	Legifrance  LegifranceCfg  `json:"legifrance"`
	Jobs        JobsConfig     `json:"jobs"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

// AIConfig holds the process-wide defaults; requests and tenant settings
// can override provider and model per call.
type AIConfig struct {
	Provider      string `json:"provider"`
	ChatModel     string `json:"chat_model"`
	EmbedModel    string `json:"embed_model"`
	APIKey        string `json:"api_key"`
	BaseURL       string `json:"base_url"`
	Timeout       int    `json:"timeout"`
	MaxInputChars int    `json:"max_input_chars"`
}

type LegifranceCfg struct {
	Enabled      bool   `json:"enabled"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TokenURL     string `json:"token_url"`
	BaseURL      string `json:"base_url"`
}

type JobsConfig struct {
	EmbeddingBackfillSpec  string `json:"embedding_backfill_spec"`
	EmbeddingBackfillDelay int64  `json:"embedding_backfill_delay_seconds"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "openai"
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60
	}
	if cfg.AI.MaxInputChars == 0 {
		cfg.AI.MaxInputChars = 100000
	}
	if cfg.Legifrance.Enabled {
		if cfg.Legifrance.ClientID == "" || cfg.Legifrance.ClientSecret == "" {
			return nil, fmt.Errorf("legifrance.client_id and legifrance.client_secret are required when enabled")
		}
	}
	if cfg.Jobs.EmbeddingBackfillSpec == "" {
		cfg.Jobs.EmbeddingBackfillSpec = "*/10 * * * *"
	}
	if cfg.Jobs.EmbeddingBackfillDelay == 0 {
		cfg.Jobs.EmbeddingBackfillDelay = 300
	}
	return &cfg, nil
}
