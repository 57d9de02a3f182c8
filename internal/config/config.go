package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Database    DatabaseConfig   `json:"database"`
	Port        int              `json:"port"`
	JWTSecret   string           `json:"jwt_secret"`
	JWTTTLHours int              `json:"jwt_ttl_hours"`
	// RateLimitMS throttles each (ip, user, route) tuple to one request per
	// window. Zero disables throttling.
	RateLimitMS int `json:"rate_limit_ms"`
	LogConfig   logger.LogConfig `json:"log_config"`
	AI          AIConfig         `json:"ai"`
	Extract     ExtractConfig    `json:"extract"`
	Retrieval   RetrievalConfig  `json:"retrieval"`
	Jobs        JobsConfig       `json:"jobs"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type AIConfig struct {
	Provider      string      `json:"provider"`
	Model         string      `json:"model"`
	EmbedModel    string      `json:"embed_model"`
	Dimensions    int         `json:"dimensions"`
	Timeout       int         `json:"timeout"`
	MaxInputChars int         `json:"max_input_chars"`
	Data          interface{} `json:"data"`
}

type ExtractConfig struct {
	// Strategy is "linguistic" or "keyword". Linguistic falls back to the
	// keyword strategy when the language model cannot be constructed.
	Strategy string `json:"strategy"`
}

type RetrievalConfig struct {
	DefaultThreshold float64 `json:"default_threshold"`
	DefaultLimit     int     `json:"default_limit"`
}

type JobsConfig struct {
	SessionSummarySpec    string `json:"session_summary_spec"`
	SessionIdleMinutes    int    `json:"session_idle_minutes"`
	CacheCleanupSpec      string `json:"cache_cleanup_spec"`
	CacheRetentionDays    int    `json:"cache_retention_days"`
	DisableSessionSummary bool   `json:"disable_session_summary"`
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
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.Dimensions == 0 {
		cfg.AI.Dimensions = 768
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 30
	}
	if cfg.Extract.Strategy == "" {
		cfg.Extract.Strategy = "linguistic"
	}
	if cfg.Extract.Strategy != "linguistic" && cfg.Extract.Strategy != "keyword" {
		return nil, fmt.Errorf("extract.strategy must be linguistic or keyword")
	}
	if cfg.Retrieval.DefaultThreshold == 0 {
		cfg.Retrieval.DefaultThreshold = 0.3
	}
	if cfg.Retrieval.DefaultLimit == 0 {
		cfg.Retrieval.DefaultLimit = 10
	}
	if cfg.Jobs.SessionSummarySpec == "" {
		cfg.Jobs.SessionSummarySpec = "*/30 * * * *"
	}
	if cfg.Jobs.SessionIdleMinutes == 0 {
		cfg.Jobs.SessionIdleMinutes = 60
	}
	if cfg.Jobs.CacheCleanupSpec == "" {
		cfg.Jobs.CacheCleanupSpec = "0 4 * * *"
	}
	if cfg.Jobs.CacheRetentionDays == 0 {
		cfg.Jobs.CacheRetentionDays = 30
	}
	return &cfg, nil
}
