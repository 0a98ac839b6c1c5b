// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "ASSISTANT"

// Load reads configs/config.yaml (optional), config.<env>.yaml (optional), a .env
// file (optional) and ASSISTANT_* environment variables, in that order.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv(envPrefix + "_APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile reads exactly one YAML file plus environment overrides.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finish(v)
}

// Default returns a validated configuration built only from defaults, used by
// the CLI and tests that run the pipeline on in-memory adapters.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)
	return v
}

// bindEnvKeys registers every known key so AutomaticEnv can override values
// that are absent from the YAML files.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"app.name", "app.environment",
		"server.port",
		"database.postgres.enabled", "database.postgres.host", "database.postgres.port",
		"database.postgres.database", "database.postgres.user", "database.postgres.password",
		"database.redis.address", "database.redis.password", "database.redis.db",
		"database.elasticsearch.enabled", "database.elasticsearch.url",
		"database.elasticsearch.username", "database.elasticsearch.password",
		"logging.level", "logging.format",
		"scheduler.enabled", "scheduler.stats_refresh_cron",
		"observability.jaeger_endpoint",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "community-assistant"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Postgres.QueryTimeout == 0 {
		cfg.Database.Postgres.QueryTimeout = 5000
	}
	if cfg.Database.Redis.Address == "" {
		cfg.Database.Redis.Address = "localhost:6379"
	}
	if cfg.Database.Redis.PoolSize == 0 {
		cfg.Database.Redis.PoolSize = 10
	}
	if cfg.Database.Redis.DialTimeout == 0 {
		cfg.Database.Redis.DialTimeout = 5000
	}
	if cfg.Database.Redis.ReadTimeout == 0 {
		cfg.Database.Redis.ReadTimeout = 3000
	}
	if cfg.Database.Redis.WriteTimeout == 0 {
		cfg.Database.Redis.WriteTimeout = 3000
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Elasticsearch.QueryLogIndex == "" {
		cfg.Database.Elasticsearch.QueryLogIndex = "assistant-query-log"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	applyAssistantDefaults(&cfg.Assistant)

	if cfg.Scheduler.StatsRefreshCron == "" {
		cfg.Scheduler.StatsRefreshCron = "@every 6h"
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}
}

func applyAssistantDefaults(a *AssistantConfig) {
	if a.FAQ.FuzzyThreshold == 0 {
		a.FAQ.FuzzyThreshold = 0.75
	}
	if a.FAQ.CriticalPriority == 0 {
		a.FAQ.CriticalPriority = 18
	}
	if a.FAQ.CriticalLeniency == 0 {
		a.FAQ.CriticalLeniency = 0.05
	}
	if a.FAQ.LegacyThreshold == 0 {
		a.FAQ.LegacyThreshold = 0.75
	}
	if a.FAQ.StatsTTL == 0 {
		a.FAQ.StatsTTL = 24 * 60 * 60 * 1000
	}
	if a.FAQ.HitsTTL == 0 {
		a.FAQ.HitsTTL = 24 * 60 * 60 * 1000
	}

	if a.Clarification.SessionTTL == 0 {
		a.Clarification.SessionTTL = 30 * 60 * 1000
	}
	if a.Clarification.MaxRounds == 0 {
		a.Clarification.MaxRounds = 3
	}

	if a.Sandbox.MaxRows == 0 {
		a.Sandbox.MaxRows = 1000
	}
	if a.Sandbox.MaxExpressionLength == 0 {
		a.Sandbox.MaxExpressionLength = 2000
	}

	if a.Fallback.MaxSuggestions == 0 {
		a.Fallback.MaxSuggestions = 5
	}
	if a.Fallback.SimilarThreshold == 0 {
		a.Fallback.SimilarThreshold = 0.5
	}
	if a.Fallback.SimilarCacheTTL == 0 {
		a.Fallback.SimilarCacheTTL = 5 * 60 * 1000
	}
	if a.Fallback.HistoryWindowDays == 0 {
		a.Fallback.HistoryWindowDays = 30
	}
	if a.Fallback.MinConfidence == 0 {
		a.Fallback.MinConfidence = 0.7
	}
	if a.Fallback.HistoryLimit == 0 {
		a.Fallback.HistoryLimit = 100
	}

	if a.Conversation.MaxHistory == 0 {
		a.Conversation.MaxHistory = 5
	}
	if a.Conversation.ContextTTL == 0 {
		a.Conversation.ContextTTL = 30 * 60 * 1000
	}
	if a.Conversation.SessionTTL == 0 {
		a.Conversation.SessionTTL = 2 * 60 * 60 * 1000
	}

	if a.Similarity.CacheSize == 0 {
		a.Similarity.CacheSize = 1000
	}
	if a.Templates.MaxCandidates == 0 {
		a.Templates.MaxCandidates = 5
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Enabled {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	}

	if cfg.Database.Elasticsearch.Enabled && cfg.Database.Elasticsearch.GetURL() == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required")
	}

	a := cfg.Assistant
	for name, v := range map[string]float64{
		"assistant.faq.fuzzy_threshold":        a.FAQ.FuzzyThreshold,
		"assistant.faq.legacy_threshold":       a.FAQ.LegacyThreshold,
		"assistant.fallback.similar_threshold": a.Fallback.SimilarThreshold,
		"assistant.fallback.min_confidence":    a.Fallback.MinConfidence,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %v", name, v)
		}
	}
	if a.FAQ.CriticalLeniency < 0 || a.FAQ.CriticalLeniency >= a.FAQ.FuzzyThreshold {
		return fmt.Errorf("assistant.faq.critical_leniency must be in [0, fuzzy_threshold)")
	}
	if a.Clarification.MaxRounds < 1 {
		return fmt.Errorf("assistant.clarification.max_rounds must be at least 1")
	}
	if a.Sandbox.MaxRows < 1 {
		return fmt.Errorf("assistant.sandbox.max_rows must be at least 1")
	}
	if a.Conversation.MaxHistory < 1 {
		return fmt.Errorf("assistant.conversation.max_history must be at least 1")
	}
	return nil
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
