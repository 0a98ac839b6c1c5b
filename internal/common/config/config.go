package config

import "fmt"

type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Assistant     AssistantConfig     `mapstructure:"assistant"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // milliseconds
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	QueryTimeout   int    `mapstructure:"query_timeout"` // milliseconds
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Addresses     []string `mapstructure:"addresses"`
	Username      string   `mapstructure:"username"`
	Password      string   `mapstructure:"password"`
	URL           string   `mapstructure:"url"`
	QueryLogIndex string   `mapstructure:"query_log_index"`
}

func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	DialTimeout  int    `mapstructure:"dial_timeout"`  // milliseconds
	ReadTimeout  int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int    `mapstructure:"write_timeout"` // milliseconds
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// AssistantConfig carries the pipeline tunables. Durations are milliseconds.
type AssistantConfig struct {
	FAQ           FAQConfig           `mapstructure:"faq"`
	Clarification ClarificationConfig `mapstructure:"clarification"`
	Sandbox       SandboxConfig       `mapstructure:"sandbox"`
	Fallback      FallbackConfig      `mapstructure:"fallback"`
	Conversation  ConversationConfig  `mapstructure:"conversation"`
	Similarity    SimilarityConfig    `mapstructure:"similarity"`
	Templates     TemplatesConfig     `mapstructure:"templates"`
}

type FAQConfig struct {
	FuzzyThreshold   float64 `mapstructure:"fuzzy_threshold"`
	CriticalPriority int     `mapstructure:"critical_priority"`
	CriticalLeniency float64 `mapstructure:"critical_leniency"`
	LegacyThreshold  float64 `mapstructure:"legacy_threshold"`
	StatsTTL         int     `mapstructure:"stats_ttl"`
	HitsTTL          int     `mapstructure:"hits_ttl"`
}

type ClarificationConfig struct {
	SessionTTL int `mapstructure:"session_ttl"`
	MaxRounds  int `mapstructure:"max_rounds"`
}

type SandboxConfig struct {
	MaxRows             int `mapstructure:"max_rows"`
	MaxExpressionLength int `mapstructure:"max_expression_length"`
}

type FallbackConfig struct {
	MaxSuggestions    int     `mapstructure:"max_suggestions"`
	SimilarThreshold  float64 `mapstructure:"similar_threshold"`
	SimilarCacheTTL   int     `mapstructure:"similar_cache_ttl"`
	HistoryWindowDays int     `mapstructure:"history_window_days"`
	MinConfidence     float64 `mapstructure:"min_confidence"`
	HistoryLimit      int     `mapstructure:"history_limit"`
}

type ConversationConfig struct {
	MaxHistory int `mapstructure:"max_history"`
	ContextTTL int `mapstructure:"context_ttl"`
	SessionTTL int `mapstructure:"session_ttl"`
}

type SimilarityConfig struct {
	CacheSize int `mapstructure:"cache_size"`
}

type TemplatesConfig struct {
	MaxCandidates int `mapstructure:"max_candidates"`
}

type SchedulerConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	StatsRefreshCron string `mapstructure:"stats_refresh_cron"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}
