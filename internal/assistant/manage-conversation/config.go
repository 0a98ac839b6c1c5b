package manageconversation

import "time"

type Config struct {
	MaxHistory int
	// ContextTTL bounds the cached context; SessionTTL bounds the session id
	// and is refreshed on every exchange.
	ContextTTL time.Duration
	SessionTTL time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MaxHistory: 5,
		ContextTTL: 30 * time.Minute,
		SessionTTL: 2 * time.Hour,
	}
}
