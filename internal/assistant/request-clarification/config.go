package requestclarification

import "time"

type Config struct {
	SessionTTL time.Duration
	// MaxRounds bounds how many dialogs one original query may chain.
	MaxRounds int
}

func LoadConfig() *Config {
	return &Config{
		SessionTTL: 30 * time.Minute,
		MaxRounds:  3,
	}
}
