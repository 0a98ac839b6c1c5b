package pipeline

type Config struct {
	// MaxSuggestions caps suggestions once conversation follow-ups are merged in.
	MaxSuggestions int
}

func LoadConfig() *Config {
	return &Config{MaxSuggestions: 5}
}
