package matchtemplate

type Config struct {
	// MaxCandidates caps how many templates Run tries before giving up.
	MaxCandidates int
}

func LoadConfig() *Config {
	return &Config{MaxCandidates: 5}
}
