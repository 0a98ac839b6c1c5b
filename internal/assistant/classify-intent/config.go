package classifyintent

// Config holds the per-signal weights and caps of the intent score.
type Config struct {
	KeywordWeight float64
	KeywordCap    float64
	PatternWeight float64
	PatternCap    float64
	EntityWeight  float64
	EntityCap     float64
}

func LoadConfig() *Config {
	return &Config{
		KeywordWeight: 0.3,
		KeywordCap:    0.6,
		PatternWeight: 0.5,
		PatternCap:    0.8,
		EntityWeight:  0.2,
		EntityCap:     0.4,
	}
}
