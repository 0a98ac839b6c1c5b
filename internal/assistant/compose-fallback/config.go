package composefallback

import "time"

type Config struct {
	// MaxSuggestions caps each suggestion list.
	MaxSuggestions   int
	SimilarThreshold float64
	SimilarCacheTTL  time.Duration
	HistoryWindow    time.Duration
	// MinConfidence is the confidence a logged exchange needs to be offered
	// as a similar query.
	MinConfidence float64
	HistoryLimit  int
	// FailureConfidence is the bound below which an exchange counts as
	// failed in Stats.
	FailureConfidence float64
}

func LoadConfig() *Config {
	return &Config{
		MaxSuggestions:    5,
		SimilarThreshold:  0.5,
		SimilarCacheTTL:   5 * time.Minute,
		HistoryWindow:     30 * 24 * time.Hour,
		MinConfidence:     0.7,
		HistoryLimit:      100,
		FailureConfidence: 0.5,
	}
}
