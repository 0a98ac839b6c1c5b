package matchfaq

import "time"

type Config struct {
	FuzzyThreshold float64
	// Entries at or above CriticalPriority match with the threshold lowered
	// by CriticalLeniency.
	CriticalPriority int
	CriticalLeniency float64
	LegacyThreshold  float64
	StatsTTL         time.Duration
	HitsTTL          time.Duration
}

func LoadConfig() *Config {
	return &Config{
		FuzzyThreshold:   0.75,
		CriticalPriority: 18,
		CriticalLeniency: 0.05,
		LegacyThreshold:  0.75,
		StatsTTL:         24 * time.Hour,
		HitsTTL:          24 * time.Hour,
	}
}
