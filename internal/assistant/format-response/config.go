package formatresponse

type Config struct {
	// PreviewItems caps how many list rows are written into the reply text.
	PreviewItems           int
	MaxSuggestions         int
	MaxFallbackSuggestions int
	// ChartThreshold is the count at which a number is drawn as a bar chart.
	ChartThreshold int
	// TableThreshold is the row count above which a list is drawn as a table.
	TableThreshold int
	MaxValueLength int
}

func LoadConfig() *Config {
	return &Config{
		PreviewItems:           5,
		MaxSuggestions:         3,
		MaxFallbackSuggestions: 5,
		ChartThreshold:         10,
		TableThreshold:         10,
		MaxValueLength:         100,
	}
}
