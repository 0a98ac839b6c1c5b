// internal/assistant/compose-fallback/corrector_test.go
package composefallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrect(t *testing.T) {
	c := NewCorrector()

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"typos and region code", "comunitys in regon 9", "communities in Region IX"},
		{"phrase after word fixes", "how many comunity in regon 10?", "how many communities in Region X?"},
		{"case is preserved", "Shwo WORKSHP in Zambonga", "Show WORKSHOP in Zamboanga"},
		{"bare code after from", "communities from 12", "communities from Region XII"},
		{"roman code is canonicalised", "projects in region xi", "projects in Region XI"},
		{"trailing punctuation kept", "lsit policys.", "list policies."},
		{"clean query untouched", "How many communities in Region IX?", "How many communities in Region IX?"},
		{"unrelated number untouched", "top 10 communities", "top 10 communities"},
		{"province only recased", "how many communities in maguindanao", "how many communities in Maguindanao"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Correct(tt.query))
		})
	}
}

func TestHasCorrections(t *testing.T) {
	c := NewCorrector()
	assert.True(t, c.HasCorrections("comunitys in regon 9"))
	assert.True(t, c.HasCorrections("communities in region 9"))
	assert.False(t, c.HasCorrections("how many communities in davao"))
	assert.False(t, c.HasCorrections("communities in region ix"))

	for _, province := range []string{"maguindanao", "Maguindanao", "davao", "cotabato", "zamboanga"} {
		t.Run(province, func(t *testing.T) {
			assert.False(t, c.HasCorrections("how many communities in "+province))
		})
	}
}

func TestCorrectionConfidence(t *testing.T) {
	c := NewCorrector()

	assert.Equal(t, 0.0, c.CorrectionConfidence("same", "same"))
	assert.Equal(t, 0.0, c.CorrectionConfidence("", "x"))
	assert.InDelta(t, 0.25, c.CorrectionConfidence("comunitys in regon 9", "communities in Region IX"), 1e-9)
	assert.InDelta(t, 2.0/3, c.CorrectionConfidence("lsit all policies", "list all policies"), 1e-9)
}

func TestSuggestAlternatives(t *testing.T) {
	c := NewCorrector()

	got := c.SuggestAlternatives("comunitys in regon 9", 5)
	assert.Equal(t, []string{
		"communities in Region IX",
		"How many communities are in Region IX?",
		"Show me communities in Region IX",
		"List all communities in Region IX",
		"Count communities in Region IX",
	}, got)

	got = c.SuggestAlternatives("workshops in davao", 10)
	assert.Equal(t, "How many workshops in davao?", got[0])
	assert.Len(t, got, 4)

	got = c.SuggestAlternatives("policies please", 2)
	assert.Equal(t, []string{"Show me all policy recommendations", "List approved policy recommendations"}, got)

	assert.Empty(t, c.SuggestAlternatives("hello there", 5))
}
