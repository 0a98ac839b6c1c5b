// Package similarity provides the string measures used by FAQ matching and
// the fallback composer: trimmed Levenshtein, word Jaccard and their blend.
package similarity

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	EditWeight  = 0.6
	TokenWeight = 0.4

	DefaultCacheSize = 1000
)

// Match is one candidate scored by FindMostSimilar.
type Match struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
	Index int     `json:"index"`
}

// Engine blends edit and token similarity and memoizes pairwise scores.
// Safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	cache    map[pairKey]float64
	order    []pairKey
	capacity int
}

type pairKey struct{ a, b string }

func NewEngine(cacheSize int) *Engine {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	return &Engine{
		cache:    make(map[pairKey]float64, cacheSize),
		capacity: cacheSize,
	}
}

// Similarity returns 0.6*edit + 0.4*token for a and b.
func (e *Engine) Similarity(a, b string) float64 {
	key := orderedKey(a, b)

	e.mu.Lock()
	if v, ok := e.cache[key]; ok {
		e.mu.Unlock()
		return v
	}
	e.mu.Unlock()

	score := Blend(a, b)

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.cache[key]; ok {
		return score
	}
	// FIFO eviction
	if len(e.order) >= e.capacity {
		oldest := e.order[0]
		e.order = e.order[1:]
		delete(e.cache, oldest)
	}
	e.cache[key] = score
	e.order = append(e.order, key)
	return score
}

// FindMostSimilar scores every candidate against query, keeps those at or
// above threshold and returns the best limit, highest first. Equal scores
// keep candidate order. A limit <= 0 returns all matches.
func (e *Engine) FindMostSimilar(query string, candidates []string, threshold float64, limit int) []Match {
	matches := make([]Match, 0, len(candidates))
	for i, c := range candidates {
		score := e.Similarity(query, c)
		if score >= threshold {
			matches = append(matches, Match{Text: c, Score: score, Index: i})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// CacheLen reports the number of memoized pairs.
func (e *Engine) CacheLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}

func orderedKey(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// Blend is the uncached weighted similarity. Identical strings score 1; a
// blank side against anything else scores 0.
func Blend(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0.0
	}
	return EditWeight*EditSimilarity(a, b) + TokenWeight*TokenSimilarity(a, b)
}

// EditSimilarity is 1 - distance/max(len) over runes. Two empty strings are
// identical; one empty string scores 0.
func EditSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(Levenshtein(a, b))/float64(longest)
}

// Levenshtein computes edit distance over runes. Common prefix and suffix are
// trimmed first and a single DP row sized to the shorter string is used.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	for len(ra) > 0 && len(rb) > 0 && ra[0] == rb[0] {
		ra, rb = ra[1:], rb[1:]
	}
	for len(ra) > 0 && len(rb) > 0 && ra[len(ra)-1] == rb[len(rb)-1] {
		ra, rb = ra[:len(ra)-1], rb[:len(rb)-1]
	}

	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if len(rb) == 0 {
		return len(ra)
	}

	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		prevDiag := row[0]
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			above := row[j]
			row[j] = min(above+1, row[j-1]+1, prevDiag+cost)
			prevDiag = above
		}
	}
	return row[len(rb)]
}

// TokenSimilarity is the Jaccard coefficient of the word sets. A side with
// no words scores 0.
func TokenSimilarity(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}
	inter := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
