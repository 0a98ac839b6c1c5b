// Package formatresponse turns sandbox results and pipeline outcomes into chat
// replies with follow-up suggestions and a visualization hint.
package formatresponse

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"community-assistant/internal/common/logger"
	"community-assistant/internal/common/textutil"
	"community-assistant/internal/models"
)

// Query is what the formatter knows about the question behind a result.
type Query struct {
	Question string
	// Subject is the plural display name of the queried record type, when known.
	Subject string
	// Topics are the classifier's matched entity names, e.g. "communities".
	Topics   []string
	Entities models.Entities
}

type Formatter struct {
	config *Config
	logger logger.Logger
}

func NewFormatter(config *Config, log logger.Logger) *Formatter {
	if config == nil {
		config = LoadConfig()
	}
	return &Formatter{
		config: config,
		logger: logger.ForComponent(log, "format-response"),
	}
}

// Result formats a successful sandbox execution.
func (f *Formatter) Result(res models.SandboxResult, q Query) models.ChatResponse {
	switch v := res.Value.(type) {
	case int64:
		return f.Count(v, q)
	case bool:
		return f.Exists(v, q)
	case map[string]interface{}:
		return f.Aggregate(v, q)
	case []models.Record:
		if field, ok := breakdownField(v); ok {
			return f.Breakdown(v, field, q)
		}
		return f.List(v, res.Truncated, q)
	case []interface{}:
		records := make([]models.Record, len(v))
		for i, x := range v {
			records[i] = models.Record{"value": x}
		}
		return f.List(records, res.Truncated, q)
	}
	return f.Generic(res.Value)
}

func (f *Formatter) Count(n int64, q Query) models.ChatResponse {
	noun := countNoun(q)
	plural := pluralize(noun)
	where := locationPhrase(q.Entities)

	var text string
	switch n {
	case 0:
		text = fmt.Sprintf("There are no %s%s matching your query.", plural, where)
	case 1:
		text = fmt.Sprintf("There is 1 %s%s matching your query.", noun, where)
	default:
		text = fmt.Sprintf("There are %s %s%s matching your query.", number(n), plural, where)
	}

	var suggestions []string
	if n > 0 {
		suggestions = append(suggestions,
			"Show me the list of "+plural,
			"Break down by region",
			"Compare with other areas",
		)
	}
	suggestions = append(suggestions, fmt.Sprintf("What are the needs in these %s?", plural))

	hint := models.VizNumber
	if n >= int64(f.config.ChartThreshold) {
		hint = models.VizBarChart
	}
	return models.ChatResponse{
		Response:          text,
		Data:              map[string]interface{}{"count": n, "entity": plural},
		Suggestions:       f.cap(suggestions, f.config.MaxSuggestions),
		VisualizationHint: hint,
	}
}

func (f *Formatter) Exists(found bool, q Query) models.ChatResponse {
	plural := pluralize(countNoun(q))
	where := locationPhrase(q.Entities)
	text := fmt.Sprintf("Yes, there are %s%s matching your query.", plural, where)
	if !found {
		text = fmt.Sprintf("No, there are no %s%s matching your query.", plural, where)
	}
	return models.ChatResponse{
		Response:          text,
		Data:              map[string]interface{}{"exists": found, "entity": plural},
		Suggestions:       f.cap([]string{"Show me the list of " + plural, "How many are there?"}, f.config.MaxSuggestions),
		VisualizationHint: models.VizText,
	}
}

func (f *Formatter) List(items []models.Record, truncated bool, q Query) models.ChatResponse {
	n := len(items)
	noun := listNoun(q)
	plural := pluralize(noun)

	if n == 0 {
		return models.ChatResponse{
			Response:          fmt.Sprintf("No %s found matching your query.", plural),
			Data:              map[string]interface{}{"items": []models.Record{}, "count": 0},
			Suggestions:       []string{"Try a broader search", "Show me all " + plural},
			VisualizationHint: models.VizText,
		}
	}

	preview := n
	if preview > f.config.PreviewItems {
		preview = f.config.PreviewItems
	}

	var b strings.Builder
	if n == 1 {
		fmt.Fprintf(&b, "Found 1 %s. ", noun)
	} else {
		fmt.Fprintf(&b, "Found %s %s. ", number(int64(n)), plural)
	}
	if n > preview {
		fmt.Fprintf(&b, "Here are the first %d:\n\n", preview)
	} else {
		b.WriteString("Here they are:\n\n")
	}
	for i, item := range items[:preview] {
		b.WriteString(f.listItem(i+1, item))
	}
	if n > preview {
		fmt.Fprintf(&b, "\n*Showing %d of %s total results*", preview, number(int64(n)))
	}

	hint := models.VizList
	if n > f.config.TableThreshold {
		hint = models.VizTable
	}
	return models.ChatResponse{
		Response: strings.TrimRight(b.String(), "\n"),
		Data: map[string]interface{}{
			"items":        items,
			"count":        n,
			"previewCount": preview,
			"truncated":    truncated,
		},
		Suggestions:       f.cap(f.listSuggestions(plural, n), f.config.MaxSuggestions),
		VisualizationHint: hint,
	}
}

var priorityFields = []string{"name", "title", "description", "status", "date"}

func (f *Formatter) listItem(index int, item models.Record) string {
	var parts []string
	for _, field := range priorityFields {
		if v, ok := item[field]; ok && truthy(v) {
			parts = append(parts, fmt.Sprintf("**%s**: %s", label(field), f.value(v)))
		}
	}
	if len(parts) == 0 {
		keys := make([]string, 0, len(item))
		for k := range item {
			if k != "id" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			if len(parts) == 3 {
				break
			}
			if v := item[k]; truthy(v) {
				parts = append(parts, fmt.Sprintf("**%s**: %s", label(k), f.value(v)))
			}
		}
	}
	return fmt.Sprintf("%d. %s\n", index, strings.Join(parts, " | "))
}

func (f *Formatter) listSuggestions(plural string, n int) []string {
	var out []string
	if n > f.config.PreviewItems {
		out = append(out, "Show me more details")
	}
	out = append(out, "Filter these "+plural, "Analyze these results")
	switch {
	case strings.Contains(plural, "communities"):
		out = append(out, "Show MANA assessments for these")
	case strings.Contains(plural, "assessments"), strings.Contains(plural, "workshops"):
		out = append(out, "What were the key findings?")
	case strings.Contains(plural, "polic"):
		out = append(out, "Which ones are approved?")
	case strings.Contains(plural, "projects"):
		out = append(out, "What's the total budget?")
	}
	return out
}

// Breakdown formats grouped counts: rows of {field, total}.
func (f *Formatter) Breakdown(items []models.Record, field string, q Query) models.ChatResponse {
	plural := pluralize(listNoun(q))
	var b strings.Builder
	fmt.Fprintf(&b, "Here is the breakdown of %s by %s:\n\n", plural, textutil.Lower(label(field)))
	for i, item := range items {
		name := "Unspecified"
		if v := item[field]; truthy(v) {
			name = f.value(v)
		}
		fmt.Fprintf(&b, "%d. **%s**: %s\n", i+1, name, f.value(item["total"]))
	}
	return models.ChatResponse{
		Response: strings.TrimRight(b.String(), "\n"),
		Data: map[string]interface{}{
			"items":   items,
			"count":   len(items),
			"groupBy": field,
		},
		Suggestions: f.cap([]string{
			"Show me the list of " + plural,
			"Compare with other areas",
			"What's the trend over time?",
		}, f.config.MaxSuggestions),
		VisualizationHint: models.VizBarChart,
	}
}

var currencyTerms = []string{"budget", "funding", "cost", "amount", "allocation"}

// Aggregate formats alias → value maps such as {"population__sum": 6950}.
func (f *Formatter) Aggregate(values map[string]interface{}, q Query) models.ChatResponse {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		field, agg, found := strings.Cut(k, "__")
		fn := "VALUE"
		if found {
			fn = textutil.Upper(agg)
		}
		v := f.value(values[k])
		if isCurrency(field) {
			if isNumeric(values[k]) {
				v = "₱" + v
			}
		}
		lines = append(lines, fmt.Sprintf("**%s (%s)**: %s", label(field), fn, v))
	}

	return models.ChatResponse{
		Response: "Here are the aggregate results:\n\n" + strings.Join(lines, "\n"),
		Data:     values,
		Suggestions: f.cap([]string{
			"Show me the detailed breakdown",
			"Compare this across regions",
			"What's the trend over time?",
		}, f.config.MaxSuggestions),
		VisualizationHint: models.VizMetricCards,
	}
}

func (f *Formatter) Generic(result interface{}) models.ChatResponse {
	f.logger.Debug("Formatting result of unknown shape", map[string]interface{}{
		"type": fmt.Sprintf("%T", result),
	})
	text := fmt.Sprint(result)
	return models.ChatResponse{
		Response:          "Here's what I found:\n\n" + text,
		Data:              map[string]interface{}{"result": text},
		Suggestions:       []string{"Can you clarify your question?", "Show me more details"},
		VisualizationHint: models.VizText,
	}
}

func (f *Formatter) value(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		return number(x)
	case int:
		return number(int64(x))
	case float64:
		return message.NewPrinter(language.English).Sprintf("%.2f", x)
	case bool:
		if x {
			return "Yes"
		}
		return "No"
	case string:
		r := []rune(x)
		if limit := f.config.MaxValueLength; limit > 3 && len(r) > limit {
			return string(r[:limit-3]) + "..."
		}
		return x
	}
	return fmt.Sprint(v)
}

func (f *Formatter) cap(in []string, limit int) []string {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}

// number renders n with thousands separators.
func number(n int64) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}

// countNoun picks the singular noun a count is about. The record type wins
// over words in the question, which wins over classifier topics.
func countNoun(q Query) string {
	if q.Subject != "" {
		return singularize(q.Subject)
	}
	lower := textutil.Lower(q.Question)
	switch {
	case strings.Contains(lower, "communit"):
		return "community"
	case strings.Contains(lower, "barangay"):
		return "barangay"
	case strings.Contains(lower, "municipalit"):
		return "municipality"
	case strings.Contains(lower, "province"):
		return "province"
	case strings.Contains(lower, "region"):
		return "region"
	}
	if len(q.Topics) > 0 {
		return singularize(q.Topics[0])
	}
	return "item"
}

func listNoun(q Query) string {
	if q.Subject != "" {
		return singularize(q.Subject)
	}
	if len(q.Topics) > 0 {
		return singularize(q.Topics[0])
	}
	return "result"
}

func locationPhrase(es models.Entities) string {
	if loc, ok := es.Location(); ok && loc.Value != "" {
		return " in " + loc.Value
	}
	return ""
}

func pluralize(word string) string {
	switch {
	case word == "":
		return word
	case strings.HasSuffix(word, "s"):
		return word
	case strings.HasSuffix(word, "y") && len(word) > 1 && !strings.ContainsAny(word[len(word)-2:len(word)-1], "aeiou"):
		return word[:len(word)-1] + "ies"
	}
	return word + "s"
}

func singularize(word string) string {
	switch {
	case strings.HasSuffix(word, "ies"):
		return strings.TrimSuffix(word, "ies") + "y"
	case strings.HasSuffix(word, "ss"):
		return word
	case strings.HasSuffix(word, "s"):
		return strings.TrimSuffix(word, "s")
	}
	return word
}

// label turns a field name into a heading: "primary_livelihood" → "Primary Livelihood".
func label(field string) string {
	return textutil.Title(strings.ReplaceAll(field, "_", " "))
}

func isCurrency(field string) bool {
	lower := textutil.Lower(field)
	for _, t := range currencyTerms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case int64:
		return x != 0
	case int:
		return x != 0
	case float64:
		return x != 0
	case bool:
		return x
	}
	return true
}

func isNumeric(v interface{}) bool {
	switch v.(type) {
	case int64, int, float64:
		return true
	}
	return false
}

// breakdownField reports the grouping field when every row is a
// {field, total} pair from values(...).annotate(total=...).
func breakdownField(items []models.Record) (string, bool) {
	if len(items) == 0 {
		return "", false
	}
	var field string
	for _, item := range items {
		if len(item) != 2 {
			return "", false
		}
		if _, ok := item["total"]; !ok {
			return "", false
		}
		for k := range item {
			if k == "total" {
				continue
			}
			if field != "" && k != field {
				return "", false
			}
			field = k
		}
	}
	return field, field != ""
}
