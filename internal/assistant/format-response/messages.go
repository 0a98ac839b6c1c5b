// internal/assistant/format-response/messages.go
package formatresponse

import (
	"fmt"
	"strings"

	"community-assistant/internal/models"
)

// Pages the navigation intent can open, keyed by target.
var navigationURLs = map[string]string{
	"dashboard":    "/dashboard/",
	"communities":  "/communities/",
	"mana":         "/mana/",
	"coordination": "/coordination/",
	"policies":     "/policies/",
	"projects":     "/project-central/",
}

// Classifier entity names that open another section's page.
var navigationAliases = map[string]string{
	"regions":       "communities",
	"workshops":     "mana",
	"organizations": "coordination",
}

// NavigationURL resolves a navigation target, defaulting to the dashboard.
func NavigationURL(target string) (string, string) {
	if alias, ok := navigationAliases[target]; ok {
		target = alias
	}
	if url, ok := navigationURLs[target]; ok {
		return target, url
	}
	return "dashboard", navigationURLs["dashboard"]
}

func (f *Formatter) Navigation(target string) models.ChatResponse {
	target, url := NavigationURL(target)
	return models.ChatResponse{
		Response:          fmt.Sprintf("I'll take you to the %s page.", target),
		Data:              map[string]interface{}{"redirectUrl": url, "target": target},
		Suggestions:       []string{},
		VisualizationHint: models.VizText,
	}
}

func (f *Formatter) Help(topic string) models.ChatResponse {
	var b strings.Builder
	b.WriteString("**Community Assistant - Quick Help**\n\n")
	b.WriteString("I can help you with:\n\n")

	b.WriteString("**Data Queries**\n")
	b.WriteString("Ask about communities, assessments, and activities:\n")
	b.WriteString("- 'How many communities are in Region IX?'\n")
	b.WriteString("- 'Show me MANA assessments in Zamboanga'\n")
	b.WriteString("- 'List coordination workshops this month'\n")
	b.WriteString("- 'Count active policy recommendations'\n\n")

	b.WriteString("**Analysis**\n")
	b.WriteString("- 'What is the total population of communities in Region IX?'\n")
	b.WriteString("- 'Break down communities by livelihood'\n")
	b.WriteString("- 'Average budget of approved policies'\n\n")

	b.WriteString("**Navigation**\n")
	b.WriteString("- 'Take me to the dashboard'\n")
	b.WriteString("- 'Open the MANA module'\n")
	b.WriteString("- 'Go to communities page'\n\n")

	b.WriteString("**Tips:**\n")
	b.WriteString("- Use natural language - just ask!\n")
	b.WriteString("- Click any suggestion chip to try it\n")
	b.WriteString("- Be specific about locations or dates")

	data := map[string]interface{}{}
	if topic != "" {
		data["topic"] = topic
	}
	return models.ChatResponse{
		Response: b.String(),
		Data:     data,
		Suggestions: []string{
			"How many communities are there?",
			"Show me recent assessments",
			"List coordination activities",
		},
		VisualizationHint: models.VizText,
	}
}

func (f *Formatter) Greeting() models.ChatResponse {
	return models.ChatResponse{
		Response: "Hello! I'm the Community Assistant.\n\n" +
			"I can help you:\n" +
			"- Find data about communities, workshops, and projects\n" +
			"- Analyze trends and patterns\n" +
			"- Navigate the system\n\n" +
			"What would you like to know?",
		Data: map[string]interface{}{},
		Suggestions: []string{
			"How many communities are in the system?",
			"Show me recent MANA assessments",
			"What are the top priorities?",
		},
		VisualizationHint: models.VizText,
	}
}

func (f *Formatter) Thanks() models.ChatResponse {
	return models.ChatResponse{
		Response: "You're welcome! Is there anything else I can help you with?",
		Data:     map[string]interface{}{},
		Suggestions: []string{
			"How many communities are there?",
			"Show me recent assessments",
			"What can you do?",
		},
		VisualizationHint: models.VizText,
	}
}

// AnalysisGuidance answers analysis requests no aggregate template could serve.
func (f *Formatter) AnalysisGuidance() models.ChatResponse {
	return models.ChatResponse{
		Response: "I can analyze totals, averages and breakdowns of the records I know about. " +
			"Try naming what to measure and where, for example the total population of communities in a region.",
		Data: map[string]interface{}{},
		Suggestions: []string{
			"What is the total population of communities in Region IX?",
			"Break down communities by livelihood",
			"What is the average budget of policy recommendations?",
		},
		VisualizationHint: models.VizText,
	}
}

func (f *Formatter) Unknown() models.ChatResponse {
	return models.ChatResponse{
		Response: "I'm not sure how to help with that. Can you try rephrasing your question?",
		Data:     map[string]interface{}{},
		Suggestions: []string{
			"What can you help me with?",
			"How many communities are there?",
			"Show me example queries",
		},
		VisualizationHint: models.VizText,
	}
}

// Error explains a failed request and points at ways forward.
func (f *Formatter) Error(msg, query string) models.ChatResponse {
	var b strings.Builder
	b.WriteString("I encountered an issue processing your request:\n\n")
	fmt.Fprintf(&b, "*%s*\n\n", msg)
	b.WriteString("You can try:\n")
	b.WriteString("- Rephrasing your question\n")
	b.WriteString("- Being more specific\n")
	b.WriteString("- Asking for help with available commands")
	return models.ChatResponse{
		Response: b.String(),
		Data:     map[string]interface{}{"error": msg, "query": query},
		Suggestions: []string{
			"What can you help me with?",
			"Show me example queries",
			"Help with search",
		},
		VisualizationHint: models.VizText,
	}
}

// Apology is returned when answering the message failed unexpectedly.
func (f *Formatter) Apology() models.ChatResponse {
	return models.ChatResponse{
		Response:          "Sorry, something went wrong while answering your question. Please try again in a moment.",
		Data:              map[string]interface{}{},
		Suggestions:       []string{"What can you help me with?"},
		VisualizationHint: models.VizText,
	}
}

func (f *Formatter) FAQ(m *models.FAQMatch) models.ChatResponse {
	return models.ChatResponse{
		Response: m.Answer,
		Data: map[string]interface{}{
			"faqId":    m.EntryID,
			"category": m.Category,
			"tier":     m.Tier,
		},
		Suggestions:       f.cap(nonNil(m.RelatedQueries), f.config.MaxSuggestions),
		VisualizationHint: models.VizText,
	}
}

// Clarification presents a dialog; option labels double as suggestion chips.
func (f *Formatter) Clarification(d *models.ClarificationDialog) models.ChatResponse {
	labels := make([]string, len(d.Options))
	for i, o := range d.Options {
		labels[i] = o.Label
	}
	return models.ChatResponse{
		Response:          d.Question,
		Data:              map[string]interface{}{"issueType": d.IssueType, "sessionId": d.SessionID},
		Suggestions:       labels,
		Clarification:     d,
		VisualizationHint: models.VizText,
	}
}

func (f *Formatter) Fallback(fr models.FallbackResponse) models.ChatResponse {
	var b strings.Builder
	b.WriteString("I couldn't find an answer to that question.")
	if fr.Analysis.Explanation != "" {
		b.WriteString(" " + fr.Analysis.Explanation)
	}
	if fr.Analysis.Suggestion != "" {
		b.WriteString("\n\n" + fr.Analysis.Suggestion)
	}
	return models.ChatResponse{
		Response: b.String(),
		Data: map[string]interface{}{
			"fallback": fr,
		},
		Suggestions:       f.cap(nonNil(fr.Suggestions.All()), f.config.MaxFallbackSuggestions),
		VisualizationHint: models.VizText,
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
