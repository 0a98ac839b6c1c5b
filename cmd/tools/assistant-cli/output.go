// cmd/tools/assistant-cli/output.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"community-assistant/internal/models"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResponse(w io.Writer, resp models.ChatResponse) {
	fmt.Fprintln(w, resp.Response)

	if d := resp.Clarification; d != nil {
		fmt.Fprintln(w)
		for _, o := range d.Options {
			fmt.Fprintf(w, "  [%s] %s\n", o.Key, o.Label)
		}
		fmt.Fprintf(w, "\nAnswer with: assistant-cli clarify --session %s --choice <key>\n", d.SessionID)
	} else if len(resp.Suggestions) > 0 {
		fmt.Fprintln(w, "\nYou could also ask:")
		for _, s := range resp.Suggestions {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}

	meta := []string{
		"source=" + string(resp.Source),
		"intent=" + string(resp.Intent),
		fmt.Sprintf("confidence=%.2f", resp.Confidence),
	}
	if resp.GeneratedQuery != "" {
		meta = append(meta, "query="+resp.GeneratedQuery)
	}
	fmt.Fprintf(w, "\n(%s)\n", strings.Join(meta, " "))
}

func printOutcome(w io.Writer, out models.ClarificationOutcome) {
	if out.Abandoned {
		fmt.Fprintln(w, "That clarification has expired.")
	}
	if out.RefinedQuery != "" {
		fmt.Fprintf(w, "Refined question: %s\n\n", out.RefinedQuery)
	}

	switch {
	case out.NeedsMoreClarification && out.Next != nil:
		printResponse(w, models.ChatResponse{
			Response:      out.Next.Question,
			Clarification: out.Next,
			Source:        models.SourceClarification,
		})
	case out.Answer != nil:
		printResponse(w, *out.Answer)
	default:
		fmt.Fprintln(w, "Ask the question again to continue.")
	}
}

func clarificationRequest(userID, sessionID, choice, original string) models.ClarificationRequest {
	return models.ClarificationRequest{
		UserID:        userID,
		SessionID:     strings.TrimSpace(sessionID),
		Choice:        strings.TrimSpace(choice),
		OriginalQuery: original,
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
