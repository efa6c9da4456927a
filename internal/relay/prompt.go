package relay

import (
	"strings"

	"github.com/antoniostano/chatrelay/internal/inference"
	"github.com/antoniostano/chatrelay/internal/store"
)

const contextSummaryPrefix = "Context from previous conversations: "

// maxSummaryFacts bounds how many facts feed the system message.
const maxSummaryFacts = 3

// AssemblePrompt merges stored context facts and conversation history into the
// ordered prompt for the inference call. When at least one fact renders, a
// single synthetic system message leads the prompt; the history follows
// verbatim. The live user message is appended later by the inference client,
// not here.
func AssemblePrompt(facts []store.ContextFact, history []store.Turn) []inference.Message {
	prompt := make([]inference.Message, 0, len(history)+1)

	if summary := renderFactSummary(facts); summary != "" {
		prompt = append(prompt, inference.Message{
			Role:    "system",
			Content: contextSummaryPrefix + summary,
		})
	}

	for _, turn := range history {
		prompt = append(prompt, inference.Message{Role: turn.Role, Content: turn.Content})
	}
	return prompt
}

func renderFactSummary(facts []store.ContextFact) string {
	var parts []string
	for _, f := range facts {
		switch f.Type {
		case store.FactCurrentProject:
			parts = append(parts, "Current project context: "+f.Data)
		case store.FactLastRequest:
			parts = append(parts, "Previous request: "+f.Data)
		case store.FactUserPreferences:
			parts = append(parts, "User preference: "+f.Data)
		}
		// Facts outside the closed type set are dropped silently.
	}
	if len(parts) > maxSummaryFacts {
		parts = parts[:maxSummaryFacts]
	}
	return strings.Join(parts, " | ")
}
