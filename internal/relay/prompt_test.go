package relay

import (
	"testing"

	"github.com/antoniostano/chatrelay/internal/store"
)

func TestAssemblePromptLeadingSystemMessage(t *testing.T) {
	facts := []store.ContextFact{{Type: store.FactCurrentProject, Data: "Web project: X"}}
	history := []store.Turn{{Role: store.RoleUser, Content: "hi"}}

	prompt := AssemblePrompt(facts, history)
	if len(prompt) != 2 {
		t.Fatalf("len(prompt) = %d, want 2", len(prompt))
	}
	if prompt[0].Role != "system" {
		t.Fatalf("prompt[0].Role = %q, want system", prompt[0].Role)
	}
	want := "Context from previous conversations: Current project context: Web project: X"
	if prompt[0].Content != want {
		t.Fatalf("prompt[0].Content = %q, want %q", prompt[0].Content, want)
	}
	if prompt[1].Role != store.RoleUser || prompt[1].Content != "hi" {
		t.Fatalf("prompt[1] = %+v, want history entry unchanged", prompt[1])
	}
}

func TestAssemblePromptNoFactsNoSystemMessage(t *testing.T) {
	history := []store.Turn{
		{Role: store.RoleUser, Content: "a"},
		{Role: store.RoleAssistant, Content: "b"},
	}
	prompt := AssemblePrompt(nil, history)
	if len(prompt) != 2 {
		t.Fatalf("len(prompt) = %d, want 2", len(prompt))
	}
	if prompt[0].Role == "system" {
		t.Fatalf("unexpected system message with no facts")
	}
}

func TestAssemblePromptPipeJoinAndCap(t *testing.T) {
	facts := []store.ContextFact{
		{Type: store.FactCurrentProject, Data: "p"},
		{Type: store.FactLastRequest, Data: "r"},
		{Type: store.FactUserPreferences, Data: "u"},
	}
	prompt := AssemblePrompt(facts, nil)
	want := "Context from previous conversations: Current project context: p | Previous request: r | User preference: u"
	if len(prompt) != 1 || prompt[0].Content != want {
		t.Fatalf("prompt = %+v, want single system message %q", prompt, want)
	}
}

func TestAssemblePromptDropsUnknownFactTypes(t *testing.T) {
	facts := []store.ContextFact{
		{Type: "mystery_type", Data: "x"},
		{Type: store.FactLastRequest, Data: "r"},
	}
	prompt := AssemblePrompt(facts, nil)
	want := "Context from previous conversations: Previous request: r"
	if len(prompt) != 1 || prompt[0].Content != want {
		t.Fatalf("prompt = %+v, want unknown type silently dropped", prompt)
	}
}

func TestAssemblePromptOnlyUnknownFactsMeansNoSystemMessage(t *testing.T) {
	facts := []store.ContextFact{{Type: "mystery_type", Data: "x"}}
	if prompt := AssemblePrompt(facts, nil); len(prompt) != 0 {
		t.Fatalf("prompt = %+v, want empty", prompt)
	}
}
