package relay

import (
	"context"
	"log"
	"strings"

	"github.com/antoniostano/chatrelay/internal/store"
)

// Keyword triggers are deliberately coarse: single-keyword matches, applied
// independently, so one message can write up to three facts.
var (
	projectKeywords     = []string{"make", "create", "build", "tool", "project", "app"}
	improvementKeywords = []string{"better", "improve", "enhance", "add", "modify", "change"}
	preferenceKeywords  = []string{"like", "want", "prefer"}
)

// Analyzer derives coarse context facts from raw user text and writes them to
// the store. It holds no state of its own; all memory routes through the store.
type Analyzer struct {
	store store.Store
}

func NewAnalyzer(s store.Store) *Analyzer {
	return &Analyzer{store: s}
}

// Analyze scans the message and upserts whichever facts its keyword rules
// trigger. Store failures are logged and swallowed: fact extraction is never
// allowed to delay or fail the reply path.
func (a *Analyzer) Analyze(ctx context.Context, userID int64, message string) {
	lower := strings.ToLower(message)

	if containsAny(lower, projectKeywords) {
		var label string
		switch {
		case strings.Contains(lower, "python"):
			label = "Python project: "
		case strings.Contains(lower, "website"), strings.Contains(lower, "web"):
			label = "Web project: "
		default:
			label = "General project: "
		}
		a.upsert(ctx, userID, store.FactCurrentProject, label+truncateChars(message, 100))
	}

	if containsAny(lower, improvementKeywords) {
		a.upsert(ctx, userID, store.FactLastRequest, "Improvement request: "+truncateChars(message, 100))
	}

	if containsAny(lower, preferenceKeywords) {
		a.upsert(ctx, userID, store.FactUserPreferences, truncateChars(message, 150))
	}
}

func (a *Analyzer) upsert(ctx context.Context, userID int64, factType, data string) {
	if err := a.store.UpsertContextFact(ctx, userID, factType, data); err != nil {
		log.Printf("context fact upsert failed for user %d type %s: %v", userID, factType, err)
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// truncateChars cuts at a character count, mid-word cuts included.
func truncateChars(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
