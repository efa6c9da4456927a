package relay

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/antoniostano/chatrelay/internal/format"
	"github.com/antoniostano/chatrelay/internal/inference"
	"github.com/antoniostano/chatrelay/internal/observability"
	"github.com/antoniostano/chatrelay/internal/store"
)

// replyMarker leads every assistant message delivered to the front end.
const replyMarker = "🤖 "

// Canned user-safe texts for every failure class. No retries: one attempt,
// one terminal message.
const (
	msgTimeout    = "⏰ The AI is taking too long to respond. Please try again."
	msgConnection = "🌐 Connection error. Please check your internet connection and try again."
	msgProvider   = "❌ Sorry, I'm having trouble connecting to my AI brain. Please try again in a moment."
	msgEmpty      = "🤖 I received your message but couldn't generate a proper response. Please try rephrasing your question."
	msgUnexpected = "❌ An unexpected error occurred. Please try again later."
	msgCleared    = "🗑️ Conversation cleared! Your chat history has been reset."
)

// Completer is the inference collaborator.
type Completer interface {
	Complete(ctx context.Context, prompt []inference.Message, userMessage string) (string, error)
	CompleteStream(ctx context.Context, prompt []inference.Message, userMessage string, onDelta inference.DeltaHandler) (string, error)
}

// Reply is the formatted assistant response handed back to the front end.
// Rich signals that the text carries block or inline code markup and should be
// delivered with rich rendering enabled.
type Reply struct {
	Text string `json:"reply"`
	Rich bool   `json:"rich"`
}

// Service runs one conversation turn end to end: context read, fact
// analysis, prompt assembly, inference, persistence and formatting.
type Service struct {
	store    store.Store
	ai       Completer
	analyzer *Analyzer
	metrics  *observability.Metrics
}

func NewService(s store.Store, ai Completer, metrics *observability.Metrics) *Service {
	return &Service{
		store:    s,
		ai:       ai,
		analyzer: NewAnalyzer(s),
		metrics:  metrics,
	}
}

// HandleMessage processes one user message and always returns a deliverable
// reply. Inference and storage failures are converted to canned texts here;
// nothing propagates to the front end as a fault.
func (s *Service) HandleMessage(ctx context.Context, userID int64, profile store.UserProfile, text string) Reply {
	started := time.Now()
	reply := s.handleTurn(ctx, userID, profile, text)
	if s.metrics != nil {
		s.metrics.ObserveTurnLatency(time.Since(started))
	}
	return reply
}

func (s *Service) handleTurn(ctx context.Context, userID int64, profile store.UserProfile, text string) Reply {
	// Upsert is best-effort: an unreachable users table must not block chat.
	if err := s.store.UpsertUser(ctx, userID, profile); err != nil {
		log.Printf("user upsert failed for %d: %v", userID, err)
		s.countStoreError("upsert_user")
	}

	// Read before analyzing: facts written for this message bias the NEXT
	// turn, which keeps the read set stable while the prompt is assembled.
	readStart := time.Now()
	cc, err := s.store.ConversationContext(ctx, userID)
	if err != nil {
		log.Printf("context read failed for %d, continuing without history: %v", userID, err)
		s.countStoreError("conversation_context")
		cc = store.ConversationContext{}
	}
	s.observeStage(observability.StageContextRead, readStart)

	s.analyzer.Analyze(ctx, userID, text)

	prompt := AssemblePrompt(cc.Facts, cc.Turns)

	aiStart := time.Now()
	answer, err := s.ai.Complete(ctx, prompt, text)
	s.observeStage(observability.StageInference, aiStart)
	if err != nil {
		return s.failureReply(userID, err)
	}

	persistStart := time.Now()
	s.persistExchange(ctx, userID, text, answer)
	s.observeStage(observability.StagePersist, persistStart)
	s.countTurn("ok")
	return s.deliverable(answer)
}

// HandleMessageStream behaves like HandleMessage but delivers the reply text
// incrementally in small word groups before returning the final reply.
// Failure replies are delivered whole; only successful answers stream.
func (s *Service) HandleMessageStream(ctx context.Context, userID int64, profile store.UserProfile, text string, onDelta inference.DeltaHandler) Reply {
	started := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveTurnLatency(time.Since(started))
		}
	}()

	if err := s.store.UpsertUser(ctx, userID, profile); err != nil {
		log.Printf("user upsert failed for %d: %v", userID, err)
		s.countStoreError("upsert_user")
	}

	cc, err := s.store.ConversationContext(ctx, userID)
	if err != nil {
		log.Printf("context read failed for %d, continuing without history: %v", userID, err)
		s.countStoreError("conversation_context")
		cc = store.ConversationContext{}
	}

	s.analyzer.Analyze(ctx, userID, text)

	prompt := AssemblePrompt(cc.Facts, cc.Turns)

	aiStart := time.Now()
	answer, err := s.ai.CompleteStream(ctx, prompt, text, onDelta)
	s.observeStage(observability.StageInference, aiStart)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// The client went away mid-stream; nothing left to deliver.
			s.countTurn("canceled")
			return Reply{}
		}
		return s.failureReply(userID, err)
	}

	persistStart := time.Now()
	s.persistExchange(ctx, userID, text, answer)
	s.observeStage(observability.StagePersist, persistStart)
	s.countTurn("ok")
	return s.deliverable(answer)
}

// ClearHistory wipes the user's turns and context facts. Idempotent; storage
// failure is logged and the confirmation still goes out, matching the
// best-effort persistence policy.
func (s *Service) ClearHistory(ctx context.Context, userID int64) Reply {
	if err := s.store.ClearHistory(ctx, userID); err != nil {
		log.Printf("history clear failed for %d: %v", userID, err)
		s.countStoreError("clear_history")
	}
	return Reply{Text: msgCleared}
}

// persistExchange writes the user and assistant turns concurrently and joins
// before returning. Either write may fail without affecting reply delivery.
func (s *Service) persistExchange(ctx context.Context, userID int64, userText, answer string) {
	var g errgroup.Group
	g.Go(func() error {
		if err := s.store.AddTurn(ctx, userID, store.RoleUser, userText); err != nil {
			log.Printf("user turn persist failed for %d: %v", userID, err)
			s.countStoreError("add_turn_user")
		}
		return nil
	})
	g.Go(func() error {
		if err := s.store.AddTurn(ctx, userID, store.RoleAssistant, answer); err != nil {
			log.Printf("assistant turn persist failed for %d: %v", userID, err)
			s.countStoreError("add_turn_assistant")
		}
		return nil
	})
	_ = g.Wait()
}

func (s *Service) deliverable(answer string) Reply {
	text, rich := format.Format(answer)
	return Reply{Text: replyMarker + text, Rich: rich}
}

// failureReply maps an inference error to its canned user-safe message.
// Failed attempts persist nothing: the conversation log only ever records
// exchanges that produced a real answer.
func (s *Service) failureReply(userID int64, err error) Reply {
	if s.metrics != nil {
		s.metrics.ObserveTurnIndicator("canned_reply")
	}
	var provErr *inference.ProviderError
	switch {
	case errors.Is(err, inference.ErrTimeout):
		log.Printf("inference timeout for user %d", userID)
		s.countProviderError("timeout")
		s.countTurn("timeout")
		return Reply{Text: msgTimeout}
	case errors.Is(err, inference.ErrConnection):
		log.Printf("inference connection error for user %d: %v", userID, err)
		s.countProviderError("connection")
		s.countTurn("connection_error")
		return Reply{Text: msgConnection}
	case errors.As(err, &provErr):
		log.Printf("inference provider error for user %d: status %d", userID, provErr.Status)
		s.countProviderError(strconv.Itoa(provErr.Status))
		s.countTurn("provider_error")
		return Reply{Text: msgProvider}
	case errors.Is(err, inference.ErrEmptyResponse):
		log.Printf("inference returned empty response for user %d", userID)
		s.countProviderError("empty")
		s.countTurn("empty_response")
		return Reply{Text: msgEmpty}
	default:
		log.Printf("inference failed for user %d: %v", userID, err)
		s.countProviderError("unexpected")
		s.countTurn("error")
		return Reply{Text: msgUnexpected}
	}
}

func (s *Service) observeStage(stage string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveTurnStage(stage, time.Since(start))
	}
}

func (s *Service) countTurn(outcome string) {
	if s.metrics != nil {
		s.metrics.Turns.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) countProviderError(code string) {
	if s.metrics != nil {
		s.metrics.ProviderErrors.WithLabelValues(code).Inc()
	}
}

func (s *Service) countStoreError(op string) {
	if s.metrics != nil {
		s.metrics.StoreErrors.WithLabelValues(op).Inc()
	}
}
