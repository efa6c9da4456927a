package inference

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is one entry of the prompt sent to the inference provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Sentinel errors for the caller's canned-message mapping.
var (
	ErrTimeout       = errors.New("inference timeout")
	ErrConnection    = errors.New("inference connection error")
	ErrEmptyResponse = errors.New("inference response empty")
)

// ProviderError reports a non-2xx status from the inference endpoint.
type ProviderError struct {
	Status int
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("inference provider status %d", e.Status)
}

// Config carries everything needed to talk to the remote endpoint. Credentials
// live here, not in process-wide state.
type Config struct {
	URL       string
	ModelID   string
	ModelName string
	Headers   map[string]string
	Cookies   map[string]string
	Timeout   time.Duration
}

// Client sends assembled prompts to the remote model endpoint and decodes the
// line-oriented streaming response body.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg: cfg,
		// The per-call context deadline is the real ceiling; the client
		// timeout is a backstop slightly above it.
		http: &http.Client{Timeout: cfg.Timeout + 5*time.Second},
	}
}

// envelope matches the provider's chat inference protocol. Everything outside
// the prompt and identifiers is constant policy.
type envelope struct {
	RequestID                 string           `json:"requestId"`
	ConversationType          string           `json:"conversationType"`
	Type                      string           `json:"type"`
	ModelID                   string           `json:"modelId"`
	ModelName                 string           `json:"modelName"`
	ModelType                 string           `json:"modelType"`
	Prompt                    []Message        `json:"prompt"`
	SystemPrompt              string           `json:"systemPrompt"`
	MessageID                 string           `json:"messageId"`
	IncludeVeniceSystemPrompt bool             `json:"includeVeniceSystemPrompt"`
	IsCharacter               bool             `json:"isCharacter"`
	UserID                    string           `json:"userId"`
	SimpleMode                bool             `json:"simpleMode"`
	CharacterID               string           `json:"characterId"`
	ID                        string           `json:"id"`
	TextToSpeech              textToSpeechOpts `json:"textToSpeech"`
	WebEnabled                bool             `json:"webEnabled"`
	Reasoning                 bool             `json:"reasoning"`
	Temperature               float64          `json:"temperature"`
	TopP                      float64          `json:"topP"`
	ClientProcessingTime      int              `json:"clientProcessingTime"`
}

type textToSpeechOpts struct {
	VoiceID string  `json:"voiceId"`
	Speed   float64 `json:"speed"`
}

func freshID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (c *Client) buildEnvelope(prompt []Message, userMessage string) envelope {
	// Identifiers are fresh per call, never reused.
	current := make([]Message, 0, len(prompt)+1)
	current = append(current, prompt...)
	current = append(current, Message{Role: "user", Content: userMessage})

	return envelope{
		RequestID:                 freshID("req_"),
		ConversationType:          "text",
		Type:                      "text",
		ModelID:                   c.cfg.ModelID,
		ModelName:                 c.cfg.ModelName,
		ModelType:                 "text",
		Prompt:                    current,
		MessageID:                 freshID("msg_"),
		IncludeVeniceSystemPrompt: true,
		UserID:                    freshID("user_anon_"),
		TextToSpeech:              textToSpeechOpts{VoiceID: "af_sky", Speed: 1},
		WebEnabled:                true,
		Reasoning:                 true,
		Temperature:               0.3,
		TopP:                      1,
		ClientProcessingTime:      11,
	}
}

// Complete sends the prompt plus the live user message and returns the
// concatenated response text. The context deadline (30s default) is the hard
// ceiling for the whole call.
func (c *Client) Complete(ctx context.Context, prompt []Message, userMessage string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(c.buildEnvelope(prompt, userMessage))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range c.cfg.Cookies {
		req.AddCookie(&http.Cookie{Name: k, Value: v})
	}

	res, err := c.http.Do(req)
	if err != nil {
		return "", classifyTransportError(callCtx, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))
		return "", &ProviderError{Status: res.StatusCode}
	}

	text, err := decodeLines(res.Body)
	if err != nil {
		return "", classifyTransportError(callCtx, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(text), nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}

// decodeLines parses the newline-delimited response body. Each non-blank line
// should be a JSON object carrying a "content" string; lines that fail strict
// decoding get one pass through the lenient repair parser and are otherwise
// skipped. Malformed provider output is never executed or trusted beyond this.
func decodeLines(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		content, ok := contentFromLine(line)
		if !ok {
			continue
		}
		out.WriteString(content)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("stream read: %w", err)
	}
	return out.String(), nil
}

type contentRecord struct {
	Content *string `json:"content"`
}

func contentFromLine(line string) (string, bool) {
	var rec contentRecord
	if err := json.Unmarshal([]byte(line), &rec); err == nil && rec.Content != nil {
		return *rec.Content, true
	}

	repaired, ok := repairLooseLiteral(line)
	if !ok {
		return "", false
	}
	if err := json.Unmarshal([]byte(repaired), &rec); err == nil && rec.Content != nil {
		return *rec.Content, true
	}
	return "", false
}
