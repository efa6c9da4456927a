package inference

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testClient(url string, timeout time.Duration) *Client {
	return NewClient(Config{
		URL:       url,
		ModelID:   "dolphin-3.0-mistral-24b",
		ModelName: "Venice Uncensored",
		Timeout:   timeout,
	})
}

func TestCompleteConcatenatesContentLines(t *testing.T) {
	var gotEnvelope envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotEnvelope); err != nil {
			t.Errorf("request body not JSON: %v", err)
		}
		io.WriteString(w, "{\"content\":\"Hel\"}\n{\"content\":\"lo\"}\n")
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	got, err := c.Complete(context.Background(), []Message{{Role: "system", Content: "ctx"}}, "hi")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "Hello" {
		t.Fatalf("Complete() = %q, want %q", got, "Hello")
	}

	if len(gotEnvelope.Prompt) != 2 {
		t.Fatalf("len(prompt) = %d, want 2", len(gotEnvelope.Prompt))
	}
	last := gotEnvelope.Prompt[len(gotEnvelope.Prompt)-1]
	if last.Role != "user" || last.Content != "hi" {
		t.Fatalf("last prompt entry = %+v, want the live user message", last)
	}
	if !strings.HasPrefix(gotEnvelope.RequestID, "req_") ||
		!strings.HasPrefix(gotEnvelope.MessageID, "msg_") ||
		!strings.HasPrefix(gotEnvelope.UserID, "user_anon_") {
		t.Fatalf("envelope ids = %q/%q/%q, want req_/msg_/user_anon_ prefixes",
			gotEnvelope.RequestID, gotEnvelope.MessageID, gotEnvelope.UserID)
	}
	if gotEnvelope.Temperature != 0.3 || gotEnvelope.TopP != 1 {
		t.Fatalf("generation params = %v/%v, want 0.3/1", gotEnvelope.Temperature, gotEnvelope.TopP)
	}
}

func TestCompleteFreshIdentifiersPerCall(t *testing.T) {
	var ids []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err == nil {
			ids = append(ids, env.RequestID, env.MessageID, env.UserID)
		}
		io.WriteString(w, "{\"content\":\"ok\"}\n")
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	for i := 0; i < 3; i++ {
		if _, err := c.Complete(context.Background(), nil, "hi"); err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
	}

	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("identifier %q reused across calls", id)
		}
		seen[id] = true
	}
}

func TestCompleteSkipsUnparseableLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, strings.Join([]string{
			`{"content":"a"}`,
			`this line is garbage`,
			`{'content': 'b', 'done': False}`,
			`{"no_content_field": true}`,
			`{"content":"c"}`,
		}, "\n"))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	got, err := c.Complete(context.Background(), nil, "hi")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "abc" {
		t.Fatalf("Complete() = %q, want %q", got, "abc")
	}
}

func TestCompleteProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	_, err := c.Complete(context.Background(), nil, "hi")
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("Complete() error = %v, want *ProviderError", err)
	}
	if provErr.Status != http.StatusBadGateway {
		t.Fatalf("provider status = %d, want %d", provErr.Status, http.StatusBadGateway)
	}
}

func TestCompleteEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "{\"content\":\"   \"}\n\n{\"content\":\"\"}\n")
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	_, err := c.Complete(context.Background(), nil, "hi")
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("Complete() error = %v, want ErrEmptyResponse", err)
	}
}

func TestCompleteTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		io.WriteString(w, "{\"content\":\"late\"}\n")
	}))
	defer srv.Close()
	defer close(release)

	c := testClient(srv.URL, 50*time.Millisecond)
	_, err := c.Complete(context.Background(), nil, "hi")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Complete() error = %v, want ErrTimeout", err)
	}
}

func TestCompleteConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	c := testClient(srv.URL, time.Second)
	_, err := c.Complete(context.Background(), nil, "hi")
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("Complete() error = %v, want ErrConnection", err)
	}
}

func TestCompleteSendsConfiguredHeadersAndCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("X-Api-Key = %q, want %q", r.Header.Get("X-Api-Key"), "secret")
		}
		if c, err := r.Cookie("session"); err != nil || c.Value != "abc" {
			t.Errorf("session cookie = %v, %v; want abc", c, err)
		}
		io.WriteString(w, "{\"content\":\"ok\"}\n")
	}))
	defer srv.Close()

	c := NewClient(Config{
		URL:     srv.URL,
		Headers: map[string]string{"X-Api-Key": "secret"},
		Cookies: map[string]string{"session": "abc"},
		Timeout: 5 * time.Second,
	})
	if _, err := c.Complete(context.Background(), nil, "hi"); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
}
