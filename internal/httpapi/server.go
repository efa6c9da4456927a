package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/chatrelay/internal/config"
	"github.com/antoniostano/chatrelay/internal/inference"
	"github.com/antoniostano/chatrelay/internal/observability"
	"github.com/antoniostano/chatrelay/internal/relay"
	"github.com/antoniostano/chatrelay/internal/session"
	"github.com/antoniostano/chatrelay/internal/store"
)

// Relay is the turn-handling collaborator behind the HTTP surface.
type Relay interface {
	HandleMessage(ctx context.Context, userID int64, profile store.UserProfile, text string) relay.Reply
	HandleMessageStream(ctx context.Context, userID int64, profile store.UserProfile, text string, onDelta inference.DeltaHandler) relay.Reply
	ClearHistory(ctx context.Context, userID int64) relay.Reply
}

type Server struct {
	cfg      config.Config
	relay    Relay
	store    store.Store
	sessions *session.Manager
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, rly Relay, st store.Store, sessions *session.Manager, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		relay:    rly,
		store:    st,
		sessions: sessions,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only same-origin browser connections, so a random
				// website cannot drive a user's chat if the relay is ever
				// exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Post("/v1/chat/message", s.handleMessage)
	r.Post("/v1/chat/{userID}/clear", s.handleClear)
	r.Get("/v1/chat/stream/ws", s.handleStreamWS)
	r.Get("/v1/users", s.handleListUsers)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type messageRequest struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Text      string `json:"text"`
}

func (r messageRequest) profile() store.UserProfile {
	return store.UserProfile{
		Username:  r.Username,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	}
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.UserID == 0 {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "user_id is required")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "empty_message", "text is required")
		return
	}

	s.touchSession(req.UserID)
	reply := s.relay.HandleMessage(r.Context(), req.UserID, req.profile(), req.Text)
	respondJSON(w, http.StatusOK, reply)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID == 0 {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "user id must be a non-zero integer")
		return
	}

	reply := s.relay.ClearHistory(r.Context(), userID)
	respondJSON(w, http.StatusOK, reply)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.ListUserIDs(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", "could not list users")
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"user_ids": ids})
}

func (s *Server) touchSession(userID int64) {
	if s.sessions == nil {
		return
	}
	s.sessions.Touch(userID)
	if s.metrics != nil {
		s.metrics.ActiveChats.Set(float64(s.sessions.ActiveCount()))
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
