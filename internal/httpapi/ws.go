package httpapi

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/antoniostano/chatrelay/internal/store"
)

// Inbound and outbound websocket frame types.
const (
	wsTypeMessage = "message"
	wsTypeDelta   = "delta"
	wsTypeDone    = "done"
	wsTypeError   = "error"
)

type wsInbound struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type wsOutbound struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Reply string `json:"reply,omitempty"`
	Rich  bool   `json:"rich,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleStreamWS serves the incremental delivery variant: each user message
// gets a run of delta frames (small word groups) followed by a done frame
// carrying the final formatted reply.
func (s *Server) handleStreamWS(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("user_id")), 10, 64)
	if err != nil || userID == 0 {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "user_id query parameter must be a non-zero integer")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	defer conn.Close()
	defer func() {
		if s.sessions != nil {
			s.sessions.End(userID)
			if s.metrics != nil {
				s.metrics.ActiveChats.Set(float64(s.sessions.ActiveCount()))
			}
		}
	}()

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("chat ws read error for user %d: %v", userID, err)
			}
			return
		}
		if in.Type != wsTypeMessage || strings.TrimSpace(in.Text) == "" {
			if err := conn.WriteJSON(wsOutbound{Type: wsTypeError, Error: "expected a message frame with text"}); err != nil {
				return
			}
			continue
		}

		s.touchSession(userID)
		profile := store.UserProfile{
			Username:  in.Username,
			FirstName: in.FirstName,
			LastName:  in.LastName,
		}

		reply := s.relay.HandleMessageStream(r.Context(), userID, profile, in.Text, func(delta string) error {
			return conn.WriteJSON(wsOutbound{Type: wsTypeDelta, Text: delta})
		})
		if reply.Text == "" {
			// Canceled mid-stream; the connection is gone or going.
			return
		}
		if err := conn.WriteJSON(wsOutbound{Type: wsTypeDone, Reply: reply.Text, Rich: reply.Rich}); err != nil {
			return
		}
	}
}
