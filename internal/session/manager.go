// Package session tracks which users are actively chatting so the service can
// expose an accurate active-chat count and expire idle conversations. It is
// bookkeeping only; the relay path never depends on it for correctness.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one user's active chat window.
type Session struct {
	ID             string    `json:"session_id"`
	UserID         int64     `json:"user_id"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

type Manager struct {
	mu                sync.RWMutex
	byUser            map[int64]*Session
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 2 * time.Minute
	}
	return &Manager{
		byUser:            make(map[int64]*Session),
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Touch records activity for the user, creating a session on first contact.
// It returns a copy of the current session.
func (m *Manager) Touch(userID int64) Session {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byUser[userID]
	if !ok {
		s = &Session{
			ID:        uuid.NewString(),
			UserID:    userID,
			StartedAt: now,
		}
		m.byUser[userID] = s
	}
	s.LastActivityAt = now
	return *s
}

// End drops the user's session if one exists.
func (m *Manager) End(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byUser, userID)
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser)
}

// StartJanitor expires idle sessions until ctx is done.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireIdle()
			}
		}
	}()
}

func (m *Manager) expireIdle() {
	cutoff := time.Now().UTC().Add(-m.inactivityTimeout)

	m.mu.Lock()
	var expired []*Session
	for userID, s := range m.byUser {
		if s.LastActivityAt.Before(cutoff) {
			expired = append(expired, s)
			delete(m.byUser, userID)
		}
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}
