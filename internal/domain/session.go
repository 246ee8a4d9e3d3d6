package domain

import (
	"sync"
	"time"
)

// Session is the per-socket state: the room the socket is joined to and the
// identity it joined with. Frames still authenticate individually; the
// session identity is only used for echo suppression and close cleanup.
type Session struct {
	ID            string
	identity      Identity
	currentRoomID string
	CreatedAt     time.Time
	lastActiveAt  time.Time
	mu            sync.RWMutex
}

func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		lastActiveAt: now,
	}
}

func (s *Session) JoinRoom(roomID string, id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentRoomID = roomID
	s.identity = id
	s.lastActiveAt = time.Now()
}

func (s *Session) LeaveRoom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentRoomID = ""
	s.lastActiveAt = time.Now()
}

// CurrentRoom returns the joined room and the identity used to join it.
func (s *Session) CurrentRoom() (string, Identity) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRoomID, s.identity
}

func (s *Session) GetUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.UserID
}

func (s *Session) IsInRoom() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRoomID != ""
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = time.Now()
}

func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActiveAt
}
