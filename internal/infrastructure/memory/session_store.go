package memory

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/civitas-platform/identity-service/internal/application/identity"
	"github.com/civitas-platform/identity-service/internal/domain"
)

type sessionEntry struct {
	sess      identity.Session
	expiresAt time.Time
}

// SessionStore is an in-process fallback used when Redis is not
// configured. Sessions do not survive a restart.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]sessionEntry
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]sessionEntry)}
}

func (s *SessionStore) Create(ctx context.Context, sess identity.Session, ttl time.Duration) (string, error) {
	sid, err := newOpaqueToken(32)
	if err != nil {
		return "", domain.ErrRandomFailed(err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Sweep expired entries while we hold the lock.
	now := time.Now()
	for k, v := range s.sessions {
		if now.After(v.expiresAt) {
			delete(s.sessions, k)
		}
	}

	s.sessions[sid] = sessionEntry{sess: sess, expiresAt: now.Add(ttl)}
	return sid, nil
}

func (s *SessionStore) Get(ctx context.Context, sid string) (identity.Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[sid]
	s.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return identity.Session{}, domain.ErrSessionMissing()
	}
	return entry.sess, nil
}

func (s *SessionStore) Destroy(ctx context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid) // idempotent
	return nil
}

func newOpaqueToken(bytesLen int) (string, error) {
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
