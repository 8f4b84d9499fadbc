package redis

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/civitas-platform/identity-service/internal/application/identity"
	"github.com/civitas-platform/identity-service/internal/domain"
)

// SessionStore implements identity.SessionStore on Redis:
// - session id is opaque (random, 256-bit)
// - Redis stores: sess:<sid> -> JSON session with TTL
// - Destroy deletes the key; destroying an unknown sid is a no-op
type SessionStore struct {
	rdb *goredis.Client

	prefix     string
	tokenBytes int
}

func NewSessionStore(c *Client) *SessionStore {
	var rdb *goredis.Client
	if c != nil {
		rdb = c.rdb
	}
	return &SessionStore{
		rdb:        rdb,
		prefix:     "sess:",
		tokenBytes: 32,
	}
}

func (s *SessionStore) Create(ctx context.Context, sess identity.Session, ttl time.Duration) (string, error) {
	if strings.TrimSpace(sess.UserID) == "" {
		return "", domain.ErrMissingField("user_id")
	}
	if s.rdb == nil {
		return "", errors.New("redis session store not configured")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	sid, err := s.newSessionID()
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(sess)
	if err != nil {
		return "", domain.ErrInternal(err)
	}

	if err := s.rdb.Set(ctx, s.prefix+sid, raw, ttl).Err(); err != nil {
		return "", domain.ErrRedisUnavailable(err)
	}
	return sid, nil
}

func (s *SessionStore) Get(ctx context.Context, sid string) (identity.Session, error) {
	sid = strings.TrimSpace(sid)
	if sid == "" {
		return identity.Session{}, domain.ErrSessionMissing()
	}
	if s.rdb == nil {
		return identity.Session{}, errors.New("redis session store not configured")
	}

	raw, err := s.rdb.Get(ctx, s.prefix+sid).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return identity.Session{}, domain.ErrSessionMissing()
		}
		return identity.Session{}, domain.ErrRedisUnavailable(err)
	}

	var sess identity.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return identity.Session{}, domain.ErrInternal(err)
	}
	return sess, nil
}

func (s *SessionStore) Destroy(ctx context.Context, sid string) error {
	sid = strings.TrimSpace(sid)
	if sid == "" {
		// idempotent
		return nil
	}
	if s.rdb == nil {
		return errors.New("redis session store not configured")
	}
	if err := s.rdb.Del(ctx, s.prefix+sid).Err(); err != nil {
		return domain.ErrRedisUnavailable(err)
	}
	return nil
}

func (s *SessionStore) newSessionID() (string, error) {
	b := make([]byte, s.tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", domain.ErrRandomFailed(err)
	}
	// URL-safe, no padding
	return base64.RawURLEncoding.EncodeToString(b), nil
}
