package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/appetiteclub/pos/pkg/store"
	"github.com/google/uuid"
)

const DefaultTTL = 12 * time.Hour

var (
	ErrNotFound = errors.New("session not found")
	ErrExpired  = errors.New("session expired")
)

// Session is the authorization context of a signed-in operator.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// New builds a session from a successful store login.
func New(res *store.LoginResult, ttl time.Duration) *Session {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	return &Session{
		ID:           uuid.New().String(),
		UserID:       strconv.FormatInt(res.ID, 10),
		Username:     res.Username,
		Role:         res.Role,
		AccessToken:  res.Access,
		RefreshToken: res.Refresh,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
}

func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Store persists sessions between requests.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

type ctxKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session attached to ctx, or nil.
func FromContext(ctx context.Context) *Session {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}

// TokenFromContext returns the access token of the session in ctx.
func TokenFromContext(ctx context.Context) string {
	if s := FromContext(ctx); s != nil {
		return s.AccessToken
	}
	return ""
}
