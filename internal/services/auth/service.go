package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/GTLTrack/internal/cache"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrNoSession          = errors.New("no session")
)

// Session is the signed-in admin, stored as JSON under session:<token>.
type Session struct {
	Token   string `json:"-"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}

type Service struct {
	email        string
	passwordHash string
	sessions     cache.BytesCache
	ttl          time.Duration
}

// New configures the single admin account. ttl <= 0 keeps sessions until logout.
func New(email, passwordHash string, sessions cache.BytesCache, ttl time.Duration) *Service {
	return &Service{
		email:        strings.TrimSpace(email),
		passwordHash: passwordHash,
		sessions:     sessions,
		ttl:          ttl,
	}
}

func SessionKey(token string) string {
	return "session:" + token
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if s.email == "" || s.passwordHash == "" {
		return nil, ErrInvalidCredentials
	}
	ok, err := VerifyPassword(password, s.passwordHash)
	if err != nil {
		// битый hash в конфиге, но наружу отдаём то же, что и при неверном пароле
		slog.Error("verify admin password", "error", err.Error())
		return nil, ErrInvalidCredentials
	}
	if !ok || !strings.EqualFold(strings.TrimSpace(email), s.email) {
		return nil, ErrInvalidCredentials
	}

	sess := &Session{Token: uuid.NewString(), Email: s.email, IsAdmin: true}
	b, err := json.Marshal(sess)
	if err != nil {
		return nil, errors.Wrap(err, "marshal session")
	}
	if err := s.sessions.Set(ctx, SessionKey(sess.Token), b, s.ttl); err != nil {
		return nil, errors.Wrap(err, "store session")
	}
	return sess, nil
}

// Lookup resolves a token; ErrNoSession means signed out.
func (s *Service) Lookup(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	b, ok, err := s.sessions.Get(ctx, SessionKey(token))
	if err != nil {
		return nil, errors.Wrap(err, "load session")
	}
	if !ok {
		return nil, ErrNoSession
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		slog.Warn("drop unreadable session", "error", err.Error())
		_ = s.sessions.Del(ctx, SessionKey(token))
		return nil, ErrNoSession
	}
	sess.Token = token
	return &sess, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return errors.Wrap(s.sessions.Del(ctx, SessionKey(token)), "delete session")
}

type ctxKey struct{}

func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(ctxKey{}).(*Session)
	return sess, ok && sess != nil
}
