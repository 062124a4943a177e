package auth

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-board/internal/api/dto"
	"github.com/spec-kit/ticket-board/internal/domain"
	"github.com/spec-kit/ticket-board/internal/persistence"
	apperrors "github.com/spec-kit/ticket-board/pkg/util/errorutil"
)

// Storage is the persistent key/value store holding the credential.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
}

// RedirectFunc sends the user to the login entry point.
type RedirectFunc func(reason domain.InvalidReason)

// SessionGuard gates data access on a valid local credential. Once the
// session is invalidated it stays invalid for the life of the guard.
type SessionGuard struct {
	storage  Storage
	logger   *zap.Logger
	redirect RedirectFunc
	now      func() time.Time

	mu       sync.RWMutex
	session  *domain.Session
	reason   domain.InvalidReason
	done     bool
	teardown []func()
}

// NewSessionGuard constructs a guard. The guard starts invalid until Activate succeeds.
func NewSessionGuard(storage Storage, logger *zap.Logger, redirect RedirectFunc) *SessionGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionGuard{
		storage:  storage,
		logger:   logger,
		redirect: redirect,
		now:      time.Now,
	}
}

// OnInvalidate registers fn to run when the session is invalidated or the
// user logs out. Hooks run once, in registration order.
func (g *SessionGuard) OnInvalidate(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.teardown = append(g.teardown, fn)
}

// Activate reads the stored credential and validates it.
func (g *SessionGuard) Activate(ctx context.Context) error {
	g.mu.RLock()
	done, reason := g.done, g.reason
	g.mu.RUnlock()
	if done {
		return apperrors.NewSessionInvalid(string(reason))
	}

	token, _, err := g.storage.Get(ctx, persistence.KeyToken)
	if err != nil {
		g.logger.Error("read stored token", zap.Error(err))
		return g.invalidate(ctx, domain.InvalidReasonMalformed)
	}

	switch res := DecodeSession(token, g.now()).(type) {
	case Invalid:
		g.logger.Warn("session rejected", zap.String("reason", string(res.Reason)), zap.Error(res.Err))
		return g.invalidate(ctx, res.Reason)
	case Valid:
		identity, err := g.readIdentity(ctx)
		if err != nil {
			g.logger.Warn("stored user unreadable", zap.Error(err))
			return g.invalidate(ctx, domain.InvalidReasonMalformed)
		}
		session := &domain.Session{
			Token:     token,
			Identity:  identity,
			SubjectID: res.Claims.Subject,
			ExpiresAt: res.Claims.ExpiresAt.Time,
		}
		g.mu.Lock()
		g.session = session
		g.mu.Unlock()
		g.logger.Info("session active",
			zap.String("user_id", identity.ID),
			zap.Time("expires_at", session.ExpiresAt))
	}
	return nil
}

// Logout tears the session down on explicit user request.
func (g *SessionGuard) Logout(ctx context.Context) {
	_ = g.invalidate(ctx, domain.InvalidReasonLogout)
}

// Valid reports whether work may proceed.
func (g *SessionGuard) Valid() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.session != nil && !g.done
}

// Reason returns why the session is invalid, or "" while valid.
func (g *SessionGuard) Reason() domain.InvalidReason {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.reason
}

// Token returns the bearer token, or "" when invalid.
func (g *SessionGuard) Token() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.session == nil || g.done {
		return ""
	}
	return g.session.Token
}

// Identity returns the session user.
func (g *SessionGuard) Identity() domain.Identity {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.session == nil || g.done {
		return domain.Identity{}
	}
	return g.session.Identity
}

// invalidate clears the stored credential, runs teardown hooks and redirects.
// It always returns a session-invalid error carrying reason.
func (g *SessionGuard) invalidate(ctx context.Context, reason domain.InvalidReason) error {
	g.mu.Lock()
	if g.done {
		g.mu.Unlock()
		return apperrors.NewSessionInvalid(string(g.reason))
	}
	g.done = true
	g.reason = reason
	g.session = nil
	hooks := g.teardown
	g.teardown = nil
	g.mu.Unlock()

	if err := g.storage.Remove(ctx, persistence.KeyToken, persistence.KeyUser); err != nil {
		g.logger.Error("clear stored credential", zap.Error(err))
	}
	for _, fn := range hooks {
		fn()
	}
	if g.redirect != nil {
		g.redirect(reason)
	}
	return apperrors.NewSessionInvalid(string(reason))
}

func (g *SessionGuard) readIdentity(ctx context.Context) (domain.Identity, error) {
	raw, ok, err := g.storage.Get(ctx, persistence.KeyUser)
	if err != nil || !ok {
		// A missing user object behaves like the empty object: the token alone gates access.
		return domain.Identity{}, err
	}
	var rec dto.IdentityRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.Identity{}, err
	}
	return rec.Identity(), nil
}

// ImportSession stores a credential issued by the external login flow.
// Tokens that would be rejected by Activate are refused.
func ImportSession(ctx context.Context, storage Storage, token string, identity domain.Identity, now time.Time) error {
	if res, ok := DecodeSession(token, now).(Invalid); ok {
		return apperrors.NewSessionInvalid(string(res.Reason))
	}
	user, err := json.Marshal(dto.NewIdentityRecord(identity))
	if err != nil {
		return err
	}
	if err := storage.Set(ctx, persistence.KeyToken, token); err != nil {
		return err
	}
	return storage.Set(ctx, persistence.KeyUser, string(user))
}
