package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/ticket-board/internal/domain"
)

// Claims describes the JWT payload the board reads. The signature is never
// verified client side; the backend does that on every request.
type Claims struct {
	jwt.RegisteredClaims
}

// SessionResult is either Valid or Invalid.
type SessionResult interface {
	sessionResult()
}

// Valid carries the decoded claims of a usable token.
type Valid struct {
	Claims *Claims
}

// Invalid carries the reason a token was rejected.
type Invalid struct {
	Reason domain.InvalidReason
	Err    error
}

func (Valid) sessionResult()   {}
func (Invalid) sessionResult() {}

var errNoExpiry = errors.New("token has no exp claim")

// DecodeSession decodes token and checks its expiry against now. It fails
// closed: a missing token, an undecodable token or a token without exp are
// all invalid.
func DecodeSession(token string, now time.Time) SessionResult {
	if token == "" {
		return Invalid{Reason: domain.InvalidReasonMissing}
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Invalid{Reason: domain.InvalidReasonMalformed, Err: err}
	}
	if claims.ExpiresAt == nil {
		return Invalid{Reason: domain.InvalidReasonMalformed, Err: errNoExpiry}
	}

	// exp is whole seconds; a token expiring this very second is still usable.
	if claims.ExpiresAt.Time.Before(now.Truncate(time.Second)) {
		return Invalid{Reason: domain.InvalidReasonExpired, Err: jwt.ErrTokenExpired}
	}
	return Valid{Claims: claims}
}
