package domain

import "time"

// InvalidReason explains why a session was rejected.
type InvalidReason string

const (
	InvalidReasonMissing   InvalidReason = "missing"
	InvalidReasonMalformed InvalidReason = "malformed"
	InvalidReasonExpired   InvalidReason = "expired"
	InvalidReasonLogout    InvalidReason = "logout"
)

// Session is a decoded, validated local credential.
type Session struct {
	Token     string
	Identity  Identity
	SubjectID string
	ExpiresAt time.Time
}
