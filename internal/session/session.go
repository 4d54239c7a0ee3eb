package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates the token could not be decoded. A malformed
// token is treated identically to an expired one.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the marketplace JWT claims the dashboard reads.
type Claims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Session is the decoded identity held for the lifetime of a signed-in
// dashboard. Immutable once decoded; discarded on logout or expiry.
type Session struct {
	UserID    string
	Role      string
	Name      string
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at the given time.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Decode reads the claims out of a bearer token without a network call.
// The signature is not verified here: the token is opaque input issued by
// the auth service, and the backend re-validates it on every request. The
// client only needs the role and expiry to gate rendering.
func Decode(token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrInvalidToken
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Session{}, ErrInvalidToken
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return Session{}, ErrInvalidToken
	}
	if claims.ExpiresAt == nil {
		return Session{}, ErrInvalidToken
	}
	return Session{
		UserID:    sub,
		Role:      strings.TrimSpace(strings.ToLower(claims.Role)),
		Name:      claims.Name,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

type ctxKey string

const sessionKey ctxKey = "dashboard_session"

// ContextWithSession stores the decoded identity in the context.
func ContextWithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext extracts the decoded identity from the context.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	if !ok || s.UserID == "" {
		return Session{}, false
	}
	return s, true
}
