package session

import (
	"strings"
	"time"

	"renomarket.org/internal/localstore"
	"renomarket.org/internal/obs"
)

const loginPath = "/login"

// Outcome is the result of a guard check. Guard failure is never an error
// value: it is always a navigation side effect, so consumers either render
// with the session or follow the redirect.
type Outcome struct {
	Session  Session
	Redirect string // non-empty means navigate here instead of rendering
}

// Allowed reports whether rendering may proceed.
func (o Outcome) Allowed() bool { return o.Redirect == "" }

// Guard gates every protected view on a stored bearer token.
type Guard struct {
	store *localstore.Store
	now   func() time.Time
}

// NewGuard builds a guard over the client's persisted state.
func NewGuard(store *localstore.Store) *Guard {
	return &Guard{store: store, now: time.Now}
}

// Check runs on every navigation into a protected view. currentPath is
// preserved so login can restore where the user was headed.
//
// Missing token: redirect to login, keeping the return path. Malformed,
// expired, or role-mismatched token: clear every persisted session key,
// then record the return path and redirect. No retry in any case.
func (g *Guard) Check(requiredRole, currentPath string) Outcome {
	token, err := g.store.Get(localstore.KeyAuthToken)
	if err != nil {
		g.setReturnPath(currentPath)
		return Outcome{Redirect: loginPath}
	}

	s, err := Decode(token)
	if err != nil {
		return g.reject(currentPath, "token undecodable")
	}
	if s.Expired(g.now()) {
		return g.reject(currentPath, "token expired")
	}
	if requiredRole != "" && s.Role != strings.TrimSpace(strings.ToLower(requiredRole)) {
		return g.reject(currentPath, "role mismatch")
	}
	return Outcome{Session: s}
}

// Logout clears the persisted session. Shared with the guard's reject path
// so there is exactly one routine that knows the full key list.
func (g *Guard) Logout() error {
	return g.store.ClearSession()
}

func (g *Guard) reject(currentPath, reason string) Outcome {
	if err := g.store.ClearSession(); err != nil {
		obs.Error("session clear failed", err, nil)
	}
	g.setReturnPath(currentPath)
	obs.Log("info", "session rejected", map[string]any{"reason": reason})
	return Outcome{Redirect: loginPath}
}

func (g *Guard) setReturnPath(path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	if err := g.store.Set(localstore.KeyRedirectPath, path); err != nil {
		obs.Error("return path store failed", err, nil)
	}
}
