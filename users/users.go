package users

import (
	"encoding/json"
	"strings"
)

// AuthProvider identifies a linked authentication method on the SSO account.
type AuthProvider string

const (
	ProviderPassword AuthProvider = "password"
	ProviderGoogle   AuthProvider = "google"
)

// User is the authenticated identity snapshot as reported by the SSO's
// /api/auth/me endpoint. It is replaced wholesale on every refresh and
// never mutated in place.
type User struct {
	UserID          string                     `json:"userId"`
	Username        string                     `json:"username"`
	Email           string                     `json:"email"`
	Services        map[string]json.RawMessage `json:"services,omitempty"` // per-service detail blob, shape varies
	ProfileImageURL string                     `json:"profileImageUrl,omitempty"`
	HasPassword     bool                       `json:"hasPassword"`
	AuthProviders   []AuthProvider             `json:"authProviders,omitempty"`
	MFAEnabled      bool                       `json:"mfaEnabled,omitempty"`
}

// Initials returns the avatar fallback badge: the first two characters of
// the username, uppercased. Used when no profile image URL is present.
func (u *User) Initials() string {
	name := strings.TrimSpace(u.Username)
	if name == "" {
		return "?"
	}
	runes := []rune(name)
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return strings.ToUpper(string(runes))
}

// HasProvider reports whether the account has the given provider linked.
func (u *User) HasProvider(p AuthProvider) bool {
	for _, ap := range u.AuthProviders {
		if ap == p {
			return true
		}
	}
	return false
}

// Subscriptions parses every per-service blob defensively. Services whose
// payload cannot be understood are still listed, carrying their raw text.
func (u *User) Subscriptions() map[string]Subscription {
	if len(u.Services) == 0 {
		return nil
	}
	subs := make(map[string]Subscription, len(u.Services))
	for name, raw := range u.Services {
		subs[name] = ParseSubscription(raw)
	}
	return subs
}
