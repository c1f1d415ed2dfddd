package config

import "time"

type SecurityConfig interface {
	GetSessionCookieName() string
	GetSessionMaxAge() time.Duration
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetSessionCookieName is the portal's own browser-session cookie. It
// identifies the per-browser state bundle; the SSO's session cookie is a
// separate thing the portal never reads.
func (Security) GetSessionCookieName() string {
	return GetEnv("SESSION_COOKIE_NAME", "eternivity_portal")
}

func (Security) GetSessionMaxAge() time.Duration {
	return 24 * time.Hour
}
