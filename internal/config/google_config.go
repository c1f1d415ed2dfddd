package config

type GoogleConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GoogleSignInEnabled() bool
}

type Google struct{}

var _ GoogleConfig = Google{}

func (Google) GetGoogleClientID() string {
	return GetEnv("GOOGLE_CLIENT_ID", "")
}

func (Google) GetGoogleClientSecret() string {
	return GetEnv("GOOGLE_CLIENT_SECRET", "")
}

// GoogleSignInEnabled reports whether the Google sign-in surfaces should
// render at all. Without a client ID the buttons are hidden, matching the
// SSO's "not configured" behaviour.
func (g Google) GoogleSignInEnabled() bool {
	return g.GetGoogleClientID() != ""
}
