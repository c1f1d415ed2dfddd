package config

type SSOConfig interface {
	GetSSOBaseURL() string
	GetAuthSuccessParam() string
	GetSSOReferrerHost() string
}

type SSO struct{}

var _ SSOConfig = SSO{}

// GetSSOBaseURL returns the root of the external single-sign-on service.
// All /api/auth/* endpoints are relative to it.
func (SSO) GetSSOBaseURL() string {
	return GetEnv("SSO_BASE_URL", "https://auth.eternivity.com")
}

// GetAuthSuccessParam is the marker query parameter the SSO appends when
// redirecting back after a successful cross-domain login. The portal
// consumes it once and strips it from the visible URL.
func (SSO) GetAuthSuccessParam() string {
	return GetEnv("AUTH_SUCCESS_PARAM", "auth_success")
}

// GetSSOReferrerHost is the SSO host used for the referrer-based arrival
// check, mirroring the marker parameter.
func (SSO) GetSSOReferrerHost() string {
	return GetEnv("SSO_REFERRER_HOST", "auth.eternivity.com")
}
