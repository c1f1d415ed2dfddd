package gateway

import (
	"context"
	"net/http"
)

// MFAEnrollment is the SSO's answer to an enrollment start: the shared
// secret plus the otpauth URI and a pre-rendered QR image for authenticator
// apps.
type MFAEnrollment struct {
	Secret      string `json:"secret"`
	QRCodeURI   string `json:"qrCodeUri"`
	QRCodeImage string `json:"qrCodeImage"`
}

// BeginMFAEnrollment starts authenticator enrollment for the current
// session. Requires authentication, so the refresh-and-retry policy
// applies.
func (c *Client) BeginMFAEnrollment(ctx context.Context) (*MFAEnrollment, error) {
	var enrollment MFAEnrollment
	err := c.doAuthenticated(ctx, func(ctx context.Context) error {
		return c.call(ctx, "mfa_setup", http.MethodPost, "/api/auth/mfa/setup", nil, &enrollment)
	})
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ConfirmMFAEnrollment proves possession of the secret with a 6-digit code
// and turns MFA on for the account.
func (c *Client) ConfirmMFAEnrollment(ctx context.Context, secret, code string) error {
	return c.doAuthenticated(ctx, func(ctx context.Context) error {
		return c.call(ctx, "mfa_enable", http.MethodPost, "/api/auth/mfa/enable", map[string]string{
			"secret": secret,
			"code":   code,
		}, nil)
	})
}

// VerifyMFAChallenge completes a login that answered MFA_REQUIRED. On
// success the SSO has set the session cookie; the portal completes the
// transition via the session store.
func (c *Client) VerifyMFAChallenge(ctx context.Context, challengeToken, code string) error {
	return c.call(ctx, "mfa_verify", http.MethodPost, "/api/auth/mfa/verify", map[string]string{
		"tempToken": challengeToken,
		"code":      code,
	}, nil)
}

// DisableMFA turns MFA off after confirming a current code.
func (c *Client) DisableMFA(ctx context.Context, code string) error {
	return c.doAuthenticated(ctx, func(ctx context.Context) error {
		return c.call(ctx, "mfa_disable", http.MethodPost, "/api/auth/mfa/disable", map[string]string{
			"code": code,
		}, nil)
	})
}

// MFAStatus reports whether MFA is currently enabled for the session's
// account.
func (c *Client) MFAStatus(ctx context.Context) (bool, error) {
	var resp struct {
		MFAEnabled bool `json:"mfaEnabled"`
	}
	err := c.doAuthenticated(ctx, func(ctx context.Context) error {
		return c.call(ctx, "mfa_status", http.MethodGet, "/api/auth/mfa/status", nil, &resp)
	})
	if err != nil {
		return false, err
	}
	return resp.MFAEnabled, nil
}
