// Package gateway is the sole point of contact with the remote SSO HTTP
// API. Every request carries the browser's SSO cookies via the client's
// own cookie jar; the portal never reads or stores a token itself. The
// session lives entirely in an HttpOnly cookie the client cannot inspect.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eternivity/account-portal/users"
)

// LoginStatus is the outcome discriminator of a credential or OAuth login.
type LoginStatus string

const (
	StatusSuccess     LoginStatus = "SUCCESS"
	StatusMFARequired LoginStatus = "MFA_REQUIRED"
)

// LoginResult is the normalized response of Login and
// LoginWithGoogleCredential. ChallengeToken is set only when Status is
// StatusMFARequired.
type LoginResult struct {
	Status         LoginStatus
	ChallengeToken string
}

// Recorder observes the outcome of every gateway call. Implementations
// must be safe for concurrent use.
type Recorder interface {
	Observe(operation, outcome string, elapsed time.Duration)
}

// Client talks to the SSO on behalf of one browser session. Each browser
// session owns its own Client so that SSO cookies never cross sessions.
type Client struct {
	baseURL  string
	http     *http.Client
	recorder Recorder

	refresh *refreshGroup
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport. The provided client
// must have a cookie jar, or session cookies will not round-trip.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRecorder wires call-outcome observation (e.g. Prometheus).
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// New creates a gateway client for the SSO at baseURL with a fresh cookie
// jar. Timeouts are the transport's defaults.
func New(baseURL string, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("gateway.New: creating cookie jar: %w", err)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar},
		refresh: newRefreshGroup(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured SSO base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// HostedResetURL builds the URL of the SSO's own hosted password-reset
// page, pointing back to returnTo once the flow completes.
func (c *Client) HostedResetURL(returnTo string) string {
	return c.baseURL + "/reset-password?redirect_uri=" + url.QueryEscape(returnTo)
}

// Login submits identifier+password credentials. A non-2xx response
// surfaces the server's message verbatim.
func (c *Client) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	var resp loginResponse
	err := c.call(ctx, "login", http.MethodPost, "/api/auth/login", map[string]string{
		"identifier": identifier,
		"password":   password,
	}, &resp)
	if err != nil {
		return LoginResult{}, err
	}
	return resp.result(), nil
}

// RegisterAccount creates a new account. On success the SSO has set the
// session cookie and the caller can fetch the profile immediately.
func (c *Client) RegisterAccount(ctx context.Context, username, email, password string) error {
	return c.call(ctx, "register", http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, nil)
}

// LoginWithGoogleCredential forwards an opaque Google credential blob to
// the SSO. Known configuration failures are remapped to friendlier
// messages; everything else surfaces the server text.
func (c *Client) LoginWithGoogleCredential(ctx context.Context, credential string) (LoginResult, error) {
	var resp loginResponse
	err := c.call(ctx, "google_login", http.MethodPost, "/api/auth/google", map[string]string{
		"credential": credential,
	}, &resp)
	if err != nil {
		return LoginResult{}, friendlyGoogleError(err)
	}
	return resp.result(), nil
}

// FetchCurrentUser returns the session's user snapshot, relying solely on
// the cookie. A 401 means ErrNotAuthenticated; other failures are generic.
func (c *Client) FetchCurrentUser(ctx context.Context) (*users.User, error) {
	var u users.User
	err := c.call(ctx, "fetch_user", http.MethodGet, "/api/auth/me", nil, &u)
	if err != nil {
		if se, ok := IsServerMessage(err); ok && se.StatusCode == http.StatusUnauthorized {
			return nil, ErrNotAuthenticated
		}
		if err == ErrNotAuthenticated {
			return nil, err
		}
		return nil, fmt.Errorf("fetching current user: %w", err)
	}
	return &u, nil
}

// RequestPasswordResetEmail asks the SSO to mail a reset link. Session
// state is untouched.
func (c *Client) RequestPasswordResetEmail(ctx context.Context, email string) error {
	return c.call(ctx, "forgot_password", http.MethodPost, "/api/auth/forgot-password", map[string]string{
		"email": email,
	}, nil)
}

// ResetPasswordWithToken completes an emailed reset flow.
func (c *Client) ResetPasswordWithToken(ctx context.Context, token, newPassword string) error {
	return c.call(ctx, "reset_password", http.MethodPost, "/api/auth/reset-password", map[string]string{
		"token":       token,
		"newPassword": newPassword,
	}, nil)
}

// SetLocalPassword sets a password on an account that signed up through a
// provider. Runs through the refresh-and-retry policy since it requires an
// authenticated session.
func (c *Client) SetLocalPassword(ctx context.Context, password, confirm string) error {
	return c.doAuthenticated(ctx, func(ctx context.Context) error {
		return c.call(ctx, "set_password", http.MethodPost, "/api/auth/set-password", map[string]string{
			"password":        password,
			"confirmPassword": confirm,
		}, nil)
	})
}

// Logout asks the SSO to clear the session cookie. It never returns an
// error: logout must always appear to succeed client-side, so failures
// are logged and swallowed.
func (c *Client) Logout(ctx context.Context) {
	if err := c.call(ctx, "logout", http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		log.Warn().Err(err).Msg("SSO logout failed, clearing local state anyway")
	}
}

// loginResponse is the SSO's wire shape for the login-family endpoints.
type loginResponse struct {
	Status    LoginStatus `json:"status"`
	TempToken string      `json:"tempToken,omitempty"`
	Message   string      `json:"message,omitempty"`
}

func (r loginResponse) result() LoginResult {
	return LoginResult{Status: r.Status, ChallengeToken: r.TempToken}
}

// errorResponse is the SSO's error body. Some endpoints use "message",
// older ones "error".
type errorResponse struct {
	Message string `json:"message"`
	ErrText string `json:"error"`
}

func (e errorResponse) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.ErrText
}

// call performs one JSON exchange with the SSO. Cookies ride along via the
// client's jar. Non-2xx responses become *ServerError carrying the
// server-supplied message.
func (c *Client) call(ctx context.Context, op, method, path string, body, out any) error {
	start := time.Now()
	err := c.roundTrip(ctx, method, path, body, out)
	if c.recorder != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		c.recorder.Observe(op, outcome, time.Since(start))
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building %s %s request: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling SSO %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		msg := errBody.text()
		if msg == "" {
			msg = genericFailureMessage(resp.StatusCode)
		}
		return &ServerError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding SSO %s %s response: %w", method, path, err)
	}
	return nil
}

func genericFailureMessage(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "not authenticated"
	case http.StatusConflict:
		return "already exists"
	default:
		return fmt.Sprintf("request failed (%d)", status)
	}
}

// friendlyGoogleError rewrites the SSO's terse Google-integration errors
// into messages a person at the login form can act on.
func friendlyGoogleError(err error) error {
	se, ok := IsServerMessage(err)
	if !ok {
		return err
	}
	lower := strings.ToLower(se.Message)
	switch {
	case strings.Contains(lower, "not configured"):
		se.Message = "Google sign-in is not available right now. Please use your password instead."
	case strings.Contains(lower, "email not provided"):
		se.Message = "Google did not share an email address for this account. Please sign in another way."
	case strings.Contains(lower, "email not verified"):
		se.Message = "Your Google email address is not verified. Verify it with Google and try again."
	}
	return se
}
