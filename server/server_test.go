package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eternivity/account-portal/gateway"
	"github.com/eternivity/account-portal/internal/config"
	"github.com/eternivity/account-portal/server"
	"github.com/eternivity/account-portal/server/browsersession"
	"github.com/eternivity/account-portal/session"
	"github.com/eternivity/account-portal/ssotest"
)

const (
	testUsername  = "johndoe"
	testEmail     = "john.doe@example.com"
	testPassword  = "password123"
	testMFASecret = "JBSWY3DPEHPK3PXP"
)

var (
	formTokenPattern = regexp.MustCompile(`name="form_token" value="([^"]+)"`)
	mfaSecretPattern = regexp.MustCompile(`name="secret" value="([^"]+)"`)
	toastIDPattern   = regexp.MustCompile(`data-toast-id="([^"]+)"`)
)

// testFixture runs the portal against a stub SSO and drives it like a
// browser: one cookie jar, redirects followed unless a test opts out.
type testFixture struct {
	t      *testing.T
	sso    *ssotest.Server
	portal *httptest.Server
	client *http.Client
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	sso := ssotest.New()
	t.Cleanup(sso.Close)

	srv, err := server.New(config.New(), server.WithStoreFactory(
		func() (*session.Store, browsersession.AccountGateway, error) {
			gw, err := gateway.New(sso.URL())
			if err != nil {
				return nil, nil, err
			}
			return session.NewStore(gw), gw, nil
		}))
	require.NoError(t, err)

	portal := httptest.NewServer(srv)
	t.Cleanup(portal.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testFixture{
		t:      t,
		sso:    sso,
		portal: portal,
		client: &http.Client{Jar: jar},
	}
}

func (f *testFixture) seedUser() string {
	return f.sso.Seed(ssotest.Account{Username: testUsername, Email: testEmail, Password: testPassword})
}

func (f *testFixture) seedMFAUser() string {
	return f.sso.Seed(ssotest.Account{Username: testUsername, Email: testEmail, Password: testPassword, MFASecret: testMFASecret})
}

// get fetches a page, following redirects, and returns the final body.
func (f *testFixture) get(path string) (int, string) {
	f.t.Helper()
	resp, err := f.client.Get(f.portal.URL + path)
	require.NoError(f.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(f.t, err)
	return resp.StatusCode, string(body)
}

// postForm submits a form without following the response redirect, so
// tests can assert the Location header.
func (f *testFixture) postForm(path string, form url.Values) *http.Response {
	f.t.Helper()
	noRedirect := &http.Client{
		Jar: f.client.Jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := noRedirect.PostForm(f.portal.URL+path, form)
	require.NoError(f.t, err)
	return resp
}

// getNoRedirect fetches a page without following redirects.
func (f *testFixture) getNoRedirect(path string) *http.Response {
	f.t.Helper()
	noRedirect := &http.Client{
		Jar: f.client.Jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := noRedirect.Get(f.portal.URL + path)
	require.NoError(f.t, err)
	return resp
}

// formToken loads the page and extracts the one-shot form token.
func (f *testFixture) formToken(path string) string {
	f.t.Helper()
	status, body := f.get(path)
	require.Equal(f.t, http.StatusOK, status)
	m := formTokenPattern.FindStringSubmatch(body)
	require.NotNil(f.t, m, "page %s should carry a form token", path)
	return m[1]
}

// signIn drives the full login form, landing on /profile.
func (f *testFixture) signIn() {
	f.t.Helper()
	token := f.formToken("/login")
	resp := f.postForm("/auth/login", url.Values{
		"form_token": {token},
		"identifier": {testUsername},
		"password":   {testPassword},
	})
	resp.Body.Close()
	require.Equal(f.t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(f.t, "/profile", resp.Header.Get("Location"))
}

func bodyOf(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHomePageRenders(t *testing.T) {
	f := setupTestFixture(t)

	status, body := f.get("/")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "Eternivity")
	require.Contains(t, body, "Sign in")
}

func TestUnknownPathIs404(t *testing.T) {
	f := setupTestFixture(t)

	status, _ := f.get("/no-such-page")
	require.Equal(t, http.StatusNotFound, status)
}

func TestStaticPagesRender(t *testing.T) {
	f := setupTestFixture(t)

	for _, path := range []string{"/about", "/contact", "/privacy", "/safe-usage"} {
		status, body := f.get(path)
		require.Equal(t, http.StatusOK, status, path)
		require.Contains(t, body, "</html>", path)
	}
}

func TestLoginFlow(t *testing.T) {
	f := setupTestFixture(t)
	f.seedUser()

	f.signIn()

	status, body := f.get("/profile")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, testUsername)
	require.Contains(t, body, "Welcome back, johndoe!")
	require.Contains(t, body, `id="confetti"`)

	// The celebration trigger is one-shot.
	_, body = f.get("/profile")
	require.NotContains(t, body, `id="confetti"`)
}

func TestLoginWrongPasswordRerendersWithServerMessage(t *testing.T) {
	f := setupTestFixture(t)
	f.seedUser()

	token := f.formToken("/login")
	resp := f.postForm("/auth/login", url.Values{
		"form_token": {token},
		"identifier": {testUsername},
		"password":   {"wrong"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := bodyOf(t, resp)
	require.Contains(t, body, "Invalid username or password")
	require.Contains(t, body, `value="`+testUsername+`"`, "identifier should be preserved")
}

func TestLoginDoubleSubmitRunsOperationOnce(t *testing.T) {
	f := setupTestFixture(t)
	f.seedUser()

	token := f.formToken("/login")
	form := url.Values{
		"form_token": {token},
		"identifier": {testUsername},
		"password":   {testPassword},
	}

	resp := f.postForm("/auth/login", form)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	// The replayed submit must not re-run the login.
	resp = f.postForm("/auth/login", form)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, 1, f.sso.RequestCount("/api/auth/login"))
}

func TestAuthenticatedUserVisitingLoginIsRedirected(t *testing.T) {
	f := setupTestFixture(t)
	f.seedUser()
	f.signIn()

	for _, path := range []string{"/login", "/register", "/verify-otp"} {
		resp := f.getNoRedirect(path)
		resp.Body.Close()
		require.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
		require.Equal(t, "/profile", resp.Header.Get("Location"), path)
	}
}

func TestMFALoginFlow(t *testing.T) {
	f := setupTestFixture(t)
	id := f.seedMFAUser()

	token := f.formToken("/login")
	resp := f.postForm("/auth/login", url.Values{
		"form_token": {token},
		"identifier": {testUsername},
		"password":   {testPassword},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/verify-otp", resp.Header.Get("Location"))

	otpToken := f.formToken("/verify-otp")
	code := f.sso.TOTPCode(id)
	form := url.Values{"form_token": {otpToken}}
	for i, d := range strings.Split(code, "") {
		form.Set("digit"+string(rune('1'+i)), d)
	}
	resp = f.postForm("/auth/verify-otp", form)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/profile", resp.Header.Get("Location"))

	status, body := f.get("/profile")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "Welcome back, johndoe!")
}

func TestVerifyOTPDirectAccessRedirectsToLogin(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.getNoRedirect("/verify-otp")
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestOTPWrongCodeKeepsChallengeAlive(t *testing.T) {
	f := setupTestFixture(t)
	f.seedMFAUser()

	token := f.formToken("/login")
	resp := f.postForm("/auth/login", url.Values{
		"form_token": {token},
		"identifier": {testUsername},
		"password":   {testPassword},
	})
	resp.Body.Close()

	otpToken := f.formToken("/verify-otp")
	form := url.Values{"form_token": {otpToken}}
	for i := 1; i <= 6; i++ {
		form.Set("digit"+string(rune('0'+i)), "0")
	}
	resp = f.postForm("/auth/verify-otp", form)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := bodyOf(t, resp)
	require.Contains(t, body, "Invalid verification code")

	// The challenge survives a wrong code; the page still renders.
	status, _ := f.get("/verify-otp")
	require.Equal(t, http.StatusOK, status)
}

func TestReturningToLoginAbandonsChallenge(t *testing.T) {
	f := setupTestFixture(t)
	f.seedMFAUser()

	token := f.formToken("/login")
	resp := f.postForm("/auth/login", url.Values{
		"form_token": {token},
		"identifier": {testUsername},
		"password":   {testPassword},
	})
	resp.Body.Close()

	status, _ := f.get("/login")
	require.Equal(t, http.StatusOK, status)

	resp = f.getNoRedirect("/verify-otp")
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestRegisterFlow(t *testing.T) {
	f := setupTestFixture(t)

	token := f.formToken("/register")
	resp := f.postForm("/auth/register", url.Values{
		"form_token":       {token},
		"username":         {testUsername},
		"email":            {testEmail},
		"password":         {testPassword},
		"confirm_password": {testPassword},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/profile", resp.Header.Get("Location"))

	status, body := f.get("/profile")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "Welcome to Eternivity, johndoe!")
	require.Contains(t, body, "Your account has been created successfully")
}

func TestRegisterValidation(t *testing.T) {
	f := setupTestFixture(t)

	tests := []struct {
		name    string
		mutate  func(url.Values)
		wantErr string
	}{
		{"missing username", func(v url.Values) { v.Set("username", "") }, "Username is required"},
		{"bad email", func(v url.Values) { v.Set("email", "not-an-email") }, "Please enter a valid email address"},
		{"short password", func(v url.Values) { v.Set("password", "short"); v.Set("confirm_password", "short") }, "Password must be at least 8 characters long"},
		{"mismatched confirmation", func(v url.Values) { v.Set("confirm_password", "different123") }, "Passwords do not match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{
				"form_token":       {f.formToken("/register")},
				"username":         {testUsername},
				"email":            {testEmail},
				"password":         {testPassword},
				"confirm_password": {testPassword},
			}
			tt.mutate(form)
			resp := f.postForm("/auth/register", form)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.Contains(t, bodyOf(t, resp), tt.wantErr)
		})
	}
	require.Equal(t, 0, f.sso.RequestCount("/api/auth/register"), "invalid forms must not reach the SSO")
}

func TestLogout(t *testing.T) {
	f := setupTestFixture(t)
	f.seedUser()
	f.signIn()

	resp := f.postForm("/auth/logout", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	status, body := f.get("/")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "Logged out successfully")
	require.Contains(t, body, "Goodbye, johndoe! See you soon")

	resp = f.getNoRedirect("/profile")
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestProfileRequiresAuthentication(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.getNoRedirect("/profile")
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestAuthMarkerIsStrippedByRedirect(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.getNoRedirect("/?auth_success=1&ref=mail")
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/?ref=mail", resp.Header.Get("Location"))
}

func TestProfileShowsSubscriptions(t *testing.T) {
	f := setupTestFixture(t)
	f.sso.Seed(ssotest.Account{
		Username: testUsername,
		Email:    testEmail,
		Password: testPassword,
		Services: map[string]json.RawMessage{
			"notes":  json.RawMessage(`{"plan":"pro","status":"active"}`),
			"legacy": json.RawMessage(`"lifetime"`),
		},
	})
	f.signIn()

	status, body := f.get("/profile")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "notes")
	require.Contains(t, body, "pro · active")
	require.Contains(t, body, "lifetime")
}

func TestMFAEnrollmentFromProfile(t *testing.T) {
	f := setupTestFixture(t)
	id := f.seedUser()
	f.signIn()

	token := f.formToken("/profile")
	resp := f.postForm("/profile/mfa/setup", url.Values{"form_token": {token}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := bodyOf(t, resp)
	require.Contains(t, body, "data:image/png;base64,")

	m := mfaSecretPattern.FindStringSubmatch(body)
	require.NotNil(t, m)
	secret := m[1]

	enableToken := formTokenPattern.FindStringSubmatch(body)
	require.NotNil(t, enableToken)

	resp = f.postForm("/profile/mfa/enable", url.Values{
		"form_token": {enableToken[1]},
		"secret":     {secret},
		"code":       {f.sso.TOTPCode(id)},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/profile", resp.Header.Get("Location"))

	status, body := f.get("/profile")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "Two-factor enabled")
	require.Contains(t, body, "/profile/mfa/disable")
}

func TestMFADisableFromProfile(t *testing.T) {
	f := setupTestFixture(t)
	id := f.seedMFAUser()

	// Sign in through the MFA flow first.
	token := f.formToken("/login")
	resp := f.postForm("/auth/login", url.Values{
		"form_token": {token},
		"identifier": {testUsername},
		"password":   {testPassword},
	})
	resp.Body.Close()
	otpToken := f.formToken("/verify-otp")
	code := f.sso.TOTPCode(id)
	form := url.Values{"form_token": {otpToken}}
	for i, d := range strings.Split(code, "") {
		form.Set("digit"+string(rune('1'+i)), d)
	}
	resp = f.postForm("/auth/verify-otp", form)
	resp.Body.Close()

	profileToken := f.formToken("/profile")
	resp = f.postForm("/profile/mfa/disable", url.Values{
		"form_token": {profileToken},
		"code":       {f.sso.TOTPCode(id)},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	status, body := f.get("/profile")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "Two-factor disabled")
	require.Contains(t, body, "/profile/mfa/setup")
}

func TestForgotPassword(t *testing.T) {
	f := setupTestFixture(t)
	f.seedUser()

	token := f.formToken("/forgot-password")
	resp := f.postForm("/forgot-password", url.Values{
		"form_token": {token},
		"email":      {testEmail},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, bodyOf(t, resp), "a reset link is on its way")
}

func TestForgotPasswordRejectsBadEmail(t *testing.T) {
	f := setupTestFixture(t)

	token := f.formToken("/forgot-password")
	resp := f.postForm("/forgot-password", url.Values{
		"form_token": {token},
		"email":      {"not-an-email"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, bodyOf(t, resp), "Please enter a valid email address")
	require.Equal(t, 0, f.sso.RequestCount("/api/auth/forgot-password"))
}

func TestResetPasswordFlow(t *testing.T) {
	f := setupTestFixture(t)
	id := f.seedUser()
	resetToken := f.sso.IssueResetToken(id)

	formToken := f.formToken("/reset-password?token=" + resetToken)
	resp := f.postForm("/reset-password", url.Values{
		"form_token":       {formToken},
		"token":            {resetToken},
		"password":         {"brandnewpass1"},
		"confirm_password": {"brandnewpass1"},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))

	status, body := f.get("/login")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "Password updated")

	// The new password signs in.
	token := f.formToken("/login")
	resp = f.postForm("/auth/login", url.Values{
		"form_token": {token},
		"identifier": {testUsername},
		"password":   {"brandnewpass1"},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/profile", resp.Header.Get("Location"))
}

func TestResetPasswordWithoutTokenRedirects(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.getNoRedirect("/reset-password")
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/forgot-password", resp.Header.Get("Location"))
}

func TestToastDismiss(t *testing.T) {
	f := setupTestFixture(t)
	f.seedUser()
	f.signIn()

	_, body := f.get("/profile")
	m := toastIDPattern.FindStringSubmatch(body)
	require.NotNil(t, m)
	toastID := m[1]

	resp := f.postForm("/toasts/dismiss", url.Values{
		"id":        {toastID},
		"return_to": {"/profile"},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/profile", resp.Header.Get("Location"))

	_, body = f.get("/profile")
	require.NotContains(t, body, toastID)

	// Dismissing an id that no longer exists is harmless.
	resp = f.postForm("/toasts/dismiss", url.Values{"id": {toastID}})
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	f := setupTestFixture(t)
	f.get("/")

	status, body := f.get("/metrics")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "portal_http_requests_total")
}

func TestGoogleButtonHiddenWithoutConfiguration(t *testing.T) {
	f := setupTestFixture(t)

	status, body := f.get("/login")
	require.Equal(t, http.StatusOK, status)
	require.NotContains(t, body, "Continue with Google")
}
