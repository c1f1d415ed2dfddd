// Package ssotest runs an in-process stand-in for the remote SSO so that
// gateway, session and handler tests can exercise real HTTP exchanges,
// real cookies and real TOTP codes without a network. The wire contract
// mirrors the production SSO's /api/auth surface.
package ssotest

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/eternivity/account-portal/users"
)

// SessionCookieName matches the cookie the production SSO sets.
const SessionCookieName = "sso_session"

// Account seeds one SSO account. Password is hashed at seed time;
// MFASecret, when set, makes login answer MFA_REQUIRED and gates
// verify/disable on valid TOTP codes for that secret. GoogleCredential,
// when set, is the opaque credential accepted by the Google endpoint.
type Account struct {
	Username         string
	Email            string
	Password         string
	MFASecret        string
	GoogleCredential string
	ProfileImageURL  string
	Services         map[string]json.RawMessage
}

type account struct {
	id              string
	username        string
	email           string
	passwordHash    []byte
	hasPassword     bool
	mfaSecret       string
	googleCred      string
	profileImageURL string
	services        map[string]json.RawMessage
	providers       []users.AuthProvider
}

// Server is the stub SSO. All exported methods are safe for concurrent
// use; handlers run on httptest's goroutines.
type Server struct {
	httpServer *httptest.Server
	signingKey []byte

	mu            sync.Mutex
	accounts      map[string]*account // by id
	byIdentifier  map[string]*account // username and email
	tempTokens    map[string]string   // MFA challenge token -> account id
	resetTokens   map[string]string   // password reset token -> account id
	pendingSecret map[string]string   // account id -> unconfirmed MFA secret
	revokedJTIs   map[string]bool
	failRefresh   bool
	googleError   string
	requests      map[string]int
}

// New starts the stub SSO. Callers must Close it.
func New() *Server {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic("ssotest: generating signing key: " + err.Error())
	}
	s := &Server{
		signingKey:    key,
		accounts:      make(map[string]*account),
		byIdentifier:  make(map[string]*account),
		tempTokens:    make(map[string]string),
		resetTokens:   make(map[string]string),
		pendingSecret: make(map[string]string),
		revokedJTIs:   make(map[string]bool),
		requests:      make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/google", s.handleGoogle)
	mux.HandleFunc("GET /api/auth/me", s.handleMe)
	mux.HandleFunc("POST /api/auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("POST /api/auth/forgot-password", s.handleForgotPassword)
	mux.HandleFunc("POST /api/auth/reset-password", s.handleResetPassword)
	mux.HandleFunc("POST /api/auth/set-password", s.handleSetPassword)
	mux.HandleFunc("POST /api/auth/mfa/setup", s.handleMFASetup)
	mux.HandleFunc("POST /api/auth/mfa/enable", s.handleMFAEnable)
	mux.HandleFunc("POST /api/auth/mfa/verify", s.handleMFAVerify)
	mux.HandleFunc("POST /api/auth/mfa/disable", s.handleMFADisable)
	mux.HandleFunc("GET /api/auth/mfa/status", s.handleMFAStatus)
	s.httpServer = httptest.NewServer(s.counting(mux))
	return s
}

// URL returns the stub's base URL for gateway.New.
func (s *Server) URL() string { return s.httpServer.URL }

// Close shuts the stub down.
func (s *Server) Close() { s.httpServer.Close() }

// Seed registers an account and returns its id.
func (s *Server) Seed(a Account) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := &account{
		id:              uuid.NewString(),
		username:        a.Username,
		email:           a.Email,
		mfaSecret:       a.MFASecret,
		googleCred:      a.GoogleCredential,
		profileImageURL: a.ProfileImageURL,
		services:        a.Services,
	}
	if a.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), bcrypt.MinCost)
		if err != nil {
			panic("ssotest: hashing seed password: " + err.Error())
		}
		acc.passwordHash = hash
		acc.hasPassword = true
		acc.providers = append(acc.providers, users.ProviderPassword)
	}
	if a.GoogleCredential != "" {
		acc.providers = append(acc.providers, users.ProviderGoogle)
	}
	s.accounts[acc.id] = acc
	s.byIdentifier[strings.ToLower(a.Username)] = acc
	s.byIdentifier[strings.ToLower(a.Email)] = acc
	return acc.id
}

// TOTPCode returns a currently valid code for the account's confirmed or
// pending MFA secret.
func (s *Server) TOTPCode(accountID string) string {
	s.mu.Lock()
	acc := s.accounts[accountID]
	secret := ""
	if acc != nil {
		secret = acc.mfaSecret
	}
	if secret == "" {
		secret = s.pendingSecret[accountID]
	}
	s.mu.Unlock()
	if secret == "" {
		panic("ssotest: account has no MFA secret")
	}
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		panic("ssotest: generating TOTP code: " + err.Error())
	}
	return code
}

// IssueResetToken mails no email; it hands back the token the reset
// endpoint will accept for the account.
func (s *Server) IssueResetToken(accountID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := uuid.NewString()
	s.resetTokens[token] = accountID
	return token
}

// ExpireSessions invalidates every session cookie issued so far. The next
// authenticated call answers 401 until the client refreshes.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokedJTIs["*"] = true
}

// SetFailRefresh makes /api/auth/refresh answer 401, simulating a fully
// dead SSO session.
func (s *Server) SetFailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

// SetGoogleError makes the Google endpoint fail with the given message,
// e.g. "Google OAuth is not configured".
func (s *Server) SetGoogleError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.googleError = msg
}

// RequestCount reports how many times a path was hit.
func (s *Server) RequestCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

func (s *Server) counting(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

func (s *Server) issueSession(w http.ResponseWriter, accountID string) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		panic("ssotest: signing session token: " + err.Error())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
	})
}

// currentAccount resolves the session cookie to an account, or nil.
func (s *Server) currentAccount(r *http.Request) *account {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	var claims sessionClaims
	_, err = jwt.ParseWithClaims(cookie.Value, &claims, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revokedJTIs["*"] || s.revokedJTIs[claims.ID] {
		return nil
	}
	return s.accounts[claims.Subject]
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func decode(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	acc := s.byIdentifier[strings.ToLower(req.Identifier)]
	var id, mfaSecret string
	var hash []byte
	var hasPassword bool
	if acc != nil {
		id, mfaSecret, hash, hasPassword = acc.id, acc.mfaSecret, acc.passwordHash, acc.hasPassword
	}
	s.mu.Unlock()
	if acc == nil || !hasPassword ||
		bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	if mfaSecret != "" {
		token := uuid.NewString()
		s.mu.Lock()
		s.tempTokens[token] = id
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "MFA_REQUIRED",
			"tempToken": token,
		})
		return
	}

	s.issueSession(w, id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "SUCCESS"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	_, usernameTaken := s.byIdentifier[strings.ToLower(req.Username)]
	_, emailTaken := s.byIdentifier[strings.ToLower(req.Email)]
	s.mu.Unlock()
	if usernameTaken {
		writeError(w, http.StatusConflict, "Username already exists")
		return
	}
	if emailTaken {
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}

	id := s.Seed(Account{Username: req.Username, Email: req.Email, Password: req.Password})
	s.issueSession(w, id)
	writeJSON(w, http.StatusCreated, map[string]string{"status": "SUCCESS"})
}

func (s *Server) handleGoogle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	googleErr := s.googleError
	s.mu.Unlock()
	if googleErr != "" {
		writeError(w, http.StatusBadRequest, googleErr)
		return
	}

	var req struct {
		Credential string `json:"credential"`
	}
	if err := decode(r, &req); err != nil || req.Credential == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	var id, mfaSecret string
	found := false
	for _, a := range s.accounts {
		if a.googleCred != "" && a.googleCred == req.Credential {
			id, mfaSecret, found = a.id, a.mfaSecret, true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		writeError(w, http.StatusUnauthorized, "Invalid Google credential")
		return
	}

	if mfaSecret != "" {
		token := uuid.NewString()
		s.mu.Lock()
		s.tempTokens[token] = id
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "MFA_REQUIRED",
			"tempToken": token,
		})
		return
	}

	s.issueSession(w, id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "SUCCESS"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	acc := s.currentAccount(r)
	if acc == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	s.mu.Lock()
	u := users.User{
		UserID:          acc.id,
		Username:        acc.username,
		Email:           acc.email,
		Services:        acc.services,
		ProfileImageURL: acc.profileImageURL,
		HasPassword:     acc.hasPassword,
		AuthProviders:   acc.providers,
		MFAEnabled:      acc.mfaSecret != "",
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	fail := s.failRefresh
	s.mu.Unlock()
	if fail {
		writeError(w, http.StatusUnauthorized, "refresh token expired")
		return
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "no session")
		return
	}
	var claims sessionClaims
	// Expired or revoked sessions still refresh; only the signature must
	// hold, matching refresh-token semantics.
	_, err = jwt.ParseWithClaims(cookie.Value, &claims, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid session")
		return
	}
	s.mu.Lock()
	if s.revokedJTIs["*"] {
		delete(s.revokedJTIs, "*")
	}
	s.mu.Unlock()
	s.issueSession(w, claims.Subject)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: SessionCookieName, Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decode(r, &req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Account existence is never disclosed.
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	accountID, ok := s.resetTokens[req.Token]
	if ok {
		delete(s.resetTokens, req.Token)
	}
	acc := s.accounts[accountID]
	s.mu.Unlock()
	if !ok || acc == nil {
		writeError(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.MinCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "hashing password")
		return
	}
	s.mu.Lock()
	acc.passwordHash = hash
	acc.hasPassword = true
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	acc := s.currentAccount(r)
	if acc == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	var req struct {
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := decode(r, &req); err != nil || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Password != req.ConfirmPassword {
		writeError(w, http.StatusBadRequest, "Passwords do not match")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "hashing password")
		return
	}
	s.mu.Lock()
	acc.passwordHash = hash
	if !acc.hasPassword {
		acc.hasPassword = true
		acc.providers = append(acc.providers, users.ProviderPassword)
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMFASetup(w http.ResponseWriter, r *http.Request) {
	acc := s.currentAccount(r)
	if acc == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "Eternivity",
		AccountName: acc.email,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generating MFA secret")
		return
	}

	s.mu.Lock()
	s.pendingSecret[acc.id] = key.Secret()
	s.mu.Unlock()

	img, err := key.Image(180, 180)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "rendering QR code")
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		writeError(w, http.StatusInternalServerError, "encoding QR code")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"secret":      key.Secret(),
		"qrCodeUri":   key.URL(),
		"qrCodeImage": "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
}

func (s *Server) handleMFAEnable(w http.ResponseWriter, r *http.Request) {
	acc := s.currentAccount(r)
	if acc == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	var req struct {
		Secret string `json:"secret"`
		Code   string `json:"code"`
	}
	if err := decode(r, &req); err != nil || req.Secret == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !totp.Validate(req.Code, req.Secret) {
		writeError(w, http.StatusBadRequest, "Invalid verification code")
		return
	}
	s.mu.Lock()
	acc.mfaSecret = req.Secret
	delete(s.pendingSecret, acc.id)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMFAVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TempToken string `json:"tempToken"`
		Code      string `json:"code"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	accountID, ok := s.tempTokens[req.TempToken]
	acc := s.accounts[accountID]
	var secret string
	if acc != nil {
		secret = acc.mfaSecret
	}
	s.mu.Unlock()
	if !ok || acc == nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired challenge")
		return
	}
	if !totp.Validate(req.Code, secret) {
		writeError(w, http.StatusUnauthorized, "Invalid verification code")
		return
	}

	s.mu.Lock()
	delete(s.tempTokens, req.TempToken)
	s.mu.Unlock()
	s.issueSession(w, accountID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "SUCCESS"})
}

func (s *Server) handleMFADisable(w http.ResponseWriter, r *http.Request) {
	acc := s.currentAccount(r)
	if acc == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.mu.Lock()
	secret := acc.mfaSecret
	s.mu.Unlock()
	if secret == "" {
		writeError(w, http.StatusBadRequest, "MFA is not enabled")
		return
	}
	if !totp.Validate(req.Code, secret) {
		writeError(w, http.StatusBadRequest, "Invalid verification code")
		return
	}
	s.mu.Lock()
	acc.mfaSecret = ""
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMFAStatus(w http.ResponseWriter, r *http.Request) {
	acc := s.currentAccount(r)
	if acc == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	s.mu.Lock()
	enabled := acc.mfaSecret != ""
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"mfaEnabled": enabled})
}
