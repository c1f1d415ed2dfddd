package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/eternivity/account-portal/internal/config"
)

const googleStateCookie = "google_oauth_state"

// IDTokenVerifier validates a raw Google ID token. *oidc.IDTokenVerifier
// satisfies it; tests substitute a stub.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// GoogleSignIn holds the redirect-flow OAuth config and the ID token
// verifier. The portal never consumes Google identities itself: a
// verified credential is forwarded to the SSO, which owns the account
// linkage.
type GoogleSignIn struct {
	oauth    *oauth2.Config
	verifier IDTokenVerifier
}

// NewGoogleSignIn discovers Google's OIDC endpoints and prepares the
// redirect flow. Call only when cfg.GoogleSignInEnabled().
func NewGoogleSignIn(ctx context.Context, cfg config.Config) (*GoogleSignIn, error) {
	provider, err := oidc.NewProvider(ctx, "https://accounts.google.com")
	if err != nil {
		return nil, fmt.Errorf("[GoogleSignIn] discovering provider: %w", err)
	}
	return &GoogleSignIn{
		oauth: &oauth2.Config{
			ClientID:     cfg.GetGoogleClientID(),
			ClientSecret: cfg.GetGoogleClientSecret(),
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.GetBaseURL() + RouteAuthGoogleCallback,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.GetGoogleClientID()}),
	}, nil
}

// GoogleCredentialHandler accepts a credential posted by the Google
// Identity Services button (POST /auth/google) and forwards it to the
// SSO. Same MFA hand-off shape as the password login.
func (s *Server) GoogleCredentialHandler() http.HandlerFunc {
	tmpl := MustParsePage("login.html")
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.browserSession(w, r)
		if err != nil {
			s.sessionError(w, err)
			return
		}
		if redirectIfAuthenticated(w, r, sess) {
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		credential := r.FormValue("credential")
		if credential == "" {
			http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
			return
		}

		challenge, err := sess.Store.LoginWithGoogle(r.Context(), credential)
		if err != nil {
			log.Debug().Err(err).Msg("google sign-in rejected")
			data := s.newPageData(sess, "login")
			data.FormToken = issueFormToken(sess)
			data.Error = err.Error()
			data.Data = LoginPageData{}
			s.renderPage(w, tmpl, data)
			return
		}
		if challenge != nil {
			http.Redirect(w, r, RouteVerifyOTP, http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, RouteProfile, http.StatusSeeOther)
	}
}

// GoogleStartHandler kicks off the redirect flow (GET /auth/google/start)
// for browsers where the embedded button cannot load.
func (s *Server) GoogleStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.google == nil {
			http.NotFound(w, r)
			return
		}
		state := uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     googleStateCookie,
			Value:    state,
			Path:     RouteAuthGoogleCallback,
			MaxAge:   300,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   s.env != "DEV",
		})
		http.Redirect(w, r, s.google.oauth.AuthCodeURL(state), http.StatusSeeOther)
	}
}

// GoogleCallbackHandler finishes the redirect flow (GET
// /auth/google/callback): checks the state cookie, exchanges the code,
// verifies the returned ID token and hands the credential to the SSO.
func (s *Server) GoogleCallbackHandler() http.HandlerFunc {
	tmpl := MustParsePage("login.html")
	return func(w http.ResponseWriter, r *http.Request) {
		if s.google == nil {
			http.NotFound(w, r)
			return
		}
		sess, err := s.browserSession(w, r)
		if err != nil {
			s.sessionError(w, err)
			return
		}

		renderError := func(msg string) {
			data := s.newPageData(sess, "login")
			data.FormToken = issueFormToken(sess)
			data.Error = msg
			data.Data = LoginPageData{}
			s.renderPage(w, tmpl, data)
		}

		stateCookie, err := r.Cookie(googleStateCookie)
		if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
			renderError("Google sign-in failed, please try again")
			return
		}
		http.SetCookie(w, &http.Cookie{Name: googleStateCookie, Path: RouteAuthGoogleCallback, MaxAge: -1})

		token, err := s.google.oauth.Exchange(r.Context(), r.URL.Query().Get("code"))
		if err != nil {
			log.Debug().Err(err).Msg("google code exchange failed")
			renderError("Google sign-in failed, please try again")
			return
		}
		rawIDToken, ok := token.Extra("id_token").(string)
		if !ok || rawIDToken == "" {
			renderError("Google sign-in failed, please try again")
			return
		}
		if _, err := s.google.verifier.Verify(r.Context(), rawIDToken); err != nil {
			log.Debug().Err(err).Msg("google id token rejected")
			renderError("Google sign-in failed, please try again")
			return
		}

		challenge, err := sess.Store.LoginWithGoogle(r.Context(), rawIDToken)
		if err != nil {
			renderError(err.Error())
			return
		}
		if challenge != nil {
			http.Redirect(w, r, RouteVerifyOTP, http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, RouteProfile, http.StatusSeeOther)
	}
}
