package server

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/eternivity/account-portal/gateway"
	"github.com/eternivity/account-portal/server/browsersession"
	"github.com/eternivity/account-portal/session"
	"github.com/eternivity/account-portal/users"
)

// ProfilePageData is the page-specific model for the account page.
type ProfilePageData struct {
	Subscriptions map[string]users.Subscription
	Enrollment    *gateway.MFAEnrollment
	// QRCodeSrc is the enrollment QR image as a data URI, pre-approved
	// for the img src attribute.
	QRCodeSrc template.URL
}

// requireAuthenticated gates the account surfaces. Anonymous visitors go
// to the login page; nobody sees a partial profile.
func (s *Server) requireAuthenticated(w http.ResponseWriter, r *http.Request, sess *browsersession.Session) bool {
	if sess.Store.State() != session.StateAuthenticated {
		http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
		return false
	}
	return true
}

// handleExpiredSession intercepts a gateway result that means the SSO
// session died mid-operation: the local snapshot is dropped and the user
// is sent back to sign in. Returns true when it wrote the redirect.
func (s *Server) handleExpiredSession(w http.ResponseWriter, r *http.Request, sess *browsersession.Session, err error) bool {
	if !errors.Is(err, gateway.ErrSessionExpired) && !errors.Is(err, gateway.ErrNotAuthenticated) {
		return false
	}
	_ = sess.Store.RefreshUser(r.Context())
	sess.Store.AddToast(session.ToastError, "Session expired", "Please sign in again")
	http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
	return true
}

func profileData(u *users.User) ProfilePageData {
	data := ProfilePageData{}
	if u != nil {
		data.Subscriptions = u.Subscriptions()
	}
	return data
}

// ProfileHandler displays the account page (GET /profile)
func (s *Server) ProfileHandler() http.HandlerFunc {
	tmpl := MustParsePage("profile.html")
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.browserSession(w, r)
		if err != nil {
			s.sessionError(w, err)
			return
		}
		if s.consumeAuthMarker(w, r, sess) {
			return
		}
		if !s.requireAuthenticated(w, r, sess) {
			return
		}
		data := s.newPageData(sess, "profile")
		data.FormToken = issueFormToken(sess)
		data.Data = profileData(sess.Store.User())
		s.renderPage(w, tmpl, data)
	}
}

// MFASetupHandler starts authenticator enrollment (POST /profile/mfa/setup)
// and re-renders the account page with the secret and QR code.
func (s *Server) MFASetupHandler() http.HandlerFunc {
	tmpl := MustParsePage("profile.html")
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.browserSession(w, r)
		if err != nil {
			s.sessionError(w, err)
			return
		}
		if !s.requireAuthenticated(w, r, sess) {
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		if !sess.ConsumeFormToken(r.FormValue("form_token")) {
			http.Redirect(w, r, RouteProfile, http.StatusSeeOther)
			return
		}

		enrollment, err := sess.Gateway.BeginMFAEnrollment(r.Context())
		if err != nil {
			if s.handleExpiredSession(w, r, sess, err) {
				return
			}
			log.Err(err).Msg("starting mfa enrollment")
			sess.Store.AddToast(session.ToastError, "Two-factor setup failed", err.Error())
			http.Redirect(w, r, RouteProfile, http.StatusSeeOther)
			return
		}

		data := s.newPageData(sess, "profile")
		data.FormToken = issueFormToken(sess)
		pd := profileData(sess.Store.User())
		pd.Enrollment = enrollment
		pd.QRCodeSrc = template.URL(enrollment.QRCodeImage)
		data.Data = pd
		s.renderPage(w, tmpl, data)
	}
}

// MFAEnableHandler confirms enrollment with a current code
// (POST /profile/mfa/enable).
func (s *Server) MFAEnableHandler() http.HandlerFunc {
	tmpl := MustParsePage("profile.html")
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.browserSession(w, r)
		if err != nil {
			s.sessionError(w, err)
			return
		}
		if !s.requireAuthenticated(w, r, sess) {
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		if !sess.ConsumeFormToken(r.FormValue("form_token")) {
			http.Redirect(w, r, RouteProfile, http.StatusSeeOther)
			return
		}

		secret := r.FormValue("secret")
		code := strings.TrimSpace(r.FormValue("code"))

		renderError := func(msg string) {
			data := s.newPageData(sess, "profile")
			data.FormToken = issueFormToken(sess)
			data.Error = msg
			pd := profileData(sess.Store.User())
			pd.Enrollment = &gateway.MFAEnrollment{Secret: secret}
			data.Data = pd
			s.renderPage(w, tmpl, data)
		}

		if secret == "" {
			http.Redirect(w, r, RouteProfile, http.StatusSeeOther)
			return
		}
		if !validOTPCode(code) {
			renderError("Please enter the 6-digit code")
			return
		}

		if err := sess.Gateway.ConfirmMFAEnrollment(r.Context(), secret, code); err != nil {
			if s.handleExpiredSession(w, r, sess, err) {
				return
			}
			log.Debug().Err(err).Msg("mfa enrollment rejected")
			renderError(err.Error())
			return
		}

		if err := sess.Store.RefreshUser(r.Context()); err != nil {
			log.Warn().Err(err).Msg("refreshing profile after mfa enable")
		}
		sess.Store.AddToast(session.ToastSuccess, "Two-factor enabled", "Your account is now protected with an authenticator app")
		http.Redirect(w, r, RouteProfile, http.StatusSeeOther)
	}
}

// MFADisableHandler turns two-factor off after confirming a current code
// (POST /profile/mfa/disable).
func (s *Server) MFADisableHandler() http.HandlerFunc {
	tmpl := MustParsePage("profile.html")
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.browserSession(w, r)
		if err != nil {
			s.sessionError(w, err)
			return
		}
		if !s.requireAuthenticated(w, r, sess) {
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		if !sess.ConsumeFormToken(r.FormValue("form_token")) {
			http.Redirect(w, r, RouteProfile, http.StatusSeeOther)
			return
		}

		code := strings.TrimSpace(r.FormValue("code"))

		renderError := func(msg string) {
			data := s.newPageData(sess, "profile")
			data.FormToken = issueFormToken(sess)
			data.Error = msg
			data.Data = profileData(sess.Store.User())
			s.renderPage(w, tmpl, data)
		}

		if !validOTPCode(code) {
			renderError("Please enter the 6-digit code")
			return
		}

		if err := sess.Gateway.DisableMFA(r.Context(), code); err != nil {
			if s.handleExpiredSession(w, r, sess, err) {
				return
			}
			log.Debug().Err(err).Msg("mfa disable rejected")
			renderError(err.Error())
			return
		}

		if err := sess.Store.RefreshUser(r.Context()); err != nil {
			log.Warn().Err(err).Msg("refreshing profile after mfa disable")
		}
		sess.Store.AddToast(session.ToastInfo, "Two-factor disabled", "Authenticator codes are no longer required to sign in")
		http.Redirect(w, r, RouteProfile, http.StatusSeeOther)
	}
}

// SetPasswordHandler adds a local password to an account that signed up
// through Google (POST /profile/password).
func (s *Server) SetPasswordHandler() http.HandlerFunc {
	tmpl := MustParsePage("profile.html")
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.browserSession(w, r)
		if err != nil {
			s.sessionError(w, err)
			return
		}
		if !s.requireAuthenticated(w, r, sess) {
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		if !sess.ConsumeFormToken(r.FormValue("form_token")) {
			http.Redirect(w, r, RouteProfile, http.StatusSeeOther)
			return
		}

		password := r.FormValue("password")
		confirm := r.FormValue("confirm_password")

		renderError := func(msg string) {
			data := s.newPageData(sess, "profile")
			data.FormToken = issueFormToken(sess)
			data.Error = msg
			data.Data = profileData(sess.Store.User())
			s.renderPage(w, tmpl, data)
		}

		if msg := validateNewPassword(password, confirm); msg != "" {
			renderError(msg)
			return
		}

		if err := sess.Gateway.SetLocalPassword(r.Context(), password, confirm); err != nil {
			if s.handleExpiredSession(w, r, sess, err) {
				return
			}
			log.Debug().Err(err).Msg("setting local password rejected")
			renderError(err.Error())
			return
		}

		if err := sess.Store.RefreshUser(r.Context()); err != nil {
			log.Warn().Err(err).Msg("refreshing profile after password change")
		}
		sess.Store.AddToast(session.ToastSuccess, "Password set", "You can now sign in with your username and password")
		http.Redirect(w, r, RouteProfile, http.StatusSeeOther)
	}
}
