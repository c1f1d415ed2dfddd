package server

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/eternivity/account-portal/server/browsersession"
	"github.com/eternivity/account-portal/session"
)

// LoginPageData is the page-specific model for the login form.
type LoginPageData struct {
	Identifier string
}

// redirectIfAuthenticated sends signed-in visitors of login, register and
// the OTP page to their profile instead of re-rendering the form.
func redirectIfAuthenticated(w http.ResponseWriter, r *http.Request, sess *browsersession.Session) bool {
	if sess.Store.State() == session.StateAuthenticated {
		http.Redirect(w, r, RouteProfile, http.StatusSeeOther)
		return true
	}
	return false
}

// LoginPageHandler displays the sign-in form (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	tmpl := MustParsePage("login.html")
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.browserSession(w, r)
		if err != nil {
			s.sessionError(w, err)
			return
		}
		if s.consumeAuthMarker(w, r, sess) {
			return
		}
		if redirectIfAuthenticated(w, r, sess) {
			return
		}
		// Walking back to the login form abandons any parked MFA challenge.
		sess.Store.AbandonChallenge()

		data := s.newPageData(sess, "login")
		data.FormToken = issueFormToken(sess)
		data.Data = LoginPageData{}
		s.renderPage(w, tmpl, data)
	}
}

// LoginSubmissionHandler processes the sign-in form (POST /auth/login)
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
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
		if !sess.ConsumeFormToken(r.FormValue("form_token")) {
			// Double submit or stale form: show the form again without
			// re-running the operation.
			http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
			return
		}

		identifier := strings.TrimSpace(r.FormValue("identifier"))
		password := r.FormValue("password")

		renderError := func(msg string) {
			data := s.newPageData(sess, "login")
			data.FormToken = issueFormToken(sess)
			data.Error = msg
			data.Data = LoginPageData{Identifier: identifier}
			s.renderPage(w, tmpl, data)
		}

		if identifier == "" || password == "" {
			renderError("Username and password are required")
			return
		}

		challenge, err := sess.Store.Login(r.Context(), identifier, password)
		if err != nil {
			log.Debug().Err(err).Msg("login rejected")
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

// RegisterPageData is the page-specific model for the sign-up form.
type RegisterPageData struct {
	Username string
	Email    string
}

// RegisterPageHandler displays the sign-up form (GET /register)
func (s *Server) RegisterPageHandler() http.HandlerFunc {
	tmpl := MustParsePage("register.html")
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.browserSession(w, r)
		if err != nil {
			s.sessionError(w, err)
			return
		}
		if s.consumeAuthMarker(w, r, sess) {
			return
		}
		if redirectIfAuthenticated(w, r, sess) {
			return
		}
		data := s.newPageData(sess, "register")
		data.FormToken = issueFormToken(sess)
		data.Data = RegisterPageData{}
		s.renderPage(w, tmpl, data)
	}
}

// RegisterSubmissionHandler processes the sign-up form (POST /auth/register)
func (s *Server) RegisterSubmissionHandler() http.HandlerFunc {
	tmpl := MustParsePage("register.html")
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
		if !sess.ConsumeFormToken(r.FormValue("form_token")) {
			http.Redirect(w, r, RouteRegister, http.StatusSeeOther)
			return
		}

		username := strings.TrimSpace(r.FormValue("username"))
		email := strings.TrimSpace(r.FormValue("email"))
		password := r.FormValue("password")
		confirm := r.FormValue("confirm_password")

		renderError := func(msg string) {
			data := s.newPageData(sess, "register")
			data.FormToken = issueFormToken(sess)
			data.Error = msg
			data.Data = RegisterPageData{Username: username, Email: email}
			s.renderPage(w, tmpl, data)
		}

		switch {
		case username == "":
			renderError("Username is required")
			return
		case !validEmail(email):
			renderError("Please enter a valid email address")
			return
		}
		if msg := validateNewPassword(password, confirm); msg != "" {
			renderError(msg)
			return
		}

		if err := sess.Store.Register(r.Context(), username, email, password); err != nil {
			log.Debug().Err(err).Msg("registration rejected")
			renderError(err.Error())
			return
		}
		http.Redirect(w, r, RouteProfile, http.StatusSeeOther)
	}
}

// LogoutHandler ends the session (POST /auth/logout). The SSO call is
// best-effort; locally the user is always signed out.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.browserSession(w, r)
		if err != nil {
			s.sessionError(w, err)
			return
		}
		sess.Store.Logout(r.Context())
		http.Redirect(w, r, RouteHome, http.StatusSeeOther)
	}
}
