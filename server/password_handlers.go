package server

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/eternivity/account-portal/session"
)

// ForgotPasswordPageData is the page-specific model for the reset-request
// form and its confirmation view.
type ForgotPasswordPageData struct {
	Email         string
	Sent          bool
	HostedFlowURL string
}

// ForgotPasswordPageHandler displays the reset-request form (GET
// /forgot-password).
func (s *Server) ForgotPasswordPageHandler() http.HandlerFunc {
	tmpl := MustParsePage("forgot_password.html")
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.browserSession(w, r)
		if err != nil {
			s.sessionError(w, err)
			return
		}
		data := s.newPageData(sess, "login")
		data.FormToken = issueFormToken(sess)
		data.Data = ForgotPasswordPageData{
			HostedFlowURL: sess.Gateway.HostedResetURL(s.config.GetBaseURL() + RouteLogin),
		}
		s.renderPage(w, tmpl, data)
	}
}

// ForgotPasswordSubmissionHandler asks the SSO to send a reset email
// (POST /auth/forgot-password). The confirmation view renders on success
// regardless of whether the address is known; existence of accounts is
// the SSO's secret to keep.
func (s *Server) ForgotPasswordSubmissionHandler() http.HandlerFunc {
	tmpl := MustParsePage("forgot_password.html")
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.browserSession(w, r)
		if err != nil {
			s.sessionError(w, err)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		if !sess.ConsumeFormToken(r.FormValue("form_token")) {
			http.Redirect(w, r, RouteForgotPassword, http.StatusSeeOther)
			return
		}

		email := strings.TrimSpace(r.FormValue("email"))
		hosted := sess.Gateway.HostedResetURL(s.config.GetBaseURL() + RouteLogin)

		render := func(errMsg string, sent bool) {
			data := s.newPageData(sess, "login")
			data.FormToken = issueFormToken(sess)
			data.Error = errMsg
			data.Data = ForgotPasswordPageData{Email: email, Sent: sent, HostedFlowURL: hosted}
			s.renderPage(w, tmpl, data)
		}

		if !validEmail(email) {
			render("Please enter a valid email address", false)
			return
		}
		if err := sess.Gateway.RequestPasswordResetEmail(r.Context(), email); err != nil {
			log.Debug().Err(err).Msg("password reset request failed")
			render(err.Error(), false)
			return
		}
		render("", true)
	}
}

// ResetPasswordPageData is the page-specific model for the new-password
// form reached from a reset email.
type ResetPasswordPageData struct {
	Token string
}

// ResetPasswordPageHandler displays the new-password form (GET
// /reset-password). Without a token in the link there is nothing to
// reset, so the visitor is sent to request one.
func (s *Server) ResetPasswordPageHandler() http.HandlerFunc {
	tmpl := MustParsePage("reset_password.html")
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.browserSession(w, r)
		if err != nil {
			s.sessionError(w, err)
			return
		}
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Redirect(w, r, RouteForgotPassword, http.StatusSeeOther)
			return
		}
		data := s.newPageData(sess, "login")
		data.FormToken = issueFormToken(sess)
		data.Data = ResetPasswordPageData{Token: token}
		s.renderPage(w, tmpl, data)
	}
}

// ResetPasswordSubmissionHandler sets the new password via the emailed
// token (POST /auth/reset-password) and sends the user to sign in.
func (s *Server) ResetPasswordSubmissionHandler() http.HandlerFunc {
	tmpl := MustParsePage("reset_password.html")
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.browserSession(w, r)
		if err != nil {
			s.sessionError(w, err)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		if !sess.ConsumeFormToken(r.FormValue("form_token")) {
			http.Redirect(w, r, RouteForgotPassword, http.StatusSeeOther)
			return
		}

		token := r.FormValue("token")
		if token == "" {
			http.Redirect(w, r, RouteForgotPassword, http.StatusSeeOther)
			return
		}

		renderError := func(msg string) {
			data := s.newPageData(sess, "login")
			data.FormToken = issueFormToken(sess)
			data.Error = msg
			data.Data = ResetPasswordPageData{Token: token}
			s.renderPage(w, tmpl, data)
		}

		if msg := validateNewPassword(r.FormValue("password"), r.FormValue("confirm_password")); msg != "" {
			renderError(msg)
			return
		}
		if err := sess.Gateway.ResetPasswordWithToken(r.Context(), token, r.FormValue("password")); err != nil {
			log.Debug().Err(err).Msg("password reset rejected")
			renderError(err.Error())
			return
		}

		sess.Store.AddToast(session.ToastSuccess, "Password updated", "Your password has been reset, please sign in")
		http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
	}
}
