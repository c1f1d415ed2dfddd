package server

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// VerifyOTPPageData is the page-specific model for the OTP entry form.
type VerifyOTPPageData struct {
	Identifier string
}

// otpDigitFields are the six single-digit inputs of the OTP form, in
// entry order.
var otpDigitFields = [...]string{"digit1", "digit2", "digit3", "digit4", "digit5", "digit6"}

// submittedOTPCode assembles the code from the six digit inputs, falling
// back to a single "code" field for clients without script support.
func submittedOTPCode(r *http.Request) string {
	var b strings.Builder
	for _, field := range otpDigitFields {
		b.WriteString(strings.TrimSpace(r.FormValue(field)))
	}
	if b.Len() > 0 {
		return b.String()
	}
	return strings.TrimSpace(r.FormValue("code"))
}

// VerifyOTPPageHandler displays the OTP entry form (GET /verify-otp). The
// page renders only while an MFA challenge is parked for this browser;
// direct navigation, a replayed history entry or a finished flow all land
// back on the login page.
func (s *Server) VerifyOTPPageHandler() http.HandlerFunc {
	tmpl := MustParsePage("verify_otp.html")
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.browserSession(w, r)
		if err != nil {
			s.sessionError(w, err)
			return
		}
		if redirectIfAuthenticated(w, r, sess) {
			return
		}
		challenge := sess.Store.PendingChallenge()
		if challenge == nil {
			http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
			return
		}
		data := s.newPageData(sess, "login")
		data.FormToken = issueFormToken(sess)
		data.Data = VerifyOTPPageData{Identifier: challenge.Identifier}
		s.renderPage(w, tmpl, data)
	}
}

// VerifyOTPSubmissionHandler checks the submitted code against the parked
// challenge (POST /auth/verify-otp). A wrong code keeps the challenge
// parked and re-renders the form with the digits cleared; success consumes
// the challenge and completes the login.
func (s *Server) VerifyOTPSubmissionHandler() http.HandlerFunc {
	tmpl := MustParsePage("verify_otp.html")
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.browserSession(w, r)
		if err != nil {
			s.sessionError(w, err)
			return
		}
		if redirectIfAuthenticated(w, r, sess) {
			return
		}
		challenge := sess.Store.PendingChallenge()
		if challenge == nil {
			http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		if !sess.ConsumeFormToken(r.FormValue("form_token")) {
			http.Redirect(w, r, RouteVerifyOTP, http.StatusSeeOther)
			return
		}

		renderError := func(msg string) {
			data := s.newPageData(sess, "login")
			data.FormToken = issueFormToken(sess)
			data.Error = msg
			data.Data = VerifyOTPPageData{Identifier: challenge.Identifier}
			s.renderPage(w, tmpl, data)
		}

		code := submittedOTPCode(r)
		if !validOTPCode(code) {
			renderError("Please enter the 6-digit code")
			return
		}

		if err := sess.Gateway.VerifyMFAChallenge(r.Context(), challenge.Token, code); err != nil {
			log.Debug().Err(err).Msg("otp verification rejected")
			renderError(err.Error())
			return
		}

		sess.Store.TakePendingChallenge()
		if err := sess.Store.CompleteMFALogin(r.Context()); err != nil {
			log.Err(err).Msg("completing mfa login")
			renderError("Something went wrong, please try signing in again")
			return
		}
		http.Redirect(w, r, RouteProfile, http.StatusSeeOther)
	}
}
