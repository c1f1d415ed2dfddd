package server

import (
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/eternivity/account-portal/server/browsersession"
	"github.com/eternivity/account-portal/session"
	"github.com/eternivity/account-portal/users"
)

const contentTypeHTML = "text/html; charset=utf-8"

// PageData is the template model shared by every page. Page-specific
// fields ride in Data.
type PageData struct {
	AppName       string
	Active        string
	Authenticated bool
	User          *users.User
	Toasts        []session.Toast
	Celebrate     bool
	FormToken     string
	GoogleEnabled bool
	Error         string
	Data          any
}

// newPageData assembles the shared model from the browser session: the
// current snapshot, the live toasts, and the one-shot celebration flag.
func (s *Server) newPageData(sess *browsersession.Session, active string) PageData {
	store := sess.Store
	return PageData{
		AppName:       s.config.GetAppName(),
		Active:        active,
		Authenticated: store.State() == session.StateAuthenticated,
		User:          store.User(),
		Toasts:        store.ActiveToasts(),
		Celebrate:     store.TakeCelebration(),
		GoogleEnabled: s.google != nil,
	}
}

// issueFormToken arms the double-submit guard and returns the token for
// the form being rendered.
func issueFormToken(sess *browsersession.Session) string {
	token := newFormToken()
	sess.SetFormToken(token)
	return token
}

func (s *Server) renderPage(w http.ResponseWriter, tmpl *template.Template, data PageData) {
	w.Header().Set("Content-Type", contentTypeHTML)
	if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
		log.Err(err).Str("template", tmpl.Name()).Msg("Failed to render page")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}
