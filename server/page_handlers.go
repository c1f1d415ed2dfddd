package server

import "net/http"

// HomeHandler renders the landing page. It is also the usual arrival
// point for cross-domain redirects back from the SSO, so the auth marker
// is consumed here before anything renders.
func (s *Server) HomeHandler() http.HandlerFunc {
	tmpl := MustParsePage("home.html")
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != RouteHome {
			http.NotFound(w, r)
			return
		}
		sess, err := s.browserSession(w, r)
		if err != nil {
			s.sessionError(w, err)
			return
		}
		if s.consumeAuthMarker(w, r, sess) {
			return
		}
		s.renderPage(w, tmpl, s.newPageData(sess, "home"))
	}
}

// StaticPageHandler renders one informational page (about, contact,
// privacy policy, safe usage).
func (s *Server) StaticPageHandler(templateName, active string) http.HandlerFunc {
	tmpl := MustParsePage(templateName)
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.browserSession(w, r)
		if err != nil {
			s.sessionError(w, err)
			return
		}
		if s.consumeAuthMarker(w, r, sess) {
			return
		}
		s.renderPage(w, tmpl, s.newPageData(sess, active))
	}
}
