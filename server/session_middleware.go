package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/eternivity/account-portal/server/browsersession"
)

// browserSession resolves (or creates) the calling browser's state
// bundle. A newly seen browser gets a fresh store, which probes the SSO
// once, the portal-side analogue of the SPA's startup session check.
func (s *Server) browserSession(w http.ResponseWriter, r *http.Request) (*browsersession.Session, error) {
	if cookie, err := r.Cookie(s.config.GetSessionCookieName()); err == nil && cookie.Value != "" {
		if sess, err := s.sessions.Get(cookie.Value); err == nil {
			return sess, nil
		}
		// Stale cookie: fall through and mint a new session.
	}

	store, gw, err := s.newStore()
	if err != nil {
		return nil, err
	}
	sess := &browsersession.Session{
		ID:        uuid.NewString(),
		Store:     store,
		Gateway:   gw,
		CreatedAt: time.Now(),
		LastSeen:  time.Now(),
	}
	if err := s.sessions.Upsert(sess.ID, sess); err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetSessionCookieName(),
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(s.config.GetSessionMaxAge().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.env != "DEV",
	})

	store.Probe(r.Context(), s.arrivedFromSSO(r))
	return sess, nil
}

// arrivedFromSSO detects an inbound redirect from the SSO: either the
// success marker parameter or a referrer on the SSO host.
func (s *Server) arrivedFromSSO(r *http.Request) bool {
	if r.URL.Query().Has(s.config.GetAuthSuccessParam()) {
		return true
	}
	if ref := r.Referer(); ref != "" {
		if u, err := url.Parse(ref); err == nil {
			return strings.EqualFold(u.Hostname(), s.config.GetSSOReferrerHost())
		}
	}
	return false
}

// consumeAuthMarker handles the post-SSO arrival on an existing session:
// re-probe so the snapshot reflects the new cookie, fire the welcome
// sequence once, then strip the marker from the visible URL with a
// redirect so reloads and history entries never replay it. Returns true
// when it wrote the redirect.
func (s *Server) consumeAuthMarker(w http.ResponseWriter, r *http.Request, sess *browsersession.Session) bool {
	marker := s.config.GetAuthSuccessParam()
	q := r.URL.Query()
	if !q.Has(marker) {
		return false
	}
	sess.Store.Probe(r.Context(), true)

	q.Del(marker)
	clean := *r.URL
	clean.RawQuery = q.Encode()
	http.Redirect(w, r, clean.RequestURI(), http.StatusSeeOther)
	return true
}

// sessionError is the last-resort response when the browser session
// bundle itself cannot be built.
func (s *Server) sessionError(w http.ResponseWriter, err error) {
	log.Err(err).Msg("failed to establish browser session")
	http.Error(w, "Service temporarily unavailable", http.StatusInternalServerError)
}
