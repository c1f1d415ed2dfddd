package server

import "net/http"

// ToastDismissHandler removes a toast by id (POST /toasts/dismiss).
// Unknown or already-expired ids are fine; dismissal never fails.
func (s *Server) ToastDismissHandler() http.HandlerFunc {
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
		sess.Store.RemoveToast(r.FormValue("id"))

		redirect := r.FormValue("return_to")
		if redirect == "" || redirect[0] != '/' {
			redirect = RouteHome
		}
		http.Redirect(w, r, redirect, http.StatusSeeOther)
	}
}
