package session

import "fmt"

// Effect is the enumerable set of side effects that follow a successful
// auth transition: at most one toast and an optional celebration burst.
// Keeping these declarative makes each transition's effects testable on
// their own.
type Effect struct {
	Toast     *toastSpec
	Celebrate bool
}

type toastSpec struct {
	Kind    ToastKind
	Title   string
	Message string
}

func loginEffect(username string) Effect {
	return Effect{
		Toast: &toastSpec{
			Kind:    ToastSuccess,
			Title:   fmt.Sprintf("Welcome back, %s!", username),
			Message: "You have successfully logged in",
		},
		Celebrate: true,
	}
}

func registerEffect(username string) Effect {
	return Effect{
		Toast: &toastSpec{
			Kind:    ToastSuccess,
			Title:   fmt.Sprintf("Welcome to Eternivity, %s!", username),
			Message: "Your account has been created successfully",
		},
		Celebrate: true,
	}
}

func googleLoginEffect(username string) Effect {
	return Effect{
		Toast: &toastSpec{
			Kind:    ToastSuccess,
			Title:   fmt.Sprintf("Welcome, %s!", username),
			Message: "Signed in with Google successfully",
		},
		Celebrate: true,
	}
}

func logoutEffect(username string) Effect {
	message := "You have been logged out"
	if username != "" {
		message = fmt.Sprintf("Goodbye, %s! See you soon", username)
	}
	return Effect{
		Toast: &toastSpec{
			Kind:    ToastInfo,
			Title:   "Logged out successfully",
			Message: message,
		},
	}
}

// applyEffect runs under s.mu.
func (s *Store) applyEffect(e Effect) {
	if e.Toast != nil {
		s.toasts = append(s.toasts, newToast(e.Toast.Kind, e.Toast.Title, e.Toast.Message, s.now()))
	}
	if e.Celebrate {
		s.celebrateUntil = s.now().Add(CelebrationDuration)
		s.celebrationTaken = false
	}
}
