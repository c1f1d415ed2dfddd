package session

import (
	"time"

	"github.com/google/uuid"
)

// ToastKind is the severity of a transient notification.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastInfo    ToastKind = "info"
	ToastError   ToastKind = "error"
)

// DefaultToastDuration is how long a toast stays visible unless the toast
// declares its own duration.
const DefaultToastDuration = 5 * time.Second

// Toast is one transient UI message. Toasts are appended in call order,
// expire independently, and may be dismissed early by ID.
type Toast struct {
	ID        string
	Kind      ToastKind
	Title     string
	Message   string
	Duration  time.Duration
	CreatedAt time.Time
}

// ExpiresAt returns the instant after which the toast no longer renders.
func (t Toast) ExpiresAt() time.Time {
	return t.CreatedAt.Add(t.Duration)
}

func newToast(kind ToastKind, title, message string, now time.Time) Toast {
	return Toast{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     title,
		Message:   message,
		Duration:  DefaultToastDuration,
		CreatedAt: now,
	}
}

// AddToast appends a toast to the queue and returns its ID.
func (s *Store) AddToast(kind ToastKind, title, message string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := newToast(kind, title, message, s.now())
	s.toasts = append(s.toasts, t)
	return t.ID
}

// RemoveToast dismisses a toast early. Removing an ID that no longer
// exists is a no-op, not an error.
func (s *Store) RemoveToast(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.toasts[:0]
	for _, t := range s.toasts {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.toasts = kept
}

// ActiveToasts returns the not-yet-expired toasts in insertion order and
// prunes the expired ones.
func (s *Store) ActiveToasts() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	kept := s.toasts[:0]
	for _, t := range s.toasts {
		if t.ExpiresAt().After(now) {
			kept = append(kept, t)
		}
	}
	s.toasts = kept
	out := make([]Toast, len(kept))
	copy(out, kept)
	return out
}
