package browsersession

import (
	"context"
	"sync"
	"time"

	"github.com/eternivity/account-portal/gateway"
	"github.com/eternivity/account-portal/session"
)

// AccountGateway is the slice of the SSO client the account pages drive
// directly, outside the session store's lifecycle operations. The
// gateway shares the browser's cookie jar with the store, so every call
// here rides the same SSO session. *gateway.Client satisfies it.
type AccountGateway interface {
	VerifyMFAChallenge(ctx context.Context, challengeToken, code string) error
	BeginMFAEnrollment(ctx context.Context) (*gateway.MFAEnrollment, error)
	ConfirmMFAEnrollment(ctx context.Context, secret, code string) error
	DisableMFA(ctx context.Context, code string) error
	SetLocalPassword(ctx context.Context, password, confirm string) error
	RequestPasswordResetEmail(ctx context.Context, email string) error
	ResetPasswordWithToken(ctx context.Context, token, newPassword string) error
	HostedResetURL(returnTo string) string
}

// Session binds one browser to its state bundle: the session store, the
// SSO gateway carrying that browser's cookie jar, plus the one-shot form
// token guarding against double submits.
type Session struct {
	ID        string
	Store     *session.Store
	Gateway   AccountGateway
	CreatedAt time.Time
	LastSeen  time.Time

	mu        sync.Mutex
	formToken string
}

// SetFormToken arms the double-submit guard with a fresh token.
func (s *Session) SetFormToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formToken = token
}

// ConsumeFormToken burns the token if it matches. A second submit of the
// same form fails the check and must not re-run the operation.
func (s *Session) ConsumeFormToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" || token != s.formToken {
		return false
	}
	s.formToken = ""
	return true
}

type Repo interface {
	Upsert(id string, sess *Session) error
	Get(id string) (*Session, error)
	Delete(id string) error
}
