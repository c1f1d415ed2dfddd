// Package session owns "who is logged in right now" for one browser
// session. The Store is the single authority observed by every page: it
// tracks the authenticated-user snapshot, the pending MFA challenge, the
// toast queue, and the one-shot welcome celebration. All mutation goes
// through the remote SSO via the gateway; the Store never invents state.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eternivity/account-portal/gateway"
	"github.com/eternivity/account-portal/users"
)

// State is the session's position in the auth lifecycle. Observers never
// see a partial snapshot: transitions happen atomically under the store
// lock, and a loading condition is StateUnknown, never a stale user.
type State int

const (
	// StateUnknown is the initial state before the first session probe.
	StateUnknown State = iota
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// CelebrationDuration is how long the welcome animation may run before it
// self-clears, whether or not anything consumed it.
const CelebrationDuration = 3 * time.Second

// Challenge is the ephemeral MFA hand-off between "login said
// MFA_REQUIRED" and "OTP verified or abandoned". It lives only inside the
// store, is consumed exactly once, and never reaches a URL or durable
// storage.
type Challenge struct {
	Token      string
	Identifier string
}

// Gateway is the slice of the SSO client the store drives. *gateway.Client
// satisfies it; tests substitute fakes.
type Gateway interface {
	Login(ctx context.Context, identifier, password string) (gateway.LoginResult, error)
	RegisterAccount(ctx context.Context, username, email, password string) error
	LoginWithGoogleCredential(ctx context.Context, credential string) (gateway.LoginResult, error)
	FetchCurrentUser(ctx context.Context) (*users.User, error)
	Logout(ctx context.Context)
}

// Store is the per-browser-session state container. Safe for concurrent
// use; every read and transition holds the one mutex, so observers see
// before-state until an operation resolves and after-state atomically
// after.
type Store struct {
	gw Gateway

	mu               sync.Mutex
	state            State
	user             *users.User
	toasts           []Toast
	pending          *Challenge
	mfaFlowDone      bool
	welcomeShown     bool
	celebrateUntil   time.Time
	celebrationTaken bool
	subs             map[int]chan struct{}
	nextSub          int

	now func() time.Time
}

// NewStore creates a store in StateUnknown. Probe drives the first
// transition.
func NewStore(gw Gateway) *Store {
	return &Store{
		gw:   gw,
		subs: make(map[int]chan struct{}),
		now:  time.Now,
	}
}

// State returns the current lifecycle state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the current snapshot, or nil unless authenticated.
func (s *Store) User() *users.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Subscribe returns a channel that ticks on every state transition and a
// cancel func. Ticks are best-effort: a slow subscriber coalesces updates
// rather than blocking a transition.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// notifyLocked runs under s.mu.
func (s *Store) notifyLocked() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Probe performs the startup session check. Expected absence (no cookie,
// expired session) lands in StateAnonymous silently; it is a normal
// condition, not an error. When the navigation arrived from the SSO with
// the success marker and no welcome has been shown this session, the
// welcome effect fires exactly once.
func (s *Store) Probe(ctx context.Context, arrivedFromSSO bool) {
	u, err := s.gw.FetchCurrentUser(ctx)
	if err != nil {
		if !errors.Is(err, gateway.ErrNotAuthenticated) {
			log.Debug().Err(err).Msg("session probe failed")
		}
		s.mu.Lock()
		s.state = StateAnonymous
		s.user = nil
		s.notifyLocked()
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAuthenticated
	s.user = u
	if arrivedFromSSO && !s.welcomeShown {
		s.welcomeShown = true
		s.applyEffect(loginEffect(u.Username))
	}
	s.notifyLocked()
}

// Login runs the credential exchange. When the SSO demands a second
// factor, the challenge is parked for the OTP step and returned without
// touching session state; the caller routes to the OTP page. On plain
// success the full profile is fetched and the welcome effects fire.
func (s *Store) Login(ctx context.Context, identifier, password string) (*Challenge, error) {
	res, err := s.gw.Login(ctx, identifier, password)
	if err != nil {
		return nil, err
	}
	if res.Status == gateway.StatusMFARequired {
		ch := &Challenge{Token: res.ChallengeToken, Identifier: identifier}
		s.mu.Lock()
		s.pending = ch
		s.mfaFlowDone = false
		s.mu.Unlock()
		return ch, nil
	}
	return nil, s.becomeAuthenticated(ctx, loginEffect)
}

// Register creates the account and enters the authenticated state with
// the registration welcome copy.
func (s *Store) Register(ctx context.Context, username, email, password string) error {
	if err := s.gw.RegisterAccount(ctx, username, email, password); err != nil {
		return err
	}
	return s.becomeAuthenticated(ctx, registerEffect)
}

// LoginWithGoogle exchanges a Google credential. Same MFA hand-off shape
// as Login.
func (s *Store) LoginWithGoogle(ctx context.Context, credential string) (*Challenge, error) {
	res, err := s.gw.LoginWithGoogleCredential(ctx, credential)
	if err != nil {
		return nil, err
	}
	if res.Status == gateway.StatusMFARequired {
		ch := &Challenge{Token: res.ChallengeToken, Identifier: "Google account"}
		s.mu.Lock()
		s.pending = ch
		s.mfaFlowDone = false
		s.mu.Unlock()
		return ch, nil
	}
	return nil, s.becomeAuthenticated(ctx, googleLoginEffect)
}

// CompleteMFALogin finishes an MFA flow after the OTP step established the
// session cookie server-side. Safe against double invocation: the second
// call of one flow is a no-op, so a re-render can never duplicate the
// welcome toast.
func (s *Store) CompleteMFALogin(ctx context.Context) error {
	s.mu.Lock()
	if s.mfaFlowDone {
		s.mu.Unlock()
		return nil
	}
	s.mfaFlowDone = true
	s.mu.Unlock()
	return s.becomeAuthenticated(ctx, loginEffect)
}

// becomeAuthenticated fetches the profile and performs the authenticated
// transition plus the operation's declared effects in one atomic step.
func (s *Store) becomeAuthenticated(ctx context.Context, effect func(username string) Effect) error {
	u, err := s.gw.FetchCurrentUser(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAuthenticated
	s.user = u
	s.pending = nil
	s.welcomeShown = true
	s.applyEffect(effect(u.Username))
	s.notifyLocked()
	return nil
}

// RefreshUser refetches the profile snapshot after an account mutation
// (MFA toggled, password set) without firing any welcome effects. An
// expired session drops to StateAnonymous.
func (s *Store) RefreshUser(ctx context.Context) error {
	u, err := s.gw.FetchCurrentUser(ctx)
	if err != nil {
		if errors.Is(err, gateway.ErrNotAuthenticated) || errors.Is(err, gateway.ErrSessionExpired) {
			s.mu.Lock()
			s.state = StateAnonymous
			s.user = nil
			s.notifyLocked()
			s.mu.Unlock()
		}
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAuthenticated
	s.user = u
	s.notifyLocked()
	return nil
}

// Logout clears the session. The goodbye message captures the username
// before state is dropped; the SSO call is best-effort and its failure is
// never surfaced, so the user is never stuck logged-in in the UI.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	var username string
	if s.user != nil {
		username = s.user.Username
	}
	s.mu.Unlock()

	s.gw.Logout(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAnonymous
	s.user = nil
	s.pending = nil
	s.applyEffect(logoutEffect(username))
	s.notifyLocked()
}

// PendingChallenge returns the parked MFA challenge without consuming it.
// The OTP page uses this to decide whether it may render at all.
func (s *Store) PendingChallenge() *Challenge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// TakePendingChallenge consumes the parked challenge. A second call of the
// same flow returns nil, which is what makes a replayed navigation
// harmless.
func (s *Store) TakePendingChallenge() *Challenge {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.pending
	s.pending = nil
	return ch
}

// AbandonChallenge drops a parked challenge, e.g. when the user walks back
// to the login page.
func (s *Store) AbandonChallenge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
}

// Celebrating reports whether the welcome animation window is open.
func (s *Store) Celebrating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.celebrationTaken && s.now().Before(s.celebrateUntil)
}

// TakeCelebration consumes the one-shot animation trigger. It reads true
// at most once per transition and self-clears after CelebrationDuration
// even when never consumed.
func (s *Store) TakeCelebration() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.celebrationTaken || !s.now().Before(s.celebrateUntil) {
		return false
	}
	s.celebrationTaken = true
	return true
}
