package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"
)

// refreshGroup de-duplicates session refreshes: when a refresh is already
// in flight, later callers wait for that outcome instead of issuing their
// own request. At most one refresh request is in transit at any time.
type refreshGroup struct {
	mu       sync.Mutex
	inflight *refreshCall
}

type refreshCall struct {
	done chan struct{}
	ok   bool
}

func newRefreshGroup() *refreshGroup {
	return &refreshGroup{}
}

func (g *refreshGroup) do(fn func() bool) bool {
	g.mu.Lock()
	if call := g.inflight; call != nil {
		g.mu.Unlock()
		<-call.done
		return call.ok
	}
	call := &refreshCall{done: make(chan struct{})}
	g.inflight = call
	g.mu.Unlock()

	call.ok = fn()
	close(call.done)

	g.mu.Lock()
	g.inflight = nil
	g.mu.Unlock()
	return call.ok
}

// RefreshSession asks the SSO to rotate the session cookie. It never
// returns an error: network failures and rejections both read as false.
// Concurrent callers share a single request and its outcome.
func (c *Client) RefreshSession(ctx context.Context) bool {
	return c.refresh.do(func() bool {
		err := c.call(ctx, "refresh", http.MethodPost, "/api/auth/refresh", nil, nil)
		if err != nil {
			log.Debug().Err(err).Msg("session refresh failed")
			return false
		}
		return true
	})
}

// doAuthenticated runs call and applies the expired-session policy: a 401
// triggers exactly one refresh attempt; on success the call is retried
// exactly once, otherwise ErrSessionExpired surfaces. This bounds retry
// amplification to one extra round trip per request.
func (c *Client) doAuthenticated(ctx context.Context, call func(context.Context) error) error {
	err := call(ctx)
	if !isUnauthorized(err) {
		return err
	}
	if !c.RefreshSession(ctx) {
		return ErrSessionExpired
	}
	return call(ctx)
}

func isUnauthorized(err error) bool {
	if errors.Is(err, ErrNotAuthenticated) {
		return true
	}
	se, ok := IsServerMessage(err)
	return ok && se.StatusCode == http.StatusUnauthorized
}
