package gateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eternivity/account-portal/gateway"
	"github.com/eternivity/account-portal/ssotest"
)

func TestExpiredSessionIsRefreshedAndRetriedOnce(t *testing.T) {
	f := setupTestFixture(t)
	f.seedUser()

	_, err := f.client.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)

	f.sso.ExpireSessions()

	// The authenticated call hits a 401, refreshes once, then succeeds on
	// the single retry.
	require.NoError(t, f.client.SetLocalPassword(context.Background(), "newpassword1", "newpassword1"))
	require.Equal(t, 1, f.sso.RequestCount("/api/auth/refresh"))
	require.Equal(t, 2, f.sso.RequestCount("/api/auth/set-password"))
}

func TestFailedRefreshSurfacesSessionExpired(t *testing.T) {
	f := setupTestFixture(t)
	f.seedUser()

	_, err := f.client.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)

	f.sso.ExpireSessions()
	f.sso.SetFailRefresh(true)

	err = f.client.SetLocalPassword(context.Background(), "newpassword1", "newpassword1")
	require.ErrorIs(t, err, gateway.ErrSessionExpired)

	require.Equal(t, 1, f.sso.RequestCount("/api/auth/refresh"))
	require.Equal(t, 1, f.sso.RequestCount("/api/auth/set-password"), "no retry after a failed refresh")
}

func TestRefreshSessionReportsOutcome(t *testing.T) {
	f := setupTestFixture(t)
	f.seedUser()

	_, err := f.client.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)

	require.True(t, f.client.RefreshSession(context.Background()))

	f.sso.SetFailRefresh(true)
	require.False(t, f.client.RefreshSession(context.Background()))
}

func TestConcurrentRefreshesShareOneRequest(t *testing.T) {
	var refreshCalls atomic.Int32
	release := make(chan struct{})
	firstArrived := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		if refreshCalls.Add(1) == 1 {
			close(firstArrived)
		}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := gateway.New(srv.URL)
	require.NoError(t, err)

	const callers = 8
	results := make([]bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = client.RefreshSession(context.Background())
		}(i)
	}

	// Hold the in-flight request open long enough for every caller to
	// queue behind it, then let it finish.
	<-firstArrived
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), refreshCalls.Load(), "overlapping refreshes must share one request")
	for i, ok := range results {
		require.True(t, ok, "caller %d should observe the shared success", i)
	}
}

func TestSequentialRefreshesDoNotShare(t *testing.T) {
	sso := ssotest.New()
	t.Cleanup(sso.Close)
	sso.Seed(ssotest.Account{Username: testUsername, Email: testEmail, Password: testPassword})

	client, err := gateway.New(sso.URL())
	require.NoError(t, err)
	_, err = client.Login(context.Background(), testUsername, testPassword)
	require.NoError(t, err)

	require.True(t, client.RefreshSession(context.Background()))
	require.True(t, client.RefreshSession(context.Background()))
	require.Equal(t, 2, sso.RequestCount("/api/auth/refresh"))
}
