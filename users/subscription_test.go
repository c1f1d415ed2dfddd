package users_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eternivity/account-portal/users"
)

func TestParseSubscription(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want users.Subscription
	}{
		{
			name: "structured with all fields",
			raw:  `{"plan":"pro","status":"active","expiry":"2027-01-01"}`,
			want: users.Subscription{Kind: users.SubscriptionStructured, Plan: "pro", Status: "active", Expiry: "2027-01-01"},
		},
		{
			name: "structured with plan only",
			raw:  `{"plan":"free"}`,
			want: users.Subscription{Kind: users.SubscriptionStructured, Plan: "free"},
		},
		{
			name: "structured ignores unknown fields",
			raw:  `{"plan":"pro","seats":12}`,
			want: users.Subscription{Kind: users.SubscriptionStructured, Plan: "pro"},
		},
		{
			name: "bare string",
			raw:  `"lifetime"`,
			want: users.Subscription{Kind: users.SubscriptionRaw, Raw: "lifetime"},
		},
		{
			name: "object without known fields stays raw",
			raw:  `{"tier":3}`,
			want: users.Subscription{Kind: users.SubscriptionRaw, Raw: `{"tier":3}`},
		},
		{
			name: "malformed json stays raw",
			raw:  `{plan: pro`,
			want: users.Subscription{Kind: users.SubscriptionRaw, Raw: `{plan: pro`},
		},
		{
			name: "null",
			raw:  `null`,
			want: users.Subscription{Kind: users.SubscriptionRaw},
		},
		{
			name: "empty",
			raw:  ``,
			want: users.Subscription{Kind: users.SubscriptionRaw},
		},
		{
			name: "number stays raw",
			raw:  `42`,
			want: users.Subscription{Kind: users.SubscriptionRaw, Raw: "42"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := users.ParseSubscription(json.RawMessage(tt.raw))
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSubscriptionLabel(t *testing.T) {
	structured := users.Subscription{Kind: users.SubscriptionStructured, Plan: "pro", Status: "active", Expiry: "2027-01-01"}
	require.Equal(t, "pro · active · expires 2027-01-01", structured.Label())

	planOnly := users.Subscription{Kind: users.SubscriptionStructured, Plan: "free"}
	require.Equal(t, "free", planOnly.Label())

	raw := users.Subscription{Kind: users.SubscriptionRaw, Raw: "lifetime"}
	require.Equal(t, "lifetime", raw.Label())

	empty := users.Subscription{Kind: users.SubscriptionRaw}
	require.Equal(t, "subscribed", empty.Label())
}
