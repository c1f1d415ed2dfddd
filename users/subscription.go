package users

import (
	"encoding/json"
	"strings"
)

// SubscriptionKind tags the two shapes a per-service subscription blob can
// take. Backend services do not share a schema, and at least one returns a
// bare string, so a fixed struct cannot be trusted.
type SubscriptionKind int

const (
	// SubscriptionStructured is the common {plan, status, expiry} shape.
	SubscriptionStructured SubscriptionKind = iota
	// SubscriptionRaw is anything else, preserved verbatim.
	SubscriptionRaw
)

// Subscription is the tolerant view of one service's subscription detail.
type Subscription struct {
	Kind   SubscriptionKind
	Plan   string
	Status string
	Expiry string
	Raw    string
}

// structuredSubscription matches the fields the structured shape may carry.
// Unknown extra fields are ignored.
type structuredSubscription struct {
	Plan   string `json:"plan"`
	Status string `json:"status"`
	Expiry string `json:"expiry"`
}

// ParseSubscription never fails: malformed or unexpected payloads degrade
// to a raw subscription instead of an error.
func ParseSubscription(raw json.RawMessage) Subscription {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return Subscription{Kind: SubscriptionRaw}
	}

	// A bare JSON string is a raw subscription with the quotes removed.
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return Subscription{Kind: SubscriptionRaw, Raw: s}
		}
		return Subscription{Kind: SubscriptionRaw, Raw: trimmed}
	}

	if trimmed[0] == '{' {
		var s structuredSubscription
		if err := json.Unmarshal(raw, &s); err == nil && (s.Plan != "" || s.Status != "" || s.Expiry != "") {
			return Subscription{
				Kind:   SubscriptionStructured,
				Plan:   s.Plan,
				Status: s.Status,
				Expiry: s.Expiry,
			}
		}
	}

	return Subscription{Kind: SubscriptionRaw, Raw: trimmed}
}

// Label returns a short human-readable summary for display.
func (s Subscription) Label() string {
	if s.Kind == SubscriptionStructured {
		parts := make([]string, 0, 3)
		if s.Plan != "" {
			parts = append(parts, s.Plan)
		}
		if s.Status != "" {
			parts = append(parts, s.Status)
		}
		if s.Expiry != "" {
			parts = append(parts, "expires "+s.Expiry)
		}
		return strings.Join(parts, " · ")
	}
	if s.Raw == "" {
		return "subscribed"
	}
	return s.Raw
}
