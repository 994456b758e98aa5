package ratelimit

import "time"

// LimitConfig is one limit: at most Max requests per Window.
type LimitConfig struct {
	Window time.Duration
	Max    int64
}

// Policy maps scopes to the limits applied to them. A scope without limits
// is unrestricted.
type Policy struct {
	Limits map[Scope][]LimitConfig
}

// DefaultPolicy limits event submissions to ingestPerHour per client and
// leaves queries and the global scope unrestricted. A non-positive value
// disables limiting.
func DefaultPolicy(ingestPerHour int64) *Policy {
	p := &Policy{Limits: map[Scope][]LimitConfig{}}

	if ingestPerHour > 0 {
		p.Limits[ScopeIngest] = []LimitConfig{{Window: time.Hour, Max: ingestPerHour}}
	}

	return p
}
