package runtimes

import "time"

// ExpirationStrategy decides when a Runtime becomes eligible for eviction.
// Expiration is cooperative: a Runtime may survive slightly past its nominal
// expiry if it is only checked lazily on the next access.
type ExpirationStrategy interface {
	Expired(lastActivity, now time.Time) bool
}

// Inactivity evicts a Runtime that has not been touched for the configured
// duration.
type Inactivity struct {
	After time.Duration
}

// Expired reports whether the Runtime has been inactive for longer than After.
func (i Inactivity) Expired(lastActivity, now time.Time) bool {
	return now.Sub(lastActivity) > i.After
}

// Explicit never evicts by time. Runtimes live until handler code closes them.
type Explicit struct{}

// Expired always returns false.
func (Explicit) Expired(time.Time, time.Time) bool {
	return false
}
