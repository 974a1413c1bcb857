package subscriptions

import "time"

// Record is the single persisted row per GitHub account. It is created by the first
// login (credential only) or the first completed checkout (billing fields) and is never
// deleted; cancellation clears SubscribedAt.
type Record struct {
	Login        string
	Email        string
	SubscribedAt *int64 // epoch milliseconds, nil when inactive
	CustomerID   *string
	AccessToken  *string
	LastUpdated  *string // ISO-8601, set by the dashboard refresh
}

// IsActive reports whether the record carries a live subscription.
func (r *Record) IsActive() bool {
	return r != nil && r.SubscribedAt != nil && *r.SubscribedAt > 0
}

// Credential is a refreshable account: active subscription and a stored access token.
type Credential struct {
	Login       string
	AccessToken string
}

// Timestamp formats t the way LastUpdated is stored.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
