package subscriptions

import (
	"context"
	"time"
)

// Repo is the structured tier. Every mutation is an atomic upsert or update keyed by
// login, so concurrent writers from login, webhooks and refreshes never tear a row.
type Repo interface {
	// UpsertCredential stores the access token, creating the row if needed. Billing
	// fields of an existing row are left untouched.
	UpsertCredential(ctx context.Context, login, accessToken string) error
	// ActivateSubscription sets subscribed-at to now along with email and customer id.
	// The stored credential is left untouched.
	ActivateSubscription(ctx context.Context, login, email, customerID string) error
	// DeactivateByEmail clears subscribed-at on every row with a matching email.
	DeactivateByEmail(ctx context.Context, email string) error
	IsActive(ctx context.Context, login string) (bool, error)
	GetCustomerID(ctx context.Context, login string) (*string, error)
	// Get returns the row for login or errors.ErrNotFound.
	Get(ctx context.Context, login string) (*Record, error)
	// ListRefreshable returns active rows that have a stored credential.
	ListRefreshable(ctx context.Context) ([]Credential, error)
	// SetLastUpdated records a refresh timestamp. A missing row is not created.
	SetLastUpdated(ctx context.Context, login, timestamp string) error
}

type Option func(*Options)

// Options are shared by Repo implementations.
type Options struct {
	Now func() time.Time
}

// WithNowTime overrides the clock used for subscribed-at.
func WithNowTime(now func() time.Time) Option {
	return func(o *Options) {
		o.Now = now
	}
}

func ApplyOptions(opts ...Option) Options {
	o := Options{Now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
