package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	apperrors "github.com/jrsteele09/repo-dashboard/internal/errors"
	"github.com/jrsteele09/repo-dashboard/subscriptions"
)

// Repo implements subscriptions.Repo. Each operation is a single statement, so the
// row lock taken by PostgreSQL serialises concurrent writers per login.
type Repo struct {
	db   *DB
	opts subscriptions.Options
}

var _ subscriptions.Repo = (*Repo)(nil)

func NewRepo(db *DB, opts ...subscriptions.Option) *Repo {
	return &Repo{db: db, opts: subscriptions.ApplyOptions(opts...)}
}

func (r *Repo) UpsertCredential(ctx context.Context, login, accessToken string) error {
	if login == "" {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "[UpsertCredential] login is required")
	}
	const q = `
INSERT INTO subscriptions (username, access_token)
VALUES ($1, $2)
ON CONFLICT (username) DO UPDATE SET access_token = EXCLUDED.access_token`
	_, err := r.db.Pool.Exec(ctx, q, login, accessToken)
	return apperrors.Wrapf(err, "upsert credential %q", login)
}

func (r *Repo) ActivateSubscription(ctx context.Context, login, email, customerID string) error {
	if login == "" {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "[ActivateSubscription] login is required")
	}
	var customer *string
	if customerID != "" {
		customer = &customerID
	}
	const q = `
INSERT INTO subscriptions (username, email, subscribed_at, stripe_customer_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (username) DO UPDATE SET
    email = EXCLUDED.email,
    subscribed_at = EXCLUDED.subscribed_at,
    stripe_customer_id = EXCLUDED.stripe_customer_id`
	_, err := r.db.Pool.Exec(ctx, q, login, email, r.opts.Now().UnixMilli(), customer)
	return apperrors.Wrapf(err, "activate subscription %q", login)
}

func (r *Repo) DeactivateByEmail(ctx context.Context, email string) error {
	if email == "" {
		return nil
	}
	const q = `UPDATE subscriptions SET subscribed_at = NULL WHERE email = $1`
	_, err := r.db.Pool.Exec(ctx, q, email)
	return apperrors.Wrapf(err, "deactivate by email")
}

func (r *Repo) IsActive(ctx context.Context, login string) (bool, error) {
	const q = `SELECT subscribed_at FROM subscriptions WHERE username = $1`
	var subscribedAt *int64
	if err := r.db.Pool.QueryRow(ctx, q, login).Scan(&subscribedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, apperrors.Wrapf(err, "is active %q", login)
	}
	return subscribedAt != nil && *subscribedAt > 0, nil
}

func (r *Repo) GetCustomerID(ctx context.Context, login string) (*string, error) {
	const q = `SELECT stripe_customer_id FROM subscriptions WHERE username = $1`
	var customerID *string
	if err := r.db.Pool.QueryRow(ctx, q, login).Scan(&customerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.Wrapf(err, "get customer id %q", login)
	}
	return customerID, nil
}

func (r *Repo) Get(ctx context.Context, login string) (*subscriptions.Record, error) {
	const q = `
SELECT username, email, subscribed_at, stripe_customer_id, access_token, last_updated
FROM subscriptions WHERE username = $1`
	var (
		rec   subscriptions.Record
		email *string
	)
	err := r.db.Pool.QueryRow(ctx, q, login).Scan(&rec.Login, &email, &rec.SubscribedAt, &rec.CustomerID, &rec.AccessToken, &rec.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrapf(apperrors.ErrNotFound, "subscription %q", login)
		}
		return nil, apperrors.Wrapf(err, "get subscription %q", login)
	}
	if email != nil {
		rec.Email = *email
	}
	return &rec, nil
}

func (r *Repo) ListRefreshable(ctx context.Context) ([]subscriptions.Credential, error) {
	const q = `
SELECT username, access_token FROM subscriptions
WHERE subscribed_at IS NOT NULL AND subscribed_at > 0 AND access_token IS NOT NULL
ORDER BY username`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, apperrors.Wrapf(err, "list refreshable")
	}
	defer rows.Close()

	creds := make([]subscriptions.Credential, 0)
	for rows.Next() {
		var c subscriptions.Credential
		if err := rows.Scan(&c.Login, &c.AccessToken); err != nil {
			return nil, apperrors.Wrapf(err, "scan refreshable")
		}
		creds = append(creds, c)
	}
	return creds, apperrors.Wrapf(rows.Err(), "list refreshable")
}

func (r *Repo) SetLastUpdated(ctx context.Context, login, timestamp string) error {
	const q = `UPDATE subscriptions SET last_updated = $2 WHERE username = $1`
	_, err := r.db.Pool.Exec(ctx, q, login, timestamp)
	return apperrors.Wrapf(err, "set last updated %q", login)
}
