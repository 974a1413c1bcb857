package subscriptions

import (
	"context"
	"sort"
	"sync"

	"github.com/jrsteele09/repo-dashboard/internal/errors"
	"github.com/jrsteele09/repo-dashboard/internal/utils"
)

// InMemoryRepo is a mutex guarded Repo. One lock owns all rows, which gives the same
// per-key linearizability as a single-writer store.
type InMemoryRepo struct {
	mu   sync.RWMutex
	rows map[string]*Record
	opts Options
}

var _ Repo = (*InMemoryRepo)(nil)

func NewInMemoryRepo(opts ...Option) *InMemoryRepo {
	return &InMemoryRepo{
		rows: make(map[string]*Record),
		opts: ApplyOptions(opts...),
	}
}

func (r *InMemoryRepo) UpsertCredential(_ context.Context, login, accessToken string) error {
	if login == "" {
		return errors.Wrapf(errors.ErrInvalidInput, "[UpsertCredential] login is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	row := r.rowLocked(login)
	row.AccessToken = utils.Ptr(accessToken)
	return nil
}

func (r *InMemoryRepo) ActivateSubscription(_ context.Context, login, email, customerID string) error {
	if login == "" {
		return errors.Wrapf(errors.ErrInvalidInput, "[ActivateSubscription] login is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	row := r.rowLocked(login)
	row.Email = email
	row.SubscribedAt = utils.Ptr(r.opts.Now().UnixMilli())
	row.CustomerID = nil
	if customerID != "" {
		row.CustomerID = utils.Ptr(customerID)
	}
	return nil
}

func (r *InMemoryRepo) DeactivateByEmail(_ context.Context, email string) error {
	// An empty email never matches, the same way a NULL column never equals a parameter.
	if email == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, row := range r.rows {
		if row.Email == email {
			row.SubscribedAt = nil
		}
	}
	return nil
}

func (r *InMemoryRepo) IsActive(_ context.Context, login string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.rows[login].IsActive(), nil
}

func (r *InMemoryRepo) GetCustomerID(_ context.Context, login string) (*string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[login]
	if !ok || row.CustomerID == nil {
		return nil, nil
	}
	return utils.Ptr(*row.CustomerID), nil
}

func (r *InMemoryRepo) Get(_ context.Context, login string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[login]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "subscription %q", login)
	}
	return copyRecord(row), nil
}

func (r *InMemoryRepo) ListRefreshable(_ context.Context) ([]Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	creds := make([]Credential, 0)
	for _, row := range r.rows {
		if row.IsActive() && row.AccessToken != nil {
			creds = append(creds, Credential{Login: row.Login, AccessToken: *row.AccessToken})
		}
	}
	sort.Slice(creds, func(i, j int) bool { return creds[i].Login < creds[j].Login })
	return creds, nil
}

func (r *InMemoryRepo) SetLastUpdated(_ context.Context, login, timestamp string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if row, ok := r.rows[login]; ok {
		row.LastUpdated = utils.Ptr(timestamp)
	}
	return nil
}

func (r *InMemoryRepo) rowLocked(login string) *Record {
	row, ok := r.rows[login]
	if !ok {
		row = &Record{Login: login}
		r.rows[login] = row
	}
	return row
}

func copyRecord(r *Record) *Record {
	c := *r
	if r.SubscribedAt != nil {
		c.SubscribedAt = utils.Ptr(*r.SubscribedAt)
	}
	if r.CustomerID != nil {
		c.CustomerID = utils.Ptr(*r.CustomerID)
	}
	if r.AccessToken != nil {
		c.AccessToken = utils.Ptr(*r.AccessToken)
	}
	if r.LastUpdated != nil {
		c.LastUpdated = utils.Ptr(*r.LastUpdated)
	}
	return &c
}
