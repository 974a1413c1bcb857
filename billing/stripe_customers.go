package billing

import (
	"context"
	"fmt"

	"github.com/jrsteele09/repo-dashboard/internal/errors"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeCustomers implements CustomerAPI with the stripe-go client.
type StripeCustomers struct {
	api *client.API
}

var _ CustomerAPI = (*StripeCustomers)(nil)

// NewStripeCustomers builds a client for secretKey. backends may be nil for the
// default Stripe endpoints.
func NewStripeCustomers(secretKey string, backends *stripe.Backends) *StripeCustomers {
	return &StripeCustomers{api: client.New(secretKey, backends)}
}

func (s *StripeCustomers) CustomerEmail(ctx context.Context, customerID string) (string, bool, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	c, err := s.api.Customers.Get(customerID, params)
	if err != nil {
		return "", false, fmt.Errorf("%w: get customer %s: %v", errors.ErrStripeAPI, customerID, err)
	}
	return c.Email, c.Deleted, nil
}

func (s *StripeCustomers) PortalSessionURL(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	session, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create portal session: %v", errors.ErrStripeAPI, err)
	}
	return session.URL, nil
}
