// Package billing turns Stripe webhook deliveries into subscription state changes.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jrsteele09/repo-dashboard/internal/errors"
	"github.com/jrsteele09/repo-dashboard/internal/metrics"
	"github.com/jrsteele09/repo-dashboard/internal/utils"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	SignatureHeader = "Stripe-Signature"

	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

const maxBodyBytes = 1 << 20

// Hooks apply the state transitions. Returning an error makes the webhook answer 500 so
// Stripe redelivers; both hooks must therefore be idempotent.
type Hooks struct {
	OnSubscribe func(ctx context.Context, login, email, customerID string) error
	OnCancel    func(ctx context.Context, email string) error
}

// CustomerAPI is the slice of the Stripe API the processor calls.
type CustomerAPI interface {
	// CustomerEmail returns the billing email, or deleted=true for a removed customer.
	CustomerEmail(ctx context.Context, customerID string) (email string, deleted bool, err error)
	PortalSessionURL(ctx context.Context, customerID, returnURL string) (string, error)
}

type Config struct {
	WebhookSecret  string
	PaymentLinkID  string
	PaymentLinkURL string
}

type Processor struct {
	cfg       Config
	customers CustomerAPI
	hooks     Hooks
}

type response struct {
	Received bool   `json:"received"`
	Message  string `json:"message"`
}

func NewProcessor(cfg Config, customers CustomerAPI, hooks Hooks) (*Processor, error) {
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("[NewProcessor] webhook secret is required")
	}
	if customers == nil {
		return nil, fmt.Errorf("[NewProcessor] customer api is required")
	}
	if hooks.OnSubscribe == nil || hooks.OnCancel == nil {
		return nil, fmt.Errorf("[NewProcessor] subscribe and cancel hooks are required")
	}
	return &Processor{cfg: cfg, customers: customers, hooks: hooks}, nil
}

// PaymentLink returns the checkout URL that carries login back as client_reference_id.
func (p *Processor) PaymentLink(login string) string {
	return p.cfg.PaymentLinkURL + "?client_reference_id=" + url.QueryEscape(login)
}

// PortalSessionURL opens a Stripe billing portal session for customerID. An empty
// customerID means the account never subscribed and yields ErrNoCustomerOnRecord.
func (p *Processor) PortalSessionURL(ctx context.Context, customerID, returnURL string) (string, error) {
	if customerID == "" {
		return "", errors.ErrNoCustomerOnRecord
	}
	return p.customers.PortalSessionURL(ctx, customerID, returnURL)
}

// Verify checks the Stripe-Signature header against the raw body and decodes the event.
func (p *Processor) Verify(body []byte, signature string) (stripe.Event, error) {
	if signature == "" {
		return stripe.Event{}, errors.ErrMissingSignature
	}
	event, err := webhook.ConstructEventWithOptions(body, signature, p.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", errors.ErrInvalidSignature, err)
	}
	return event, nil
}

// Webhook verifies the signature over the raw body before reading any event field.
func (p *Processor) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		utils.WriteJSONError(w, http.StatusBadRequest, "Unreadable body")
		return
	}
	if len(body) == 0 {
		utils.WriteJSONError(w, http.StatusBadRequest, "No body")
		return
	}

	event, err := p.Verify(body, r.Header.Get(SignatureHeader))
	if errors.Is(err, errors.ErrMissingSignature) {
		metrics.WebhookEvents.WithLabelValues("unknown", "no_signature").Inc()
		utils.WriteJSONError(w, http.StatusBadRequest, "No signature")
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("webhook signature verification failed")
		metrics.WebhookEvents.WithLabelValues("unknown", "bad_signature").Inc()
		utils.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	eventType := string(event.Type)
	logger := log.With().Str("event_id", event.ID).Str("event_type", eventType).Logger()

	var (
		status  int
		message string
	)
	switch eventType {
	case EventCheckoutCompleted:
		status, message = p.checkoutCompleted(r.Context(), event)
	case EventSubscriptionDeleted:
		status, message = p.subscriptionDeleted(r.Context(), event)
	default:
		status, message = http.StatusOK, "Event not handled"
	}

	metrics.WebhookEvents.WithLabelValues(eventType, http.StatusText(status)).Inc()
	if status != http.StatusOK {
		logger.Warn().Int("status", status).Msg(message)
		utils.WriteJSONError(w, status, message)
		return
	}
	logger.Info().Msg(message)
	utils.WriteJSON(w, http.StatusOK, response{Received: true, Message: message})
}

func (p *Processor) checkoutCompleted(ctx context.Context, event stripe.Event) (int, string) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return http.StatusBadRequest, "Malformed checkout session"
	}

	if session.PaymentLink == nil || session.PaymentLink.ID != p.cfg.PaymentLinkID {
		return http.StatusOK, "Incorrect payment link"
	}
	if err := ValidateCheckout(&session); err != nil {
		return http.StatusBadRequest, rejection(err)
	}

	var customerID string
	if session.Customer != nil {
		customerID = session.Customer.ID
	}
	if err := p.hooks.OnSubscribe(ctx, session.ClientReferenceID, session.CustomerDetails.Email, customerID); err != nil {
		log.Err(err).Str("login", session.ClientReferenceID).Msg("subscribe hook failed")
		return http.StatusInternalServerError, "Failed to record subscription"
	}
	return http.StatusOK, "Payment processed"
}

// ValidateCheckout accepts a paid, non-zero session that names the login and billing email.
func ValidateCheckout(session *stripe.CheckoutSession) error {
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid || session.AmountTotal == 0 {
		return errors.Wrapf(errors.ErrPaymentIncomplete, "session %s is %s", session.ID, session.PaymentStatus)
	}
	if session.ClientReferenceID == "" || session.CustomerDetails == nil || session.CustomerDetails.Email == "" {
		return errors.Wrapf(errors.ErrMissingFields, "session %s", session.ID)
	}
	return nil
}

func rejection(err error) string {
	switch {
	case errors.Is(err, errors.ErrPaymentIncomplete):
		return "Payment not completed"
	case errors.Is(err, errors.ErrMissingFields):
		return "Missing required fields"
	default:
		return "Invalid event"
	}
}

func (p *Processor) subscriptionDeleted(ctx context.Context, event stripe.Event) (int, string) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return http.StatusBadRequest, "Malformed subscription"
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return http.StatusBadRequest, rejection(errors.ErrMissingFields)
	}

	email, deleted, err := p.customers.CustomerEmail(ctx, sub.Customer.ID)
	if err != nil {
		log.Err(err).Str("customer", sub.Customer.ID).Msg("customer lookup failed")
		return http.StatusInternalServerError, "Failed to retrieve customer"
	}
	if deleted {
		return http.StatusOK, "Customer already deleted"
	}

	if err := p.hooks.OnCancel(ctx, email); err != nil {
		log.Err(err).Str("customer", sub.Customer.ID).Msg("cancel hook failed")
		return http.StatusInternalServerError, "Failed to remove subscription"
	}
	return http.StatusOK, "Subscription removed"
}
