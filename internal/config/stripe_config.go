package config

type StripeConfig interface {
	GetStripeSecretKey() string
	GetStripeWebhookSecret() string
	GetStripePaymentLink() string
	GetStripePaymentLinkID() string
}

type Stripe struct{}

var _ StripeConfig = Stripe{}

func (Stripe) GetStripeSecretKey() string {
	return GetEnv("STRIPE_SECRET", "")
}

func (Stripe) GetStripeWebhookSecret() string {
	return GetEnv("STRIPE_WEBHOOK_SIGNING_SECRET", "")
}

// GetStripePaymentLink is the public checkout URL shown on the pricing page.
func (Stripe) GetStripePaymentLink() string {
	return GetEnv("STRIPE_PAYMENT_LINK", "")
}

// GetStripePaymentLinkID identifies the one product whose checkouts activate a subscription.
func (Stripe) GetStripePaymentLinkID() string {
	return GetEnv("STRIPE_PAYMENT_LINK_ID", "")
}
