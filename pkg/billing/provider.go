package billing

import "context"

// Provider abstracts the payment provider behind the minimal surface this
// subsystem needs: hosted checkouts, session lookup, cancellation and webhook
// parsing. Implementations use the official provider SDK and keep
// provider-specific quirks internal.
type Provider interface {
	// CreateCheckout creates a hosted checkout session carrying the account
	// ID as a client reference so the completion event can be correlated
	// back. It never mutates local state.
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// GetCheckout retrieves the current state of a checkout session.
	GetCheckout(ctx context.Context, sessionID string) (*CheckoutState, error)

	// CancelSubscription cancels the given subscription at the provider,
	// effective immediately.
	CancelSubscription(ctx context.Context, subscriptionRef string) error

	// ParseWebhook verifies the payload signature against the raw bytes and
	// returns the normalized event. Verification happens before any parsing;
	// a bad signature returns ErrSignatureVerification.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (Event, error)
}

// CheckoutRequest contains the data needed to open a hosted checkout.
type CheckoutRequest struct {
	PriceRef   string // provider's price identifier
	AccountID  string // local account ID, echoed back in events
	Email      string // optional billing email
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is a freshly created hosted checkout.
type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutState is the provider's view of an existing checkout session.
type CheckoutState struct {
	ID              string
	AccountID       string // client reference set at creation, empty if absent
	SubscriptionRef string
	CustomerRef     string
	PriceRef        string
	Paid            bool
}
