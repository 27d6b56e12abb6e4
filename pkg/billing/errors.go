package billing

import "errors"

var (
	// ErrSignatureVerification is returned when a webhook payload fails
	// signature verification. Callers must reject the request without
	// touching any account state.
	ErrSignatureVerification = errors.New("webhook signature verification failed")

	// ErrPaymentProvider wraps failures of the upstream payment provider API.
	ErrPaymentProvider = errors.New("payment provider request failed")

	// ErrPaymentNotCompleted is returned when a checkout session exists but
	// the payment has not been completed.
	ErrPaymentNotCompleted = errors.New("payment not completed")

	// ErrUnknownAccount is returned when a provider session or event cannot
	// be correlated to a local account.
	ErrUnknownAccount = errors.New("account reference missing or unknown")

	// ErrNoActiveSubscription is returned when a cancellation is requested
	// for an account that has no subscription on record.
	ErrNoActiveSubscription = errors.New("account has no active subscription")

	// ErrInconsistentState is returned when the provider-side operation
	// succeeded but the local account update failed. The account must be
	// reconciled manually or by a retry of the local update.
	ErrInconsistentState = errors.New("provider and local subscription state diverged")

	ErrProviderRequired = errors.New("billing provider is required")
	ErrMalformedPayload = errors.New("malformed webhook payload")
)
