package billing

// Event is a normalized webhook event. The concrete type tells the processor
// what happened; anything the provider sends that this subsystem does not act
// on arrives as EventIgnored.
type Event interface {
	isBillingEvent()
}

// EventCheckoutCompleted signals that a checkout payment went through and a
// subscription was created for the referenced account.
type EventCheckoutCompleted struct {
	AccountID       string // client reference from checkout creation
	SubscriptionRef string
	CustomerRef     string
	PriceRef        string
}

// EventSubscriptionDeleted signals that a subscription ended at the provider,
// whether cancelled by the customer, by support, or after failed payments.
type EventSubscriptionDeleted struct {
	SubscriptionRef string
}

// EventIgnored carries an event type this subsystem does not handle.
type EventIgnored struct {
	ProviderEvent string
}

func (EventCheckoutCompleted) isBillingEvent()   {}
func (EventSubscriptionDeleted) isBillingEvent() {}
func (EventIgnored) isBillingEvent()             {}
