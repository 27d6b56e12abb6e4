package billing_test

import (
	"context"
	"sync"

	"github.com/ideaflowhq/ideaflow/pkg/billing"
)

// mockProvider is a scriptable Provider for tests.
type mockProvider struct {
	mu sync.Mutex

	session   *billing.CheckoutSession
	createErr error
	created   []billing.CheckoutRequest

	state  *billing.CheckoutState
	getErr error

	cancelErr error
	cancelled []string

	event    billing.Event
	parseErr error
}

func (m *mockProvider) CreateCheckout(_ context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, req)
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.session, nil
}

func (m *mockProvider) GetCheckout(_ context.Context, _ string) (*billing.CheckoutState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.state, nil
}

func (m *mockProvider) CancelSubscription(_ context.Context, subscriptionRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelErr != nil {
		return m.cancelErr
	}
	m.cancelled = append(m.cancelled, subscriptionRef)
	return nil
}

func (m *mockProvider) ParseWebhook(_ context.Context, _ []byte, _ string) (billing.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.parseErr != nil {
		return nil, m.parseErr
	}
	return m.event, nil
}

func (m *mockProvider) cancelledRefs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cancelled...)
}
