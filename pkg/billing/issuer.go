package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ideaflowhq/ideaflow/pkg/account"
	"github.com/ideaflowhq/ideaflow/pkg/plan"
)

// defaultProviderTimeout bounds outbound provider calls. No automatic retry
// happens here; a timeout surfaces as a retryable ErrPaymentProvider.
const defaultProviderTimeout = 15 * time.Second

// CheckoutConfig holds the redirect URLs for hosted checkouts.
type CheckoutConfig struct {
	SuccessURL string `env:"BILLING_SUCCESS_URL,required"`
	CancelURL  string `env:"BILLING_CANCEL_URL,required"`
}

// CreateCheckoutParams parameterizes a checkout session. Empty fields fall
// back to the account record, the plan catalog and the configured URLs.
type CreateCheckoutParams struct {
	AccountID  string
	Email      string
	PriceRef   string
	SuccessURL string
	CancelURL  string
}

// Issuer creates hosted checkout sessions for upgrades. It reads the account
// only to pick up the billing email; it never writes, since the upgrade is
// applied solely by the completion event or session verification.
type Issuer struct {
	provider Provider
	accounts account.Store
	catalog  *plan.Catalog
	config   CheckoutConfig
	timeout  time.Duration
	log      *slog.Logger
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithIssuerLogger sets the logger.
func WithIssuerLogger(log *slog.Logger) IssuerOption {
	return func(i *Issuer) {
		if log != nil {
			i.log = log
		}
	}
}

// WithIssuerTimeout bounds the provider call.
func WithIssuerTimeout(d time.Duration) IssuerOption {
	return func(i *Issuer) {
		if d > 0 {
			i.timeout = d
		}
	}
}

// NewIssuer creates a checkout session issuer.
func NewIssuer(provider Provider, accounts account.Store, catalog *plan.Catalog, config CheckoutConfig, opts ...IssuerOption) *Issuer {
	if provider == nil {
		panic("billing: provider is required")
	}
	if accounts == nil {
		panic("billing: account store is required")
	}
	if catalog == nil {
		panic("billing: plan catalog is required")
	}

	i := &Issuer{
		provider: provider,
		accounts: accounts,
		catalog:  catalog,
		config:   config,
		timeout:  defaultProviderTimeout,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// CreateCheckout opens a hosted checkout for the paid plan. The returned
// session URL is where the caller redirects the user.
func (i *Issuer) CreateCheckout(ctx context.Context, params CreateCheckoutParams) (*CheckoutSession, error) {
	if params.AccountID == "" {
		return nil, errors.New("account ID is required")
	}

	acct, err := i.accounts.Get(ctx, params.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	req := CheckoutRequest{
		PriceRef:   params.PriceRef,
		AccountID:  acct.ID,
		Email:      params.Email,
		SuccessURL: params.SuccessURL,
		CancelURL:  params.CancelURL,
	}
	if req.PriceRef == "" {
		req.PriceRef = i.catalog.ForTier(plan.TierPro).PriceRef
	}
	if req.Email == "" {
		req.Email = acct.Email
	}
	if req.SuccessURL == "" {
		req.SuccessURL = i.config.SuccessURL
	}
	if req.CancelURL == "" {
		req.CancelURL = i.config.CancelURL
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	session, err := i.provider.CreateCheckout(ctx, req)
	if err != nil {
		return nil, err
	}

	i.log.InfoContext(ctx, "checkout session created",
		slog.String("account_id", acct.ID),
		slog.String("session_id", session.ID))
	return session, nil
}
