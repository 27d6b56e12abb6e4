package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// accountRefKey is the custom-data key carrying the local account ID through
// the provider's checkout and back in transaction events.
const accountRefKey = "account_id"

// PaddleConfig holds configuration for the Paddle billing provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// Paddle implements Provider on top of the official Paddle SDK.
type Paddle struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
}

// NewPaddle creates a Paddle billing provider.
func NewPaddle(config PaddleConfig) (*Paddle, error) {
	if config.APIKey == "" {
		return nil, errors.New("paddle API key is required")
	}
	if config.WebhookSecret == "" {
		return nil, errors.New("paddle webhook secret is required")
	}

	var client *paddle.SDK
	var err error

	switch strings.ToLower(config.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(config.APIKey)
	case "production", "":
		client, err = paddle.New(config.APIKey)
	default:
		return nil, fmt.Errorf("invalid paddle environment: %s", config.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return &Paddle{
		client:   client,
		verifier: paddle.NewWebhookVerifier(config.WebhookSecret),
	}, nil
}

// CreateCheckout opens a hosted checkout transaction. The account ID travels
// in the transaction's custom data so the completion webhook can be matched
// back to the account.
func (p *Paddle) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.PriceRef == "" {
		return nil, errors.New("price ref is required")
	}
	if req.AccountID == "" {
		return nil, errors.New("account ID is required")
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceRef,
		Quantity: 1,
	})

	transactionReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			accountRefKey: req.AccountID,
		},
	}
	if req.Email != "" {
		transactionReq.CustomData["email"] = req.Email
	}
	if req.SuccessURL != "" {
		transactionReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(req.SuccessURL),
		}
	}

	transaction, err := p.client.TransactionsClient.CreateTransaction(ctx, transactionReq)
	if err != nil {
		return nil, fmt.Errorf("%w: create transaction: %w", ErrPaymentProvider, err)
	}

	var checkoutURL string
	if transaction.Checkout != nil && transaction.Checkout.URL != nil {
		checkoutURL = *transaction.Checkout.URL
	}
	if checkoutURL == "" {
		return nil, fmt.Errorf("%w: no checkout URL returned", ErrPaymentProvider)
	}

	return &CheckoutSession{
		ID:  transaction.ID,
		URL: checkoutURL,
	}, nil
}

// GetCheckout retrieves a checkout transaction and reports whether it has
// been paid, along with the refs needed to activate the subscription.
func (p *Paddle) GetCheckout(ctx context.Context, sessionID string) (*CheckoutState, error) {
	if sessionID == "" {
		return nil, errors.New("session ID is required")
	}

	transaction, err := p.client.TransactionsClient.GetTransaction(ctx, &paddle.GetTransactionRequest{
		TransactionID: sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get transaction: %w", ErrPaymentProvider, err)
	}

	return checkoutStateFrom(transaction), nil
}

// checkoutStateFrom maps a transaction onto the provider-neutral checkout
// state. Item prices are value types in the SDK; an absent price surfaces as
// an empty ID, not a nil.
func checkoutStateFrom(transaction *paddle.Transaction) *CheckoutState {
	state := &CheckoutState{
		ID:   transaction.ID,
		Paid: transaction.Status == paddle.TransactionStatusCompleted || transaction.Status == paddle.TransactionStatusPaid,
	}
	if transaction.SubscriptionID != nil {
		state.SubscriptionRef = *transaction.SubscriptionID
	}
	if transaction.CustomerID != nil {
		state.CustomerRef = *transaction.CustomerID
	}
	if len(transaction.Items) > 0 {
		state.PriceRef = transaction.Items[0].Price.ID
	}
	if id, ok := transaction.CustomData[accountRefKey].(string); ok {
		state.AccountID = id
	}
	return state
}

// CancelSubscription cancels the subscription effective immediately, so the
// downgrade takes effect right away rather than at period end.
func (p *Paddle) CancelSubscription(ctx context.Context, subscriptionRef string) error {
	if subscriptionRef == "" {
		return errors.New("subscription ref is required")
	}

	_, err := p.client.SubscriptionsClient.CancelSubscription(ctx, &paddle.CancelSubscriptionRequest{
		SubscriptionID: subscriptionRef,
		EffectiveFrom:  paddle.PtrTo(paddle.EffectiveFromImmediately),
	})
	if err != nil {
		return fmt.Errorf("%w: cancel subscription: %w", ErrPaymentProvider, err)
	}
	return nil
}

// ParseWebhook verifies the signature against the raw payload bytes, then
// maps the provider event onto the normalized event set.
func (p *Paddle) ParseWebhook(ctx context.Context, payload []byte, signature string) (Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build verification request: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignatureVerification, err)
	}
	if !valid {
		return nil, ErrSignatureVerification
	}

	var event struct {
		EventType string         `json:"event_type"`
		Data      map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	switch event.EventType {
	case "transaction.completed":
		return parseCheckoutCompleted(event.Data), nil
	case "subscription.canceled":
		ref, _ := event.Data["id"].(string)
		return EventSubscriptionDeleted{SubscriptionRef: ref}, nil
	default:
		return EventIgnored{ProviderEvent: event.EventType}, nil
	}
}

func parseCheckoutCompleted(data map[string]any) EventCheckoutCompleted {
	var event EventCheckoutCompleted

	if customData, ok := data["custom_data"].(map[string]any); ok {
		event.AccountID, _ = customData[accountRefKey].(string)
	}
	event.SubscriptionRef, _ = data["subscription_id"].(string)
	event.CustomerRef, _ = data["customer_id"].(string)

	if items, ok := data["items"].([]any); ok && len(items) > 0 {
		if item, ok := items[0].(map[string]any); ok {
			if price, ok := item["price"].(map[string]any); ok {
				event.PriceRef, _ = price["id"].(string)
			}
		}
	}

	return event
}
