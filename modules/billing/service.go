// Package billing exposes the subscription HTTP surface: checkout session
// creation, webhook ingestion, session verification, cancellation and the
// account projection read by the client.
package billing

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ideaflowhq/ideaflow/pkg/account"
	"github.com/ideaflowhq/ideaflow/pkg/authn"
	billingsvc "github.com/ideaflowhq/ideaflow/pkg/billing"
	"github.com/ideaflowhq/ideaflow/pkg/logger"
	"github.com/ideaflowhq/ideaflow/pkg/plan"
)

// maxWebhookBody bounds webhook payload reads. Paddle events are small; this
// protects against misdirected uploads.
const maxWebhookBody = 1 << 20

// signatureHeader carries the webhook signature.
const signatureHeader = "Paddle-Signature"

// Service wires the billing operations behind a chi router.
type Service struct {
	issuer    *billingsvc.Issuer
	processor *billingsvc.Processor
	verifier  *billingsvc.Verifier
	canceller *billingsvc.Canceller
	accounts  account.Store
	catalog   *plan.Catalog
	auth      func(http.Handler) http.Handler
	log       *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService creates the billing HTTP service. The auth middleware guards
// every route except the webhook, whose authenticity is the signature itself.
func NewService(
	issuer *billingsvc.Issuer,
	processor *billingsvc.Processor,
	verifier *billingsvc.Verifier,
	canceller *billingsvc.Canceller,
	accounts account.Store,
	catalog *plan.Catalog,
	auth func(http.Handler) http.Handler,
	opts ...ServiceOption,
) *Service {
	if issuer == nil || processor == nil || verifier == nil || canceller == nil {
		panic("billing: all billing operations are required")
	}
	if accounts == nil {
		panic("billing: account store is required")
	}
	if catalog == nil {
		panic("billing: plan catalog is required")
	}
	if auth == nil {
		panic("billing: auth middleware is required")
	}

	s := &Service{
		issuer:    issuer,
		processor: processor,
		verifier:  verifier,
		canceller: canceller,
		accounts:  accounts,
		catalog:   catalog,
		auth:      auth,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle returns the module router.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/webhook", s.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(s.auth)
		r.Post("/checkout-session", s.handleCreateCheckout)
		r.Post("/verify-session", s.handleVerifySession)
		r.Post("/cancel-subscription", s.handleCancelSubscription)
		r.Get("/user/{accountID}", s.handleGetUser)
	})

	return r
}

type createCheckoutRequest struct {
	AccountID  string `json:"accountId"`
	Email      string `json:"email"`
	PriceRef   string `json:"priceRef"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

func (s *Service) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	identity, err := authn.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccountID != "" && req.AccountID != identity.AccountID {
		respondError(w, http.StatusForbidden, "account mismatch")
		return
	}

	if _, err := s.ensureAccount(r, identity); err != nil {
		s.log.ErrorContext(r.Context(), "provisioning account failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	session, err := s.issuer.CreateCheckout(r.Context(), billingsvc.CreateCheckoutParams{
		AccountID:  identity.AccountID,
		Email:      req.Email,
		PriceRef:   req.PriceRef,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		s.log.ErrorContext(r.Context(), "creating checkout session failed",
			logger.AccountID(identity.AccountID), logger.Error(err))
		respondError(w, http.StatusBadGateway, "payment provider unavailable")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"url": session.URL})
}

func (s *Service) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable payload")
		return
	}

	err = s.processor.HandleWebhook(r.Context(), payload, r.Header.Get(signatureHeader))
	if err != nil {
		s.log.WarnContext(r.Context(), "webhook rejected", logger.Error(err))
		respondError(w, http.StatusBadRequest, "webhook processing failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}

type verifySessionRequest struct {
	SessionID string `json:"sessionId"`
	AccountID string `json:"accountId"`
}

func (s *Service) handleVerifySession(w http.ResponseWriter, r *http.Request) {
	identity, err := authn.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req verifySessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccountID != "" && req.AccountID != identity.AccountID {
		respondError(w, http.StatusForbidden, "account mismatch")
		return
	}

	if err := s.verifier.VerifySession(r.Context(), req.SessionID, identity.AccountID); err != nil {
		if errors.Is(err, billingsvc.ErrPaymentNotCompleted) {
			respondError(w, http.StatusBadRequest, "Payment not completed")
			return
		}
		s.log.ErrorContext(r.Context(), "session verification failed",
			logger.AccountID(identity.AccountID), logger.Error(err))
		respondError(w, http.StatusBadRequest, "verification failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Service) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	identity, err := authn.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := s.canceller.Cancel(r.Context(), identity.AccountID); err != nil {
		switch {
		case errors.Is(err, billingsvc.ErrNoActiveSubscription):
			respondError(w, http.StatusBadRequest, "no active subscription")
		case errors.Is(err, billingsvc.ErrInconsistentState):
			s.log.ErrorContext(r.Context(), "cancellation left inconsistent state",
				logger.AccountID(identity.AccountID), logger.ReconcileManual(), logger.Error(err))
			respondError(w, http.StatusInternalServerError, "cancellation incomplete, contact support")
		case errors.Is(err, billingsvc.ErrPaymentProvider):
			respondError(w, http.StatusBadGateway, "payment provider unavailable")
		default:
			s.log.ErrorContext(r.Context(), "cancellation failed",
				logger.AccountID(identity.AccountID), logger.Error(err))
			respondError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Service) handleGetUser(w http.ResponseWriter, r *http.Request) {
	identity, err := authn.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if chi.URLParam(r, "accountID") != identity.AccountID {
		respondError(w, http.StatusForbidden, "account mismatch")
		return
	}

	acct, err := s.ensureAccount(r, identity)
	if err != nil {
		s.log.ErrorContext(r.Context(), "loading account failed",
			logger.AccountID(identity.AccountID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// The account's JSON shape is the projection: billing refs and internal
	// bookkeeping fields are excluded by their tags.
	respondJSON(w, http.StatusOK, acct)
}

func (s *Service) ensureAccount(r *http.Request, identity *authn.Identity) (*account.Account, error) {
	fresh := account.New(identity.AccountID, identity.Email, s.catalog.ForTier(plan.TierFree))
	return account.EnsureExists(r.Context(), s.accounts, fresh)
}
