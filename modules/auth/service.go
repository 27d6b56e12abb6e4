// Package auth exposes the pre-authentication abuse gate. Sign-in itself is
// handled by the external identity provider; these endpoints let the login
// flow ask whether an email is throttled before forwarding credentials, and
// clear the window after a successful sign-in.
package auth

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ideaflowhq/ideaflow/pkg/logger"
	"github.com/ideaflowhq/ideaflow/pkg/ratelimit"
)

// Service throttles login and password-reset attempts per email.
type Service struct {
	login *ratelimit.SlidingWindow
	reset *ratelimit.SlidingWindow
	log   *slog.Logger
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

// NewService creates the auth gate over a shared limiter store.
func NewService(store ratelimit.Store, opts ...ServiceOption) *Service {
	if store == nil {
		panic("auth: limiter store is required")
	}

	s := &Service{
		login: ratelimit.NewAuthLimiter(store),
		reset: ratelimit.NewResetLimiter(store),
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle returns the module router. The gate runs before authentication, so
// none of these routes carry a token.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	r.Post("/attempts", s.handleAttempt)
	r.Post("/attempts/clear", s.handleClear)
	return r
}

type attemptRequest struct {
	Email string `json:"email"`
	Kind  string `json:"kind"`
}

func (s *Service) limiterFor(kind string) *ratelimit.SlidingWindow {
	if kind == "reset" {
		return s.reset
	}
	return s.login
}

// handleAttempt records one attempt for the email and reports whether the
// caller must wait. Check and record are one atomic limiter call, so parallel
// requests cannot slip past the window together.
func (s *Service) handleAttempt(w http.ResponseWriter, r *http.Request) {
	var req attemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}
	key := strings.ToLower(strings.TrimSpace(req.Email))
	limiter := s.limiterFor(req.Kind)

	limited, err := limiter.IsRateLimited(r.Context(), key)
	if err != nil {
		s.log.ErrorContext(r.Context(), "rate limit check failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if !limited {
		respondJSON(w, http.StatusOK, map[string]any{"limited": false})
		return
	}

	remaining, err := limiter.RemainingTime(r.Context(), key)
	if err != nil {
		s.log.ErrorContext(r.Context(), "rate limit lookup failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusTooManyRequests, map[string]any{
		"limited":        true,
		"retryInSeconds": int(math.Ceil(remaining.Seconds())),
	})
}

// handleClear drops the window after a successful sign-in.
func (s *Service) handleClear(w http.ResponseWriter, r *http.Request) {
	var req attemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}
	key := strings.ToLower(strings.TrimSpace(req.Email))

	if err := s.limiterFor(req.Kind).Reset(r.Context(), key); err != nil {
		s.log.ErrorContext(r.Context(), "rate limit reset failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}
