// Package content exposes the document and generation HTTP surface that
// spends the quotas: uploads consume plan counters, generations consume the
// per-document allowance behind the global cooldown.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ideaflowhq/ideaflow/pkg/authn"
	"github.com/ideaflowhq/ideaflow/pkg/document"
	"github.com/ideaflowhq/ideaflow/pkg/logger"
	"github.com/ideaflowhq/ideaflow/pkg/plan"
	"github.com/ideaflowhq/ideaflow/pkg/quota"
)

// Service wires document uploads and generations behind a chi router.
type Service struct {
	documents document.Store
	enforcer  *quota.Enforcer
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

// NewService creates the content HTTP service.
func NewService(documents document.Store, enforcer *quota.Enforcer, auth func(http.Handler) http.Handler, opts ...ServiceOption) *Service {
	if documents == nil {
		panic("content: document store is required")
	}
	if enforcer == nil {
		panic("content: quota enforcer is required")
	}
	if auth == nil {
		panic("content: auth middleware is required")
	}

	s := &Service{
		documents: documents,
		enforcer:  enforcer,
		auth:      auth,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle returns the module router. Every route requires authentication.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	r.Use(s.auth)

	r.Post("/documents", s.handleCreateDocument)
	r.Delete("/documents", s.handleDeleteAllDocuments)
	r.Post("/documents/{documentID}/generations/{platform}", s.handleGenerate)
	r.Delete("/documents/{documentID}", s.handleDeleteDocument)

	return r
}

type createDocumentRequest struct {
	SourceType string `json:"sourceType"`
	Content    string `json:"content"`
}

func uploadQuotaKey(src document.SourceType) plan.QuotaKey {
	if src == document.SourcePDF {
		return plan.QuotaPDFUploads
	}
	return plan.QuotaWebsiteUploads
}

func (s *Service) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	identity, err := authn.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	src := document.SourceType(req.SourceType)
	if !src.Valid() {
		respondError(w, http.StatusBadRequest, "unknown source type")
		return
	}
	if len(req.Content) > document.MaxContentLength {
		respondError(w, http.StatusRequestEntityTooLarge, "document content too large")
		return
	}

	// Quota is consumed before the insert so two racing uploads can never
	// both land inside the last slot.
	if err := s.enforcer.TryConsume(r.Context(), identity.AccountID, uploadQuotaKey(src)); err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			respondError(w, http.StatusForbidden, "upload quota exceeded, upgrade to continue")
			return
		}
		s.log.ErrorContext(r.Context(), "consuming upload quota failed",
			logger.AccountID(identity.AccountID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	doc := document.New(uuid.NewString(), identity.AccountID, src, req.Content)
	if err := s.documents.Create(r.Context(), doc); err != nil {
		s.log.ErrorContext(r.Context(), "storing document failed after quota consumption",
			logger.AccountID(identity.AccountID), logger.DocumentID(doc.ID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusCreated, doc)
}

type generateRequest struct {
	Content string `json:"content"`
}

func (s *Service) handleGenerate(w http.ResponseWriter, r *http.Request) {
	identity, err := authn.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	documentID := chi.URLParam(r, "documentID")
	platform := plan.Platform(chi.URLParam(r, "platform"))
	if !platform.Valid() {
		respondError(w, http.StatusBadRequest, "unknown platform")
		return
	}

	var req generateRequest
	if r.Body != nil {
		// Body is optional; an empty generation records the attempt only.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	// Cooldown first: a throttled caller must not consume the per-document
	// allowance.
	if err := s.enforcer.CheckAndStamp(r.Context(), identity.AccountID); err != nil {
		var rateErr *quota.RateLimitedError
		if errors.As(err, &rateErr) {
			respondJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":          fmt.Sprintf("please wait %d seconds before generating again", int(rateErr.Wait.Seconds())),
				"retryInSeconds": int(rateErr.Wait.Seconds()),
			})
			return
		}
		s.log.ErrorContext(r.Context(), "cooldown check failed",
			logger.AccountID(identity.AccountID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := s.enforcer.TryConsumeGeneration(r.Context(), identity.AccountID, documentID, platform); err != nil {
		switch {
		case errors.Is(err, quota.ErrGenerationLimitReached):
			respondError(w, http.StatusForbidden, "generation limit reached for this document")
		case errors.Is(err, quota.ErrNotOwner):
			respondError(w, http.StatusForbidden, "document does not belong to you")
		case errors.Is(err, document.ErrNotFound):
			respondError(w, http.StatusNotFound, "document not found")
		default:
			s.log.ErrorContext(r.Context(), "consuming generation failed",
				logger.AccountID(identity.AccountID), logger.DocumentID(documentID), logger.Error(err))
			respondError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	doc, err := s.documents.Update(r.Context(), documentID, func(d *document.Document) error {
		if d.Generated == nil {
			d.Generated = make(map[plan.Platform]document.Generation)
		}
		d.Generated[platform] = document.Generation{
			Content:     req.Content,
			GeneratedAt: time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		s.log.ErrorContext(r.Context(), "recording generation failed",
			logger.AccountID(identity.AccountID), logger.DocumentID(documentID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"documentId":       doc.ID,
		"platform":         platform,
		"generationCounts": doc.GenerationCounts,
	})
}

func (s *Service) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	identity, err := authn.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	documentID := chi.URLParam(r, "documentID")
	doc, err := s.documents.Get(r.Context(), documentID)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.log.ErrorContext(r.Context(), "loading document failed",
			logger.DocumentID(documentID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if doc.OwnerID != identity.AccountID {
		respondError(w, http.StatusForbidden, "document does not belong to you")
		return
	}

	if err := s.documents.Delete(r.Context(), documentID); err != nil && !errors.Is(err, document.ErrNotFound) {
		s.log.ErrorContext(r.Context(), "deleting document failed",
			logger.DocumentID(documentID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleDeleteAllDocuments wipes every document the caller owns. This backs
// the account termination flow, which cancels billing first and then clears
// content.
func (s *Service) handleDeleteAllDocuments(w http.ResponseWriter, r *http.Request) {
	identity, err := authn.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	deleted, err := s.documents.DeleteByOwner(r.Context(), identity.AccountID)
	if err != nil {
		s.log.ErrorContext(r.Context(), "deleting owned documents failed",
			logger.AccountID(identity.AccountID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
