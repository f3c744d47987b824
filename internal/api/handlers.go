package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/recollect/internal/service"
	"github.com/hyperengineering/recollect/internal/store"
	"github.com/hyperengineering/recollect/internal/types"
	"github.com/hyperengineering/recollect/internal/validation"
)

// Service is the subset of service.Service the handlers use.
type Service interface {
	Extract(ctx context.Context, uuid string, raw []byte) (*service.ExtractResult, error)
	Search(ctx context.Context, uuid, query string, topK int) (*service.SearchResult, error)
	Delete(ctx context.Context, uuid string) (*store.DeleteResult, error)
	Mirror(ctx context.Context, uuid string) (*store.MirrorResult, error)
	Health(ctx context.Context, uuid string) (*service.UserHealth, error)
	Ping(ctx context.Context) error
	ModelName() string
}

// Handler implements the API handlers
type Handler struct {
	svc          Service
	apiKey       string
	version      string
	maxBodyBytes int64
	maxTopK      int
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithMaxTopK rejects searches asking for more than n results. Zero leaves
// top_k unbounded.
func WithMaxTopK(n int) HandlerOption {
	return func(h *Handler) {
		h.maxTopK = n
	}
}

// NewHandler creates a new Handler
func NewHandler(svc Service, apiKey, version string, maxBodyBytes int64, opts ...HandlerOption) *Handler {
	h := &Handler{
		svc:          svc,
		apiKey:       apiKey,
		version:      version,
		maxBodyBytes: maxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := types.HealthResponse{
		Status:         service.StatusHealthy,
		Version:        h.version,
		EmbeddingModel: h.svc.ModelName(),
	}

	if err := h.svc.Ping(r.Context()); err != nil {
		slog.Warn("primary store unreachable", "error", err)
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

// UserHealth handles GET /api/v1/users/{uuid}/health
func (h *Handler) UserHealth(w http.ResponseWriter, r *http.Request) {
	uuid := MustUserIDFromContext(r.Context())

	health, err := h.svc.Health(r.Context(), uuid)
	if err != nil {
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.UserHealthResponse{
		UUID:             health.UUID,
		Status:           health.Status,
		ModelLoaded:      health.ModelLoaded,
		DataLoaded:       health.DataLoaded,
		EmbeddingsLoaded: health.EmbeddingsLoaded,
		KeysAvailable:    health.KeysAvailable,
		TotalDocuments:   health.TotalDocuments,
		ReadyForSearch:   health.ReadyForSearch(),
		Source:           health.Source,
	})
}

// Extract handles POST /api/v1/users/{uuid}/extract. The body is the raw
// conversation export.
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	uuid := MustUserIDFromContext(r.Context())

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteProblem(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Request body exceeds %d bytes", maxErr.Limit))
			return
		}
		WriteProblem(w, r, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(raw) == 0 {
		WriteProblem(w, r, http.StatusBadRequest, "conversations data not provided")
		return
	}

	res, err := h.svc.Extract(r.Context(), uuid, raw)
	if err != nil {
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.ExtractResponse{
		Success:        true,
		UUID:           res.UUID,
		DocumentCount:  res.DocumentCount,
		EmbeddingShape: [2]int(res.EmbeddingShape),
		Revision:       res.Revision,
		Model:          res.Model,
		Overwrites:     res.Stats.Overwrites,
	})
}

// Search handles POST /api/v1/users/{uuid}/search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	uuid := MustUserIDFromContext(r.Context())

	var req types.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateSearchRequest(req.Query, req.TopK, h.maxTopK); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	res, err := h.svc.Search(r.Context(), uuid, req.Query, req.TopK)
	if err != nil {
		MapError(w, r, err)
		return
	}

	hits := make([]types.SearchHit, len(res.Results))
	for i, m := range res.Results {
		hits[i] = types.SearchHit{Key: m.Key, Similarity: m.Similarity, Content: m.Content}
	}
	writeJSON(w, http.StatusOK, types.SearchResponse{
		Results:      hits,
		Query:        res.Query,
		TotalResults: res.TotalResults,
	})
}

// Delete handles DELETE /api/v1/users/{uuid}. A bundle found in neither
// backend answers 404 with the delete status in the body.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	uuid := MustUserIDFromContext(r.Context())

	res, err := h.svc.Delete(r.Context(), uuid)
	if err != nil {
		MapError(w, r, err)
		return
	}

	status := http.StatusOK
	if !res.Success {
		status = http.StatusNotFound
	}
	slog.Info("user data deleted",
		"uuid", uuid,
		"status", string(res.Status),
		"request_id", GetRequestID(r.Context()),
	)
	writeJSON(w, status, types.DeleteResponse{
		Success: res.Success,
		Status:  string(res.Status),
		UUID:    uuid,
	})
}

// Mirror handles POST /api/v1/users/{uuid}/mirror
func (h *Handler) Mirror(w http.ResponseWriter, r *http.Request) {
	uuid := MustUserIDFromContext(r.Context())

	res, err := h.svc.Mirror(r.Context(), uuid)
	if err != nil {
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.MirrorResponse{
		UUID:           res.UUID,
		Revision:       res.Revision,
		Backend:        res.Backend,
		EmbeddingShape: [2]int(res.Shape),
	})
}
