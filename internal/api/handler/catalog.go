package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hszk-dev/vidshop/internal/domain/model"
	"github.com/hszk-dev/vidshop/internal/domain/repository"
	"github.com/hszk-dev/vidshop/internal/usecase"
)

// Request/Response types

type VideoRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	PriceCents   int64  `json:"price_cents"`
	Duration     string `json:"duration"`
	VideoKey     string `json:"video_key"`
	ThumbnailKey string `json:"thumbnail_key"`
}

type VideoResponse struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	PriceCents       int64  `json:"price_cents"`
	Duration         string `json:"duration"`
	VideoKey         string `json:"video_key,omitempty"`
	ThumbnailKey     string `json:"thumbnail_key,omitempty"`
	ThumbnailURL     string `json:"thumbnail_url"`
	VideoURL         string `json:"video_url,omitempty"`
	VideoURLFallback bool   `json:"video_url_fallback,omitempty"`
	IsPurchased      bool   `json:"is_purchased"`
	Views            int64  `json:"views"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

type ListVideosResponse struct {
	Videos []VideoResponse `json:"videos"`
	Count  int             `json:"count"`
	Sort   string          `json:"sort"`
	Query  string          `json:"query,omitempty"`
}

// AssetURLResolver turns storage identifiers into displayable URLs.
type AssetURLResolver interface {
	ResolveCatalog(ctx context.Context, videos []*model.Video) []usecase.CatalogItem
	ThumbnailURL(ctx context.Context, v *model.Video) string
	VideoURL(ctx context.Context, v *model.Video) model.SignedURL
}

// CatalogHandler handles catalog HTTP requests.
type CatalogHandler struct {
	svc    usecase.CatalogService
	assets AssetURLResolver
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(svc usecase.CatalogService, assets AssetURLResolver) *CatalogHandler {
	return &CatalogHandler{svc: svc, assets: assets}
}

// List handles GET /v1/videos?sort=&q=
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	sort, err := model.ParseSortOption(r.URL.Query().Get("sort"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_sort", "Sort must be one of newest, price_asc, price_desc, most_viewed, longest")
		return
	}
	query := r.URL.Query().Get("q")

	videos, err := h.svc.ListVideos(r.Context(), sort, query)
	if err != nil {
		h.handleReadError(w, err)
		return
	}

	items := h.assets.ResolveCatalog(r.Context(), videos)
	resp := ListVideosResponse{
		Videos: make([]VideoResponse, 0, len(items)),
		Count:  len(items),
		Sort:   sort.String(),
		Query:  query,
	}
	for _, item := range items {
		v := toVideoResponse(item.Video)
		v.ThumbnailURL = item.ThumbnailURL
		resp.Videos = append(resp.Videos, v)
	}

	JSON(w, http.StatusOK, resp)
}

// Get handles GET /v1/videos/{id}
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	videoID, ok := parseVideoID(w, r)
	if !ok {
		return
	}

	video, err := h.svc.GetVideo(r.Context(), videoID)
	if err != nil {
		h.handleReadError(w, err)
		return
	}

	JSON(w, http.StatusOK, h.detailed(r.Context(), video))
}

// Create handles POST /v1/videos
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req VideoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	video, err := h.svc.CreateVideo(r.Context(), req.toInput())
	if err != nil {
		h.handleWriteError(w, err)
		return
	}

	JSON(w, http.StatusCreated, h.detailed(r.Context(), video))
}

// Update handles PUT /v1/videos/{id}
func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request) {
	videoID, ok := parseVideoID(w, r)
	if !ok {
		return
	}

	var req VideoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	video, err := h.svc.UpdateVideo(r.Context(), videoID, req.toInput())
	if err != nil {
		h.handleWriteError(w, err)
		return
	}

	JSON(w, http.StatusOK, h.detailed(r.Context(), video))
}

// Delete handles DELETE /v1/videos/{id}
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	videoID, ok := parseVideoID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteVideo(r.Context(), videoID); err != nil {
		h.handleWriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// detailed renders a single record with its thumbnail and video URLs.
func (h *CatalogHandler) detailed(ctx context.Context, video *model.Video) VideoResponse {
	resp := toVideoResponse(video)
	resp.ThumbnailURL = h.assets.ThumbnailURL(ctx, video)

	signed := h.assets.VideoURL(ctx, video)
	resp.VideoURL = signed.URL
	resp.VideoURLFallback = signed.Fallback
	return resp
}

func (h *CatalogHandler) handleReadError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrVideoNotFound) {
		Error(w, http.StatusNotFound, "video_not_found", "Video not found")
		return
	}

	slog.Error("catalog read failed", "error", err)
	Error(w, http.StatusInternalServerError, "catalog_unavailable", "The catalog could not be loaded")
}

func (h *CatalogHandler) handleWriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrVideoNotFound):
		Error(w, http.StatusNotFound, "video_not_found", "Video not found")
	case errors.Is(err, repository.ErrDuplicateVideo):
		Error(w, http.StatusConflict, "duplicate_video", "Video already exists")
	case errors.Is(err, model.ErrEmptyTitle):
		Error(w, http.StatusBadRequest, "invalid_title", "Title cannot be empty")
	case errors.Is(err, model.ErrTitleTooLong):
		Error(w, http.StatusBadRequest, "invalid_title", "Title exceeds maximum length")
	case errors.Is(err, model.ErrNegativePrice):
		Error(w, http.StatusBadRequest, "invalid_price", "Price cannot be negative")
	case errors.Is(err, model.ErrInvalidDuration):
		Error(w, http.StatusBadRequest, "invalid_duration", "Duration must be MM:SS or HH:MM:SS")
	default:
		slog.Error("catalog write failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

func parseVideoID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	videoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_video_id", "Video ID must be a valid UUID")
		return uuid.Nil, false
	}
	return videoID, true
}

func (req VideoRequest) toInput() model.VideoInput {
	return model.VideoInput{
		Title:        req.Title,
		Description:  req.Description,
		PriceCents:   req.PriceCents,
		Duration:     req.Duration,
		VideoKey:     req.VideoKey,
		ThumbnailKey: req.ThumbnailKey,
	}
}

func toVideoResponse(v *model.Video) VideoResponse {
	return VideoResponse{
		ID:           v.ID.String(),
		Title:        v.Title,
		Description:  v.Description,
		PriceCents:   v.PriceCents,
		Duration:     v.Duration,
		VideoKey:     v.VideoKey,
		ThumbnailKey: v.ThumbnailKey,
		IsPurchased:  v.IsPurchased,
		Views:        v.Views,
		CreatedAt:    v.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    v.UpdatedAt.Format(time.RFC3339),
	}
}
