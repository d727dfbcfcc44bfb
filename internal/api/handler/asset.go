package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/hszk-dev/vidshop/internal/usecase"
)

type SignedURLResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

type DeleteFileResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// AssetHandler serves the signing and delete endpoints.
type AssetHandler struct {
	svc usecase.StorageService
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(svc usecase.StorageService) *AssetHandler {
	return &AssetHandler{svc: svc}
}

// SignedURL handles GET /api/signed-url/*
func (h *AssetHandler) SignedURL(w http.ResponseWriter, r *http.Request) {
	identifier := identifierParam(r)

	signed, err := h.svc.SignURL(r.Context(), identifier)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidIdentifier) {
			JSON(w, http.StatusBadRequest, SignedURLResponse{Error: "invalid_identifier"})
			return
		}
		slog.Error("failed to sign URL",
			"identifier", identifier,
			"error", err,
		)
		JSON(w, http.StatusInternalServerError, SignedURLResponse{Error: "signing_failed"})
		return
	}

	JSON(w, http.StatusOK, SignedURLResponse{Success: true, URL: signed})
}

// DeleteFile handles DELETE /api/delete-file/*
func (h *AssetHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	identifier := identifierParam(r)

	if err := h.svc.DeleteFile(r.Context(), identifier); err != nil {
		if errors.Is(err, usecase.ErrInvalidIdentifier) {
			JSON(w, http.StatusBadRequest, DeleteFileResponse{Error: "invalid_identifier"})
			return
		}
		slog.Error("failed to delete file",
			"identifier", identifier,
			"error", err,
		)
		JSON(w, http.StatusInternalServerError, DeleteFileResponse{Error: "delete_failed"})
		return
	}

	JSON(w, http.StatusOK, DeleteFileResponse{Success: true})
}

// identifierParam returns the decoded wildcard segment. Clients may send the
// identifier either escaped as one segment or as a plain path.
func identifierParam(r *http.Request) string {
	raw := chi.URLParam(r, "*")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}
