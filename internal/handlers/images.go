package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/invoicedeck/invoicedeck/internal/apperr"
	"github.com/invoicedeck/invoicedeck/internal/blob"
)

// ImageHandler serves image bytes back to the UI grid.
type ImageHandler struct {
	blobs blob.Store
}

// NewImageHandler creates an ImageHandler reading from the given store.
func NewImageHandler(blobs blob.Store) *ImageHandler {
	return &ImageHandler{blobs: blobs}
}

// GetImage handles GET /api/image/{key...}. A referenced key with no live
// blob version is a hard 404, not a silent empty response.
func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		writeError(w, apperr.Validation("image key is required"))
		return
	}

	obj, err := h.blobs.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			writeError(w, apperr.NotFound("image %s not found", key))
			return
		}
		writeError(w, apperr.Internal(err))
		return
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(obj.Data)
}
