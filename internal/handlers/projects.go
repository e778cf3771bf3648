package handlers

import (
	"log/slog"
	"net/http"

	"github.com/invoicedeck/invoicedeck/internal/apperr"
	"github.com/invoicedeck/invoicedeck/internal/metadata"
	"github.com/invoicedeck/invoicedeck/internal/project"
)

// ProjectHandler serves the project mutation and listing endpoints. Mutations
// go through the coordinator; this layer only parses requests, enforces the
// encoded payload ceiling and maps errors to JSON.
type ProjectHandler struct {
	coord          *project.Coordinator
	meta           metadata.Store
	maxUploadBytes int64
	log            *slog.Logger
}

// NewProjectHandler creates a ProjectHandler with injected dependencies.
// maxUploadBytes is the encoded request-body ceiling (roughly 90MB of base64
// image data by default).
func NewProjectHandler(coord *project.Coordinator, meta metadata.Store, maxUploadBytes int64, log *slog.Logger) *ProjectHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ProjectHandler{coord: coord, meta: meta, maxUploadBytes: maxUploadBytes, log: log}
}

// createProjectRequest is the body of POST /api/create/project. Images are
// inline base64 data URLs; at create time there are no existing blobs to
// reference.
type createProjectRequest struct {
	ClientID     string   `json:"clientId"`
	InvoiceMonth string   `json:"invoiceMonth"`
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	PriceCents   int64    `json:"priceCents"`
	Images       []string `json:"images"`
}

// CreateProject handles POST /api/create/project.
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	images := make([]project.RawImage, 0, len(req.Images))
	for i, img := range req.Images {
		if !isDataURL(img) {
			writeError(w, apperr.Validation("image at position %d must be an inline data URL", i))
			return
		}
		data, contentType, err := decodeDataURL(img)
		if err != nil {
			writeError(w, apperr.Validation("image at position %d: %v", i, err))
			return
		}
		images = append(images, project.RawImage{Data: data, ContentType: contentType})
	}

	id, err := h.coord.CreateProject(r.Context(), &project.CreateInput{
		ClientID:     req.ClientID,
		InvoiceMonth: req.InvoiceMonth,
		Name:         req.Name,
		Category:     req.Category,
		PriceCents:   req.PriceCents,
		Images:       images,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"projectId": id})
}

// updateProjectRequest is the body of POST /api/update/project. Updates.Images
// is always the full desired list: existing images as blob-key strings, new
// images as inline data URLs.
type updateProjectRequest struct {
	ID           int64  `json:"id"`
	ClientID     string `json:"clientId"`
	InvoiceMonth string `json:"invoiceMonth"`
	Updates      struct {
		Name       *string  `json:"name"`
		Category   *string  `json:"category"`
		PriceCents *int64   `json:"priceCents"`
		Images     []string `json:"images"`
	} `json:"updates"`
}

// UpdateProject handles POST /api/update/project.
func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	var req updateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	images := make([]project.ImageInput, 0, len(req.Updates.Images))
	for i, img := range req.Updates.Images {
		if isDataURL(img) {
			data, contentType, err := decodeDataURL(img)
			if err != nil {
				writeError(w, apperr.Validation("image at position %d: %v", i, err))
				return
			}
			images = append(images, project.ImageInput{Data: data, ContentType: contentType})
			continue
		}
		images = append(images, project.ImageInput{ExistingKey: img})
	}

	err := h.coord.UpdateProject(r.Context(), &project.UpdateInput{
		ID:           req.ID,
		ClientID:     req.ClientID,
		InvoiceMonth: req.InvoiceMonth,
		Name:         req.Updates.Name,
		Category:     req.Updates.Category,
		PriceCents:   req.Updates.PriceCents,
		Images:       images,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// deleteProjectRequest is the body of POST /api/delete/project.
type deleteProjectRequest struct {
	ID int64 `json:"id"`
}

// DeleteProject handles POST /api/delete/project. A best-effort blob purge
// failure is reported as a warning field on a successful response, never as
// an error.
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	var req deleteProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.coord.DeleteProject(r.Context(), req.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	body := map[string]any{"success": true}
	if res.Warning != "" {
		body["warning"] = res.Warning
	}
	writeJSON(w, http.StatusOK, body)
}

// projectView is one element of the GET /api/projects response.
type projectView struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	PriceCents int64    `json:"priceCents"`
	Images     []string `json:"images"`
}

// ListProjects handles GET /api/projects?clientId=...&month=... and returns
// the projects of one invoice with their blob keys in display order.
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	month := r.URL.Query().Get("month")
	if clientID == "" || month == "" {
		writeError(w, apperr.Validation("clientId and month query parameters are required"))
		return
	}

	projects, err := h.meta.ListProjects(r.Context(), clientID, month)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}

	views := make([]projectView, 0, len(projects))
	for _, p := range projects {
		rows, err := h.meta.ListImages(r.Context(), p.ID)
		if err != nil {
			writeError(w, apperr.Internal(err))
			return
		}
		keys := make([]string, len(rows))
		for i, row := range rows {
			keys[i] = row.BlobKey
		}
		views = append(views, projectView{
			ID:         p.ID,
			Name:       p.Name,
			Category:   p.Category,
			PriceCents: p.PriceCents,
			Images:     keys,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": views})
}
