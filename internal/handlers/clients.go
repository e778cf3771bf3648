package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/invoicedeck/invoicedeck/internal/apperr"
	"github.com/invoicedeck/invoicedeck/internal/metadata"
	"github.com/invoicedeck/invoicedeck/internal/uid"
)

// ClientHandler serves client and invoice-month CRUD. These are plain row
// operations with no blob side: deleting a client or invoice month is refused
// while projects still reference it, so no saga is needed here.
type ClientHandler struct {
	meta metadata.Store
}

// NewClientHandler creates a ClientHandler backed by the given store.
func NewClientHandler(meta metadata.Store) *ClientHandler {
	return &ClientHandler{meta: meta}
}

// clientView is one element of the GET /api/clients response.
type clientView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

// ListClients handles GET /api/clients.
func (h *ClientHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.meta.ListClients(r.Context())
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	views := make([]clientView, len(clients))
	for i, c := range clients {
		views[i] = clientView{
			ID:        c.ID,
			Name:      c.Name,
			CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": views})
}

// CreateClient handles POST /api/new/client.
func (h *ClientHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, apperr.Validation("name is required"))
		return
	}

	c := &metadata.ClientRecord{
		ID:        uid.New(),
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.meta.CreateClient(r.Context(), c); err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": c.ID})
}

// DeleteClient handles DELETE /api/client/{id}. Refused while any project
// still belongs to the client.
func (h *ClientHandler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	n, err := h.meta.CountProjects(r.Context(), id, "")
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	if n > 0 {
		writeError(w, apperr.Validation("client has %d projects; delete them first", n))
		return
	}

	ok, err := h.meta.DeleteClient(r.Context(), id)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	if !ok {
		writeError(w, apperr.NotFound("client %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// invoiceView is one element of the GET /api/client-invoices/{clientId}
// response.
type invoiceView struct {
	ID     string `json:"id"`
	Month  string `json:"month"`
	Status string `json:"status"`
}

// ListInvoices handles GET /api/client-invoices/{clientId}.
func (h *ClientHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientId")

	invoices, err := h.meta.ListInvoices(r.Context(), clientID)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	views := make([]invoiceView, len(invoices))
	for i, inv := range invoices {
		views[i] = invoiceView{ID: inv.ID, Month: inv.Month, Status: inv.Status}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": views})
}

// InvoiceDetails handles GET /api/invoice-details?clientId=...&month=... and
// returns the client and invoice the dashboard header renders, including the
// payment status.
func (h *ClientHandler) InvoiceDetails(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	month := r.URL.Query().Get("month")
	if clientID == "" || month == "" {
		writeError(w, apperr.Validation("clientId and month query parameters are required"))
		return
	}

	client, err := h.meta.GetClient(r.Context(), clientID)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	if client == nil {
		writeError(w, apperr.NotFound("client %s not found", clientID))
		return
	}
	inv, err := h.meta.GetInvoice(r.Context(), clientID, month)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	if inv == nil {
		writeError(w, apperr.NotFound("invoice %s/%s not found", clientID, month))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"client": map[string]any{
			"id":   client.ID,
			"name": client.Name,
		},
		"invoice": map[string]any{
			"id":             inv.ID,
			"month":          inv.Month,
			"payment_status": inv.Status,
		},
	}})
}

// UpdateInvoiceStatus handles POST /api/update/invoice-status, toggling an
// invoice between PENDING and PAID.
func (h *ClientHandler) UpdateInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID string `json:"clientId"`
		Month    string `json:"month"`
		Status   string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ClientID == "" || req.Month == "" {
		writeError(w, apperr.Validation("clientId and month are required"))
		return
	}
	status := strings.ToUpper(req.Status)
	if status != metadata.InvoiceStatusPending && status != metadata.InvoiceStatusPaid {
		writeError(w, apperr.Validation("status must be %s or %s",
			metadata.InvoiceStatusPending, metadata.InvoiceStatusPaid))
		return
	}

	ok, err := h.meta.UpdateInvoiceStatus(r.Context(), req.ClientID, req.Month, status)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	if !ok {
		writeError(w, apperr.NotFound("invoice %s/%s not found", req.ClientID, req.Month))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": status})
}

// CreateInvoice handles POST /api/new/invoice. Months are "YYYY-MM" strings,
// unique per client.
func (h *ClientHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID string `json:"clientId"`
		Month    string `json:"month"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ClientID == "" || req.Month == "" {
		writeError(w, apperr.Validation("clientId and month are required"))
		return
	}

	inv := &metadata.InvoiceRecord{
		ID:        uid.New(),
		ClientID:  req.ClientID,
		Month:     req.Month,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.meta.CreateInvoice(r.Context(), inv); err != nil {
		writeError(w, apperr.Validation("invoice for %s already exists or client is unknown", req.Month))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": inv.ID})
}

// DeleteInvoice handles DELETE /api/invoice?clientId=...&month=... . Refused
// while the invoice month still has projects.
func (h *ClientHandler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	month := r.URL.Query().Get("month")
	if clientID == "" || month == "" {
		writeError(w, apperr.Validation("clientId and month query parameters are required"))
		return
	}

	n, err := h.meta.CountProjects(r.Context(), clientID, month)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	if n > 0 {
		writeError(w, apperr.Validation("invoice has %d projects; delete them first", n))
		return
	}

	invoices, err := h.meta.ListInvoices(r.Context(), clientID)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	for _, inv := range invoices {
		if inv.Month == month {
			ok, err := h.meta.DeleteInvoice(r.Context(), inv.ID)
			if err != nil {
				writeError(w, apperr.Internal(err))
				return
			}
			if ok {
				writeJSON(w, http.StatusOK, map[string]any{"success": true})
				return
			}
			break
		}
	}
	writeError(w, apperr.NotFound("invoice %s/%s not found", clientID, month))
}
