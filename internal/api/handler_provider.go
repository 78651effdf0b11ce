package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/fleepgift/coinledger/internal/infra/logging"
	"github.com/fleepgift/coinledger/internal/services/invoice"
)

const maxBodyBytes = 1 << 20

// LinkIssuer creates invoice links for mini-app callers.
type LinkIssuer interface {
	IssueLink(ctx context.Context, req invoice.WebAppRequest) (invoice.Issued, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HandlerProvider exposes the HTTP handlers.
type HandlerProvider struct {
	issuer LinkIssuer
	db     Pinger
	log    *slog.Logger
}

// NewHandler returns a new Handler provider. db may be nil.
func NewHandler(issuer LinkIssuer, db Pinger, log *slog.Logger) *HandlerProvider {
	return &HandlerProvider{issuer: issuer, db: db, log: logging.Or(log)}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// createInvoiceRequest is the mini-app payload. Coins is what the client
// displayed; it is accepted and ignored.
type createInvoiceRequest struct {
	Stars    int64  `json:"stars"`
	Coins    int64  `json:"coins"`
	Promo    string `json:"promo"`
	InitData string `json:"init_data"`
}

type createInvoiceResponse struct {
	InvoiceLink string `json:"invoice_link"`
	Coins       int64  `json:"coins"`
}

// --- Handlers ---

// RootHandler handles GET / for platform health probes.
func (h *HandlerProvider) RootHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// HealthHandler handles GET /healthz.
func (h *HandlerProvider) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		err := h.db.PingContext(r.Context())
		if err != nil {
			h.log.WarnContext(r.Context(), "health check: database unreachable", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})

			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PreflightHandler handles OPTIONS /create-invoice. CORS headers are set by
// the router middleware.
func (h *HandlerProvider) PreflightHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// CreateInvoiceHandler handles POST /create-invoice.
func (h *HandlerProvider) CreateInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	var req createInvoiceRequest

	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "empty body")
			return
		}

		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	out, err := h.issuer.IssueLink(r.Context(), invoice.WebAppRequest{
		InitData: req.InitData,
		Stars:    req.Stars,
		Promo:    req.Promo,
	})
	if err != nil {
		switch {
		case errors.Is(err, invoice.ErrUnauthorized):
			writeError(w, http.StatusForbidden, "unauthorized")
		case errors.Is(err, invoice.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, "missing fields")
		case errors.Is(err, invoice.ErrUnknownPackage):
			writeError(w, http.StatusBadRequest, "invalid package")
		case errors.Is(err, invoice.ErrInvalidUser):
			writeError(w, http.StatusBadRequest, "cannot parse user")
		case errors.Is(err, invoice.ErrGateway):
			writeError(w, http.StatusInternalServerError, "payment platform error")
		default:
			h.log.ErrorContext(r.Context(), "create invoice failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}

		return
	}

	writeJSON(w, http.StatusOK, createInvoiceResponse{InvoiceLink: out.Link, Coins: out.Coins})
}
