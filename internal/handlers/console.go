package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/jardim/internal/auth"
	"github.com/BradenHooton/jardim/internal/console"
	"github.com/BradenHooton/jardim/internal/validation"
	"github.com/BradenHooton/jardim/internal/workflow"
	pkghttp "github.com/BradenHooton/jardim/pkg/http"
	"github.com/BradenHooton/jardim/pkg/nationalid"
)

// PageRegistry defines the page operations served by the console
type PageRegistry interface {
	Open(ctx context.Context, subject auth.Subject, token string, kind console.Kind) (*console.Page, error)
	Get(subject auth.Subject, id string) (*console.Page, error)
	Close(subject auth.Subject, id string) error
}

// ConsoleHandler serves the console page API
type ConsoleHandler struct {
	pages  PageRegistry
	logger *slog.Logger
}

// NewConsoleHandler creates a new ConsoleHandler
func NewConsoleHandler(pages PageRegistry, logger *slog.Logger) *ConsoleHandler {
	return &ConsoleHandler{pages: pages, logger: logger}
}

// SearchRequest is the body of POST /pages/{id}/search
type SearchRequest struct {
	Query string `json:"query" validate:"max=64"`
}

// CredentialRequest is the body of POST /pages/{id}/credential
type CredentialRequest struct {
	Current string `json:"current" validate:"max=128"`
	New     string `json:"new" validate:"max=128"`
	Confirm string `json:"confirm" validate:"max=128"`
}

// NationalIDFormat is returned by GET /format/national-id
type NationalIDFormat struct {
	Display  string `json:"display"`
	Complete bool   `json:"complete"`
}

// OpenPage handles POST /pages/{kind}
func (h *ConsoleHandler) OpenPage(w http.ResponseWriter, r *http.Request) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}
	kind, err := console.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		pkghttp.WriteNotFound(w, "unknown page")
		return
	}

	page, err := h.pages.Open(r.Context(), subject, auth.TokenFromContext(r.Context()), kind)
	if err != nil {
		h.writePageError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, page.View())
}

// GetPage handles GET /pages/{id}. Pending notices are drained.
func (h *ConsoleHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.page(w, r)
	if !ok {
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, page.View())
}

// ClosePage handles DELETE /pages/{id}
func (h *ConsoleHandler) ClosePage(w http.ResponseWriter, r *http.Request) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}
	if err := h.pages.Close(subject, chi.URLParam(r, "id")); err != nil {
		h.writePageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles POST /pages/{id}/search. Lookup outcomes, including "not
// found" and service failures, are reported in the page state.
func (h *ConsoleHandler) Search(w http.ResponseWriter, r *http.Request) {
	page, ok := h.page(w, r)
	if !ok {
		return
	}
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := page.Search(r.Context(), req.Query)
	h.writeActionResult(w, page, err)
}

// UpdateCredential handles POST /pages/{id}/credential
func (h *ConsoleHandler) UpdateCredential(w http.ResponseWriter, r *http.Request) {
	page, ok := h.page(w, r)
	if !ok {
		return
	}
	var req CredentialRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := page.UpdateCredential(r.Context(), req.Current, req.New, req.Confirm)
	h.writeActionResult(w, page, err)
}

// RequestDelete handles POST /pages/{id}/delete. Nothing is deleted; the
// reason is returned as a notice.
func (h *ConsoleHandler) RequestDelete(w http.ResponseWriter, r *http.Request) {
	page, ok := h.page(w, r)
	if !ok {
		return
	}
	page.RequestDelete(r.Context())
	pkghttp.WriteJSON(w, http.StatusOK, page.View())
}

// FormatNationalID handles GET /format/national-id?value=
func (h *ConsoleHandler) FormatNationalID(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("value")
	pkghttp.WriteJSON(w, http.StatusOK, NationalIDFormat{
		Display:  nationalid.Mask(value),
		Complete: nationalid.Complete(value),
	})
}

func (h *ConsoleHandler) page(w http.ResponseWriter, r *http.Request) (*console.Page, bool) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return nil, false
	}
	page, err := h.pages.Get(subject, chi.URLParam(r, "id"))
	if err != nil {
		h.writePageError(w, err)
		return nil, false
	}
	return page, true
}

// writeActionResult answers a search or credential submission. Local
// validation failures are 400s; conflicts with another submission are
// 409s; everything the record service answered is a 200 with the state.
func (h *ConsoleHandler) writeActionResult(w http.ResponseWriter, page *console.Page, err error) {
	switch {
	case err == nil:
	case validation.IsValidationError(err):
		pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "validation_failed", err.Error(), "")
		return
	case errors.Is(err, workflow.ErrBusy), errors.Is(err, workflow.ErrSuperseded), errors.Is(err, workflow.ErrNoRecord):
		pkghttp.WriteConflict(w, err.Error())
		return
	case errors.Is(err, console.ErrLookupOnly):
		pkghttp.WriteForbidden(w, console.MsgLookupOnly)
		return
	case errors.Is(err, console.ErrNoSearch):
		pkghttp.WriteForbidden(w, console.MsgNoSearch)
		return
	case errors.Is(err, workflow.ErrNotOwnRecord):
		pkghttp.WriteForbidden(w, workflow.MsgNotOwnRecord)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, page.View())
}

func (h *ConsoleHandler) writePageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, console.ErrRestricted):
		pkghttp.WriteForbidden(w, "restricted area")
	case errors.Is(err, console.ErrPageNotFound):
		pkghttp.WriteNotFound(w, "page not found")
	case errors.Is(err, console.ErrTooManyPages):
		pkghttp.WriteTooManyRequests(w, "too many open pages")
	default:
		h.logger.Error("console page operation failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, msgInternal)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}
	if err := ValidateRequest(v); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return false
	}
	return true
}
