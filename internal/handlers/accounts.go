package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/jardim/internal/auth"
	"github.com/BradenHooton/jardim/internal/models"
	"github.com/BradenHooton/jardim/internal/services"
	pkghttp "github.com/BradenHooton/jardim/pkg/http"
)

// AccountServiceInterface defines the record service operations served over HTTP
type AccountServiceInterface interface {
	GetAdmin(ctx context.Context, id int64) (*models.Record, error)
	GetUserByNationalID(ctx context.Context, raw string) (*models.Record, error)
	ChangeAdminPassword(ctx context.Context, actor auth.Subject, targetID int64, req models.CredentialUpdate, meta services.RequestMeta) error
	ChangeOwnPassword(ctx context.Context, actor auth.Subject, req models.CredentialUpdate, meta services.RequestMeta) error
	Login(ctx context.Context, credential, password string, meta services.RequestMeta) (*services.LoginResult, error)
}

// Messages returned to clients. The record client surfaces them verbatim.
const (
	msgAdminNotFound  = "Administrador não encontrado"
	msgUserNotFound   = "Usuário não encontrado"
	msgWrongPassword  = "Senha atual incorreta"
	msgPasswordPolicy = "Nova senha não atende à política"
	msgInternal       = "Erro interno"
)

// AccountHandler serves lookups and password changes
type AccountHandler struct {
	service  AccountServiceInterface
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(service AccountServiceInterface, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		service:  service,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// PasswordChangeRequest is the body of both password routes
type PasswordChangeRequest struct {
	Current string `json:"senha_atual" validate:"required,max=128"`
	New     string `json:"nova_senha" validate:"required,max=128"`
}

func (r PasswordChangeRequest) update() models.CredentialUpdate {
	return models.CredentialUpdate{Current: r.Current, New: r.New}
}

// GetAdmin handles GET /admins/{id}
func (h *AccountHandler) GetAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	record, err := h.service.GetAdmin(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err, msgAdminNotFound)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, record)
}

// GetUser handles GET /users?cpf=
func (h *AccountHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	cpf := r.URL.Query().Get("cpf")
	if cpf == "" {
		pkghttp.WriteBadRequest(w, "cpf is required")
		return
	}

	record, err := h.service.GetUserByNationalID(r.Context(), cpf)
	if err != nil {
		h.writeLookupError(w, err, msgUserNotFound)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, record)
}

// ChangeAdminPassword handles PATCH /admins/{id}/password
func (h *AccountHandler) ChangeAdminPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	subject, req, ok := h.decodePasswordChange(w, r)
	if !ok {
		return
	}

	err := h.service.ChangeAdminPassword(r.Context(), subject, id, req.update(), h.meta(r))
	h.writePasswordResult(w, err, msgAdminNotFound)
}

// ChangeOwnPassword handles PATCH /users/password
func (h *AccountHandler) ChangeOwnPassword(w http.ResponseWriter, r *http.Request) {
	subject, req, ok := h.decodePasswordChange(w, r)
	if !ok {
		return
	}

	err := h.service.ChangeOwnPassword(r.Context(), subject, req.update(), h.meta(r))
	h.writePasswordResult(w, err, msgUserNotFound)
}

func (h *AccountHandler) decodePasswordChange(w http.ResponseWriter, r *http.Request) (auth.Subject, PasswordChangeRequest, bool) {
	var req PasswordChangeRequest

	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return subject, req, false
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return subject, req, false
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return subject, req, false
	}
	return subject, req, true
}

func (h *AccountHandler) writePasswordResult(w http.ResponseWriter, err error, notFound string) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, services.ErrWrongPassword):
		pkghttp.WriteBadRequest(w, msgWrongPassword)
	case errors.Is(err, services.ErrPasswordPolicy):
		pkghttp.WriteUnprocessable(w, "password_policy", msgPasswordPolicy, policyDetails(err))
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, notFound)
	default:
		h.logger.Error("password change failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, msgInternal)
	}
}

func (h *AccountHandler) writeLookupError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, notFound)
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "cpf must have 11 digits")
	default:
		h.logger.Error("account lookup failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, msgInternal)
	}
}

func (h *AccountHandler) meta(r *http.Request) services.RequestMeta {
	return services.RequestMeta{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.UserAgent(),
	}
}

// policyDetails strips the sentinel prefix, leaving the broken rules
func policyDetails(err error) string {
	msg := err.Error()
	prefix := services.ErrPasswordPolicy.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return ""
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		pkghttp.WriteBadRequest(w, "id must be a positive integer")
		return 0, false
	}
	return id, true
}
