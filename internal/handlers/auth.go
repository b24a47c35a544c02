package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/BradenHooton/jardim/internal/models"
	pkghttp "github.com/BradenHooton/jardim/pkg/http"
)

// LoginRequest is the body of POST /auth/login. Privileged accounts log in
// with cpf, standard accounts with email; exactly one must be set.
type LoginRequest struct {
	NationalID string `json:"cpf" validate:"required_without=Email,excluded_with=Email,max=14"`
	Email      string `json:"email" validate:"required_without=NationalID,omitempty,email,max=254"`
	Password   string `json:"senha" validate:"required,max=128"`
}

// Login handles POST /auth/login
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	credential := strings.TrimSpace(req.NationalID)
	if req.Email != "" {
		credential = strings.ToLower(strings.TrimSpace(req.Email))
	}

	result, err := h.service.Login(r.Context(), credential, req.Password, h.meta(r))
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Authentication failed")
			return
		}
		pkghttp.WriteInternalError(w, msgInternal)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}
