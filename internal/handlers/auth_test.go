package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/jardim/internal/handlers"
	"github.com/BradenHooton/jardim/internal/models"
	"github.com/BradenHooton/jardim/internal/services"
)

func stringReader(s string) *strings.Reader { return strings.NewReader(s) }

func TestLogin_Success(t *testing.T) {
	tests := []struct {
		name           string
		body           handlers.LoginRequest
		wantCredential string
	}{
		{"admin by cpf", handlers.LoginRequest{NationalID: " 111.222.333-44 ", Password: "abc123"}, "111.222.333-44"},
		{"user by email", handlers.LoginRequest{Email: "Ana@Example.com", Password: "abc123"}, "ana@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &handlers.MockAccountService{
				LoginFunc: func(ctx context.Context, credential, password string, meta services.RequestMeta) (*services.LoginResult, error) {
					assert.Equal(t, tt.wantCredential, credential)
					assert.Equal(t, "abc123", password)
					return &services.LoginResult{AccessToken: "tok", TokenType: "bearer", Record: &models.Record{ID: 1}}, nil
				},
			}

			w := httptest.NewRecorder()
			newAccountHandler(svc).Login(w, handlers.NewTestRequest(t, http.MethodPost, "/auth/login", tt.body))

			var resp services.LoginResult
			handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
			assert.Equal(t, "tok", resp.AccessToken)
		})
	}
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name       string
		body       handlers.LoginRequest
		wantStatus int
		wantError  string
	}{
		{"no credential", handlers.LoginRequest{Password: "abc123"}, http.StatusBadRequest, "bad_request"},
		{"both credentials", handlers.LoginRequest{NationalID: "111.222.333-44", Email: "a@b.co", Password: "abc123"}, http.StatusBadRequest, "bad_request"},
		{"bad email", handlers.LoginRequest{Email: "not-an-email", Password: "abc123"}, http.StatusBadRequest, "bad_request"},
		{"no password", handlers.LoginRequest{Email: "a@b.co"}, http.StatusBadRequest, "bad_request"},
		{"rejected", handlers.LoginRequest{Email: "a@b.co", Password: "wrong1"}, http.StatusUnauthorized, "unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newAccountHandler(&handlers.MockAccountService{}).Login(w, handlers.NewTestRequest(t, http.MethodPost, "/auth/login", tt.body))

			handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantError)
		})
	}
}
