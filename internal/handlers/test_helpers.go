package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/jardim/internal/auth"
	"github.com/BradenHooton/jardim/internal/models"
	"github.com/BradenHooton/jardim/internal/services"
	pkghttp "github.com/BradenHooton/jardim/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithSubjectContext authenticates req as subject
func WithSubjectContext(req *http.Request, subject auth.Subject) *http.Request {
	return req.WithContext(auth.WithSubject(req.Context(), subject))
}

// WithURLParam sets a chi URL parameter on req
func WithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAccountService implements AccountServiceInterface for testing
type MockAccountService struct {
	GetAdminFunc            func(ctx context.Context, id int64) (*models.Record, error)
	GetUserByNationalIDFunc func(ctx context.Context, raw string) (*models.Record, error)
	ChangeAdminPasswordFunc func(ctx context.Context, actor auth.Subject, targetID int64, req models.CredentialUpdate, meta services.RequestMeta) error
	ChangeOwnPasswordFunc   func(ctx context.Context, actor auth.Subject, req models.CredentialUpdate, meta services.RequestMeta) error
	LoginFunc               func(ctx context.Context, credential, password string, meta services.RequestMeta) (*services.LoginResult, error)
}

func (m *MockAccountService) GetAdmin(ctx context.Context, id int64) (*models.Record, error) {
	if m.GetAdminFunc != nil {
		return m.GetAdminFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountService) GetUserByNationalID(ctx context.Context, raw string) (*models.Record, error) {
	if m.GetUserByNationalIDFunc != nil {
		return m.GetUserByNationalIDFunc(ctx, raw)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountService) ChangeAdminPassword(ctx context.Context, actor auth.Subject, targetID int64, req models.CredentialUpdate, meta services.RequestMeta) error {
	if m.ChangeAdminPasswordFunc != nil {
		return m.ChangeAdminPasswordFunc(ctx, actor, targetID, req, meta)
	}
	return nil
}

func (m *MockAccountService) ChangeOwnPassword(ctx context.Context, actor auth.Subject, req models.CredentialUpdate, meta services.RequestMeta) error {
	if m.ChangeOwnPasswordFunc != nil {
		return m.ChangeOwnPasswordFunc(ctx, actor, req, meta)
	}
	return nil
}

func (m *MockAccountService) Login(ctx context.Context, credential, password string, meta services.RequestMeta) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, credential, password, meta)
	}
	return nil, models.ErrUnauthorized
}

// MockHealthChecker implements HealthChecker for testing
type MockHealthChecker struct {
	Err error
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	return m.Err
}
