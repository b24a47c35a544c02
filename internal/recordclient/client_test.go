package recordclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/jardim/internal/models"
	"github.com/BradenHooton/jardim/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)), WithToken("test-token"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestClient_FetchAdmin_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/admins/11", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id": 11, "nome": "Admin", "cpf": "111.222.333-44", "tipo_usuario": "admin",
		})
	})

	record, err := client.FetchAdmin(context.Background(), 11)

	require.NoError(t, err)
	assert.Equal(t, int64(11), record.ID)
	assert.Equal(t, "Admin", record.Name)
	require.NotNil(t, record.NationalID)
	assert.Equal(t, "111.222.333-44", *record.NationalID)
	assert.Nil(t, record.Email)
	assert.Equal(t, models.RolePrivileged, record.Role)
}

func TestClient_FetchUserByNationalID_SendsMaskedKeyVerbatim(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, "cpf=111.222.333-44", r.URL.RawQuery)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id": 12, "nome": "Ana", "email": "ana@example.com", "tipo_usuario": "usuario",
		})
	})

	record, err := client.FetchUserByNationalID(context.Background(), "111.222.333-44")

	require.NoError(t, err)
	assert.Equal(t, int64(12), record.ID)
	require.NotNil(t, record.Email)
	assert.Equal(t, "ana@example.com", *record.Email)
	assert.Equal(t, models.RoleStandard, record.Role)
}

func TestClient_Fetch_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Usuário não encontrado"})
	})

	record, err := client.FetchAdmin(context.Background(), 99)

	assert.Nil(t, record)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Equal(t, "Usuário não encontrado", se.Detail)
}

func TestClient_Fetch_TransportFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": "boom"})
		}},
		{"unauthorized fetch", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "message": "no token"})
		}},
		{"undecodable body", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("<html>"))
		}},
		{"unknown role", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"id": 1, "nome": "X", "tipo_usuario": "root"})
		}},
		{"missing id", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"nome": "X", "tipo_usuario": "admin"})
		}},
		{"standard record on the admin route", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"id": 1, "nome": "Ana", "email": "ana@example.com", "tipo_usuario": "usuario"})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)

			record, err := client.FetchAdmin(context.Background(), 1)

			assert.Nil(t, record)
			assert.True(t, errors.Is(err, models.ErrTransport), "got %v", err)
			assert.False(t, errors.Is(err, models.ErrNotFound))
		})
	}
}

func TestClient_FetchUserByNationalID_RejectsAdminRecord(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": 11, "nome": "Admin", "cpf": "111.222.333-44", "tipo_usuario": "admin"})
	})

	record, err := client.FetchUserByNationalID(context.Background(), "111.222.333-44")

	assert.Nil(t, record)
	assert.True(t, errors.Is(err, models.ErrTransport), "got %v", err)
}

func TestClient_Fetch_NetworkFailure(t *testing.T) {
	client := New("http://records.invalid", time.Second, slog.Default(), WithHTTPClient(failingDoer{}))

	_, err := client.FetchUserByNationalID(context.Background(), "111.222.333-44")

	assert.True(t, errors.Is(err, models.ErrTransport))
	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 0, se.Status)
}

func TestClient_UpdateAdminCredential_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/admins/11/password", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "abc", body["senha_atual"])
		assert.Equal(t, "abcdef", body["nova_senha"])
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.UpdateAdminCredential(context.Background(), 11, models.CredentialUpdate{Current: "abc", New: "abcdef"})

	assert.NoError(t, err)
}

func TestClient_UpdateCredential_Rejected(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized} {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, status, map[string]string{"detail": "Senha atual incorreta"})
		})

		err := client.UpdateOwnCredential(context.Background(), models.CredentialUpdate{Current: "abc", New: "abcdef"})

		assert.True(t, errors.Is(err, models.ErrUnauthorized), "status %d", status)
		var se *ServiceError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "Senha atual incorreta", se.Detail)
	}
}

func TestClient_UpdateCredential_TransportFailure(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusBadGateway} {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})

		err := client.UpdateAdminCredential(context.Background(), 11, models.CredentialUpdate{Current: "abc", New: "abcdef"})

		assert.True(t, errors.Is(err, models.ErrTransport), "status %d", status)
	}
}

func TestClient_ForToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer operator-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.ForToken("operator-token").UpdateOwnCredential(context.Background(), models.CredentialUpdate{Current: "abc", New: "abcdef"})

	assert.NoError(t, err)
}

func TestStandard_UsesNationalIDAndSelfServiceRoutes(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.RequestURI())
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, map[string]interface{}{"id": 12, "nome": "Ana", "tipo_usuario": "usuario"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	strategy := NewStandard(client)

	assert.Equal(t, validation.ByNationalID, strategy.QueryKind())
	assert.True(t, strategy.SelfService())
	_, err := strategy.Fetch(context.Background(), validation.Query{Kind: validation.ByNationalID, Key: "111.222.333-44"})
	require.NoError(t, err)
	require.NoError(t, strategy.UpdateCredential(context.Background(), 12, models.CredentialUpdate{Current: "a", New: "abcdef"}))

	assert.Equal(t, []string{"GET /users?cpf=111.222.333-44", "PATCH /users/password"}, paths)
}

func TestPrivileged_UsesIDRoutes(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.RequestURI())
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, map[string]interface{}{"id": 5, "nome": "Root", "tipo_usuario": "admin"})
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	strategy := NewPrivileged(client)

	assert.Equal(t, validation.ByID, strategy.QueryKind())
	assert.False(t, strategy.SelfService())
	_, err := strategy.Fetch(context.Background(), validation.Query{Kind: validation.ByID, Key: "5", ID: 5})
	require.NoError(t, err)
	require.NoError(t, strategy.UpdateCredential(context.Background(), 5, models.CredentialUpdate{Current: "a", New: "abcdef"}))

	assert.Equal(t, []string{"GET /admins/5", "PATCH /admins/5/password"}, paths)
}
