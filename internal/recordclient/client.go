// Package recordclient talks to the record service that owns identity
// records and their credentials.
package recordclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/jardim/internal/models"
	pkglogger "github.com/BradenHooton/jardim/pkg/logger"
)

// maxBodyBytes caps how much of a response body is read
const maxBodyBytes = 1 << 20

// HTTPDoer is the minimal interface needed from an HTTP client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client performs single, independent round trips against the record
// service. It never retries and never caches.
type Client struct {
	baseURL    string
	token      string
	httpClient HTTPDoer
	logger     *slog.Logger
}

// Option configures the Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing)
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		c.httpClient = doer
	}
}

// WithToken sets the bearer token sent with every request
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New creates a client for the record service at baseURL
func New(baseURL string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ForToken returns a copy of the client that authenticates as token
func (c *Client) ForToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// FetchAdmin retrieves a privileged account by ID (GET /admins/{id})
func (c *Client) FetchAdmin(ctx context.Context, id int64) (*models.Record, error) {
	path := "/admins/" + strconv.FormatInt(id, 10)
	return c.fetch(ctx, "fetch admin", path, models.RolePrivileged)
}

// FetchUserByNationalID retrieves a standard account by its masked national
// ID (GET /users?cpf=...). The key is sent exactly as given.
func (c *Client) FetchUserByNationalID(ctx context.Context, maskedID string) (*models.Record, error) {
	path := "/users?" + url.Values{"cpf": {maskedID}}.Encode()
	return c.fetch(ctx, "fetch user", path, models.RoleStandard)
}

// UpdateAdminCredential replaces a privileged account's password
// (PATCH /admins/{id}/password)
func (c *Client) UpdateAdminCredential(ctx context.Context, id int64, req models.CredentialUpdate) error {
	path := "/admins/" + strconv.FormatInt(id, 10) + "/password"
	return c.update(ctx, "update admin credential", path, req)
}

// UpdateOwnCredential replaces the authenticated account's password
// (PATCH /users/password)
func (c *Client) UpdateOwnCredential(ctx context.Context, req models.CredentialUpdate) error {
	return c.update(ctx, "update own credential", "/users/password", req)
}

// fetch retrieves one record and checks it carries the role the route
// serves; a record of the other role is a backend fault
func (c *Client) fetch(ctx context.Context, op, path string, want models.Role) (*models.Record, error) {
	resp, body, err := c.do(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, &ServiceError{Kind: models.ErrNotFound, Op: op, Status: resp.StatusCode, Detail: errorDetail(body)}
	default:
		return nil, transportError(op, resp.StatusCode, errorDetail(body), nil)
	}

	var record models.Record
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, transportError(op, resp.StatusCode, "", fmt.Errorf("failed to decode record: %w", err))
	}
	if record.ID <= 0 {
		return nil, transportError(op, resp.StatusCode, "", fmt.Errorf("record has no id"))
	}
	if _, err := models.ParseRole(string(record.Role)); err != nil {
		return nil, transportError(op, resp.StatusCode, "", err)
	}
	if record.Role != want {
		return nil, transportError(op, resp.StatusCode, "", fmt.Errorf("expected a %q record, got %q", want, record.Role))
	}

	return &record, nil
}

func (c *Client) update(ctx context.Context, op, path string, req models.CredentialUpdate) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return transportError(op, 0, "", fmt.Errorf("failed to encode request: %w", err))
	}

	resp, body, err := c.do(ctx, op, http.MethodPatch, path, payload)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnauthorized:
		return &ServiceError{Kind: models.ErrUnauthorized, Op: op, Status: resp.StatusCode, Detail: errorDetail(body)}
	default:
		return transportError(op, resp.StatusCode, errorDetail(body), nil)
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, payload []byte) (*http.Response, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, transportError(op, 0, "", fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("record service request failed",
			slog.String("op", op),
			slog.String("method", method),
			slog.Any("error", err),
		)
		return nil, nil, transportError(op, 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, transportError(op, resp.StatusCode, "", fmt.Errorf("failed to read response: %w", err))
	}

	c.logger.Debug("record service request",
		slog.String("op", op),
		slog.String("method", method),
		slog.String("path", redactPath(path)),
		slog.Int("status", resp.StatusCode),
		slog.String("duration", time.Since(start).String()),
	)

	return resp, body, nil
}

// errorDetail extracts a human-readable message from an error body. Both
// {"detail": "..."} and {"error": "...", "message": "..."} shapes are
// understood; anything else yields "".
func errorDetail(body []byte) string {
	var parsed struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}

	var detail string
	if len(parsed.Detail) > 0 && json.Unmarshal(parsed.Detail, &detail) == nil && detail != "" {
		return detail
	}
	return parsed.Message
}

func redactPath(path string) string {
	base, rawQuery, found := strings.Cut(path, "?")
	if !found {
		return path
	}
	return base + "?" + pkglogger.SanitizeQuery(rawQuery)
}
