package recordclient

import (
	"context"

	"github.com/BradenHooton/jardim/internal/models"
	"github.com/BradenHooton/jardim/internal/validation"
)

// Privileged looks records up by numeric ID and updates credentials through
// the admin routes.
type Privileged struct {
	client *Client
}

// NewPrivileged creates the privileged-account variant
func NewPrivileged(client *Client) *Privileged {
	return &Privileged{client: client}
}

func (p *Privileged) Name() string { return "privileged" }

func (p *Privileged) QueryKind() validation.QueryKind { return validation.ByID }

func (p *Privileged) SelfService() bool { return false }

func (p *Privileged) Fetch(ctx context.Context, q validation.Query) (*models.Record, error) {
	return p.client.FetchAdmin(ctx, q.ID)
}

func (p *Privileged) UpdateCredential(ctx context.Context, recordID int64, req models.CredentialUpdate) error {
	return p.client.UpdateAdminCredential(ctx, recordID, req)
}

// Standard looks records up by masked national ID and updates credentials
// through the self-service route, which always acts on the authenticated
// account whatever recordID is. Callers must only submit updates for the
// caller's own record.
type Standard struct {
	client *Client
}

// NewStandard creates the standard-account variant
func NewStandard(client *Client) *Standard {
	return &Standard{client: client}
}

func (s *Standard) Name() string { return "standard" }

func (s *Standard) QueryKind() validation.QueryKind { return validation.ByNationalID }

func (s *Standard) SelfService() bool { return true }

func (s *Standard) Fetch(ctx context.Context, q validation.Query) (*models.Record, error) {
	return s.client.FetchUserByNationalID(ctx, q.Key)
}

func (s *Standard) UpdateCredential(ctx context.Context, _ int64, req models.CredentialUpdate) error {
	return s.client.UpdateOwnCredential(ctx, req)
}
