package console

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BradenHooton/jardim/internal/auth"
	"github.com/BradenHooton/jardim/internal/models"
	"github.com/BradenHooton/jardim/internal/notify"
	"github.com/BradenHooton/jardim/internal/workflow"
	"github.com/BradenHooton/jardim/pkg/nationalid"
)

// Kind names a console page
type Kind string

const (
	KindAccountDetails Kind = "account-details"
	KindManageAdmins   Kind = "manage-admins"
	KindManageUsers    Kind = "manage-users"
)

// Notice texts
const (
	MsgDetailsIncomplete = "could not load all account details"
	MsgDeleteAdmin       = "administrators can only be removed directly in the database"
	MsgDeleteUser        = "removing users is not available yet"
	MsgDeleteAccount     = "closing your own account is not available yet"
	MsgLookupOnly        = "this page only looks records up"
	MsgNoSearch          = "this page shows your own account only"
)

var (
	// ErrRestricted is returned when a standard subject opens an operator page
	ErrRestricted = fmt.Errorf("restricted area: %w", models.ErrForbidden)
	// ErrPageNotFound is returned for unknown, expired or foreign pages
	ErrPageNotFound = fmt.Errorf("page not found: %w", models.ErrNotFound)
	// ErrUnknownKind is returned when opening a page of an unknown kind
	ErrUnknownKind = fmt.Errorf("unknown page kind: %w", models.ErrNotFound)
	// ErrTooManyPages is returned when the registry is full
	ErrTooManyPages = errors.New("too many open pages")
	// ErrLookupOnly is returned for credential updates on lookup-only pages
	ErrLookupOnly = fmt.Errorf("page is lookup-only: %w", models.ErrForbidden)
	// ErrNoSearch is returned for searches on account-details pages
	ErrNoSearch = fmt.Errorf("page has no search: %w", models.ErrForbidden)
)

// ParseKind converts a path segment into a Kind
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindAccountDetails, KindManageAdmins, KindManageUsers:
		return Kind(s), nil
	default:
		return "", ErrUnknownKind
	}
}

// restricted reports whether only privileged subjects may open the kind
func (k Kind) restricted() bool {
	return k == KindManageAdmins || k == KindManageUsers
}

// Page is one open console page: a workflow plus the notices it produced
type Page struct {
	ID      string
	Kind    Kind
	Subject auth.Subject

	workflow *workflow.Workflow
	notices  *notify.Queue
	notifier notify.Notifier

	mu       sync.Mutex
	lastSeen time.Time
}

// View is what the console returns for a page. NationalIDDisplay is the
// displayed record's national ID, masked, or nationalid.NotProvided when
// the record carries none.
type View struct {
	ID                string            `json:"id"`
	Kind              Kind              `json:"kind"`
	QueryKind         string            `json:"query_kind"`
	CanSearch         bool              `json:"can_search"`
	CanUpdate         bool              `json:"can_update"`
	Workflow          workflow.Snapshot `json:"workflow"`
	NationalIDDisplay string            `json:"national_id_display,omitempty"`
	Form              *workflow.Form    `json:"form,omitempty"`
	Notices           []notify.Notice   `json:"notices"`
}

// View returns the page state and drains its pending notices
func (p *Page) View() View {
	v := View{
		ID:        p.ID,
		Kind:      p.Kind,
		QueryKind: p.workflow.QueryKind().String(),
		CanSearch: p.Kind != KindAccountDetails,
		CanUpdate: p.Kind != KindManageUsers,
		Workflow:  p.workflow.Snapshot(),
		Notices:   p.notices.Drain(),
	}
	if rec := v.Workflow.Record; rec != nil {
		v.NationalIDDisplay = displayNationalID(rec)
	}
	if form, ok := p.workflow.PendingForm(); ok {
		v.Form = &form
	}
	return v
}

func displayNationalID(rec *models.Record) string {
	if rec.NationalID == nil {
		return nationalid.NotProvided
	}
	return nationalid.Display(*rec.NationalID)
}

// Search runs a lookup on the page's workflow. Account-details pages only
// show the subject's own record and refuse searches.
func (p *Page) Search(ctx context.Context, raw string) error {
	if p.Kind == KindAccountDetails {
		return ErrNoSearch
	}
	return p.workflow.SubmitSearch(ctx, raw)
}

// UpdateCredential changes the password of the record on display
func (p *Page) UpdateCredential(ctx context.Context, current, next, confirm string) error {
	if p.Kind == KindManageUsers {
		p.notifier.Notify(ctx, notify.Notice{Kind: notify.KindCredential, Outcome: notify.Info, Message: MsgLookupOnly})
		return ErrLookupOnly
	}
	return p.workflow.SubmitCredentialUpdate(ctx, current, next, confirm)
}

// RequestDelete reports why the record on display cannot be removed.
// Nothing is ever deleted from the console.
func (p *Page) RequestDelete(ctx context.Context) {
	msg := MsgDeleteAccount
	switch p.Kind {
	case KindManageAdmins:
		msg = MsgDeleteAdmin
	case KindManageUsers:
		msg = MsgDeleteUser
	}
	p.notifier.Notify(ctx, notify.Notice{Kind: notify.KindDelete, Outcome: notify.Info, Message: msg})
}

// load runs the first fetch of an account-details page. Privileged subjects
// look their own record up; everyone else shows the session record, which
// is also the fallback when the lookup fails.
func (p *Page) load(ctx context.Context) {
	if p.Kind != KindAccountDetails {
		return
	}
	if p.Subject.Privileged() {
		err := p.workflow.SubmitSearch(ctx, fmt.Sprint(p.Subject.ID))
		if err == nil || errors.Is(err, workflow.ErrSuperseded) {
			return
		}
		p.notifier.Notify(ctx, notify.Notice{Kind: notify.KindAccount, Outcome: notify.Failure, Message: MsgDetailsIncomplete})
	}
	p.workflow.Show(p.Subject.Record())
}

func (p *Page) touch(now time.Time) {
	p.mu.Lock()
	p.lastSeen = now
	p.mu.Unlock()
}

func (p *Page) idleSince() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}
