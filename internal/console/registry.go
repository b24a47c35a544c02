// Package console keeps the open account pages of the console server and
// the background reaper that expires idle ones.
package console

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BradenHooton/jardim/internal/auth"
	"github.com/BradenHooton/jardim/internal/notify"
	"github.com/BradenHooton/jardim/internal/recordclient"
	"github.com/BradenHooton/jardim/internal/workflow"
	pkglogger "github.com/BradenHooton/jardim/pkg/logger"
)

// Config bounds the registry
type Config struct {
	PageTTL         time.Duration
	MaxPages        int
	NoticeQueueSize int
}

// PageMetrics counts pages as they open and close
type PageMetrics interface {
	PageOpened()
	PageClosed(reaped bool)
}

// StrategyFunc builds the record service variant for a page
type StrategyFunc func(kind Kind, subject auth.Subject, token string) workflow.Strategy

// Registry owns every open page. Pages are private to the subject that
// opened them.
type Registry struct {
	cfg        Config
	strategies StrategyFunc
	logger     *slog.Logger
	audit      *pkglogger.AuditLogger
	observer   workflow.Observer
	metrics    PageMetrics
	now        func() time.Time

	mu    sync.Mutex
	pages map[string]*Page
}

// Option configures the Registry
type Option func(*Registry)

// WithAuditLogger is passed on to every page workflow
func WithAuditLogger(audit *pkglogger.AuditLogger) Option {
	return func(r *Registry) { r.audit = audit }
}

// WithObserver is passed on to every page workflow
func WithObserver(o workflow.Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// WithPageMetrics reports page counts
func WithPageMetrics(m PageMetrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithStrategies replaces how pages reach the record service (for testing)
func WithStrategies(fn StrategyFunc) Option {
	return func(r *Registry) { r.strategies = fn }
}

// WithClock sets the time source (for testing)
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a registry whose pages talk to the record service
// through client, authenticated with the token of the subject opening them
func NewRegistry(client *recordclient.Client, cfg Config, logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		cfg:        cfg,
		strategies: ClientStrategies(client),
		logger:     logger,
		now:        time.Now,
		pages:      make(map[string]*Page),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ClientStrategies picks the variant per page kind: manage-admins looks up
// by ID, manage-users by national ID, and account-details follows the
// subject's role.
func ClientStrategies(client *recordclient.Client) StrategyFunc {
	return func(kind Kind, subject auth.Subject, token string) workflow.Strategy {
		c := client.ForToken(token)
		switch {
		case kind == KindManageAdmins:
			return recordclient.NewPrivileged(c)
		case kind == KindManageUsers:
			return recordclient.NewStandard(c)
		case subject.Privileged():
			return recordclient.NewPrivileged(c)
		default:
			return recordclient.NewStandard(c)
		}
	}
}

// Open creates a page of kind for subject. Account-details pages perform
// their first fetch before Open returns.
func (r *Registry) Open(ctx context.Context, subject auth.Subject, token string, kind Kind) (*Page, error) {
	if kind.restricted() && !subject.Privileged() {
		return nil, ErrRestricted
	}

	queue := notify.NewQueue(r.cfg.NoticeQueueSize)
	notifier := notify.Fanout{queue, notify.NewLogger(r.logger)}

	var opts []workflow.Option
	if r.audit != nil {
		opts = append(opts, workflow.WithAuditLogger(r.audit))
	}
	if r.observer != nil {
		opts = append(opts, workflow.WithObserver(r.observer))
	}

	page := &Page{
		ID:       uuid.NewString(),
		Kind:     kind,
		Subject:  subject,
		workflow: workflow.New(subject, r.strategies(kind, subject, token), notifier, r.logger, opts...),
		notices:  queue,
		notifier: notifier,
		lastSeen: r.now(),
	}

	r.mu.Lock()
	if r.cfg.MaxPages > 0 && len(r.pages) >= r.cfg.MaxPages {
		r.mu.Unlock()
		return nil, ErrTooManyPages
	}
	r.pages[page.ID] = page
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.PageOpened()
	}
	r.logger.Debug("page opened",
		slog.String("page_id", page.ID),
		slog.String("kind", string(kind)),
		slog.Int64("subject_id", subject.ID))

	page.load(ctx)
	return page, nil
}

// Get returns the subject's page id and marks it as seen
func (r *Registry) Get(subject auth.Subject, id string) (*Page, error) {
	r.mu.Lock()
	page, ok := r.pages[id]
	r.mu.Unlock()

	if !ok || page.Subject.ID != subject.ID {
		return nil, ErrPageNotFound
	}
	page.touch(r.now())
	return page, nil
}

// Close tears the subject's page id down, discarding its record
func (r *Registry) Close(subject auth.Subject, id string) error {
	r.mu.Lock()
	page, ok := r.pages[id]
	if !ok || page.Subject.ID != subject.ID {
		r.mu.Unlock()
		return ErrPageNotFound
	}
	delete(r.pages, id)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.PageClosed(false)
	}
	return nil
}

// Reap closes every page idle for longer than the TTL and returns how many
// were closed
func (r *Registry) Reap() int {
	cutoff := r.now().Add(-r.cfg.PageTTL)

	r.mu.Lock()
	var expired []string
	for id, page := range r.pages {
		if page.idleSince().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(r.pages, id)
	}
	r.mu.Unlock()

	if r.metrics != nil {
		for range expired {
			r.metrics.PageClosed(true)
		}
	}
	return len(expired)
}

// Len returns the number of open pages
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pages)
}
