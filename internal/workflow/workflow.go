// Package workflow drives the lookup-and-edit cycle behind every account
// page: validate the query, fetch a record, show it, and optionally change
// its password.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/jardim/internal/auth"
	"github.com/BradenHooton/jardim/internal/models"
	"github.com/BradenHooton/jardim/internal/notify"
	"github.com/BradenHooton/jardim/internal/recordclient"
	"github.com/BradenHooton/jardim/internal/validation"
	pkglogger "github.com/BradenHooton/jardim/pkg/logger"
)

// Messages shown to the operator
const (
	MsgNotFound      = "no record for this query"
	MsgSearchFailed  = "could not complete the search, try again"
	MsgBadCurrent    = "current secret incorrect"
	MsgUpdateFailed  = "could not update the password, try again"
	MsgUpdateSuccess = "password updated"
	MsgNotOwnRecord  = "you can only change your own password"
)

var (
	// ErrNoRecord is returned when a credential update is attempted with no
	// record on display
	ErrNoRecord = errors.New("no record selected")
	// ErrBusy is returned while a credential update is in flight
	ErrBusy = errors.New("an update is already in progress")
	// ErrSuperseded is returned by a search whose result arrived after a
	// newer search was issued; its result was discarded
	ErrSuperseded = errors.New("search superseded by a newer one")
	// ErrNotOwnRecord is returned when a self-service strategy is asked to
	// change the password of a record other than the subject's own
	ErrNotOwnRecord = fmt.Errorf("only your own password can be changed: %w", models.ErrForbidden)
)

// Strategy is the record-service variant a workflow talks to. A
// self-service strategy updates the authenticated account's own password,
// whatever record ID it is given.
type Strategy interface {
	Name() string
	QueryKind() validation.QueryKind
	SelfService() bool
	Fetch(ctx context.Context, q validation.Query) (*models.Record, error)
	UpdateCredential(ctx context.Context, recordID int64, req models.CredentialUpdate) error
}

// Observer receives the outcome and latency of every round trip
type Observer interface {
	ObserveSearch(strategy, outcome string, d time.Duration)
	ObserveCredentialUpdate(strategy, outcome string, d time.Duration)
}

// Form holds the password fields retained between submissions
type Form struct {
	Current string `json:"current"`
	New     string `json:"new"`
	Confirm string `json:"confirm"`
}

func (f *Form) clear() {
	*f = Form{}
}

// Snapshot is a consistent copy of the workflow's visible state
type Snapshot struct {
	State       State          `json:"state"`
	Strategy    string         `json:"strategy"`
	Record      *models.Record `json:"record,omitempty"`
	Error       string         `json:"error,omitempty"`
	FormPending bool           `json:"form_pending"`
}

// Workflow is safe for concurrent use. Its lock is never held across a
// call to the record service.
type Workflow struct {
	subject  auth.Subject
	strategy Strategy
	notifier notify.Notifier
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
	observer Observer

	mu          sync.Mutex
	state       State
	record      *models.Record
	errMsg      string
	form        Form
	formPending bool
	seq         uint64
}

// Option configures a Workflow
type Option func(*Workflow)

// WithAuditLogger records lookups in the audit log
func WithAuditLogger(audit *pkglogger.AuditLogger) Option {
	return func(w *Workflow) {
		w.audit = audit
	}
}

// WithObserver reports round-trip outcomes, typically to metrics
func WithObserver(o Observer) Option {
	return func(w *Workflow) {
		w.observer = o
	}
}

// New creates a workflow acting for subject through strategy
func New(subject auth.Subject, strategy Strategy, notifier notify.Notifier, logger *slog.Logger, opts ...Option) *Workflow {
	if notifier == nil {
		notifier = notify.Discard
	}
	w := &Workflow{
		subject:  subject,
		strategy: strategy,
		notifier: notifier,
		logger:   logger.With(slog.String("strategy", strategy.Name())),
		state:    Idle,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ForSubject picks the variant matching the subject's role: admins look
// records up by ID, everyone else by national ID.
func ForSubject(subject auth.Subject, client *recordclient.Client, notifier notify.Notifier, logger *slog.Logger, opts ...Option) *Workflow {
	var strategy Strategy = recordclient.NewStandard(client)
	if subject.Privileged() {
		strategy = recordclient.NewPrivileged(client)
	}
	return New(subject, strategy, notifier, logger, opts...)
}

// Subject returns the operator the workflow acts for
func (w *Workflow) Subject() auth.Subject {
	return w.subject
}

// StrategyName returns the name of the selected variant
func (w *Workflow) StrategyName() string {
	return w.strategy.Name()
}

// QueryKind returns the kind of identifier searches expect
func (w *Workflow) QueryKind() validation.QueryKind {
	return w.strategy.QueryKind()
}

// SubmitSearch validates raw and fetches the matching record. Validation
// failures never reach the network and leave the state unchanged. A result
// that arrives after a newer search was issued is discarded and
// ErrSuperseded is returned.
func (w *Workflow) SubmitSearch(ctx context.Context, raw string) error {
	q, err := validation.ValidateSearchQuery(raw, w.strategy.QueryKind())
	if err != nil {
		w.mu.Lock()
		w.errMsg = err.Error()
		w.mu.Unlock()
		w.notify(ctx, notify.KindSearch, notify.Failure, err.Error())
		return err
	}

	w.mu.Lock()
	if w.state == Submitting {
		w.mu.Unlock()
		return ErrBusy
	}
	w.seq++
	seq := w.seq
	w.state = Searching
	w.record = nil
	w.errMsg = ""
	w.form.clear()
	w.formPending = false
	w.mu.Unlock()

	start := time.Now()
	rec, err := w.strategy.Fetch(ctx, q)
	outcome := searchOutcome(err)
	w.observeSearch(outcome, time.Since(start))

	w.mu.Lock()
	if seq != w.seq {
		w.mu.Unlock()
		w.logger.Debug("discarding stale search result",
			slog.Uint64("seq", seq),
			slog.String("outcome", outcome),
		)
		return ErrSuperseded
	}
	var msg string
	switch {
	case err == nil:
		w.state = Found
		w.record = rec
	case errors.Is(err, models.ErrNotFound):
		w.state = NotFound
		msg = MsgNotFound
	default:
		w.state = Errored
		msg = MsgSearchFailed
	}
	w.errMsg = msg
	w.mu.Unlock()

	w.auditLookup(q, err == nil)

	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			w.logger.Error("record search failed",
				slog.Int64("actor_id", w.subject.ID),
				slog.String("query_kind", q.Kind.String()),
				slog.Any("error", err),
			)
		}
		w.notify(ctx, notify.KindSearch, notify.Failure, msg)
		return err
	}
	return nil
}

// Show displays rec as if a search had just found it, superseding any
// search still in flight
func (w *Workflow) Show(rec *models.Record) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	w.state = Found
	w.record = rec
	w.errMsg = ""
	w.form.clear()
	w.formPending = false
}

// SubmitCredentialUpdate changes the password of the displayed record.
// The form is validated first; validation failures never reach the
// network. On a rejected current password only the current field is
// cleared; on other failures every field is kept for a retry.
func (w *Workflow) SubmitCredentialUpdate(ctx context.Context, current, next, confirm string) error {
	w.mu.Lock()
	if w.state == Submitting {
		w.mu.Unlock()
		return ErrBusy
	}
	if !w.state.showsRecord() || w.record == nil {
		w.mu.Unlock()
		return ErrNoRecord
	}
	if w.strategy.SelfService() && w.record.ID != w.subject.ID {
		w.errMsg = MsgNotOwnRecord
		displayed := w.record.ID
		w.mu.Unlock()
		w.logger.Warn("refusing self-service update of another record",
			slog.Int64("actor_id", w.subject.ID),
			slog.Int64("target_id", displayed),
		)
		w.notify(ctx, notify.KindCredential, notify.Failure, MsgNotOwnRecord)
		return ErrNotOwnRecord
	}

	w.form = Form{Current: current, New: next, Confirm: confirm}
	w.formPending = true
	if err := validation.ValidateCredentialUpdate(current, next, confirm); err != nil {
		w.errMsg = err.Error()
		w.mu.Unlock()
		w.notify(ctx, notify.KindCredential, notify.Failure, err.Error())
		return err
	}

	recordID := w.record.ID
	w.state = Submitting
	w.errMsg = ""
	w.mu.Unlock()

	req := models.CredentialUpdate{Current: current, New: next}
	start := time.Now()
	err := w.strategy.UpdateCredential(ctx, recordID, req)
	req.Clear()
	w.observeUpdate(updateOutcome(err), time.Since(start))

	w.mu.Lock()
	var msg string
	switch {
	case err == nil:
		w.state = SubmitSucceeded
		w.form.clear()
		w.formPending = false
	case errors.Is(err, models.ErrUnauthorized):
		w.state = SubmitFailed
		w.form.Current = ""
		msg = MsgBadCurrent
	default:
		w.state = SubmitFailed
		msg = MsgUpdateFailed
	}
	w.errMsg = msg
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("credential update failed",
			slog.Int64("actor_id", w.subject.ID),
			slog.Int64("target_id", recordID),
			slog.Any("error", err),
		)
		w.notify(ctx, notify.KindCredential, notify.Failure, msg)
		return err
	}

	w.logger.Info("credential updated",
		slog.Int64("actor_id", w.subject.ID),
		slog.Int64("target_id", recordID),
	)
	w.notify(ctx, notify.KindCredential, notify.Success, MsgUpdateSuccess)
	return nil
}

// Snapshot returns the current state, record and error message
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		State:       w.state,
		Strategy:    w.strategy.Name(),
		Record:      w.record,
		Error:       w.errMsg,
		FormPending: w.formPending,
	}
}

// PendingForm returns the password fields kept after a failed submission
func (w *Workflow) PendingForm() (Form, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form, w.formPending
}

func (w *Workflow) notify(ctx context.Context, kind notify.Kind, outcome notify.Outcome, msg string) {
	w.notifier.Notify(ctx, notify.Notice{Kind: kind, Outcome: outcome, Message: msg})
}

func (w *Workflow) auditLookup(q validation.Query, found bool) {
	if w.audit == nil {
		return
	}
	key := q.Key
	if q.Kind == validation.ByNationalID {
		key = pkglogger.SanitizedNationalID(q.Key)
	}
	w.audit.LogLookup(w.subject.ID, q.Kind.String(), key, found)
}

func (w *Workflow) observeSearch(outcome string, d time.Duration) {
	if w.observer != nil {
		w.observer.ObserveSearch(w.strategy.Name(), outcome, d)
	}
}

func (w *Workflow) observeUpdate(outcome string, d time.Duration) {
	if w.observer != nil {
		w.observer.ObserveCredentialUpdate(w.strategy.Name(), outcome, d)
	}
}

func searchOutcome(err error) string {
	switch {
	case err == nil:
		return "found"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func updateOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, models.ErrUnauthorized):
		return "rejected"
	default:
		return "error"
	}
}
