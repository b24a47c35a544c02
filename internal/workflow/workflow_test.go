package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/jardim/internal/auth"
	"github.com/BradenHooton/jardim/internal/models"
	"github.com/BradenHooton/jardim/internal/notify"
	"github.com/BradenHooton/jardim/internal/recordclient"
	"github.com/BradenHooton/jardim/internal/validation"
	pkglogger "github.com/BradenHooton/jardim/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	adminSubject = auth.Subject{ID: 1, Role: models.RolePrivileged, Name: "Root"}
	userSubject  = auth.Subject{ID: 2, Role: models.RoleStandard, Name: "Ana", Email: "ana@example.com"}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func recordWithID(id int64) *models.Record {
	return &models.Record{ID: id, Name: "Account", Role: models.RolePrivileged}
}

func byIDStrategy() *MockStrategy {
	return &MockStrategy{
		QueryKindValue: validation.ByID,
		FetchFunc: func(ctx context.Context, q validation.Query) (*models.Record, error) {
			return recordWithID(q.ID), nil
		},
	}
}

// foundWorkflow returns a workflow already showing record 5
func foundWorkflow(t *testing.T, strategy *MockStrategy, notifier notify.Notifier) *Workflow {
	t.Helper()
	wf := New(adminSubject, strategy, notifier, discardLogger())
	wf.Show(recordWithID(5))
	return wf
}

func TestSubmitSearch_Found(t *testing.T) {
	strategy := byIDStrategy()
	wf := New(adminSubject, strategy, nil, discardLogger())

	err := wf.SubmitSearch(context.Background(), " 5 ")

	require.NoError(t, err)
	snap := wf.Snapshot()
	assert.Equal(t, Found, snap.State)
	require.NotNil(t, snap.Record)
	assert.Equal(t, int64(5), snap.Record.ID)
	assert.Empty(t, snap.Error)
}

func TestSubmitSearch_NotFound(t *testing.T) {
	queue := notify.NewQueue(0)
	strategy := &MockStrategy{
		QueryKindValue: validation.ByID,
		FetchFunc: func(ctx context.Context, q validation.Query) (*models.Record, error) {
			return nil, &recordclient.ServiceError{Kind: models.ErrNotFound, Status: http.StatusNotFound}
		},
	}
	wf := New(adminSubject, strategy, queue, discardLogger())
	wf.Show(recordWithID(3))

	err := wf.SubmitSearch(context.Background(), "99")

	assert.True(t, errors.Is(err, models.ErrNotFound))
	snap := wf.Snapshot()
	assert.Equal(t, NotFound, snap.State)
	assert.Nil(t, snap.Record, "a failed search clears the previous record")
	assert.Equal(t, MsgNotFound, snap.Error)

	notices := queue.Drain()
	require.Len(t, notices, 1)
	assert.Equal(t, notify.Failure, notices[0].Outcome)
	assert.Equal(t, MsgNotFound, notices[0].Message)
}

func TestSubmitSearch_TransportError(t *testing.T) {
	strategy := &MockStrategy{
		QueryKindValue: validation.ByID,
		FetchFunc: func(ctx context.Context, q validation.Query) (*models.Record, error) {
			return nil, &recordclient.ServiceError{Kind: models.ErrTransport}
		},
	}
	wf := New(adminSubject, strategy, nil, discardLogger())

	err := wf.SubmitSearch(context.Background(), "5")

	assert.True(t, errors.Is(err, models.ErrTransport))
	snap := wf.Snapshot()
	assert.Equal(t, Errored, snap.State)
	assert.Equal(t, MsgSearchFailed, snap.Error)
}

func TestSubmitSearch_ValidationNeverReachesNetwork(t *testing.T) {
	tests := []struct {
		name    string
		kind    validation.QueryKind
		raw     string
		wantErr error
	}{
		{"incomplete national id", validation.ByNationalID, "111.222.333-4", validation.ErrIncompleteID},
		{"blank national id", validation.ByNationalID, "", validation.ErrIncompleteID},
		{"blank id", validation.ByID, "  ", validation.ErrEmptyQuery},
		{"negative id", validation.ByID, "-4", validation.ErrInvalidID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategy := &MockStrategy{QueryKindValue: tt.kind}
			wf := New(userSubject, strategy, nil, discardLogger())

			err := wf.SubmitSearch(context.Background(), tt.raw)

			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			fetches, _ := strategy.Calls()
			assert.Zero(t, fetches)
			snap := wf.Snapshot()
			assert.Equal(t, Idle, snap.State)
			assert.Equal(t, tt.wantErr.Error(), snap.Error)
		})
	}
}

func TestSubmitSearch_SendsMaskedNationalID(t *testing.T) {
	var got validation.Query
	strategy := &MockStrategy{
		QueryKindValue: validation.ByNationalID,
		FetchFunc: func(ctx context.Context, q validation.Query) (*models.Record, error) {
			got = q
			return &models.Record{ID: 9, Name: "Ana", Role: models.RoleStandard}, nil
		},
	}
	wf := New(userSubject, strategy, nil, discardLogger())

	require.NoError(t, wf.SubmitSearch(context.Background(), "11122233344"))

	assert.Equal(t, "111.222.333-44", got.Key)
}

func TestSubmitSearch_LatestSearchWins(t *testing.T) {
	release := map[int64]chan struct{}{5: make(chan struct{}), 7: make(chan struct{})}
	started := make(chan int64, 2)
	strategy := &MockStrategy{
		QueryKindValue: validation.ByID,
		FetchFunc: func(ctx context.Context, q validation.Query) (*models.Record, error) {
			started <- q.ID
			<-release[q.ID]
			return recordWithID(q.ID), nil
		},
	}
	wf := New(adminSubject, strategy, nil, discardLogger())

	first := make(chan error, 1)
	go func() { first <- wf.SubmitSearch(context.Background(), "5") }()
	require.Equal(t, int64(5), <-started)

	second := make(chan error, 1)
	go func() { second <- wf.SubmitSearch(context.Background(), "7") }()
	require.Equal(t, int64(7), <-started)

	close(release[7])
	require.NoError(t, <-second)
	close(release[5])
	assert.ErrorIs(t, <-first, ErrSuperseded)

	snap := wf.Snapshot()
	assert.Equal(t, Found, snap.State)
	require.NotNil(t, snap.Record)
	assert.Equal(t, int64(7), snap.Record.ID)
}

func TestSubmitSearch_ShowSupersedesInFlightSearch(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	strategy := &MockStrategy{
		QueryKindValue: validation.ByID,
		FetchFunc: func(ctx context.Context, q validation.Query) (*models.Record, error) {
			close(started)
			<-release
			return recordWithID(q.ID), nil
		},
	}
	wf := New(adminSubject, strategy, nil, discardLogger())

	done := make(chan error, 1)
	go func() { done <- wf.SubmitSearch(context.Background(), "5") }()
	<-started
	wf.Show(recordWithID(1))
	close(release)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.Equal(t, int64(1), wf.Snapshot().Record.ID)
}

func TestSubmitCredentialUpdate_NoRecord(t *testing.T) {
	strategy := byIDStrategy()
	wf := New(adminSubject, strategy, nil, discardLogger())

	err := wf.SubmitCredentialUpdate(context.Background(), "abc", "abcdef", "abcdef")

	assert.ErrorIs(t, err, ErrNoRecord)
	_, updates := strategy.Calls()
	assert.Zero(t, updates)
}

func TestSubmitCredentialUpdate_TooShortNeverReachesNetwork(t *testing.T) {
	strategy := byIDStrategy()
	wf := foundWorkflow(t, strategy, nil)

	err := wf.SubmitCredentialUpdate(context.Background(), "old-secret", "abc12", "abc12")

	assert.ErrorIs(t, err, validation.ErrTooShort)
	_, updates := strategy.Calls()
	assert.Zero(t, updates)
	snap := wf.Snapshot()
	assert.Equal(t, Found, snap.State)
	assert.Equal(t, validation.ErrTooShort.Error(), snap.Error)
	form, pending := wf.PendingForm()
	assert.True(t, pending)
	assert.Equal(t, "abc12", form.New)
}

func TestSubmitCredentialUpdate_Mismatch(t *testing.T) {
	strategy := byIDStrategy()
	wf := foundWorkflow(t, strategy, nil)

	err := wf.SubmitCredentialUpdate(context.Background(), "old", "abc", "xyz")

	assert.ErrorIs(t, err, validation.ErrMismatch)
	_, updates := strategy.Calls()
	assert.Zero(t, updates)
}

func TestSubmitCredentialUpdate_Success(t *testing.T) {
	queue := notify.NewQueue(0)
	var gotID int64
	var gotReq models.CredentialUpdate
	strategy := byIDStrategy()
	strategy.UpdateCredentialFunc = func(ctx context.Context, recordID int64, req models.CredentialUpdate) error {
		gotID, gotReq = recordID, req
		return nil
	}
	wf := foundWorkflow(t, strategy, queue)

	err := wf.SubmitCredentialUpdate(context.Background(), "abc", "abcdef", "abcdef")

	require.NoError(t, err)
	assert.Equal(t, int64(5), gotID)
	assert.Equal(t, models.CredentialUpdate{Current: "abc", New: "abcdef"}, gotReq)

	snap := wf.Snapshot()
	assert.Equal(t, SubmitSucceeded, snap.State)
	assert.Equal(t, int64(5), snap.Record.ID)
	assert.Empty(t, snap.Error)
	form, pending := wf.PendingForm()
	assert.False(t, pending)
	assert.Equal(t, Form{}, form)

	fetches, _ := strategy.Calls()
	assert.Zero(t, fetches, "success must not re-fetch")

	notices := queue.Drain()
	require.Len(t, notices, 1)
	assert.Equal(t, notify.Success, notices[0].Outcome)
	assert.Equal(t, MsgUpdateSuccess, notices[0].Message)
}

func TestSubmitCredentialUpdate_RejectedCurrentSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Senha atual incorreta"}`))
	}))
	defer srv.Close()
	client := recordclient.New(srv.URL, time.Second, discardLogger())
	wf := ForSubject(adminSubject, client, nil, discardLogger())
	wf.Show(recordWithID(5))

	err := wf.SubmitCredentialUpdate(context.Background(), "abc", "abcdef", "abcdef")

	assert.True(t, errors.Is(err, models.ErrUnauthorized))
	snap := wf.Snapshot()
	assert.Equal(t, SubmitFailed, snap.State)
	assert.Equal(t, MsgBadCurrent, snap.Error)
	form, pending := wf.PendingForm()
	assert.True(t, pending)
	assert.Equal(t, Form{Current: "", New: "abcdef", Confirm: "abcdef"}, form)
}

func TestSubmitCredentialUpdate_TransportFailureKeepsFields(t *testing.T) {
	strategy := byIDStrategy()
	strategy.UpdateCredentialFunc = func(ctx context.Context, recordID int64, req models.CredentialUpdate) error {
		return &recordclient.ServiceError{Kind: models.ErrTransport, Status: http.StatusBadGateway}
	}
	wf := foundWorkflow(t, strategy, nil)

	err := wf.SubmitCredentialUpdate(context.Background(), "abc", "abcdef", "abcdef")

	assert.True(t, errors.Is(err, models.ErrTransport))
	snap := wf.Snapshot()
	assert.Equal(t, SubmitFailed, snap.State)
	assert.Equal(t, MsgUpdateFailed, snap.Error)
	form, _ := wf.PendingForm()
	assert.Equal(t, Form{Current: "abc", New: "abcdef", Confirm: "abcdef"}, form)

	// a retry from SubmitFailed is allowed
	strategy.UpdateCredentialFunc = nil
	require.NoError(t, wf.SubmitCredentialUpdate(context.Background(), "abc", "abcdef", "abcdef"))
	assert.Equal(t, SubmitSucceeded, wf.Snapshot().State)
}

func TestSubmitCredentialUpdate_BusyWhileSubmitting(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	strategy := byIDStrategy()
	strategy.UpdateCredentialFunc = func(ctx context.Context, recordID int64, req models.CredentialUpdate) error {
		close(started)
		<-release
		return nil
	}
	wf := foundWorkflow(t, strategy, nil)

	done := make(chan error, 1)
	go func() { done <- wf.SubmitCredentialUpdate(context.Background(), "abc", "abcdef", "abcdef") }()
	<-started

	assert.Equal(t, Submitting, wf.Snapshot().State)
	assert.ErrorIs(t, wf.SubmitCredentialUpdate(context.Background(), "abc", "abcdef", "abcdef"), ErrBusy)
	assert.ErrorIs(t, wf.SubmitSearch(context.Background(), "6"), ErrBusy)

	close(release)
	require.NoError(t, <-done)
	_, updates := strategy.Calls()
	assert.Equal(t, 1, updates)
}

func TestSubmitCredentialUpdate_StandardOnlyChangesOwnRecord(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":42,"nome":"Bia","email":"bia@example.com","tipo_usuario":"usuario"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	queue := notify.NewQueue(0)
	client := recordclient.New(srv.URL, time.Second, discardLogger())
	wf := ForSubject(userSubject, client, queue, discardLogger())

	require.NoError(t, wf.SubmitSearch(context.Background(), "111.222.333-44"))
	require.Equal(t, int64(42), wf.Snapshot().Record.ID)

	err := wf.SubmitCredentialUpdate(context.Background(), "abc", "abcdef", "abcdef")

	assert.ErrorIs(t, err, ErrNotOwnRecord)
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Equal(t, []string{"GET /users"}, requests, "no password change may be sent")
	snap := wf.Snapshot()
	assert.Equal(t, Found, snap.State)
	assert.Equal(t, MsgNotOwnRecord, snap.Error)
	notices := queue.Drain()
	require.NotEmpty(t, notices)
	assert.Equal(t, MsgNotOwnRecord, notices[len(notices)-1].Message)

	// the subject's own record goes through
	own := userSubject.Record()
	wf.Show(own)
	require.NoError(t, wf.SubmitCredentialUpdate(context.Background(), "abc", "abcdef", "abcdef"))
	assert.Equal(t, []string{"GET /users", "PATCH /users/password"}, requests)
	assert.Equal(t, SubmitSucceeded, wf.Snapshot().State)
}

func TestSubmitCredentialUpdate_PrivilegedUpdatesDisplayedRecord(t *testing.T) {
	var gotID int64
	strategy := byIDStrategy()
	strategy.UpdateCredentialFunc = func(ctx context.Context, recordID int64, req models.CredentialUpdate) error {
		gotID = recordID
		return nil
	}
	wf := foundWorkflow(t, strategy, nil)

	require.NoError(t, wf.SubmitCredentialUpdate(context.Background(), "abc", "abcdef", "abcdef"))
	assert.Equal(t, int64(5), gotID, "admins change the record on display, not their own")
}

func TestForSubject_SelectsStrategyByRole(t *testing.T) {
	client := recordclient.New("http://records.invalid", time.Second, discardLogger())

	admin := ForSubject(adminSubject, client, nil, discardLogger())
	user := ForSubject(userSubject, client, nil, discardLogger())

	assert.Equal(t, "privileged", admin.StrategyName())
	assert.Equal(t, validation.ByID, admin.QueryKind())
	assert.Equal(t, "standard", user.StrategyName())
	assert.Equal(t, validation.ByNationalID, user.QueryKind())
}

func TestWorkflow_AuditAndObserver(t *testing.T) {
	var buf bytes.Buffer
	audit := pkglogger.NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	observer := &RecordingObserver{}
	strategy := &MockStrategy{
		NameValue:      "standard",
		QueryKindValue: validation.ByNationalID,
		FetchFunc: func(ctx context.Context, q validation.Query) (*models.Record, error) {
			return &models.Record{ID: 9, Name: "Ana", Role: models.RoleStandard}, nil
		},
	}
	wf := New(userSubject, strategy, nil, discardLogger(), WithAuditLogger(audit), WithObserver(observer))

	require.NoError(t, wf.SubmitSearch(context.Background(), "529.982.247-25"))
	require.NoError(t, wf.SubmitCredentialUpdate(context.Background(), "abc", "abcdef", "abcdef"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "record_lookup", entry["event_type"])
	assert.Equal(t, "***.***.***-25", entry["lookup_key"])
	assert.NotContains(t, buf.String(), "529.982")

	assert.Equal(t, []ObservedCall{
		{Op: "search", Strategy: "standard", Outcome: "found"},
		{Op: "credential_update", Strategy: "standard", Outcome: "success"},
	}, observer.Calls)
}

func TestSnapshot_JSON(t *testing.T) {
	wf := foundWorkflow(t, byIDStrategy(), nil)

	data, err := json.Marshal(wf.Snapshot())

	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"found"`)
	assert.Contains(t, string(data), `"strategy":"mock"`)
}
