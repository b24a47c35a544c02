package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/jardim/internal/models"
	"github.com/BradenHooton/jardim/internal/validation"
)

// MockStrategy implements Strategy for testing
type MockStrategy struct {
	NameValue            string
	QueryKindValue       validation.QueryKind
	SelfServiceValue     bool
	FetchFunc            func(ctx context.Context, q validation.Query) (*models.Record, error)
	UpdateCredentialFunc func(ctx context.Context, recordID int64, req models.CredentialUpdate) error

	mu          sync.Mutex
	fetchCalls  int
	updateCalls int
}

func (m *MockStrategy) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *MockStrategy) QueryKind() validation.QueryKind {
	return m.QueryKindValue
}

func (m *MockStrategy) SelfService() bool {
	return m.SelfServiceValue
}

func (m *MockStrategy) Fetch(ctx context.Context, q validation.Query) (*models.Record, error) {
	m.mu.Lock()
	m.fetchCalls++
	m.mu.Unlock()
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, q)
	}
	return nil, models.ErrNotFound
}

func (m *MockStrategy) UpdateCredential(ctx context.Context, recordID int64, req models.CredentialUpdate) error {
	m.mu.Lock()
	m.updateCalls++
	m.mu.Unlock()
	if m.UpdateCredentialFunc != nil {
		return m.UpdateCredentialFunc(ctx, recordID, req)
	}
	return nil
}

// Calls returns how many fetches and updates reached the strategy
func (m *MockStrategy) Calls() (fetches, updates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls, m.updateCalls
}

// ObservedCall is one call recorded by RecordingObserver
type ObservedCall struct {
	Op       string
	Strategy string
	Outcome  string
}

// RecordingObserver implements Observer for testing
type RecordingObserver struct {
	mu    sync.Mutex
	Calls []ObservedCall
}

func (o *RecordingObserver) ObserveSearch(strategy, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Calls = append(o.Calls, ObservedCall{Op: "search", Strategy: strategy, Outcome: outcome})
}

func (o *RecordingObserver) ObserveCredentialUpdate(strategy, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Calls = append(o.Calls, ObservedCall{Op: "credential_update", Strategy: strategy, Outcome: outcome})
}
