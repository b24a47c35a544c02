package services

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"

	"github.com/BradenHooton/jardim/internal/auth"
	"github.com/BradenHooton/jardim/internal/models"
)

// MockAccountRepository implements AccountRepository for testing. With no
// ChangePasswordFunc set, ChangePassword runs rehash against GetByID.
type MockAccountRepository struct {
	GetByIDFunc         func(ctx context.Context, id int64) (*models.Account, error)
	GetByNationalIDFunc func(ctx context.Context, digits string) (*models.Account, error)
	GetByEmailFunc      func(ctx context.Context, email string) (*models.Account, error)
	CreateFunc          func(ctx context.Context, account *models.Account) (*models.Account, error)
	ChangePasswordFunc  func(ctx context.Context, id int64, rehash func(*models.Account) (string, error)) error

	// StoredHash receives the hash written by the default ChangePassword
	StoredHash string
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByNationalID(ctx context.Context, digits string) (*models.Account, error) {
	if m.GetByNationalIDFunc != nil {
		return m.GetByNationalIDFunc(ctx, digits)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) ChangePassword(ctx context.Context, id int64, rehash func(*models.Account) (string, error)) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, id, rehash)
	}
	account, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}
	hash, err := rehash(account)
	if err != nil {
		return err
	}
	m.StoredHash = hash
	return nil
}

// MockTokenIssuer implements TokenIssuer for testing
type MockTokenIssuer struct {
	GenerateAccessTokenFunc func(s auth.Subject) (string, error)
}

func (m *MockTokenIssuer) GenerateAccessToken(s auth.Subject) (string, error) {
	if m.GenerateAccessTokenFunc != nil {
		return m.GenerateAccessTokenFunc(s)
	}
	return "mock-token", nil
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendPasswordChangedEmailFunc func(ctx context.Context, to, name string, changedAt time.Time) error

	mu   sync.Mutex
	Sent []string
}

func (m *MockEmailService) SendPasswordChangedEmail(ctx context.Context, to, name string, changedAt time.Time) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, to)
	m.mu.Unlock()
	if m.SendPasswordChangedEmailFunc != nil {
		return m.SendPasswordChangedEmailFunc(ctx, to, name, changedAt)
	}
	return nil
}

// MockSESSender implements SESSender for testing
type MockSESSender struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESSender) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, params, optFns...)
	}
	return &ses.SendEmailOutput{MessageId: aws.String("mock-message-id")}, nil
}

// MockLoginDelayer records WaitFrom calls
type MockLoginDelayer struct {
	Calls []bool
}

func (m *MockLoginDelayer) WaitFrom(_ time.Time, success bool) {
	m.Calls = append(m.Calls, success)
}
