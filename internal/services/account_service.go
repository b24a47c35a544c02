package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/BradenHooton/jardim/internal/auth"
	"github.com/BradenHooton/jardim/internal/models"
	pkgauth "github.com/BradenHooton/jardim/pkg/auth"
	pkglogger "github.com/BradenHooton/jardim/pkg/logger"
	"github.com/BradenHooton/jardim/pkg/nationalid"
)

var (
	// ErrWrongPassword is returned when the current password does not match
	ErrWrongPassword = fmt.Errorf("current password incorrect: %w", models.ErrUnauthorized)
	// ErrInvalidCredentials is returned for any failed login
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", models.ErrUnauthorized)
	// ErrPasswordPolicy is returned when a new password breaks the policy
	ErrPasswordPolicy = errors.New("password does not meet policy")
)

// AccountRepository is the storage needed by AccountService
type AccountRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByNationalID(ctx context.Context, digits string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	ChangePassword(ctx context.Context, id int64, rehash func(*models.Account) (string, error)) error
}

// TokenIssuer mints access tokens for subjects
type TokenIssuer interface {
	GenerateAccessToken(s auth.Subject) (string, error)
}

// LoginDelayer pads failed logins
type LoginDelayer interface {
	WaitFrom(start time.Time, success bool)
}

// Recorder counts record service outcomes
type Recorder interface {
	RecordPasswordChange(route, outcome string)
	RecordLogin(outcome string)
}

// RequestMeta describes the HTTP request behind a call, for auditing
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// LoginResult is returned by a successful login
type LoginResult struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	Record      *models.Record `json:"usuario"`
}

// NewAccount describes an account to create
type NewAccount struct {
	Name       string      `validate:"required,max=200"`
	NationalID string      `validate:"required"`
	Email      string      `validate:"omitempty,email,max=254"`
	Role       models.Role `validate:"required,oneof=admin usuario"`
	Password   string      `validate:"required"`
}

// AccountService implements the record service: lookups, password changes,
// logins and account creation
type AccountService struct {
	repo    AccountRepository
	tokens  TokenIssuer
	delay   LoginDelayer
	email   EmailService
	audit   *pkglogger.AuditLogger
	metrics Recorder
	logger  *slog.Logger
}

// AccountServiceOption configures optional collaborators
type AccountServiceOption func(*AccountService)

// WithEmailService sends a security e-mail after every password change
func WithEmailService(email EmailService) AccountServiceOption {
	return func(s *AccountService) { s.email = email }
}

// WithRecorder reports outcomes to metrics
func WithRecorder(r Recorder) AccountServiceOption {
	return func(s *AccountService) { s.metrics = r }
}

// WithLoginDelay pads failed logins
func WithLoginDelay(d LoginDelayer) AccountServiceOption {
	return func(s *AccountService) { s.delay = d }
}

func NewAccountService(repo AccountRepository, tokens TokenIssuer, audit *pkglogger.AuditLogger, logger *slog.Logger, opts ...AccountServiceOption) *AccountService {
	s := &AccountService{
		repo:   repo,
		tokens: tokens,
		audit:  audit,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var validate = validator.New()

// GetAdmin returns the privileged account with the given ID
func (s *AccountService) GetAdmin(ctx context.Context, id int64) (*models.Record, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookupError("admin", err)
	}
	if !account.Role.Privileged() {
		return nil, models.ErrNotFound
	}
	return account.Public(), nil
}

// GetUserByNationalID returns the standard account with the given national
// ID, masked or not
func (s *AccountService) GetUserByNationalID(ctx context.Context, raw string) (*models.Record, error) {
	digits := nationalid.Digits(raw)
	if len(digits) != nationalid.Length {
		return nil, fmt.Errorf("national ID must have %d digits: %w", nationalid.Length, models.ErrBadRequest)
	}

	account, err := s.repo.GetByNationalID(ctx, digits)
	if err != nil {
		return nil, s.lookupError("user", err)
	}
	if account.Role.Privileged() {
		return nil, models.ErrNotFound
	}
	return account.Public(), nil
}

func (s *AccountService) lookupError(kind string, err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return err
	}
	s.logger.Error("account lookup failed", slog.String("kind", kind), slog.Any("error", err))
	return fmt.Errorf("failed to get %s: %w", kind, err)
}

// ChangeAdminPassword replaces the password of privileged account targetID,
// given its current password
func (s *AccountService) ChangeAdminPassword(ctx context.Context, actor auth.Subject, targetID int64, req models.CredentialUpdate, meta RequestMeta) error {
	return s.changePassword(ctx, "admin", actor, targetID, models.RolePrivileged, req, meta)
}

// ChangeOwnPassword replaces the password of the actor's own account
func (s *AccountService) ChangeOwnPassword(ctx context.Context, actor auth.Subject, req models.CredentialUpdate, meta RequestMeta) error {
	return s.changePassword(ctx, "self", actor, actor.ID, actor.Role, req, meta)
}

func (s *AccountService) changePassword(ctx context.Context, route string, actor auth.Subject, targetID int64, role models.Role, req models.CredentialUpdate, meta RequestMeta) error {
	defer req.Clear()

	if err := pkgauth.ValidatePassword(req.New); err != nil {
		s.recordPasswordChange(route, "policy")
		return fmt.Errorf("%w: %s", ErrPasswordPolicy, err.Error())
	}

	var target *models.Account
	err := s.repo.ChangePassword(ctx, targetID, func(account *models.Account) (string, error) {
		if account.Role != role {
			return "", models.ErrNotFound
		}
		if err := pkgauth.ComparePassword(account.PasswordHash, req.Current); err != nil {
			return "", ErrWrongPassword
		}
		target = account
		return pkgauth.HashPassword(req.New)
	})

	event := pkglogger.AuditEvent{
		ActorID:   actor.ID,
		TargetID:  targetID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   err == nil,
		Metadata:  map[string]string{"route": route},
	}

	switch {
	case err == nil:
	case errors.Is(err, models.ErrNotFound):
		s.recordPasswordChange(route, "not_found")
		return err
	case errors.Is(err, ErrWrongPassword):
		event.FailureReason = "current_password_mismatch"
		s.auditPasswordChange(event)
		s.recordPasswordChange(route, "wrong_password")
		return err
	default:
		s.logger.Error("password change failed",
			slog.Int64("target_id", targetID),
			slog.Any("error", err))
		s.recordPasswordChange(route, "error")
		return fmt.Errorf("failed to change password: %w", err)
	}

	s.auditPasswordChange(event)
	s.recordPasswordChange(route, "success")
	s.logger.Info("password changed",
		slog.Int64("actor_id", actor.ID),
		slog.Int64("target_id", targetID))

	if s.email != nil && target.Email != nil {
		if err := s.email.SendPasswordChangedEmail(ctx, *target.Email, target.Name, time.Now()); err != nil {
			// the change is committed; a lost notice is only logged
			s.logger.Warn("password-changed email not sent",
				slog.Int64("target_id", targetID),
				slog.Any("error", err))
		}
	}
	return nil
}

// Login authenticates privileged accounts by national ID and standard
// accounts by e-mail address
func (s *AccountService) Login(ctx context.Context, credential, password string, meta RequestMeta) (*LoginResult, error) {
	start := time.Now()

	account, err := s.accountForLogin(ctx, credential)
	if err == nil {
		if cmpErr := pkgauth.ComparePassword(account.PasswordHash, password); cmpErr != nil {
			err = ErrInvalidCredentials
		}
	}

	success := err == nil
	if s.delay != nil {
		s.delay.WaitFrom(start, success)
	}

	event := pkglogger.AuditEvent{
		EventType: "login",
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   success,
	}
	if account != nil {
		event.ActorID = account.ID
	}

	if err != nil {
		if !errors.Is(err, models.ErrUnauthorized) {
			s.logger.Error("login lookup failed", slog.Any("error", err))
			s.recordLogin("error")
			return nil, fmt.Errorf("failed to log in: %w", err)
		}
		event.FailureReason = "invalid_credentials"
		s.auditLogin(event)
		s.recordLogin("failure")
		return nil, ErrInvalidCredentials
	}

	record := account.Public()
	token, err := s.tokens.GenerateAccessToken(auth.SubjectFromRecord(record))
	if err != nil {
		s.recordLogin("error")
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.auditLogin(event)
	s.recordLogin("success")
	return &LoginResult{AccessToken: token, TokenType: "bearer", Record: record}, nil
}

func (s *AccountService) accountForLogin(ctx context.Context, credential string) (*models.Account, error) {
	credential = strings.TrimSpace(credential)

	var (
		account *models.Account
		err     error
		role    models.Role
	)
	if strings.Contains(credential, "@") {
		role = models.RoleStandard
		account, err = s.repo.GetByEmail(ctx, credential)
	} else {
		digits := nationalid.Digits(credential)
		if len(digits) != nationalid.Length {
			return nil, ErrInvalidCredentials
		}
		role = models.RolePrivileged
		account, err = s.repo.GetByNationalID(ctx, digits)
	}

	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if account.Role != role {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}

// CreateAccount validates and stores a new account. The national ID must
// carry valid check digits and standard accounts need an e-mail address.
func (s *AccountService) CreateAccount(ctx context.Context, req NewAccount) (*models.Record, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrBadRequest)
	}
	if !nationalid.Valid(req.NationalID) {
		return nil, fmt.Errorf("invalid national ID: %w", models.ErrBadRequest)
	}
	if !req.Role.Privileged() && req.Email == "" {
		return nil, fmt.Errorf("standard accounts need an e-mail address: %w", models.ErrBadRequest)
	}
	if err := pkgauth.ValidatePassword(req.Password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPasswordPolicy, err.Error())
	}

	hash, err := pkgauth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		Record:           models.Record{Name: strings.TrimSpace(req.Name), Role: req.Role},
		NationalIDDigits: nationalid.Digits(req.NationalID),
		PasswordHash:     hash,
	}
	if req.Email != "" {
		email := strings.ToLower(strings.TrimSpace(req.Email))
		account.Email = &email
	}

	created, err := s.repo.Create(ctx, account)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("national ID or e-mail already registered: %w", err)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("account created",
		slog.Int64("id", created.ID),
		slog.String("role", string(created.Role)))
	return created.Public(), nil
}

func (s *AccountService) auditPasswordChange(event pkglogger.AuditEvent) {
	if s.audit != nil {
		s.audit.LogPasswordChange(event)
	}
}

func (s *AccountService) auditLogin(event pkglogger.AuditEvent) {
	if s.audit != nil {
		s.audit.LogAuthAttempt(event)
	}
}

func (s *AccountService) recordPasswordChange(route, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordPasswordChange(route, outcome)
	}
}

func (s *AccountService) recordLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(outcome)
	}
}
