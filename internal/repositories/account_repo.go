package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/jardim/internal/database"
	"github.com/BradenHooton/jardim/internal/models"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, name, national_id, email, role, password_hash, password_changed_at, created_at, updated_at`

type AccountRepository struct {
	db *database.DB
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// rowScanner interface for scanning account rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAccountRow populates an Account from a database row
func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var role string

	err := scanner.Scan(
		&account.ID, &account.Name, &account.NationalIDDigits, &account.Email,
		&role, &account.PasswordHash, &account.PasswordChangedAt,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	account.Role, err = models.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("account %d: %w", account.ID, err)
	}

	return &account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByNationalID looks an account up by the 11 digits of its national ID
func (r *AccountRepository) GetByNationalID(ctx context.Context, digits string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE national_id = $1`
	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, digits))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1)`
	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, email))
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	now := time.Now()

	query := `
		INSERT INTO accounts (name, national_id, email, role, password_hash, password_changed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING ` + accountColumns

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query,
		account.Name, account.NationalIDDigits, account.Email, string(account.Role),
		account.PasswordHash, account.PasswordChangedAt, now,
	))
}

// ChangePassword locks the account row, hands the current account to
// rehash and stores the hash it returns. An error from rehash aborts the
// change and is returned unchanged.
func (r *AccountRepository) ChangePassword(ctx context.Context, id int64, rehash func(*models.Account) (string, error)) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
		account, err := scanAccountRow(tx.QueryRow(ctx, query, id))
		if err != nil {
			return err
		}

		hash, err := rehash(account)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE accounts SET password_hash = $1, password_changed_at = NOW(), updated_at = NOW() WHERE id = $2`,
			hash, id,
		)
		return database.MapPostgresError(err)
	})
}
