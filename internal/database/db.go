package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/BradenHooton/jardim/internal/models"
)

// SQLSTATE codes the account schema can raise
const (
	codeUniqueViolation     = "23505"
	codeNotNullViolation    = "23502"
	codeCheckViolation      = "23514"
	codeInvalidTextEncoding = "22P02"
)

// MapPostgresError turns driver errors into domain errors. A missing row is
// ErrNotFound; a duplicate CPF or e-mail is ErrConflict naming the
// constraint; a row the schema rejects is ErrBadRequest. Anything else is
// returned unchanged.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", models.ErrConflict, pgErr.ConstraintName)
	case codeNotNullViolation, codeCheckViolation, codeInvalidTextEncoding:
		return fmt.Errorf("%w: %s", models.ErrBadRequest, pgErr.Message)
	}
	return err
}

// WithTransaction runs fn in a read-committed transaction, committing when
// it returns nil and rolling back otherwise. fn's error is returned as is.
func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginTxFunc(ctx, db.Pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}
