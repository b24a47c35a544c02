package database

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/jardim/internal/config"
	"github.com/BradenHooton/jardim/internal/models"
)

func TestMapPostgresError(t *testing.T) {
	other := errors.New("connection reset")
	serialization := &pgconn.PgError{Code: "40001"}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, models.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), models.ErrNotFound},
		{"unique", &pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"}, models.ErrConflict},
		{"check", &pgconn.PgError{Code: "23514"}, models.ErrBadRequest},
		{"not null", &pgconn.PgError{Code: "23502"}, models.ErrBadRequest},
		{"bad text", &pgconn.PgError{Code: "22P02"}, models.ErrBadRequest},
		{"other pg error", serialization, serialization},
		{"other", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, MapPostgresError(tt.err), tt.want)
		})
	}

	assert.NoError(t, MapPostgresError(nil))
}

func TestMapPostgresError_NamesConstraint(t *testing.T) {
	err := MapPostgresError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_national_id_key"})

	assert.Contains(t, err.Error(), "accounts_national_id_key")
}

func TestNewPoolConfig(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:              "db.internal",
		Port:              5433,
		User:              "jardim",
		Password:          "secret",
		Name:              "records",
		SSLMode:           "disable",
		MaxConns:          12,
		MinConns:          2,
		MaxConnLifetime:   time.Minute,
		MaxConnIdleTime:   30 * time.Second,
		HealthCheckPeriod: 15 * time.Second,
	}

	poolConfig, err := newPoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(12), poolConfig.MaxConns)
	assert.Equal(t, int32(2), poolConfig.MinConns)
	assert.Equal(t, time.Minute, poolConfig.MaxConnLifetime)
	assert.Equal(t, 15*time.Second, poolConfig.HealthCheckPeriod)
	assert.Equal(t, "db.internal", poolConfig.ConnConfig.Host)
	assert.Equal(t, uint16(5433), poolConfig.ConnConfig.Port)
	assert.Equal(t, "records", poolConfig.ConnConfig.Database)
	assert.Equal(t, applicationName, poolConfig.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, connectTimeout, poolConfig.ConnConfig.ConnectTimeout)
}
