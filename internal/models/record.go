package models

import (
	"fmt"
	"time"

	"github.com/BradenHooton/jardim/pkg/nationalid"
)

// Role decides which login credential an account uses and which lookup and
// update paths apply to it. Values match the backend's tipo_usuario field.
type Role string

const (
	RoleStandard   Role = "usuario"
	RolePrivileged Role = "admin"
)

// ParseRole converts a wire value into a Role
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStandard, RolePrivileged:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q: %w", s, ErrBadRequest)
	}
}

// Privileged reports whether the role is an operator-tier role
func (r Role) Privileged() bool {
	return r == RolePrivileged
}

// Record is an identity record as fetched from the record service.
// Privileged accounts carry a NationalID, standard accounts an Email.
type Record struct {
	ID         int64   `json:"id"`
	Name       string  `json:"nome"`
	NationalID *string `json:"cpf,omitempty"`
	Email      *string `json:"email,omitempty"`
	Role       Role    `json:"tipo_usuario"`
}

// LoginCredential returns the national ID for privileged records and the
// e-mail address otherwise. Empty when the record does not carry it.
func (r *Record) LoginCredential() string {
	if r.Role.Privileged() {
		if r.NationalID != nil {
			return *r.NationalID
		}
		return ""
	}
	if r.Email != nil {
		return *r.Email
	}
	return ""
}

// Account is the stored form of a Record. Every account has a national ID;
// only privileged ones expose it.
type Account struct {
	Record
	NationalIDDigits  string
	PasswordHash      string
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Public returns the record as served to clients, carrying only the login
// credential that matches the role
func (a *Account) Public() *Record {
	rec := &Record{ID: a.ID, Name: a.Name, Role: a.Role}
	if a.Role.Privileged() {
		masked := nationalid.Mask(a.NationalIDDigits)
		rec.NationalID = &masked
		return rec
	}
	if a.Email != nil {
		email := *a.Email
		rec.Email = &email
	}
	return rec
}

// CredentialUpdate asks the record service to replace an account's password.
// It is transient: callers clear it once it has been submitted.
type CredentialUpdate struct {
	Current string `json:"senha_atual"`
	New     string `json:"nova_senha"`
}

// Clear drops both secrets
func (c *CredentialUpdate) Clear() {
	c.Current = ""
	c.New = ""
}
