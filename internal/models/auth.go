package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeAccess is the only token type issued for API access
const TokenTypeAccess = "access"

// TokenClaims carries the authenticated subject. The registered Subject
// claim holds the decimal account ID.
type TokenClaims struct {
	Type       string `json:"type"`
	Role       Role   `json:"role"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	NationalID string `json:"cpf,omitempty"`
	jwt.RegisteredClaims
}
