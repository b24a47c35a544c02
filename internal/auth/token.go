package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/BradenHooton/jardim/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager handles JWT token generation and validation
type TokenManager struct {
	secret            string
	accessTokenExpiry time.Duration
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, accessExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:            secret,
		accessTokenExpiry: accessExpiry,
	}
}

// GenerateAccessToken creates a signed access token for the subject
func (tm *TokenManager) GenerateAccessToken(s Subject) (string, error) {
	now := time.Now()
	claims := &models.TokenClaims{
		Type:       models.TokenTypeAccess,
		Role:       s.Role,
		Name:       s.Name,
		Email:      s.Email,
		NationalID: s.NationalID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.FormatInt(s.ID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.accessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken verifies a token and returns its claims
func (tm *TokenManager) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tm.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Type != models.TokenTypeAccess {
		return nil, fmt.Errorf("invalid token: unexpected type %q", claims.Type)
	}

	return claims, nil
}

// ParseSubject validates a token and returns the subject it carries
func (tm *TokenManager) ParseSubject(tokenString string) (Subject, error) {
	claims, err := tm.ValidateToken(tokenString)
	if err != nil {
		return Subject{}, err
	}
	return subjectFromClaims(claims)
}

// UnverifiedSubject reads the subject out of a token without checking its
// signature. Only for clients that forward the token to a service which
// verifies it.
func UnverifiedSubject(tokenString string) (Subject, error) {
	claims := &models.TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return Subject{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.Type != models.TokenTypeAccess {
		return Subject{}, fmt.Errorf("invalid token: unexpected type %q", claims.Type)
	}
	return subjectFromClaims(claims)
}
