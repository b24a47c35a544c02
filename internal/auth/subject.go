package auth

import (
	"fmt"
	"strconv"

	"github.com/BradenHooton/jardim/internal/models"
)

// Subject is the authenticated operator. It is passed explicitly to the
// components acting on its behalf.
type Subject struct {
	ID         int64
	Role       models.Role
	Name       string
	Email      string
	NationalID string
}

// Privileged reports whether the subject is an admin
func (s Subject) Privileged() bool {
	return s.Role.Privileged()
}

// Record returns the identity record carried by the session
func (s Subject) Record() *models.Record {
	rec := &models.Record{ID: s.ID, Name: s.Name, Role: s.Role}
	if s.NationalID != "" {
		id := s.NationalID
		rec.NationalID = &id
	}
	if s.Email != "" {
		email := s.Email
		rec.Email = &email
	}
	return rec
}

// SubjectFromRecord builds a subject for an account record
func SubjectFromRecord(rec *models.Record) Subject {
	s := Subject{ID: rec.ID, Role: rec.Role, Name: rec.Name}
	if rec.NationalID != nil {
		s.NationalID = *rec.NationalID
	}
	if rec.Email != nil {
		s.Email = *rec.Email
	}
	return s
}

func subjectFromClaims(claims *models.TokenClaims) (Subject, error) {
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Subject{}, fmt.Errorf("invalid token subject %q", claims.Subject)
	}
	role, err := models.ParseRole(string(claims.Role))
	if err != nil {
		return Subject{}, err
	}
	return Subject{
		ID:         id,
		Role:       role,
		Name:       claims.Name,
		Email:      claims.Email,
		NationalID: claims.NationalID,
	}, nil
}
