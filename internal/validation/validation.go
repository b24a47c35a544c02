// Package validation holds the form checks run before anything is sent to
// the record service. Failures here never reach the network.
package validation

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/BradenHooton/jardim/pkg/nationalid"
)

// MinSecretLength is the shortest new password the forms accept
const MinSecretLength = 6

// Kind identifies a validation failure
type Kind string

const (
	KindMismatch     Kind = "mismatch"
	KindTooShort     Kind = "too_short"
	KindIncompleteID Kind = "incomplete_id"
	KindEmptyQuery   Kind = "empty_query"
	KindInvalidID    Kind = "invalid_id"
)

// Error is a local validation failure with a message fit for display
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same Kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrMismatch     = &Error{Kind: KindMismatch, Message: "new passwords do not match"}
	ErrTooShort     = &Error{Kind: KindTooShort, Message: "new password must be at least 6 characters"}
	ErrIncompleteID = &Error{Kind: KindIncompleteID, Message: "national ID incomplete: enter all 11 digits"}
	ErrEmptyQuery   = &Error{Kind: KindEmptyQuery, Message: "enter an identifier to search"}
	ErrInvalidID    = &Error{Kind: KindInvalidID, Message: "identifier must be a positive number"}
)

// IsValidationError reports whether err came from this package
func IsValidationError(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

// Global validator instance (reused across all forms)
var validate = validator.New()

// credentialForm mirrors the three password fields of the change-password form
type credentialForm struct {
	Current string
	New     string `validate:"min=6"`
	Confirm string `validate:"eqfield=New"`
}

// ValidateCredentialUpdate checks a change-password form. A confirmation
// mismatch is reported before the length check, whatever the lengths.
func ValidateCredentialUpdate(current, next, confirm string) error {
	err := validate.Struct(credentialForm{Current: current, New: next, Confirm: confirm})
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	tooShort := false
	for _, fe := range ve {
		switch fe.Tag() {
		case "eqfield":
			return ErrMismatch
		case "min":
			tooShort = true
		}
	}
	if tooShort {
		return ErrTooShort
	}
	return err
}

// QueryKind selects how a search box is interpreted
type QueryKind int

const (
	// ByID looks a record up by its numeric identifier
	ByID QueryKind = iota
	// ByNationalID looks a record up by its masked national ID
	ByNationalID
)

func (k QueryKind) String() string {
	switch k {
	case ByID:
		return "id"
	case ByNationalID:
		return "national_id"
	default:
		return "unknown"
	}
}

// Query is a search ready for dispatch
type Query struct {
	Kind QueryKind
	// Key is the lookup key sent to the record service: the decimal ID or
	// the masked national ID
	Key string
	// ID is set for ByID queries
	ID int64
}

// ValidateSearchQuery normalises the raw contents of a search box
func ValidateSearchQuery(raw string, kind QueryKind) (Query, error) {
	switch kind {
	case ByNationalID:
		digits := nationalid.Digits(raw)
		if err := validate.Var(digits, "len=11"); err != nil {
			return Query{}, ErrIncompleteID
		}
		return Query{Kind: ByNationalID, Key: nationalid.Mask(digits)}, nil

	case ByID:
		trimmed := strings.TrimSpace(raw)
		if err := validate.Var(trimmed, "required"); err != nil {
			return Query{}, ErrEmptyQuery
		}
		if err := validate.Var(trimmed, "number"); err != nil {
			return Query{}, ErrInvalidID
		}
		id, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil || id <= 0 {
			return Query{}, ErrInvalidID
		}
		return Query{Kind: ByID, Key: strconv.FormatInt(id, 10), ID: id}, nil

	default:
		return Query{}, ErrEmptyQuery
	}
}
