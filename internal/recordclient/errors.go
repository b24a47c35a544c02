package recordclient

import (
	"fmt"

	"github.com/BradenHooton/jardim/internal/models"
)

// ServiceError is a failure reported at the record service boundary. Kind is
// one of models.ErrNotFound, models.ErrUnauthorized or models.ErrTransport,
// so callers test it with errors.Is.
type ServiceError struct {
	Kind   error
	Op     string
	Status int    // HTTP status, 0 when no response was received
	Detail string // message from the response body, if any
	Err    error  // underlying transport or decoding error
}

func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the error's Kind
func (e *ServiceError) Is(target error) bool {
	return target == e.Kind
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func transportError(op string, status int, detail string, err error) *ServiceError {
	return &ServiceError{Kind: models.ErrTransport, Op: op, Status: status, Detail: detail, Err: err}
}
