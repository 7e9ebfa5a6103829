package apperrors

import (
	"fmt"
	"net/http"
)

// Error represents an application error with an HTTP status code.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`

	// CompensationPending marks that a compensating stock restore could not
	// be completed inline and was handed off for reconciliation.
	CompensationPending bool `json:"compensation_pending,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors by code and message so the predeclared values below
// work with errors.Is even after a cause has been attached via WithErr.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code && t.Message == e.Message
}

// WithErr returns a copy of e carrying err as its cause.
func (e *Error) WithErr(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err}
}

// WithCompensationPending returns a copy of e flagged as having an
// outstanding compensation.
func (e *Error) WithCompensationPending() *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: e.Err, CompensationPending: true}
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validation and lookup errors
var (
	ErrValidation          = New(http.StatusBadRequest, "Customer ID and transaction items are required", nil)
	ErrCustomerNotFound    = New(http.StatusNotFound, "Customer not found", nil)
	ErrProductNotFound     = New(http.StatusNotFound, "Product not found", nil)
	ErrTransactionNotFound = New(http.StatusNotFound, "Transaction not found", nil)
)

// Saga errors
var (
	ErrInsufficientStock   = New(http.StatusBadRequest, "Insufficient stock", nil)
	ErrReservationConflict = New(http.StatusConflict, "Stock changed concurrently", nil)
	ErrPersistenceFailure  = New(http.StatusInternalServerError, "Failed to persist transaction", nil)
	ErrUpstreamService     = New(http.StatusBadGateway, "Upstream service error", nil)
	ErrCompensationPending = New(http.StatusInternalServerError, "Stock compensation pending reconciliation", nil)
	ErrInvalidTransition   = New(http.StatusBadRequest, "Invalid status transition", nil)
)
