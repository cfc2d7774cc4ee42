package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrAlreadyFinalized   = errors.New("order already finalized")
	ErrAllocationConflict = errors.New("allocation conflict")
	ErrStockExhausted     = errors.New("stock exhausted")
	ErrForeignKeyConflict = errors.New("referenced by completed order")
	ErrMaintenance        = errors.New("store is under maintenance")
	ErrPurchaseLimit      = errors.New("purchase limit reached")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTransport          = errors.New("transport failure")
	ErrStorage            = errors.New("storage failure")
)

// ValidationError describes malformed structured input.
type ValidationError struct {
	Field  string
	Reason string
}

// Invalid builds a ValidationError for the field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// AlreadyFinalizedError reports the terminal status observed on re-invocation.
type AlreadyFinalizedError struct {
	OrderID int64
	Status  string
}

func (e *AlreadyFinalizedError) Error() string {
	return fmt.Sprintf("order %d already %s", e.OrderID, e.Status)
}

func (e *AlreadyFinalizedError) Unwrap() error { return ErrAlreadyFinalized }

// TransportError is a failed delivery to a chat.
type TransportError struct {
	ChatID     int64
	Permanent  bool
	RetryAfter time.Duration
	Err        error
}

func (e *TransportError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("deliver to %d (%s): %v", e.ChatID, kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// StorageError wraps a driver failure with the operation that produced it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// IsPermanentTransport reports whether err is a transport failure that will not heal.
func IsPermanentTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Permanent
}
