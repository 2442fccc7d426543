package marketplace

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the marketplace service.
var (
	ErrUnauthenticated          = errors.New("unauthenticated")
	ErrUnknownProfile           = errors.New("unknown profile")
	ErrUnknownService           = errors.New("unknown service")
	ErrUnknownReservation       = errors.New("unknown reservation")
	ErrUnknownConversation      = errors.New("unknown conversation")
	ErrSelfPurchase             = errors.New("self purchase forbidden")
	ErrServiceNotPublished      = errors.New("service not published")
	ErrServiceUnavailable       = errors.New("service unavailable")
	ErrAvailabilityConflict     = errors.New("availability changed concurrently")
	ErrInsufficientCredits      = errors.New("insufficient credits")
	ErrLockTimeout              = errors.New("lock timeout")
	ErrAccessDenied             = errors.New("access denied")
	ErrInvalidReservationState  = errors.New("invalid reservation state")
	ErrEmptyContent             = errors.New("empty content")
	ErrPaymentAlreadyConfirmed  = errors.New("payment already confirmed")
	ErrConversationExists       = errors.New("conversation already exists for reservation")
	ErrInvalidProfileID         = errors.New("invalid profile id")
	ErrInvalidServiceID         = errors.New("invalid service id")
	ErrInvalidReservationID     = errors.New("invalid reservation id")
	ErrInvalidConversationID    = errors.New("invalid conversation id")
	ErrInvalidMessageID         = errors.New("invalid message id")
	ErrInvalidOrderID           = errors.New("invalid order id")
	ErrInvalidPaymentSessionID  = errors.New("invalid payment session id")
	ErrInvalidCredits           = errors.New("invalid credits")
	ErrInvalidAmountCents       = errors.New("invalid amount cents")
	ErrInvalidServiceStatus     = errors.New("invalid service status")
	ErrInvalidReservationStatus = errors.New("invalid reservation status")
	ErrInvalidReservation       = errors.New("invalid reservation")
	ErrInvalidConversation      = errors.New("invalid conversation")
	ErrInvalidMetadataJSON      = errors.New("invalid metadata json")
	ErrInvalidServiceConfig     = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}

// IsRetryable reports whether a failed operation may succeed when repeated unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout) || errors.Is(err, ErrAvailabilityConflict)
}
