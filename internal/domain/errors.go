package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain const errors
var (
	ErrInvalidRecipient      = errors.New("invalid recipient token")
	ErrInvalidPayload        = errors.New("invalid payload")
	ErrCredentialUnavailable = errors.New("credential unavailable")
	ErrEmptyBatch            = errors.New("batch is empty")
	ErrBatchSizeExceeded     = errors.New("batch size exceeded maximum limit")
	ErrNotFound              = errors.New("resource not found")
)

// FailureClass is the three-way classification of gateway responses,
// plus two refinements the dispatch engine acts on: unregistered tokens
// feed the suppression list, and unauthenticated responses trigger a
// credential refresh.
type FailureClass string

const (
	ClassTransient       FailureClass = "transient"
	ClassPermanent       FailureClass = "permanent"
	ClassUnregistered    FailureClass = "unregistered"
	ClassUnauthenticated FailureClass = "unauthenticated"
)

// GatewayError is a classified failure returned by a Gateway implementation.
type GatewayError struct {
	StatusCode int
	Class      FailureClass
	Reason     string
	RetryAfter time.Duration
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gateway error (status %d, %s): %s", e.StatusCode, e.Class, e.Reason)
	}
	return fmt.Sprintf("gateway error (%s): %s", e.Class, e.Reason)
}

// Retryable reports whether the dispatch engine may retry the send.
func (e *GatewayError) Retryable() bool {
	return e.Class == ClassTransient || e.Class == ClassUnauthenticated
}

// Permanent reports whether the failure will never resolve on retry.
func (e *GatewayError) Permanent() bool {
	return e.Class == ClassPermanent || e.Class == ClassUnregistered
}

func NewGatewayError(statusCode int, class FailureClass, reason string) *GatewayError {
	return &GatewayError{
		StatusCode: statusCode,
		Class:      class,
		Reason:     reason,
	}
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}
