package payments

import (
	"errors"
	"fmt"
)

// ValidationError is a client input problem. Its message is safe to show.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrReferenceRequired = &ValidationError{Message: "Payment reference is required"}
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrLockNotAcquired   = errors.New("lock not acquired")
)

// GatewayRejectedError is returned when the gateway reports a transaction as
// anything other than successful.
type GatewayRejectedError struct {
	Reference     string
	GatewayStatus string
	Message       string
}

func (e *GatewayRejectedError) Error() string {
	if e.GatewayStatus != "" {
		return fmt.Sprintf("gateway rejected %s: %s (%s)", e.Reference, e.Message, e.GatewayStatus)
	}
	return fmt.Sprintf("gateway rejected %s: %s", e.Reference, e.Message)
}
