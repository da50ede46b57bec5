package core

import (
	"errors"
	"fmt"

	"adstudio-backend-go/internal/db"
)

var (
	// ErrAccountNotFound is returned when the ledger has no record for the user.
	ErrAccountNotFound = errors.New("account not found")
	// ErrTransient marks failures caused by an unavailable store. It is never a denial.
	ErrTransient = errors.New("ledger temporarily unavailable")
	// ErrUnknownEvent is returned by Handle for an unsupported event variant.
	ErrUnknownEvent = errors.New("unknown provisioning event")
	// ErrInvalidEvent is returned when a provisioning event lacks required fields.
	ErrInvalidEvent = errors.New("invalid provisioning event")
	// ErrWebhookSignature is returned when a Stripe webhook fails signature verification.
	ErrWebhookSignature = errors.New("stripe webhook signature verification failed")
	// ErrWebhookPayload is returned when a verified Stripe webhook cannot be decoded.
	ErrWebhookPayload = errors.New("stripe webhook payload invalid")
)

// storeErr converts repository failures into service errors.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrAccountNotFound)
	case errors.Is(err, db.ErrUnavailable):
		return fmt.Errorf("%s: %w: %v", op, ErrTransient, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
