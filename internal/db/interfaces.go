package db

import (
	"context"

	"adstudio-backend-go/internal/models"
)

// Mutation describes one atomic read-modify-write of an account.
//
// Apply receives the current account and edits it in place; it reports whether
// anything changed. It may be invoked more than once when the store retries a
// contended transaction, so it must not have side effects outside acct.
// Returning an error aborts the whole write.
type Mutation struct {
	// EventKey, when set, makes the write idempotent: a second Mutate with the
	// same key fails with ErrDuplicateEvent and changes nothing.
	EventKey string
	// Event is recorded under EventKey in the same transaction.
	Event models.ProcessedEvent
	// Purchase, when set, is appended to the account's purchases log.
	Purchase *models.Purchase
	Apply    func(acct *models.Account) (changed bool, err error)
}

// AccountRepository defines the storage operations of the credit ledger.
type AccountRepository interface {
	GetByID(ctx context.Context, userID string) (*models.Account, error)
	// GetByEmail and GetByStripeCustomerID return the first match. Uniqueness is not enforced.
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*models.Account, error)
	// Create is create-only and fails with ErrAlreadyExists when the account exists.
	Create(ctx context.Context, acct *models.Account) error
	// Mutate runs m atomically against the account and returns its post-write state.
	Mutate(ctx context.Context, userID string, m Mutation) (*models.Account, error)
	// ListPurchases returns the newest purchases first.
	ListPurchases(ctx context.Context, userID string, limit int) ([]*models.Purchase, error)
}

// AuditRepository defines the interface for audit log data storage operations.
type AuditRepository interface {
	Create(ctx context.Context, logEntry models.AuditLog) error
}
