package core

import (
	"context"

	"adstudio-backend-go/internal/entitlement"
	"adstudio-backend-go/internal/models"
)

// LedgerService is the only path by which export decisions are made.
type LedgerService interface {
	// CheckAndConsume evaluates the account and, for credit-backed exports,
	// commits the decrement before reporting the export as allowed.
	CheckAndConsume(ctx context.Context, userID string) (entitlement.Decision, error)
	// Peek returns the balance without changing it. The value may be stale.
	Peek(ctx context.Context, userID string) (models.Balance, error)
	GetAccount(ctx context.Context, userID string) (*models.Account, error)
	ListPurchases(ctx context.Context, userID string, limit int) ([]*models.Purchase, error)
}

// ProvisioningService applies balance-changing events to the ledger.
type ProvisioningService interface {
	// GrantSignupBonus creates the account with the signup bonus the first time
	// it is called for a user. Later calls only refresh lastLogin and claims.
	GrantSignupBonus(ctx context.Context, userID, email, name string) (GrantResult, error)
	Handle(ctx context.Context, event ProvisioningEvent) (Outcome, error)
}

// ClaimsService keeps the token claims snapshot in step with the ledger.
type ClaimsService interface {
	Sync(ctx context.Context, acct *models.Account) (models.Claims, error)
}

// BillingService verifies and dispatches payment processor webhooks.
type BillingService interface {
	HandleStripeWebhook(ctx context.Context, signature string, payload []byte) (Outcome, error)
}

// AuditService defines the interface for audit logging operations.
type AuditService interface {
	CreateAuditLog(ctx context.Context, logEntry models.AuditLog) error
}

// IdentityDirectory resolves buyers to identity provider accounts.
type IdentityDirectory interface {
	LookupOrCreateByEmail(ctx context.Context, email, displayName string) (uid string, created bool, err error)
	PasswordResetLink(ctx context.Context, email string) (string, error)
}

// ClaimsStore writes custom claims onto the user's session tokens.
type ClaimsStore interface {
	SetClaims(ctx context.Context, userID string, claims models.Claims) error
}
