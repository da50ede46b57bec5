package core

import "adstudio-backend-go/internal/models"

// ProvisioningEvent is one of PurchaseCompleted, SubscriptionUpdated or
// SubscriptionCancelled.
type ProvisioningEvent interface {
	// Kind names the variant for logs and metrics.
	Kind() string
	provisioningEvent()
}

// PurchaseCompleted is a finished checkout session.
type PurchaseCompleted struct {
	EventID        string
	SessionID      string
	ProductID      string
	CustomerEmail  string
	CustomerName   string
	CustomerID     string
	AmountTotal    int64
	Currency       string
	PaymentStatus  string
	SubscriptionID string
}

// SubscriptionUpdated reports the processor's current subscription status.
type SubscriptionUpdated struct {
	EventID    string
	CustomerID string
	Status     string
}

// SubscriptionCancelled reports a deleted subscription.
type SubscriptionCancelled struct {
	EventID    string
	CustomerID string
}

func (PurchaseCompleted) Kind() string     { return "purchase_completed" }
func (SubscriptionUpdated) Kind() string   { return "subscription_updated" }
func (SubscriptionCancelled) Kind() string { return "subscription_cancelled" }

func (PurchaseCompleted) provisioningEvent()     {}
func (SubscriptionUpdated) provisioningEvent()   {}
func (SubscriptionCancelled) provisioningEvent() {}

// Outcome reports what Handle did with an event.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeOrphan    Outcome = "orphan"
	OutcomeIgnored   Outcome = "ignored"
)

// GrantResult is returned by GrantSignupBonus.
type GrantResult struct {
	Account *models.Account
	Created bool
}

// Dedup keys recorded in the processed-events store.
func checkoutEventKey(sessionID string) string { return "stripe:checkout:" + sessionID }
func stripeEventKey(eventID string) string     { return "stripe:event:" + eventID }
