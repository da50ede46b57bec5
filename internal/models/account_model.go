package models

import "time"

// Subscription status values written by the ledger. Any other value stored in
// Account.SubscriptionStatus is the raw status reported by the payment processor.
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
)

// Account is the authoritative per-user ledger record.
type Account struct {
	ID                      string     `json:"id" firestore:"-"` // Firebase Auth UID, document ID
	Email                   string     `json:"email" firestore:"email"`
	Name                    string     `json:"name,omitempty" firestore:"name,omitempty"`
	Credits                 int64      `json:"credits" firestore:"credits"`
	SubscriptionActive      bool       `json:"subscriptionActive" firestore:"subscriptionActive"`
	SubscriptionStatus      string     `json:"subscriptionStatus,omitempty" firestore:"subscriptionStatus,omitempty"`
	SubscriptionID          string     `json:"subscriptionId,omitempty" firestore:"subscriptionId,omitempty"`
	SubscriptionCancelledAt *time.Time `json:"subscriptionCancelledAt,omitempty" firestore:"subscriptionCancelledAt,omitempty"`
	StripeCustomerID        string     `json:"stripeCustomerId,omitempty" firestore:"stripeCustomerId,omitempty"`
	CreatedAt               time.Time  `json:"createdAt" firestore:"createdAt"`
	LastLogin               time.Time  `json:"lastLogin" firestore:"lastLogin"`
	UpdatedAt               time.Time  `json:"updatedAt" firestore:"updatedAt"`
}

// Clone returns a copy that shares no pointers with a.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.SubscriptionCancelledAt != nil {
		t := *a.SubscriptionCancelledAt
		c.SubscriptionCancelledAt = &t
	}
	return &c
}

// Balance is the read-only view of an account's entitlement.
type Balance struct {
	Credits            int64 `json:"credits"`
	SubscriptionActive bool  `json:"subscriptionActive"`
}

// Balance returns the entitlement view of a.
func (a *Account) Balance() Balance {
	return Balance{Credits: a.Credits, SubscriptionActive: a.SubscriptionActive}
}
