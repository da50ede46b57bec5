// Package events publishes ledger changes to downstream consumers. Publication
// happens after the ledger write commits and is best-effort.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"adstudio-backend-go/internal/models"
)

// Ledger event types.
const (
	TypeSignupBonus           = "ledger.signup_bonus"
	TypeCreditConsumed        = "ledger.credit_consumed"
	TypePurchaseGranted       = "ledger.purchase_granted"
	TypeSubscriptionUpdated   = "ledger.subscription_updated"
	TypeSubscriptionCancelled = "ledger.subscription_cancelled"
)

// LedgerEvent is the message body written to the broker.
type LedgerEvent struct {
	ID                 string    `json:"id"`
	Type               string    `json:"type"`
	UserID             string    `json:"userId"`
	Credits            int64     `json:"credits"`
	SubscriptionActive bool      `json:"subscriptionActive"`
	SubscriptionStatus string    `json:"subscriptionStatus,omitempty"`
	SourceEventID      string    `json:"sourceEventId,omitempty"`
	OccurredAt         time.Time `json:"occurredAt"`
}

// NewLedgerEvent snapshots acct into an event of the given type.
func NewLedgerEvent(eventType string, acct *models.Account, sourceEventID string) LedgerEvent {
	return LedgerEvent{
		ID:                 uuid.NewString(),
		Type:               eventType,
		UserID:             acct.ID,
		Credits:            acct.Credits,
		SubscriptionActive: acct.SubscriptionActive,
		SubscriptionStatus: acct.SubscriptionStatus,
		SourceEventID:      sourceEventID,
		OccurredAt:         time.Now().UTC(),
	}
}

// Publisher defines the interface for ledger event publication.
type Publisher interface {
	Publish(ctx context.Context, event LedgerEvent) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, LedgerEvent) error { return nil }
func (NoopPublisher) Close() error                               { return nil }
