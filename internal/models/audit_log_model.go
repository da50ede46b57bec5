package models

import "time"

// Audit actions recorded for ledger mutations.
const (
	AuditActionSignupBonus          = "SIGNUP_BONUS"
	AuditActionCreditConsumed       = "CREDIT_CONSUMED"
	AuditActionPurchaseGranted      = "PURCHASE_GRANTED"
	AuditActionSubscriptionUpdated  = "SUBSCRIPTION_UPDATED"
	AuditActionSubscriptionCanceled = "SUBSCRIPTION_CANCELLED"
)

// AuditLog represents an audit trail event.
type AuditLog struct {
	ID         string                 `json:"id" firestore:"-"`
	Timestamp  time.Time              `json:"timestamp" firestore:"timestamp"`
	UserID     string                 `json:"userId" firestore:"userId"`
	Action     string                 `json:"action" firestore:"action"`
	TargetType string                 `json:"targetType,omitempty" firestore:"targetType,omitempty"`
	TargetID   string                 `json:"targetId,omitempty" firestore:"targetId,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty" firestore:"details,omitempty"`
}
