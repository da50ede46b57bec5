package models

import "time"

// Purchase is one entry of the append-only purchases log kept under each account.
// It is an audit trail only; balances are never recomputed from it.
type Purchase struct {
	ID        string    `json:"id" firestore:"-"`
	SessionID string    `json:"sessionId" firestore:"sessionId"`
	ProductID string    `json:"productId" firestore:"productId"`
	Amount    int64     `json:"amount" firestore:"amount"` // minor currency units
	Currency  string    `json:"currency" firestore:"currency"`
	Status    string    `json:"status" firestore:"status"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}
