package models

import "time"

// ProcessedEvent marks a provisioning event as applied. The document ID is the dedup key.
type ProcessedEvent struct {
	Key         string    `json:"key" firestore:"-"`
	Provider    string    `json:"provider" firestore:"provider"`
	EventID     string    `json:"eventId,omitempty" firestore:"eventId,omitempty"`
	EventType   string    `json:"eventType" firestore:"eventType"`
	UserID      string    `json:"userId" firestore:"userId"`
	ProcessedAt time.Time `json:"processedAt" firestore:"processedAt"`
}
