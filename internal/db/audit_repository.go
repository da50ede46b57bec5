package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"

	"adstudio-backend-go/internal/models"
)

const auditLogsCollection = "audit_logs"

type firestoreAuditRepository struct {
	client *firestore.Client
}

// NewFirestoreAuditRepository creates an AuditRepository backed by the audit_logs collection.
func NewFirestoreAuditRepository(client *firestore.Client) (AuditRepository, error) {
	if client == nil {
		return nil, errors.New("firestore client is not initialized for AuditRepository")
	}
	return &firestoreAuditRepository{client: client}, nil
}

func (r *firestoreAuditRepository) Create(ctx context.Context, logEntry models.AuditLog) error {
	_, _, err := r.client.Collection(auditLogsCollection).Add(ctx, logEntry)
	if err != nil {
		return fmt.Errorf("failed to write audit log '%s' for '%s': %w", logEntry.Action, logEntry.UserID, classifyFirestoreErr(err))
	}
	return nil
}
