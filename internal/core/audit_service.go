package core

import (
	"context"
	"fmt"
	"time"

	"adstudio-backend-go/internal/db"
	"adstudio-backend-go/internal/models"
)

// auditService implements the AuditService interface.
type auditService struct {
	auditRepo db.AuditRepository // interface from the db package
}

// NewAuditService creates a new AuditService instance.
func NewAuditService(auditRepo db.AuditRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

// CreateAuditLog stamps the entry when needed and delegates storage to the repository.
func (s *auditService) CreateAuditLog(ctx context.Context, logEntry models.AuditLog) error {
	if s.auditRepo == nil {
		// Only reachable when the service was built without NewAuditService.
		return fmt.Errorf("AuditRepository not initialized in AuditService")
	}

	// Callers may pass their own time, e.g. the event's creation time.
	if logEntry.Timestamp.IsZero() {
		logEntry.Timestamp = time.Now().UTC()
	}

	if err := s.auditRepo.Create(ctx, logEntry); err != nil {
		// Wrapped so callers can still match the db sentinel errors.
		return fmt.Errorf("failed to create audit log via repository: %w", err)
	}
	return nil
}
