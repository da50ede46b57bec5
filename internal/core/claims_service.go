package core

import (
	"context"
	"errors"
	"fmt"

	"adstudio-backend-go/internal/models"
)

type claimsService struct {
	store ClaimsStore
}

// NewClaimsService creates a ClaimsService writing to store.
func NewClaimsService(store ClaimsStore) ClaimsService {
	return &claimsService{store: store}
}

// ClaimsFor derives the token claims from the authoritative ledger record.
func ClaimsFor(acct *models.Account) models.Claims {
	role := models.RoleFreeUser
	switch {
	case acct.SubscriptionActive:
		role = models.RoleSubscriptionCustomer
	case acct.StripeCustomerID != "":
		role = models.RolePackCustomer
	}
	return models.Claims{
		Role:               role,
		SubscriptionActive: acct.SubscriptionActive,
		HasCredits:         acct.SubscriptionActive || acct.Credits > 0,
		StripeCustomerID:   acct.StripeCustomerID,
	}
}

func (s *claimsService) Sync(ctx context.Context, acct *models.Account) (models.Claims, error) {
	if acct == nil {
		return models.Claims{}, errors.New("cannot sync claims for nil account")
	}
	claims := ClaimsFor(acct)
	if err := s.store.SetClaims(ctx, acct.ID, claims); err != nil {
		return claims, fmt.Errorf("sync claims for %s: %w", acct.ID, err)
	}
	return claims, nil
}
