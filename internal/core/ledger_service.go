package core

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"adstudio-backend-go/internal/cache"
	"adstudio-backend-go/internal/db"
	"adstudio-backend-go/internal/entitlement"
	"adstudio-backend-go/internal/events"
	"adstudio-backend-go/internal/models"
)

type ledgerService struct {
	repo   db.AccountRepository
	follow *FollowUps
	logger *zap.Logger
}

// NewLedgerService creates the credit ledger service.
func NewLedgerService(repo db.AccountRepository, follow *FollowUps) LedgerService {
	f := follow.withDefaults()
	return &ledgerService{repo: repo, follow: f, logger: f.Logger.Named("ledger")}
}

// CheckAndConsume runs the evaluator inside the store transaction, so the
// decrement and the allow decision commit together or not at all.
func (s *ledgerService) CheckAndConsume(ctx context.Context, userID string) (entitlement.Decision, error) {
	var decision entitlement.Decision
	acct, err := s.repo.Mutate(ctx, userID, db.Mutation{
		Apply: func(a *models.Account) (bool, error) {
			decision = entitlement.Evaluate(a)
			if decision.Mutation != entitlement.MutationDecrement {
				return false, nil
			}
			a.Credits = decision.CreditsAfter
			return true, nil
		},
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.follow.Metrics.IncExportDecision("denied_not_found")
			return entitlement.Evaluate(nil), nil
		}
		s.follow.Metrics.IncExportDecision("error")
		s.logger.Error("Export check failed", zap.String("user_id", userID), zap.Error(err))
		return entitlement.Decision{}, storeErr("check and consume", err)
	}

	switch {
	case !decision.Allowed:
		s.follow.Metrics.IncExportDecision("denied_no_credits")
	case decision.Mutation == entitlement.MutationDecrement:
		s.follow.Metrics.IncExportDecision("allowed_credit")
		s.follow.afterCommit(ctx, acct, commit{
			eventType:   events.TypeCreditConsumed,
			auditAction: models.AuditActionCreditConsumed,
			// hasCredits only flips when the last credit is spent.
			syncClaims: acct.Credits == 0,
		})
	default:
		s.follow.Metrics.IncExportDecision("allowed_subscription")
	}
	return decision, nil
}

// Peek serves from the balance cache when possible. Unknown accounts read as an
// empty balance.
//
// The read-through is not atomic with writers: a mutation that commits and
// refreshes the cache between our store read and Cache.Set is overwritten with
// the older balance, which then lives until BALANCE_CACHE_TTL expires. Peek is
// advisory only; Consume and webhook handling always decide on the store.
func (s *ledgerService) Peek(ctx context.Context, userID string) (models.Balance, error) {
	if b, err := s.follow.Cache.Get(ctx, userID); err == nil {
		return b, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("Balance cache read failed", zap.String("user_id", userID), zap.Error(err))
	}

	acct, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return models.Balance{}, nil
		}
		return models.Balance{}, storeErr("peek", err)
	}
	balance := acct.Balance()
	if err := s.follow.Cache.Set(ctx, userID, balance); err != nil {
		s.logger.Warn("Balance cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
	return balance, nil
}

func (s *ledgerService) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	acct, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, storeErr("get account", err)
	}
	return acct, nil
}

func (s *ledgerService) ListPurchases(ctx context.Context, userID string, limit int) ([]*models.Purchase, error) {
	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		return nil, storeErr("list purchases", err)
	}
	purchases, err := s.repo.ListPurchases(ctx, userID, limit)
	if err != nil {
		return nil, storeErr("list purchases", err)
	}
	return purchases, nil
}
