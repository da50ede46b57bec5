package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"adstudio-backend-go/internal/cache"
	"adstudio-backend-go/internal/events"
	"adstudio-backend-go/internal/metrics"
	"adstudio-backend-go/internal/models"
)

const sideEffectTimeout = 5 * time.Second

// FollowUps bundles the best-effort work that runs after a committed ledger write.
// None of it can roll the write back; failures are logged and counted.
type FollowUps struct {
	Claims    ClaimsService
	Cache     cache.BalanceCache
	Publisher events.Publisher
	Audit     AuditService
	Metrics   metrics.LedgerMetrics
	Logger    *zap.Logger
}

func (f *FollowUps) withDefaults() *FollowUps {
	out := *f
	if out.Cache == nil {
		out.Cache = cache.NoopCache{}
	}
	if out.Publisher == nil {
		out.Publisher = events.NoopPublisher{}
	}
	if out.Metrics == nil {
		out.Metrics = metrics.Nop{}
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	return &out
}

type commit struct {
	eventType     string
	auditAction   string
	sourceEventID string
	syncClaims    bool
	details       map[string]interface{}
}

// afterCommit runs detached from the caller's cancellation so a client hanging up
// does not skip the follow-ups of a write that already happened.
func (f *FollowUps) afterCommit(ctx context.Context, acct *models.Account, c commit) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	log := f.Logger.With(zap.String("user_id", acct.ID), zap.String("event_type", c.eventType))

	if err := f.Cache.Invalidate(ctx, acct.ID); err != nil {
		f.Metrics.IncSideEffectFailure("cache")
		log.Warn("Failed to invalidate cached balance", zap.Error(err))
	}

	if c.syncClaims && f.Claims != nil {
		if _, err := f.Claims.Sync(ctx, acct); err != nil {
			f.Metrics.IncSideEffectFailure("claims")
			log.Warn("Failed to refresh token claims", zap.Error(err))
		}
	}

	if err := f.Publisher.Publish(ctx, events.NewLedgerEvent(c.eventType, acct, c.sourceEventID)); err != nil {
		f.Metrics.IncSideEffectFailure("publish")
		log.Warn("Failed to publish ledger event", zap.Error(err))
	}

	if f.Audit != nil && c.auditAction != "" {
		details := map[string]interface{}{
			"credits":            acct.Credits,
			"subscriptionActive": acct.SubscriptionActive,
		}
		for k, v := range c.details {
			details[k] = v
		}
		entry := models.AuditLog{
			UserID:     acct.ID,
			Action:     c.auditAction,
			TargetType: "account",
			TargetID:   acct.ID,
			Details:    details,
		}
		if c.sourceEventID != "" {
			entry.Details["sourceEventId"] = c.sourceEventID
		}
		if err := f.Audit.CreateAuditLog(ctx, entry); err != nil {
			f.Metrics.IncSideEffectFailure("audit")
			log.Warn("Failed to write audit log", zap.Error(err))
		}
	}
}
