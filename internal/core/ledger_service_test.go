package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"adstudio-backend-go/internal/entitlement"
	"adstudio-backend-go/internal/models"
)

func TestCheckAndConsume(t *testing.T) {
	tests := []struct {
		name        string
		seed        *models.Account
		wantAllowed bool
		wantAfter   int64
		wantReason  entitlement.Reason
		wantCredits int64
	}{
		{
			name:        "one credit is consumed",
			seed:        &models.Account{ID: "u1", Credits: 1},
			wantAllowed: true,
			wantAfter:   0,
			wantCredits: 0,
		},
		{
			name:        "no credits",
			seed:        &models.Account{ID: "u1", Credits: 0},
			wantAllowed: false,
			wantReason:  entitlement.ReasonNoCredits,
			wantCredits: 0,
		},
		{
			name:        "subscription dominates",
			seed:        &models.Account{ID: "u1", Credits: 0, SubscriptionActive: true},
			wantAllowed: true,
			wantAfter:   entitlement.Unlimited,
			wantCredits: 0,
		},
		{
			name:        "subscription leaves credits alone",
			seed:        &models.Account{ID: "u1", Credits: 4, SubscriptionActive: true},
			wantAllowed: true,
			wantAfter:   entitlement.Unlimited,
			wantCredits: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.seed(t, tt.seed)

			got, err := h.ledger.CheckAndConsume(context.Background(), "u1")
			if err != nil {
				t.Fatalf("CheckAndConsume: %v", err)
			}
			if got.Allowed != tt.wantAllowed || got.Reason != tt.wantReason {
				t.Fatalf("decision = %+v", got)
			}
			if tt.wantAllowed && got.CreditsAfter != tt.wantAfter {
				t.Fatalf("creditsAfter = %d, want %d", got.CreditsAfter, tt.wantAfter)
			}
			if c := h.account(t, "u1").Credits; c != tt.wantCredits {
				t.Fatalf("stored credits = %d, want %d", c, tt.wantCredits)
			}
		})
	}
}

func TestCheckAndConsumeUnknownAccount(t *testing.T) {
	h := newHarness(t)
	got, err := h.ledger.CheckAndConsume(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("CheckAndConsume: %v", err)
	}
	if got.Allowed || got.Reason != entitlement.ReasonAccountNotFound {
		t.Fatalf("decision = %+v", got)
	}
}

func TestCheckAndConsumeNoDoubleSpend(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &models.Account{ID: "u1", Credits: 1})

	const attempts = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := h.ledger.CheckAndConsume(context.Background(), "u1")
			if err != nil {
				t.Errorf("CheckAndConsume: %v", err)
				return
			}
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 1 {
		t.Fatalf("allowed %d exports with one credit", allowed)
	}
	if c := h.account(t, "u1").Credits; c != 0 {
		t.Fatalf("credits = %d, want 0", c)
	}
}

func TestCheckAndConsumeTransientFailureIsNotDenial(t *testing.T) {
	ledger := NewLedgerService(unavailableRepo{}, &FollowUps{Logger: zap.NewNop()})

	d, err := ledger.CheckAndConsume(context.Background(), "u1")
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	if d.Allowed {
		t.Fatal("failed check must not allow the export")
	}
}

func TestCheckAndConsumeFollowUps(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &models.Account{ID: "u1", Credits: 1})
	_ = h.cache.Set(context.Background(), "u1", models.Balance{Credits: 1})

	if _, err := h.ledger.CheckAndConsume(context.Background(), "u1"); err != nil {
		t.Fatalf("CheckAndConsume: %v", err)
	}
	if _, err := h.cache.Get(context.Background(), "u1"); err == nil {
		t.Fatal("cached balance was not invalidated")
	}
	claims, ok := h.claims.get("u1")
	if !ok || claims.HasCredits {
		t.Fatalf("claims not refreshed after last credit: %+v (set=%v)", claims, ok)
	}
	if types := h.publisher.types(); len(types) != 1 {
		t.Fatalf("expected one ledger event, got %v", types)
	}
	if entries := h.audit.Entries(); len(entries) != 1 || entries[0].Action != models.AuditActionCreditConsumed {
		t.Fatalf("unexpected audit entries: %+v", entries)
	}
}

func TestPeek(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &models.Account{ID: "u1", Credits: 2})

	got, err := h.ledger.Peek(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if got.Credits != 2 || got.SubscriptionActive {
		t.Fatalf("Peek = %+v", got)
	}
	if cached, err := h.cache.Get(context.Background(), "u1"); err != nil || cached != got {
		t.Fatalf("balance not cached: %+v, %v", cached, err)
	}
	if c := h.account(t, "u1").Credits; c != 2 {
		t.Fatalf("Peek changed credits to %d", c)
	}

	unknown, err := h.ledger.Peek(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Peek unknown: %v", err)
	}
	if unknown != (models.Balance{}) {
		t.Fatalf("unknown account balance = %+v, want zero", unknown)
	}
}

func TestPeekServesCachedBalance(t *testing.T) {
	h := newHarness(t)
	h.seed(t, &models.Account{ID: "u1", Credits: 0})
	stale := models.Balance{Credits: 9}
	_ = h.cache.Set(context.Background(), "u1", stale)

	got, err := h.ledger.Peek(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if got != stale {
		t.Fatalf("Peek = %+v, want cached %+v", got, stale)
	}
}

func TestGetAccountNotFound(t *testing.T) {
	h := newHarness(t)
	if _, err := h.ledger.GetAccount(context.Background(), "ghost"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
