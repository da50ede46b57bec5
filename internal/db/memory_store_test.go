package db

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"adstudio-backend-go/internal/models"
)

func seedAccount(t *testing.T, repo AccountRepository, acct *models.Account) {
	t.Helper()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now().UTC()
	}
	if err := repo.Create(context.Background(), acct); err != nil {
		t.Fatalf("seed account %s: %v", acct.ID, err)
	}
}

func decrementOne(acct *models.Account) (bool, error) {
	if acct.Credits <= 0 {
		return false, nil
	}
	acct.Credits--
	return true, nil
}

func TestMemoryStoreCreateIsCreateOnly(t *testing.T) {
	store := NewMemoryStore()
	seedAccount(t, store, &models.Account{ID: "u1", Email: "a@example.com", Credits: 1})

	err := store.Create(context.Background(), &models.Account{ID: "u1", Credits: 5})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	got, err := store.GetByID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Credits != 1 {
		t.Fatalf("credits overwritten: got %d", got.Credits)
	}
}

func TestMemoryStoreLookups(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedAccount(t, store, &models.Account{ID: "late", Email: "dup@example.com", CreatedAt: base.Add(time.Hour)})
	seedAccount(t, store, &models.Account{ID: "early", Email: "dup@example.com", StripeCustomerID: "cus_1", CreatedAt: base})

	tests := []struct {
		name    string
		lookup  func() (*models.Account, error)
		wantID  string
		wantErr error
	}{
		{"by id", func() (*models.Account, error) { return store.GetByID(context.Background(), "late") }, "late", nil},
		{"missing id", func() (*models.Account, error) { return store.GetByID(context.Background(), "nope") }, "", ErrNotFound},
		{"email first match", func() (*models.Account, error) { return store.GetByEmail(context.Background(), "dup@example.com") }, "early", nil},
		{"customer id", func() (*models.Account, error) { return store.GetByStripeCustomerID(context.Background(), "cus_1") }, "early", nil},
		{"unknown customer", func() (*models.Account, error) { return store.GetByStripeCustomerID(context.Background(), "cus_x") }, "", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.lookup()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.ID != tt.wantID {
				t.Fatalf("got account %s, want %s", got.ID, tt.wantID)
			}
		})
	}
}

func TestMemoryStoreMutateConcurrentDecrements(t *testing.T) {
	store := NewMemoryStore()
	seedAccount(t, store, &models.Account{ID: "u1", Credits: 1})

	const workers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var did bool
			_, err := store.Mutate(context.Background(), "u1", Mutation{Apply: func(a *models.Account) (bool, error) {
				did = false
				changed, err := decrementOne(a)
				did = changed
				return changed, err
			}})
			if err != nil {
				t.Errorf("Mutate: %v", err)
				return
			}
			if did {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if applied != 1 {
		t.Fatalf("expected exactly one decrement, got %d", applied)
	}
	got, _ := store.GetByID(context.Background(), "u1")
	if got.Credits != 0 {
		t.Fatalf("expected 0 credits, got %d", got.Credits)
	}
}

func TestMemoryStoreMutateEventDedup(t *testing.T) {
	store := NewMemoryStore()
	seedAccount(t, store, &models.Account{ID: "u1"})

	grant := Mutation{
		EventKey: "stripe:checkout:cs_1",
		Event:    models.ProcessedEvent{Provider: "stripe", EventType: "checkout.session.completed"},
		Purchase: &models.Purchase{SessionID: "cs_1", ProductID: "image-3pack", Amount: 500, Currency: "usd", Status: "paid"},
		Apply: func(a *models.Account) (bool, error) {
			a.Credits += 3
			return true, nil
		},
	}

	if _, err := store.Mutate(context.Background(), "u1", grant); err != nil {
		t.Fatalf("first Mutate: %v", err)
	}
	if _, err := store.Mutate(context.Background(), "u1", grant); !errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("expected ErrDuplicateEvent, got %v", err)
	}

	got, _ := store.GetByID(context.Background(), "u1")
	if got.Credits != 3 {
		t.Fatalf("expected 3 credits after duplicate delivery, got %d", got.Credits)
	}
	purchases, err := store.ListPurchases(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("ListPurchases: %v", err)
	}
	if len(purchases) != 1 || purchases[0].SessionID != "cs_1" || purchases[0].ID == "" {
		t.Fatalf("unexpected purchases: %+v", purchases)
	}
	ev, ok := store.ProcessedEvent("stripe:checkout:cs_1")
	if !ok || ev.UserID != "u1" || ev.ProcessedAt.IsZero() {
		t.Fatalf("processed event not recorded: %+v", ev)
	}
}

func TestMemoryStoreMutateErrorLeavesAccountUntouched(t *testing.T) {
	store := NewMemoryStore()
	seedAccount(t, store, &models.Account{ID: "u1", Credits: 2})
	boom := errors.New("boom")

	_, err := store.Mutate(context.Background(), "u1", Mutation{
		EventKey: "k1",
		Apply: func(a *models.Account) (bool, error) {
			a.Credits = 100
			return true, boom
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected apply error, got %v", err)
	}
	got, _ := store.GetByID(context.Background(), "u1")
	if got.Credits != 2 {
		t.Fatalf("credits changed on failed mutation: %d", got.Credits)
	}
	if _, ok := store.ProcessedEvent("k1"); ok {
		t.Fatal("event key recorded for failed mutation")
	}
}

func TestMemoryStoreCancelledContextIsUnavailable(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.GetByID(ctx, "u1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestMemoryAuditRepository(t *testing.T) {
	store := NewMemoryStore()
	audit := store.AuditRepository()
	if err := audit.Create(context.Background(), models.AuditLog{UserID: "u1", Action: models.AuditActionCreditConsumed}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	entries := audit.Entries()
	if len(entries) != 1 || entries[0].ID == "" || entries[0].Action != models.AuditActionCreditConsumed {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}
