package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"adstudio-backend-go/internal/models"
)

// These tests need a disposable PostgreSQL database and are skipped unless
// DATABASE_URL is set.
func newPostgresRepo(t *testing.T) AccountRepository {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := NewPostgresPool(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPostgresPool: %v", err)
	}
	t.Cleanup(pool.Close)
	repo, err := NewPostgresAccountRepository(pool)
	if err != nil {
		t.Fatalf("NewPostgresAccountRepository: %v", err)
	}
	return repo
}

func uniqueUserID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func TestPostgresAccountRepositoryConcurrentDecrement(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	userID := uniqueUserID("pg-decrement")
	seedAccount(t, repo, &models.Account{ID: userID, Email: userID + "@example.com", Credits: 1})

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var did bool
			_, err := repo.Mutate(ctx, userID, Mutation{Apply: func(a *models.Account) (bool, error) {
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
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 1 {
		t.Fatalf("expected exactly one decrement, got %d", allowed)
	}
	got, err := repo.GetByID(ctx, userID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Credits != 0 {
		t.Fatalf("credits = %d, want 0", got.Credits)
	}
}

func TestPostgresAccountRepositoryDuplicateEvent(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	userID := uniqueUserID("pg-dedup")
	seedAccount(t, repo, &models.Account{ID: userID, Email: userID + "@example.com", StripeCustomerID: "cus_" + userID})

	grant := Mutation{
		EventKey: "test:" + userID,
		Event:    models.ProcessedEvent{Provider: "stripe", EventID: "evt_" + userID, EventType: "checkout.session.completed"},
		Purchase: &models.Purchase{SessionID: "cs_" + userID, ProductID: "image-3pack", Amount: 500, Currency: "usd", Status: "paid"},
		Apply: func(a *models.Account) (bool, error) {
			a.Credits += 3
			return true, nil
		},
	}
	if _, err := repo.Mutate(ctx, userID, grant); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := repo.Mutate(ctx, userID, grant); !errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("expected ErrDuplicateEvent, got %v", err)
	}

	got, err := repo.GetByStripeCustomerID(ctx, "cus_"+userID)
	if err != nil {
		t.Fatalf("GetByStripeCustomerID: %v", err)
	}
	if got.Credits != 3 {
		t.Fatalf("credits = %d, want 3", got.Credits)
	}
	purchases, err := repo.ListPurchases(ctx, userID, 10)
	if err != nil {
		t.Fatalf("ListPurchases: %v", err)
	}
	if len(purchases) != 1 || purchases[0].SessionID != "cs_"+userID {
		t.Fatalf("purchases = %+v, want one row", purchases)
	}
}

func TestPostgresAccountRepositoryApplyErrorRollsBack(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	userID := uniqueUserID("pg-rollback")
	seedAccount(t, repo, &models.Account{ID: userID, Credits: 2})

	boom := errors.New("apply failed")
	m := Mutation{
		EventKey: "test:" + userID,
		Purchase: &models.Purchase{SessionID: "cs_" + userID, ProductID: "image-3pack"},
		Apply: func(a *models.Account) (bool, error) {
			a.Credits = 99
			return true, boom
		},
	}
	if _, err := repo.Mutate(ctx, userID, m); !errors.Is(err, boom) {
		t.Fatalf("expected apply error, got %v", err)
	}

	got, err := repo.GetByID(ctx, userID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Credits != 2 {
		t.Fatalf("credits = %d after failed apply, want 2", got.Credits)
	}
	if purchases, _ := repo.ListPurchases(ctx, userID, 10); len(purchases) != 0 {
		t.Fatalf("purchase recorded by failed mutation: %+v", purchases)
	}

	// The event key was rolled back with the rest, so a retry applies.
	m.Apply = func(a *models.Account) (bool, error) {
		a.Credits++
		return true, nil
	}
	if _, err := repo.Mutate(ctx, userID, m); err != nil {
		t.Fatalf("retry after failed apply: %v", err)
	}
}

func TestPostgresAccountRepositoryNotFound(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	if _, err := repo.GetByID(ctx, uniqueUserID("pg-missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID: expected ErrNotFound, got %v", err)
	}
	_, err := repo.Mutate(ctx, uniqueUserID("pg-missing"), Mutation{Apply: decrementOne})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Mutate: expected ErrNotFound, got %v", err)
	}
	id := uniqueUserID("pg-dup")
	seedAccount(t, repo, &models.Account{ID: id})
	if err := repo.Create(ctx, &models.Account{ID: id}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("Create: expected ErrAlreadyExists, got %v", err)
	}
}
