package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"adstudio-backend-go/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id                        TEXT PRIMARY KEY,
	email                     TEXT NOT NULL DEFAULT '',
	name                      TEXT NOT NULL DEFAULT '',
	credits                   BIGINT NOT NULL DEFAULT 0 CHECK (credits >= 0),
	subscription_active       BOOLEAN NOT NULL DEFAULT FALSE,
	subscription_status       TEXT NOT NULL DEFAULT '',
	subscription_id           TEXT NOT NULL DEFAULT '',
	subscription_cancelled_at TIMESTAMPTZ,
	stripe_customer_id        TEXT NOT NULL DEFAULT '',
	created_at                TIMESTAMPTZ NOT NULL,
	last_login                TIMESTAMPTZ NOT NULL,
	updated_at                TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS accounts_email_idx ON accounts (email);
CREATE INDEX IF NOT EXISTS accounts_stripe_customer_idx ON accounts (stripe_customer_id);

CREATE TABLE IF NOT EXISTS purchases (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES accounts (id),
	session_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	amount     BIGINT NOT NULL,
	currency   TEXT NOT NULL,
	status     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS purchases_user_idx ON purchases (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS processed_events (
	key          TEXT PRIMARY KEY,
	provider     TEXT NOT NULL,
	event_id     TEXT NOT NULL DEFAULT '',
	event_type   TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	processed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_logs (
	id          TEXT PRIMARY KEY,
	ts          TIMESTAMPTZ NOT NULL,
	user_id     TEXT NOT NULL,
	action      TEXT NOT NULL,
	target_type TEXT NOT NULL DEFAULT '',
	target_id   TEXT NOT NULL DEFAULT '',
	details     JSONB
);
`

const accountColumns = `id, email, name, credits, subscription_active, subscription_status, subscription_id,
	subscription_cancelled_at, stripe_customer_id, created_at, last_login, updated_at`

// NewPostgresPool opens a pgx connection pool and makes sure the ledger schema exists.
func NewPostgresPool(ctx context.Context, connString string, logger *zap.Logger) (*pgxpool.Pool, error) {
	logger.Info("Connecting to PostgreSQL")

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to apply schema: %w", err)
	}

	logger.Info("Successfully connected to PostgreSQL")
	return pool, nil
}

// postgresAccountRepository implements AccountRepository on PostgreSQL. Mutate locks
// the account row with SELECT ... FOR UPDATE for the duration of the transaction.
type postgresAccountRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresAccountRepository creates an AccountRepository backed by pool.
func NewPostgresAccountRepository(pool *pgxpool.Pool) (AccountRepository, error) {
	if pool == nil {
		return nil, errors.New("postgres pool is not initialized for AccountRepository")
	}
	return &postgresAccountRepository{pool: pool, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (r *postgresAccountRepository) GetByID(ctx context.Context, userID string) (*models.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, userID)
	acct, err := scanAccount(row)
	if err != nil {
		return nil, r.wrapLookup(err, "id", userID)
	}
	return acct, nil
}

func (r *postgresAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1 ORDER BY created_at, id LIMIT 1`, email)
	acct, err := scanAccount(row)
	if err != nil {
		return nil, r.wrapLookup(err, "email", email)
	}
	return acct, nil
}

func (r *postgresAccountRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*models.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE stripe_customer_id = $1 ORDER BY created_at, id LIMIT 1`, customerID)
	acct, err := scanAccount(row)
	if err != nil {
		return nil, r.wrapLookup(err, "stripe_customer_id", customerID)
	}
	return acct, nil
}

func (r *postgresAccountRepository) wrapLookup(err error, field, value string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("account with %s '%s' not found: %w", field, value, ErrNotFound)
	}
	return fmt.Errorf("failed to get account by %s: %w", field, classifyPostgresErr(err))
}

func (r *postgresAccountRepository) Create(ctx context.Context, acct *models.Account) error {
	if acct == nil || acct.ID == "" {
		return errors.New("account ID cannot be empty for Create operation")
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		acct.ID, acct.Email, acct.Name, acct.Credits, acct.SubscriptionActive, acct.SubscriptionStatus,
		acct.SubscriptionID, acct.SubscriptionCancelledAt, acct.StripeCustomerID,
		acct.CreatedAt, acct.LastLogin, acct.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("account '%s': %w", acct.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create account '%s': %w", acct.ID, classifyPostgresErr(err))
	}
	return nil
}

func (r *postgresAccountRepository) Mutate(ctx context.Context, userID string, m Mutation) (*models.Account, error) {
	if m.Apply == nil {
		return nil, errors.New("mutation has no Apply function")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", classifyPostgresErr(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	acct, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, userID))
	if err != nil {
		return nil, r.wrapLookup(err, "id", userID)
	}

	now := r.now()
	if m.EventKey != "" {
		ev := m.Event
		if ev.ProcessedAt.IsZero() {
			ev.ProcessedAt = now
		}
		tag, err := tx.Exec(ctx, `INSERT INTO processed_events (key, provider, event_id, event_type, user_id, processed_at)
			VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (key) DO NOTHING`,
			m.EventKey, ev.Provider, ev.EventID, ev.EventType, userID, ev.ProcessedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to record event '%s': %w", m.EventKey, classifyPostgresErr(err))
		}
		if tag.RowsAffected() == 0 {
			return nil, fmt.Errorf("event '%s': %w", m.EventKey, ErrDuplicateEvent)
		}
	}

	changed, err := m.Apply(acct)
	if err != nil {
		return nil, err
	}
	if changed {
		acct.UpdatedAt = now
		_, err := tx.Exec(ctx, `UPDATE accounts SET email = $2, name = $3, credits = $4, subscription_active = $5,
			subscription_status = $6, subscription_id = $7, subscription_cancelled_at = $8,
			stripe_customer_id = $9, last_login = $10, updated_at = $11 WHERE id = $1`,
			acct.ID, acct.Email, acct.Name, acct.Credits, acct.SubscriptionActive, acct.SubscriptionStatus,
			acct.SubscriptionID, acct.SubscriptionCancelledAt, acct.StripeCustomerID, acct.LastLogin, acct.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to update account '%s': %w", userID, classifyPostgresErr(err))
		}
	}
	if m.Purchase != nil {
		p := *m.Purchase
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		_, err := tx.Exec(ctx, `INSERT INTO purchases (id, user_id, session_id, product_id, amount, currency, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.ID, userID, p.SessionID, p.ProductID, p.Amount, p.Currency, p.Status, p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to append purchase for '%s': %w", userID, classifyPostgresErr(err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction on '%s': %w", userID, classifyPostgresErr(err))
	}
	return acct, nil
}

func (r *postgresAccountRepository) ListPurchases(ctx context.Context, userID string, limit int) ([]*models.Purchase, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, session_id, product_id, amount, currency, status, created_at
		FROM purchases WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", classifyPostgresErr(err))
	}
	defer rows.Close()

	purchases := make([]*models.Purchase, 0)
	for rows.Next() {
		var p models.Purchase
		if err := rows.Scan(&p.ID, &p.SessionID, &p.ProductID, &p.Amount, &p.Currency, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purchases: %w", classifyPostgresErr(err))
	}
	return purchases, nil
}

type postgresAuditRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAuditRepository creates an AuditRepository backed by the audit_logs table.
func NewPostgresAuditRepository(pool *pgxpool.Pool) (AuditRepository, error) {
	if pool == nil {
		return nil, errors.New("postgres pool is not initialized for AuditRepository")
	}
	return &postgresAuditRepository{pool: pool}, nil
}

func (r *postgresAuditRepository) Create(ctx context.Context, logEntry models.AuditLog) error {
	if logEntry.ID == "" {
		logEntry.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO audit_logs (id, ts, user_id, action, target_type, target_id, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		logEntry.ID, logEntry.Timestamp, logEntry.UserID, logEntry.Action, logEntry.TargetType, logEntry.TargetID, logEntry.Details)
	if err != nil {
		return fmt.Errorf("failed to write audit log '%s': %w", logEntry.Action, classifyPostgresErr(err))
	}
	return nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var acct models.Account
	err := row.Scan(
		&acct.ID,
		&acct.Email,
		&acct.Name,
		&acct.Credits,
		&acct.SubscriptionActive,
		&acct.SubscriptionStatus,
		&acct.SubscriptionID,
		&acct.SubscriptionCancelledAt,
		&acct.StripeCustomerID,
		&acct.CreatedAt,
		&acct.LastLogin,
		&acct.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// classifyPostgresErr marks connection loss, timeouts and serialization failures as ErrUnavailable.
func classifyPostgresErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "57P01",
			len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08":
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return err
}
