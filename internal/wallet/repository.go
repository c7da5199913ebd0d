package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ismail-platform/wallet/internal/money"
)

// ErrNotFound occurs when no wallet exists for the identifier.
var ErrNotFound = errors.New("wallet account not found")

// Repository persists wallet metadata.
type Repository interface {
	Create(ctx context.Context, account Account) error
	Get(ctx context.Context, id string) (Account, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// PostgresRepository stores wallet accounts in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet account record.
func (r *PostgresRepository) Create(ctx context.Context, account Account) error {
	walletID, err := uuid.Parse(account.ID)
	if err != nil {
		return err
	}
	ownerID, err := uuid.Parse(account.OwnerID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallet_accounts (id, owner_id, ismail_id, currency, status, tier, pin_hash, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		walletID, ownerID, account.IsmailID, string(account.Currency), string(account.Status),
		string(account.Tier), account.PINHash, account.CreatedAt.UTC())
	return err
}

// Get fetches a wallet account by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Account, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, owner_id, ismail_id, currency, status, tier, pin_hash, created_at
        FROM wallet_accounts WHERE id = $1`, walletID)

	var (
		account   Account
		idVal     uuid.UUID
		ownerID   uuid.UUID
		currency  string
		status    string
		tier      string
		createdAt time.Time
	)
	if err := row.Scan(&idVal, &ownerID, &account.IsmailID, &currency, &status, &tier, &account.PINHash, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	account.ID = idVal.String()
	account.OwnerID = ownerID.String()
	account.Currency = money.Currency(currency)
	account.Status = Status(status)
	account.Tier = Tier(tier)
	account.CreatedAt = createdAt.UTC()
	return account, nil
}

// UpdateStatus transitions the account lifecycle state.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE wallet_accounts SET status = $1 WHERE id = $2`, string(status), walletID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
