package directory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound occurs when no wallet is registered for the ismailId.
var ErrNotFound = errors.New("no wallet registered for ismail id")

// Repository maps platform identities (ismailId) to wallet identifiers.
// Identity issuance itself belongs to the external auth service; this is
// only the lookup the transaction engine needs to resolve recipients.
type Repository interface {
	Register(ctx context.Context, ismailID, walletID string) error
	Lookup(ctx context.Context, ismailID string) (string, error)
}

// Service normalizes identities before delegating to the repository.
type Service struct {
	repo Repository
}

// NewService builds a directory service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register binds an ismailId to its wallet.
func (s *Service) Register(ctx context.Context, ismailID, walletID string) error {
	ismailID = normalize(ismailID)
	if ismailID == "" {
		return errors.New("ismail id is required")
	}
	return s.repo.Register(ctx, ismailID, walletID)
}

// Resolve returns the walletId registered for the ismailId.
func (s *Service) Resolve(ctx context.Context, ismailID string) (string, error) {
	return s.repo.Lookup(ctx, normalize(ismailID))
}

func normalize(ismailID string) string {
	return strings.ToUpper(strings.TrimSpace(ismailID))
}

type memoryRepository struct {
	mu      sync.RWMutex
	wallets map[string]string
}

// NewMemoryRepository builds an in-memory directory for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{wallets: make(map[string]string)}
}

func (r *memoryRepository) Register(_ context.Context, ismailID, walletID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.wallets[ismailID]; exists {
		return errors.New("ismail id already registered")
	}
	r.wallets[ismailID] = walletID
	return nil
}

func (r *memoryRepository) Lookup(_ context.Context, ismailID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	walletID, ok := r.wallets[ismailID]
	if !ok {
		return "", ErrNotFound
	}
	return walletID, nil
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed directory repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Register binds an ismailId to its wallet.
func (r *PostgresRepository) Register(ctx context.Context, ismailID, walletID string) error {
	_, err := r.db.Exec(ctx, `INSERT INTO wallet_directory (ismail_id, wallet_id) VALUES ($1, $2)`, ismailID, walletID)
	return err
}

// Lookup fetches the wallet registered for the ismailId.
func (r *PostgresRepository) Lookup(ctx context.Context, ismailID string) (string, error) {
	var walletID string
	row := r.db.QueryRow(ctx, `SELECT wallet_id FROM wallet_directory WHERE ismail_id = $1`, ismailID)
	if err := row.Scan(&walletID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return walletID, nil
}
