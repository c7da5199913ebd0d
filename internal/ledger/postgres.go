package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ismail-platform/wallet/internal/money"
)

// PostgresStore persists ledger entries and balance projections in
// PostgreSQL. Atomicity comes from a single transaction per commit; the
// version column carries the optimistic-concurrency check across processes.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureWallet registers the wallet's ledger account with a zero balance.
func (s *PostgresStore) EnsureWallet(ctx context.Context, walletID string, currency money.Currency) error {
	_, err := s.db.Exec(ctx, `INSERT INTO ledger_accounts (wallet_id, currency, balance, version)
        VALUES ($1, $2, 0, 0) ON CONFLICT (wallet_id) DO NOTHING`, walletID, string(currency))
	return err
}

// AppendCommitted writes the entries and advances balances atomically.
func (s *PostgresStore) AppendCommitted(ctx context.Context, entries []Entry, checks []VersionCheck) (CommitResult, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return CommitResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	type accountState struct {
		currency money.Currency
		balance  int64
		version  int64
	}

	accounts := make(map[string]*accountState)
	lockAccount := func(walletID string) (*accountState, error) {
		if acct, ok := accounts[walletID]; ok {
			return acct, nil
		}
		var currency string
		acct := &accountState{}
		row := tx.QueryRow(ctx, `SELECT currency, balance, version FROM ledger_accounts
            WHERE wallet_id = $1 FOR UPDATE`, walletID)
		if err := row.Scan(&currency, &acct.balance, &acct.version); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		acct.currency = money.Currency(currency)
		accounts[walletID] = acct
		return acct, nil
	}

	// Lock wallets in a deterministic order to avoid lock inversion with
	// a concurrent commit touching the same pair.
	for _, walletID := range sortedWalletIDs(entries) {
		if _, err := lockAccount(walletID); err != nil {
			return CommitResult{}, err
		}
	}

	for _, check := range checks {
		acct, err := lockAccount(check.WalletID)
		if err != nil {
			return CommitResult{}, err
		}
		if acct.version != check.Version {
			return CommitResult{}, ErrConflict
		}
	}

	for _, e := range entries {
		if e.IdempotencyKey == "" {
			continue
		}
		var exists bool
		row := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_entries
            WHERE wallet_id = $1 AND idempotency_key = $2 AND status = $3)`,
			e.WalletID, e.IdempotencyKey, string(StatusCommitted))
		if err := row.Scan(&exists); err != nil {
			return CommitResult{}, err
		}
		if exists {
			return CommitResult{}, ErrDuplicateCommitted
		}
	}

	result := CommitResult{
		EntryIDs: make([]string, 0, len(entries)),
		Balances: make(map[string]int64),
		Versions: make(map[string]int64),
	}

	for i := range entries {
		e := entries[i]
		acct := accounts[e.WalletID]
		next, err := money.New(acct.balance, acct.currency).Add(money.New(e.Delta, acct.currency))
		if err != nil {
			return CommitResult{}, err
		}
		if next.IsNegative() {
			return CommitResult{}, ErrNegativeBalance
		}
		acct.balance = next.Amount

		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		if _, err := tx.Exec(ctx, `INSERT INTO ledger_entries
            (id, wallet_id, delta, resulting_balance, currency, kind, counterparty_wallet_id,
             transfer_id, idempotency_key, external_reference, status, reversal_of, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), $11, NULLIF($12, ''), $13)`,
			e.ID, e.WalletID, e.Delta, acct.balance, string(acct.currency), string(e.Kind),
			e.CounterpartyWalletID, e.TransferID, e.IdempotencyKey, e.ExternalReference,
			string(StatusCommitted), e.ReversalOf, e.CreatedAt.UTC()); err != nil {
			return CommitResult{}, err
		}
		result.EntryIDs = append(result.EntryIDs, e.ID)
	}

	for walletID, acct := range accounts {
		if !touchesWallet(entries, walletID) {
			continue
		}
		acct.version++
		cmd, err := tx.Exec(ctx, `UPDATE ledger_accounts SET balance = $1, version = $2
            WHERE wallet_id = $3 AND version = $4`, acct.balance, acct.version, walletID, acct.version-1)
		if err != nil {
			return CommitResult{}, err
		}
		if cmd.RowsAffected() == 0 {
			return CommitResult{}, ErrConflict
		}
		result.Balances[walletID] = acct.balance
		result.Versions[walletID] = acct.version
	}

	if err := tx.Commit(ctx); err != nil {
		return CommitResult{}, err
	}
	return result, nil
}

// ReadBalance returns the committed balance projection and version.
func (s *PostgresStore) ReadBalance(ctx context.Context, walletID string) (money.Money, int64, error) {
	var (
		currency string
		balance  int64
		version  int64
	)
	row := s.db.QueryRow(ctx, `SELECT currency, balance, version FROM ledger_accounts WHERE wallet_id = $1`, walletID)
	if err := row.Scan(&currency, &balance, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return money.Money{}, 0, ErrNotFound
		}
		return money.Money{}, 0, err
	}
	return money.New(balance, money.Currency(currency)), version, nil
}

// ReadHistory returns committed entries newest first.
func (s *PostgresStore) ReadHistory(ctx context.Context, walletID string, page Page) ([]Entry, error) {
	if page.Size <= 0 {
		page.Size = 20
	}
	if page.Number < 0 {
		page.Number = 0
	}
	rows, err := s.db.Query(ctx, `SELECT id, wallet_id, delta, resulting_balance, currency, kind,
            COALESCE(counterparty_wallet_id, ''), COALESCE(transfer_id, ''), COALESCE(idempotency_key, ''),
            COALESCE(external_reference, ''), status, COALESCE(reversal_of, ''), created_at
        FROM ledger_entries WHERE wallet_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3`, walletID, page.Size, page.Number*page.Size)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0, page.Size)
	for rows.Next() {
		var (
			e         Entry
			currency  string
			kind      string
			status    string
			createdAt time.Time
		)
		if err := rows.Scan(&e.ID, &e.WalletID, &e.Delta, &e.ResultingBalance, &currency, &kind,
			&e.CounterpartyWalletID, &e.TransferID, &e.IdempotencyKey,
			&e.ExternalReference, &status, &e.ReversalOf, &createdAt); err != nil {
			return nil, err
		}
		e.Currency = money.Currency(currency)
		e.Kind = Kind(kind)
		e.Status = Status(status)
		e.CreatedAt = createdAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// OutgoingTotalSince sums committed outgoing magnitudes inside the window.
func (s *PostgresStore) OutgoingTotalSince(ctx context.Context, walletID string, since time.Time) (int64, error) {
	var total int64
	row := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(-delta), 0) FROM ledger_entries
        WHERE wallet_id = $1 AND status = $2 AND kind = ANY($3) AND created_at >= $4`,
		walletID, string(StatusCommitted),
		[]string{string(KindDebit), string(KindTransferOut), string(KindWithdrawal)}, since.UTC())
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Reverse flips the entry to REVERSED and appends the compensating record.
func (s *PostgresStore) Reverse(ctx context.Context, entryID, reason string) (Entry, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Entry{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var (
		original Entry
		currency string
		kind     string
		status   string
	)
	row := tx.QueryRow(ctx, `SELECT id, wallet_id, delta, currency, kind,
            COALESCE(counterparty_wallet_id, ''), COALESCE(idempotency_key, ''), status
        FROM ledger_entries WHERE id = $1 FOR UPDATE`, entryID)
	if err := row.Scan(&original.ID, &original.WalletID, &original.Delta, &currency, &kind,
		&original.CounterpartyWalletID, &original.IdempotencyKey, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	if Status(status) == StatusReversed {
		return Entry{}, ErrDuplicateCommitted
	}

	var (
		balance int64
		version int64
	)
	row = tx.QueryRow(ctx, `SELECT balance, version FROM ledger_accounts WHERE wallet_id = $1 FOR UPDATE`, original.WalletID)
	if err := row.Scan(&balance, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}

	compensation := compensatingEntry(original, reason)
	next, err := money.New(balance, money.Currency(currency)).Add(money.New(compensation.Delta, money.Currency(currency)))
	if err != nil {
		return Entry{}, err
	}
	if next.IsNegative() {
		return Entry{}, ErrNegativeBalance
	}
	compensation.ResultingBalance = next.Amount
	compensation.Currency = money.Currency(currency)

	if _, err := tx.Exec(ctx, `UPDATE ledger_entries SET status = $1 WHERE id = $2`,
		string(StatusReversed), original.ID); err != nil {
		return Entry{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO ledger_entries
        (id, wallet_id, delta, resulting_balance, currency, kind, counterparty_wallet_id,
         transfer_id, idempotency_key, external_reference, status, reversal_of, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULL, $8, NULLIF($9, ''), $10, $11, $12)`,
		compensation.ID, compensation.WalletID, compensation.Delta, compensation.ResultingBalance,
		string(compensation.Currency), string(compensation.Kind), compensation.CounterpartyWalletID,
		compensation.IdempotencyKey, compensation.ExternalReference, string(StatusCommitted),
		compensation.ReversalOf, compensation.CreatedAt.UTC()); err != nil {
		return Entry{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE ledger_accounts SET balance = $1, version = $2 WHERE wallet_id = $3`,
		next.Amount, version+1, original.WalletID); err != nil {
		return Entry{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Entry{}, err
	}
	return compensation, nil
}

func sortedWalletIDs(entries []Entry) []string {
	seen := make(map[string]struct{}, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.WalletID]; ok {
			continue
		}
		seen[e.WalletID] = struct{}{}
		ids = append(ids, e.WalletID)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}

func touchesWallet(entries []Entry, walletID string) bool {
	for _, e := range entries {
		if e.WalletID == walletID {
			return true
		}
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
