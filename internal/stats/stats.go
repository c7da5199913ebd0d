package stats

import (
	"context"

	"github.com/ismail-platform/wallet/internal/ledger"
	"github.com/ismail-platform/wallet/internal/money"
)

// Summary aggregates a wallet's committed activity.
type Summary struct {
	WalletID          string `json:"wallet_id"`
	Balance           int64  `json:"balance"`
	Currency          string `json:"currency"`
	TotalTransactions int    `json:"total_transactions"`
	TotalCredits      int64  `json:"total_credits"`
	TotalDebits       int64  `json:"total_debits"`
}

// Service answers read-only balance, history and summary queries. It never
// takes wallet locks; readers see the latest committed state.
type Service struct {
	store ledger.Store
}

// NewService builds a stats service over the ledger.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// Balance returns the current balance and version of a wallet.
func (s *Service) Balance(ctx context.Context, walletID string) (money.Money, int64, error) {
	return s.store.ReadBalance(ctx, walletID)
}

// History returns a page of ledger entries, newest first.
func (s *Service) History(ctx context.Context, walletID string, page ledger.Page) ([]ledger.Entry, error) {
	return s.store.ReadHistory(ctx, walletID, page)
}

const summaryPageSize = 500

// Summarize folds over the full history of a wallet. Reversed entries count
// toward the transaction total but not toward the credit and debit sums.
func (s *Service) Summarize(ctx context.Context, walletID string) (Summary, error) {
	balance, _, err := s.store.ReadBalance(ctx, walletID)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		WalletID: walletID,
		Balance:  balance.Amount,
		Currency: string(balance.Currency),
	}
	for page := 0; ; page++ {
		entries, err := s.store.ReadHistory(ctx, walletID, ledger.Page{Number: page, Size: summaryPageSize})
		if err != nil {
			return Summary{}, err
		}
		for _, entry := range entries {
			summary.TotalTransactions++
			if entry.Status != ledger.StatusCommitted {
				continue
			}
			if entry.Delta > 0 {
				summary.TotalCredits += entry.Delta
			} else {
				summary.TotalDebits += -entry.Delta
			}
		}
		if len(entries) < summaryPageSize {
			return summary, nil
		}
	}
}
