package library

import (
	"log/slog"

	"github.com/pkg/errors"
)

// FineService is the durable per-user balance ledger. The full map lives in
// memory and is pushed to storage on every mutation. A username that has
// never been fined simply has no entry: absence means zero debt.
type FineService struct {
	storage  FineStorage
	balances map[string]int64
	log      *slog.Logger
}

// NewFineService loads the balance map from storage. Corrupt stored balances
// are fatal here, unlike write failures later: a ledger that cannot be parsed
// is treated as corrupt state, not a skippable anomaly.
func NewFineService(storage FineStorage, log *slog.Logger) (*FineService, error) {
	balances, err := storage.Load()
	if err != nil {
		return nil, errors.Wrap(err, "load fine balances")
	}
	if balances == nil {
		balances = make(map[string]int64)
	}
	return &FineService{storage: storage, balances: balances, log: log}, nil
}

// Balance returns the user's current debt, 0 for unknown or empty usernames.
func (s *FineService) Balance(username string) int64 {
	return s.balances[username]
}

// AddFine increases the user's balance and persists. No-op for empty
// usernames or non-positive amounts. Repeated calls accumulate; callers that
// re-evaluate the same overdue period must compute deltas themselves.
func (s *FineService) AddFine(username string, amount int64) {
	if username == "" || amount <= 0 {
		return
	}
	s.balances[username] += amount
	s.persist()
}

// PayFine decreases the user's balance, flooring at 0, persists, and returns
// the new balance. Empty usernames and non-positive amounts leave the balance
// untouched. A paid-off user keeps a zero entry in the ledger.
func (s *FineService) PayFine(username string, amount int64) int64 {
	if username == "" || amount <= 0 {
		return s.balances[username]
	}
	balance := s.balances[username] - amount
	if balance < 0 {
		balance = 0
	}
	s.balances[username] = balance
	s.persist()
	return balance
}

// AllBalances returns a defensive copy of the full ledger.
func (s *FineService) AllBalances() map[string]int64 {
	out := make(map[string]int64, len(s.balances))
	for u, b := range s.balances {
		out[u] = b
	}
	return out
}

// persist is best-effort: a failed write is logged and the in-memory ledger
// stays the source of truth for the rest of the session.
func (s *FineService) persist() {
	if err := s.storage.Save(s.balances); err != nil {
		s.log.Error("persist fine balances failed", "error", err)
	}
}
