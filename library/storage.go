package library

// Storage adapters own durability; services own the in-memory working state
// and push full snapshots (or single appends) down. Three adapters implement
// these interfaces: flat text files, SQLite, and in-memory for tests.
//
// Failure contract, uniform across adapters and stores:
//   - Load returns an error for corrupt stored data; services treat that as
//     fatal at construction.
//   - Save/Append/Rewrite failures are recoverable; services log them and
//     continue with in-memory state as session truth.

// MediaStorage persists the catalog.
type MediaStorage interface {
	Load() ([]*MediaItem, error)
	Save(items []*MediaItem) error
}

// BorrowStorage persists the loan ledger. New loans are appended; marking a
// return rewrites the whole ledger.
type BorrowStorage interface {
	Load() ([]*BorrowRecord, error)
	Append(rec *BorrowRecord) error
	Rewrite(recs []*BorrowRecord) error
}

// FineStorage persists per-user balances as one full map.
type FineStorage interface {
	Load() (map[string]int64, error)
	Save(balances map[string]int64) error
}

// UserStorage persists accounts.
type UserStorage interface {
	Load() ([]*UserAccount, error)
	Save(users []*UserAccount) error
}
