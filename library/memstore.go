package library

// In-memory adapters for tests and the memory backend. Snapshots are deep
// copied on the way in and out so callers never share state with the store.

// MemMediaStorage holds the catalog in memory.
type MemMediaStorage struct {
	items []*MediaItem
}

// NewMemMediaStorage returns an empty in-memory catalog store.
func NewMemMediaStorage() *MemMediaStorage { return &MemMediaStorage{} }

func copyMedia(items []*MediaItem) []*MediaItem {
	out := make([]*MediaItem, len(items))
	for i, m := range items {
		c := *m
		if m.DueDate != nil {
			d := *m.DueDate
			c.DueDate = &d
		}
		out[i] = &c
	}
	return out
}

func (s *MemMediaStorage) Load() ([]*MediaItem, error) { return copyMedia(s.items), nil }

func (s *MemMediaStorage) Save(items []*MediaItem) error {
	s.items = copyMedia(items)
	return nil
}

// MemBorrowStorage holds the loan ledger in memory.
type MemBorrowStorage struct {
	recs []*BorrowRecord
}

// NewMemBorrowStorage returns an empty in-memory ledger store.
func NewMemBorrowStorage() *MemBorrowStorage { return &MemBorrowStorage{} }

func copyRecords(recs []*BorrowRecord) []*BorrowRecord {
	out := make([]*BorrowRecord, len(recs))
	for i, r := range recs {
		c := *r
		if r.ReturnDate != nil {
			d := *r.ReturnDate
			c.ReturnDate = &d
		}
		out[i] = &c
	}
	return out
}

func (s *MemBorrowStorage) Load() ([]*BorrowRecord, error) { return copyRecords(s.recs), nil }

func (s *MemBorrowStorage) Append(rec *BorrowRecord) error {
	c := *rec
	if rec.ReturnDate != nil {
		d := *rec.ReturnDate
		c.ReturnDate = &d
	}
	s.recs = append(s.recs, &c)
	return nil
}

func (s *MemBorrowStorage) Rewrite(recs []*BorrowRecord) error {
	s.recs = copyRecords(recs)
	return nil
}

// MemFineStorage holds balances in memory.
type MemFineStorage struct {
	balances map[string]int64
}

// NewMemFineStorage returns an empty in-memory balance store.
func NewMemFineStorage() *MemFineStorage {
	return &MemFineStorage{balances: make(map[string]int64)}
}

func (s *MemFineStorage) Load() (map[string]int64, error) {
	out := make(map[string]int64, len(s.balances))
	for u, b := range s.balances {
		out[u] = b
	}
	return out, nil
}

func (s *MemFineStorage) Save(balances map[string]int64) error {
	out := make(map[string]int64, len(balances))
	for u, b := range balances {
		out[u] = b
	}
	s.balances = out
	return nil
}

// MemUserStorage holds accounts in memory.
type MemUserStorage struct {
	users []*UserAccount
}

// NewMemUserStorage returns an empty in-memory account store.
func NewMemUserStorage() *MemUserStorage { return &MemUserStorage{} }

func copyUsers(users []*UserAccount) []*UserAccount {
	out := make([]*UserAccount, len(users))
	for i, u := range users {
		c := *u
		out[i] = &c
	}
	return out
}

func (s *MemUserStorage) Load() ([]*UserAccount, error) { return copyUsers(s.users), nil }

func (s *MemUserStorage) Save(users []*UserAccount) error {
	s.users = copyUsers(users)
	return nil
}
