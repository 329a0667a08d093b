package library

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

// BorrowRecordService is the loan transaction ledger. Records live in memory
// in insertion order; new loans are appended to storage, marking a return
// rewrites the whole ledger. Nothing enforces a single active record per
// (username, isbn) pair; a user borrowing the same title twice before
// returning produces two active records, each settled independently.
type BorrowRecordService struct {
	storage BorrowStorage
	records []*BorrowRecord
	log     *slog.Logger
}

// NewBorrowRecordService loads the ledger from storage. Corrupt records are
// fatal; a missing store is an empty ledger.
func NewBorrowRecordService(storage BorrowStorage, log *slog.Logger) (*BorrowRecordService, error) {
	records, err := storage.Load()
	if err != nil {
		return nil, errors.Wrap(err, "load borrow records")
	}
	return &BorrowRecordService{storage: storage, records: records, log: log}, nil
}

// RecordBorrow appends a new unreturned record. Duplicate active records for
// the same pair are allowed.
func (s *BorrowRecordService) RecordBorrow(username, isbn string, dueDate time.Time) *BorrowRecord {
	rec := &BorrowRecord{Username: username, ISBN: isbn, DueDate: dueDate}
	s.records = append(s.records, rec)
	if err := s.storage.Append(rec); err != nil {
		s.log.Error("persist borrow record failed", "error", err, "user", username, "isbn", isbn)
	}
	return rec
}

// FindActiveBorrowRecord returns the first unreturned record matching both
// keys exactly, in original insertion order, or ErrNoActiveBorrow.
func (s *BorrowRecordService) FindActiveBorrowRecord(username, isbn string) (*BorrowRecord, error) {
	for _, r := range s.records {
		if r.Active() && r.Username == username && r.ISBN == isbn {
			return r, nil
		}
	}
	return nil, ErrNoActiveBorrow
}

// RecordReturn marks the first matching active record returned and rewrites
// the ledger. Without an active record it refuses with ErrNoActiveBorrow
// rather than fabricating a historical entry.
func (s *BorrowRecordService) RecordReturn(username, isbn string, returnDate time.Time) (*BorrowRecord, error) {
	rec, err := s.FindActiveBorrowRecord(username, isbn)
	if err != nil {
		return nil, err
	}
	rec.Returned = true
	d := returnDate
	rec.ReturnDate = &d
	if err := s.storage.Rewrite(s.records); err != nil {
		s.log.Error("persist borrow ledger failed", "error", err, "user", username, "isbn", isbn)
	}
	return rec, nil
}

// ActiveRecordsForUser returns the user's unreturned records in scan order.
func (s *BorrowRecordService) ActiveRecordsForUser(username string) []*BorrowRecord {
	var out []*BorrowRecord
	for _, r := range s.records {
		if r.Active() && r.Username == username {
			out = append(out, r)
		}
	}
	return out
}

// ActiveRecords returns every unreturned record in scan order.
func (s *BorrowRecordService) ActiveRecords() []*BorrowRecord {
	var out []*BorrowRecord
	for _, r := range s.records {
		if r.Active() {
			out = append(out, r)
		}
	}
	return out
}

// HasActiveBorrows reports whether the user has any loan out, short-circuiting
// on the first match.
func (s *BorrowRecordService) HasActiveBorrows(username string) bool {
	for _, r := range s.records {
		if r.Active() && r.Username == username {
			return true
		}
	}
	return false
}

// AllRecords returns the full ledger in insertion order.
func (s *BorrowRecordService) AllRecords() []*BorrowRecord {
	return append([]*BorrowRecord(nil), s.records...)
}
