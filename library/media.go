package library

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// UserDirectory resolves usernames to accounts for notification delivery.
type UserDirectory interface {
	Find(username string) (*UserAccount, error)
}

// MediaService is the orchestration hub: catalog CRUD, the borrow/return
// state machine, and fine accrual. It holds the catalog in memory and pushes
// a full snapshot to storage after each mutation.
type MediaService struct {
	storage  MediaStorage
	items    []*MediaItem
	records  *BorrowRecordService
	fines    *FineService
	calc     *FineCalculator
	clock    Clock
	journal  *Journal
	notifier Notifier
	users    UserDirectory
	log      *slog.Logger
}

// MediaOption configures optional collaborators of a MediaService.
type MediaOption func(*MediaService)

// WithClock overrides the time source, mainly for tests.
func WithClock(clock Clock) MediaOption {
	return func(s *MediaService) { s.clock = clock }
}

// WithJournal attaches the circulation audit journal.
func WithJournal(journal *Journal) MediaOption {
	return func(s *MediaService) { s.journal = journal }
}

// WithNotifier attaches a notification channel and the directory used to
// resolve usernames for it.
func WithNotifier(notifier Notifier, users UserDirectory) MediaOption {
	return func(s *MediaService) {
		s.notifier = notifier
		s.users = users
	}
}

// NewMediaService loads the catalog from storage. A missing store is an empty
// catalog; a corrupt one is fatal.
func NewMediaService(storage MediaStorage, records *BorrowRecordService, fines *FineService,
	calc *FineCalculator, log *slog.Logger, opts ...MediaOption) (*MediaService, error) {

	items, err := storage.Load()
	if err != nil {
		return nil, errors.Wrap(err, "load media catalog")
	}
	s := &MediaService{
		storage: storage,
		items:   items,
		records: records,
		fines:   fines,
		calc:    calc,
		clock:   SystemClock{},
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ---------------------------------------------------------------------------
// Circulation
// ---------------------------------------------------------------------------

// Borrow lends one copy of the item to the user. Refusals: ErrNotFound for an
// unknown isbn, ErrMediaUnavailable when no copy is in, ErrOutstandingFine
// when the user owes anything at all; debt is a hard gate regardless of
// availability. On success the due date is today plus the type's loan
// duration and the loan is recorded in the ledger.
func (s *MediaService) Borrow(isbn, username string) (*BorrowRecord, error) {
	item := s.findByISBN(isbn)
	if item == nil {
		return nil, ErrNotFound
	}
	if !item.Available() {
		return nil, ErrMediaUnavailable
	}
	if s.fines.Balance(username) > 0 {
		return nil, ErrOutstandingFine
	}

	today := s.clock.Today()
	due := today.AddDate(0, 0, item.Type.Policy().LoanDays)

	item.AvailableCopies--
	d := due
	item.DueDate = &d

	rec := s.records.RecordBorrow(username, item.ISBN, due)
	s.persist()
	s.journal.Record(EventMediaBorrowed, username, item.ISBN, 0, today)
	s.log.Info("media borrowed", "user", username, "isbn", item.ISBN, "due", due.Format(dateLayout))
	return rec, nil
}

// ReturnReceipt reports what a return did.
type ReturnReceipt struct {
	OverdueDays  int
	FineAssessed int64
}

// Return takes one copy back from the user. Refusals: ErrNotFound for an
// unknown isbn, ErrNoActiveBorrow when the user has no open loan for it. An
// overdue return assesses a fine through the calculator, but only the delta
// above the user's current balance is added, so re-evaluating the same
// overdue period never double-charges.
func (s *MediaService) Return(isbn, username string) (*ReturnReceipt, error) {
	item := s.findByISBN(isbn)
	if item == nil {
		return nil, ErrNotFound
	}
	rec, err := s.records.FindActiveBorrowRecord(username, item.ISBN)
	if err != nil {
		return nil, err
	}

	today := s.clock.Today()

	item.AvailableCopies++
	if item.AvailableCopies > item.TotalCopies {
		item.AvailableCopies = item.TotalCopies
	}
	if item.AvailableCopies == item.TotalCopies {
		item.DueDate = nil
	}
	s.persist()

	if _, err := s.records.RecordReturn(username, item.ISBN, today); err != nil {
		return nil, err
	}

	s.journal.Record(EventMediaReturned, username, item.ISBN, 0, today)

	receipt := &ReturnReceipt{OverdueDays: OverdueDays(rec.DueDate, today)}
	fine := s.calc.Calculate(string(item.Type), receipt.OverdueDays)
	if assessed := s.assessFine(username, item.ISBN, fine); assessed > 0 {
		receipt.FineAssessed = assessed
	}

	s.log.Info("media returned", "user", username, "isbn", item.ISBN,
		"overdue_days", receipt.OverdueDays, "fine", receipt.FineAssessed)
	return receipt, nil
}

// ReconcileFines catches fines that accrued while the application was not
// running: every active overdue loan contributes rate × overdue days to its
// user's owed total, then only the positive excess over the stored balance is
// added. Run once at startup.
func (s *MediaService) ReconcileFines() {
	today := s.clock.Today()
	owed := make(map[string]int64)
	for _, rec := range s.records.ActiveRecords() {
		days := OverdueDays(rec.DueDate, today)
		if days == 0 {
			continue
		}
		item := s.findByISBN(rec.ISBN)
		if item == nil {
			// Ledger entry for media no longer in the catalog; nothing to rate.
			continue
		}
		owed[rec.Username] += s.calc.Calculate(string(item.Type), days)
	}

	users := make([]string, 0, len(owed))
	for u := range owed {
		users = append(users, u)
	}
	sort.Strings(users)
	for _, u := range users {
		s.assessFine(u, "", owed[u])
	}
}

// assessFine applies delta reconciliation: only the part of total not already
// covered by the user's balance is added. Returns the amount actually added.
func (s *MediaService) assessFine(username, isbn string, total int64) int64 {
	balance := s.fines.Balance(username)
	if total <= balance {
		return 0
	}
	delta := total - balance
	s.fines.AddFine(username, delta)
	s.journal.Record(EventFineAssessed, username, isbn, delta, s.clock.Today())
	s.notifyFine(username, delta)
	return delta
}

func (s *MediaService) notifyFine(username string, amount int64) {
	if s.notifier == nil || s.users == nil {
		return
	}
	user, err := s.users.Find(username)
	if err != nil {
		return
	}
	body := fmt.Sprintf("An overdue fine of %d has been added to your account. Your balance is now %d.",
		amount, s.fines.Balance(username))
	if err := s.notifier.Notify(user, "Overdue fine assessed", body); err != nil {
		s.log.Warn("fine notification failed", "error", err, "user", username)
	}
}

// ---------------------------------------------------------------------------
// Catalog CRUD
// ---------------------------------------------------------------------------

// AddMedia puts a new item in the catalog with all copies available.
func (s *MediaService) AddMedia(mt MediaType, title, author, isbn string, copies int) (*MediaItem, error) {
	if strings.TrimSpace(isbn) == "" {
		return nil, errors.New("isbn cannot be empty")
	}
	if copies < 0 {
		return nil, errors.New("copy count cannot be negative")
	}
	if s.findByISBN(isbn) != nil {
		return nil, ErrDuplicateISBN
	}
	item := &MediaItem{
		Type:            mt,
		Title:           title,
		Author:          author,
		ISBN:            isbn,
		TotalCopies:     copies,
		AvailableCopies: copies,
	}
	s.items = append(s.items, item)
	s.persist()
	return item, nil
}

// DeleteMedia removes the item from the catalog.
func (s *MediaService) DeleteMedia(isbn string) error {
	for i, m := range s.items {
		if m.SameISBN(isbn) {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.persist()
			return nil
		}
	}
	return ErrNotFound
}

// UpdateQuantity sets the item's total copy count, clamping available copies
// down when they would exceed the new total.
func (s *MediaService) UpdateQuantity(isbn string, total int) (*MediaItem, error) {
	if total < 0 {
		return nil, errors.New("copy count cannot be negative")
	}
	item := s.findByISBN(isbn)
	if item == nil {
		return nil, ErrNotFound
	}
	item.TotalCopies = total
	if item.AvailableCopies > total {
		item.AvailableCopies = total
	}
	s.persist()
	return item, nil
}

// FindByISBN looks the item up by its case-insensitive identity key.
func (s *MediaService) FindByISBN(isbn string) (*MediaItem, error) {
	if item := s.findByISBN(isbn); item != nil {
		return item, nil
	}
	return nil, ErrNotFound
}

// Search returns items whose title, author, or isbn contains the query,
// case-insensitively, in catalog order.
func (s *MediaService) Search(query string) []*MediaItem {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []*MediaItem
	for _, m := range s.items {
		if strings.Contains(strings.ToLower(m.Title), q) ||
			strings.Contains(strings.ToLower(m.Author), q) ||
			strings.Contains(strings.ToLower(m.ISBN), q) {
			out = append(out, m)
		}
	}
	return out
}

// AllMedia returns the catalog in insertion order.
func (s *MediaService) AllMedia() []*MediaItem {
	return append([]*MediaItem(nil), s.items...)
}

func (s *MediaService) findByISBN(isbn string) *MediaItem {
	for _, m := range s.items {
		if m.SameISBN(isbn) {
			return m
		}
	}
	return nil
}

// persist is best-effort: a failed write is logged and the in-memory catalog
// stays the source of truth for the rest of the session.
func (s *MediaService) persist() {
	if err := s.storage.Save(s.items); err != nil {
		s.log.Error("persist media catalog failed", "error", err)
	}
}
