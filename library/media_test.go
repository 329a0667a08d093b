package library

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBorrowSetsDueDateAndDecrementsCopies(t *testing.T) {
	clock := &fixedClock{today: day(2026, time.March, 1)}
	media, records, _ := newMemServices(clock)
	_, err := media.AddMedia(MediaTypeBook, "Clean Code", "Robert C. Martin", "B-1", 1)
	require.NoError(t, err)

	rec, err := media.Borrow("B-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, day(2026, time.March, 29), rec.DueDate, "book loans run 28 days")

	item, err := media.FindByISBN("B-1")
	require.NoError(t, err)
	assert.Zero(t, item.AvailableCopies)
	assert.False(t, item.Available())
	require.NotNil(t, item.DueDate)
	assert.Equal(t, rec.DueDate, *item.DueDate)
	assert.True(t, records.HasActiveBorrows("alice"))
}

func TestCDLoanRunsSevenDays(t *testing.T) {
	clock := &fixedClock{today: day(2026, time.March, 1)}
	media, _, _ := newMemServices(clock)
	_, err := media.AddMedia(MediaTypeCD, "Kind of Blue", "Miles Davis", "C-1", 1)
	require.NoError(t, err)

	rec, err := media.Borrow("C-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, day(2026, time.March, 8), rec.DueDate)
}

func TestBorrowUnknownISBN(t *testing.T) {
	media, _, _ := newMemServices(&fixedClock{today: day(2026, time.March, 1)})
	_, err := media.Borrow("nope", "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBorrowExhaustsCopies(t *testing.T) {
	clock := &fixedClock{today: day(2026, time.March, 1)}
	media, _, _ := newMemServices(clock)
	_, err := media.AddMedia(MediaTypeBook, "1984", "George Orwell", "B-3", 2)
	require.NoError(t, err)

	_, err = media.Borrow("B-3", "alice")
	require.NoError(t, err)
	_, err = media.Borrow("B-3", "bob")
	require.NoError(t, err)

	item, err := media.FindByISBN("B-3")
	require.NoError(t, err)
	assert.Zero(t, item.AvailableCopies)

	_, err = media.Borrow("B-3", "carol")
	assert.ErrorIs(t, err, ErrMediaUnavailable)
	assert.Zero(t, item.AvailableCopies, "refused borrow must not mutate")
}

func TestOutstandingFineBlocksBorrowing(t *testing.T) {
	clock := &fixedClock{today: day(2026, time.March, 1)}
	media, records, fines := newMemServices(clock)
	_, err := media.AddMedia(MediaTypeBook, "1984", "George Orwell", "B-3", 2)
	require.NoError(t, err)

	fines.AddFine("alice", 10)
	_, err = media.Borrow("B-3", "alice")
	assert.ErrorIs(t, err, ErrOutstandingFine)

	item, err := media.FindByISBN("B-3")
	require.NoError(t, err)
	assert.Equal(t, 2, item.AvailableCopies, "no copy decremented on refusal")
	assert.False(t, records.HasActiveBorrows("alice"))

	// Paying off the debt unblocks the user.
	fines.PayFine("alice", 10)
	_, err = media.Borrow("B-3", "alice")
	assert.NoError(t, err)
}

func TestReturnOnTime(t *testing.T) {
	clock := &fixedClock{today: day(2026, time.March, 1)}
	media, _, fines := newMemServices(clock)
	_, err := media.AddMedia(MediaTypeBook, "Clean Code", "Robert C. Martin", "B-1", 1)
	require.NoError(t, err)
	_, err = media.Borrow("B-1", "alice")
	require.NoError(t, err)

	clock.advance(10)
	receipt, err := media.Return("B-1", "alice")
	require.NoError(t, err)
	assert.Zero(t, receipt.OverdueDays)
	assert.Zero(t, receipt.FineAssessed)
	assert.Zero(t, fines.Balance("alice"))

	item, err := media.FindByISBN("B-1")
	require.NoError(t, err)
	assert.Equal(t, 1, item.AvailableCopies)
	assert.Nil(t, item.DueDate, "due date cleared once all copies are back")
}

// The canonical overdue scenario: borrow on day D, return on D+30, two days
// past the 28-day book loan, 2 × 10 = 20 fined.
func TestLateReturnAssessesFine(t *testing.T) {
	clock := &fixedClock{today: day(2026, time.March, 1)}
	media, _, fines := newMemServices(clock)
	_, err := media.AddMedia(MediaTypeBook, "Clean Code", "Robert C. Martin", "B-1", 1)
	require.NoError(t, err)
	_, err = media.Borrow("B-1", "alice")
	require.NoError(t, err)

	clock.advance(30)
	receipt, err := media.Return("B-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, receipt.OverdueDays)
	assert.Equal(t, int64(20), receipt.FineAssessed)
	assert.Equal(t, int64(20), fines.Balance("alice"))
}

func TestReturnWithoutBorrow(t *testing.T) {
	media, _, _ := newMemServices(&fixedClock{today: day(2026, time.March, 1)})
	_, err := media.AddMedia(MediaTypeBook, "Clean Code", "Robert C. Martin", "B-1", 1)
	require.NoError(t, err)

	_, err = media.Return("B-1", "alice")
	assert.ErrorIs(t, err, ErrNoActiveBorrow)

	item, err := media.FindByISBN("B-1")
	require.NoError(t, err)
	assert.Equal(t, 1, item.AvailableCopies, "refused return must not mutate")
}

func TestFineDeltaIsNeverDoubleAdded(t *testing.T) {
	clock := &fixedClock{today: day(2026, time.March, 1)}
	media, _, fines := newMemServices(clock)
	_, err := media.AddMedia(MediaTypeBook, "Clean Code", "Robert C. Martin", "B-1", 1)
	require.NoError(t, err)
	_, err = media.Borrow("B-1", "alice")
	require.NoError(t, err)

	// The overdue fine was already charged, e.g. by startup reconciliation.
	clock.advance(30)
	media.ReconcileFines()
	assert.Equal(t, int64(20), fines.Balance("alice"))

	// Re-evaluating the same overdue period at return time adds nothing.
	receipt, err := media.Return("B-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, receipt.OverdueDays)
	assert.Zero(t, receipt.FineAssessed)
	assert.Equal(t, int64(20), fines.Balance("alice"))
}

func TestReconcileFinesIsIdempotent(t *testing.T) {
	clock := &fixedClock{today: day(2026, time.March, 1)}
	media, _, fines := newMemServices(clock)
	_, err := media.AddMedia(MediaTypeCD, "Abbey Road", "The Beatles", "C-2", 1)
	require.NoError(t, err)
	_, err = media.Borrow("C-2", "bob")
	require.NoError(t, err)

	clock.advance(10) // 3 days past the 7-day CD loan
	media.ReconcileFines()
	assert.Equal(t, int64(60), fines.Balance("bob"))

	media.ReconcileFines()
	media.ReconcileFines()
	assert.Equal(t, int64(60), fines.Balance("bob"))
}

func TestReconcileFinesGrowsWithTime(t *testing.T) {
	clock := &fixedClock{today: day(2026, time.March, 1)}
	media, _, fines := newMemServices(clock)
	_, err := media.AddMedia(MediaTypeCD, "Abbey Road", "The Beatles", "C-2", 1)
	require.NoError(t, err)
	_, err = media.Borrow("C-2", "bob")
	require.NoError(t, err)

	clock.advance(9) // 2 days late
	media.ReconcileFines()
	assert.Equal(t, int64(40), fines.Balance("bob"))

	clock.advance(2) // now 4 days late; only the excess is added
	media.ReconcileFines()
	assert.Equal(t, int64(80), fines.Balance("bob"))
}

func TestReconcileFinesAggregatesPerUser(t *testing.T) {
	clock := &fixedClock{today: day(2026, time.March, 1)}
	media, _, fines := newMemServices(clock)
	_, err := media.AddMedia(MediaTypeBook, "Clean Code", "Robert C. Martin", "B-1", 1)
	require.NoError(t, err)
	_, err = media.AddMedia(MediaTypeCD, "Abbey Road", "The Beatles", "C-2", 1)
	require.NoError(t, err)
	_, err = media.Borrow("B-1", "alice")
	require.NoError(t, err)
	_, err = media.Borrow("C-2", "alice")
	require.NoError(t, err)

	clock.advance(29) // book 1 day late (10), CD 22 days late (440)
	media.ReconcileFines()
	assert.Equal(t, int64(450), fines.Balance("alice"))
}

func TestUpdateQuantityClampsAvailable(t *testing.T) {
	media, _, _ := newMemServices(&fixedClock{today: day(2026, time.March, 1)})
	_, err := media.AddMedia(MediaTypeBook, "1984", "George Orwell", "B-3", 5)
	require.NoError(t, err)

	item, err := media.UpdateQuantity("B-3", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, item.TotalCopies)
	assert.Equal(t, 2, item.AvailableCopies)
}

func TestUpdateQuantityKeepsLoanedCopiesOut(t *testing.T) {
	clock := &fixedClock{today: day(2026, time.March, 1)}
	media, _, _ := newMemServices(clock)
	_, err := media.AddMedia(MediaTypeBook, "1984", "George Orwell", "B-3", 3)
	require.NoError(t, err)
	_, err = media.Borrow("B-3", "alice")
	require.NoError(t, err)

	item, err := media.UpdateQuantity("B-3", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, item.TotalCopies)
	assert.Equal(t, 2, item.AvailableCopies)
}

func TestAddMediaRejectsDuplicateISBN(t *testing.T) {
	media, _, _ := newMemServices(&fixedClock{today: day(2026, time.March, 1)})
	_, err := media.AddMedia(MediaTypeBook, "1984", "George Orwell", "B-3", 1)
	require.NoError(t, err)
	_, err = media.AddMedia(MediaTypeCD, "Other", "Other", "b-3", 1)
	assert.ErrorIs(t, err, ErrDuplicateISBN, "isbn identity is case-insensitive")
}

func TestDeleteMedia(t *testing.T) {
	media, _, _ := newMemServices(&fixedClock{today: day(2026, time.March, 1)})
	_, err := media.AddMedia(MediaTypeBook, "1984", "George Orwell", "B-3", 1)
	require.NoError(t, err)

	require.NoError(t, media.DeleteMedia("b-3"))
	_, err = media.FindByISBN("B-3")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, media.DeleteMedia("B-3"), ErrNotFound)
}

func TestSearchMatchesTitleAuthorISBN(t *testing.T) {
	media, _, _ := newMemServices(&fixedClock{today: day(2026, time.March, 1)})
	_, err := media.AddMedia(MediaTypeBook, "Clean Code", "Robert C. Martin", "B-1", 1)
	require.NoError(t, err)
	_, err = media.AddMedia(MediaTypeCD, "Kind of Blue", "Miles Davis", "C-1", 1)
	require.NoError(t, err)

	assert.Len(t, media.Search("clean"), 1)
	assert.Len(t, media.Search("DAVIS"), 1)
	assert.Len(t, media.Search("c-1"), 1)
	assert.Empty(t, media.Search("zilch"))
	assert.Empty(t, media.Search("  "))
}

func TestSharedDueDateTakesLatestBorrow(t *testing.T) {
	clock := &fixedClock{today: day(2026, time.March, 1)}
	media, _, _ := newMemServices(clock)
	_, err := media.AddMedia(MediaTypeBook, "1984", "George Orwell", "B-3", 2)
	require.NoError(t, err)

	_, err = media.Borrow("B-3", "alice")
	require.NoError(t, err)
	clock.advance(5)
	rec, err := media.Borrow("B-3", "bob")
	require.NoError(t, err)

	item, err := media.FindByISBN("B-3")
	require.NoError(t, err)
	require.NotNil(t, item.DueDate)
	assert.Equal(t, rec.DueDate, *item.DueDate, "item-level due date tracks the most recent borrow")

	// First copy back: a copy is still out, so the due date stays.
	_, err = media.Return("B-3", "alice")
	require.NoError(t, err)
	item, err = media.FindByISBN("B-3")
	require.NoError(t, err)
	assert.NotNil(t, item.DueDate)
}

// One day late on a ledger reloaded from disk must fine one day even when the
// clock runs in a zone ahead of UTC.
func TestReconcileFinesOnReloadedLedgerInLocalZone(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MediaFileName),
		[]byte("CD;Kind of Blue;Miles Davis;C-1;1;0;2026-03-08\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, BorrowsFileName),
		[]byte("alice,C-1,2026-03-08,false,null\n"), 0o644))

	log := testLogger()
	mediaStorage, err := NewFileMediaStorage(filepath.Join(dir, MediaFileName))
	require.NoError(t, err)
	borrowStorage, err := NewFileBorrowStorage(filepath.Join(dir, BorrowsFileName))
	require.NoError(t, err)
	fines, err := NewFineService(NewMemFineStorage(), log)
	require.NoError(t, err)
	records, err := NewBorrowRecordService(borrowStorage, log)
	require.NoError(t, err)

	ist := time.FixedZone("UTC+05:30", 5*3600+30*60)
	clock := &fixedClock{today: time.Date(2026, time.March, 9, 0, 0, 0, 0, ist)}
	media, err := NewMediaService(mediaStorage, records, fines, NewFineCalculator(), log, WithClock(clock))
	require.NoError(t, err)

	media.ReconcileFines()
	assert.Equal(t, int64(20), fines.Balance("alice"), "one day late on a CD")
}

func TestCatalogSurvivesReload(t *testing.T) {
	clock := &fixedClock{today: day(2026, time.March, 1)}
	log := testLogger()
	storage := NewMemMediaStorage()

	fines, err := NewFineService(NewMemFineStorage(), log)
	require.NoError(t, err)
	records, err := NewBorrowRecordService(NewMemBorrowStorage(), log)
	require.NoError(t, err)
	media, err := NewMediaService(storage, records, fines, NewFineCalculator(), log, WithClock(clock))
	require.NoError(t, err)

	_, err = media.AddMedia(MediaTypeBook, "Clean Code", "Robert C. Martin", "B-1", 2)
	require.NoError(t, err)
	_, err = media.Borrow("B-1", "alice")
	require.NoError(t, err)

	reloaded, err := NewMediaService(storage, records, fines, NewFineCalculator(), log, WithClock(clock))
	require.NoError(t, err)
	item, err := reloaded.FindByISBN("B-1")
	require.NoError(t, err)
	assert.Equal(t, 2, item.TotalCopies)
	assert.Equal(t, 1, item.AvailableCopies)
	require.NotNil(t, item.DueDate)
	assert.Equal(t, day(2026, time.March, 29), *item.DueDate)
}
