package library

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// storageContract checks the snapshot semantics every backend has to share:
// empty until first save, load returns what was saved in order, save replaces.
func storageContract(t *testing.T, media MediaStorage, borrows BorrowStorage, fines FineStorage, users UserStorage) {
	t.Helper()

	items, err := media.Load()
	require.NoError(t, err)
	assert.Empty(t, items)

	due := day(2026, time.March, 29)
	want := []*MediaItem{
		{Type: MediaTypeBook, Title: "Clean Code", Author: "Robert C. Martin", ISBN: "B-1", TotalCopies: 2, AvailableCopies: 1, DueDate: &due},
		{Type: MediaTypeCD, Title: "Kind of Blue", Author: "Miles Davis", ISBN: "C-1", TotalCopies: 1, AvailableCopies: 1},
	}
	require.NoError(t, media.Save(want))
	items, err = media.Load()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, *want[0], *items[0])
	assert.Equal(t, *want[1], *items[1])

	// Saving again must replace, not accumulate.
	require.NoError(t, media.Save(want[:1]))
	items, err = media.Load()
	require.NoError(t, err)
	assert.Len(t, items, 1)

	require.NoError(t, borrows.Append(&BorrowRecord{Username: "alice", ISBN: "B-1", DueDate: due}))
	returned := day(2026, time.March, 31)
	require.NoError(t, borrows.Append(&BorrowRecord{
		Username: "bob", ISBN: "C-1", DueDate: day(2026, time.March, 8), Returned: true, ReturnDate: &returned,
	}))
	recs, err := borrows.Load()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "alice", recs[0].Username)
	assert.False(t, recs[0].Returned)
	assert.Nil(t, recs[0].ReturnDate)
	require.NotNil(t, recs[1].ReturnDate)
	assert.True(t, recs[1].ReturnDate.Equal(returned))

	recs[0].Returned = true
	recs[0].ReturnDate = &returned
	require.NoError(t, borrows.Rewrite(recs))
	recs, err = borrows.Load()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].Returned)

	require.NoError(t, fines.Save(map[string]int64{"alice": 40, "bob": 15}))
	balances, err := fines.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"alice": 40, "bob": 15}, balances)

	require.NoError(t, users.Save([]*UserAccount{
		{Username: "admin", Password: "secret", Role: RoleAdmin, Email: "admin@example.org"},
	}))
	accounts, err := users.Load()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, RoleAdmin, accounts[0].Role)
}

func TestSQLiteStorageContract(t *testing.T) {
	store := tempStore(t)
	storageContract(t, store.Media(), store.Borrows(), store.Fines(), store.Users())
}

func TestFileStorageContract(t *testing.T) {
	dir := t.TempDir()
	media, err := NewFileMediaStorage(filepath.Join(dir, MediaFileName))
	require.NoError(t, err)
	borrows, err := NewFileBorrowStorage(filepath.Join(dir, BorrowsFileName))
	require.NoError(t, err)
	fines, err := NewFileFineStorage(filepath.Join(dir, FinesFileName))
	require.NoError(t, err)
	users, err := NewFileUserStorage(filepath.Join(dir, UsersFileName))
	require.NoError(t, err)
	storageContract(t, media, borrows, fines, users)
}

func TestMemStorageContract(t *testing.T) {
	storageContract(t, NewMemMediaStorage(), NewMemBorrowStorage(), NewMemFineStorage(), NewMemUserStorage())
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.db")

	store, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Media().Save([]*MediaItem{
		{Type: MediaTypeBook, Title: "1984", Author: "George Orwell", ISBN: "B-3", TotalCopies: 1, AvailableCopies: 1},
	}))
	require.NoError(t, store.Close())

	store, err = OpenSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	items, err := store.Media().Load()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "1984", items[0].Title)
}

func TestSQLiteBackedServices(t *testing.T) {
	store := tempStore(t)
	log := testLogger()
	clock := &fixedClock{today: day(2026, time.March, 1)}

	fines, err := NewFineService(store.Fines(), log)
	require.NoError(t, err)
	records, err := NewBorrowRecordService(store.Borrows(), log)
	require.NoError(t, err)
	media, err := NewMediaService(store.Media(), records, fines, NewFineCalculator(), log, WithClock(clock))
	require.NoError(t, err)

	_, err = media.AddMedia(MediaTypeBook, "Clean Code", "Robert C. Martin", "B-1", 1)
	require.NoError(t, err)
	_, err = media.Borrow("B-1", "alice")
	require.NoError(t, err)

	clock.advance(30)
	receipt, err := media.Return("B-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, receipt.OverdueDays)
	assert.Equal(t, int64(20), receipt.FineAssessed)

	// Everything lands in the database, not just in memory.
	balances, err := store.Fines().Load()
	require.NoError(t, err)
	assert.Equal(t, int64(20), balances["alice"])

	recs, err := store.Borrows().Load()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Returned)
}
