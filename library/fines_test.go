package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFineService(t *testing.T) *FineService {
	t.Helper()
	s, err := NewFineService(NewMemFineStorage(), testLogger())
	require.NoError(t, err)
	return s
}

func TestUnseenUserOwesNothing(t *testing.T) {
	s := newFineService(t)
	assert.Zero(t, s.Balance("nobody"))
	assert.Zero(t, s.Balance(""))
}

func TestAddThenPayRoundTripsToZero(t *testing.T) {
	s := newFineService(t)
	s.AddFine("alice", 40)
	assert.Equal(t, int64(40), s.Balance("alice"))
	assert.Zero(t, s.PayFine("alice", 40))
	assert.Zero(t, s.Balance("alice"))
}

func TestOverpaymentCapsAtZero(t *testing.T) {
	s := newFineService(t)
	s.AddFine("alice", 10)
	assert.Zero(t, s.PayFine("alice", 500))
	assert.Zero(t, s.Balance("alice"))
}

func TestAddFineGuards(t *testing.T) {
	s := newFineService(t)
	s.AddFine("", 10)
	s.AddFine("alice", 0)
	s.AddFine("alice", -5)
	assert.Empty(t, s.AllBalances())
}

func TestPayFineGuards(t *testing.T) {
	s := newFineService(t)
	s.AddFine("alice", 30)
	assert.Equal(t, int64(30), s.PayFine("alice", 0))
	assert.Equal(t, int64(30), s.PayFine("alice", -1))
	assert.Zero(t, s.PayFine("", 10))
	assert.Equal(t, int64(30), s.Balance("alice"))
}

func TestPaidOffUserKeepsZeroEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fines.txt")
	storage, err := NewFileFineStorage(path)
	require.NoError(t, err)

	s, err := NewFineService(storage, testLogger())
	require.NoError(t, err)
	s.AddFine("alice", 40)
	assert.Zero(t, s.PayFine("alice", 40))

	balances := s.AllBalances()
	got, ok := balances["alice"]
	assert.True(t, ok, "paid-off user stays in the ledger")
	assert.Zero(t, got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "alice,0\n", string(raw))
}

func TestAddFineAccumulates(t *testing.T) {
	s := newFineService(t)
	s.AddFine("alice", 20)
	s.AddFine("alice", 20)
	assert.Equal(t, int64(40), s.Balance("alice"))
}

func TestAllBalancesIsACopy(t *testing.T) {
	s := newFineService(t)
	s.AddFine("alice", 10)
	got := s.AllBalances()
	got["alice"] = 999
	got["mallory"] = 7
	assert.Equal(t, int64(10), s.Balance("alice"))
	assert.Zero(t, s.Balance("mallory"))
}

func TestBalancesSurviveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fines.txt")
	storage, err := NewFileFineStorage(path)
	require.NoError(t, err)

	s, err := NewFineService(storage, testLogger())
	require.NoError(t, err)
	s.AddFine("alice", 40)
	s.AddFine("bob", 15)
	s.PayFine("bob", 5)

	reloaded, err := NewFineService(storage, testLogger())
	require.NoError(t, err)
	assert.Equal(t, int64(40), reloaded.Balance("alice"))
	assert.Equal(t, int64(10), reloaded.Balance("bob"))
}
