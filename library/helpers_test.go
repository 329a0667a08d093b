package library

import (
	"io"
	"log/slog"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedClock pins "today" and can be advanced by tests.
type fixedClock struct {
	today time.Time
}

func (c *fixedClock) Today() time.Time { return c.today }

func (c *fixedClock) advance(days int) { c.today = c.today.AddDate(0, 0, days) }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// newMemServices wires the service triad over in-memory storage for tests.
func newMemServices(clock Clock) (*MediaService, *BorrowRecordService, *FineService) {
	log := testLogger()
	fines, err := NewFineService(NewMemFineStorage(), log)
	if err != nil {
		panic(err)
	}
	records, err := NewBorrowRecordService(NewMemBorrowStorage(), log)
	if err != nil {
		panic(err)
	}
	media, err := NewMediaService(NewMemMediaStorage(), records, fines, NewFineCalculator(), log, WithClock(clock))
	if err != nil {
		panic(err)
	}
	return media, records, fines
}
