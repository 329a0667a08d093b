package library

import (
	"bufio"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Circulation event types recorded in the journal.
const (
	EventMediaBorrowed = "MediaBorrowed"
	EventMediaReturned = "MediaReturned"
	EventFineAssessed  = "FineAssessed"
)

// CirculationEvent is one audit-trail entry. Amount is only meaningful for
// fine events.
type CirculationEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Username   string    `json:"username"`
	ISBN       string    `json:"isbn,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Journal is an append-only audit trail of circulation events, one JSON
// object per line. It is strictly an observer: append failures are logged and
// never affect the operation that emitted the event.
type Journal struct {
	path string
	log  *slog.Logger
}

// NewJournal bootstraps the journal file.
func NewJournal(path string, log *slog.Logger) (*Journal, error) {
	if err := ensureFile(path); err != nil {
		return nil, err
	}
	return &Journal{path: path, log: log}, nil
}

// Record appends an event, stamping a fresh id and the given occurrence time.
func (j *Journal) Record(eventType, username, isbn string, amount int64, occurredAt time.Time) {
	if j == nil {
		return
	}
	ev := CirculationEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Username:   username,
		ISBN:       isbn,
		Amount:     amount,
		OccurredAt: occurredAt,
	}
	payload, err := jsoniter.ConfigFastest.Marshal(ev)
	if err != nil {
		j.log.Error("encode journal event failed", "error", err, "type", eventType)
		return
	}
	f, err := os.OpenFile(j.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		j.log.Error("open journal failed", "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(payload, '\n')); err != nil {
		j.log.Error("append journal event failed", "error", err, "type", eventType)
	}
}

// Replay decodes the full journal in append order.
func (j *Journal) Replay() ([]CirculationEvent, error) {
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "open journal")
	}
	defer f.Close()

	var events []CirculationEvent
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var ev CirculationEvent
		if err := jsoniter.ConfigFastest.UnmarshalFromString(line, &ev); err != nil {
			return nil, errors.Wrap(err, "decode journal event")
		}
		events = append(events, ev)
	}
	return events, errors.Wrap(sc.Err(), "read journal")
}
