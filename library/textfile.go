package library

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Flat-file adapters. All stores are plain text, one record per line, values
// positionally encoded. Dates use 2006-01-02 with the literal "null" for
// absent values. Writes are whole-file rewrites (append for new loans); there
// is no atomic rename, matching the single-process design.

const (
	dateLayout = "2006-01-02"
	nullField  = "null"

	// Default file names inside the data directory.
	MediaFileName   = "media.txt"
	BorrowsFileName = "borrow_records.txt"
	FinesFileName   = "fines.txt"
	UsersFileName   = "users.txt"
)

// ensureFile creates parent directories and an empty file if missing, so
// first-run succeeds.
func ensureFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create data dir")
		}
	}
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return errors.Wrap(err, "create store file")
	}
	return f.Close()
}

// readLines returns the non-empty lines of path, or nil for a missing file.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

// writeLines rewrites path with the given lines.
func writeLines(path string, lines []string) error {
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return nullField
	}
	return t.Format(dateLayout)
}

func parseDate(s string) (*time.Time, error) {
	if s == nullField {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ---------------------------------------------------------------------------
// Media store: type;title;author;isbn;totalCopies;availableCopies;dueDate
// ---------------------------------------------------------------------------

// FileMediaStorage persists the catalog as a ;-delimited text file.
type FileMediaStorage struct {
	path string
}

// NewFileMediaStorage bootstraps the backing file and returns the adapter.
func NewFileMediaStorage(path string) (*FileMediaStorage, error) {
	if err := ensureFile(path); err != nil {
		return nil, err
	}
	return &FileMediaStorage{path: path}, nil
}

func (s *FileMediaStorage) Load() ([]*MediaItem, error) {
	lines, err := readLines(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "read media store")
	}

	var items []*MediaItem
	for i, line := range lines {
		fields := strings.Split(line, ";")
		if len(fields) != 7 {
			return nil, errors.Errorf("media store %s line %d: want 7 fields, got %d", s.path, i+1, len(fields))
		}
		mt, err := ParseMediaType(fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, "media store %s line %d", s.path, i+1)
		}
		total, err := strconv.Atoi(fields[4])
		if err != nil {
			return nil, errors.Wrapf(err, "media store %s line %d: total copies", s.path, i+1)
		}
		avail, err := strconv.Atoi(fields[5])
		if err != nil {
			return nil, errors.Wrapf(err, "media store %s line %d: available copies", s.path, i+1)
		}
		due, err := parseDate(fields[6])
		if err != nil {
			return nil, errors.Wrapf(err, "media store %s line %d: due date", s.path, i+1)
		}
		items = append(items, &MediaItem{
			Type:            mt,
			Title:           fields[1],
			Author:          fields[2],
			ISBN:            fields[3],
			TotalCopies:     total,
			AvailableCopies: avail,
			DueDate:         due,
		})
	}
	return items, nil
}

func (s *FileMediaStorage) Save(items []*MediaItem) error {
	lines := make([]string, 0, len(items))
	for _, m := range items {
		lines = append(lines, fmt.Sprintf("%s;%s;%s;%s;%d;%d;%s",
			m.Type, m.Title, m.Author, m.ISBN, m.TotalCopies, m.AvailableCopies, formatDate(m.DueDate)))
	}
	return errors.Wrap(writeLines(s.path, lines), "save media store")
}

// ---------------------------------------------------------------------------
// Borrow-record store: username,isbn,dueDate,returned,returnDate
// ---------------------------------------------------------------------------

// FileBorrowStorage persists the loan ledger as a ,-delimited text file.
type FileBorrowStorage struct {
	path string
}

// NewFileBorrowStorage bootstraps the backing file and returns the adapter.
func NewFileBorrowStorage(path string) (*FileBorrowStorage, error) {
	if err := ensureFile(path); err != nil {
		return nil, err
	}
	return &FileBorrowStorage{path: path}, nil
}

func borrowLine(r *BorrowRecord) string {
	return fmt.Sprintf("%s,%s,%s,%t,%s",
		r.Username, r.ISBN, r.DueDate.Format(dateLayout), r.Returned, formatDate(r.ReturnDate))
}

func (s *FileBorrowStorage) Load() ([]*BorrowRecord, error) {
	lines, err := readLines(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "read borrow store")
	}

	var recs []*BorrowRecord
	for i, line := range lines {
		fields := strings.Split(line, ",")
		if len(fields) != 5 {
			return nil, errors.Errorf("borrow store %s line %d: want 5 fields, got %d", s.path, i+1, len(fields))
		}
		due, err := time.Parse(dateLayout, fields[2])
		if err != nil {
			return nil, errors.Wrapf(err, "borrow store %s line %d: due date", s.path, i+1)
		}
		returned, err := strconv.ParseBool(fields[3])
		if err != nil {
			return nil, errors.Wrapf(err, "borrow store %s line %d: returned flag", s.path, i+1)
		}
		returnDate, err := parseDate(fields[4])
		if err != nil {
			return nil, errors.Wrapf(err, "borrow store %s line %d: return date", s.path, i+1)
		}
		recs = append(recs, &BorrowRecord{
			Username:   fields[0],
			ISBN:       fields[1],
			DueDate:    due,
			Returned:   returned,
			ReturnDate: returnDate,
		})
	}
	return recs, nil
}

func (s *FileBorrowStorage) Append(rec *BorrowRecord) error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "append borrow store")
	}
	defer f.Close()
	_, err = f.WriteString(borrowLine(rec) + "\n")
	return errors.Wrap(err, "append borrow store")
}

func (s *FileBorrowStorage) Rewrite(recs []*BorrowRecord) error {
	lines := make([]string, 0, len(recs))
	for _, r := range recs {
		lines = append(lines, borrowLine(r))
	}
	return errors.Wrap(writeLines(s.path, lines), "rewrite borrow store")
}

// ---------------------------------------------------------------------------
// Fines store: username,balance
// ---------------------------------------------------------------------------

// FileFineStorage persists per-user balances as a ,-delimited text file.
type FileFineStorage struct {
	path string
}

// NewFileFineStorage bootstraps the backing file and returns the adapter.
func NewFileFineStorage(path string) (*FileFineStorage, error) {
	if err := ensureFile(path); err != nil {
		return nil, err
	}
	return &FileFineStorage{path: path}, nil
}

func (s *FileFineStorage) Load() (map[string]int64, error) {
	lines, err := readLines(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "read fines store")
	}

	balances := make(map[string]int64, len(lines))
	for i, line := range lines {
		fields := strings.Split(line, ",")
		if len(fields) != 2 {
			return nil, errors.Errorf("fines store %s line %d: want 2 fields, got %d", s.path, i+1, len(fields))
		}
		balance, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "fines store %s line %d: balance", s.path, i+1)
		}
		if balance < 0 {
			return nil, errors.Errorf("fines store %s line %d: negative balance %d", s.path, i+1, balance)
		}
		balances[fields[0]] = balance
	}
	return balances, nil
}

func (s *FileFineStorage) Save(balances map[string]int64) error {
	// Sorted output keeps the file diffable between rewrites.
	users := make([]string, 0, len(balances))
	for u := range balances {
		users = append(users, u)
	}
	sort.Strings(users)

	lines := make([]string, 0, len(users))
	for _, u := range users {
		lines = append(lines, fmt.Sprintf("%s,%d", u, balances[u]))
	}
	return errors.Wrap(writeLines(s.path, lines), "save fines store")
}

// ---------------------------------------------------------------------------
// Users store: username,password,role,email
// ---------------------------------------------------------------------------

// FileUserStorage persists accounts as a ,-delimited text file.
type FileUserStorage struct {
	path string
}

// NewFileUserStorage bootstraps the backing file and returns the adapter.
func NewFileUserStorage(path string) (*FileUserStorage, error) {
	if err := ensureFile(path); err != nil {
		return nil, err
	}
	return &FileUserStorage{path: path}, nil
}

func (s *FileUserStorage) Load() ([]*UserAccount, error) {
	lines, err := readLines(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "read users store")
	}

	var users []*UserAccount
	for i, line := range lines {
		fields := strings.Split(line, ",")
		if len(fields) != 4 {
			return nil, errors.Errorf("users store %s line %d: want 4 fields, got %d", s.path, i+1, len(fields))
		}
		users = append(users, &UserAccount{
			Username: fields[0],
			Password: fields[1],
			Role:     ParseRole(fields[2]),
			Email:    fields[3],
		})
	}
	return users, nil
}

func (s *FileUserStorage) Save(users []*UserAccount) error {
	lines := make([]string, 0, len(users))
	for _, u := range users {
		lines = append(lines, fmt.Sprintf("%s,%s,%s,%s", u.Username, u.Password, u.Role, u.Email))
	}
	return errors.Wrap(writeLines(s.path, lines), "save users store")
}
