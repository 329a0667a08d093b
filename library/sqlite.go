package library

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect registration
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // driver registration
	"github.com/pkg/errors"
)

const sqliteDialect = "sqlite3"

// SQLiteStore is the database-backed storage alternative to the flat-file
// adapters. One store owns the connection; the per-ledger adapters returned
// by Media/Borrows/Fines/Users share it and satisfy the storage interfaces
// with the same snapshot semantics the file adapters have.
type SQLiteStore struct {
	db *sqlx.DB
}

// OpenSQLiteStore opens (or creates) the database at dbPath and applies
// schema migrations.
func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create db dir")
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sqlx.Open(sqliteDialect, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Media returns the catalog adapter.
func (s *SQLiteStore) Media() MediaStorage { return &sqliteMediaStorage{db: s.db} }

// Borrows returns the loan-ledger adapter.
func (s *SQLiteStore) Borrows() BorrowStorage { return &sqliteBorrowStorage{db: s.db} }

// Fines returns the balance-ledger adapter.
func (s *SQLiteStore) Fines() FineStorage { return &sqliteFineStorage{db: s.db} }

// Users returns the account adapter.
func (s *SQLiteStore) Users() UserStorage { return &sqliteUserStorage{db: s.db} }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sqlx.DB) error {
	// WAL improves write behavior even for a single writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return errors.Wrap(err, "enable WAL")
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tables := []string{
		`CREATE TABLE IF NOT EXISTS media (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            type TEXT NOT NULL,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            isbn TEXT NOT NULL COLLATE NOCASE,
            total_copies INTEGER NOT NULL,
            available_copies INTEGER NOT NULL,
            due_date TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS borrow_records (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL,
            isbn TEXT NOT NULL,
            due_date TEXT NOT NULL,
            returned INTEGER NOT NULL DEFAULT 0,
            return_date TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS fines (
            username TEXT PRIMARY KEY,
            balance INTEGER NOT NULL CHECK (balance >= 0)
        );`,
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL COLLATE NOCASE,
            password TEXT NOT NULL,
            role TEXT NOT NULL,
            email TEXT NOT NULL DEFAULT ''
        );`,
	}

	for _, stmt := range tables {
		if _, err := tx.Exec(stmt); err != nil {
			return errors.Wrap(err, "apply migration")
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return errors.Wrap(err, "record schema version")
	}
	return tx.Commit()
}

// replaceAll rewrites a whole table inside one transaction, preserving the
// given insertion order via the autoincrement id.
func replaceAll(db *sqlx.DB, table string, inserts []*goqu.InsertDataset) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s;", table)); err != nil {
		return err
	}
	for _, ins := range inserts {
		query, _, err := ins.ToSQL()
		if err != nil {
			return errors.Wrap(err, "build insert")
		}
		if _, err := tx.Exec(query); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func nullDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func dateFromNull(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

type sqliteMediaStorage struct {
	db *sqlx.DB
}

type mediaRow struct {
	Type            string         `db:"type"`
	Title           string         `db:"title"`
	Author          string         `db:"author"`
	ISBN            string         `db:"isbn"`
	TotalCopies     int            `db:"total_copies"`
	AvailableCopies int            `db:"available_copies"`
	DueDate         sql.NullString `db:"due_date"`
}

func (s *sqliteMediaStorage) Load() ([]*MediaItem, error) {
	query, _, err := goqu.Dialect(sqliteDialect).
		From("media").
		Select("type", "title", "author", "isbn", "total_copies", "available_copies", "due_date").
		Order(goqu.I("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "build media select")
	}

	var rows []mediaRow
	if err := s.db.Select(&rows, query); err != nil {
		return nil, errors.Wrap(err, "load media")
	}

	items := make([]*MediaItem, 0, len(rows))
	for _, r := range rows {
		mt, err := ParseMediaType(r.Type)
		if err != nil {
			return nil, errors.Wrap(err, "media table")
		}
		due, err := dateFromNull(r.DueDate)
		if err != nil {
			return nil, errors.Wrap(err, "media table: due date")
		}
		items = append(items, &MediaItem{
			Type:            mt,
			Title:           r.Title,
			Author:          r.Author,
			ISBN:            r.ISBN,
			TotalCopies:     r.TotalCopies,
			AvailableCopies: r.AvailableCopies,
			DueDate:         due,
		})
	}
	return items, nil
}

func (s *sqliteMediaStorage) Save(items []*MediaItem) error {
	inserts := make([]*goqu.InsertDataset, 0, len(items))
	for _, m := range items {
		inserts = append(inserts, goqu.Dialect(sqliteDialect).
			Insert("media").
			Rows(goqu.Record{
				"type":             string(m.Type),
				"title":            m.Title,
				"author":           m.Author,
				"isbn":             m.ISBN,
				"total_copies":     m.TotalCopies,
				"available_copies": m.AvailableCopies,
				"due_date":         nullDate(m.DueDate),
			}))
	}
	return errors.Wrap(replaceAll(s.db, "media", inserts), "save media")
}

// ---------------------------------------------------------------------------
// Loan ledger
// ---------------------------------------------------------------------------

type sqliteBorrowStorage struct {
	db *sqlx.DB
}

type borrowRow struct {
	Username   string         `db:"username"`
	ISBN       string         `db:"isbn"`
	DueDate    string         `db:"due_date"`
	Returned   bool           `db:"returned"`
	ReturnDate sql.NullString `db:"return_date"`
}

func borrowInsert(rec *BorrowRecord) *goqu.InsertDataset {
	return goqu.Dialect(sqliteDialect).
		Insert("borrow_records").
		Rows(goqu.Record{
			"username":    rec.Username,
			"isbn":        rec.ISBN,
			"due_date":    rec.DueDate.Format(dateLayout),
			"returned":    rec.Returned,
			"return_date": nullDate(rec.ReturnDate),
		})
}

func (s *sqliteBorrowStorage) Load() ([]*BorrowRecord, error) {
	query, _, err := goqu.Dialect(sqliteDialect).
		From("borrow_records").
		Select("username", "isbn", "due_date", "returned", "return_date").
		Order(goqu.I("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "build borrow select")
	}

	var rows []borrowRow
	if err := s.db.Select(&rows, query); err != nil {
		return nil, errors.Wrap(err, "load borrow records")
	}

	recs := make([]*BorrowRecord, 0, len(rows))
	for _, r := range rows {
		due, err := time.Parse(dateLayout, r.DueDate)
		if err != nil {
			return nil, errors.Wrap(err, "borrow table: due date")
		}
		returnDate, err := dateFromNull(r.ReturnDate)
		if err != nil {
			return nil, errors.Wrap(err, "borrow table: return date")
		}
		recs = append(recs, &BorrowRecord{
			Username:   r.Username,
			ISBN:       r.ISBN,
			DueDate:    due,
			Returned:   r.Returned,
			ReturnDate: returnDate,
		})
	}
	return recs, nil
}

func (s *sqliteBorrowStorage) Append(rec *BorrowRecord) error {
	query, _, err := borrowInsert(rec).ToSQL()
	if err != nil {
		return errors.Wrap(err, "build borrow insert")
	}
	_, err = s.db.Exec(query)
	return errors.Wrap(err, "append borrow record")
}

func (s *sqliteBorrowStorage) Rewrite(recs []*BorrowRecord) error {
	inserts := make([]*goqu.InsertDataset, 0, len(recs))
	for _, r := range recs {
		inserts = append(inserts, borrowInsert(r))
	}
	return errors.Wrap(replaceAll(s.db, "borrow_records", inserts), "rewrite borrow records")
}

// ---------------------------------------------------------------------------
// Balance ledger
// ---------------------------------------------------------------------------

type sqliteFineStorage struct {
	db *sqlx.DB
}

func (s *sqliteFineStorage) Load() (map[string]int64, error) {
	query, _, err := goqu.Dialect(sqliteDialect).
		From("fines").
		Select("username", "balance").
		ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "build fines select")
	}

	var rows []struct {
		Username string `db:"username"`
		Balance  int64  `db:"balance"`
	}
	if err := s.db.Select(&rows, query); err != nil {
		return nil, errors.Wrap(err, "load fines")
	}

	balances := make(map[string]int64, len(rows))
	for _, r := range rows {
		balances[r.Username] = r.Balance
	}
	return balances, nil
}

func (s *sqliteFineStorage) Save(balances map[string]int64) error {
	inserts := make([]*goqu.InsertDataset, 0, len(balances))
	for u, b := range balances {
		inserts = append(inserts, goqu.Dialect(sqliteDialect).
			Insert("fines").
			Rows(goqu.Record{"username": u, "balance": b}))
	}
	return errors.Wrap(replaceAll(s.db, "fines", inserts), "save fines")
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

type sqliteUserStorage struct {
	db *sqlx.DB
}

func (s *sqliteUserStorage) Load() ([]*UserAccount, error) {
	query, _, err := goqu.Dialect(sqliteDialect).
		From("users").
		Select("username", "password", "role", "email").
		Order(goqu.I("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "build users select")
	}

	var rows []struct {
		Username string `db:"username"`
		Password string `db:"password"`
		Role     string `db:"role"`
		Email    string `db:"email"`
	}
	if err := s.db.Select(&rows, query); err != nil {
		return nil, errors.Wrap(err, "load users")
	}

	users := make([]*UserAccount, 0, len(rows))
	for _, r := range rows {
		users = append(users, &UserAccount{
			Username: r.Username,
			Password: r.Password,
			Role:     ParseRole(r.Role),
			Email:    r.Email,
		})
	}
	return users, nil
}

func (s *sqliteUserStorage) Save(users []*UserAccount) error {
	inserts := make([]*goqu.InsertDataset, 0, len(users))
	for _, u := range users {
		inserts = append(inserts, goqu.Dialect(sqliteDialect).
			Insert("users").
			Rows(goqu.Record{
				"username": u.Username,
				"password": u.Password,
				"role":     string(u.Role),
				"email":    u.Email,
			}))
	}
	return errors.Wrap(replaceAll(s.db, "users", inserts), "save users")
}
