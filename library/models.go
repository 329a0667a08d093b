package library

import (
	"errors"
	"strings"
	"time"
)

// Sentinel errors for expected business refusals. Callers display a message
// and keep the session going; none of these should abort the process.
var (
	ErrNotFound         = errors.New("not found")
	ErrMediaUnavailable = errors.New("no copies available")
	ErrOutstandingFine  = errors.New("outstanding fine balance")
	ErrNoActiveBorrow   = errors.New("no active borrow record")
	ErrDuplicateISBN    = errors.New("isbn already in catalog")
	ErrUserExists       = errors.New("user already exists")
)

// MediaType tags a catalog entry with its circulation policy.
type MediaType string

const (
	MediaTypeBook MediaType = "BOOK"
	MediaTypeCD   MediaType = "CD"
)

// LoanPolicy holds the per-type circulation parameters.
type LoanPolicy struct {
	LoanDays  int
	DailyFine int64
}

var loanPolicies = map[MediaType]LoanPolicy{
	MediaTypeBook: {LoanDays: 28, DailyFine: 10},
	MediaTypeCD:   {LoanDays: 7, DailyFine: 20},
}

// ParseMediaType reads a type tag case-insensitively.
func ParseMediaType(s string) (MediaType, error) {
	mt := MediaType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := loanPolicies[mt]; !ok {
		return "", errors.New("unknown media type: " + s)
	}
	return mt, nil
}

// Policy returns the circulation policy for the type. Unknown types get a
// zero policy, which never extends a loan or accrues a fine.
func (mt MediaType) Policy() LoanPolicy {
	return loanPolicies[mt]
}

// MediaItem is one catalog entry. Copies are counted, not tracked
// individually, so DueDate is item-level: with more than one copy on loan the
// most recent borrow overwrites it. A known simplification.
type MediaItem struct {
	Type            MediaType
	Title           string
	Author          string
	ISBN            string
	TotalCopies     int
	AvailableCopies int
	DueDate         *time.Time
}

// Available reports whether at least one copy can circulate.
func (m *MediaItem) Available() bool { return m.AvailableCopies > 0 }

// SameISBN compares identity keys case-insensitively.
func (m *MediaItem) SameISBN(isbn string) bool {
	return strings.EqualFold(m.ISBN, isbn)
}

// BorrowRecord is one loan ledger entry. ReturnDate is set iff Returned.
type BorrowRecord struct {
	Username   string
	ISBN       string
	DueDate    time.Time
	Returned   bool
	ReturnDate *time.Time
}

// Active reports whether the loan is still out.
func (r *BorrowRecord) Active() bool { return !r.Returned }

// Role is an account's permission class.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleLibrarian Role = "LIBRARIAN"
	RoleMember    Role = "MEMBER"
	RoleUnknown   Role = "UNKNOWN"
)

// ParseRole reads a role name case-insensitively, falling back to UNKNOWN.
func ParseRole(s string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleLibrarian:
		return RoleLibrarian
	case RoleMember:
		return RoleMember
	default:
		return RoleUnknown
	}
}

// UserAccount is a registered user. The circulation engine only ever sees the
// username; everything else is presentation-layer concern.
type UserAccount struct {
	Username string
	Password string
	Role     Role
	Email    string
}
