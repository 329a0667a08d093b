package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"media-library/library"
)

var (
	flagDataDir        string
	flagBackend        string
	flagTelegramConfig string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "media-library",
		Short: "Console-driven library management: catalog, loans, overdue fines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVar(&flagDataDir, "data-dir", "data", "directory holding the data stores")
	rootCmd.Flags().StringVar(&flagBackend, "backend", "file", "storage backend: file, sqlite or memory")
	rootCmd.Flags().StringVar(&flagTelegramConfig, "telegram-config", "", "path to a telegram notifier config (optional)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the wired services for the session handlers.
type app struct {
	scanner *bufio.Scanner
	media   *library.MediaService
	records *library.BorrowRecordService
	fines   *library.FineService
	users   *library.UserService
	journal *library.Journal
	log     *slog.Logger
}

func run() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	var (
		mediaStorage  library.MediaStorage
		borrowStorage library.BorrowStorage
		fineStorage   library.FineStorage
		userStorage   library.UserStorage
		err           error
	)

	switch flagBackend {
	case "file":
		if mediaStorage, err = library.NewFileMediaStorage(filepath.Join(flagDataDir, library.MediaFileName)); err != nil {
			return err
		}
		if borrowStorage, err = library.NewFileBorrowStorage(filepath.Join(flagDataDir, library.BorrowsFileName)); err != nil {
			return err
		}
		if fineStorage, err = library.NewFileFineStorage(filepath.Join(flagDataDir, library.FinesFileName)); err != nil {
			return err
		}
		if userStorage, err = library.NewFileUserStorage(filepath.Join(flagDataDir, library.UsersFileName)); err != nil {
			return err
		}
	case "sqlite":
		store, err := library.OpenSQLiteStore(filepath.Join(flagDataDir, "library.db"))
		if err != nil {
			return err
		}
		defer store.Close()
		mediaStorage, borrowStorage, fineStorage, userStorage = store.Media(), store.Borrows(), store.Fines(), store.Users()
	case "memory":
		mediaStorage = library.NewMemMediaStorage()
		borrowStorage = library.NewMemBorrowStorage()
		fineStorage = library.NewMemFineStorage()
		userStorage = library.NewMemUserStorage()
	default:
		return fmt.Errorf("unknown backend %q", flagBackend)
	}

	users, err := library.NewUserService(userStorage, logger)
	if err != nil {
		return err
	}
	fines, err := library.NewFineService(fineStorage, logger)
	if err != nil {
		return err
	}
	records, err := library.NewBorrowRecordService(borrowStorage, logger)
	if err != nil {
		return err
	}
	journal, err := library.NewJournal(filepath.Join(flagDataDir, "journal.jsonl"), logger)
	if err != nil {
		return err
	}

	var notifier library.Notifier = library.LogNotifier{Log: logger}
	if flagTelegramConfig != "" {
		if err := library.EnsureTelegramConfig(flagTelegramConfig); err != nil {
			return err
		}
		cfg, err := library.LoadTelegramConfig(flagTelegramConfig)
		if err != nil {
			return err
		}
		tg, err := library.NewTelegramNotifier(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Telegram notifier unavailable (%v), falling back to log notifications\n", err)
		} else {
			notifier = tg
		}
	}

	media, err := library.NewMediaService(mediaStorage, records, fines, library.NewFineCalculator(), logger,
		library.WithJournal(journal),
		library.WithNotifier(notifier, users),
	)
	if err != nil {
		return err
	}

	// Catch fines that accrued while the application was not running.
	media.ReconcileFines()

	a := &app{
		scanner: bufio.NewScanner(os.Stdin),
		media:   media,
		records: records,
		fines:   fines,
		users:   users,
		journal: journal,
		log:     logger,
	}
	a.sessionLoop()
	return nil
}

// readPassword reads a password with input masking.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return strings.TrimSpace(string(bytePassword)), nil
}

func (a *app) prompt(label string) string {
	fmt.Print(label)
	if !a.scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(a.scanner.Text())
}

func (a *app) promptInt(label string) (int, bool) {
	s := a.prompt(label)
	n, err := strconv.Atoi(s)
	if err != nil {
		fmt.Printf("Invalid number: %s\n", s)
		return 0, false
	}
	return n, true
}

func (a *app) sessionLoop() {
	fmt.Println("Welcome to the Media Library!")
	for {
		// No accounts yet: bootstrap an administrator.
		if len(a.users.All()) == 0 {
			fmt.Println("\nNo accounts exist yet. Create the first administrator account.")
			a.handleAddUser(library.RoleAdmin)
			continue
		}

		fmt.Println("\n1) Log in")
		fmt.Println("0) Exit")
		switch a.prompt("> ") {
		case "1":
			user := a.login()
			if user == nil {
				continue
			}
			switch user.Role {
			case library.RoleAdmin:
				a.adminMenu(user)
			case library.RoleLibrarian:
				a.librarianMenu(user)
			case library.RoleMember:
				a.memberMenu(user)
			default:
				fmt.Println("Account has no usable role; contact an administrator.")
			}
		case "0":
			fmt.Println("Goodbye!")
			return
		default:
			fmt.Println("Unknown choice.")
		}
	}
}

func (a *app) login() *library.UserAccount {
	username := a.prompt("Username: ")
	password, err := readPassword("Password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return nil
	}
	user, err := a.users.Authenticate(username, password)
	if err != nil {
		fmt.Printf("Login failed: %v\n", err)
		return nil
	}
	fmt.Printf("Welcome, %s (%s)\n", user.Username, user.Role)
	return user
}

// ---------------------------------------------------------------------------
// Admin
// ---------------------------------------------------------------------------

func (a *app) adminMenu(user *library.UserAccount) {
	for {
		fmt.Println("\n=== Administration ===")
		fmt.Println("1) List users")
		fmt.Println("2) Add user")
		fmt.Println("3) Delete user")
		fmt.Println("4) Show fine balances")
		fmt.Println("5) Show audit journal")
		fmt.Println("0) Log out")
		switch a.prompt("> ") {
		case "1":
			a.handleListUsers()
		case "2":
			a.handleAddUser(library.RoleUnknown)
		case "3":
			a.handleDeleteUser(user)
		case "4":
			a.handleListBalances()
		case "5":
			a.handleAuditJournal()
		case "0":
			return
		default:
			fmt.Println("Unknown choice.")
		}
	}
}

func (a *app) handleListUsers() {
	users := a.users.All()
	if len(users) == 0 {
		fmt.Println("No accounts registered.")
		return
	}
	fmt.Printf("%-20s %-12s %-30s\n", "Username", "Role", "Email")
	fmt.Println(strings.Repeat("-", 64))
	for _, u := range users {
		fmt.Printf("%-20s %-12s %-30s\n", u.Username, u.Role, u.Email)
	}
}

// handleAddUser registers an account. A fixed non-UNKNOWN role skips the role
// prompt (used for first-run admin bootstrap).
func (a *app) handleAddUser(fixedRole library.Role) {
	username := a.prompt("Username: ")
	password, err := readPassword("Password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	role := fixedRole
	if role == library.RoleUnknown {
		role = library.ParseRole(a.prompt("Role (admin/librarian/member): "))
		if role == library.RoleUnknown {
			fmt.Println("Unknown role.")
			return
		}
	}
	email := a.prompt("Email: ")

	u, err := a.users.Register(username, password, role, email)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Added %s account '%s'\n", u.Role, u.Username)
}

func (a *app) handleDeleteUser(self *library.UserAccount) {
	// Resolve the account first: borrow records key on the exact stored
	// username, while account lookup is case-insensitive.
	user, err := a.users.Find(a.prompt("Username to delete: "))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if strings.EqualFold(user.Username, self.Username) {
		fmt.Println("You cannot delete the account you are logged in with.")
		return
	}
	if a.records.HasActiveBorrows(user.Username) {
		fmt.Println("User still has media on loan; collect it first.")
		return
	}
	if err := a.users.Delete(user.Username); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Deleted user '%s'\n", user.Username)
}

func (a *app) handleListBalances() {
	balances := a.fines.AllBalances()
	if len(balances) == 0 {
		fmt.Println("Nobody owes anything.")
		return
	}
	fmt.Printf("%-20s %s\n", "Username", "Balance")
	fmt.Println(strings.Repeat("-", 30))
	for u, b := range balances {
		fmt.Printf("%-20s %d\n", u, b)
	}
}

func (a *app) handleAuditJournal() {
	events, err := a.journal.Replay()
	if err != nil {
		fmt.Printf("Error reading journal: %v\n", err)
		return
	}
	if len(events) == 0 {
		fmt.Println("Journal is empty.")
		return
	}
	for _, ev := range events {
		line := fmt.Sprintf("%s  %-14s user=%s", ev.OccurredAt.Format("2006-01-02"), ev.Type, ev.Username)
		if ev.ISBN != "" {
			line += " isbn=" + ev.ISBN
		}
		if ev.Amount != 0 {
			line += fmt.Sprintf(" amount=%d", ev.Amount)
		}
		fmt.Println(line)
	}
}

// ---------------------------------------------------------------------------
// Librarian
// ---------------------------------------------------------------------------

func (a *app) librarianMenu(user *library.UserAccount) {
	for {
		fmt.Println("\n=== Circulation desk ===")
		fmt.Println("1) List catalog")
		fmt.Println("2) Search catalog")
		fmt.Println("3) Add media")
		fmt.Println("4) Delete media")
		fmt.Println("5) Update copy count")
		fmt.Println("6) Borrow for a member")
		fmt.Println("7) Return for a member")
		fmt.Println("8) Member's active loans")
		fmt.Println("9) Collect fine payment")
		fmt.Println("0) Log out")
		switch a.prompt("> ") {
		case "1":
			a.printMedia(a.media.AllMedia())
		case "2":
			a.handleSearch()
		case "3":
			a.handleAddMedia()
		case "4":
			a.handleDeleteMedia()
		case "5":
			a.handleUpdateQuantity()
		case "6":
			a.handleBorrow(a.prompt("Member username: "))
		case "7":
			a.handleReturn(a.prompt("Member username: "))
		case "8":
			a.printActiveLoans(a.prompt("Member username: "))
		case "9":
			a.handlePayFine(a.prompt("Member username: "))
		case "0":
			return
		default:
			fmt.Println("Unknown choice.")
		}
	}
}

func (a *app) printMedia(items []*library.MediaItem) {
	if len(items) == 0 {
		fmt.Println("Nothing in the catalog.")
		return
	}
	fmt.Printf("%-6s %-30s %-22s %-14s %-7s %-9s %s\n", "Type", "Title", "Author", "ISBN", "Total", "Available", "Due")
	fmt.Println(strings.Repeat("-", 100))
	for _, m := range items {
		due := "-"
		if m.DueDate != nil {
			due = m.DueDate.Format("2006-01-02")
		}
		fmt.Printf("%-6s %-30s %-22s %-14s %-7d %-9d %s\n",
			m.Type, truncate(m.Title, 30), truncate(m.Author, 22), m.ISBN, m.TotalCopies, m.AvailableCopies, due)
	}
}

func (a *app) handleSearch() {
	query := a.prompt("Query: ")
	results := a.media.Search(query)
	if len(results) == 0 {
		fmt.Printf("No media matching '%s'.\n", query)
		return
	}
	a.printMedia(results)
}

func (a *app) handleAddMedia() {
	mt, err := library.ParseMediaType(a.prompt("Type (book/cd): "))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	title := a.prompt("Title: ")
	author := a.prompt("Author: ")
	isbn := a.prompt("ISBN: ")
	copies, ok := a.promptInt("Copies: ")
	if !ok {
		return
	}
	item, err := a.media.AddMedia(mt, title, author, isbn, copies)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Added %s '%s' (%s), %d copies\n", item.Type, item.Title, item.ISBN, item.TotalCopies)
}

func (a *app) handleDeleteMedia() {
	isbn := a.prompt("ISBN: ")
	if err := a.media.DeleteMedia(isbn); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Deleted %s from the catalog\n", isbn)
}

func (a *app) handleUpdateQuantity() {
	isbn := a.prompt("ISBN: ")
	total, ok := a.promptInt("New total copies: ")
	if !ok {
		return
	}
	item, err := a.media.UpdateQuantity(isbn, total)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("'%s' now has %d copies, %d available\n", item.Title, item.TotalCopies, item.AvailableCopies)
}

func (a *app) handleBorrow(username string) {
	isbn := a.prompt("ISBN: ")
	rec, err := a.media.Borrow(isbn, username)
	switch {
	case errors.Is(err, library.ErrNotFound):
		fmt.Printf("No media with ISBN %s.\n", isbn)
	case errors.Is(err, library.ErrMediaUnavailable):
		fmt.Println("All copies are currently on loan.")
	case errors.Is(err, library.ErrOutstandingFine):
		fmt.Printf("Borrowing is blocked: outstanding fine of %d must be paid first.\n", a.fines.Balance(username))
	case err != nil:
		fmt.Printf("Error: %v\n", err)
	default:
		fmt.Printf("Borrowed %s for %s, due %s\n", isbn, username, rec.DueDate.Format("2006-01-02"))
	}
}

func (a *app) handleReturn(username string) {
	isbn := a.prompt("ISBN: ")
	receipt, err := a.media.Return(isbn, username)
	switch {
	case errors.Is(err, library.ErrNotFound):
		fmt.Printf("No media with ISBN %s.\n", isbn)
	case errors.Is(err, library.ErrNoActiveBorrow):
		fmt.Printf("%s has no active loan for %s.\n", username, isbn)
	case err != nil:
		fmt.Printf("Error: %v\n", err)
	case receipt.FineAssessed > 0:
		fmt.Printf("Returned %d day(s) late; fine of %d added. Balance: %d\n",
			receipt.OverdueDays, receipt.FineAssessed, a.fines.Balance(username))
	default:
		fmt.Println("Returned on time. Thank you!")
	}
}

func (a *app) printActiveLoans(username string) {
	recs := a.records.ActiveRecordsForUser(username)
	if len(recs) == 0 {
		fmt.Printf("%s has nothing on loan.\n", username)
		return
	}
	now := time.Now()
	for _, r := range recs {
		status := "due " + r.DueDate.Format("2006-01-02")
		if days := library.OverdueDays(r.DueDate, now); days > 0 {
			status = fmt.Sprintf("OVERDUE by %d day(s)", days)
		}
		fmt.Printf("  %-14s %s\n", r.ISBN, status)
	}
}

func (a *app) handlePayFine(username string) {
	balance := a.fines.Balance(username)
	if balance == 0 {
		fmt.Printf("%s owes nothing.\n", username)
		return
	}
	fmt.Printf("Current balance: %d\n", balance)
	amount, ok := a.promptInt("Payment amount: ")
	if !ok {
		return
	}
	newBalance := a.fines.PayFine(username, int64(amount))
	fmt.Printf("Payment accepted. Remaining balance: %d\n", newBalance)
}

// ---------------------------------------------------------------------------
// Member
// ---------------------------------------------------------------------------

func (a *app) memberMenu(user *library.UserAccount) {
	for {
		fmt.Println("\n=== Member ===")
		fmt.Println("1) Browse catalog")
		fmt.Println("2) Search catalog")
		fmt.Println("3) Borrow")
		fmt.Println("4) Return")
		fmt.Println("5) My loans")
		fmt.Println("6) My fine balance")
		fmt.Println("7) Pay fine")
		fmt.Println("0) Log out")
		switch a.prompt("> ") {
		case "1":
			a.printMedia(a.media.AllMedia())
		case "2":
			a.handleSearch()
		case "3":
			a.handleBorrow(user.Username)
		case "4":
			a.handleReturn(user.Username)
		case "5":
			a.printActiveLoans(user.Username)
		case "6":
			fmt.Printf("Your fine balance: %d\n", a.fines.Balance(user.Username))
		case "7":
			a.handlePayFine(user.Username)
		case "0":
			return
		default:
			fmt.Println("Unknown choice.")
		}
	}
}

func truncate(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength-3] + "..."
}
