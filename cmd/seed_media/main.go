package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"media-library/library"
)

const dataDir = "data"

type seedItem struct {
	mediaType library.MediaType
	title     string
	author    string
	isbn      string
	copies    int
}

var seedCatalog = []seedItem{
	{library.MediaTypeBook, "Clean Code", "Robert C. Martin", "B-1", 1},
	{library.MediaTypeBook, "The Pragmatic Programmer", "Hunt & Thomas", "B-2", 3},
	{library.MediaTypeBook, "1984", "George Orwell", "B-3", 2},
	{library.MediaTypeBook, "The Fellowship of the Ring", "J.R.R. Tolkien", "B-4", 2},
	{library.MediaTypeCD, "Kind of Blue", "Miles Davis", "C-1", 2},
	{library.MediaTypeCD, "Abbey Road", "The Beatles", "C-2", 1},
	{library.MediaTypeCD, "The Dark Side of the Moon", "Pink Floyd", "C-3", 1},
}

var seedUsers = []struct {
	username, password, email string
	role                      library.Role
}{
	{"admin", "admin", "admin@example.org", library.RoleAdmin},
	{"desk", "desk", "desk@example.org", library.RoleLibrarian},
	{"alice", "alice", "alice@example.org", library.RoleMember},
	{"bob", "bob", "bob@example.org", library.RoleMember},
}

func main() {
	fmt.Println("Resetting data directory...")
	if err := os.RemoveAll(dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error clearing %s: %v\n", dataDir, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	mediaStorage, err := library.NewFileMediaStorage(filepath.Join(dataDir, library.MediaFileName))
	if err != nil {
		fatal(err)
	}
	borrowStorage, err := library.NewFileBorrowStorage(filepath.Join(dataDir, library.BorrowsFileName))
	if err != nil {
		fatal(err)
	}
	fineStorage, err := library.NewFileFineStorage(filepath.Join(dataDir, library.FinesFileName))
	if err != nil {
		fatal(err)
	}
	userStorage, err := library.NewFileUserStorage(filepath.Join(dataDir, library.UsersFileName))
	if err != nil {
		fatal(err)
	}

	fines, err := library.NewFineService(fineStorage, logger)
	if err != nil {
		fatal(err)
	}
	records, err := library.NewBorrowRecordService(borrowStorage, logger)
	if err != nil {
		fatal(err)
	}
	users, err := library.NewUserService(userStorage, logger)
	if err != nil {
		fatal(err)
	}
	media, err := library.NewMediaService(mediaStorage, records, fines, library.NewFineCalculator(), logger)
	if err != nil {
		fatal(err)
	}

	fmt.Println("Seeding catalog...")
	for _, s := range seedCatalog {
		if _, err := media.AddMedia(s.mediaType, s.title, s.author, s.isbn, s.copies); err != nil {
			fmt.Printf("  %s: ERROR %v\n", s.isbn, err)
			continue
		}
		fmt.Printf("  %s '%s' (%d copies)\n", s.isbn, s.title, s.copies)
	}

	fmt.Println("Seeding accounts...")
	for _, s := range seedUsers {
		if _, err := users.Register(s.username, s.password, s.role, s.email); err != nil {
			fmt.Printf("  %s: ERROR %v\n", s.username, err)
			continue
		}
		fmt.Printf("  %s (%s)\n", s.username, s.role)
	}

	fmt.Println("\nSeed complete!")
	fmt.Printf("%-6s %-30s %-22s %-14s %s\n", "Type", "Title", "Author", "ISBN", "Copies")
	fmt.Println(strings.Repeat("-", 82))
	for _, m := range media.AllMedia() {
		fmt.Printf("%-6s %-30s %-22s %-14s %d\n", m.Type, m.Title, m.Author, m.ISBN, m.TotalCopies)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
