package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb/v2"
)

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id VARCHAR PRIMARY KEY,
	title VARCHAR NOT NULL,
	isbn VARCHAR,
	epub_path VARCHAR NOT NULL,
	chapters INTEGER NOT NULL,
	downloaded_at TIMESTAMP NOT NULL
)`

// Repository is the duckdb-backed library of completed downloads. Losing it
// loses nothing but the `list` view; the epub files are the product.
type Repository struct {
	db *sql.DB
}

func InitDuckDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize library schema: %w", err)
	}
	return db, nil
}

func NewRepository(path string) (*Repository, error) {
	db, err := InitDuckDB(path)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error { return r.db.Close() }

// SaveBook upserts a finished download.
func (r *Repository) SaveBook(b *Book) error {
	_, err := r.db.Exec(`
		INSERT OR REPLACE INTO books (id, title, isbn, epub_path, chapters, downloaded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.Title, b.ISBN, b.EpubPath, b.Chapters, b.DownloadedAt)
	return err
}

func (r *Repository) GetBook(id string) (*Book, error) {
	row := r.db.QueryRow(`
		SELECT id, title, isbn, epub_path, chapters, downloaded_at
		FROM books WHERE id = ?`, id)

	var b Book
	if err := row.Scan(&b.ID, &b.Title, &b.ISBN, &b.EpubPath, &b.Chapters, &b.DownloadedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *Repository) ListBooks() ([]*Book, error) {
	rows, err := r.db.Query(`
		SELECT id, title, isbn, epub_path, chapters, downloaded_at
		FROM books ORDER BY downloaded_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.ISBN, &b.EpubPath, &b.Chapters, &b.DownloadedAt); err != nil {
			return nil, err
		}
		books = append(books, &b)
	}
	return books, rows.Err()
}
