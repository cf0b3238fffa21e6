package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore creates a new SQLite store instance, applying any pending
// schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Document operations

func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *Document) error {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	query := `
		INSERT INTO documents (id, name, type, system_category, uploaded_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		doc.ID, doc.Name, doc.Type, doc.SystemCategory, doc.UploadedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("document %s: %w", doc.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	query := `
		SELECT id, name, type, system_category, uploaded_at
		FROM documents
		WHERE id = ?
	`
	var doc Document
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.Name, &doc.Type, &doc.SystemCategory, &doc.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, system string) ([]*Document, error) {
	query := `
		SELECT id, name, type, system_category, uploaded_at
		FROM documents
	`
	var args []interface{}
	if system != "" {
		query += " WHERE system_category = ?"
		args = append(args, system)
	}
	query += " ORDER BY uploaded_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	docs := make([]*Document, 0)
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Type, &doc.SystemCategory, &doc.UploadedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// Page operations

// pageColumns is the column list used by every page SELECT, kept in lockstep
// with scanPage.
const pageColumns = "p.id, p.document_id, p.document_name, p.page_number, p.system, p.tags, p.summary, p.content, p.embedding, p.created_at"

func (s *SQLiteStore) CreatePage(ctx context.Context, page *Page) error {
	if page.CreatedAt.IsZero() {
		page.CreatedAt = time.Now()
	}
	tagsJSON, err := json.Marshal(page.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
		INSERT INTO pages (id, document_id, document_name, page_number, system,
		                   tags, summary, content, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var embedding interface{}
	if len(page.Embedding) > 0 {
		embedding = serializeVector(page.Embedding)
	}
	_, err = s.db.ExecContext(ctx, query,
		page.ID, page.DocumentID, page.DocumentName, page.PageNumber, page.System,
		string(tagsJSON), page.Summary, page.Content, embedding, page.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("page %d of document %s: %w", page.PageNumber, page.DocumentID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create page: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetPage(ctx context.Context, id string) (*Page, error) {
	query := "SELECT " + pageColumns + " FROM pages p WHERE p.id = ?"
	page, err := scanPage(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

// SearchTags returns pages carrying any of the requested tags, unranked,
// ordered by (document_name, page_number).
func (s *SQLiteStore) SearchTags(ctx context.Context, tags []string, system string) ([]*Page, error) {
	if len(tags) == 0 {
		return []*Page{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tags)), ",")
	query := "SELECT " + pageColumns + ` FROM pages p
		WHERE EXISTS (SELECT 1 FROM json_each(p.tags) WHERE json_each.value IN (` + placeholders + `))`
	args := make([]interface{}, 0, len(tags)+1)
	for _, tag := range tags {
		args = append(args, tag)
	}
	if system != "" {
		query += " AND p.system = ?"
		args = append(args, system)
	}
	query += " ORDER BY p.document_name, p.page_number"

	return s.queryPages(ctx, query, args...)
}

// BrowsePages pages through a system's records in deterministic order.
func (s *SQLiteStore) BrowsePages(ctx context.Context, system, tag string, limit, offset int) ([]*Page, error) {
	query := "SELECT " + pageColumns + " FROM pages p WHERE p.system = ?"
	args := []interface{}{system}
	if tag != "" {
		query += " AND EXISTS (SELECT 1 FROM json_each(p.tags) WHERE json_each.value = ?)"
		args = append(args, tag)
	}
	query += " ORDER BY p.document_name, p.page_number LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	return s.queryPages(ctx, query, args...)
}

// CountPages counts the records BrowsePages would page through.
func (s *SQLiteStore) CountPages(ctx context.Context, system, tag string) (int, error) {
	query := "SELECT COUNT(*) FROM pages p WHERE p.system = ?"
	args := []interface{}{system}
	if tag != "" {
		query += " AND EXISTS (SELECT 1 FROM json_each(p.tags) WHERE json_each.value = ?)"
		args = append(args, tag)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return count, nil
}

// SystemCounts returns the page count per system label.
func (s *SQLiteStore) SystemCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT system, COUNT(*) FROM pages GROUP BY system")
	if err != nil {
		return nil, fmt.Errorf("failed to count systems: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var system string
		var count int
		if err := rows.Scan(&system, &count); err != nil {
			return nil, err
		}
		counts[system] = count
	}
	return counts, rows.Err()
}

// SystemTags returns the tags of a system's first sampleLimit pages,
// flattened in insertion order.
func (s *SQLiteStore) SystemTags(ctx context.Context, system string, sampleLimit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT tags FROM pages WHERE system = ? ORDER BY rowid LIMIT ?", system, sampleLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to sample tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var flat []string
	for rows.Next() {
		var tagsJSON string
		if err := rows.Scan(&tagsJSON); err != nil {
			return nil, err
		}
		var tags []string
		if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
		flat = append(flat, tags...)
	}
	return flat, rows.Err()
}

// Search operations

func (s *SQLiteStore) SearchText(ctx context.Context, query, system string, limit int) ([]TextResult, error) {
	return searchText(ctx, s.db, query, system, limit)
}

func (s *SQLiteStore) SearchVector(ctx context.Context, vector []float32, system string, threshold float64, limit int) ([]VectorResult, error) {
	return searchVector(ctx, s.db, vector, system, threshold, limit)
}

// Helpers

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanPage scans one row in pageColumns order.
func scanPage(row rowScanner) (*Page, error) {
	var page Page
	var tagsJSON string
	var summary sql.NullString
	var embedding []byte
	err := row.Scan(
		&page.ID, &page.DocumentID, &page.DocumentName, &page.PageNumber, &page.System,
		&tagsJSON, &summary, &page.Content, &embedding, &page.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tagsJSON), &page.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	page.Summary = summary.String
	if len(embedding) > 0 {
		page.Embedding = deserializeVector(embedding)
	}
	return &page, nil
}

// queryPages runs a pageColumns SELECT and scans all rows.
func (s *SQLiteStore) queryPages(ctx context.Context, query string, args ...interface{}) ([]*Page, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	pages := make([]*Page, 0)
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}
