package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abhibansal60/led-catalog/internal/catalog"
	"github.com/abhibansal60/led-catalog/internal/store/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// bindingKey is the settings row holding the serialized folder binding.
const bindingKey = "directory_binding"

// SQLiteStore implements catalog.Store on a single SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens the catalog database at path, creating it if
// needed, and brings the schema up to date. path can be a file path or
// ":memory:" for an in-memory store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating catalog schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing database connection.
// The caller is responsible for the connection's configuration and schema.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenConnection opens and configures a SQLite connection with the
// PRAGMAs the catalog expects. Exported for tools and tests that need a
// properly configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite ships with foreign keys off for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

const programColumns = "id, name, description, original_file_name, stored_file_name, photo_mime, photo, date_added, file_size_bytes"

// Record operations

func (s *SQLiteStore) ListAll() ([]*catalog.Program, error) {
	rows, err := s.db.Query("SELECT " + programColumns + " FROM programs")
	if err != nil {
		return nil, storageErr("listing programs", err)
	}
	defer rows.Close()

	var out []*catalog.Program
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, storageErr("scanning program", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("listing programs", err)
	}
	return out, nil
}

func (s *SQLiteStore) Get(id string) (*catalog.Program, error) {
	row := s.db.QueryRow("SELECT "+programColumns+" FROM programs WHERE id = ?", id)
	p, err := scanProgram(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, storageErr("loading program", err)
	}
	return p, nil
}

func (s *SQLiteStore) Save(p *catalog.Program) error {
	var mime sql.NullString
	var photo []byte
	if p.Photo != nil {
		mime = sql.NullString{String: p.Photo.MIME, Valid: true}
		photo = p.Photo.Data
	}
	var size sql.NullInt64
	if p.FileSizeBytes != nil {
		size = sql.NullInt64{Int64: *p.FileSizeBytes, Valid: true}
	}
	_, err := s.db.Exec(`INSERT INTO programs (`+programColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			original_file_name = excluded.original_file_name,
			stored_file_name = excluded.stored_file_name,
			photo_mime = excluded.photo_mime,
			photo = excluded.photo,
			date_added = excluded.date_added,
			file_size_bytes = excluded.file_size_bytes`,
		p.ID, p.Name, p.Description, p.OriginalFileName, p.StoredFileName, mime, photo, p.DateAdded, size)
	if err != nil {
		return storageErr("saving program", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(id string) error {
	if _, err := s.db.Exec("DELETE FROM programs WHERE id = ?", id); err != nil {
		return storageErr("deleting program", err)
	}
	return nil
}

func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec("DELETE FROM programs"); err != nil {
		return storageErr("clearing programs", err)
	}
	return nil
}

// Folder binding slot

func (s *SQLiteStore) LoadBinding() (*catalog.Binding, error) {
	var raw string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", bindingKey).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No folder bound
		}
		return nil, storageErr("loading folder binding", err)
	}
	var b catalog.Binding
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, storageErr("decoding folder binding", err)
	}
	return &b, nil
}

func (s *SQLiteStore) SaveBinding(b *catalog.Binding) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return storageErr("encoding folder binding", err)
	}
	_, err = s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, bindingKey, string(raw))
	if err != nil {
		return storageErr("saving folder binding", err)
	}
	return nil
}

func (s *SQLiteStore) ClearBinding() error {
	if _, err := s.db.Exec("DELETE FROM settings WHERE key = ?", bindingKey); err != nil {
		return storageErr("clearing folder binding", err)
	}
	return nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgram(row rowScanner) (*catalog.Program, error) {
	var p catalog.Program
	var mime sql.NullString
	var photo []byte
	var size sql.NullInt64
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.OriginalFileName, &p.StoredFileName,
		&mime, &photo, &p.DateAdded, &size)
	if err != nil {
		return nil, err
	}
	if mime.Valid {
		p.Photo = &catalog.Photo{MIME: mime.String, Data: photo}
	}
	if size.Valid {
		n := size.Int64
		p.FileSizeBytes = &n
	}
	return &p, nil
}

// storageErr classifies a database failure into the catalog taxonomy.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", catalog.ErrStorage, op, err)
}

// Compile-time check that SQLiteStore implements catalog.Store
var _ catalog.Store = (*SQLiteStore)(nil)
