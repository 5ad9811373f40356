package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"hddpredict/frame"
)

const (
	columnsTable = "frame_columns"
	dataTable    = "snapshots"
)

// Store persists a single Frame in a SQLite file.
type Store struct {
	db   *sql.DB
	path string
}

// Exists reports whether a table file is already present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Open opens or creates the SQLite file at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ` + columnsTable + ` (
		position INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Path returns the file the store was opened on.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// SaveFrame replaces the stored table with f in a single transaction.
// Missing cells are stored as NULL.
func (s *Store) SaveFrame(ctx context.Context, f *frame.Frame) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM "+columnsTable); err != nil {
		return fmt.Errorf("failed to clear columns: %w", err)
	}
	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+dataTable); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}

	columns := f.Columns()
	for i, c := range columns {
		if _, err = tx.ExecContext(ctx, "INSERT INTO "+columnsTable+" (position, name) VALUES (?, ?)", i, c); err != nil {
			return fmt.Errorf("failed to record column %q: %w", c, err)
		}
	}

	if len(columns) > 0 {
		defs := make([]string, len(columns))
		marks := make([]string, len(columns))
		for i, c := range columns {
			defs[i] = quote(c) + " TEXT"
			marks[i] = "?"
		}
		if _, err = tx.ExecContext(ctx, "CREATE TABLE "+dataTable+" ("+strings.Join(defs, ", ")+")"); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}

		var stmt *sql.Stmt
		stmt, err = tx.PrepareContext(ctx, "INSERT INTO "+dataTable+" VALUES ("+strings.Join(marks, ", ")+")")
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		args := make([]any, len(columns))
		for i := 0; i < f.Len(); i++ {
			for j, v := range f.Row(i) {
				if v == "" {
					args[j] = nil
				} else {
					args[j] = v
				}
			}
			if _, err = stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("failed to insert row %d: %w", i, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// LoadFrame reads the stored table back.
func (s *Store) LoadFrame(ctx context.Context) (*frame.Frame, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM "+columnsTable+" ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		columns = append(columns, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	out := frame.New(columns)
	if len(columns) == 0 {
		return out, nil
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quote(c)
	}
	data, err := s.db.QueryContext(ctx, "SELECT "+strings.Join(quoted, ", ")+" FROM "+dataTable+" ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}
	defer data.Close()

	cells := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range cells {
		dest[i] = &cells[i]
	}
	row := make([]string, len(columns))
	for data.Next() {
		if err := data.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, c := range cells {
			row[i] = c.String
		}
		if err := out.Append(row); err != nil {
			return nil, err
		}
	}
	if err := data.Err(); err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}
	return out, nil
}

// Save writes f to a fresh table file at path.
func Save(ctx context.Context, path string, f *frame.Frame) error {
	s, err := Open(path)
	if err != nil {
		return err
	}
	if err := s.SaveFrame(ctx, f); err != nil {
		s.Close()
		return err
	}
	return s.Close()
}

// Load reads the table file at path.
func Load(ctx context.Context, path string) (*frame.Frame, error) {
	if !Exists(path) {
		return nil, fmt.Errorf("table file %s: %w", path, os.ErrNotExist)
	}
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	f, err := s.LoadFrame(ctx)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// IsNotExist reports whether err means the table file was missing.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
