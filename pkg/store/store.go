// Package store runs read-only queries against SQLite files inside the
// sandbox. It never creates or migrates a database.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// ErrNoRows is returned by QueryScalar when the query yields no row at all.
// An aggregate over zero matching rows still yields one NULL row.
var ErrNoRows = errors.New("store: query returned no rows")

// DB is a single read-only connection. It is not safe for concurrent use;
// open one per task.
type DB struct {
	conn *sqlite.Conn
	path string
}

// OpenReadOnly opens an existing database file. The file is never created.
func OpenReadOnly(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("store: path is required")
	}
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	if err := sqlitex.ExecuteTransient(conn, "PRAGMA busy_timeout=5000", nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: PRAGMA busy_timeout: %w", err)
	}
	slog.Debug("sqlite database opened", "path", path)
	return &DB{conn: conn, path: path}, nil
}

// Close releases the connection.
func (d *DB) Close() error {
	if err := d.conn.Close(); err != nil {
		return fmt.Errorf("store: closing %s: %w", d.path, err)
	}
	return nil
}

// Scalar is a single SQLite value with its storage class preserved.
type Scalar struct {
	Type  sqlite.ColumnType
	Int   int64
	Float float64
	Text  string
}

// IsNull reports whether the value is SQL NULL.
func (s Scalar) IsNull() bool {
	return s.Type == sqlite.TypeNull
}

// String renders the value as plain text. NULL renders as the empty string;
// floats use the shortest representation that round-trips.
func (s Scalar) String() string {
	switch s.Type {
	case sqlite.TypeInteger:
		return strconv.FormatInt(s.Int, 10)
	case sqlite.TypeFloat:
		return strconv.FormatFloat(s.Float, 'f', -1, 64)
	case sqlite.TypeText, sqlite.TypeBlob:
		return s.Text
	default:
		return ""
	}
}

// QueryScalar runs query with positional args and returns the first column
// of the first row. Cancelling ctx interrupts the statement.
func (d *DB) QueryScalar(ctx context.Context, query string, args ...any) (Scalar, error) {
	d.conn.SetInterrupt(ctx.Done())
	defer d.conn.SetInterrupt(nil)

	var (
		out   Scalar
		found bool
	)
	err := sqlitex.Execute(d.conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			if found {
				return nil
			}
			found = true
			out = readColumn(stmt, 0)
			return nil
		},
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Scalar{}, ctxErr
		}
		return Scalar{}, fmt.Errorf("store: query on %s: %w", d.path, err)
	}
	if !found {
		return Scalar{}, ErrNoRows
	}
	return out, nil
}

func readColumn(stmt *sqlite.Stmt, col int) Scalar {
	s := Scalar{Type: stmt.ColumnType(col)}
	switch s.Type {
	case sqlite.TypeInteger:
		s.Int = stmt.ColumnInt64(col)
	case sqlite.TypeFloat:
		s.Float = stmt.ColumnFloat(col)
	case sqlite.TypeText, sqlite.TypeBlob:
		s.Text = stmt.ColumnText(col)
	}
	return s
}
