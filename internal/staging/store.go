// Package staging cleans the raw corpus and loads it into the relational staging table.
package staging

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/bull/corpus-pipeline/internal/connect"
)

// Supported drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// DefaultTable is the staging table name.
const DefaultTable = "texts"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// dialect holds the statements that differ between backends.
type dialect struct {
	createTable string
	truncate    []string
}

var dialects = map[string]dialect{
	DriverMySQL: {
		createTable: `
CREATE TABLE IF NOT EXISTS %[1]s (
	id INT AUTO_INCREMENT PRIMARY KEY,
	text TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,
		truncate: []string{`TRUNCATE TABLE %[1]s`},
	},
	DriverSQLite: {
		createTable: `
CREATE TABLE IF NOT EXISTS %[1]s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,
		// DELETE keeps the AUTOINCREMENT high-water mark; reset it so ids restart at 1.
		truncate: []string{
			`DELETE FROM %[1]s`,
			`DELETE FROM sqlite_sequence WHERE name = '%[1]s'`,
		},
	},
}

// Options configures a staging Store.
type Options struct {
	Driver         string
	DSN            string
	Table          string
	ConnectRetries int
}

// Row is one staged text.
type Row struct {
	ID   int64
	Text string
}

// Store wraps the staging database handle.
type Store struct {
	db      *sql.DB
	dialect dialect
	driver  string
	table   string
}

// Open connects to the staging database and verifies it answers a ping.
// The pool is limited to a single connection.
func Open(ctx context.Context, opts Options) (*Store, error) {
	d, ok := dialects[opts.Driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, opts.Driver)
	}
	if opts.Table == "" {
		opts.Table = DefaultTable
	}
	if !tableName.MatchString(opts.Table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, opts.Table)
	}

	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}
	db.SetMaxOpenConns(1)

	if err := connect.Ping(ctx, opts.ConnectRetries, db.PingContext); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return &Store{
		db:      db,
		dialect: d,
		driver:  opts.Driver,
		table:   opts.Table,
	}, nil
}

// MySQLDSN builds a go-sql-driver DSN for host:port/database.
func MySQLDSN(host string, port int, user, password, database string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.DBName = database
	cfg.ParseTime = true
	cfg.Timeout = 10 * time.Second
	return cfg.FormatDSN()
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the backend name.
func (s *Store) Driver() string {
	return s.driver
}

// Table returns the staging table name.
func (s *Store) Table() string {
	return s.table
}

// DB exposes the underlying handle for verification queries in tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EnsureTable creates the staging table if it does not exist.
func (s *Store) EnsureTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(s.dialect.createTable, s.table)); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Truncate removes every row and restarts id assignment at 1.
func (s *Store) Truncate(ctx context.Context) error {
	for _, stmt := range s.dialect.truncate {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(stmt, s.table)); err != nil {
			return fmt.Errorf("truncate %s: %w", s.table, err)
		}
	}
	return nil
}

// InsertBatch inserts texts in one transaction with a single multi-row statement.
// On failure the transaction is rolled back and the error wraps ErrBatchWrite.
func (s *Store) InsertBatch(ctx context.Context, texts []string) error {
	if len(texts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrBatchWrite, err)
	}
	defer tx.Rollback()

	var sb strings.Builder
	args := make([]any, 0, len(texts))
	fmt.Fprintf(&sb, "INSERT INTO %s (text) VALUES ", s.table)
	for i, text := range texts {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?)")
		args = append(args, text)
	}

	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("%w: %v", ErrBatchWrite, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrBatchWrite, err)
	}
	return nil
}

// Count returns the number of rows with non-null text.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE text IS NOT NULL", s.table)
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", s.table, err)
	}
	return n, nil
}

// Preview returns up to limit rows by id with text cut to width characters.
func (s *Store) Preview(ctx context.Context, limit, width int) ([]Row, error) {
	q := fmt.Sprintf("SELECT id, SUBSTR(text, 1, ?) FROM %s ORDER BY id LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, width, limit)
	if err != nil {
		return nil, fmt.Errorf("preview %s: %w", s.table, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Text); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// EachRow streams every row with non-null text in id order. Iteration stops at the first
// error returned by fn, which is returned unchanged.
func (s *Store) EachRow(ctx context.Context, fn func(Row) error) error {
	q := fmt.Sprintf("SELECT id, text FROM %s WHERE text IS NOT NULL ORDER BY id", s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("query %s: %w", s.table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Text); err != nil {
			return fmt.Errorf("scan %s: %w", s.table, err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}
