// Package history persists executed requests to a SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/hitexec/packages/executor"
	"github.com/abdul-hamid-achik/hitexec/packages/http"
)

const schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at  TIMESTAMP NOT NULL,
	method      TEXT NOT NULL,
	url         TEXT NOT NULL,
	multipart   BOOLEAN NOT NULL DEFAULT 0,
	status_code INTEGER,
	duration_us INTEGER NOT NULL,
	body_size   INTEGER NOT NULL DEFAULT 0,
	error_kind  TEXT,
	error       TEXT
);
CREATE INDEX IF NOT EXISTS idx_exchanges_created_at ON exchanges(created_at);
`

// Entry is one recorded exchange.
type Entry struct {
	ID         int64
	CreatedAt  time.Time
	Method     string
	URL        string
	Multipart  bool
	StatusCode int // 0 when no response was received
	Duration   time.Duration
	BodySize   int
	ErrorKind  string
	Error      string
}

// Store is an executor.Observer writing every exchange to SQLite.
type Store struct {
	db           *sql.DB
	logger       zerolog.Logger
	queryTimeout time.Duration
}

var _ executor.Observer = (*Store)(nil)

// Option configures a Store
type Option func(*Store)

// WithLogger reports write failures from Observe.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger.With().Str("component", "history").Logger()
	}
}

// Open opens or creates the database at path. ":memory:" keeps it in memory.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dataSource(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps ":memory:"
	// databases from splitting per connection.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:           db,
		logger:       zerolog.Nop(),
		queryTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return s, nil
}

func dataSource(path string) string {
	path = strings.TrimPrefix(path, "sqlite://")
	if path == ":memory:" || strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000"
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Observe records x. Failures are logged, not returned.
func (s *Store) Observe(x executor.Exchange) {
	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer cancel()

	if _, err := s.Record(ctx, NewEntry(x)); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record exchange")
	}
}

// NewEntry converts an exchange into an Entry.
func NewEntry(x executor.Exchange) Entry {
	e := Entry{
		CreatedAt: time.Now().UTC(),
		Multipart: x.Multipart,
		Duration:  x.Duration,
	}
	if x.Request != nil {
		e.Method = x.Request.Method
		e.URL = x.Request.BuildURL()
	}
	if x.Response != nil {
		e.StatusCode = x.Response.StatusCode
		e.BodySize = len(x.Response.Body)
	}
	if x.Err != nil {
		e.ErrorKind = http.Kind(x.Err)
		e.Error = x.Err.Error()
	}
	return e
}

// Record inserts e and returns its id.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO exchanges (created_at, method, url, multipart, status_code, duration_us, body_size, error_kind, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CreatedAt, e.Method, e.URL, e.Multipart, nullInt(e.StatusCode), e.Duration.Microseconds(), e.BodySize,
		nullString(e.ErrorKind), nullString(e.Error),
	)
	if err != nil {
		return 0, fmt.Errorf("insert failed: %w", err)
	}
	return res.LastInsertId()
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Limit      int
	Method     string
	FailedOnly bool
}

// List returns the most recent entries first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := `SELECT id, created_at, method, url, multipart, status_code, duration_us, body_size, error_kind, error
		FROM exchanges`

	var where []string
	var args []any
	if f.Method != "" {
		where = append(where, "method = ?")
		args = append(args, strings.ToUpper(f.Method))
	}
	if f.FailedOnly {
		where = append(where, "error_kind IS NOT NULL")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			status     sql.NullInt64
			durationUs int64
			kind, msg  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.Method, &e.URL, &e.Multipart, &status, &durationUs, &e.BodySize, &kind, &msg); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.StatusCode = int(status.Int64)
		e.Duration = time.Duration(durationUs) * time.Microsecond
		e.ErrorKind = kind.String
		e.Error = msg.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than the given age and reports how many were
// removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exchanges WHERE created_at < ?`, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}
	return res.RowsAffected()
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
