package tracelog

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bangle-io/nalanda-sub001/internal/trace"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - records table with (store, seq) uniqueness
const currentSchemaVersion = 1

// Log is a SQLite-backed trace.Sink.
type Log struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ trace.Sink = (*Log)(nil)

// Option configures a Log.
type Option func(*Log)

// WithLogger sets the logger used to report write failures.
func WithLogger(l *slog.Logger) Option {
	return func(lg *Log) {
		lg.logger = l
	}
}

// WithNow overrides the clock used for created_at.
func WithNow(now func() time.Time) Option {
	return func(lg *Log) {
		lg.now = now
	}
}

// Open creates or opens a trace database at path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//
// Open is idempotent.
func Open(path string, opts ...Option) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	l := &Log{
		db:     db,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Close closes the database connection.
func (l *Log) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Record implements trace.Sink. Write failures are logged, never returned:
// a trace sink must not influence the store it observes.
func (l *Log) Record(r trace.Record) {
	if err := l.Write(context.Background(), r); err != nil {
		l.logger.Warn("trace record dropped",
			"store", r.Store,
			"seq", r.Seq,
			"type", r.Type,
			"error", err,
		)
	}
}

// Write inserts r. Writing the same (store, seq) twice is a no-op.
func (l *Log) Write(ctx context.Context, r trace.Record) error {
	body, err := trace.MarshalCanonical(r)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO records (store, seq, type, tx_id, action_id, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(store, seq) DO NOTHING
	`,
		r.Store,
		r.Seq,
		string(r.Type),
		r.TxID,
		r.ActionID,
		string(body),
		l.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Records returns every record written for store, ordered by seq.
// Returns an empty slice (not nil) if there are none.
func (l *Log) Records(ctx context.Context, store string) ([]trace.Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT body FROM records
		WHERE store = ?
		ORDER BY seq ASC
	`, store)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []trace.Record{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var r trace.Record
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Stores returns the distinct store names in the log, sorted.
func (l *Log) Stores(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT DISTINCT store FROM records
		ORDER BY store COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query stores: %w", err)
	}
	defer rows.Close()

	stores := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		stores = append(stores, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stores: %w", err)
	}
	return stores, nil
}

// Counts returns the number of records per type for store.
func (l *Log) Counts(ctx context.Context, store string) (map[trace.Type]int, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT type, COUNT(*) FROM records
		WHERE store = ?
		GROUP BY type
	`, store)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[trace.Type]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[trace.Type(typ)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (l *Log) verifyPragma(name, expected string) error {
	var value string
	if err := l.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
