package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/sweeney/tilt-fermenter/internal/ferment"
)

// dialect captures the differences between the supported SQL backends.
type dialect struct {
	name       string
	driver     string
	idColumn   string
	floatType  string
	dollarArgs bool
}

var (
	sqliteDialect = dialect{
		name:      "sqlite",
		driver:    "sqlite",
		idColumn:  "INTEGER PRIMARY KEY AUTOINCREMENT",
		floatType: "REAL",
	}
	postgresDialect = dialect{
		name:       "postgres",
		driver:     "pgx",
		idColumn:   "BIGSERIAL PRIMARY KEY",
		floatType:  "DOUBLE PRECISION",
		dollarArgs: true,
	}
)

// bind rewrites ? placeholders for dialects that use $n.
func (d dialect) bind(query string) string {
	if !d.dollarArgs {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore is a Gateway over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	device  string
}

// Open connects to dsn. postgres:// and postgresql:// URLs use Postgres via
// pgx; anything else is treated as a SQLite file path (optionally prefixed
// with sqlite://). device tags every measurement row.
func Open(dsn, device string) (*SQLStore, error) {
	d, source := resolve(dsn)

	if d.name == sqliteDialect.name {
		if dir := filepath.Dir(source); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		if !strings.Contains(source, "?") {
			source += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		}
	}

	db, err := sql.Open(d.driver, source)
	if err != nil {
		return nil, wrap("open "+d.name, err)
	}
	if d.name == sqliteDialect.name {
		// One writer; avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	}
	return &SQLStore{db: db, dialect: d, device: device}, nil
}

func resolve(dsn string) (dialect, string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgresDialect, dsn
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqliteDialect, strings.TrimPrefix(dsn, "sqlite://")
	default:
		return sqliteDialect, dsn
	}
}

// DialectOf returns the backend name Open would pick for dsn.
func DialectOf(dsn string) string {
	d, _ := resolve(dsn)
	return d.name
}

// Dialect returns the backend name ("sqlite" or "postgres").
func (s *SQLStore) Dialect() string {
	return s.dialect.name
}

// CreateDatabase creates the events and measurements tables if missing.
func (s *SQLStore) CreateDatabase(ctx context.Context) error {
	ddl := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS events (
  id %s,
  title TEXT NOT NULL,
  ts BIGINT NOT NULL
)`, s.dialect.idColumn),
		`CREATE INDEX IF NOT EXISTS events_ts_idx ON events (ts)`,
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS measurements (
  id %s,
  device TEXT NOT NULL,
  variable TEXT NOT NULL,
  value %s NOT NULL,
  unit TEXT NOT NULL,
  ts BIGINT NOT NULL
)`, s.dialect.idColumn, s.dialect.floatType),
		`CREATE INDEX IF NOT EXISTS measurements_variable_ts_idx ON measurements (variable, ts)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return wrap("create database", err)
		}
	}
	return nil
}

// LastStartTime returns the last appended event's timestamp when it is a
// Start. Events are ordered by insertion, not by ts, so a wall clock that
// steps backward cannot reorder the log.
func (s *SQLStore) LastStartTime(ctx context.Context) (time.Time, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT title, ts FROM events
ORDER BY id DESC
LIMIT 1`)

	var title string
	var ts int64
	if err := row.Scan(&title, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, wrap("query last start time", err)
	}

	kind, ok := ferment.KindFromTitle(title)
	if !ok || kind != ferment.EventStart {
		return time.Time{}, false, nil
	}
	return fromNanos(ts), true, nil
}

// SpecificGravity returns the most recent gravity reading, restricted to
// readings at or after since when since is set.
func (s *SQLStore) SpecificGravity(ctx context.Context, since time.Time) (float64, bool, error) {
	var row *sql.Row
	if since.IsZero() {
		row = s.db.QueryRowContext(ctx, s.dialect.bind(`
SELECT value FROM measurements
WHERE variable = ?
ORDER BY ts DESC, id DESC
LIMIT 1`), string(ferment.MetricSpecificGravity))
	} else {
		row = s.db.QueryRowContext(ctx, s.dialect.bind(`
SELECT value FROM measurements
WHERE variable = ? AND ts >= ?
ORDER BY ts DESC, id DESC
LIMIT 1`), string(ferment.MetricSpecificGravity), toNanos(since))
	}

	var value float64
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, wrap("query specific gravity", err)
	}
	return value, true, nil
}

// WriteData inserts metrics in a single transaction.
func (s *SQLStore) WriteData(ctx context.Context, observedAt time.Time, metrics []ferment.Metric) error {
	if len(metrics) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("write data", err)
	}
	defer tx.Rollback()

	stmt := s.dialect.bind(`
INSERT INTO measurements (device, variable, value, unit, ts)
VALUES (?, ?, ?, ?, ?)`)
	ts := toNanos(observedAt)
	for _, m := range metrics {
		if _, err := tx.ExecContext(ctx, stmt, s.device, string(m.Name), m.Value, m.Unit, ts); err != nil {
			return wrap("write data", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrap("write data", err)
	}
	return nil
}

// WriteEvent appends event to the event log.
func (s *SQLStore) WriteEvent(ctx context.Context, event ferment.Event) error {
	title := event.Kind.Title()
	if title == "" {
		return wrap("write event", fmt.Errorf("unknown event kind %q", event.Kind))
	}
	_, err := s.db.ExecContext(ctx, s.dialect.bind(`
INSERT INTO events (title, ts) VALUES (?, ?)`), title, toNanos(event.Timestamp))
	if err != nil {
		return wrap("write event", err)
	}
	return nil
}

// Close closes the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
