/*
Package sqlite provides a SQLite-backed exitreq.Store.

PURPOSE:
  Default persistence for exit requests. A single table holds the derived
  record; only the decision columns are ever updated after insert.

KEY TABLES:
  exit_requests: one row per submitted request

INDEXES:
  - idx_exit_requests_requester: "my requests" (hot path for students)
  - idx_exit_requests_status:    the admin pending queue

TIMESTAMPS:
  leave_at/return_at are stored naive ("2006-01-02T15:04:05") and read back
  in the store's location. created_at/decided_at are fixed-width UTC so
  that text ordering is time ordering.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Create is a single INSERT, so a
  reader sees either no row or the full row. UpdateStatus is an
  unconditional UPDATE: concurrent decisions resolve last-write-wins.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
  the single writer.

USAGE:
  store, err := sqlite.New("./data/exits.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := exitreq.NewService(store, orchestrator, normalizer)

SEE ALSO:
  - exitreq/store.go: Interface definition
  - exitreq/store/memory.go: In-memory implementation for testing
  - store/postgres: same contract on PostgreSQL
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/exit-engine/exitreq"
	"github.com/warp/exit-engine/logger"
	"github.com/warp/exit-engine/rules"
	"github.com/warp/exit-engine/temporal"
)

// instantLayout is fixed-width so lexical order matches time order.
const instantLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements exitreq.Store using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	loc *time.Location
}

// Option configures a Store.
type Option func(*Store)

// WithLocation sets the zone naive leave/return timestamps are read back in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every :memory: connection is its own database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, loc: temporal.MustLoadZone(temporal.DefaultZone)}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exit_requests (
		id TEXT PRIMARY KEY,
		requester_id TEXT NOT NULL,
		raw_text TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		exit_type TEXT NOT NULL,
		leave_at TEXT NOT NULL,
		return_at TEXT NOT NULL,
		room_category TEXT NOT NULL,
		emergency_contact TEXT NOT NULL DEFAULT '',
		risk_level TEXT NOT NULL,
		fee INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'approved', 'rejected')),
		decided_by TEXT NOT NULL DEFAULT '',
		decided_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_exit_requests_requester
		ON exit_requests(requester_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_exit_requests_status
		ON exit_requests(status, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EXIT REQUESTS
// =============================================================================

const selectColumns = `
	SELECT id, requester_id, raw_text, reason, exit_type, leave_at, return_at,
		room_category, emergency_contact, risk_level, fee, status,
		decided_by, decided_at, created_at
	FROM exit_requests`

// Create inserts a fully derived request.
func (s *Store) Create(ctx context.Context, r exitreq.ExitRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO exit_requests (id, requester_id, raw_text, reason, exit_type,
			leave_at, return_at, room_category, emergency_contact, risk_level, fee,
			status, decided_by, decided_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	logger.DatabaseCall("exit_requests.insert", "id", r.ID)
	res, err := s.db.ExecContext(ctx, query,
		r.ID, r.RequesterID, r.RawText, r.Reason, string(r.ExitType),
		temporal.Format(r.LeaveAt), temporal.Format(r.ReturnAt),
		string(r.RoomCategory), r.EmergencyContact, string(r.RiskLevel), r.Fee,
		string(r.Status), r.DecidedBy, formatOptional(r.DecidedAt),
		formatInstant(r.CreatedAt),
	)
	logger.DatabaseResult("exit_requests.insert", rowsAffected(res), err)
	if err != nil {
		return fmt.Errorf("insert exit request: %w", err)
	}
	return nil
}

// Get retrieves a request by ID.
func (s *Store) Get(ctx context.Context, id string) (exitreq.ExitRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(ctx, id)
}

func (s *Store) get(ctx context.Context, id string) (exitreq.ExitRequest, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	r, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return exitreq.ExitRequest{}, fmt.Errorf("%w: %s", exitreq.ErrNotFound, id)
	}
	if err != nil {
		return exitreq.ExitRequest{}, err
	}
	return r, nil
}

// UpdateStatus overwrites status and decision metadata.
func (s *Store) UpdateStatus(ctx context.Context, id string, status exitreq.Status, decidedBy string, decidedAt time.Time) (exitreq.ExitRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `UPDATE exit_requests SET status = ?, decided_by = ?, decided_at = ? WHERE id = ?`

	logger.DatabaseCall("exit_requests.update_status", "id", id, "status", status)
	res, err := s.db.ExecContext(ctx, query, string(status), decidedBy, formatInstant(decidedAt), id)
	n := rowsAffected(res)
	logger.DatabaseResult("exit_requests.update_status", n, err)
	if err != nil {
		return exitreq.ExitRequest{}, fmt.Errorf("update exit request status: %w", err)
	}
	if n == 0 {
		return exitreq.ExitRequest{}, fmt.Errorf("%w: %s", exitreq.ErrNotFound, id)
	}

	return s.get(ctx, id)
}

// ListByRequester returns a requester's requests, newest first.
func (s *Store) ListByRequester(ctx context.Context, requesterID string) ([]exitreq.ExitRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query(ctx, selectColumns+` WHERE requester_id = ? ORDER BY created_at DESC, id DESC`, requesterID)
}

// ListAll returns every request, newest first, optionally by status.
func (s *Store) ListAll(ctx context.Context, status exitreq.Status) ([]exitreq.ExitRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if status == "" {
		return s.query(ctx, selectColumns+` ORDER BY created_at DESC, id DESC`)
	}
	return s.query(ctx, selectColumns+` WHERE status = ? ORDER BY created_at DESC, id DESC`, string(status))
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]exitreq.ExitRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]exitreq.ExitRequest, 0)
	for rows.Next() {
		r, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scan(row scanner) (exitreq.ExitRequest, error) {
	var r exitreq.ExitRequest
	var exitType, room, risk, status string
	var leaveAt, returnAt, createdAt string
	var decidedAt sql.NullString

	err := row.Scan(
		&r.ID, &r.RequesterID, &r.RawText, &r.Reason, &exitType, &leaveAt, &returnAt,
		&room, &r.EmergencyContact, &risk, &r.Fee, &status,
		&r.DecidedBy, &decidedAt, &createdAt,
	)
	if err != nil {
		return exitreq.ExitRequest{}, err
	}

	r.ExitType = rules.ExitType(exitType)
	r.RoomCategory = rules.RoomCategory(room)
	r.RiskLevel = rules.RiskLevel(risk)
	r.Status = exitreq.Status(status)

	if r.LeaveAt, err = time.ParseInLocation(temporal.NaiveLayout, leaveAt, s.loc); err != nil {
		return exitreq.ExitRequest{}, fmt.Errorf("parse leave_at %q: %w", leaveAt, err)
	}
	if r.ReturnAt, err = time.ParseInLocation(temporal.NaiveLayout, returnAt, s.loc); err != nil {
		return exitreq.ExitRequest{}, fmt.Errorf("parse return_at %q: %w", returnAt, err)
	}
	r.CreatedAt = s.parseInstant(createdAt)
	if decidedAt.Valid {
		t := s.parseInstant(decidedAt.String)
		r.DecidedAt = &t
	}

	return r, nil
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(instantLayout)
}

func formatOptional(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatInstant(*t)
}

func (s *Store) parseInstant(v string) time.Time {
	t, err := time.Parse(instantLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t.In(s.loc)
}

func rowsAffected(res sql.Result) int64 {
	if res == nil {
		return 0
	}
	n, _ := res.RowsAffected()
	return n
}
