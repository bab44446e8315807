// Package postgres provides a PostgreSQL-backed exitreq.Store.
//
// leave_at/return_at are TIMESTAMP (no zone) holding the naive wall clock;
// created_at/decided_at are TIMESTAMPTZ. Create is one INSERT and
// UpdateStatus one UPDATE ... RETURNING, so atomicity and last-write-wins
// come from the database rather than a process lock.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/warp/exit-engine/exitreq"
	"github.com/warp/exit-engine/logger"
	"github.com/warp/exit-engine/rules"
	"github.com/warp/exit-engine/temporal"
)

const schema = `
CREATE TABLE IF NOT EXISTS exit_requests (
	id                TEXT PRIMARY KEY,
	requester_id      TEXT NOT NULL,
	raw_text          TEXT NOT NULL,
	reason            TEXT NOT NULL DEFAULT '',
	exit_type         TEXT NOT NULL,
	leave_at          TIMESTAMP NOT NULL,
	return_at         TIMESTAMP NOT NULL,
	room_category     TEXT NOT NULL,
	emergency_contact TEXT NOT NULL DEFAULT '',
	risk_level        TEXT NOT NULL,
	fee               BIGINT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending', 'approved', 'rejected')),
	decided_by        TEXT NOT NULL DEFAULT '',
	decided_at        TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exit_requests_requester ON exit_requests (requester_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_exit_requests_status ON exit_requests (status, created_at DESC);
`

const columns = `id, requester_id, raw_text, reason, exit_type, leave_at, return_at, ` +
	`room_category, emergency_contact, risk_level, fee, status, decided_by, decided_at, created_at`

// Store implements exitreq.Store on PostgreSQL.
type Store struct {
	db  *sql.DB
	loc *time.Location
}

// Open connects with a lib/pq connection string and verifies the connection.
func Open(ctx context.Context, connStr string, loc *time.Location) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return New(db, loc), nil
}

// New wraps an existing connection pool. loc is the zone leave/return
// wall clocks are interpreted in.
func New(db *sql.DB, loc *time.Location) *Store {
	if loc == nil {
		loc = temporal.MustLoadZone(temporal.DefaultZone)
	}
	return &Store{db: db, loc: loc}
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, r exitreq.ExitRequest) error {
	query := `INSERT INTO exit_requests (` + columns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	var decidedAt any
	if r.DecidedAt != nil {
		decidedAt = *r.DecidedAt
	}

	logger.DatabaseCall("exit_requests.insert", "id", r.ID)
	res, err := s.db.ExecContext(ctx, query,
		r.ID, r.RequesterID, r.RawText, r.Reason, string(r.ExitType),
		temporal.Format(r.LeaveAt), temporal.Format(r.ReturnAt),
		string(r.RoomCategory), r.EmergencyContact, string(r.RiskLevel), r.Fee,
		string(r.Status), r.DecidedBy, decidedAt, r.CreatedAt,
	)
	var n int64
	if res != nil {
		n, _ = res.RowsAffected()
	}
	logger.DatabaseResult("exit_requests.insert", n, err)
	if err != nil {
		return fmt.Errorf("insert exit request: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (exitreq.ExitRequest, error) {
	query := `SELECT ` + columns + ` FROM exit_requests WHERE id = $1`
	r, err := s.scan(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return exitreq.ExitRequest{}, fmt.Errorf("%w: %s", exitreq.ErrNotFound, id)
	}
	return r, err
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status exitreq.Status, decidedBy string, decidedAt time.Time) (exitreq.ExitRequest, error) {
	query := `UPDATE exit_requests SET status = $1, decided_by = $2, decided_at = $3
	          WHERE id = $4 RETURNING ` + columns

	logger.DatabaseCall("exit_requests.update_status", "id", id, "status", status)
	r, err := s.scan(s.db.QueryRowContext(ctx, query, string(status), decidedBy, decidedAt, id))
	if errors.Is(err, sql.ErrNoRows) {
		logger.DatabaseResult("exit_requests.update_status", 0, nil)
		return exitreq.ExitRequest{}, fmt.Errorf("%w: %s", exitreq.ErrNotFound, id)
	}
	logger.DatabaseResult("exit_requests.update_status", 1, err)
	if err != nil {
		return exitreq.ExitRequest{}, fmt.Errorf("update exit request status: %w", err)
	}
	return r, nil
}

func (s *Store) ListByRequester(ctx context.Context, requesterID string) ([]exitreq.ExitRequest, error) {
	query := `SELECT ` + columns + ` FROM exit_requests WHERE requester_id = $1 ORDER BY created_at DESC, id DESC`
	return s.query(ctx, query, requesterID)
}

func (s *Store) ListAll(ctx context.Context, status exitreq.Status) ([]exitreq.ExitRequest, error) {
	query := `SELECT ` + columns + ` FROM exit_requests`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	return s.query(ctx, query, args...)
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
	var leaveAt, returnAt, createdAt time.Time
	var decidedAt sql.NullTime

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
	r.LeaveAt = s.wallClock(leaveAt)
	r.ReturnAt = s.wallClock(returnAt)
	r.CreatedAt = createdAt.In(s.loc)
	if decidedAt.Valid {
		t := decidedAt.Time.In(s.loc)
		r.DecidedAt = &t
	}
	return r, nil
}

// wallClock reinterprets a TIMESTAMP (returned by lib/pq as UTC) as wall
// clock time in the store's location.
func (s *Store) wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, s.loc)
}
