package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/exit-engine/exitreq"
	"github.com/warp/exit-engine/rules"
	"github.com/warp/exit-engine/store/postgres"
	"github.com/warp/exit-engine/temporal"
)

var kolkata = temporal.MustLoadZone("Asia/Kolkata")

var columnNames = []string{
	"id", "requester_id", "raw_text", "reason", "exit_type", "leave_at", "return_at",
	"room_category", "emergency_contact", "risk_level", "fee", "status", "decided_by", "decided_at", "created_at",
}

func newMockStore(t *testing.T) (*postgres.Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return postgres.New(db, kolkata), mock
}

func sampleRow(rows *sqlmock.Rows, id, status string, decidedAt any) *sqlmock.Rows {
	// lib/pq hands back TIMESTAMP columns as UTC with the stored wall clock.
	leave := time.Date(2025, 12, 20, 10, 0, 0, 0, time.UTC)
	ret := time.Date(2025, 12, 25, 10, 0, 0, 0, time.UTC)
	created := time.Date(2025, 12, 19, 3, 30, 0, 0, time.UTC)
	return rows.AddRow(id, "student-1", "going home", "family", "HOSTEL_LEAVE", leave, ret,
		"2_seater", "9876543210", "low", int64(1200), status, "", decidedAt, created)
}

func TestStore_Create(t *testing.T) {
	store, mock := newMockStore(t)

	req := exitreq.ExitRequest{
		ID:               "req-1",
		RequesterID:      "student-1",
		RawText:          "going home",
		ExitType:         rules.HostelLeave,
		LeaveAt:          time.Date(2025, 12, 20, 10, 0, 0, 0, kolkata),
		ReturnAt:         time.Date(2025, 12, 25, 10, 0, 0, 0, kolkata),
		RoomCategory:     rules.RoomTwoSeater,
		EmergencyContact: "9876543210",
		RiskLevel:        rules.RiskLow,
		Fee:              1200,
		Status:           exitreq.StatusPending,
		CreatedAt:        time.Date(2025, 12, 19, 9, 0, 0, 0, kolkata),
	}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO exit_requests").
			WithArgs("req-1", "student-1", "going home", "", "HOSTEL_LEAVE",
				"2025-12-20T10:00:00", "2025-12-25T10:00:00",
				"2_seater", "9876543210", "low", int64(1200), "pending", "", nil, req.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.Create(context.Background(), req))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateKey", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO exit_requests").
			WillReturnError(errors.New("pq: duplicate key value violates unique constraint"))

		assert.Error(t, store.Create(context.Background(), req))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_Get(t *testing.T) {
	store, mock := newMockStore(t)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM exit_requests WHERE id = \\$1").
			WithArgs("req-1").
			WillReturnRows(sampleRow(sqlmock.NewRows(columnNames), "req-1", "pending", nil))

		got, err := store.Get(context.Background(), "req-1")
		require.NoError(t, err)
		assert.Equal(t, "req-1", got.ID)
		assert.Equal(t, rules.HostelLeave, got.ExitType)
		assert.True(t, got.LeaveAt.Equal(time.Date(2025, 12, 20, 10, 0, 0, 0, kolkata)), "wall clock kept in zone")
		assert.Equal(t, int64(1200), got.Fee)
		assert.Nil(t, got.DecidedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM exit_requests WHERE id = \\$1").
			WithArgs("nope").
			WillReturnRows(sqlmock.NewRows(columnNames))

		_, err := store.Get(context.Background(), "nope")
		assert.ErrorIs(t, err, exitreq.ErrNotFound)
	})
}

func TestStore_UpdateStatus(t *testing.T) {
	store, mock := newMockStore(t)
	decided := time.Date(2025, 12, 19, 10, 0, 0, 0, kolkata)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery("UPDATE exit_requests SET status = \\$1, decided_by = \\$2, decided_at = \\$3\\s+WHERE id = \\$4 RETURNING").
			WithArgs("approved", "warden-1", decided, "req-1").
			WillReturnRows(sampleRow(sqlmock.NewRows(columnNames), "req-1", "approved", decided))

		got, err := store.UpdateStatus(context.Background(), "req-1", exitreq.StatusApproved, "warden-1", decided)
		require.NoError(t, err)
		assert.Equal(t, exitreq.StatusApproved, got.Status)
		require.NotNil(t, got.DecidedAt)
		assert.True(t, decided.Equal(*got.DecidedAt))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("UPDATE exit_requests").
			WillReturnRows(sqlmock.NewRows(columnNames))

		_, err := store.UpdateStatus(context.Background(), "nope", exitreq.StatusApproved, "warden-1", decided)
		assert.ErrorIs(t, err, exitreq.ErrNotFound)
	})
}

func TestStore_Lists(t *testing.T) {
	store, mock := newMockStore(t)

	t.Run("ByRequester", func(t *testing.T) {
		rows := sqlmock.NewRows(columnNames)
		sampleRow(rows, "req-2", "pending", nil)
		sampleRow(rows, "req-1", "rejected", time.Now())

		mock.ExpectQuery("SELECT (.+) FROM exit_requests WHERE requester_id = \\$1 ORDER BY created_at DESC").
			WithArgs("student-1").
			WillReturnRows(rows)

		got, err := store.ListByRequester(context.Background(), "student-1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "req-2", got[0].ID)
		assert.Equal(t, exitreq.StatusRejected, got[1].Status)
	})

	t.Run("AllPending", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM exit_requests WHERE status = \\$1 ORDER BY").
			WithArgs("pending").
			WillReturnRows(sampleRow(sqlmock.NewRows(columnNames), "req-2", "pending", nil))

		got, err := store.ListAll(context.Background(), exitreq.StatusPending)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("AllUnfiltered", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM exit_requests ORDER BY").
			WithoutArgs().
			WillReturnRows(sqlmock.NewRows(columnNames))

		got, err := store.ListAll(context.Background(), "")
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_Migrate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS exit_requests").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
