// Package sqlite provides a SQLite-backed implementation of
// phonecall.Repository.
//
// WAL mode is enabled on Open so that readers never block writers and vice
// versa — the HTTP status endpoint may read while a trigger is persisting.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/phonecall-sagas/internal/phonecall"

	// Register the pure-Go SQLite driver. modernc.org/sqlite avoids CGO,
	// which keeps cross-compilation and Alpine images painless.
	_ "modernc.org/sqlite"
)

// schema is applied once on Open. Both tables are keyed by the saga
// identifier so every write is a plain upsert on the primary key: exactly
// one row per saga in each table, no matter how many transitions run.
const schema = `
CREATE TABLE IF NOT EXISTS saga_transactions (
    -- Saga identifier. One row per saga, overwritten in place on every
    -- transition.
    id     TEXT PRIMARY KEY,

    -- Current state as its enum string (e.g. "Ringing").
    state  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS phone_calls (
    -- Saga identifier (the model's correlation id). Independent key space
    -- from saga_transactions, correlated by the same value.
    correlation_id  TEXT PRIMARY KEY,

    -- Model's own identifier.
    id              TEXT NOT NULL,

    caller_name     TEXT NOT NULL DEFAULT '',
    caller_number   TEXT NOT NULL DEFAULT '',
    receiver_name   TEXT NOT NULL DEFAULT '',
    receiver_number TEXT NOT NULL DEFAULT '',

    -- RFC3339 TEXT, empty while not connected (SQLite has no datetime type).
    call_started_at TEXT NOT NULL DEFAULT '',

    -- Accumulated connected time in nanoseconds.
    call_duration   INTEGER NOT NULL DEFAULT 0,

    is_missed_call  INTEGER NOT NULL DEFAULT 0,
    muted           INTEGER NOT NULL DEFAULT 0,
    volume          INTEGER NOT NULL DEFAULT 0
);
`

// Repository is the SQLite implementation of phonecall.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
//
//	repo, err := sqlite.Open("./data/phonecalls.db")
func Open(path string) (*Repository, error) {
	// _pragma query parameters configure per-connection state for the
	// modernc driver. busy_timeout waits for locks instead of failing.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close releases the database connection. Call it with defer in main().
func (r *Repository) Close() error {
	return r.db.Close()
}

// SaveTransaction upserts the (id, state) record for a saga.
func (r *Repository) SaveTransaction(ctx context.Context, tx *phonecall.Transaction) error {
	const q = `
		INSERT INTO saga_transactions (id, state) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET state = excluded.state`

	if _, err := r.db.ExecContext(ctx, q, tx.ID.String(), string(tx.State)); err != nil {
		return fmt.Errorf("sqlite: save transaction %s: %w", tx.ID, err)
	}
	return nil
}

// SaveModel upserts the phone call model, keyed by its correlation id.
func (r *Repository) SaveModel(ctx context.Context, call *phonecall.PhoneCall) error {
	const q = `
		INSERT INTO phone_calls
			(correlation_id, id, caller_name, caller_number, receiver_name,
			 receiver_number, call_started_at, call_duration, is_missed_call,
			 muted, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(correlation_id) DO UPDATE SET
			id              = excluded.id,
			caller_name     = excluded.caller_name,
			caller_number   = excluded.caller_number,
			receiver_name   = excluded.receiver_name,
			receiver_number = excluded.receiver_number,
			call_started_at = excluded.call_started_at,
			call_duration   = excluded.call_duration,
			is_missed_call  = excluded.is_missed_call,
			muted           = excluded.muted,
			volume          = excluded.volume`

	_, err := r.db.ExecContext(ctx, q,
		call.CorrelationID.String(),
		call.ID.String(),
		call.CallerName,
		call.CallerNumber,
		call.ReceiverName,
		call.ReceiverNumber,
		formatTime(call.CallStartedAt),
		int64(call.CallDuration),
		boolToInt(call.IsMissedCall),
		boolToInt(call.Muted),
		call.Volume,
	)
	if err != nil {
		return fmt.Errorf("sqlite: save model for saga %s: %w", call.CorrelationID, err)
	}
	return nil
}

// FindTransaction returns the transaction record for a saga, or
// phonecall.ErrNotFound when no row exists.
func (r *Repository) FindTransaction(ctx context.Context, id uuid.UUID) (*phonecall.Transaction, error) {
	const q = `SELECT id, state FROM saga_transactions WHERE id = ?`

	var rawID, state string
	err := r.db.QueryRowContext(ctx, q, id.String()).Scan(&rawID, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite: transaction %s: %w", id, phonecall.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: find transaction %s: %w", id, err)
	}

	parsed, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: transaction %s has invalid id: %w", id, err)
	}
	return &phonecall.Transaction{ID: parsed, State: phonecall.State(state)}, nil
}

// FindModel returns the phone call model for a saga, or phonecall.ErrNotFound
// when no row exists.
func (r *Repository) FindModel(ctx context.Context, id uuid.UUID) (*phonecall.PhoneCall, error) {
	const q = `
		SELECT correlation_id, id, caller_name, caller_number, receiver_name,
		       receiver_number, call_started_at, call_duration, is_missed_call,
		       muted, volume
		FROM   phone_calls
		WHERE  correlation_id = ?`

	var (
		rawCorrelation, rawID string
		startedAt             string
		duration              int64
		missed, muted         int
		call                  phonecall.PhoneCall
	)
	err := r.db.QueryRowContext(ctx, q, id.String()).Scan(
		&rawCorrelation,
		&rawID,
		&call.CallerName,
		&call.CallerNumber,
		&call.ReceiverName,
		&call.ReceiverNumber,
		&startedAt,
		&duration,
		&missed,
		&muted,
		&call.Volume,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite: model for saga %s: %w", id, phonecall.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: find model for saga %s: %w", id, err)
	}

	if call.CorrelationID, err = uuid.Parse(rawCorrelation); err != nil {
		return nil, fmt.Errorf("sqlite: model for saga %s has invalid correlation id: %w", id, err)
	}
	if call.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("sqlite: model for saga %s has invalid id: %w", id, err)
	}
	if call.CallStartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("sqlite: model for saga %s: %w", id, err)
	}
	call.CallDuration = time.Duration(duration)
	call.IsMissedCall = missed != 0
	call.Muted = muted != 0

	return &call, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
