package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"scribe/internal/config"
	"scribe/internal/extract"
	"scribe/internal/logging"
)

// Store is the dedup ledger: a durable mapping from work item keys to
// processing status. It is the single writer of ledger state; all access
// goes through its atomic operations.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	// mu serializes check-and-reserve so no two callers can both observe
	// "absent" before inserting. SQLite write serialization alone does not
	// make the read-then-insert atomic across connections.
	mu sync.Mutex

	// retried tracks keys whose failure retry budget is spent for this
	// process lifetime. A key failed in a prior run re-admits once; a key
	// failed in this run does not re-admit until the next process start.
	retried map[string]struct{}
}

// Open initializes or connects to the ledger database, applies migrations,
// and re-admits records left pending by a crashed prior run.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.StateDir, "ledger.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:      db,
		path:    dbPath,
		logger:  logging.NewComponentLogger(logger, "ledger"),
		retried: make(map[string]struct{}),
	}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.recoverInterrupted(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Path returns the ledger database location.
func (s *Store) Path() string {
	return s.path
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	// Checkpoint the WAL so the main database file is complete on exit.
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Warn("wal checkpoint on close failed", logging.Error(err))
	}
	return s.db.Close()
}

// recoverInterrupted deletes records left pending by a prior run so their
// keys are re-admitted instead of staying stuck.
func (s *Store) recoverInterrupted(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ledger_records WHERE status = ?`, StatusPending)
	if err != nil {
		return fmt.Errorf("recover interrupted records: %w", err)
	}
	if count, err := res.RowsAffected(); err == nil && count > 0 {
		s.logger.Info("re-admitting records interrupted by a prior run",
			logging.Int64("count", count))
	}
	return nil
}

// CheckAndReserve atomically admits the item for processing or reports why
// it cannot be admitted. No two concurrent callers receive Admitted for the
// same key. A returned error means the reservation could not be durably
// recorded and the item must not be dispatched.
func (s *Store) CheckAndReserve(ctx context.Context, item extract.Item) (Decision, error) {
	key := item.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return AlreadyPending, fmt.Errorf("begin reserve tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var status Status
	var attempts int
	row := tx.QueryRowContext(ctx, `SELECT status, attempts FROM ledger_records WHERE key = ?`, key)
	switch err := row.Scan(&status, &attempts); {
	case errors.Is(err, sql.ErrNoRows):
		now := time.Now().UTC().Format(time.RFC3339Nano)
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO ledger_records (key, source_id, media_locator, media_kind, status, attempts, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
			key, item.SourceID, item.Locator, string(item.Kind), StatusPending, now, now,
		); err != nil {
			return AlreadyPending, fmt.Errorf("insert reservation: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return AlreadyPending, fmt.Errorf("commit reservation: %w", err)
		}
		return Admitted, nil
	case err != nil:
		return AlreadyPending, fmt.Errorf("lookup record: %w", err)
	}

	switch status {
	case StatusDone:
		return AlreadyProcessed, nil
	case StatusPending:
		return AlreadyPending, nil
	case StatusFailed:
		if _, spent := s.retried[key]; spent {
			return AlreadyProcessed, nil
		}
		now := time.Now().UTC().Format(time.RFC3339Nano)
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE ledger_records SET status = ?, attempts = attempts + 1, updated_at = ? WHERE key = ?`,
			StatusPending, now, key,
		); err != nil {
			return AlreadyPending, fmt.Errorf("re-admit failed record: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return AlreadyPending, fmt.Errorf("commit re-admission: %w", err)
		}
		s.retried[key] = struct{}{}
		return Admitted, nil
	default:
		return AlreadyPending, fmt.Errorf("record %s has unknown status %q", key, status)
	}
}

// MarkDone transitions a reserved record to its terminal done state. Done is
// monotone: the key is never re-admitted afterwards.
func (s *Store) MarkDone(ctx context.Context, key string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE ledger_records SET status = ?, last_error = NULL, updated_at = ? WHERE key = ?`,
		StatusDone, now, key,
	)
	if err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	return nil
}

// MarkFailed transitions a reserved record to failed, recording the cause.
// The failure consumes this lifetime's retry budget for the key; a later
// process start may re-admit it once.
func (s *Store) MarkFailed(ctx context.Context, key string, cause error) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE ledger_records SET status = ?, last_error = ?, updated_at = ? WHERE key = ? AND status != ?`,
		StatusFailed, nullableString(message), now, key, StatusDone,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}

	s.mu.Lock()
	s.retried[key] = struct{}{}
	s.mu.Unlock()
	return nil
}

// Forget removes a record entirely so a later run re-admits the key fresh.
// Done records are refused to keep done monotone.
func (s *Store) Forget(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM ledger_records WHERE key = ? AND status != ?`,
		key, StatusDone,
	)
	if err != nil {
		return fmt.Errorf("forget record: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("forget record: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("no retryable record for key %s", key)
	}
	s.mu.Lock()
	delete(s.retried, key)
	s.mu.Unlock()
	return nil
}

// Get returns the record for key, or nil when absent.
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT key, source_id, media_locator, media_kind, status, attempts, last_error, created_at, updated_at
         FROM ledger_records WHERE key = ?`,
		key,
	)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// List returns records ordered by most recent update, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Record, error) {
	query := `SELECT key, source_id, media_locator, media_kind, status, attempts, last_error, created_at, updated_at
              FROM ledger_records`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := ""
		for i, status := range statuses {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
			args = append(args, string(status))
		}
		query += " WHERE status IN (" + placeholders + ")"
	}
	query += " ORDER BY updated_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Summarize aggregates record counts per status.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM ledger_records GROUP BY status`)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize records: %w", err)
	}
	defer rows.Close()

	var summary Summary
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Summary{}, fmt.Errorf("scan summary row: %w", err)
		}
		summary.Total += count
		switch status {
		case StatusPending:
			summary.Pending = count
		case StatusDone:
			summary.Done = count
		case StatusFailed:
			summary.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("iterate summary rows: %w", err)
	}
	return summary, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	var lastError sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(
		&record.Key,
		&record.SourceID,
		&record.Locator,
		&record.MediaKind,
		&record.Status,
		&record.Attempts,
		&lastError,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	record.LastError = lastError.String
	record.CreatedAt = parseTimestamp(createdAt)
	record.UpdatedAt = parseTimestamp(updatedAt)
	return &record, nil
}

func parseTimestamp(value string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
