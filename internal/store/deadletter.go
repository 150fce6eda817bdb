package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/nerrad567/skylink-relay/internal/infrastructure/database"
)

// defaultListLimit bounds List queries when the caller passes limit <= 0.
const defaultListLimit = 100

// DeadLetter is a satellite payload that exhausted its delivery attempts.
//
// The record keeps everything an operator needs to decide whether to
// re-submit the payload manually: the raw bytes, how many attempts were
// made, and the error that ended the last one.
type DeadLetter struct {
	// ID is the delivery's correlation ID, assigned when the payload was
	// first queued for transmission.
	ID string

	// Payload is the raw message body that failed to send.
	Payload []byte

	// Attempts is the number of delivery attempts made before giving up.
	Attempts int

	// LastError describes the failure of the final attempt.
	LastError string

	// CreatedAt is when the payload was dead-lettered.
	CreatedAt time.Time
}

// DeadLetterStore persists failed satellite deliveries in SQLite.
//
// Thread Safety: Safe for concurrent use; the underlying connection pool
// serialises writers.
type DeadLetterStore struct {
	db *database.DB
}

// NewDeadLetterStore creates the store and its schema if missing.
//
// Parameters:
//   - ctx: Context for the schema statement
//   - db: Open database connection
//
// Returns:
//   - *DeadLetterStore: Ready-to-use store
//   - error: If schema creation fails
func NewDeadLetterStore(ctx context.Context, db *database.DB) (*DeadLetterStore, error) {
	const schema = `
		CREATE TABLE IF NOT EXISTS iridium_dead_letters (
			id         TEXT PRIMARY KEY,
			payload    BLOB NOT NULL,
			attempts   INTEGER NOT NULL,
			last_error TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_dead_letters_created_at
			ON iridium_dead_letters(created_at);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating dead letter schema: %w", err)
	}
	return &DeadLetterStore{db: db}, nil
}

// Add records a failed delivery.
//
// Returns:
//   - error: ErrDuplicateID if the correlation ID is already recorded,
//     or the underlying database error
func (s *DeadLetterStore) Add(ctx context.Context, letter DeadLetter) error {
	if letter.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidDeadLetter)
	}
	if letter.CreatedAt.IsZero() {
		letter.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO iridium_dead_letters (id, payload, attempts, last_error, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		letter.ID, letter.Payload, letter.Attempts, letter.LastError, letter.CreatedAt,
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %s", ErrDuplicateID, letter.ID)
	}
	if err != nil {
		return fmt.Errorf("inserting dead letter %s: %w", letter.ID, err)
	}
	return nil
}

// Get retrieves a single dead letter by correlation ID.
//
// Returns:
//   - DeadLetter: The record
//   - error: ErrNotFound if no record has that ID
func (s *DeadLetterStore) Get(ctx context.Context, id string) (DeadLetter, error) {
	var letter DeadLetter
	err := s.db.QueryRowContext(ctx,
		`SELECT id, payload, attempts, last_error, created_at
		 FROM iridium_dead_letters WHERE id = ?`, id,
	).Scan(&letter.ID, &letter.Payload, &letter.Attempts, &letter.LastError, &letter.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return DeadLetter{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return DeadLetter{}, fmt.Errorf("querying dead letter %s: %w", id, err)
	}
	return letter, nil
}

// List returns the most recent dead letters, newest first.
// A limit <= 0 uses the default of 100.
func (s *DeadLetterStore) List(ctx context.Context, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload, attempts, last_error, created_at
		 FROM iridium_dead_letters ORDER BY created_at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing dead letters: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var letters []DeadLetter
	for rows.Next() {
		var letter DeadLetter
		if err := rows.Scan(&letter.ID, &letter.Payload, &letter.Attempts,
			&letter.LastError, &letter.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning dead letter: %w", err)
		}
		letters = append(letters, letter)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dead letters: %w", err)
	}
	return letters, nil
}

// Delete removes a dead letter, typically after an operator re-submitted
// the payload out of band.
//
// Returns:
//   - error: ErrNotFound if no record has that ID
func (s *DeadLetterStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM iridium_dead_letters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting dead letter %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Count returns the number of stored dead letters.
func (s *DeadLetterStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM iridium_dead_letters`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting dead letters: %w", err)
	}
	return count, nil
}
