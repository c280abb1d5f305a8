package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/onnwee/charrank/internal/engine"
)

// PostgresStore implements SnapshotStore on PostgreSQL. Snapshots are stored
// as CBOR blobs in the user_sessions table (see migrations).
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a PostgresStore over an open database handle.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// Save upserts the snapshot for a user inside a transaction.
func (s *PostgresStore) Save(ctx context.Context, userID string, snap *engine.Snapshot) error {
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// No-op after a successful commit.
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.Warn("failed to rollback snapshot save", "error", rbErr)
		}
	}()

	query := `
		INSERT INTO user_sessions (user_id, snapshot, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = NOW()
	`
	if _, err := tx.ExecContext(ctx, query, userID, data); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot save: %w", err)
	}

	s.logger.Debug("session snapshot saved",
		slog.String("user_id", userID),
		slog.Int("bytes", len(data)))
	return nil
}

// Load retrieves a user's snapshot.
func (s *PostgresStore) Load(ctx context.Context, userID string) (*engine.Snapshot, error) {
	var data []byte
	query := `SELECT snapshot FROM user_sessions WHERE user_id = $1`
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return DecodeSnapshot(data)
}

// Delete removes a user's snapshot.
func (s *PostgresStore) Delete(ctx context.Context, userID string) error {
	query := `DELETE FROM user_sessions WHERE user_id = $1`
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// Users lists the user IDs with a saved snapshot, sorted.
func (s *PostgresStore) Users(ctx context.Context) ([]string, error) {
	query := `SELECT user_id FROM user_sessions ORDER BY user_id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list session users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session user: %w", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session users: %w", err)
	}
	return users, nil
}

// DeleteOlderThan removes snapshots not updated in the given number of hours.
// Used by the cleanup command to expire stale sessions.
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, hours int) (int64, error) {
	query := `DELETE FROM user_sessions WHERE updated_at < NOW() - ($1 * INTERVAL '1 hour')`
	res, err := s.db.ExecContext(ctx, query, hours)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted snapshots: %w", err)
	}
	if n > 0 {
		s.logger.Info("stale session snapshots removed", "count", n, "max_age_hours", hours)
	}
	return n, nil
}
