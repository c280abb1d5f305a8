package rankings

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// PostgresRepository implements Repository on PostgreSQL. Each ranking row
// stores one (user, position, name) triple; a user's ranking is replaced
// atomically on save (see migrations for the user_rankings table).
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a PostgresRepository over an open handle.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// SaveRanking replaces the user's stored ranking inside a transaction.
func (r *PostgresRepository) SaveRanking(ctx context.Context, userID string, order []string) error {
	if len(order) == 0 {
		return ErrEmptyRanking
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// No-op after a successful commit.
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			r.logger.Warn("failed to rollback ranking save", "error", rbErr)
		}
	}()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM user_rankings WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear previous ranking: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO user_rankings (user_id, position, character_name, updated_at)
		VALUES ($1, $2, $3, NOW())
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare ranking insert: %w", err)
	}
	defer stmt.Close()

	for pos, name := range order {
		if _, err := stmt.ExecContext(ctx, userID, pos, name); err != nil {
			return fmt.Errorf("failed to insert ranking row %d: %w", pos, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ranking save: %w", err)
	}

	r.logger.Debug("ranking saved",
		slog.String("user_id", userID),
		slog.Int("entries", len(order)))
	return nil
}

// GetRanking returns the user's stored ranking, best first.
func (r *PostgresRepository) GetRanking(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT character_name FROM user_rankings
		WHERE user_id = $1
		ORDER BY position
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ranking: %w", err)
	}
	defer rows.Close()

	var order []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan ranking row: %w", err)
		}
		order = append(order, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ranking rows: %w", err)
	}
	if len(order) == 0 {
		return nil, ErrRankingNotFound
	}
	return order, nil
}

// UsersWithRankings lists the user IDs with a stored ranking, sorted.
func (r *PostgresRepository) UsersWithRankings(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM user_rankings ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ranking users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan ranking user: %w", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ranking users: %w", err)
	}
	return users, nil
}

// GlobalTop counts appearances in users' top-n positions in SQL.
func (r *PostgresRepository) GlobalTop(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT character_name, COUNT(*) AS appearances
		FROM user_rankings
		WHERE position < $1
		GROUP BY character_name
		ORDER BY appearances DESC, character_name
		LIMIT $1
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query global top: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("failed to scan global top row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate global top rows: %w", err)
	}
	return names, nil
}
