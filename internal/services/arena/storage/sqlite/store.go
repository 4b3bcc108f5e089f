// Package sqlite implements arena persistence over a single SQLite
// file: durable accounts and lifetime match statistics.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/gambit.space/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/gambit.space/internal/services/arena/storage"
	"github.com/louisbranch/gambit.space/internal/services/arena/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// ratingExchange is the fixed number of rating points moved from the
// loser to the winner of a decisive match.
const ratingExchange = 10

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements storage.UserStore and storage.ResultSink over SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the arena SQLite store and applies bundled migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateUser persists a new account. A username collision is reported
// as storage.ErrUsernameTaken.
func (s *Store) CreateUser(ctx context.Context, user storage.User) error {
	if strings.TrimSpace(user.ID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(user.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.Rating == 0 {
		user.Rating = 1200
	}
	if user.Level == "" {
		user.Level = "beginner"
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (id, username, password_hash, wins, losses, draws, rating, level, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.Wins,
		user.Losses,
		user.Draws,
		user.Rating,
		user.Level,
		toMillis(user.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UserByUsername looks an account up by its unique username.
func (s *Store) UserByUsername(ctx context.Context, username string) (storage.User, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, username, password_hash, wins, losses, draws, rating, level, created_at
FROM users WHERE username = ?
`, username)
	return scanUser(row)
}

// UserByID looks an account up by id.
func (s *Store) UserByID(ctx context.Context, id string) (storage.User, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, username, password_hash, wins, losses, draws, rating, level, created_at
FROM users WHERE id = ?
`, id)
	return scanUser(row)
}

// SetLevel updates the self-reported skill level of an account.
func (s *Store) SetLevel(ctx context.Context, id, level string) error {
	result, err := s.sqlDB.ExecContext(ctx, `UPDATE users SET level = ? WHERE id = ?`, level, id)
	if err != nil {
		return fmt.Errorf("update level: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update level: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// RecordResult updates lifetime statistics for a finished match. Both
// updates happen in one transaction. Unknown ids are skipped so guest
// participants do not fail bookkeeping for registered ones.
func (s *Store) RecordResult(ctx context.Context, winnerID, loserID string, draw bool) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin result transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if draw {
		for _, id := range []string{winnerID, loserID} {
			if _, err := tx.ExecContext(ctx, `UPDATE users SET draws = draws + 1 WHERE id = ?`, id); err != nil {
				return fmt.Errorf("record draw: %w", err)
			}
		}
	} else {
		if _, err := tx.ExecContext(ctx, `
UPDATE users SET wins = wins + 1, rating = rating + ? WHERE id = ?
`, ratingExchange, winnerID); err != nil {
			return fmt.Errorf("record win: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE users SET losses = losses + 1, rating = MAX(rating - ?, 100) WHERE id = ?
`, ratingExchange, loserID); err != nil {
			return fmt.Errorf("record loss: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit result transaction: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (storage.User, error) {
	var user storage.User
	var createdAt int64
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Wins,
		&user.Losses,
		&user.Draws,
		&user.Rating,
		&user.Level,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.User{}, storage.ErrNotFound
		}
		return storage.User{}, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = fromMillis(createdAt)
	return user, nil
}

// isUniqueConstraintError detects SQLite unique constraint violations.
func isUniqueConstraintError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ResultSink = (*Store)(nil)
