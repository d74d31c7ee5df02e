package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/contextwizard/wizardd/internal/domain"
	"github.com/contextwizard/wizardd/internal/store"
)

// Store implements store.PendingStore using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite store at the given path.
// Use ":memory:" for an in-memory database (useful for testing).
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; funnel every caller through one
	// connection so concurrent Put/Delete serialize instead of returning
	// SQLITE_BUSY. This also makes ":memory:" behave as one database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}

	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return s, nil
}

// createSchema creates the table and index if they don't exist.
func (s *Store) createSchema() error {
	schema := `
	-- One row per annotation awaiting a human decision, keyed by the
	-- short code embedded in the posted comment.
	CREATE TABLE IF NOT EXISTS pending_annotations (
		code TEXT PRIMARY KEY,
		comment_id INTEGER NOT NULL,
		comment_kind TEXT NOT NULL CHECK(comment_kind IN ('inline', 'thread')),
		owner TEXT NOT NULL,
		repo TEXT NOT NULL,
		pr_number INTEGER NOT NULL,
		installation_id INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pending_expires_at ON pending_annotations(expires_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Put inserts a pending annotation keyed by its code.
func (s *Store) Put(ctx context.Context, rec domain.PendingAnnotation) error {
	now := time.Now().Unix()
	if rec.ExpiresAt < now {
		return fmt.Errorf("expires_at %d is in the past: %w", rec.ExpiresAt, store.ErrInvalidExpiry)
	}
	if rec.ExpiresAt > now+int64(store.MaxTTL.Seconds()) {
		return fmt.Errorf("expires_at %d exceeds the maximum window: %w", rec.ExpiresAt, store.ErrInvalidExpiry)
	}

	query := `
		INSERT INTO pending_annotations (code, comment_id, comment_kind, owner, repo, pr_number, installation_id, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.Code,
		rec.Comment.ID,
		string(rec.Comment.Kind),
		rec.Repo.Owner,
		rec.Repo.Name,
		rec.PullNumber,
		rec.InstallationID,
		rec.ExpiresAt,
	)

	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return store.ErrDuplicateCode
		}
		return fmt.Errorf("failed to insert pending annotation: %w", err)
	}

	return nil
}

// Get retrieves a pending annotation by code.
func (s *Store) Get(ctx context.Context, code string) (domain.PendingAnnotation, error) {
	query := `
		SELECT code, comment_id, comment_kind, owner, repo, pr_number, installation_id, expires_at
		FROM pending_annotations
		WHERE code = ?
	`

	rec, err := scanAnnotation(s.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PendingAnnotation{}, store.ErrNotFound
		}
		return domain.PendingAnnotation{}, fmt.Errorf("failed to get pending annotation: %w", err)
	}

	return rec, nil
}

// Delete removes the record for a code. The single DELETE statement is the
// atomicity point of the whole reconciliation engine: of any concurrent
// callers for the same code, exactly one sees a row affected.
func (s *Store) Delete(ctx context.Context, code string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM pending_annotations WHERE code = ?`, code)
	if err != nil {
		return fmt.Errorf("failed to delete pending annotation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return store.ErrNotFound
	}

	return nil
}

// ListExpired returns all records whose expiry has passed as of now.
func (s *Store) ListExpired(ctx context.Context, now time.Time) ([]domain.PendingAnnotation, error) {
	query := `
		SELECT code, comment_id, comment_kind, owner, repo, pr_number, installation_id, expires_at
		FROM pending_annotations
		WHERE expires_at <= ?
		ORDER BY expires_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list expired annotations: %w", err)
	}
	defer rows.Close()

	var expired []domain.PendingAnnotation
	for rows.Next() {
		rec, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending annotation: %w", err)
		}
		expired = append(expired, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending annotations: %w", err)
	}

	return expired, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnnotation(row rowScanner) (domain.PendingAnnotation, error) {
	var rec domain.PendingAnnotation
	var kind string

	if err := row.Scan(
		&rec.Code,
		&rec.Comment.ID,
		&kind,
		&rec.Repo.Owner,
		&rec.Repo.Name,
		&rec.PullNumber,
		&rec.InstallationID,
		&rec.ExpiresAt,
	); err != nil {
		return domain.PendingAnnotation{}, err
	}

	rec.Comment.Kind = domain.CommentKind(kind)
	return rec, nil
}
