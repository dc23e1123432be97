package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"nsac/internal/config"
)

// Store manages session persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the sessions database and ensures the
// schema exists.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "sessions.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the on-disk location of the database file.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *Store) applySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	var version sql.NullInt64
	row := s.db.QueryRowContext(ctx, `SELECT version FROM schema_info LIMIT 1`)
	if err := row.Scan(&version); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read schema version: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_info (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}
	if version.Valid && version.Int64 != schemaVersion {
		return fmt.Errorf("sessions database schema version %d is incompatible with %d; clear %s to continue", version.Int64, schemaVersion, s.path)
	}
	return nil
}

// Begin inserts a new session for an environment root in the uninitialized
// state and returns it.
func (s *Store) Begin(ctx context.Context, root, manifestPath string) (*Session, error) {
	if root == "" {
		return nil, errors.New("environment root is required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO bootstrap_sessions (
            session_id, root, manifest_path, status, package_count, created_at, updated_at
        ) VALUES (?, ?, ?, ?, 0, ?, ?)`,
		uuid.NewString(),
		root,
		nullableString(manifestPath),
		StatusUninitialized,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a session by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM bootstrap_sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// FindByRoot returns the most recent session for an environment root.
func (s *Store) FindByRoot(ctx context.Context, root string) (*Session, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM bootstrap_sessions WHERE root = ? ORDER BY id DESC LIMIT 1`,
		root,
	)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by root: %w", err)
	}
	return session, nil
}

// Advance moves a session to the next lifecycle status. Transitions that do
// not follow the one-directional order are rejected. A successful advance
// clears any recorded error.
func (s *Store) Advance(ctx context.Context, id int64, to Status) (*Session, error) {
	session, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("session %d not found", id)
	}
	if !CanAdvance(session.Status, to) {
		return nil, fmt.Errorf("invalid transition %s -> %s for session %d", session.Status, to, id)
	}

	_, err = s.db.ExecContext(
		ctx,
		`UPDATE bootstrap_sessions
         SET status = ?, error_message = NULL, updated_at = ?
         WHERE id = ?`,
		to,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("advance session: %w", err)
	}
	return s.GetByID(ctx, id)
}

// SetPackageCount records how many packages the install step declared.
func (s *Store) SetPackageCount(ctx context.Context, id int64, count int) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE bootstrap_sessions SET package_count = ?, updated_at = ? WHERE id = ?`,
		count,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set package count: %w", err)
	}
	return nil
}

// SetManifestPath records which manifest an install step consumed.
func (s *Store) SetManifestPath(ctx context.Context, id int64, path string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE bootstrap_sessions SET manifest_path = ?, updated_at = ? WHERE id = ?`,
		nullableString(path),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set manifest path: %w", err)
	}
	return nil
}

// RecordFailure stores an error message on the session without changing its
// status: a failed operation leaves the lifecycle where it was.
func (s *Store) RecordFailure(ctx context.Context, id int64, message string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE bootstrap_sessions SET error_message = ?, updated_at = ? WHERE id = ?`,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// List returns sessions filtered by status set (or all sessions when no
// status is provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Session, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + sessionColumns + ` FROM bootstrap_sessions`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Stats aggregates session counts per lifecycle state.
func (s *Store) Stats(ctx context.Context) (StatsSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, error_message IS NOT NULL, COUNT(1) FROM bootstrap_sessions GROUP BY status, error_message IS NOT NULL`)
	if err != nil {
		return StatsSummary{}, fmt.Errorf("session stats: %w", err)
	}
	defer rows.Close()

	summary := StatsSummary{}
	for rows.Next() {
		var (
			status   Status
			hasError bool
			count    int
		)
		if err := rows.Scan(&status, &hasError, &count); err != nil {
			return StatsSummary{}, err
		}
		summary.Total += count
		if hasError {
			summary.WithErrors += count
		}
		switch status {
		case StatusUninitialized:
			summary.Uninitialized += count
		case StatusCreated:
			summary.Created += count
		case StatusActivated:
			summary.Activated += count
		case StatusDepsInstalled:
			summary.Installed += count
		}
	}
	return summary, rows.Err()
}

// Remove deletes a session by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bootstrap_sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// RemoveByRoot deletes every session recorded for an environment root.
func (s *Store) RemoveByRoot(ctx context.Context, root string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bootstrap_sessions WHERE root = ?`, root)
	if err != nil {
		return 0, fmt.Errorf("delete sessions for root: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all sessions.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bootstrap_sessions`)
	if err != nil {
		return 0, fmt.Errorf("clear sessions: %w", err)
	}
	return res.RowsAffected()
}

const sessionColumns = "id, session_id, root, manifest_path, status, package_count, error_message, created_at, updated_at"

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id           int64
		sessionID    string
		root         string
		manifestPath sql.NullString
		statusStr    string
		packageCount int
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&sessionID,
		&root,
		&manifestPath,
		&statusStr,
		&packageCount,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	session := &Session{
		ID:           id,
		SessionID:    sessionID,
		Root:         root,
		ManifestPath: manifestPath.String,
		Status:       Status(statusStr),
		PackageCount: packageCount,
		ErrorMessage: errorMessage.String,
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		session.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		session.UpdatedAt = updated
	}
	return session, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
