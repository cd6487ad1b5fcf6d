package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"story-engine/internal/interfaces"
	"story-engine/internal/models"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.uber.org/zap"
)

// sqliteSchema holds sessions and saves for single-node play. Timestamps are unix nanoseconds.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS play_sessions (
    id TEXT PRIMARY KEY,
    story_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    current_node_id TEXT NOT NULL,
    game_state TEXT NOT NULL,
    is_completed INTEGER NOT NULL DEFAULT 0,
    started_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    completed_at INTEGER,
    version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_play_sessions_user_story ON play_sessions(user_id, story_id);

CREATE TABLE IF NOT EXISTS saved_games (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES play_sessions(id) ON DELETE CASCADE,
    story_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    game_state TEXT NOT NULL,
    current_node_id TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_saved_games_session ON saved_games(session_id, created_at);
`

const (
	sqliteSessionFields = `id, story_id, user_id, current_node_id, game_state, is_completed, started_at, updated_at, completed_at, version`
	sqliteSaveFields    = `id, session_id, story_id, user_id, name, game_state, current_node_id, created_at`
)

// SQLiteStore keeps play sessions and saved games in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var (
	_ interfaces.SessionRepository   = (*sqliteSessionRepository)(nil)
	_ interfaces.SavedGameRepository = (*sqliteSavedGameRepository)(nil)
)

// NewSQLiteStore opens (or creates) the database at dsn and ensures the schema exists.
// Use ":memory:" for a throwaway in-memory database.
func NewSQLiteStore(ctx context.Context, dsn string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection: :memory: databases are per connection, and SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}

	logger.Info("SQLite session store ready", zap.String("dsn", dsn))
	return &SQLiteStore{db: db, logger: logger.Named("SQLiteStore")}, nil
}

// Sessions returns the session repository backed by this store.
func (s *SQLiteStore) Sessions() interfaces.SessionRepository {
	return &sqliteSessionRepository{store: s}
}

// SavedGames returns the saved-game repository backed by this store.
func (s *SQLiteStore) SavedGames() interfaces.SavedGameRepository {
	return &sqliteSavedGameRepository{store: s}
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func toUnixNano(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

type rowScanner interface {
	Scan(dest ...any) error
}

type sqliteSessionRepository struct {
	store *SQLiteStore
}

func (r *sqliteSessionRepository) Create(ctx context.Context, session *models.PlaySession) error {
	state, err := encodeState(session.GameState)
	if err != nil {
		return err
	}
	var completedAt sql.NullInt64
	if session.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: toUnixNano(*session.CompletedAt), Valid: true}
	}
	_, err = r.store.db.ExecContext(ctx,
		`INSERT INTO play_sessions (`+sqliteSessionFields+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		session.ID.String(),
		session.StoryID,
		session.UserID,
		session.CurrentNodeID,
		state,
		session.IsCompleted,
		toUnixNano(session.StartedAt),
		toUnixNano(session.UpdatedAt),
		completedAt,
	)
	if err != nil {
		r.store.logger.Error("Failed to insert play session", zap.String("sessionID", session.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to insert play session %s: %w", session.ID, err)
	}
	session.Version = 1
	return nil
}

func scanSQLiteSession(row rowScanner) (*models.PlaySession, error) {
	var (
		id, state            string
		isCompleted          bool
		startedAt, updatedAt int64
		completedAt          sql.NullInt64
		session              models.PlaySession
	)
	if err := row.Scan(&id, &session.StoryID, &session.UserID, &session.CurrentNodeID, &state,
		&isCompleted, &startedAt, &updatedAt, &completedAt, &session.Version); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("play session id %q: %w", id, err)
	}
	session.ID = parsed
	session.IsCompleted = isCompleted
	session.StartedAt = fromUnixNano(startedAt)
	session.UpdatedAt = fromUnixNano(updatedAt)
	if completedAt.Valid {
		t := fromUnixNano(completedAt.Int64)
		session.CompletedAt = &t
	}
	if err := session.GameState.Scan(state); err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	return &session, nil
}

func (r *sqliteSessionRepository) GetByID(ctx context.Context, sessionID uuid.UUID) (*models.PlaySession, error) {
	row := r.store.db.QueryRowContext(ctx, `SELECT `+sqliteSessionFields+` FROM play_sessions WHERE id = ?`, sessionID.String())
	session, err := scanSQLiteSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get play session %s: %w", sessionID, err)
	}
	return session, nil
}

func (r *sqliteSessionRepository) Update(ctx context.Context, session *models.PlaySession) error {
	state, err := encodeState(session.GameState)
	if err != nil {
		return err
	}
	var completedAt sql.NullInt64
	if session.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: toUnixNano(*session.CompletedAt), Valid: true}
	}
	res, err := r.store.db.ExecContext(ctx, `
		UPDATE play_sessions SET
			current_node_id = ?,
			game_state = ?,
			is_completed = ?,
			updated_at = ?,
			completed_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?`,
		session.CurrentNodeID,
		state,
		session.IsCompleted,
		toUnixNano(session.UpdatedAt),
		completedAt,
		session.ID.String(),
		session.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update play session %s: %w", session.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update play session %s: %w", session.ID, err)
	}
	if affected == 0 {
		var exists bool
		if err := r.store.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM play_sessions WHERE id = ?)`, session.ID.String()).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check play session %s: %w", session.ID, err)
		}
		if !exists {
			return models.ErrSessionNotFound
		}
		return models.ErrConcurrentUpdate
	}
	session.Version++
	return nil
}

type sqliteSavedGameRepository struct {
	store *SQLiteStore
}

func (r *sqliteSavedGameRepository) Create(ctx context.Context, save *models.SavedGame) error {
	state, err := encodeState(save.GameState)
	if err != nil {
		return err
	}
	_, err = r.store.db.ExecContext(ctx,
		`INSERT INTO saved_games (`+sqliteSaveFields+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		save.ID.String(),
		save.SessionID.String(),
		save.StoryID,
		save.UserID,
		save.Name,
		state,
		save.CurrentNodeID,
		toUnixNano(save.CreatedAt),
	)
	if err != nil {
		r.store.logger.Error("Failed to insert saved game", zap.String("saveID", save.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to insert saved game %s: %w", save.ID, err)
	}
	return nil
}

func scanSQLiteSave(row rowScanner) (*models.SavedGame, error) {
	var (
		id, sessionID, state string
		createdAt            int64
		save                 models.SavedGame
	)
	if err := row.Scan(&id, &sessionID, &save.StoryID, &save.UserID, &save.Name, &state, &save.CurrentNodeID, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if save.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("saved game id %q: %w", id, err)
	}
	if save.SessionID, err = uuid.Parse(sessionID); err != nil {
		return nil, fmt.Errorf("saved game %s session id %q: %w", id, sessionID, err)
	}
	save.CreatedAt = fromUnixNano(createdAt)
	if err := save.GameState.Scan(state); err != nil {
		return nil, fmt.Errorf("saved game %s: %w", id, err)
	}
	return &save, nil
}

func (r *sqliteSavedGameRepository) GetByID(ctx context.Context, saveID uuid.UUID) (*models.SavedGame, error) {
	row := r.store.db.QueryRowContext(ctx, `SELECT `+sqliteSaveFields+` FROM saved_games WHERE id = ?`, saveID.String())
	save, err := scanSQLiteSave(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrSavedGameNotFound
		}
		return nil, fmt.Errorf("failed to get saved game %s: %w", saveID, err)
	}
	return save, nil
}

func (r *sqliteSavedGameRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.SavedGame, error) {
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT `+sqliteSaveFields+` FROM saved_games WHERE session_id = ? ORDER BY created_at DESC, rowid DESC`,
		sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list saved games of session %s: %w", sessionID, err)
	}
	defer rows.Close()

	saves := []*models.SavedGame{}
	for rows.Next() {
		save, err := scanSQLiteSave(rows)
		if err != nil {
			return nil, err
		}
		saves = append(saves, save)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list saved games of session %s: %w", sessionID, err)
	}
	return saves, nil
}

func (r *sqliteSavedGameRepository) Delete(ctx context.Context, saveID uuid.UUID) error {
	res, err := r.store.db.ExecContext(ctx, `DELETE FROM saved_games WHERE id = ?`, saveID.String())
	if err != nil {
		return fmt.Errorf("failed to delete saved game %s: %w", saveID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete saved game %s: %w", saveID, err)
	}
	if affected == 0 {
		return models.ErrSavedGameNotFound
	}
	return nil
}
