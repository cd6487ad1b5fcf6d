package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"story-engine/internal/interfaces"
	"story-engine/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	playSessionFields = `id, story_id, user_id, current_node_id, game_state, is_completed, started_at, updated_at, completed_at, version`

	insertPlaySessionQuery = `
        INSERT INTO play_sessions (` + playSessionFields + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
    `
	getPlaySessionByIDQuery = `
        SELECT ` + playSessionFields + `
        FROM play_sessions
        WHERE id = $1
    `
	// Optimistic write: succeeds only if nobody bumped the version since the read.
	updatePlaySessionQuery = `
        UPDATE play_sessions SET
            current_node_id = $3,
            game_state = $4,
            is_completed = $5,
            updated_at = $6,
            completed_at = $7,
            version = version + 1
        WHERE id = $1 AND version = $2
    `
	playSessionExistsQuery = `SELECT EXISTS (SELECT 1 FROM play_sessions WHERE id = $1)`

	savedGameFields = `id, session_id, story_id, user_id, name, game_state, current_node_id, created_at`

	insertSavedGameQuery = `
        INSERT INTO saved_games (` + savedGameFields + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	getSavedGameByIDQuery = `
        SELECT ` + savedGameFields + `
        FROM saved_games
        WHERE id = $1
    `
	listSavedGamesBySessionQuery = `
        SELECT ` + savedGameFields + `
        FROM saved_games
        WHERE session_id = $1
        ORDER BY created_at DESC, id
    `
	deleteSavedGameQuery = `DELETE FROM saved_games WHERE id = $1`
)

var (
	_ interfaces.SessionRepository   = (*pgSessionRepository)(nil)
	_ interfaces.SavedGameRepository = (*pgSavedGameRepository)(nil)
)

// sessionRow mirrors play_sessions; game_state is decoded separately.
type sessionRow struct {
	ID            uuid.UUID  `db:"id"`
	StoryID       string     `db:"story_id"`
	UserID        string     `db:"user_id"`
	CurrentNodeID string     `db:"current_node_id"`
	GameState     []byte     `db:"game_state"`
	IsCompleted   bool       `db:"is_completed"`
	StartedAt     time.Time  `db:"started_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	CompletedAt   *time.Time `db:"completed_at"`
	Version       int64      `db:"version"`
}

func (row *sessionRow) toModel() (*models.PlaySession, error) {
	session := &models.PlaySession{
		ID:            row.ID,
		StoryID:       row.StoryID,
		UserID:        row.UserID,
		CurrentNodeID: row.CurrentNodeID,
		IsCompleted:   row.IsCompleted,
		StartedAt:     row.StartedAt,
		UpdatedAt:     row.UpdatedAt,
		CompletedAt:   row.CompletedAt,
		Version:       row.Version,
	}
	if err := session.GameState.Scan(row.GameState); err != nil {
		return nil, fmt.Errorf("session %s: %w", row.ID, err)
	}
	return session, nil
}

type savedGameRow struct {
	ID            uuid.UUID `db:"id"`
	SessionID     uuid.UUID `db:"session_id"`
	StoryID       string    `db:"story_id"`
	UserID        string    `db:"user_id"`
	Name          string    `db:"name"`
	GameState     []byte    `db:"game_state"`
	CurrentNodeID string    `db:"current_node_id"`
	CreatedAt     time.Time `db:"created_at"`
}

func (row *savedGameRow) toModel() (*models.SavedGame, error) {
	save := &models.SavedGame{
		ID:            row.ID,
		SessionID:     row.SessionID,
		StoryID:       row.StoryID,
		UserID:        row.UserID,
		Name:          row.Name,
		CurrentNodeID: row.CurrentNodeID,
		CreatedAt:     row.CreatedAt,
	}
	if err := save.GameState.Scan(row.GameState); err != nil {
		return nil, fmt.Errorf("saved game %s: %w", row.ID, err)
	}
	return save, nil
}

func encodeState(state models.PlayerState) (string, error) {
	data, err := json.Marshal(state.Clone())
	if err != nil {
		return "", fmt.Errorf("encode game state: %w", err)
	}
	return string(data), nil
}

type pgSessionRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgSessionRepository creates a Postgres-backed session repository.
func NewPgSessionRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.SessionRepository {
	return &pgSessionRepository{
		db:     db,
		logger: logger.Named("PgSessionRepo"),
	}
}

func (r *pgSessionRepository) Create(ctx context.Context, session *models.PlaySession) error {
	log := r.logger.With(zap.String("sessionID", session.ID.String()))

	state, err := encodeState(session.GameState)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, insertPlaySessionQuery,
		session.ID,
		session.StoryID,
		session.UserID,
		session.CurrentNodeID,
		state,
		session.IsCompleted,
		session.StartedAt,
		session.UpdatedAt,
		session.CompletedAt,
	); err != nil {
		log.Error("Failed to insert play session", zap.Error(err))
		return fmt.Errorf("failed to insert play session %s: %w", session.ID, err)
	}
	session.Version = 1
	log.Debug("Play session inserted")
	return nil
}

func (r *pgSessionRepository) GetByID(ctx context.Context, sessionID uuid.UUID) (*models.PlaySession, error) {
	var row sessionRow
	if err := pgxscan.Get(ctx, r.db, &row, getPlaySessionByIDQuery, sessionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrSessionNotFound
		}
		r.logger.Error("Failed to get play session", zap.String("sessionID", sessionID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get play session %s: %w", sessionID, err)
	}
	return row.toModel()
}

func (r *pgSessionRepository) Update(ctx context.Context, session *models.PlaySession) error {
	log := r.logger.With(zap.String("sessionID", session.ID.String()), zap.Int64("version", session.Version))

	state, err := encodeState(session.GameState)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, updatePlaySessionQuery,
		session.ID,
		session.Version,
		session.CurrentNodeID,
		state,
		session.IsCompleted,
		session.UpdatedAt,
		session.CompletedAt,
	)
	if err != nil {
		log.Error("Failed to update play session", zap.Error(err))
		return fmt.Errorf("failed to update play session %s: %w", session.ID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, playSessionExistsQuery, session.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check play session %s: %w", session.ID, err)
		}
		if !exists {
			return models.ErrSessionNotFound
		}
		log.Warn("Play session version conflict")
		return models.ErrConcurrentUpdate
	}
	session.Version++
	return nil
}

type pgSavedGameRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgSavedGameRepository creates a Postgres-backed saved-game repository.
func NewPgSavedGameRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.SavedGameRepository {
	return &pgSavedGameRepository{
		db:     db,
		logger: logger.Named("PgSavedGameRepo"),
	}
}

func (r *pgSavedGameRepository) Create(ctx context.Context, save *models.SavedGame) error {
	state, err := encodeState(save.GameState)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, insertSavedGameQuery,
		save.ID,
		save.SessionID,
		save.StoryID,
		save.UserID,
		save.Name,
		state,
		save.CurrentNodeID,
		save.CreatedAt,
	); err != nil {
		r.logger.Error("Failed to insert saved game", zap.String("saveID", save.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to insert saved game %s: %w", save.ID, err)
	}
	return nil
}

func (r *pgSavedGameRepository) GetByID(ctx context.Context, saveID uuid.UUID) (*models.SavedGame, error) {
	var row savedGameRow
	if err := pgxscan.Get(ctx, r.db, &row, getSavedGameByIDQuery, saveID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrSavedGameNotFound
		}
		r.logger.Error("Failed to get saved game", zap.String("saveID", saveID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get saved game %s: %w", saveID, err)
	}
	return row.toModel()
}

func (r *pgSavedGameRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.SavedGame, error) {
	var rows []*savedGameRow
	if err := pgxscan.Select(ctx, r.db, &rows, listSavedGamesBySessionQuery, sessionID); err != nil {
		r.logger.Error("Failed to list saved games", zap.String("sessionID", sessionID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list saved games of session %s: %w", sessionID, err)
	}
	saves := make([]*models.SavedGame, 0, len(rows))
	for _, row := range rows {
		save, err := row.toModel()
		if err != nil {
			return nil, err
		}
		saves = append(saves, save)
	}
	return saves, nil
}

func (r *pgSavedGameRepository) Delete(ctx context.Context, saveID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, deleteSavedGameQuery, saveID)
	if err != nil {
		r.logger.Error("Failed to delete saved game", zap.String("saveID", saveID.String()), zap.Error(err))
		return fmt.Errorf("failed to delete saved game %s: %w", saveID, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrSavedGameNotFound
	}
	return nil
}
