package database_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"story-engine/internal/database"
	"story-engine/internal/interfaces"
	"story-engine/internal/interfaces/mocks"
	"story-engine/internal/models"
	"story-engine/pkg/migration"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// StoreIntegrationSuite runs the Postgres and Redis backed stores against real containers.
type StoreIntegrationSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	rdContainer *tcredis.RedisContainer
	pool        *pgxpool.Pool
	redisClient *redis.Client
	logger      *zap.Logger
}

func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	suite.Run(t, new(StoreIntegrationSuite))
}

func (s *StoreIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = zap.NewNop()

	var err error
	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("story_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(2*time.Minute),
		),
	)
	require.NoError(s.T(), err)
	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	s.pool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err)

	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: database.MigrationsPath,
		MigrationsFS:   database.MigrationsFS,
	}, s.pool, s.logger)
	require.NoError(s.T(), migrator.Up())
	version, dirty, err := migrator.Version()
	require.NoError(s.T(), err)
	require.False(s.T(), dirty)
	require.Equal(s.T(), uint(2), version)

	s.rdContainer, err = tcredis.Run(s.ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(s.T(), err)
	host, err := s.rdContainer.Host(s.ctx)
	require.NoError(s.T(), err)
	port, err := s.rdContainer.MappedPort(s.ctx, "6379/tcp")
	require.NoError(s.T(), err)
	s.redisClient = redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(s.T(), s.redisClient.Ping(s.ctx).Err())
}

func (s *StoreIntegrationSuite) TearDownSuite() {
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.rdContainer != nil {
		_ = s.rdContainer.Terminate(s.ctx)
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(s.ctx)
	}
}

func (s *StoreIntegrationSuite) importForest() *models.StorySchema {
	schema, err := database.ParseStoryYAML([]byte(forestStory))
	s.Require().NoError(err)
	err = database.WithTx(s.ctx, s.pool, func(tx pgx.Tx) error {
		return database.NewPgStoryRepository(tx, s.logger).SaveSchema(s.ctx, schema)
	})
	s.Require().NoError(err)
	return schema
}

func (s *StoreIntegrationSuite) TestStorySchemaRoundTrip() {
	want := s.importForest()
	// Importing twice replaces rather than duplicates.
	s.importForest()

	got, err := database.NewPgStoryRepository(s.pool, s.logger).GetSchema(s.ctx, "forest")
	s.Require().NoError(err)

	s.Equal(want.Story.Title, got.Story.Title)
	s.Equal(want.Story.StartNodeID, got.Story.StartNodeID)
	s.True(got.Story.IsPublished)
	s.Len(got.Variables, 2)
	s.Equal(float64(100), got.Variables[0].DefaultValue)
	s.Nil(got.Variables[1].DefaultValue)
	s.Len(got.Nodes, 2)
	s.Equal("forest", got.Nodes[0].StoryID)
	s.Require().Len(got.Choices, 1)
	s.Equal(want.Choices[0].Condition, got.Choices[0].Condition)
	s.Equal(want.Choices[0].Effects, got.Choices[0].Effects)

	_, err = database.NewPgStoryRepository(s.pool, s.logger).GetSchema(s.ctx, "nope")
	s.ErrorIs(err, models.ErrStoryNotFound)
}

func (s *StoreIntegrationSuite) TestSessionVersioning() {
	s.importForest()
	repo := database.NewPgSessionRepository(s.pool, s.logger)
	now := time.Now().UTC().Truncate(time.Microsecond)

	session := &models.PlaySession{
		ID:            uuid.New(),
		StoryID:       "forest",
		UserID:        "player",
		CurrentNodeID: "A",
		GameState: models.PlayerState{
			Variables: map[string]any{"health": float64(100)},
			Inventory: []string{"potion"},
			Fields:    map[string]any{},
		},
		StartedAt: now,
		UpdatedAt: now,
	}
	s.Require().NoError(repo.Create(s.ctx, session))
	s.Equal(int64(1), session.Version)

	stale, err := repo.GetByID(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(float64(100), stale.GameState.Variables["health"])

	session.CurrentNodeID = "B"
	session.Complete(now.Add(time.Second))
	s.Require().NoError(repo.Update(s.ctx, session))
	s.Equal(int64(2), session.Version)

	s.ErrorIs(repo.Update(s.ctx, stale), models.ErrConcurrentUpdate)

	got, err := repo.GetByID(s.ctx, session.ID)
	s.Require().NoError(err)
	s.True(got.IsCompleted)
	s.Equal("B", got.CurrentNodeID)
	s.Equal(int64(2), got.Version)

	_, err = repo.GetByID(s.ctx, uuid.New())
	s.ErrorIs(err, models.ErrSessionNotFound)

	saves := database.NewPgSavedGameRepository(s.pool, s.logger)
	save := &models.SavedGame{
		ID: uuid.New(), SessionID: session.ID, StoryID: "forest", UserID: "player",
		Name: "checkpoint", GameState: stale.GameState, CurrentNodeID: "A", CreatedAt: now,
	}
	s.Require().NoError(saves.Create(s.ctx, save))
	list, err := saves.ListBySession(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("checkpoint", list[0].Name)
	s.Equal([]string{"potion"}, list[0].GameState.Inventory)
	s.Require().NoError(saves.Delete(s.ctx, save.ID))
	s.ErrorIs(saves.Delete(s.ctx, save.ID), models.ErrSavedGameNotFound)
}

func (s *StoreIntegrationSuite) TestRedisStoryCache() {
	schema, err := database.ParseStoryYAML([]byte(forestStory))
	s.Require().NoError(err)
	s.Require().NoError(database.InvalidateStory(s.ctx, s.redisClient, "forest"))

	source := new(mocks.StoryRepository)
	source.On("GetSchema", mock.Anything, "forest").Return(schema, nil).Once()
	source.On("GetSchema", mock.Anything, "missing").Return(nil, models.ErrStoryNotFound)

	var repo interfaces.StoryRepository = database.NewCachedStoryRepository(source, s.redisClient, time.Minute, s.logger)

	first, err := repo.GetSchema(s.ctx, "forest")
	s.Require().NoError(err)
	second, err := repo.GetSchema(s.ctx, "forest")
	s.Require().NoError(err)
	s.Equal(first.Story.Title, second.Story.Title)
	s.Equal(first.Choices[0].Condition, second.Choices[0].Condition)

	_, err = repo.GetSchema(s.ctx, "missing")
	s.ErrorIs(err, models.ErrStoryNotFound)

	source.AssertExpectations(s.T())
}
