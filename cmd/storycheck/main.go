// Command storycheck validates a directory of YAML story files and can import the
// valid ones into Postgres.
//
//	storycheck -dir ./stories
//	storycheck -dir ./stories -import -dsn postgres://... [-redis redis://...]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"story-engine/internal/database"
	"story-engine/internal/logger"
	"story-engine/internal/models"
	"story-engine/pkg/migration"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

type options struct {
	dir      string
	doImport bool
	dsn      string
	redisURL string
	migrate  bool
	logLevel string
}

func parseFlags(args []string, out io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("storycheck", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opts.dir, "dir", "./stories", "Directory with *.yaml / *.yml story files")
	fs.BoolVar(&opts.doImport, "import", false, "Import valid stories into Postgres")
	fs.StringVar(&opts.dsn, "dsn", os.Getenv("STORYCHECK_DSN"), "Postgres DSN used by -import")
	fs.StringVar(&opts.redisURL, "redis", os.Getenv("REDIS_URL"), "Redis URL whose story cache is invalidated after -import")
	fs.BoolVar(&opts.migrate, "migrate", false, "Apply schema migrations before -import")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "Log level")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.doImport && opts.dsn == "" {
		return opts, errors.New("-import requires -dsn (or STORYCHECK_DSN)")
	}
	return opts, nil
}

// run returns the process exit code: 0 when every file is valid (and imported, if asked),
// 1 when any file is invalid or the import fails, 2 on usage errors.
func run(args []string, out io.Writer) int {
	opts, err := parseFlags(args, out)
	if err != nil {
		fmt.Fprintln(out, err)
		return 2
	}

	log, err := logger.New(logger.Config{Level: opts.logLevel, Encoding: "console", OutputPath: "stderr", Service: "storycheck"})
	if err != nil {
		fmt.Fprintln(out, err)
		return 2
	}
	defer func() { _ = log.Sync() }()

	schemas, failed, err := checkDir(opts.dir, out)
	if err != nil {
		fmt.Fprintln(out, err)
		return 1
	}
	fmt.Fprintf(out, "%d valid, %d invalid\n", len(schemas), failed)
	if failed > 0 {
		return 1
	}

	if opts.doImport {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := importStories(ctx, opts, schemas, log); err != nil {
			fmt.Fprintf(out, "import failed: %v\n", err)
			return 1
		}
		fmt.Fprintf(out, "imported %d stories\n", len(schemas))
	}
	return 0
}

// checkDir validates every story file and prints one line per file, followed by one
// line per problem. Duplicate story ids across files count as invalid.
func checkDir(dir string, out io.Writer) ([]*models.StorySchema, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("read story dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var (
		schemas []*models.StorySchema
		failed  int
		seen    = map[string]string{}
	)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, 0, err
		}
		schema, err := database.ParseStoryYAML(data)
		if err == nil {
			if prev, dup := seen[schema.Story.ID]; dup {
				err = fmt.Errorf("%w: story %q already defined in %s", models.ErrBadRequest, schema.Story.ID, prev)
			}
		}
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s\n", name)
			var validationErr *models.ValidationError
			if errors.As(err, &validationErr) {
				for _, problem := range validationErr.Errors {
					fmt.Fprintf(out, "  - %s\n", problem)
				}
			} else {
				fmt.Fprintf(out, "  - %v\n", err)
			}
			continue
		}
		seen[schema.Story.ID] = name
		schemas = append(schemas, schema)
		fmt.Fprintf(out, "ok   %s (%s: %d nodes, %d choices)\n", name, schema.Story.ID, len(schema.Nodes), len(schema.Choices))
	}
	return schemas, failed, nil
}

// importStories writes all schemas in one transaction, then drops their cached copies.
func importStories(ctx context.Context, opts options, schemas []*models.StorySchema, log *zap.Logger) error {
	pool, err := pgxpool.New(ctx, opts.dsn)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if opts.migrate {
		migrator := migration.NewMigrator(migration.Config{
			MigrationsPath: database.MigrationsPath,
			MigrationsFS:   database.MigrationsFS,
		}, pool, log)
		if err := migrator.Up(); err != nil {
			return err
		}
	}

	err = database.WithTx(ctx, pool, func(tx pgx.Tx) error {
		repo := database.NewPgStoryRepository(tx, log)
		for _, schema := range schemas {
			if err := repo.SaveSchema(ctx, schema); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if opts.redisURL == "" {
		return nil
	}
	redisOpts, err := redis.ParseURL(opts.redisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	defer client.Close()
	for _, schema := range schemas {
		if err := database.InvalidateStory(ctx, client, schema.Story.ID); err != nil {
			log.Warn("Failed to invalidate cached story", zap.String("storyID", schema.Story.ID), zap.Error(err))
		}
	}
	return nil
}
