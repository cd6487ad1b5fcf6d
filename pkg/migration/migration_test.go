package migration

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePostgres answers the bootstrap queries the postgres migration driver issues
// and records what it was asked.
type fakePostgres struct {
	mu          sync.Mutex
	tableExists bool
	queries     []string
	tableArgs   []any
}

func (f *fakePostgres) Connect(context.Context) (driver.Conn, error) { return &fakeConn{db: f}, nil }
func (f *fakePostgres) Driver() driver.Driver                        { return fakeDriver{} }

func (f *fakePostgres) record(query string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
}

func (f *fakePostgres) executed(fragment string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.queries {
		if strings.Contains(q, fragment) {
			return true
		}
	}
	return false
}

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) { return nil, errors.New("use the connector") }

type fakeConn struct{ db *fakePostgres }

func (c *fakeConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (c *fakeConn) Close() error                        { return nil }
func (c *fakeConn) Begin() (driver.Tx, error)           { return nil, errors.New("not supported") }

func (c *fakeConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.db.record(query)
	return driver.RowsAffected(0), nil
}

func (c *fakeConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.db.record(query)
	switch {
	case strings.Contains(query, "CURRENT_DATABASE"):
		return &fakeRows{column: "current_database", values: []driver.Value{"story_engine"}}, nil
	case strings.Contains(query, "CURRENT_SCHEMA"):
		return &fakeRows{column: "current_schema", values: []driver.Value{"public"}}, nil
	case strings.Contains(query, "information_schema.tables"):
		c.db.mu.Lock()
		for _, a := range args {
			c.db.tableArgs = append(c.db.tableArgs, a.Value)
		}
		exists := c.db.tableExists
		c.db.mu.Unlock()
		count := int64(0)
		if exists {
			count = 1
		}
		return &fakeRows{column: "count", values: []driver.Value{count}}, nil
	}
	return nil, errors.New("unexpected query: " + query)
}

type fakeRows struct {
	column string
	values []driver.Value
	next   int
}

func (r *fakeRows) Columns() []string { return []string{r.column} }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.next >= len(r.values) {
		return io.EOF
	}
	dest[0] = r.values[r.next]
	r.next++
	return nil
}

func TestNewPostgresDriver(t *testing.T) {
	t.Run("creates the unquoted version table in the current schema", func(t *testing.T) {
		fake := &fakePostgres{}
		db := sql.OpenDB(fake)

		var (
			drv interface{ Close() error }
			err error
		)
		require.NotPanics(t, func() {
			drv, err = newPostgresDriver(db)
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = drv.Close() })

		assert.Equal(t, []any{"public", MigrationsTable}, fake.tableArgs)
		assert.True(t, fake.executed(`CREATE TABLE IF NOT EXISTS "public"."schema_migrations"`))
		assert.True(t, fake.executed("pg_advisory_lock"))
		assert.True(t, fake.executed("pg_advisory_unlock"))
	})

	t.Run("existing version table is left alone", func(t *testing.T) {
		fake := &fakePostgres{tableExists: true}

		drv, err := newPostgresDriver(sql.OpenDB(fake))
		require.NoError(t, err)
		t.Cleanup(func() { _ = drv.Close() })

		assert.False(t, fake.executed("CREATE TABLE"))
	})
}
