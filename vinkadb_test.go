/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package vinkadb

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/vinkadb/database"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

type nopSession struct{}

func (nopSession) Query(context.Context, string) error { return nil }
func (nopSession) End(context.Context) error           { return nil }

type nopPool struct{}

func (nopPool) Connect(context.Context) (database.Session, error) { return nopSession{}, nil }

// sqliteEngine opens an in-memory SQLite database named after the target.
type sqliteEngine struct {
	t *testing.T
}

func (sqliteEngine) Name() string { return "sqlite" }

func (sqliteEngine) Dialect() schema.Dialect { return sqlitedialect.New() }

func (e sqliteEngine) Open(_ context.Context, name, _, _ string, _ database.EngineOptions) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	e.t.Cleanup(func() { _ = db.Close() })
	return db, nil
}

func newTestConnector(t *testing.T, pools database.PoolFactory) *database.Connector {
	return database.NewConnector(database.Dependencies{
		Pools:  pools,
		Engine: sqliteEngine{t: t},
	})
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "database.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOpenWithAndMigrate(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "user: admin\npass: secret\ndb: vinkadb_root_test\nvinkaDB: vinka\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, database.MigrationsDirectory), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, database.MigrationsDirectory, "20240101000000_create_widgets.up.sql"),
		[]byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT);"),
		0o644,
	))
	t.Chdir(dir)

	var opened []database.PoolOptions
	pools := database.PoolFactoryFunc(func(_ context.Context, opts database.PoolOptions) (database.Pool, error) {
		opened = append(opened, opts)
		return nopPool{}, nil
	})

	ctx := context.Background()
	orm, err := OpenWith(ctx, newTestConnector(t, pools), path, database.RegisterModels(database.NewModelRegistry()))
	require.NoError(t, err)
	require.Len(t, opened, 1)
	assert.Equal(t, "vinkadb_root_test", opened[0].Database)
	assert.Equal(t, "sqlite", orm.Driver().Name())

	group, err := Migrate(ctx, orm, nil)
	require.NoError(t, err)
	assert.Len(t, group.Migrations, 1)

	_, err = orm.Session().ExecContext(ctx, "INSERT INTO widgets (name) VALUES ('sprocket')")
	assert.NoError(t, err)
}

func TestOpenWithEnvOverride(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "user: admin\npass: secret\ndb: from_file\n")
	t.Setenv("VINKA_DB_NAME", "from_env")

	var opened []string
	pools := database.PoolFactoryFunc(func(_ context.Context, opts database.PoolOptions) (database.Pool, error) {
		opened = append(opened, opts.Database)
		return nopPool{}, nil
	})

	_, err := OpenWith(context.Background(), newTestConnector(t, pools), path, database.RegisterModels(database.NewModelRegistry()))
	require.NoError(t, err)
	assert.Equal(t, []string{"from_env"}, opened)
}

func TestOpenInvalidConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "user: admin\ndb: yavin\n")

	_, err := Open(context.Background(), path, database.RegisterModels(database.NewModelRegistry()))

	var cfgErr *database.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "pass", cfgErr.Field)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
