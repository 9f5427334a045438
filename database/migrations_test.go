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

package database

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const createWidgetsSQL = `CREATE TABLE widgets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);`

func newSQLiteORM(t *testing.T) *ORM {
	return newORM(NewBunEngine(), newSQLiteDB(t), nil)
}

func TestMigrateUpAppliesPendingOnce(t *testing.T) {
	ctx := context.Background()
	orm := newSQLiteORM(t)
	fsys := fstest.MapFS{
		"20240101000000_create_widgets.up.sql": {Data: []byte(createWidgetsSQL)},
		"20240101000000_create_widgets.down.sql": {Data: []byte("DROP TABLE widgets;")},
		"20240102000000_seed_widgets.up.sql":     {Data: []byte("INSERT INTO widgets (name) VALUES ('sprocket');")},
	}

	group, err := migrateUp(ctx, orm, nil, fsys, nopLogger{})
	require.NoError(t, err)
	assert.False(t, group.IsZero())
	assert.Len(t, group.Migrations, 2)

	count, err := orm.Session().NewSelect().Table("widgets").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	group, err = migrateUp(ctx, orm, nil, fsys, nopLogger{})
	require.NoError(t, err)
	assert.True(t, group.IsZero())

	count, err = orm.Session().NewSelect().Table("widgets").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	applied, err := AppliedMigrations(ctx, orm, nil)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	names := []string{applied[0].Name, applied[1].Name}
	assert.ElementsMatch(t, []string{"20240101000000", "20240102000000"}, names)
}

func TestMigrateUpNewFileAfterFirstRun(t *testing.T) {
	ctx := context.Background()
	orm := newSQLiteORM(t)
	fsys := fstest.MapFS{
		"20240101000000_create_widgets.up.sql": {Data: []byte(createWidgetsSQL)},
	}

	_, err := migrateUp(ctx, orm, nil, fsys, nopLogger{})
	require.NoError(t, err)

	fsys["20240103000000_add_color.up.sql"] = &fstest.MapFile{Data: []byte("ALTER TABLE widgets ADD COLUMN color TEXT;")}
	group, err := migrateUp(ctx, orm, nil, fsys, nopLogger{})
	require.NoError(t, err)
	require.Len(t, group.Migrations, 1)
	assert.Equal(t, "20240103000000", group.Migrations[0].Name)
}

func TestMigrateUpWithoutMigrations(t *testing.T) {
	ctx := context.Background()
	orm := newSQLiteORM(t)

	group, err := migrateUp(ctx, orm, nil, fstest.MapFS{}, nopLogger{})
	require.NoError(t, err)
	assert.True(t, group.IsZero())

	group, err = migrateUp(ctx, orm, nil, nil, nil)
	require.NoError(t, err)
	assert.True(t, group.IsZero())
}

func TestMigrateUpFailingMigration(t *testing.T) {
	ctx := context.Background()
	orm := newSQLiteORM(t)
	fsys := fstest.MapFS{
		"20240101000000_broken.up.sql": {Data: []byte("CREATE TABLE (;")},
	}

	_, err := migrateUp(ctx, orm, nil, fsys, nopLogger{})
	assert.ErrorContains(t, err, "failed to run migrations")
}

func TestMigrateUpReadsWorkingDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, MigrationsDirectory+"/20240101000000_create_widgets.up.sql", createWidgetsSQL)
	t.Chdir(dir)

	orm := newSQLiteORM(t)
	group, err := MigrateUp(ctx, orm, nil, nopLogger{})
	require.NoError(t, err)
	require.Len(t, group.Migrations, 1)

	_, err = orm.Session().NewInsert().Model(&widget{Name: "sprocket"}).Exec(ctx)
	assert.NoError(t, err)
}

func TestMigrateUpMissingDirectory(t *testing.T) {
	t.Chdir(t.TempDir())

	group, err := MigrateUp(context.Background(), newSQLiteORM(t), nil, nopLogger{})
	require.NoError(t, err)
	assert.True(t, group.IsZero())
}

func TestMigrateUpRequiresSession(t *testing.T) {
	_, err := MigrateUp(context.Background(), nil, nil, nil)
	assert.EqualError(t, err, "database not initialized")

	_, err = AppliedMigrations(context.Background(), &ORM{}, nil)
	assert.EqualError(t, err, "database not initialized")
}
