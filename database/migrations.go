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
	"fmt"
	"io/fs"
	"os"

	"github.com/uptrace/bun/migrate"
)

// MigrationsDirectory is where SQL migration files are discovered, relative
// to the working directory. File names follow bun's pattern, e.g.
// 20240101120000_create_users.up.sql.
const MigrationsDirectory = "migrations"

// MigrateUp applies every pending migration to the ORM session. Go
// migrations registered on migrations and SQL files found in
// MigrationsDirectory are both applied; migrations may be nil. The applied
// history is kept in the bun_migrations table of the same database.
//
// Go migrations receive the session as *bun.DB and can reach the ORM, and
// through it the engine, with ORMFromContext.
func MigrateUp(ctx context.Context, orm *ORM, migrations *migrate.Migrations, logger Logger) (*migrate.MigrationGroup, error) {
	var fsys fs.FS
	if info, err := os.Stat(MigrationsDirectory); err == nil && info.IsDir() {
		fsys = os.DirFS(MigrationsDirectory)
	}
	return migrateUp(ctx, orm, migrations, fsys, logger)
}

func migrateUp(ctx context.Context, orm *ORM, migrations *migrate.Migrations, fsys fs.FS, logger Logger) (*migrate.MigrationGroup, error) {
	if orm == nil || orm.Session() == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if logger == nil {
		logger = nopLogger{}
	}
	if migrations == nil {
		migrations = migrate.NewMigrations(migrate.WithMigrationsDirectory(MigrationsDirectory))
	}
	if fsys != nil {
		if err := migrations.Discover(fsys); err != nil {
			return nil, fmt.Errorf("failed to discover migrations: %w", err)
		}
	}

	if len(migrations.Sorted()) == 0 {
		logger.Info("No migrations found", "directory", MigrationsDirectory)
		return &migrate.MigrationGroup{}, nil
	}

	migrator := migrate.NewMigrator(orm.Session(), migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	if err := migrator.Lock(ctx); err != nil {
		return nil, fmt.Errorf("failed to lock migrations: %w", err)
	}
	defer func() {
		if err := migrator.Unlock(ctx); err != nil {
			logger.Error("Failed to unlock migrations", "error", err)
		}
	}()

	group, err := migrator.Migrate(ContextWithORM(ctx, orm))
	if err != nil {
		return group, fmt.Errorf("failed to run migrations: %w", err)
	}
	if group.IsZero() {
		logger.Info("No new migrations to run")
		return group, nil
	}
	for _, m := range group.Migrations {
		logger.Info("Migration executed successfully", "name", m.Name, "comment", m.Comment)
	}
	logger.Info("Database migrations completed!", "group", group.ID)
	return group, nil
}

// AppliedMigrations returns the migrations recorded in the bookkeeping table.
func AppliedMigrations(ctx context.Context, orm *ORM, migrations *migrate.Migrations) (migrate.MigrationSlice, error) {
	if orm == nil || orm.Session() == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if migrations == nil {
		migrations = migrate.NewMigrations()
	}
	migrator := migrate.NewMigrator(orm.Session(), migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	return migrator.AppliedMigrations(ctx)
}
