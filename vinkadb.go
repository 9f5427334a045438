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

// Package vinkadb connects to an application database described by a YAML
// file, creating the database on first use.
package vinkadb

import (
	"context"

	"github.com/tomoncle/vinkadb/database"
	"github.com/uptrace/bun/migrate"
)

// Open loads the configuration file at path, applies the environment
// overrides and connects with the default collaborators.
func Open(ctx context.Context, path string, models database.Models) (*database.ORM, error) {
	return OpenWith(ctx, database.NewConnector(database.Dependencies{}), path, models)
}

// OpenWith is Open with an explicit connector.
func OpenWith(ctx context.Context, connector *database.Connector, path string, models database.Models) (*database.ORM, error) {
	bag, err := database.LoadConfigFile(path)
	if err != nil {
		return nil, err
	}
	bag, err = database.ApplyEnvOverrides(bag)
	if err != nil {
		return nil, err
	}
	return connector.Connect(ctx, models, bag)
}

// Migrate applies the pending migrations found in database.MigrationsDirectory
// and those registered on migrations, which may be nil.
func Migrate(ctx context.Context, orm *database.ORM, migrations *migrate.Migrations) (*migrate.MigrationGroup, error) {
	return database.MigrateUp(ctx, orm, migrations, database.NewDefaultLogger())
}
