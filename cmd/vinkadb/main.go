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

// Command vinkadb makes sure the configured application database exists and
// applies the pending migrations.
//
// Settings come from the environment:
//
//	VINKA_CONFIG     path of the YAML database config (default configs/database.yaml)
//	VINKA_MIGRATE    run migrations after connecting (default true)
//	VINKA_LOG_LEVEL  debug, info, warn or error (default info)
//	VINKA_TIMEOUT    overall deadline (default 60s)
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/tomoncle/vinkadb"
	"github.com/tomoncle/vinkadb/database"
	"github.com/tomoncle/vinkadb/utils"
)

type settings struct {
	Config   string        `envconfig:"CONFIG" default:"configs/database.yaml"`
	Migrate  bool          `envconfig:"MIGRATE" default:"true"`
	LogLevel string        `envconfig:"LOG_LEVEL" default:"info"`
	Timeout  time.Duration `envconfig:"TIMEOUT" default:"60s"`
}

func main() {
	os.Exit(run())
}

func run() int {
	var s settings
	if err := envconfig.Process(database.EnvPrefix, &s); err != nil {
		utils.NewLogger("VINKADB").WithError(err).Error("Invalid settings")
		return 2
	}
	utils.ConfigureLogLevel(s.LogLevel)
	log := database.NewDefaultLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	connector := database.NewConnector(database.Dependencies{Logger: log})
	orm, err := vinkadb.OpenWith(ctx, connector, s.Config, database.RegisterModels(database.NewModelRegistry()))
	if err != nil {
		var cfgErr *database.ConfigError
		var bootErr *database.BootstrapDbMissingError
		switch {
		case errors.As(err, &cfgErr):
			log.Error("Invalid database configuration", "field", cfgErr.Field, "reason", cfgErr.Reason, "error", err)
		case errors.As(err, &bootErr):
			log.Error("Cannot create application database", "database", bootErr.Database, "error", err)
		default:
			log.Error("Failed to connect to database", "error", err)
		}
		return 1
	}
	defer func() {
		if err := orm.Session().Close(); err != nil {
			log.Error("Failed to close database connection", "error", err)
		}
	}()

	if !s.Migrate {
		return 0
	}
	if _, err := database.MigrateUp(ctx, orm, nil, log); err != nil {
		log.Error("Failed to run database migrations", "error", err)
		return 1
	}
	applied, err := database.AppliedMigrations(ctx, orm, nil)
	if err != nil {
		log.Error("Failed to list applied migrations", "error", err)
		return 1
	}
	log.Info("Database is up to date", "applied", len(applied))
	return 0
}
