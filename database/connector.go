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
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tomoncle/vinkadb/utils"
)

// maxCreateAttempts bounds how many times a missing target database is
// created before the connect gives up.
const maxCreateAttempts = 1

// Dependencies are the collaborators of a Connector. Nil fields fall back to
// PgxPoolFactory, BunEngine and NewDefaultLogger.
type Dependencies struct {
	Pools  PoolFactory
	Engine Engine
	Logger Logger
}

// Connector connects to the application database, creating it through the
// bootstrap database when it does not exist yet.
type Connector struct {
	pools  PoolFactory
	engine Engine
	logger Logger
}

func NewConnector(deps Dependencies) *Connector {
	c := &Connector{
		pools:  deps.Pools,
		engine: deps.Engine,
		logger: deps.Logger,
	}
	if c.pools == nil {
		c.pools = PgxPoolFactory{}
	}
	if c.engine == nil {
		c.engine = NewBunEngine()
	}
	if c.logger == nil {
		c.logger = NewDefaultLogger()
	}
	return c
}

// Connect validates bag and connects with ConnectConfig.
func (c *Connector) Connect(ctx context.Context, models Models, bag map[string]interface{}) (*ORM, error) {
	cfg, err := ParseConfig(bag)
	if err != nil {
		return nil, err
	}
	return c.ConnectConfig(ctx, models, cfg)
}

// ConnectConfig checks the target database through a reserved connection and
// returns the ORM on success. When that check reports the database missing it
// is created from cfg.VinkaDB and checked once more.
func (c *Connector) ConnectConfig(ctx context.Context, models Models, cfg *Config) (*ORM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if models == nil {
		return nil, errors.New("models must not be nil")
	}

	for created := 0; ; created++ {
		err := c.tryConnectAppDB(ctx, cfg)
		if err == nil {
			return c.initORM(ctx, models, cfg)
		}
		if created >= maxCreateAttempts || !IsMissingDatabase(err, cfg.DB) {
			return nil, newConnectionError(cfg.DB, err)
		}

		c.logger.Info("Application database not found, creating it", "database", cfg.DB, "bootstrap", cfg.VinkaDB)
		if err := c.createDB(ctx, cfg); err != nil {
			return nil, err
		}
	}
}

func (c *Connector) poolOptions(cfg *Config, database string) PoolOptions {
	opts := PoolOptions{
		User:     cfg.User,
		Password: cfg.Pass,
		Host:     cfg.Options.Host,
		Port:     cfg.Options.Port,
		Database: database,
		Max:      1,
	}
	if cfg.SSL {
		opts.SSL = SSLRequire
	}
	return opts
}

func (c *Connector) connectDB(ctx context.Context, cfg *Config, database string) (Session, error) {
	pool, err := c.pools.NewPool(ctx, c.poolOptions(cfg, database))
	if err != nil {
		return nil, err
	}
	return pool.Connect(ctx)
}

func (c *Connector) tryConnectAppDB(ctx context.Context, cfg *Config) error {
	session, err := c.connectDB(ctx, cfg, cfg.DB)
	if err != nil {
		return err
	}
	return session.End(ctx)
}

// createDB issues CREATE DATABASE for cfg.DB on a connection to the
// bootstrap database. The name is interpolated as is.
func (c *Connector) createDB(ctx context.Context, cfg *Config) error {
	if cfg.VinkaDB == "" {
		return &BootstrapDbMissingError{Database: cfg.DB}
	}

	session, err := c.connectDB(ctx, cfg, cfg.VinkaDB)
	if err != nil {
		return newConnectionError(cfg.VinkaDB, err)
	}

	queryErr := session.Query(ctx, fmt.Sprintf(`CREATE DATABASE "%s"`, cfg.DB))
	endErr := session.End(ctx)
	if queryErr != nil {
		if _, kind := IsSqlError(queryErr); kind == ExistDatabaseErr {
			c.logger.Warn("Database was created concurrently", "database", cfg.DB, "error", queryErr)
		}
		return newConnectionError(cfg.DB, queryErr)
	}
	if endErr != nil {
		return newConnectionError(cfg.VinkaDB, endErr)
	}
	c.logger.Info("Application database created", "database", cfg.DB)
	return nil
}

func (c *Connector) initORM(ctx context.Context, models Models, cfg *Config) (*ORM, error) {
	start := time.Now()
	opts := EngineOptions{
		Host:    cfg.Options.Host,
		Port:    cfg.Options.Port,
		Dialect: DialectPostgres,
	}
	params, skipped := connectionParams(cfg.Options.Extra)
	opts.Params = params
	if len(skipped) > 0 {
		c.logger.Warn("Ignoring non scalar connection options", "keys", skipped)
	}
	if cfg.SSL {
		opts.DialectOptions = map[string]interface{}{"ssl": true}
	}
	if cfg.Logging {
		opts.Logger = c.logger
	}

	c.logger.Debug(fmt.Sprintf("connecting to database with options %s", cfg))
	db, err := c.engine.Open(ctx, cfg.DB, cfg.User, cfg.Pass, opts)
	if err != nil {
		return nil, newConnectionError(cfg.DB, err)
	}

	registry, err := models.Init(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	c.logger.Info(fmt.Sprintf("connected to database %s", cfg.DB), "elapsed", utils.Since(start))
	return newORM(c.engine, db, registry), nil
}

// connectionParams keeps the extra options that can be sent as connection
// parameters. Nested values such as maps or slices are returned by name in
// skipped, sorted.
func connectionParams(extra map[string]interface{}) (params map[string]interface{}, skipped []string) {
	for k, v := range extra {
		switch v.(type) {
		case string, bool, int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
			if params == nil {
				params = make(map[string]interface{}, len(extra))
			}
			params[k] = v
		default:
			skipped = append(skipped, k)
		}
	}
	sort.Strings(skipped)
	return params, skipped
}
