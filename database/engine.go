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
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
)

// DialectPostgres is the only dialect the engine is opened with.
const DialectPostgres = "postgres"

// EngineOptions configures an ORM session.
type EngineOptions struct {
	Host           string
	Port           int
	Dialect        string
	DialectOptions map[string]interface{}
	// Logger receives the executed queries at debug level; nil disables
	// query logging.
	Logger Logger
	// Params are sent to the server as connection parameters, so keys must
	// be ones libpq or the server accepts (e.g. application_name,
	// connect_timeout, search_path). Unrecognized keys fail on connect.
	Params map[string]interface{}
}

// Engine opens ORM sessions. It is also the handle exposed by ORM.Driver for
// callers that need dialect level types.
type Engine interface {
	Name() string
	Dialect() schema.Dialect
	Open(ctx context.Context, database, user, password string, opts EngineOptions) (*bun.DB, error)
}

// BunEngine opens bun sessions on lib/pq.
type BunEngine struct {
	dialect schema.Dialect
}

var _ Engine = (*BunEngine)(nil)

func NewBunEngine() *BunEngine {
	return &BunEngine{dialect: pgdialect.New()}
}

func (e *BunEngine) Name() string {
	return "bun"
}

func (e *BunEngine) Dialect() schema.Dialect {
	return e.dialect
}

func (e *BunEngine) Open(ctx context.Context, database, user, password string, opts EngineOptions) (*bun.DB, error) {
	if opts.Dialect != "" && opts.Dialect != DialectPostgres {
		return nil, fmt.Errorf("unsupported dialect: %s", opts.Dialect)
	}

	sqlDB, err := sql.Open("postgres", engineDSN(database, user, password, opts))
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqlDB, pgdialect.New())
	if opts.Logger != nil {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.WithWriter(debugWriter{logger: opts.Logger}),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	return db, nil
}

func engineDSN(database, user, password string, opts EngineOptions) string {
	params := make(map[string]string, len(opts.Params)+1)
	for k, v := range opts.Params {
		params[k] = fmt.Sprint(v)
	}
	ssl := ""
	if enabled, _ := opts.DialectOptions["ssl"].(bool); enabled {
		ssl = SSLRequire
	}
	return postgresURL(user, password, opts.Host, opts.Port, database, ssl, params)
}
