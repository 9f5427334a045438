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

	"github.com/uptrace/bun"
)

// ORM is the read-only view returned by a successful connect. Closing the
// session is left to the caller.
type ORM struct {
	engine Engine
	db     *bun.DB
	models ModelRegistry
}

func newORM(engine Engine, db *bun.DB, models ModelRegistry) *ORM {
	if models == nil {
		models = NewModelRegistry()
	}
	return &ORM{engine: engine, db: db, models: models}
}

// Driver returns the engine the session was opened with.
func (o *ORM) Driver() Engine {
	return o.engine
}

// Session returns the live bun session.
func (o *ORM) Session() *bun.DB {
	return o.db
}

// Model returns the model registered under name, or nil.
func (o *ORM) Model(name string) SQLModel {
	m, _ := o.models.Lookup(name)
	return m
}

func (o *ORM) Lookup(name string) (SQLModel, bool) {
	return o.models.Lookup(name)
}

type ormContextKey struct{}

// ContextWithORM returns a copy of ctx carrying orm. Migrations read it back
// with ORMFromContext.
func ContextWithORM(ctx context.Context, orm *ORM) context.Context {
	return context.WithValue(ctx, ormContextKey{}, orm)
}

// ORMFromContext returns the ORM stored by ContextWithORM, or nil.
func ORMFromContext(ctx context.Context) *ORM {
	orm, _ := ctx.Value(ormContextKey{}).(*ORM)
	return orm
}
