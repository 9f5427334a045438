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
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultHost = "localhost"
	defaultPort = 5432

	// SSLRequire is the PoolOptions.SSL value that demands TLS.
	SSLRequire = "require"
)

// PoolOptions describes a reserved connection pool.
type PoolOptions struct {
	User     string
	Password string
	Host     string
	Port     int
	Database string
	Max      int
	SSL      string
}

// PoolFactory creates connection pools.
type PoolFactory interface {
	NewPool(ctx context.Context, opts PoolOptions) (Pool, error)
}

// PoolFactoryFunc adapts a function to PoolFactory.
type PoolFactoryFunc func(ctx context.Context, opts PoolOptions) (Pool, error)

func (f PoolFactoryFunc) NewPool(ctx context.Context, opts PoolOptions) (Pool, error) {
	return f(ctx, opts)
}

// Pool hands out sessions.
type Pool interface {
	Connect(ctx context.Context) (Session, error)
}

// Session is a single live connection. End releases it together with the
// pool it came from.
type Session interface {
	Query(ctx context.Context, sql string) error
	End(ctx context.Context) error
}

// PgxPoolFactory builds pools on top of pgxpool.
type PgxPoolFactory struct{}

var _ PoolFactory = PgxPoolFactory{}

func (PgxPoolFactory) NewPool(ctx context.Context, opts PoolOptions) (Pool, error) {
	cfg, err := pgxPoolConfig(opts)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &pgxPool{pool: pool}, nil
}

func pgxPoolConfig(opts PoolOptions) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(postgresURL(opts.User, opts.Password, opts.Host, opts.Port, opts.Database, opts.SSL, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}
	if opts.Max > 0 {
		cfg.MaxConns = int32(opts.Max)
	}
	cfg.MinConns = 0
	return cfg, nil
}

// postgresURL builds a postgres:// connection URL. Missing host and port
// fall back to localhost:5432; params are appended as query parameters.
func postgresURL(user, password, host string, port int, database, ssl string, params map[string]string) string {
	if host == "" {
		host = defaultHost
	}
	if port == 0 {
		port = defaultPort
	}
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	if ssl == SSLRequire {
		q.Set("sslmode", SSLRequire)
	} else if q.Get("sslmode") == "" {
		q.Set("sslmode", "disable")
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

type pgxPool struct {
	pool *pgxpool.Pool
}

func (p *pgxPool) Connect(ctx context.Context) (Session, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		p.pool.Close()
		return nil, err
	}
	return &pgxSession{pool: p.pool, conn: conn}, nil
}

type pgxSession struct {
	pool *pgxpool.Pool
	conn *pgxpool.Conn
}

func (s *pgxSession) Query(ctx context.Context, sql string) error {
	_, err := s.conn.Exec(ctx, sql)
	return err
}

func (s *pgxSession) End(ctx context.Context) error {
	s.conn.Release()
	s.pool.Close()
	return nil
}
