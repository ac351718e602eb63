// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dispatcher selects the concrete Backend Adapter named by a
// loaded qop.toml, establishes its pool, and wires the generic Ledger
// Repository and Migration Service on top of it.
package dispatcher

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cchexcode/qop/internal/clierr"
	"github.com/cchexcode/qop/pkg/backend"
	"github.com/cchexcode/qop/pkg/config"
	"github.com/cchexcode/qop/pkg/fsstore"
	"github.com/cchexcode/qop/pkg/ledger"
	"github.com/cchexcode/qop/pkg/migrate"
)

// defaultPostgresPoolSize is a modest default for the Postgres pool.
const defaultPostgresPoolSize = 10

// sqlitePoolSize is fixed at 1 to avoid local write contention.
const sqlitePoolSize = 1

// Session owns the live pool backing a dispatched Service and must be
// closed when the command finishes.
type Session struct {
	Service *migrate.Service
	// DefaultTimeoutMS is the qop.toml `timeout` for the dispatched
	// subsystem, converted to milliseconds, or nil if unset. Callers use
	// it when the operator didn't pass a per-invocation `-t/--timeout`.
	DefaultTimeoutMS *int
	repo             *ledger.Repository
}

// Close releases the underlying connection pool.
func (s *Session) Close() error {
	return s.repo.Close()
}

// Options carries the caller-selected backend and the I/O the
// Migration Service should prompt/report through.
type Options struct {
	// Backend is the subsystem the operator named on the command line
	// (e.g. `qop subsystem pg ...`); it must match the configured
	// subsystem.
	Backend config.Kind
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	IsTTY   bool
}

// Dispatch validates that cfg's subsystem matches opts.Backend, connects
// the matching Backend Adapter, and returns a ready-to-use Session.
func Dispatch(ctx context.Context, cfg *config.Config, store *fsstore.Store, opts Options) (*Session, error) {
	kind, err := cfg.Subsystem.Kind()
	if err != nil {
		return nil, clierr.Usagef("%s", err)
	}
	if kind != opts.Backend {
		return nil, clierr.Usagef("qop.toml configures the %s subsystem, not %s", kind, opts.Backend)
	}

	var (
		adapter  backend.Adapter
		connStr  string
		schema   string
		prefix   string
		poolSize int
	)

	switch kind {
	case config.KindPostgres:
		pg := cfg.Subsystem.Postgres
		cs, err := pg.Connection.Resolve(os.LookupEnv)
		if err != nil {
			return nil, fmt.Errorf("postgres connection: %w", err)
		}
		adapter = backend.Postgres{}
		connStr = cs
		schema = pg.Schema
		prefix = pg.TablePrefix
		poolSize = defaultPostgresPoolSize
	case config.KindSQLite:
		lite := cfg.Subsystem.SQLite
		cs, err := lite.Connection.Resolve(os.LookupEnv)
		if err != nil {
			return nil, fmt.Errorf("sqlite connection: %w", err)
		}
		adapter = backend.SQLite{}
		connStr = cs
		prefix = lite.TablePrefix
		poolSize = sqlitePoolSize
	default:
		return nil, clierr.Usagef("unsupported subsystem %q", kind)
	}

	pool, err := adapter.Connect(ctx, connStr, poolSize)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	repo := ledger.New(adapter, pool, schema, prefix)
	svc := migrate.New(repo, store, opts.Stdin, opts.Stdout, opts.Stderr, opts.IsTTY)

	var defaultTimeoutMS *int
	if secs := cfg.TimeoutSeconds(); secs > 0 {
		ms := secs * 1000
		defaultTimeoutMS = &ms
	}

	return &Session{Service: svc, DefaultTimeoutMS: defaultTimeoutMS, repo: repo}, nil
}
