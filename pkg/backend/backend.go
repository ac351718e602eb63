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

// Package backend defines the Backend Adapter contract: the only layer
// that knows about dialect-specific SQL. pkg/ledger is built once, on top
// of this interface, and never branches on which database it is talking
// to.
package backend

import (
	"context"
	"time"
)

// Pool is an opaque connection pool handle. Concrete adapters cast it
// back to their own pool type (*pgxpool.Pool, *sql.DB); callers outside
// this package only ever pass it through.
type Pool any

// Tx is an opaque in-flight transaction handle, cast back by the adapter
// that created it.
type Tx any

// LedgerRow is the persisted shape of one applied migration.
type LedgerRow struct {
	ID        string
	Version   string
	Up        string
	Down      string
	Pre       *string
	Comment   *string
	Locked    bool
	CreatedAt time.Time
}

// LogRow is one append-only audit entry.
type LogRow struct {
	ID          string
	MigrationID string
	Operation   string // "up" or "down"
	SQLCommand  string
	ExecutedAt  time.Time
}

// HistoryEntry is the narrow projection fetch_history() returns.
type HistoryEntry struct {
	ID        string
	CreatedAt time.Time
	Comment   *string
	Locked    bool
}

// StoredMigration is the projection fetch_all_migrations() returns,
// enough to materialise a migration back onto the filesystem during
// `history sync`.
type StoredMigration struct {
	ID      string
	Up      string
	Down    string
	Comment *string
}

// Adapter encapsulates everything dialect-specific: connecting,
// transaction lifecycle, per-transaction timeouts, raw SQL execution, DDL
// for the ledger tables, and the ledger/log row operations themselves.
type Adapter interface {
	// Connect establishes a connection pool. poolSize is advisory; the
	// SQLite adapter always clamps it to 1 regardless of the argument,
	// since a file-backed database has no use for concurrent writers.
	Connect(ctx context.Context, connStr string, poolSize int) (Pool, error)
	Close(pool Pool) error

	Begin(ctx context.Context, pool Pool) (Tx, error)
	Commit(ctx context.Context, tx Tx) error
	Rollback(ctx context.Context, tx Tx) error

	// SetTimeout applies a per-transaction timeout. A nil ms is a no-op.
	SetTimeout(ctx context.Context, tx Tx, ms *int) error

	// ExecSQL executes a possibly multi-statement SQL blob within tx.
	ExecSQL(ctx context.Context, tx Tx, sql string) error

	// InitLedger creates the ledger and log tables if they do not exist.
	// schema is ignored by dialects (e.g. SQLite) that have no concept of it.
	InitLedger(ctx context.Context, tx Tx, schema, prefix string) error

	InsertLedgerRow(ctx context.Context, tx Tx, schema, prefix string, row LedgerRow) error
	DeleteLedgerRowByID(ctx context.Context, tx Tx, schema, prefix, id string) error
	InsertLogRow(ctx context.Context, tx Tx, schema, prefix string, row LogRow) error

	FetchAppliedIDs(ctx context.Context, pool Pool, schema, prefix string) ([]string, error)
	FetchHistory(ctx context.Context, pool Pool, schema, prefix string) ([]HistoryEntry, error)
	FetchDownSQL(ctx context.Context, pool Pool, schema, prefix, id string) (string, bool, error)
	FetchAllMigrations(ctx context.Context, pool Pool, schema, prefix string) ([]StoredMigration, error)
	IsLocked(ctx context.Context, pool Pool, schema, prefix, id string) (bool, error)
}
