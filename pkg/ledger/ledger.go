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

// Package ledger implements the dialect-agnostic ledger repository once,
// on top of the backend.Adapter interface. A Repository built with
// backend.Postgres{} and one built with backend.SQLite{} are the two
// concrete variants; neither duplicates this file's logic.
package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cchexcode/qop/internal/clierr"
	"github.com/cchexcode/qop/internal/log"
	"github.com/cchexcode/qop/internal/version"
	"github.com/cchexcode/qop/pkg/backend"
)

// ErrLocked is returned by RevertMigration when the target row is locked
// and unlock was not requested.
type ErrLocked struct {
	ID string
}

func (e *ErrLocked) Error() string {
	return fmt.Sprintf("migration %s is locked; pass --unlock to revert it", e.ID)
}

// Repository is the dialect-agnostic Ledger Repository, parameterized by
// a concrete backend.Adapter and the pool it already established.
type Repository struct {
	adapter backend.Adapter
	pool    backend.Pool
	schema  string
	prefix  string
}

// New builds a Repository over an already-connected pool.
func New(adapter backend.Adapter, pool backend.Pool, schema, prefix string) *Repository {
	return &Repository{adapter: adapter, pool: pool, schema: schema, prefix: prefix}
}

// Close releases the underlying pool.
func (r *Repository) Close() error {
	return r.adapter.Close(r.pool)
}

// InitStore ensures both ledger tables exist.
func (r *Repository) InitStore(ctx context.Context) error {
	tx, err := r.adapter.Begin(ctx, r.pool)
	if err != nil {
		return err
	}
	if err := r.adapter.InitLedger(ctx, tx, r.schema, r.prefix); err != nil {
		_ = r.adapter.Rollback(ctx, tx)
		return err
	}
	return r.adapter.Commit(ctx, tx)
}

// FetchAppliedIDs returns the set of IDs currently applied.
func (r *Repository) FetchAppliedIDs(ctx context.Context) (map[string]struct{}, error) {
	ids, err := r.adapter.FetchAppliedIDs(ctx, r.pool, r.schema, r.prefix)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// FetchLastID returns the lexicographically greatest applied ID, if any.
func (r *Repository) FetchLastID(ctx context.Context) (string, bool, error) {
	ids, err := r.adapter.FetchAppliedIDs(ctx, r.pool, r.schema, r.prefix)
	if err != nil {
		return "", false, err
	}
	if len(ids) == 0 {
		return "", false, nil
	}
	sort.Strings(ids)
	return ids[len(ids)-1], true, nil
}

// FetchHistory returns applied migrations ordered by id ascending.
func (r *Repository) FetchHistory(ctx context.Context) ([]backend.HistoryEntry, error) {
	entries, err := r.adapter.FetchHistory(ctx, r.pool, r.schema, r.prefix)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// FetchDownSQL returns the stored down-SQL for id, if present.
func (r *Repository) FetchDownSQL(ctx context.Context, id string) (string, bool, error) {
	return r.adapter.FetchDownSQL(ctx, r.pool, r.schema, r.prefix, id)
}

// FetchAllMigrations returns every ledger row, for `history sync`.
func (r *Repository) FetchAllMigrations(ctx context.Context) ([]backend.StoredMigration, error) {
	return r.adapter.FetchAllMigrations(ctx, r.pool, r.schema, r.prefix)
}

// IsLocked reports the lock flag for an applied migration.
func (r *Repository) IsLocked(ctx context.Context, id string) (bool, error) {
	return r.adapter.IsLocked(ctx, r.pool, r.schema, r.prefix, id)
}

// ApplyMigration executes upSQL, inserts the ledger row, and appends the
// log row, all within one transaction: begin, set timeout, execute SQL,
// write the ledger row, write the log row, then commit or roll back. On
// dryRun, the transaction is rolled back instead of committed and a
// diagnostic is logged; no rows persist.
func (r *Repository) ApplyMigration(
	ctx context.Context,
	id, upSQL, downSQL string,
	comment *string,
	pre *string,
	timeoutMS *int,
	dryRun bool,
	locked bool,
) error {
	tx, err := r.adapter.Begin(ctx, r.pool)
	if err != nil {
		return fmt.Errorf("apply %s: begin: %w", id, err)
	}

	if err := r.adapter.SetTimeout(ctx, tx, timeoutMS); err != nil {
		_ = r.adapter.Rollback(ctx, tx)
		return fmt.Errorf("apply %s: set timeout: %w", id, err)
	}

	if err := r.adapter.ExecSQL(ctx, tx, upSQL); err != nil {
		_ = r.adapter.Rollback(ctx, tx)
		return fmt.Errorf("apply %s: up.sql: %w", id, err)
	}

	row := backend.LedgerRow{
		ID:      id,
		Version: version.Get(),
		Up:      upSQL,
		Down:    downSQL,
		Pre:     pre,
		Comment: comment,
		Locked:  locked,
	}
	if err := r.adapter.InsertLedgerRow(ctx, tx, r.schema, r.prefix, row); err != nil {
		_ = r.adapter.Rollback(ctx, tx)
		return fmt.Errorf("apply %s: ledger insert: %w", id, err)
	}

	logID, err := uuid.NewV7()
	if err != nil {
		_ = r.adapter.Rollback(ctx, tx)
		return fmt.Errorf("apply %s: generate log id: %w", id, err)
	}
	logRow := backend.LogRow{ID: logID.String(), MigrationID: id, Operation: "up", SQLCommand: upSQL}
	if err := r.adapter.InsertLogRow(ctx, tx, r.schema, r.prefix, logRow); err != nil {
		_ = r.adapter.Rollback(ctx, tx)
		return fmt.Errorf("apply %s: log insert: %w", id, err)
	}

	if dryRun {
		if err := r.adapter.Rollback(ctx, tx); err != nil {
			return fmt.Errorf("apply %s: dry-run rollback: %w", id, err)
		}
		log.Warn("dry-run apply rolled back", zap.String("migration_id", id))
		return nil
	}

	if err := r.adapter.Commit(ctx, tx); err != nil {
		return fmt.Errorf("apply %s: commit: %w", id, err)
	}
	return nil
}

// RevertMigration executes downSQL, removes the ledger row, and appends
// the log row, all within one transaction. A locked row is refused
// before any SQL runs unless unlock is set.
func (r *Repository) RevertMigration(
	ctx context.Context,
	id, downSQL string,
	timeoutMS *int,
	dryRun bool,
	unlock bool,
) error {
	if !unlock {
		locked, err := r.IsLocked(ctx, id)
		if err != nil {
			return fmt.Errorf("revert %s: lock check: %w", id, err)
		}
		if locked {
			return clierr.New(clierr.ExitSafety, &ErrLocked{ID: id})
		}
	}

	tx, err := r.adapter.Begin(ctx, r.pool)
	if err != nil {
		return fmt.Errorf("revert %s: begin: %w", id, err)
	}

	if err := r.adapter.SetTimeout(ctx, tx, timeoutMS); err != nil {
		_ = r.adapter.Rollback(ctx, tx)
		return fmt.Errorf("revert %s: set timeout: %w", id, err)
	}

	if err := r.adapter.ExecSQL(ctx, tx, downSQL); err != nil {
		_ = r.adapter.Rollback(ctx, tx)
		return fmt.Errorf("revert %s: down.sql: %w", id, err)
	}

	if err := r.adapter.DeleteLedgerRowByID(ctx, tx, r.schema, r.prefix, id); err != nil {
		_ = r.adapter.Rollback(ctx, tx)
		return fmt.Errorf("revert %s: ledger delete: %w", id, err)
	}

	logID, err := uuid.NewV7()
	if err != nil {
		_ = r.adapter.Rollback(ctx, tx)
		return fmt.Errorf("revert %s: generate log id: %w", id, err)
	}
	logRow := backend.LogRow{ID: logID.String(), MigrationID: id, Operation: "down", SQLCommand: downSQL}
	if err := r.adapter.InsertLogRow(ctx, tx, r.schema, r.prefix, logRow); err != nil {
		_ = r.adapter.Rollback(ctx, tx)
		return fmt.Errorf("revert %s: log insert: %w", id, err)
	}

	if dryRun {
		if err := r.adapter.Rollback(ctx, tx); err != nil {
			return fmt.Errorf("revert %s: dry-run rollback: %w", id, err)
		}
		log.Warn("dry-run revert rolled back", zap.String("migration_id", id))
		return nil
	}

	if err := r.adapter.Commit(ctx, tx); err != nil {
		return fmt.Errorf("revert %s: commit: %w", id, err)
	}
	return nil
}
