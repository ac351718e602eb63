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
package backend

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"github.com/cchexcode/qop/internal/pgxdriver"
)

// Postgres is the Backend Adapter for PostgreSQL, built on pgx/v5.
type Postgres struct{}

var _ Adapter = Postgres{}

func (Postgres) Connect(ctx context.Context, connStr string, poolSize int) (Pool, error) {
	pool, err := pgxdriver.NewPool(ctx, pgxdriver.PoolConfig{
		Dsn:      connStr,
		MaxConns: int32(poolSize),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return pool, nil
}

func (Postgres) Close(p Pool) error {
	p.(*pgxpool.Pool).Close()
	return nil
}

func (Postgres) Begin(ctx context.Context, p Pool) (Tx, error) {
	tx, err := p.(*pgxpool.Pool).Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin postgres transaction: %w", err)
	}
	return tx, nil
}

func (Postgres) Commit(ctx context.Context, t Tx) error {
	if err := t.(pgx.Tx).Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit postgres transaction: %w", err)
	}
	return nil
}

func (Postgres) Rollback(ctx context.Context, t Tx) error {
	if err := t.(pgx.Tx).Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to roll back postgres transaction: %w", err)
	}
	return nil
}

func (Postgres) SetTimeout(ctx context.Context, t Tx, ms *int) error {
	if ms == nil {
		return nil
	}
	if _, err := t.(pgx.Tx).Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", *ms)); err != nil {
		return fmt.Errorf("failed to set statement_timeout: %w", err)
	}
	return nil
}

func (Postgres) ExecSQL(ctx context.Context, t Tx, sql string) error {
	if _, err := t.(pgx.Tx).Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// qualify schema-qualifies a table name, e.g. "public"."__qop_migrations".
func qualify(schema, table string) string {
	return fmt.Sprintf("%s.%s", pq.QuoteIdentifier(schema), pq.QuoteIdentifier(table))
}

func migTable(schema, prefix string) string { return qualify(schema, prefix+"_migrations") }
func logTable(schema, prefix string) string { return qualify(schema, prefix+"_log") }

func (Postgres) InitLedger(ctx context.Context, t Tx, schema, prefix string) error {
	tx := t.(pgx.Tx)
	if _, err := tx.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pq.QuoteIdentifier(schema))); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id          TEXT PRIMARY KEY,
	version     TEXT NOT NULL,
	up          TEXT NOT NULL,
	down        TEXT NOT NULL,
	pre         TEXT,
	comment     TEXT,
	locked      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS %s (
	id            TEXT PRIMARY KEY,
	migration_id  TEXT NOT NULL,
	operation     TEXT NOT NULL,
	sql_command   TEXT NOT NULL,
	executed_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`, migTable(schema, prefix), logTable(schema, prefix))
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialise ledger tables: %w", err)
	}
	return nil
}

func (Postgres) InsertLedgerRow(ctx context.Context, t Tx, schema, prefix string, row LedgerRow) error {
	tx := t.(pgx.Tx)
	_, err := tx.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (id, version, up, down, pre, comment, locked) VALUES ($1, $2, $3, $4, $5, $6, $7)
`, migTable(schema, prefix)), row.ID, row.Version, row.Up, row.Down, row.Pre, row.Comment, row.Locked)
	if err != nil {
		return fmt.Errorf("failed to insert ledger row for %s: %w", row.ID, err)
	}
	return nil
}

func (Postgres) DeleteLedgerRowByID(ctx context.Context, t Tx, schema, prefix, id string) error {
	tx := t.(pgx.Tx)
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, migTable(schema, prefix)), id); err != nil {
		return fmt.Errorf("failed to delete ledger row for %s: %w", id, err)
	}
	return nil
}

func (Postgres) InsertLogRow(ctx context.Context, t Tx, schema, prefix string, row LogRow) error {
	tx := t.(pgx.Tx)
	_, err := tx.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (id, migration_id, operation, sql_command) VALUES ($1, $2, $3, $4)
`, logTable(schema, prefix)), row.ID, row.MigrationID, row.Operation, row.SQLCommand)
	if err != nil {
		return fmt.Errorf("failed to insert log row for %s: %w", row.MigrationID, err)
	}
	return nil
}

func (Postgres) FetchAppliedIDs(ctx context.Context, p Pool, schema, prefix string) ([]string, error) {
	rows, err := p.(*pgxpool.Pool).Query(ctx, fmt.Sprintf(`SELECT id FROM %s`, migTable(schema, prefix)))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch applied ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan applied id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (Postgres) FetchHistory(ctx context.Context, p Pool, schema, prefix string) ([]HistoryEntry, error) {
	rows, err := p.(*pgxpool.Pool).Query(ctx, fmt.Sprintf(
		`SELECT id, created_at, comment, locked FROM %s ORDER BY id ASC`, migTable(schema, prefix)))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.Comment, &e.Locked); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (Postgres) FetchDownSQL(ctx context.Context, p Pool, schema, prefix, id string) (string, bool, error) {
	var down string
	err := p.(*pgxpool.Pool).QueryRow(ctx, fmt.Sprintf(`SELECT down FROM %s WHERE id = $1`, migTable(schema, prefix)), id).Scan(&down)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to fetch down sql for %s: %w", id, err)
	}
	return down, true, nil
}

func (Postgres) FetchAllMigrations(ctx context.Context, p Pool, schema, prefix string) ([]StoredMigration, error) {
	rows, err := p.(*pgxpool.Pool).Query(ctx, fmt.Sprintf(
		`SELECT id, up, down, comment FROM %s ORDER BY id ASC`, migTable(schema, prefix)))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch all migrations: %w", err)
	}
	defer rows.Close()

	var out []StoredMigration
	for rows.Next() {
		var m StoredMigration
		if err := rows.Scan(&m.ID, &m.Up, &m.Down, &m.Comment); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (Postgres) IsLocked(ctx context.Context, p Pool, schema, prefix, id string) (bool, error) {
	var locked bool
	err := p.(*pgxpool.Pool).QueryRow(ctx, fmt.Sprintf(`SELECT locked FROM %s WHERE id = $1`, migTable(schema, prefix)), id).Scan(&locked)
	if err == pgx.ErrNoRows {
		return false, fmt.Errorf("migration %s is not applied", id)
	}
	if err != nil {
		return false, fmt.Errorf("failed to check lock state for %s: %w", id, err)
	}
	return locked, nil
}
