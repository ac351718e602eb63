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
	"database/sql"
	"fmt"

	_ "github.com/cchexcode/qop/internal/sqlitedriver" // registers "sqlite3" driver
)

// SQLite is the Backend Adapter for SQLite, built on database/sql.
// Schema is accepted by the Adapter interface for symmetry with Postgres
// but ignored: SQLite has no schema concept.
type SQLite struct{}

var _ Adapter = SQLite{}

func (SQLite) Connect(ctx context.Context, connStr string, _ int) (Pool, error) {
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single open connection avoids lock contention against the one file.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return db, nil
}

func (SQLite) Close(p Pool) error {
	return p.(*sql.DB).Close()
}

func (SQLite) Begin(ctx context.Context, p Pool) (Tx, error) {
	tx, err := p.(*sql.DB).BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin sqlite transaction: %w", err)
	}
	return tx, nil
}

func (SQLite) Commit(ctx context.Context, t Tx) error {
	if err := t.(*sql.Tx).Commit(); err != nil {
		return fmt.Errorf("failed to commit sqlite transaction: %w", err)
	}
	return nil
}

func (SQLite) Rollback(ctx context.Context, t Tx) error {
	if err := t.(*sql.Tx).Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("failed to roll back sqlite transaction: %w", err)
	}
	return nil
}

func (SQLite) SetTimeout(ctx context.Context, t Tx, ms *int) error {
	if ms == nil {
		return nil
	}
	if _, err := t.(*sql.Tx).ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", *ms)); err != nil {
		return fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	return nil
}

func (SQLite) ExecSQL(ctx context.Context, t Tx, sql string) error {
	if _, err := t.(*sql.Tx).ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

func sqliteMigTable(prefix string) string { return prefix + "_migrations" }
func sqliteLogTable(prefix string) string { return prefix + "_log" }

func (SQLite) InitLedger(ctx context.Context, t Tx, _ /*schema*/, prefix string) error {
	tx := t.(*sql.Tx)
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id          TEXT PRIMARY KEY,
	version     TEXT NOT NULL,
	up          TEXT NOT NULL,
	down        TEXT NOT NULL,
	pre         TEXT,
	comment     TEXT,
	locked      INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL DEFAULT (strftime('%%Y-%%m-%%dT%%H:%%M:%%fZ', 'now'))
);
CREATE TABLE IF NOT EXISTS %s (
	id            TEXT PRIMARY KEY,
	migration_id  TEXT NOT NULL,
	operation     TEXT NOT NULL,
	sql_command   TEXT NOT NULL,
	executed_at   TEXT NOT NULL DEFAULT (strftime('%%Y-%%m-%%dT%%H:%%M:%%fZ', 'now'))
);
`, sqliteMigTable(prefix), sqliteLogTable(prefix))
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialise ledger tables: %w", err)
	}
	return nil
}

func (SQLite) InsertLedgerRow(ctx context.Context, t Tx, _, prefix string, row LedgerRow) error {
	tx := t.(*sql.Tx)
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (id, version, up, down, pre, comment, locked) VALUES (?, ?, ?, ?, ?, ?, ?)
`, sqliteMigTable(prefix)), row.ID, row.Version, row.Up, row.Down, row.Pre, row.Comment, row.Locked)
	if err != nil {
		return fmt.Errorf("failed to insert ledger row for %s: %w", row.ID, err)
	}
	return nil
}

func (SQLite) DeleteLedgerRowByID(ctx context.Context, t Tx, _, prefix, id string) error {
	tx := t.(*sql.Tx)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, sqliteMigTable(prefix)), id); err != nil {
		return fmt.Errorf("failed to delete ledger row for %s: %w", id, err)
	}
	return nil
}

func (SQLite) InsertLogRow(ctx context.Context, t Tx, _, prefix string, row LogRow) error {
	tx := t.(*sql.Tx)
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (id, migration_id, operation, sql_command) VALUES (?, ?, ?, ?)
`, sqliteLogTable(prefix)), row.ID, row.MigrationID, row.Operation, row.SQLCommand)
	if err != nil {
		return fmt.Errorf("failed to insert log row for %s: %w", row.MigrationID, err)
	}
	return nil
}

func (SQLite) FetchAppliedIDs(ctx context.Context, p Pool, _, prefix string) ([]string, error) {
	rows, err := p.(*sql.DB).QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s`, sqliteMigTable(prefix)))
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

func (SQLite) FetchHistory(ctx context.Context, p Pool, _, prefix string) ([]HistoryEntry, error) {
	rows, err := p.(*sql.DB).QueryContext(ctx, fmt.Sprintf(
		`SELECT id, created_at, comment, locked FROM %s ORDER BY id ASC`, sqliteMigTable(prefix)))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var createdAt string
		var locked int
		if err := rows.Scan(&e.ID, &createdAt, &e.Comment, &locked); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Locked = locked != 0
		e.CreatedAt = parseSQLiteTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (SQLite) FetchDownSQL(ctx context.Context, p Pool, _, prefix, id string) (string, bool, error) {
	var down string
	err := p.(*sql.DB).QueryRowContext(ctx, fmt.Sprintf(`SELECT down FROM %s WHERE id = ?`, sqliteMigTable(prefix)), id).Scan(&down)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to fetch down sql for %s: %w", id, err)
	}
	return down, true, nil
}

func (SQLite) FetchAllMigrations(ctx context.Context, p Pool, _, prefix string) ([]StoredMigration, error) {
	rows, err := p.(*sql.DB).QueryContext(ctx, fmt.Sprintf(
		`SELECT id, up, down, comment FROM %s ORDER BY id ASC`, sqliteMigTable(prefix)))
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

func (SQLite) IsLocked(ctx context.Context, p Pool, _, prefix, id string) (bool, error) {
	var locked int
	err := p.(*sql.DB).QueryRowContext(ctx, fmt.Sprintf(`SELECT locked FROM %s WHERE id = ?`, sqliteMigTable(prefix)), id).Scan(&locked)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("migration %s is not applied", id)
	}
	if err != nil {
		return false, fmt.Errorf("failed to check lock state for %s: %w", id, err)
	}
	return locked != 0, nil
}
