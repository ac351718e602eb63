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
package pgxdriver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig describes how to connect and size a Postgres pool. Either
// Dsn or Host+Database must be set; Dsn takes precedence.
type PoolConfig struct {
	Dsn      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	Schema   string

	MaxConns                   int32
	MinConns                   int32
	MaxConnIdleTimeSeconds     int
	MaxConnLifetimeSeconds     int
	HealthCheckIntervalSeconds int
}

// NewPool creates a pgxpool.Pool from a PoolConfig, pinning the session
// search_path to cfg.Schema via an AfterConnect hook so every connection
// in the pool resolves the ledger tables the same way.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	dsn := buildDSN(cfg)
	if dsn == "" {
		return nil, fmt.Errorf("postgres configuration requires either dsn or host+database")
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}

	applyPoolConfig(poolCfg, cfg)

	schema := cfg.Schema
	if schema == "" {
		schema = "public"
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return pool, nil
}

// buildDSN constructs a PostgreSQL connection string from cfg. Values are
// single-quoted per libpq keyword/value format to handle special
// characters (spaces, @, =, etc.) safely. See:
// https://www.postgresql.org/docs/current/libpq-connect.html#LIBPQ-CONNSTRING
func buildDSN(cfg PoolConfig) string {
	if cfg.Dsn != "" {
		return cfg.Dsn
	}

	host := cfg.Host
	if host == "" {
		return ""
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	database := cfg.Database
	if database == "" {
		return ""
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		dsnQuoteValue(host), port, dsnQuoteValue(database), dsnQuoteValue(sslMode))

	if cfg.User != "" {
		dsn += fmt.Sprintf(" user=%s", dsnQuoteValue(cfg.User))
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", dsnQuoteValue(cfg.Password))
	}

	return dsn
}

// dsnQuoteValue quotes a value for use in a libpq keyword/value connection string.
// Per the PostgreSQL documentation, values containing spaces, special characters,
// or that are empty must be enclosed in single quotes. Within quoted values,
// single quotes and backslashes must be escaped with a backslash.
// For simplicity and safety, we always quote all values.
func dsnQuoteValue(val string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(val)
	return "'" + escaped + "'"
}

// applyPoolConfig maps PoolConfig pool settings onto pgxpool.Config,
// falling back to fixed defaults for anything left at its zero value.
func applyPoolConfig(poolCfg *pgxpool.Config, cfg PoolConfig) {
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 25
	}

	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	} else {
		poolCfg.MinConns = 5
	}

	if cfg.MaxConnIdleTimeSeconds > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.MaxConnIdleTimeSeconds) * time.Second
	} else {
		poolCfg.MaxConnIdleTime = 5 * time.Minute
	}

	if cfg.MaxConnLifetimeSeconds > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.MaxConnLifetimeSeconds) * time.Second
	} else {
		poolCfg.MaxConnLifetime = 1 * time.Hour
	}

	if cfg.HealthCheckIntervalSeconds > 0 {
		poolCfg.HealthCheckPeriod = time.Duration(cfg.HealthCheckIntervalSeconds) * time.Second
	} else {
		poolCfg.HealthCheckPeriod = 30 * time.Second
	}
}
