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

// Package config holds the qop.toml schema: a tagged-union subsystem
// selector (exactly one of postgres or sqlite), a tagged-union connection
// source (static string or an environment variable name), and the
// version acceptance specification checked against the running engine.
package config

import (
	"fmt"
	"regexp"

	"github.com/cchexcode/qop/internal/version"
)

// Connection is a tagged union: exactly one of Static or FromEnv is set.
// It is resolved lazily, at connect time, so a missing environment
// variable only surfaces as an error when a connection is actually
// attempted.
type Connection struct {
	Static string `mapstructure:"static"`
	FromEnv string `mapstructure:"from_env"`
}

// Resolve returns the concrete connection string, reading the
// environment only when the config names a FromEnv variable.
func (c Connection) Resolve(lookupEnv func(string) (string, bool)) (string, error) {
	if c.Static != "" {
		return c.Static, nil
	}
	if c.FromEnv == "" {
		return "", fmt.Errorf("connection must set either `static` or `from_env`")
	}
	val, ok := lookupEnv(c.FromEnv)
	if !ok || val == "" {
		return "", fmt.Errorf("environment variable %q is not set", c.FromEnv)
	}
	return val, nil
}

// PostgresConfig is the `[subsystem.postgres]` table.
type PostgresConfig struct {
	Connection  Connection `mapstructure:"connection"`
	Schema      string     `mapstructure:"schema"`
	TablePrefix string     `mapstructure:"table_prefix"`
	TimeoutSecs int        `mapstructure:"timeout"`
}

// SQLiteConfig is the `[subsystem.sqlite]` table.
type SQLiteConfig struct {
	Connection  Connection `mapstructure:"connection"`
	TablePrefix string     `mapstructure:"table_prefix"`
	TimeoutSecs int        `mapstructure:"timeout"`
}

// Subsystem is a tagged union: exactly one of Postgres or SQLite is
// non-nil, mirroring `{postgres: PgCfg} | {sqlite: SqliteCfg}`.
type Subsystem struct {
	Postgres *PostgresConfig `mapstructure:"postgres"`
	SQLite   *SQLiteConfig   `mapstructure:"sqlite"`
}

// Kind identifies which subsystem variant is populated.
type Kind string

const (
	KindPostgres Kind = "postgres"
	KindSQLite   Kind = "sqlite"
)

// Kind returns which backend this subsystem selects.
func (s Subsystem) Kind() (Kind, error) {
	switch {
	case s.Postgres != nil && s.SQLite != nil:
		return "", fmt.Errorf("qop.toml must set exactly one of [subsystem.postgres] or [subsystem.sqlite], not both")
	case s.Postgres != nil:
		return KindPostgres, nil
	case s.SQLite != nil:
		return KindSQLite, nil
	default:
		return "", fmt.Errorf("qop.toml must set one of [subsystem.postgres] or [subsystem.sqlite]")
	}
}

// Config is the decoded qop.toml document.
type Config struct {
	Version   string    `mapstructure:"version"`
	Subsystem Subsystem `mapstructure:"subsystem"`
}

var tablePrefixRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Validate checks the decoded config for internal consistency: exactly
// one subsystem, a well-formed table prefix (it is interpolated directly
// into DDL and cannot be parameterized), and engine/version compatibility.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("qop.toml: `version` is required")
	}
	if err := version.CheckEngineCompatibility(c.Version); err != nil {
		return err
	}

	kind, err := c.Subsystem.Kind()
	if err != nil {
		return err
	}

	prefix := c.TablePrefix()
	if prefix == "" {
		return fmt.Errorf("qop.toml: `table_prefix` is required")
	}
	if !tablePrefixRE.MatchString(prefix) {
		return fmt.Errorf("qop.toml: table_prefix %q is not a valid identifier (must match %s)", prefix, tablePrefixRE.String())
	}

	if kind == KindPostgres && c.Subsystem.Postgres.Schema == "" {
		c.Subsystem.Postgres.Schema = "public"
	}

	return nil
}

// TablePrefix returns the configured table prefix regardless of which
// subsystem variant is active.
func (c *Config) TablePrefix() string {
	switch {
	case c.Subsystem.Postgres != nil:
		return c.Subsystem.Postgres.TablePrefix
	case c.Subsystem.SQLite != nil:
		return c.Subsystem.SQLite.TablePrefix
	default:
		return ""
	}
}

// TimeoutSeconds returns the configured per-transaction timeout, or 0
// (no timeout) if unset.
func (c *Config) TimeoutSeconds() int {
	switch {
	case c.Subsystem.Postgres != nil:
		return c.Subsystem.Postgres.TimeoutSecs
	case c.Subsystem.SQLite != nil:
		return c.Subsystem.SQLite.TimeoutSecs
	default:
		return 0
	}
}
