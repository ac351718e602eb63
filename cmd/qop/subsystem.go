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
package main

import (
	"github.com/spf13/cobra"

	"github.com/cchexcode/qop/internal/clierr"
	"github.com/cchexcode/qop/pkg/config"
	"github.com/cchexcode/qop/pkg/dispatcher"
)

// subsystemCmd is the `qop subsystem <pg|sqlite> ...` parent; each
// backend gets an identical command tree built by buildSubsystemCmd,
// dispatched against a different config.Kind.
var subsystemCmd = &cobra.Command{
	Use:   "subsystem",
	Short: "Backend-specific migration commands",
}

func init() {
	subsystemCmd.AddCommand(buildSubsystemCmd(config.KindPostgres, "pg"))
	subsystemCmd.AddCommand(buildSubsystemCmd(config.KindSQLite, "sqlite"))
}

// buildSubsystemCmd constructs the full init/new/up/down/list/history/
// apply/diff tree for one backend kind.
func buildSubsystemCmd(kind config.Kind, use string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: "Migration commands against the " + string(kind) + " backend",
	}

	subsystemInit := &cobra.Command{
		Use:   "init",
		Short: "Create the ledger tables",
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			sess, err := openSession(ctx, c, kind)
			if err != nil {
				return err
			}
			defer sess.Close()
			return sess.Service.Init(ctx)
		},
	}
	addPathFlag(subsystemInit)

	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Create a new migration directory",
		RunE: func(c *cobra.Command, args []string) error {
			path, err := c.Flags().GetString("path")
			if err != nil {
				return err
			}
			comment := optionalStringFlag(c, "comment")
			locked, err := c.Flags().GetBool("locked")
			if err != nil {
				return err
			}

			store := newStore(path)
			svc := serviceOverStore(store)
			id, err := svc.NewMigration(comment, locked)
			if err != nil {
				return err
			}
			c.Printf("id=%s\n", id)
			return nil
		},
	}
	addPathFlag(newCmd)
	newCmd.Flags().String("comment", "", "migration comment (default: auto-generated)")
	newCmd.Flags().Bool("locked", false, "create the migration already locked")

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			sess, err := openSession(ctx, c, kind)
			if err != nil {
				return err
			}
			defer sess.Close()

			yes, _ := c.Flags().GetBool("yes")
			dry, _ := c.Flags().GetBool("dry")
			count := optionalIntFlag(c, "count")
			timeout := effectiveTimeout(c, sess)
			return sess.Service.Up(ctx, count, timeout, yes, dry)
		},
	}
	addPathFlag(upCmd)
	addYesDryFlags(upCmd)
	addTimeoutFlag(upCmd)
	upCmd.Flags().IntP("count", "c", -1, "limit how many pending migrations to apply")

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Revert the most recently applied migrations",
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			sess, err := openSession(ctx, c, kind)
			if err != nil {
				return err
			}
			defer sess.Close()

			yes, _ := c.Flags().GetBool("yes")
			dry, _ := c.Flags().GetBool("dry")
			remote, _ := c.Flags().GetBool("remote")
			unlock, _ := c.Flags().GetBool("unlock")
			count, _ := c.Flags().GetInt("count")
			timeout := effectiveTimeout(c, sess)
			return sess.Service.Down(ctx, count, timeout, remote, yes, dry, unlock)
		},
	}
	addPathFlag(downCmd)
	addYesDryFlags(downCmd)
	addTimeoutFlag(downCmd)
	downCmd.Flags().IntP("count", "c", 1, "how many applied migrations to revert")
	downCmd.Flags().BoolP("remote", "r", false, "revert using the down-SQL stored in the ledger rather than local files")
	downCmd.Flags().Bool("unlock", false, "revert locked migrations too")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List local and applied migrations",
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			sess, err := openSession(ctx, c, kind)
			if err != nil {
				return err
			}
			defer sess.Close()

			output, _ := c.Flags().GetString("output")
			return sess.Service.List(ctx, output)
		},
	}
	addPathFlag(listCmd)
	listCmd.Flags().StringP("output", "o", "human", "output format: human or json")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Repair or synchronise migration history",
	}
	historySync := &cobra.Command{
		Use:   "sync",
		Short: "Materialise ledger-only migrations onto the filesystem",
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			sess, err := openSession(ctx, c, kind)
			if err != nil {
				return err
			}
			defer sess.Close()
			return sess.Service.HistorySync(ctx)
		},
	}
	addPathFlag(historySync)
	historyFix := &cobra.Command{
		Use:   "fix",
		Short: "Re-sequence locally-pending migrations above the latest applied id",
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			sess, err := openSession(ctx, c, kind)
			if err != nil {
				return err
			}
			defer sess.Close()
			return sess.Service.HistoryFix(ctx)
		},
	}
	addPathFlag(historyFix)
	historyCmd.AddCommand(historySync, historyFix)

	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply or revert a single targeted migration",
	}
	applyUp := &cobra.Command{
		Use:   "up <id>",
		Short: "Apply a single pending migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			sess, err := openSession(ctx, c, kind)
			if err != nil {
				return err
			}
			defer sess.Close()

			yes, _ := c.Flags().GetBool("yes")
			dry, _ := c.Flags().GetBool("dry")
			timeout := effectiveTimeout(c, sess)
			return sess.Service.ApplyUp(ctx, stripIDPrefix(args[0]), timeout, yes, dry)
		},
	}
	addPathFlag(applyUp)
	addYesDryFlags(applyUp)
	addTimeoutFlag(applyUp)

	applyDown := &cobra.Command{
		Use:   "down <id>",
		Short: "Revert a single applied migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			sess, err := openSession(ctx, c, kind)
			if err != nil {
				return err
			}
			defer sess.Close()

			yes, _ := c.Flags().GetBool("yes")
			dry, _ := c.Flags().GetBool("dry")
			remote, _ := c.Flags().GetBool("remote")
			unlock, _ := c.Flags().GetBool("unlock")
			timeout := effectiveTimeout(c, sess)
			return sess.Service.ApplyDown(ctx, stripIDPrefix(args[0]), timeout, remote, yes, dry, unlock)
		},
	}
	addPathFlag(applyDown)
	addYesDryFlags(applyDown)
	addTimeoutFlag(applyDown)
	applyDown.Flags().BoolP("remote", "r", false, "revert using the down-SQL stored in the ledger rather than local files")
	applyDown.Flags().Bool("unlock", false, "revert a locked migration")
	applyCmd.AddCommand(applyUp, applyDown)

	diffCmd := &cobra.Command{
		Use:   "diff",
		Short: "Show pending SQL without applying it (experimental)",
		RunE: func(c *cobra.Command, args []string) error {
			if !experimental {
				return clierr.Usagef("`diff` requires the top-level --experimental flag")
			}
			ctx := c.Context()
			sess, err := openSession(ctx, c, kind)
			if err != nil {
				return err
			}
			defer sess.Close()
			count := optionalIntFlag(c, "count")
			return sess.Service.Diff(ctx, count)
		},
	}
	addPathFlag(diffCmd)
	diffCmd.Flags().IntP("count", "c", -1, "limit how many pending migrations to show")

	cmd.AddCommand(subsystemInit, newCmd, upCmd, downCmd, listCmd, historyCmd, applyCmd, diffCmd)
	return cmd
}

func stripIDPrefix(raw string) string {
	const prefix = "id="
	if len(raw) > len(prefix) && raw[:len(prefix)] == prefix {
		return raw[len(prefix):]
	}
	return raw
}

func addYesDryFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("yes", "y", false, "answer yes to all confirmation prompts")
	cmd.Flags().Bool("dry", false, "execute but roll back instead of committing")
}

func addTimeoutFlag(cmd *cobra.Command) {
	cmd.Flags().IntP("timeout", "t", 0, "per-transaction timeout in seconds (0 = use qop.toml's configured default)")
}

func timeoutFlag(cmd *cobra.Command) *int {
	secs, err := cmd.Flags().GetInt("timeout")
	if err != nil || secs <= 0 {
		return nil
	}
	ms := secs * 1000
	return &ms
}

// effectiveTimeout returns the explicit `-t/--timeout` flag when the
// operator passed one, else falls back to qop.toml's configured default
// for the dispatched subsystem.
func effectiveTimeout(cmd *cobra.Command, sess *dispatcher.Session) *int {
	if ms := timeoutFlag(cmd); ms != nil {
		return ms
	}
	return sess.DefaultTimeoutMS
}
