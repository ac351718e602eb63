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
	"context"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cchexcode/qop/pkg/config"
	"github.com/cchexcode/qop/pkg/dispatcher"
	"github.com/cchexcode/qop/pkg/fsstore"
	"github.com/cchexcode/qop/pkg/migrate"
)

// newStore opens the Filesystem Store rooted at path, for commands
// (like `new`) that touch only the on-disk migration tree and never
// need a database connection.
func newStore(path string) *fsstore.Store {
	return fsstore.New(path)
}

// serviceOverStore builds a Service with no backing Repository, valid
// only for operations that never call through s.Repo (NewMigration).
func serviceOverStore(store *fsstore.Store) *migrate.Service {
	return migrate.New(nil, store, os.Stdin, os.Stdout, os.Stderr, false)
}

// openSession loads qop.toml from the path flag, dispatches the
// matching Backend Adapter, and returns a ready-to-use Session.
// Callers must defer sess.Close().
func openSession(ctx context.Context, cmd *cobra.Command, kind config.Kind) (*dispatcher.Session, error) {
	path, err := cmd.Flags().GetString("path")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	store := fsstore.New(path)

	isTTY := term.IsTerminal(int(os.Stdin.Fd()))

	return dispatcher.Dispatch(ctx, cfg, store, dispatcher.Options{
		Backend: kind,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		IsTTY:   isTTY,
	})
}

// addPathFlag registers the `-p/--path` flag shared by every subsystem
// subcommand.
func addPathFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("path", "p", ".", "directory containing qop.toml and the migration tree")
}

func optionalIntFlag(cmd *cobra.Command, name string) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetInt(name)
	if err != nil {
		return nil
	}
	return &v
}

func optionalStringFlag(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil || v == "" {
		return nil
	}
	return &v
}
