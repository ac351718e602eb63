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

// Package migrate implements the backend-agnostic Migration Service:
// pending-set computation, linearity checking, the operator confirm/
// diff/decline interaction, per-migration transaction sequencing, the
// history repair operations, and list rendering. It is
// generic over any ledger.Repository-shaped store, so the same Service
// drives both the Postgres and SQLite backends.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/user"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cchexcode/qop/internal/clierr"
	"github.com/cchexcode/qop/internal/log"
	"github.com/cchexcode/qop/pkg/backend"
	"github.com/cchexcode/qop/pkg/fsstore"
	"github.com/cchexcode/qop/pkg/ledger"

	"go.uber.org/zap"
)

// Repository is the capability set the Service needs from a ledger
// repository. ledger.Repository implements it.
type Repository interface {
	InitStore(ctx context.Context) error
	FetchAppliedIDs(ctx context.Context) (map[string]struct{}, error)
	FetchLastID(ctx context.Context) (string, bool, error)
	FetchHistory(ctx context.Context) ([]backend.HistoryEntry, error)
	FetchDownSQL(ctx context.Context, id string) (string, bool, error)
	FetchAllMigrations(ctx context.Context) ([]backend.StoredMigration, error)
	IsLocked(ctx context.Context, id string) (bool, error)
	ApplyMigration(ctx context.Context, id, upSQL, downSQL string, comment, pre *string, timeoutMS *int, dryRun, locked bool) error
	RevertMigration(ctx context.Context, id, downSQL string, timeoutMS *int, dryRun, unlock bool) error
}

var _ Repository = (*ledger.Repository)(nil)

// Service orchestrates one backend's migrations against its Repository
// and on-disk Store.
type Service struct {
	Repo  Repository
	Store *fsstore.Store

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	IsTTY  bool
}

// New constructs a Service over an already-built Repository and Store.
func New(repo Repository, store *fsstore.Store, stdin io.Reader, stdout, stderr io.Writer, isTTY bool) *Service {
	return &Service{Repo: repo, Store: store, Stdin: stdin, Stdout: stdout, Stderr: stderr, IsTTY: isTTY}
}

func currentUser() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "unknown"
	}
	return u.Username
}

// Init ensures both ledger tables exist.
func (s *Service) Init(ctx context.Context) error {
	return s.Repo.InitStore(ctx)
}

// NewMigration creates a new on-disk migration directory.
func (s *Service) NewMigration(comment *string, locked bool) (string, error) {
	return s.Store.CreateMigration(currentUser(), comment, locked)
}

func sortedStrings(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func maxString(ss []string) (string, bool) {
	if len(ss) == 0 {
		return "", false
	}
	m := ss[0]
	for _, s := range ss[1:] {
		if s > m {
			m = s
		}
	}
	return m, true
}

// pendingIDs returns locally-present, not-yet-applied migration IDs in
// ascending order, truncated to count if given and non-negative.
func (s *Service) pendingIDs(ctx context.Context, count *int) ([]string, map[string]struct{}, error) {
	localSet, err := s.Store.GetLocalIDs()
	if err != nil {
		return nil, nil, err
	}
	appliedSet, err := s.Repo.FetchAppliedIDs(ctx)
	if err != nil {
		return nil, nil, err
	}

	var pending []string
	for id := range localSet {
		if _, ok := appliedSet[id]; !ok {
			pending = append(pending, id)
		}
	}
	sort.Strings(pending)
	if count != nil && *count >= 0 && *count < len(pending) {
		pending = pending[:*count]
	}
	return pending, appliedSet, nil
}

// Up applies pending migrations in ascending ID order.
func (s *Service) Up(ctx context.Context, count *int, timeoutMS *int, yes, dryRun bool) error {
	pending, appliedSet, err := s.pendingIDs(ctx, count)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		fmt.Fprintln(s.Stderr, "up to date")
		return nil
	}

	appliedIDs := sortedStrings(appliedSet)
	if maxApplied, ok := maxString(appliedIDs); ok {
		var outOfOrder []string
		for _, id := range pending {
			if id < maxApplied {
				outOfOrder = append(outOfOrder, id)
			}
		}
		if len(outOfOrder) > 0 {
			fmt.Fprintf(s.Stderr, "warning: %d pending migration(s) are older than the latest applied migration %s: %s\n",
				len(outOfOrder), maxApplied, strings.Join(outOfOrder, ", "))
			fmt.Fprintln(s.Stderr, "recommend running `history fix` before continuing")
			proceed, err := confirm(s.Stdin, s.Stderr, "continue applying out-of-order migrations?", "", yes, s.IsTTY)
			if err != nil {
				return err
			}
			if !proceed {
				fmt.Fprintln(s.Stderr, "cancelled")
				return clierr.Safetyf("operator declined to continue with a non-linear pending set")
			}
		}
	}

	fmt.Fprintf(s.Stderr, "pending migrations (%d): %s\n", len(pending), strings.Join(pending, ", "))
	diff, err := s.concatUpSQL(pending)
	if err != nil {
		return err
	}
	proceed, err := confirm(s.Stdin, s.Stderr, "apply these?", diff, yes, s.IsTTY)
	if err != nil {
		return err
	}
	if !proceed {
		fmt.Fprintln(s.Stderr, "cancelled")
		return nil
	}

	previous, _, err := s.Repo.FetchLastID(ctx)
	if err != nil {
		return err
	}

	applied := 0
	for _, id := range pending {
		mig, err := s.Store.ReadMigration(id)
		if err != nil {
			return fmt.Errorf("up %s: %w", id, err)
		}
		var pre *string
		if previous != "" {
			p := previous
			pre = &p
		}
		if err := s.Repo.ApplyMigration(ctx, id, mig.Up, mig.Down, mig.Meta.Comment, pre, timeoutMS, dryRun, mig.Meta.Locked); err != nil {
			return fmt.Errorf("up %s: %w", id, err)
		}
		previous = id
		applied++
		log.Info("applied migration", zap.String("migration_id", id))
	}

	fmt.Fprintf(s.Stderr, "applied %d migration(s)\n", applied)
	return nil
}

func (s *Service) concatUpSQL(ids []string) (string, error) {
	var b strings.Builder
	for _, id := range ids {
		mig, err := s.Store.ReadMigration(id)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", id, err)
		}
		fmt.Fprintf(&b, "-- id=%s/up.sql\n%s\n", id, mig.Up)
	}
	return b.String(), nil
}

// Diff prints the pending migration set's raw up.sql to stdout without
// touching the database: no confirmation prompt, no transaction, no
// ledger writes. count limits how many pending migrations are shown,
// same as Up.
func (s *Service) Diff(ctx context.Context, count *int) error {
	pending, _, err := s.pendingIDs(ctx, count)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Fprintln(s.Stderr, "up to date")
		return nil
	}
	diff, err := s.concatUpSQL(pending)
	if err != nil {
		return err
	}
	fmt.Fprint(s.Stdout, diff)
	return nil
}

func (s *Service) concatDownSQL(ids []string, remote bool) (string, error) {
	var b strings.Builder
	for _, id := range ids {
		var sql string
		if remote {
			downSQL, ok, err := s.Repo.FetchDownSQL(context.Background(), id)
			if err != nil {
				return "", err
			}
			if !ok {
				return "", fmt.Errorf("no stored down-sql for %s", id)
			}
			sql = downSQL
		} else {
			mig, err := s.Store.ReadMigration(id)
			if err != nil {
				return "", fmt.Errorf("read %s: %w", id, err)
			}
			sql = mig.Down
		}
		fmt.Fprintf(&b, "-- id=%s/down.sql\n%s\n", id, sql)
	}
	return b.String(), nil
}

// Down reverts the `count` most-recently applied migrations, newest
// first.
func (s *Service) Down(ctx context.Context, count int, timeoutMS *int, remote, yes, dryRun, unlock bool) error {
	appliedSet, err := s.Repo.FetchAppliedIDs(ctx)
	if err != nil {
		return err
	}
	if len(appliedSet) == 0 {
		fmt.Fprintln(s.Stderr, "nothing to revert")
		return nil
	}

	appliedIDs := sortedStrings(appliedSet)
	sort.Sort(sort.Reverse(sort.StringSlice(appliedIDs)))
	if count < len(appliedIDs) {
		appliedIDs = appliedIDs[:count]
	}

	fmt.Fprintf(s.Stderr, "reverting migrations (%d): %s\n", len(appliedIDs), strings.Join(appliedIDs, ", "))
	diff, err := s.concatDownSQL(appliedIDs, remote)
	if err != nil {
		return err
	}
	proceed, err := confirm(s.Stdin, s.Stderr, "revert these?", diff, yes, s.IsTTY)
	if err != nil {
		return err
	}
	if !proceed {
		fmt.Fprintln(s.Stderr, "cancelled")
		return nil
	}

	reverted := 0
	for _, id := range appliedIDs {
		var downSQL string
		if remote {
			sql, ok, err := s.Repo.FetchDownSQL(ctx, id)
			if err != nil {
				return fmt.Errorf("down %s: %w", id, err)
			}
			if !ok {
				return fmt.Errorf("down %s: no stored down-sql available", id)
			}
			downSQL = sql
		} else {
			mig, err := s.Store.ReadMigration(id)
			if err != nil {
				return fmt.Errorf("down %s: %w", id, err)
			}
			downSQL = mig.Down
		}

		if err := s.Repo.RevertMigration(ctx, id, downSQL, timeoutMS, dryRun, unlock); err != nil {
			return err
		}
		reverted++
		log.Info("reverted migration", zap.String("migration_id", id))
	}

	fmt.Fprintf(s.Stderr, "reverted %d migration(s)\n", reverted)
	return nil
}

// ApplyUp applies a single targeted migration id; its predecessors
// must already be applied.
func (s *Service) ApplyUp(ctx context.Context, id string, timeoutMS *int, yes, dryRun bool) error {
	localSet, err := s.Store.GetLocalIDs()
	if err != nil {
		return err
	}
	if _, ok := localSet[id]; !ok {
		return clierr.Usagef("migration %s is not present locally", id)
	}
	appliedSet, err := s.Repo.FetchAppliedIDs(ctx)
	if err != nil {
		return err
	}
	if _, ok := appliedSet[id]; ok {
		return clierr.Usagef("migration %s is already applied", id)
	}
	for localID := range localSet {
		if localID < id {
			if _, applied := appliedSet[localID]; !applied {
				return clierr.Usagef("migration %s has an unapplied predecessor %s; apply it first or use `up`", id, localID)
			}
		}
	}

	mig, err := s.Store.ReadMigration(id)
	if err != nil {
		return fmt.Errorf("apply up %s: %w", id, err)
	}

	proceed, err := confirm(s.Stdin, s.Stderr, fmt.Sprintf("apply %s?", id), mig.Up, yes, s.IsTTY)
	if err != nil {
		return err
	}
	if !proceed {
		fmt.Fprintln(s.Stderr, "cancelled")
		return nil
	}

	previous, _, err := s.Repo.FetchLastID(ctx)
	if err != nil {
		return err
	}
	var pre *string
	if previous != "" {
		pre = &previous
	}
	if err := s.Repo.ApplyMigration(ctx, id, mig.Up, mig.Down, mig.Meta.Comment, pre, timeoutMS, dryRun, mig.Meta.Locked); err != nil {
		return fmt.Errorf("apply up %s: %w", id, err)
	}
	fmt.Fprintf(s.Stderr, "applied %s\n", id)
	return nil
}

// ApplyDown reverts a single targeted migration id; it must currently
// be applied.
func (s *Service) ApplyDown(ctx context.Context, id string, timeoutMS *int, remote, yes, dryRun, unlock bool) error {
	appliedSet, err := s.Repo.FetchAppliedIDs(ctx)
	if err != nil {
		return err
	}
	if _, ok := appliedSet[id]; !ok {
		return clierr.Usagef("migration %s is not applied", id)
	}

	var downSQL string
	if remote {
		sql, ok, err := s.Repo.FetchDownSQL(ctx, id)
		if err != nil {
			return fmt.Errorf("apply down %s: %w", id, err)
		}
		if !ok {
			return fmt.Errorf("apply down %s: no stored down-sql available", id)
		}
		downSQL = sql
	} else {
		mig, err := s.Store.ReadMigration(id)
		if err != nil {
			return fmt.Errorf("apply down %s: %w", id, err)
		}
		downSQL = mig.Down
	}

	proceed, err := confirm(s.Stdin, s.Stderr, fmt.Sprintf("revert %s?", id), downSQL, yes, s.IsTTY)
	if err != nil {
		return err
	}
	if !proceed {
		fmt.Fprintln(s.Stderr, "cancelled")
		return nil
	}

	if err := s.Repo.RevertMigration(ctx, id, downSQL, timeoutMS, dryRun, unlock); err != nil {
		return err
	}
	fmt.Fprintf(s.Stderr, "reverted %s\n", id)
	return nil
}

// ListEntry is one row of `list` output.
type ListEntry struct {
	ID      string     `json:"id"`
	Remote  *time.Time `json:"remote,omitempty"`
	Local   bool       `json:"local"`
	Comment *string    `json:"comment,omitempty"`
	Locked  bool       `json:"locked"`
}

// List computes the union of local and remote migrations and renders
// it as either a tabular report ("human") or a JSON array ("json").
// JSON output is the only content written to stdout in that mode, so
// it stays pipeable into jq or another consumer.
func (s *Service) List(ctx context.Context, output string) error {
	localSet, err := s.Store.GetLocalIDs()
	if err != nil {
		return err
	}
	history, err := s.Repo.FetchHistory(ctx)
	if err != nil {
		return err
	}

	entries := make(map[string]*ListEntry)
	for id := range localSet {
		entries[id] = &ListEntry{ID: id, Local: true}
	}
	for _, h := range history {
		e, ok := entries[h.ID]
		if !ok {
			e = &ListEntry{ID: h.ID}
			entries[h.ID] = e
		}
		createdAt := h.CreatedAt
		e.Remote = &createdAt
		e.Comment = h.Comment
		e.Locked = h.Locked
	}
	for id, e := range entries {
		if e.Remote != nil || e.Comment != nil {
			continue
		}
		mig, err := s.Store.ReadMigration(id)
		if err != nil {
			continue
		}
		e.Comment = mig.Meta.Comment
		e.Locked = mig.Meta.Locked
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]ListEntry, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, *entries[id])
	}

	switch output {
	case "json":
		return json.NewEncoder(s.Stdout).Encode(rows)
	case "human", "":
		return renderHumanList(s.Stdout, rows)
	default:
		return clierr.Usagef("unknown output format %q (want human or json)", output)
	}
}

func renderHumanList(w io.Writer, rows []ListEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Migration ID\tRemote\tLocal\tComment\tLocked")
	for _, r := range rows {
		remote := "✗"
		if r.Remote != nil {
			remote = r.Remote.Format(time.RFC3339)
		}
		local := "✗"
		if r.Local {
			local = "✓"
		}
		locked := "✗"
		if r.Locked {
			locked = "✓"
		}
		comment := ""
		if r.Comment != nil {
			comment = *r.Comment
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, remote, local, comment, locked)
	}
	return tw.Flush()
}

// HistorySync materialises every ledger-only migration onto the
// filesystem.
func (s *Service) HistorySync(ctx context.Context) error {
	all, err := s.Repo.FetchAllMigrations(ctx)
	if err != nil {
		return err
	}
	for _, m := range all {
		if err := s.Store.UpsertLocal(m.ID, m.Up, m.Down, m.Comment); err != nil {
			return fmt.Errorf("sync %s: %w", m.ID, err)
		}
	}
	fmt.Fprintf(s.Stderr, "synced %d migration(s)\n", len(all))
	return nil
}

// HistoryFix re-sequences every locally-pending migration to a
// strictly increasing ID greater than max(applied).
func (s *Service) HistoryFix(ctx context.Context) error {
	localSet, err := s.Store.GetLocalIDs()
	if err != nil {
		return err
	}
	appliedSet, err := s.Repo.FetchAppliedIDs(ctx)
	if err != nil {
		return err
	}

	appliedIDs := sortedStrings(appliedSet)
	maxRemote, _ := maxString(appliedIDs)

	var pending []string
	for id := range localSet {
		if _, ok := appliedSet[id]; !ok {
			pending = append(pending, id)
		}
	}
	sort.Strings(pending)
	if len(pending) == 0 {
		fmt.Fprintln(s.Stderr, "no pending migrations to fix")
		return nil
	}

	nowMS := strconv.FormatInt(time.Now().UTC().UnixMilli(), 10)
	base := maxRemote
	if base == "" || nowMS > base {
		base = nowMS
	}
	baseN, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return fmt.Errorf("history fix: invalid base id %q: %w", base, err)
	}

	renamed := 0
	for _, oldID := range pending {
		baseN++
		newID := strconv.FormatInt(baseN, 10)
		if oldID == newID {
			continue
		}
		if err := s.Store.RenameMigration(oldID, newID); err != nil {
			return fmt.Errorf("history fix: %w", err)
		}
		renamed++
	}

	fmt.Fprintf(s.Stderr, "renamed %d migration(s)\n", renamed)
	return nil
}
