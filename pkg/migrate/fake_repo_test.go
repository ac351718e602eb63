package migrate_test

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cchexcode/qop/internal/clierr"
	"github.com/cchexcode/qop/pkg/backend"
)

// fakeRepo is an in-memory stand-in for ledger.Repository, used to test
// Service orchestration logic (pending computation, linearity checks,
// lock handling) without a real database.
type fakeRepo struct {
	rows   map[string]backend.LedgerRow
	locked map[string]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string]backend.LedgerRow{}, locked: map[string]bool{}}
}

func (f *fakeRepo) InitStore(ctx context.Context) error { return nil }

func (f *fakeRepo) FetchAppliedIDs(ctx context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(f.rows))
	for id := range f.rows {
		out[id] = struct{}{}
	}
	return out, nil
}

func (f *fakeRepo) FetchLastID(ctx context.Context) (string, bool, error) {
	var ids []string
	for id := range f.rows {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return "", false, nil
	}
	sort.Strings(ids)
	return ids[len(ids)-1], true, nil
}

func (f *fakeRepo) FetchHistory(ctx context.Context) ([]backend.HistoryEntry, error) {
	var out []backend.HistoryEntry
	for id, row := range f.rows {
		out = append(out, backend.HistoryEntry{ID: id, CreatedAt: time.Unix(0, 0).UTC(), Comment: row.Comment, Locked: row.Locked})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) FetchDownSQL(ctx context.Context, id string) (string, bool, error) {
	row, ok := f.rows[id]
	if !ok {
		return "", false, nil
	}
	return row.Down, true, nil
}

func (f *fakeRepo) FetchAllMigrations(ctx context.Context) ([]backend.StoredMigration, error) {
	var out []backend.StoredMigration
	for id, row := range f.rows {
		out = append(out, backend.StoredMigration{ID: id, Up: row.Up, Down: row.Down, Comment: row.Comment})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) IsLocked(ctx context.Context, id string) (bool, error) {
	row, ok := f.rows[id]
	if !ok {
		return false, fmt.Errorf("migration %s is not applied", id)
	}
	return row.Locked, nil
}

func (f *fakeRepo) ApplyMigration(ctx context.Context, id, upSQL, downSQL string, comment, pre *string, timeoutMS *int, dryRun, locked bool) error {
	if dryRun {
		return nil
	}
	f.rows[id] = backend.LedgerRow{ID: id, Up: upSQL, Down: downSQL, Comment: comment, Pre: pre, Locked: locked}
	return nil
}

func (f *fakeRepo) RevertMigration(ctx context.Context, id, downSQL string, timeoutMS *int, dryRun, unlock bool) error {
	row, ok := f.rows[id]
	if !ok {
		return fmt.Errorf("migration %s is not applied", id)
	}
	if row.Locked && !unlock {
		return clierr.Safetyf("migration %s is locked; pass --unlock to revert it", id)
	}
	if dryRun {
		return nil
	}
	delete(f.rows, id)
	return nil
}
