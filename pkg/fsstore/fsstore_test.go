package fsstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchexcode/qop/pkg/fsstore"
)

func TestCreateAndReadMigration(t *testing.T) {
	root := t.TempDir()
	store := fsstore.New(root)

	id, err := store.CreateMigration("alice", nil, false)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	ids, err := store.GetLocalIDs()
	require.NoError(t, err)
	_, ok := ids[id]
	assert.True(t, ok)

	mig, err := store.ReadMigration(id)
	require.NoError(t, err)
	assert.Equal(t, id, mig.ID)
	assert.Empty(t, mig.Up)
	assert.Empty(t, mig.Down)
	require.NotNil(t, mig.Meta.Comment)
	assert.Contains(t, *mig.Meta.Comment, "Created by alice at")
	assert.False(t, mig.Meta.Locked)
}

func TestCreateMigration_CustomCommentAndLocked(t *testing.T) {
	root := t.TempDir()
	store := fsstore.New(root)

	comment := "add users table"
	id, err := store.CreateMigration("bob", &comment, true)
	require.NoError(t, err)

	mig, err := store.ReadMigration(id)
	require.NoError(t, err)
	require.NotNil(t, mig.Meta.Comment)
	assert.Equal(t, comment, *mig.Meta.Comment)
	assert.True(t, mig.Meta.Locked)
}

func TestReadMigration_MissingMetaDefaultsEmpty(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "id=1000")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "up.sql"), []byte("CREATE TABLE t (x INTEGER)"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "down.sql"), []byte("DROP TABLE t"), 0o644))

	store := fsstore.New(root)
	mig, err := store.ReadMigration("1000")
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE t (x INTEGER)", mig.Up)
	assert.Equal(t, "DROP TABLE t", mig.Down)
	assert.Nil(t, mig.Meta.Comment)
	assert.False(t, mig.Meta.Locked)
}

func TestReadMigration_MissingSQLFileErrors(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "id=1000")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "up.sql"), nil, 0o644))

	store := fsstore.New(root)
	_, err := store.ReadMigration("1000")
	assert.Error(t, err)
}

func TestRenameMigration(t *testing.T) {
	root := t.TempDir()
	store := fsstore.New(root)

	id, err := store.CreateMigration("alice", nil, false)
	require.NoError(t, err)

	require.NoError(t, store.RenameMigration(id, "9999999999999"))

	ids, err := store.GetLocalIDs()
	require.NoError(t, err)
	_, oldPresent := ids[id]
	assert.False(t, oldPresent)
	_, newPresent := ids["9999999999999"]
	assert.True(t, newPresent)
}

func TestRenameMigration_RefusesExistingTarget(t *testing.T) {
	root := t.TempDir()
	store := fsstore.New(root)

	first, err := store.CreateMigration("alice", nil, false)
	require.NoError(t, err)
	second, err := store.CreateMigration("alice", nil, false)
	require.NoError(t, err)
	if first == second {
		t.Skip("both creations returned the same id, so there is no distinct existing target to rename onto")
	}

	err = store.RenameMigration(first, second)
	assert.Error(t, err)
}

func TestUpsertLocal_CreatesAndUpdates(t *testing.T) {
	root := t.TempDir()
	store := fsstore.New(root)

	require.NoError(t, store.UpsertLocal("2000", "CREATE TABLE a (x INT)", "DROP TABLE a", nil))

	mig, err := store.ReadMigration("2000")
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE a (x INT)", mig.Up)
	assert.Equal(t, "DROP TABLE a", mig.Down)
	assert.Nil(t, mig.Meta.Comment)

	comment := "synced from ledger"
	require.NoError(t, store.UpsertLocal("2000", "CREATE TABLE a (x INT, y INT)", "DROP TABLE a", &comment))

	mig, err = store.ReadMigration("2000")
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE a (x INT, y INT)", mig.Up)
	require.NotNil(t, mig.Meta.Comment)
	assert.Equal(t, comment, *mig.Meta.Comment)
}

func TestGetLocalIDs_IgnoresNonMatchingEntries(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "qop.toml"), []byte("version = \"1\""), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-a-migration"), 0o755))

	store := fsstore.New(root)
	id, err := store.CreateMigration("alice", nil, false)
	require.NoError(t, err)

	ids, err := store.GetLocalIDs()
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	_, ok := ids[id]
	assert.True(t, ok)
}
