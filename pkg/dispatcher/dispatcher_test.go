package dispatcher_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchexcode/qop/pkg/config"
	"github.com/cchexcode/qop/pkg/dispatcher"
	"github.com/cchexcode/qop/pkg/fsstore"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Version: ">=0.0.0",
		Subsystem: config.Subsystem{
			SQLite: &config.SQLiteConfig{
				Connection:  config.Connection{Static: ":memory:"},
				TablePrefix: "__qop",
			},
		},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestDispatch_SQLiteWiresWorkingService(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)
	store := fsstore.New(t.TempDir())

	sess, err := dispatcher.Dispatch(ctx, cfg, store, dispatcher.Options{
		Backend: config.KindSQLite,
		Stdin:   strings.NewReader(""),
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
		IsTTY:   false,
	})
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.Service.Init(ctx))
	require.NoError(t, sess.Service.Up(ctx, nil, nil, true, false))
}

func TestDispatch_DefaultTimeoutFromConfig(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		Version: ">=0.0.0",
		Subsystem: config.Subsystem{
			SQLite: &config.SQLiteConfig{
				Connection:  config.Connection{Static: ":memory:"},
				TablePrefix: "__qop",
				TimeoutSecs: 30,
			},
		},
	}
	require.NoError(t, cfg.Validate())
	store := fsstore.New(t.TempDir())

	sess, err := dispatcher.Dispatch(ctx, cfg, store, dispatcher.Options{
		Backend: config.KindSQLite,
		Stdin:   strings.NewReader(""),
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
	})
	require.NoError(t, err)
	defer sess.Close()

	require.NotNil(t, sess.DefaultTimeoutMS)
	assert.Equal(t, 30000, *sess.DefaultTimeoutMS)
}

func TestDispatch_BackendMismatchRejected(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)
	store := fsstore.New(t.TempDir())

	_, err := dispatcher.Dispatch(ctx, cfg, store, dispatcher.Options{
		Backend: config.KindPostgres,
		Stdin:   strings.NewReader(""),
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
	})
	assert.Error(t, err)
}
