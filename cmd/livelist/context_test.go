package main

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livelist/config"
	"livelist/internal/room/repository"
	"livelist/router"
	"livelist/socket"
)

func newTestContext(t *testing.T, configBody string, flags rootFlags) *commandContext {
	t.Helper()
	dir := t.TempDir()
	if configBody != "" {
		path := filepath.Join(dir, "config.toml")
		require.NoError(t, os.WriteFile(path, []byte(configBody), 0o644))
		flags.configPath = path
	} else {
		flags.configPath = filepath.Join(dir, "missing.toml")
	}
	return newCommandContext(&flags)
}

func TestConfigFileAndFlags(t *testing.T) {
	data := filepath.Join(t.TempDir(), "data")
	ctx := newTestContext(t, "server = \"https://lists.example/\"\ndata_dir = \""+filepath.ToSlash(data)+"\"\navatar = \"Calm Otter\"\n", rootFlags{})

	cfg, err := ctx.ensureConfig()
	require.NoError(t, err)
	assert.Equal(t, data, filepath.FromSlash(cfg.DataDir))
	assert.Equal(t, "https://lists.example", ctx.server())
	assert.DirExists(t, data)

	avatar, err := ctx.avatar()
	require.NoError(t, err)
	assert.Equal(t, "Calm Otter", avatar)

	override := newTestContext(t, "server = \"https://lists.example\"\n", rootFlags{server: "http://127.0.0.1:9000", dataDir: t.TempDir()})
	_, err = override.ensureConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000", override.server())
}

func TestConfigDefaults(t *testing.T) {
	ctx := newTestContext(t, "", rootFlags{dataDir: t.TempDir()})
	_, err := ctx.ensureConfig()
	require.NoError(t, err)
	assert.Equal(t, defaultServer, ctx.server())

	avatar, err := ctx.avatar()
	require.NoError(t, err)
	assert.NotEmpty(t, avatar)
	assert.FileExists(t, ctx.identityPath())
}

func TestConfigRejectsBadToml(t *testing.T) {
	ctx := newTestContext(t, "server = [", rootFlags{})
	_, err := ctx.ensureConfig()
	assert.Error(t, err)
}

func TestOpenListsHoldsDataDirLock(t *testing.T) {
	dataDir := t.TempDir()
	ctx := newTestContext(t, "", rootFlags{dataDir: dataDir})

	first, err := ctx.openLists(context.Background())
	require.NoError(t, err)
	_, err = first.Local().AddItem("", "Milk")
	require.NoError(t, err)

	_, err = ctx.openLists(context.Background())
	assert.ErrorContains(t, err, "in use")

	require.NoError(t, first.Close())

	again, err := ctx.openLists(context.Background())
	require.NoError(t, err)
	defer again.Close()
	l, ok := again.List(again.ActiveListID())
	require.True(t, ok)
	require.Len(t, l.Items, 1)
	assert.Equal(t, "Milk", l.Items[0].Text)
}

func TestRoomsClientSeedAndFetch(t *testing.T) {
	hub := socket.NewHub(repository.NewMemoryStore())
	srv := httptest.NewServer(router.Setup(config.Config{AllowedOrigin: "*"}, hub))
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})
	client := newRoomsClient(srv.URL + "/")
	ctx := context.Background()

	empty, err := client.Fetch(ctx, "list_9")
	require.NoError(t, err)
	assert.Nil(t, empty)

	dataCtx := newTestContext(t, "", rootFlags{dataDir: t.TempDir()})
	lists, err := dataCtx.openLists(ctx)
	require.NoError(t, err)
	defer lists.Close()
	_, err = lists.Local().AddItem("", "Milk")
	require.NoError(t, err)
	local, _ := lists.List(lists.ActiveListID())

	resp, err := client.Seed(ctx, "list_9", local, "", "")
	require.NoError(t, err)
	assert.Equal(t, "list_9", resp.RoomID)

	got, err := client.Fetch(ctx, "list_9")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Milk", got.Items[0].Text)
}
