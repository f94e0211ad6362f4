package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := Default(dir)
	cfg.AppVersion = 7
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestResolvePath(t *testing.T) {
	cfg := Default("/data/node")
	require.Equal(t, "/data/node/genesis.json", cfg.ResolvePath("genesis.json"))
	require.Equal(t, "/abs/genesis.json", cfg.ResolvePath("/abs/genesis.json"))
}
