package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "full", cfg.Variant)
	assert.Equal(t, 8, cfg.MaxDepth)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "variant: compact-stirling\nmaxDepth: 4\nsweeps: 25\ninitialDiscount: 0.62\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "compact-stirling", cfg.Variant)
	assert.Equal(t, 4, cfg.MaxDepth)
	assert.Equal(t, 25, cfg.Sweeps)
	assert.Equal(t, 0.62, cfg.InitialDiscount)
	// untouched keys keep their defaults
	assert.Equal(t, int64(1), cfg.Seed)
	assert.Equal(t, 1.0, cfg.InitialConcentration)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("variant: [broken"), 0o644))
	_, err = LoadConfig(path)
	require.Error(t, err)
}
