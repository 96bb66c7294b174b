package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openmined/foldersync/internal/config"
	"github.com/openmined/foldersync/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand_PrintsDetailedVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Equal(t, version.Detailed(), strings.TrimSpace(out))
}

func TestConfigPathCommand(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("FOLDERSYNC_CONFIG", "")
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			t.Skip("a config file exists in the home directory")
		}
		if _, err := os.Stat(filepath.Join(home, ".config", "foldersync", "config.yaml")); err == nil {
			t.Skip("a config file exists in the home directory")
		}

		out, err := execute(t, "config-path")
		require.NoError(t, err)
		assert.Equal(t, config.DefaultConfigPath, strings.TrimSpace(out))
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv("FOLDERSYNC_CONFIG", "/etc/foldersync.yaml")

		out, err := execute(t, "config-path")
		require.NoError(t, err)
		assert.Equal(t, "/etc/foldersync.yaml", strings.TrimSpace(out))
	})

	t.Run("flag wins over env", func(t *testing.T) {
		t.Setenv("FOLDERSYNC_CONFIG", "/etc/foldersync.yaml")

		out, err := execute(t, "config-path", "--config", "/tmp/mine.yaml")
		require.NoError(t, err)
		assert.Equal(t, "/tmp/mine.yaml", strings.TrimSpace(out))
	})
}

func TestConfigInitAndShow(t *testing.T) {
	tmp := t.TempDir()
	source := filepath.Join(tmp, "source")
	require.NoError(t, os.Mkdir(source, 0o755))
	path := filepath.Join(tmp, "conf", "config.yaml")
	t.Setenv("FOLDERSYNC_CONFIG", path)

	out, err := execute(t, "config", "init",
		"--source", source,
		"--replica", filepath.Join(tmp, "replica"),
		"--interval", "30",
		"--log-file", filepath.Join(tmp, "sync.log"),
		"--ignore", "*.swp",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Config written to "+path)

	saved, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, source, saved.SourceDir)
	assert.Equal(t, 30, saved.Interval)
	assert.Equal(t, []string{"*.swp"}, saved.Ignore)

	out, err = execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "source: "+source)
	assert.Contains(t, out, "interval: 30")

	// refuses to overwrite without --force
	_, err = execute(t, "config", "init", "--interval", "5")
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "config", "init", "--interval", "5", "--force")
	require.NoError(t, err)

	saved, err = config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, saved.Interval)
	assert.Equal(t, source, saved.SourceDir, "unchanged values come from the existing file")
}

func TestConfigInitRejectsInvalidConfig(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	t.Setenv("FOLDERSYNC_CONFIG", path)

	_, err := execute(t, "config", "init", "--source", filepath.Join(tmp, "missing"))
	assert.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestConfigShowMissingFile(t *testing.T) {
	t.Setenv("FOLDERSYNC_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := execute(t, "config", "show")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
