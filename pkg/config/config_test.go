package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"), nil)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Parallelism)
	assert.Equal(t, "text", cfg.Format)
	assert.Empty(t, cfg.Classpath)
	assert.True(t, cfg.Color)
	assert.False(t, cfg.Watch)
}

func TestLoadPriority(t *testing.T) {
	path := writeConfig(t, `
classpath = ["a.jar", "b.jar"]
parallelism = 2
format = "json"
`)
	t.Setenv("CLASSPATH_CHANGES_PARALLELISM", "8")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("format", "text", "")
	fs.Int("parallelism", 4, "")
	require.NoError(t, fs.Parse([]string{"--format=text"}))

	cfg, err := LoadFile(path, fs)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.jar", "b.jar"}, cfg.Classpath, "file value")
	assert.Equal(t, 8, cfg.Parallelism, "env overrides file")
	assert.Equal(t, "text", cfg.Format, "flag overrides file")
}

func TestLoadClasspathFromEnv(t *testing.T) {
	sep := string(os.PathListSeparator)
	t.Setenv("CLASSPATH_CHANGES_CLASSPATH", "lib/a.jar"+sep+" out/classes "+sep)

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"lib/a.jar", "out/classes"}, cfg.Classpath)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := LoadFile(writeConfig(t, `format = "xml"`), nil)
	assert.ErrorContains(t, err, "invalid format")

	_, err = LoadFile(writeConfig(t, `parallelism = 0`), nil)
	assert.ErrorContains(t, err, "parallelism")

	_, err = LoadFile(writeConfig(t, "watch = true\nno-snapshot = true"), nil)
	assert.ErrorContains(t, err, "watch mode")

	_, err = LoadFile(writeConfig(t, `format = [`), nil)
	assert.Error(t, err, "malformed file must fail")
}
