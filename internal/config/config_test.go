package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("FIBERMAP_CONFIG", "")
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, path, err := Load()
	require.NoError(t, err)
	if path != "" {
		t.Skipf("system config present at %s", path)
	}
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fibermap.yaml")
	content := `
http:
  addr: "127.0.0.1:9090"
  request_timeout: 30s
log:
  level: debug
  file: /var/log/fibermap.log
  compress: false
database:
  path: /data/fibermap.db
seed:
  path: /data/seed.yaml
  watch: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, used, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTP.Addr)
	assert.Equal(t, 30*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Compress)
	assert.Equal(t, 50, cfg.Log.MaxSizeMB)
	assert.Equal(t, "/data/fibermap.db", cfg.Database.Path)
	assert.True(t, cfg.Seed.Watch)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestEnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fibermap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":7000\"\n"), 0o644))

	t.Setenv("FIBERMAP_HTTP_ADDR", ":7777")
	t.Setenv("FIBERMAP_METRICS_ENABLED", "false")
	t.Setenv("FIBERMAP_LOG_MAX_BACKUPS", "9")

	cfg, _, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.HTTP.Addr)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9, cfg.Log.MaxBackups)
}

func TestLoadErrors(t *testing.T) {
	_, _, err := LoadFromPath("")
	assert.Error(t, err)

	_, _, err = LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: \"\"\n"), 0o644))
	_, _, err = LoadFromPath(path)
	assert.ErrorContains(t, err, "database.path")
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.HTTP.Addr = " "
	cfg.Log.MaxAgeDays = -1
	cfg.Seed.Watch = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "http.addr")
	assert.ErrorContains(t, err, "log rotation")
	assert.ErrorContains(t, err, "seed.watch")
}

func TestLoadSearchOrder(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	explicit := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(explicit, []byte("http:\n  addr: \":7001\"\n"), 0o644))
	t.Setenv("FIBERMAP_CONFIG", explicit)
	cfg, path, err := Load()
	require.NoError(t, err)
	assert.Equal(t, explicit, path)
	assert.Equal(t, ":7001", cfg.HTTP.Addr)

	t.Setenv("FIBERMAP_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, _, err = Load()
	assert.Error(t, err, "an explicit path must exist")

	t.Setenv("FIBERMAP_CONFIG", "")
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	nested := filepath.Join(xdg, "fibermap", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(nested), 0o755))
	require.NoError(t, os.WriteFile(nested, []byte("http:\n  addr: \":7002\"\n"), 0o644))
	cfg, path, err = Load()
	require.NoError(t, err)
	assert.Equal(t, nested, path)
	assert.Equal(t, ":7002", cfg.HTTP.Addr)

	require.NoError(t, os.WriteFile("fibermap.yaml", []byte("http:\n  addr: \":7003\"\n"), 0o644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	cfg, path, err = Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "fibermap.yaml"), path, "working directory beats XDG")
	assert.Equal(t, ":7003", cfg.HTTP.Addr)
}

func TestLoadRejectsBrokenSearchedFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("FIBERMAP_CONFIG", "")
	require.NoError(t, os.WriteFile("fibermap.yaml", []byte("http: [unclosed"), 0o644))

	_, _, err := Load()
	assert.ErrorContains(t, err, "read config")
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
