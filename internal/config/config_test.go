package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eversd.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "library": {"root": "/mnt/sd", "transliterate": true},
  "s3": {"host": "http://127.0.0.1:9000", "bucket": "games", "prefix": "/backup/"}
}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/mnt/sd", cfg.Library.Root)
	assert.True(t, cfg.Library.Transliterate)
	assert.Equal(t, "backup", cfg.S3.Prefix)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.Serve.Bind)
	assert.NoError(t, cfg.ValidateS3())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eversd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
library:
  root: /media/eversd
  lock: true
log:
  level: debug
cache:
  db_path: /tmp/eversd.db
  scrape_ttl: 60
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/media/eversd", cfg.Library.Root)
	assert.True(t, cfg.Library.Lock)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, int64(60), cfg.Cache.ScrapeTTL)
	assert.Error(t, cfg.ValidateS3())
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o644))
	_, err := Load(bad)
	assert.Error(t, err)

	level := filepath.Join(dir, "level.json")
	require.NoError(t, os.WriteFile(level, []byte(`{"log":{"level":"loud"}}`), 0o644))
	_, err = Load(level)
	assert.Error(t, err)
}

func TestLoadFirst(t *testing.T) {
	dir := t.TempDir()
	second := filepath.Join(dir, "second.json")
	require.NoError(t, os.WriteFile(second, []byte(`{"library":{"root":"/second"}}`), 0o644))

	cfg, err := LoadFirst("", filepath.Join(dir, "missing.json"), second)
	require.NoError(t, err)
	assert.Equal(t, "/second", cfg.Library.Root)

	cfg, err = LoadFirst(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
