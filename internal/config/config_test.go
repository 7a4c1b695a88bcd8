package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o600))
	return p
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

const sampleYAML = `
env: "prod"
api:
  base_url: "https://example.test/"
  collection_path: "api/v2/team/comments"
  login_path: "/api/user/login"
  encoding: "FORM"
  timeout: "3s"
  force_error: true
mode:
  variant: "guest"
  kind: "comments"
storage:
  backend: "sqlite"
  path: "/tmp/board.db"
log:
  level: "debug"
  pretty: true
`

const brokenYAML = `
env: [unclosed
`

func TestLoad_WithExplicitPath_OK(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", sampleYAML)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, "https://example.test/api/v2/team/comments", cfg.API.CollectionURL())
	require.Equal(t, "https://example.test/api/user/login", cfg.API.LoginURL())
	require.Equal(t, "form", cfg.API.Encoding)
	require.Equal(t, 3*time.Second, cfg.API.Timeout)
	require.True(t, cfg.API.ForceError)
	require.True(t, cfg.API.EscapeHTML())
	require.Equal(t, VariantGuest, cfg.Mode.Variant)
	require.Equal(t, StorageSQLite, cfg.Storage.Backend)
	require.Equal(t, "/tmp/board.db", cfg.Storage.Path)
	require.Equal(t, "debug", cfg.Log.Level)
	require.True(t, cfg.Log.Pretty)
}

func TestLoad_WithExplicitPath_BrokenYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "broken.yaml", brokenYAML)

	_, err := Load(cfgPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_MissingExplicitPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "stat failed")
}

func TestLoad_WithCONFIG_PATH_OK(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "from_env.yaml", `env: "stage"`)
	t.Setenv("CONFIG_PATH", cfgPath)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "stage", cfg.Env)
	require.Equal(t, VariantAuth, cfg.Mode.Variant)
	require.Equal(t, StorageFile, cfg.Storage.Backend)
}

func TestLoad_WithLocalYAML_OK(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, ".", "board.yaml", sampleYAML)
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "prod", cfg.Env)
}

func TestLoad_EnvOverlay_OverridesFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", sampleYAML)

	t.Setenv("BOARD_VARIANT", "auth")
	t.Setenv("BOARD_TIMEOUT", "5s")
	t.Setenv("BOARD_STORAGE", "redis")
	t.Setenv("BOARD_REDIS_ADDR", "cache:6380")

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, VariantAuth, cfg.Mode.Variant)
	require.Equal(t, 5*time.Second, cfg.API.Timeout)
	require.Equal(t, StorageRedis, cfg.Storage.Backend)
	require.Equal(t, "cache:6380", cfg.Storage.RedisAddr)
}

func TestLoad_RawHTMLFromYAML(t *testing.T) {
	dir := t.TempDir()
	for _, tc := range []struct {
		yaml   string
		escape bool
	}{
		{"api:\n  raw_html: false\n", true},
		{"api:\n  raw_html: true\n", false},
		{"env: \"local\"\n", true},
	} {
		cfg, err := Load(writeFile(t, dir, "config.yaml", tc.yaml))
		require.NoError(t, err)
		require.Equal(t, tc.escape, cfg.API.EscapeHTML(), tc.yaml)
	}
}

func TestLoad_EnvOnly_Defaults(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "local", cfg.Env)
	require.Equal(t, "https://wedev-api.sky.pro/api/v2/alina-skypro/comments", cfg.API.CollectionURL())
	require.Equal(t, "json", cfg.API.Encoding)
	require.Zero(t, cfg.API.Timeout)
	require.Equal(t, KindComments, cfg.Mode.Kind)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_RejectsUnknownVariant(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", "mode:\n  variant: \"admin\"\n")

	_, err := Load(cfgPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "mode.variant")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			API:     APIConfig{BaseURL: "http://x", Encoding: "json"},
			Mode:    ModeConfig{Variant: VariantAuth, Kind: KindTodo},
			Storage: StorageConfig{Backend: StorageMemory},
		}
	}

	cfg := base()
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.API.Encoding = "xml"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Storage.Backend = "etcd"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.API.BaseURL = " "
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.API.Timeout = -time.Second
	require.Error(t, cfg.Validate())
}

func TestMustLoad_PanicsOnError(t *testing.T) {
	require.Panics(t, func() {
		_ = MustLoad(filepath.Join(t.TempDir(), "nope.yaml"))
	})
}
