package main

import (
	"os"
	"path/filepath"
	"testing"

	"nextpage/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsDir_EnvOverride(t *testing.T) {
	t.Setenv("MIGRATIONS_DIR", "/custom/migrations")
	assert.Equal(t, "/custom/migrations", migrationsDir())
}

func TestMigrationsDir_Default(t *testing.T) {
	t.Setenv("MIGRATIONS_DIR", "")
	assert.Equal(t, defaultMigrationsDir, migrationsDir())
}

func TestLoadEnvFiles_DSNFromFileDoesNotOverrideEnv(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, ".env"), []byte("DB_DSN=postgres://file@localhost/nextpage\n"), 0o644))

	t.Setenv("DB_DSN", "postgres://env@localhost/nextpage")
	t.Chdir(tmp)

	config.LoadEnvFiles()
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://env@localhost/nextpage", cfg.Storage.PostgresDSN)
}

func TestRun_RequiresDSN(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_DSN", "")
	t.Setenv("NEXTPAGE_STORAGE__POSTGRES_DSN", "")

	err := run([]string{"-command", "status"})
	assert.ErrorContains(t, err, "postgres_dsn")
}

func TestRun_CreateRequiresName(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.ErrorContains(t, run([]string{"-command", "create"}), "name is required")
}
