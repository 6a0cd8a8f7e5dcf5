package main

import (
	"path/filepath"
	"testing"

	"nextpage/internal/kv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ClosesStorageOnFailure(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := filepath.Join(t.TempDir(), "library")
	t.Setenv("NEXTPAGE_STORAGE__DRIVER", kv.DriverBadger)
	t.Setenv("NEXTPAGE_STORAGE__BADGER_PATH", dir)

	err := run([]string{"-target", "wishlist"})
	assert.ErrorContains(t, err, `unknown target "wishlist"`)

	// badger holds a directory lock while open.
	b, err := kv.OpenBadger(dir)
	require.NoError(t, err)
	assert.NoError(t, b.Close())
}

func TestRun_BadFlag(t *testing.T) {
	assert.Error(t, run([]string{"-limit", "many"}))
}
