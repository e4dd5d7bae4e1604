package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/mfgerp/migrations"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add clients table", "add_clients_table"},
		{"Add-Clients-Table", "add_clients_table"},
		{"add__clients__table", "add_clients_table"},
		{"Add Sequences 2", "add_sequences_2"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"_leading_and_trailing_", "leading_and_trailing"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(dir, "add invoice due index", "Speeds up overdue lookups")
	require.NoError(t, err)
	assert.Len(t, mf.Version, 14)
	assert.True(t, strings.HasSuffix(mf.UpPath, "_add_invoice_due_index.up.sql"))
	assert.True(t, strings.HasSuffix(mf.DownPath, "_add_invoice_due_index.down.sql"))

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: add invoice due index\n")
	assert.Contains(t, string(up), "-- Description: Speeds up overdue lookups")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(Rollback)")

	listed, err := ListMigrations(os.DirFS(dir))
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.True(t, listed[0].HasDown)
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"20260102000000_b.up.sql":   {Data: []byte("--")},
		"20260102000000_b.down.sql": {Data: []byte("--")},
		"20260101000000_a.up.sql":   {Data: []byte("--")},
		"README.md":                 {Data: []byte("docs")},
		"old/x.up.sql":              {Data: []byte("--")},
	}

	listed, err := ListMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []Migration{
		{Name: "20260101000000_a", HasDown: false},
		{Name: "20260102000000_b", HasDown: true},
	}, listed)
}

func TestListMigrations_MissingDirectory(t *testing.T) {
	listed, err := ListMigrations(os.DirFS("/nonexistent/path/to/migrations"))
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	listed, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, listed)
	for _, m := range listed {
		assert.True(t, m.HasDown, "%s has no down migration", m.Name)
	}
}
