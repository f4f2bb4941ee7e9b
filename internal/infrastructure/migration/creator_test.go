package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add offer index", "add_offer_index"},
		{"Add-Offer-Index", "add_offer_index"},
		{"ADD_OFFER_INDEX", "add_offer_index"},
		{"add__offer__index", "add_offer_index"},
		{"Reservation Ledger 2", "reservation_ledger_2"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "init fulfillment", "Supplier catalog tables")
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_init_fulfillment.up.sql"), first.UpPath)
	assert.Equal(t, filepath.Join(dir, "000001_init_fulfillment.down.sql"), first.DownPath)

	up, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- init_fulfillment")
	assert.Contains(t, string(up), "-- Supplier catalog tables")

	down, err := os.ReadFile(first.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "-- Rollback init_fulfillment")

	second, err := CreateMigration(dir, "add-sequence-index", "")
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.Version)
	assert.Equal(t, "000002_add_sequence_index.up.sql", filepath.Base(second.UpPath))
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")

	_, err := CreateMigration(dir, "first", "")
	require.NoError(t, err)

	_, err = os.Stat(dir)
	assert.NoError(t, err)
}

func TestListMigrations(t *testing.T) {
	t.Run("orders by version and tracks down files", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{
			"000010_add_outcomes.up.sql",
			"000002_add_bounds.up.sql",
			"000002_add_bounds.down.sql",
			"000001_init.up.sql",
			"000001_init.down.sql",
			"README.md",
			"notes_without_version.up.sql",
		} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
		}
		require.NoError(t, os.Mkdir(filepath.Join(dir, "000003_dir.up.sql"), 0o755))

		entries, err := ListMigrations(dir)
		require.NoError(t, err)
		assert.Equal(t, []Entry{
			{Version: 1, Name: "init", HasDown: true},
			{Version: 2, Name: "add_bounds", HasDown: true},
			{Version: 10, Name: "add_outcomes"},
		}, entries)
		assert.Equal(t, "000010_add_outcomes", entries[2].Base())
	})

	t.Run("missing directory is empty", func(t *testing.T) {
		entries, err := ListMigrations(filepath.Join(t.TempDir(), "missing"))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("repository migrations parse", func(t *testing.T) {
		entries, err := ListMigrations(filepath.Join("..", "..", "..", "migrations"))
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		assert.Equal(t, "000001_init_fulfillment", entries[0].Base())
		assert.True(t, entries[0].HasDown)
	})
}

func TestPendingAfter(t *testing.T) {
	entries := []Entry{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}, {Version: 3, Name: "c"}}

	assert.Len(t, pendingAfter(entries, 0), 3)
	assert.Equal(t, []Entry{{Version: 3, Name: "c"}}, pendingAfter(entries, 2))
	assert.Empty(t, pendingAfter(entries, 3))
}
