package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resolvarr/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "resolvarr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenAppliesMigrations(t *testing.T) {
	db := openTestDB(t)

	version, err := db.Version(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)

	var name string
	err = db.Conn().QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'backend_configs'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "backend_configs", name)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resolvarr.db")
	first, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, path, second.Path())
}

func TestBackendConfigStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewBackendConfigStore(openTestDB(t))

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	require.NoError(t, store.SaveBackendConfig(ctx, models.BackendConfig{
		ID: "b", Type: models.BackendAllDebrid, CredentialRef: "backend/alldebrid", Active: true, Priority: 1,
	}))
	require.NoError(t, store.SaveBackendConfig(ctx, models.BackendConfig{
		ID: "a", Type: models.BackendTorBox, CredentialRef: "backend/torbox", Active: false, Priority: 1,
	}))
	require.NoError(t, store.SaveBackendConfig(ctx, models.BackendConfig{
		ID: "c", Type: models.BackendRealDebrid, CredentialRef: "backend/realdebrid", Active: true, Priority: 0,
	}))

	configs, err := store.ListBackendConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{configs[0].ID, configs[1].ID, configs[2].ID})
	assert.False(t, configs[1].Active)
	assert.Equal(t, models.BackendRealDebrid, configs[0].Type)

	clock = clock.Add(time.Hour)
	require.NoError(t, store.SaveBackendConfig(ctx, models.BackendConfig{
		ID: "b", Type: models.BackendAllDebrid, CredentialRef: "backend/alldebrid-2", Active: true, Priority: 5,
	}))
	got, err := store.GetBackendConfig(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "backend/alldebrid-2", got.CredentialRef)
	assert.Equal(t, 5, got.Priority)
	assert.True(t, got.CreatedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
	assert.True(t, got.UpdatedAt.Equal(clock))

	require.NoError(t, store.DeleteBackendConfig(ctx, "b"))
	_, err = store.GetBackendConfig(ctx, "b")
	assert.ErrorIs(t, err, ErrBackendConfigNotFound)
	assert.ErrorIs(t, store.DeleteBackendConfig(ctx, "b"), ErrBackendConfigNotFound)
}

func TestSaveBackendConfigValidates(t *testing.T) {
	ctx := context.Background()
	store := NewBackendConfigStore(openTestDB(t))

	assert.Error(t, store.SaveBackendConfig(ctx, models.BackendConfig{Type: "nzbget", CredentialRef: "x"}))
	assert.Error(t, store.SaveBackendConfig(ctx, models.BackendConfig{Type: models.BackendPremiumize}))

	require.NoError(t, store.SaveBackendConfig(ctx, models.BackendConfig{Type: models.BackendPremiumize, CredentialRef: "pm", Active: true}))
	configs, err := store.ListBackendConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Len(t, configs[0].ID, 36, "generated id is a uuid")
}
