package sync

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestRecordCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := &SyncRecord{
		SyncID:         "sync-1",
		HostID:         "host-1",
		DeviceID:       "device-1",
		LastSyncedHash: "abcd1234abcd1234",
		LastSyncTime:   NowUnix(),
		SourceSystem:   SourceBoth,
	}

	require.NoError(t, store.UpsertRecord(ctx, record))

	t.Run("get by sync ID", func(t *testing.T) {
		got, err := store.GetRecord(ctx, "sync-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, record, got)
	})

	t.Run("get by host ID", func(t *testing.T) {
		got, err := store.GetByHostID(ctx, "host-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "sync-1", got.SyncID)
	})

	t.Run("get by device ID", func(t *testing.T) {
		got, err := store.GetByDeviceID(ctx, "device-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "sync-1", got.SyncID)
	})

	t.Run("missing record is nil not error", func(t *testing.T) {
		got, err := store.GetRecord(ctx, "no-such-id")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("upsert replaces", func(t *testing.T) {
		record.LastSyncedHash = "ffff0000ffff0000"
		record.SourceSystem = SourceHost
		require.NoError(t, store.UpsertRecord(ctx, record))

		got, err := store.GetRecord(ctx, "sync-1")
		require.NoError(t, err)
		assert.Equal(t, "ffff0000ffff0000", got.LastSyncedHash)
		assert.Equal(t, SourceHost, got.SourceSystem)

		all, err := store.AllRecords(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.DeleteRecord(ctx, "sync-1"))

		got, err := store.GetRecord(ctx, "sync-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestRecordEmptyIDsStoredAsNull(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Host-only record: device side not created yet.
	require.NoError(t, store.UpsertRecord(ctx, &SyncRecord{
		SyncID:       "sync-host-only",
		HostID:       "host-9",
		SourceSystem: SourceHost,
	}))

	got, err := store.GetRecord(ctx, "sync-host-only")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "host-9", got.HostID)
	assert.Empty(t, got.DeviceID)

	// An empty device_id must not match lookups.
	byDevice, err := store.GetByDeviceID(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, byDevice)
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertRecord(ctx, &SyncRecord{SyncID: "a", HostID: "h1", DeviceID: "d1", SourceSystem: SourceBoth}))
	require.NoError(t, store.UpsertRecord(ctx, &SyncRecord{SyncID: "b", HostID: "h2", DeviceID: "d2", SourceSystem: SourceBoth}))
	require.NoError(t, store.UpsertRecord(ctx, &SyncRecord{SyncID: "c", HostID: "h3", SourceSystem: SourceHost}))
	require.NoError(t, store.UpsertRecord(ctx, &SyncRecord{SyncID: "d", DeviceID: "d4", SourceSystem: SourceDevice}))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Both)
	assert.Equal(t, 1, stats.HostOnly)
	assert.Equal(t, 1, stats.DeviceOnly)
}

func TestMappingCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mapping := &CategoryMapping{DeviceID: "cat-1", HostID: "list-1", Name: "Work"}
	require.NoError(t, store.UpsertMapping(ctx, mapping))

	t.Run("get by device ID", func(t *testing.T) {
		got, err := store.GetMappingByDeviceID(ctx, "cat-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, mapping, got)
	})

	t.Run("get by host ID", func(t *testing.T) {
		got, err := store.GetMappingByHostID(ctx, "list-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Work", got.Name)
	})

	t.Run("rename via upsert", func(t *testing.T) {
		mapping.Name = "Office"
		require.NoError(t, store.UpsertMapping(ctx, mapping))

		all, err := store.AllMappings(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "Office", all[0].Name)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.DeleteMapping(ctx, "cat-1"))

		got, err := store.GetMappingByDeviceID(ctx, "cat-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestAuditLog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.LogAction(ctx, "create_host", "sync-1", `{"title":"A"}`))
	require.NoError(t, store.LogAction(ctx, "update_device", "sync-2", ""))
	require.NoError(t, store.LogAction(ctx, "sync_complete", "", `{"actions":2}`))

	logs, err := store.RecentLogs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	// Most recent first.
	assert.Equal(t, "sync_complete", logs[0].Action)
	assert.Equal(t, "update_device", logs[1].Action)
	assert.NotZero(t, logs[0].Timestamp)
}

func TestClearAllKeepsAuditLog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertRecord(ctx, &SyncRecord{SyncID: "a", HostID: "h1", DeviceID: "d1", SourceSystem: SourceBoth}))
	require.NoError(t, store.UpsertMapping(ctx, &CategoryMapping{DeviceID: "c1", HostID: "l1", Name: "Work"}))
	require.NoError(t, store.LogAction(ctx, "create_host", "a", ""))

	require.NoError(t, store.ClearAll(ctx))

	records, err := store.AllRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	mappings, err := store.AllMappings(ctx)
	require.NoError(t, err)
	assert.Empty(t, mappings)

	logs, err := store.RecentLogs(ctx, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, logs)
}
