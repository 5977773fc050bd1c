package sqlstore

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagekite/duppy-go/internal/backend"
	"github.com/pagekite/duppy-go/internal/records"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	store, err := Open("sqlite", dsn)
	require.NoError(t, err)
	return store
}

func TestZoneAndKeyProvisioning(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddZone(ctx, backend.ZoneInfo{Name: "Example.COM.", Type: "SOA", Hostname: "ns1.example.com", DefaultTTL: 300}))
	require.NoError(t, store.AddKey(ctx, "example.com", backend.Key{Name: "key1.", Algorithm: "hmac-sha256", Secret: "c2VjcmV0"}))

	zones, err := store.GetAllZones(ctx)
	require.NoError(t, err)
	require.Contains(t, zones, "example.com")
	assert.Equal(t, uint32(300), zones["example.com"].DefaultTTL)

	keys, err := store.GetKeys(ctx, "example.com")
	require.NoError(t, err)
	require.Contains(t, keys, "key1.")

	bound, err := store.CheckKeyInZone(ctx, "key1.", "example.com")
	require.NoError(t, err)
	assert.True(t, bound)

	require.NoError(t, store.DeleteKey(ctx, "example.com", "key1."))
	keys, err = store.GetKeys(ctx, "example.com")
	require.NoError(t, err)
	assert.NotContains(t, keys, "key1.")

	require.NoError(t, store.DeleteZone(ctx, "example.com"))
	zones, err = store.GetAllZones(ctx)
	require.NoError(t, err)
	assert.NotContains(t, zones, "example.com")
}

func TestTransactionCommitPersistsAdd(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddZone(ctx, backend.ZoneInfo{Name: "example.com", Type: "SOA", DefaultTTL: 300}))

	tx, err := store.TransactionStart(ctx, "example.com")
	require.NoError(t, err)

	addOp := backend.AddToRRset{
		Zone: "example.com", Name: "www.example.com", Type: records.TypeA, TTL: 300,
		RData: records.Record{Type: records.TypeA, Address: net.ParseIP("10.0.0.1")},
	}
	ok, err := store.ApplyAddToRRset(ctx, tx, addOp)
	require.NoError(t, err)
	assert.True(t, ok)

	committed, err := store.TransactionCommit(ctx, tx, "example.com")
	require.NoError(t, err)
	assert.True(t, committed)

	var rows []RecordRow
	require.NoError(t, store.db.Where("zone = ?", "example.com").Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "10.0.0.1", rows[0].Address)
}

func TestTransactionRollbackDiscardsChanges(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddZone(ctx, backend.ZoneInfo{Name: "example.com", Type: "SOA", DefaultTTL: 300}))

	tx, err := store.TransactionStart(ctx, "example.com")
	require.NoError(t, err)

	addOp := backend.AddToRRset{
		Zone: "example.com", Name: "www.example.com", Type: records.TypeA, TTL: 300,
		RData: records.Record{Type: records.TypeA, Address: net.ParseIP("10.0.0.2")},
	}
	_, err = store.ApplyAddToRRset(ctx, tx, addOp)
	require.NoError(t, err)

	require.NoError(t, store.TransactionRollback(ctx, tx, "example.com", false))

	var rows []RecordRow
	require.NoError(t, store.db.Where("zone = ?", "example.com").Find(&rows).Error)
	assert.Empty(t, rows)
}

func TestIsInZoneDelegatesToDefault(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ok, err := store.IsInZone(ctx, "example.com", "www.example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.IsInZone(ctx, "example.com", "notexample.com")
	require.NoError(t, err)
	assert.False(t, ok)
}
