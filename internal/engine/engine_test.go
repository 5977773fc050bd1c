package engine

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagekite/duppy-go/internal/backend"
	"github.com/pagekite/duppy-go/internal/duppyerr"
	"github.com/pagekite/duppy-go/internal/memstore"
	"github.com/pagekite/duppy-go/internal/records"
)

func newTestEngine(t *testing.T) (*Engine, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	store.AddZone(backend.ZoneInfo{Name: "example.com", Type: "SOA", Hostname: "ns1.example.com", DefaultTTL: 300})
	return New(store, 60, zap.NewNop().Sugar()), store
}

func TestValidateRejectsEmptyBatch(t *testing.T) {
	eng, _ := newTestEngine(t)
	err := eng.Validate(context.Background(), "example.com", nil)
	require.Error(t, err)
	assert.Equal(t, duppyerr.KindMalformed, duppyerr.KindOf(err))
}

func TestValidateRejectsMixedZones(t *testing.T) {
	eng, _ := newTestEngine(t)
	ops := []backend.UpdateOp{
		backend.AddToRRset{Zone: "example.com", Name: "www.example.com", Type: records.TypeA, TTL: 300},
		backend.AddToRRset{Zone: "other.com", Name: "www.other.com", Type: records.TypeA, TTL: 300},
	}
	err := eng.Validate(context.Background(), "example.com", ops)
	require.Error(t, err)
	assert.Equal(t, duppyerr.KindPolicyRejected, duppyerr.KindOf(err))
}

func TestValidateRejectsLowTTL(t *testing.T) {
	eng, _ := newTestEngine(t)
	ops := []backend.UpdateOp{
		backend.AddToRRset{Zone: "example.com", Name: "www.example.com", Type: records.TypeA, TTL: 1},
	}
	err := eng.Validate(context.Background(), "example.com", ops)
	require.Error(t, err)
	assert.Equal(t, duppyerr.KindPolicyRejected, duppyerr.KindOf(err))
}

func TestValidateRejectsApexDeleteAll(t *testing.T) {
	eng, _ := newTestEngine(t)
	ops := []backend.UpdateOp{
		backend.DeleteAllRRsets{Zone: "example.com", Name: "example.com"},
	}
	err := eng.Validate(context.Background(), "example.com", ops)
	require.Error(t, err)
	assert.Equal(t, duppyerr.KindPolicyRejected, duppyerr.KindOf(err))
}

func TestValidateRejectsOutOfZoneName(t *testing.T) {
	eng, _ := newTestEngine(t)
	ops := []backend.UpdateOp{
		backend.AddToRRset{Zone: "example.com", Name: "www.notexample.com", Type: records.TypeA, TTL: 300},
	}
	err := eng.Validate(context.Background(), "example.com", ops)
	require.Error(t, err)
	assert.Equal(t, duppyerr.KindPolicyRejected, duppyerr.KindOf(err))
}

func TestUpdateAppliesAddAndDelete(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	addOp := backend.AddToRRset{
		Zone: "example.com", Name: "www.example.com", Type: records.TypeA, TTL: 300,
		RData: records.Record{Owner: "www.example.com", Type: records.TypeA, TTL: 300, Address: net.ParseIP("10.0.0.1")},
	}
	result, err := eng.Update(ctx, "client1", "example.com", []backend.UpdateOp{addOp})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Changes)

	snap := store.Snapshot("example.com")
	require.Len(t, snap["www.example.com/A"], 1)

	delOp := backend.DeleteRRset{Zone: "example.com", Name: "www.example.com", Type: records.TypeA}
	result, err = eng.Update(ctx, "client1", "example.com", []backend.UpdateOp{delOp})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Changes)

	snap = store.Snapshot("example.com")
	assert.Empty(t, snap["www.example.com/A"])
}

func TestUpdateRejectsInvalidBatchBeforeTouchingBackend(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Update(ctx, "client1", "example.com", nil)
	require.Error(t, err)

	snap := store.Snapshot("example.com")
	assert.Empty(t, snap["www.example.com/A"])
}
