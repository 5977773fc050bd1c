// Package memstore is an in-memory backend.Backend implementation, the
// testability fixture spec §2 calls for and the default backend for the
// quick-start / CLI "serve" path when no database is configured.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/pagekite/duppy-go/internal/backend"
	"github.com/pagekite/duppy-go/internal/duppyerr"
	"github.com/pagekite/duppy-go/internal/records"
)

type rrsetKey struct {
	name  string
	rtype records.Type
}

// zoneData holds everything memstore knows about one zone.
type zoneData struct {
	info    backend.ZoneInfo
	keys    map[string]backend.Key // key name -> key
	records map[rrsetKey][]records.Record
	mu      sync.Mutex // held for the lifetime of one transaction
}

// Store is a sync.RWMutex-guarded map-of-maps backend. Each zone
// serializes its own writers by taking zoneData.mu in TransactionStart
// and releasing it in commit/rollback, satisfying spec §5's requirement
// that a backend intolerant of concurrent zone writers serialize in
// transaction_start.
type Store struct {
	mu    sync.RWMutex
	zones map[string]*zoneData
}

// New builds an empty Store.
func New() *Store {
	return &Store{zones: make(map[string]*zoneData)}
}

// AddZone registers a zone with the store. Zones are static from the
// core's perspective (spec §3); this is the out-of-core provisioning hook.
func (s *Store) AddZone(info backend.ZoneInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := records.Normalize(info.Name)
	info.Name = name
	s.zones[name] = &zoneData{
		info:    info,
		keys:    make(map[string]backend.Key),
		records: make(map[rrsetKey][]records.Record),
	}
}

// AddKey binds a key to a zone.
func (s *Store) AddKey(zone string, key backend.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	zd, ok := s.zones[records.Normalize(zone)]
	if !ok {
		return fmt.Errorf("memstore.AddKey: unknown zone %q", zone)
	}
	zd.keys[key.Name] = key
	return nil
}

// DeleteZone removes a zone and everything stored under it. Out-of-core
// provisioning hook, the inverse of AddZone.
func (s *Store) DeleteZone(zone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.zones, records.Normalize(zone))
}

// DeleteKey unbinds a key from a zone.
func (s *Store) DeleteKey(zone, keyName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	zd, ok := s.zones[records.Normalize(zone)]
	if !ok {
		return fmt.Errorf("memstore.DeleteKey: unknown zone %q", zone)
	}
	delete(zd.keys, keyName)
	return nil
}

func (s *Store) zone(name string) (*zoneData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	zd, ok := s.zones[records.Normalize(name)]
	return zd, ok
}

func (s *Store) GetAllZones(ctx context.Context) (map[string]backend.ZoneInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]backend.ZoneInfo, len(s.zones))
	for name, zd := range s.zones {
		out[name] = zd.info
	}
	return out, nil
}

func (s *Store) GetAllKeys(ctx context.Context) (map[string]backend.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]backend.Key)
	for _, zd := range s.zones {
		for name, k := range zd.keys {
			out[name] = k
		}
	}
	return out, nil
}

func (s *Store) GetKeys(ctx context.Context, zone string) (map[string]backend.Key, error) {
	zd, ok := s.zone(zone)
	if !ok {
		return map[string]backend.Key{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]backend.Key, len(zd.keys))
	for k, v := range zd.keys {
		out[k] = v
	}
	return out, nil
}

func (s *Store) CheckKeyInZone(ctx context.Context, keyName, zone string) (bool, error) {
	zd, ok := s.zone(zone)
	if !ok {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, bound := zd.keys[keyName]
	return bound, nil
}

func (s *Store) IsInZone(ctx context.Context, zone, dnsName string) (bool, error) {
	return backend.DefaultIsInZone(zone, dnsName), nil
}

// tx is memstore's transaction handle: the zone whose mutex it holds, and
// whether that mutex has already been released.
type tx struct {
	zone     string
	zd       *zoneData
	released bool
}

func (*tx) backendTx() {}

func (s *Store) TransactionStart(ctx context.Context, zone string) (backend.Tx, error) {
	zd, ok := s.zone(zone)
	if !ok {
		return nil, duppyerr.New(duppyerr.KindBackendFailure, "memstore.TransactionStart",
			fmt.Sprintf("unknown zone %q", zone))
	}
	zd.mu.Lock()
	return &tx{zone: records.Normalize(zone), zd: zd}, nil
}

func asTx(t backend.Tx) (*tx, error) {
	mt, ok := t.(*tx)
	if !ok {
		return nil, fmt.Errorf("memstore: not a memstore transaction")
	}
	return mt, nil
}

func (s *Store) ApplyAddToRRset(ctx context.Context, t backend.Tx, op backend.AddToRRset) (bool, error) {
	mt, err := asTx(t)
	if err != nil {
		return false, err
	}
	k := rrsetKey{name: records.Normalize(op.Name), rtype: op.Type}
	mt.zd.records[k] = append(mt.zd.records[k], op.RData)
	return true, nil
}

func (s *Store) ApplyDeleteFromRRset(ctx context.Context, t backend.Tx, op backend.DeleteFromRRset) (bool, error) {
	mt, err := asTx(t)
	if err != nil {
		return false, err
	}
	k := rrsetKey{name: records.Normalize(op.Name), rtype: op.Type}
	existing := mt.zd.records[k]
	out := existing[:0]
	for _, r := range existing {
		if !recordEquals(r, op.RData) {
			out = append(out, r)
		}
	}
	mt.zd.records[k] = out
	// Idempotent: deleting from an already-empty/absent RRset still counts
	// as success (spec §8 property 8).
	return true, nil
}

func (s *Store) ApplyDeleteRRset(ctx context.Context, t backend.Tx, op backend.DeleteRRset) (bool, error) {
	mt, err := asTx(t)
	if err != nil {
		return false, err
	}
	delete(mt.zd.records, rrsetKey{name: records.Normalize(op.Name), rtype: op.Type})
	return true, nil
}

func (s *Store) ApplyDeleteAllRRsets(ctx context.Context, t backend.Tx, op backend.DeleteAllRRsets) (bool, error) {
	mt, err := asTx(t)
	if err != nil {
		return false, err
	}
	name := records.Normalize(op.Name)
	for k := range mt.zd.records {
		if k.name == name {
			delete(mt.zd.records, k)
		}
	}
	return true, nil
}

func (s *Store) NotifyChanged(ctx context.Context, t backend.Tx, zone string) (bool, error) {
	// memstore has no downstream to notify; treat as always-successful.
	return true, nil
}

func (s *Store) TransactionCommit(ctx context.Context, t backend.Tx, zone string) (bool, error) {
	mt, err := asTx(t)
	if err != nil {
		return false, err
	}
	s.release(mt)
	return true, nil
}

func (s *Store) TransactionRollback(ctx context.Context, t backend.Tx, zone string, silent bool) error {
	mt, err := asTx(t)
	if err != nil {
		return err
	}
	s.release(mt)
	return nil
}

func (s *Store) release(mt *tx) {
	if mt.released {
		return
	}
	mt.released = true
	mt.zd.mu.Unlock()
}

// Snapshot returns a copy of every record currently stored for a zone,
// keyed by name+type. Used by tests to assert atomicity (spec §8
// property 2) by re-reading state after a rejected/failed batch.
func (s *Store) Snapshot(zone string) map[string][]records.Record {
	zd, ok := s.zone(zone)
	if !ok {
		return nil
	}
	zd.mu.Lock()
	defer zd.mu.Unlock()
	out := make(map[string][]records.Record, len(zd.records))
	for k, v := range zd.records {
		cp := make([]records.Record, len(v))
		copy(cp, v)
		out[fmt.Sprintf("%s/%s", k.name, k.rtype)] = cp
	}
	return out
}

func recordEquals(a, b records.Record) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case records.TypeA, records.TypeAAAA:
		return a.Address.Equal(b.Address)
	case records.TypeCNAME:
		return a.Target == b.Target
	case records.TypeMX:
		return a.Priority == b.Priority && a.Target == b.Target
	case records.TypeSRV:
		return a.Priority == b.Priority && a.Weight == b.Weight && a.Port == b.Port && a.Target == b.Target
	case records.TypeTXT:
		if len(a.Strings) != len(b.Strings) {
			return false
		}
		for i := range a.Strings {
			if a.Strings[i] != b.Strings[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}
