// Package sqlstore is a GORM-backed backend.Backend, for deployments that
// want persisted zone/key/record state in sqlite, postgres or mysql rather
// than the in-memory quick-start store.
package sqlstore

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pagekite/duppy-go/internal/backend"
	"github.com/pagekite/duppy-go/internal/duppyerr"
	"github.com/pagekite/duppy-go/internal/records"
)

// ZoneRow is the GORM model for one managed zone.
type ZoneRow struct {
	Name       string `gorm:"primaryKey"`
	Type       string
	Hostname   string
	Serial     uint32
	DefaultTTL uint32
}

// KeyRow is the GORM model for one TSIG key, bound to a zone.
type KeyRow struct {
	ID        uint   `gorm:"primaryKey"`
	Zone      string `gorm:"index"`
	Name      string `gorm:"index"`
	Algorithm string
	Secret    string
}

// RecordRow is the GORM model for one resource record.
type RecordRow struct {
	ID       uint   `gorm:"primaryKey"`
	Zone     string `gorm:"index"`
	Name     string `gorm:"index"`
	Type     string `gorm:"index"`
	TTL      uint32
	Address  string
	Target   string
	Priority uint16
	Weight   uint16
	Port     uint16
	Text     string // TXT strings, newline-joined; duppy-go never stores embedded newlines in TXT
}

// Store is a GORM-backed backend.Backend. Concurrent writers to the same
// zone are serialized with an in-process per-zone mutex, the same role
// memstore's zoneData.mu plays, since Backend.TransactionStart is the only
// hook the engine gives a backend to establish exclusivity and a SQL
// transaction alone does not block a second writer from starting one.
type Store struct {
	db *gorm.DB

	mu        sync.Mutex
	zoneLocks map[string]*sync.Mutex
}

// Open connects to dbType ("sqlite", "postgres", or "mysql") using dsn and
// auto-migrates the schema, mirroring the dialector switch the teacher's
// storage layer used for its own Zone/Token models.
func Open(dbType, dsn string) (*Store, error) {
	const op = "sqlstore.Open"

	var dialector gorm.Dialector
	switch dbType {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, duppyerr.New(duppyerr.KindInternal, op, fmt.Sprintf("unsupported database type %q", dbType))
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, duppyerr.Wrap(duppyerr.KindBackendFailure, op, fmt.Errorf("connect to %s: %w", dbType, err))
	}

	if err := db.AutoMigrate(&ZoneRow{}, &KeyRow{}, &RecordRow{}); err != nil {
		return nil, duppyerr.Wrap(duppyerr.KindBackendFailure, op, fmt.Errorf("auto-migrate: %w", err))
	}

	return &Store{db: db, zoneLocks: make(map[string]*sync.Mutex)}, nil
}

// AddZone upserts a zone row. Out-of-core provisioning hook, same role as
// memstore.AddZone.
func (s *Store) AddZone(ctx context.Context, info backend.ZoneInfo) error {
	row := ZoneRow{
		Name:       records.Normalize(info.Name),
		Type:       info.Type,
		Hostname:   info.Hostname,
		Serial:     info.Serial,
		DefaultTTL: info.DefaultTTL,
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return duppyerr.Wrap(duppyerr.KindBackendFailure, "sqlstore.AddZone", err)
	}
	return nil
}

// AddKey inserts a TSIG key bound to a zone.
func (s *Store) AddKey(ctx context.Context, zone string, key backend.Key) error {
	row := KeyRow{Zone: records.Normalize(zone), Name: key.Name, Algorithm: key.Algorithm, Secret: key.Secret}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return duppyerr.Wrap(duppyerr.KindBackendFailure, "sqlstore.AddKey", err)
	}
	return nil
}

// DeleteZone removes a zone row and every key/record row under it.
func (s *Store) DeleteZone(ctx context.Context, zone string) error {
	zone = records.Normalize(zone)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("zone = ?", zone).Delete(&RecordRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("zone = ?", zone).Delete(&KeyRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("name = ?", zone).Delete(&ZoneRow{}).Error; err != nil {
			return err
		}
		return nil
	})
}

// DeleteKey unbinds one TSIG key from a zone.
func (s *Store) DeleteKey(ctx context.Context, zone, keyName string) error {
	err := s.db.WithContext(ctx).
		Where("zone = ? AND name = ?", records.Normalize(zone), keyName).
		Delete(&KeyRow{}).Error
	if err != nil {
		return duppyerr.Wrap(duppyerr.KindBackendFailure, "sqlstore.DeleteKey", err)
	}
	return nil
}

func (s *Store) GetAllZones(ctx context.Context) (map[string]backend.ZoneInfo, error) {
	var rows []ZoneRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, duppyerr.Wrap(duppyerr.KindBackendFailure, "sqlstore.GetAllZones", err)
	}
	out := make(map[string]backend.ZoneInfo, len(rows))
	for _, r := range rows {
		out[r.Name] = backend.ZoneInfo{Name: r.Name, Type: r.Type, Hostname: r.Hostname, Serial: r.Serial, DefaultTTL: r.DefaultTTL}
	}
	return out, nil
}

func (s *Store) GetAllKeys(ctx context.Context) (map[string]backend.Key, error) {
	var rows []KeyRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, duppyerr.Wrap(duppyerr.KindBackendFailure, "sqlstore.GetAllKeys", err)
	}
	out := make(map[string]backend.Key, len(rows))
	for _, r := range rows {
		out[r.Name] = backend.Key{Name: r.Name, Algorithm: r.Algorithm, Secret: r.Secret}
	}
	return out, nil
}

func (s *Store) GetKeys(ctx context.Context, zone string) (map[string]backend.Key, error) {
	var rows []KeyRow
	if err := s.db.WithContext(ctx).Where("zone = ?", records.Normalize(zone)).Find(&rows).Error; err != nil {
		return nil, duppyerr.Wrap(duppyerr.KindBackendFailure, "sqlstore.GetKeys", err)
	}
	out := make(map[string]backend.Key, len(rows))
	for _, r := range rows {
		out[r.Name] = backend.Key{Name: r.Name, Algorithm: r.Algorithm, Secret: r.Secret}
	}
	return out, nil
}

func (s *Store) CheckKeyInZone(ctx context.Context, keyName, zone string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&KeyRow{}).
		Where("zone = ? AND name = ?", records.Normalize(zone), keyName).
		Count(&count).Error
	if err != nil {
		return false, duppyerr.Wrap(duppyerr.KindBackendFailure, "sqlstore.CheckKeyInZone", err)
	}
	return count > 0, nil
}

func (s *Store) IsInZone(ctx context.Context, zone, dnsName string) (bool, error) {
	return backend.DefaultIsInZone(zone, dnsName), nil
}

func (s *Store) zoneLock(zone string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.zoneLocks[zone]
	if !ok {
		l = &sync.Mutex{}
		s.zoneLocks[zone] = l
	}
	return l
}

// tx wraps a *gorm.DB transaction together with the zone lock it holds.
type tx struct {
	zone     string
	gdb      *gorm.DB
	lock     *sync.Mutex
	released bool
}

func (*tx) backendTx() {}

func (s *Store) TransactionStart(ctx context.Context, zone string) (backend.Tx, error) {
	zone = records.Normalize(zone)
	lock := s.zoneLock(zone)
	lock.Lock()

	gdb := s.db.WithContext(ctx).Begin()
	if gdb.Error != nil {
		lock.Unlock()
		return nil, duppyerr.Wrap(duppyerr.KindBackendFailure, "sqlstore.TransactionStart", gdb.Error)
	}
	return &tx{zone: zone, gdb: gdb, lock: lock}, nil
}

func asTx(t backend.Tx) (*tx, error) {
	st, ok := t.(*tx)
	if !ok {
		return nil, fmt.Errorf("sqlstore: not a sqlstore transaction")
	}
	return st, nil
}

func (s *Store) ApplyAddToRRset(ctx context.Context, t backend.Tx, op backend.AddToRRset) (bool, error) {
	st, err := asTx(t)
	if err != nil {
		return false, err
	}
	row, err := toRow(st.zone, op.Name, op.Type, op.TTL, op.RData)
	if err != nil {
		return false, err
	}
	if err := st.gdb.Create(&row).Error; err != nil {
		return false, duppyerr.Wrap(duppyerr.KindBackendFailure, "sqlstore.ApplyAddToRRset", err)
	}
	return true, nil
}

func (s *Store) ApplyDeleteFromRRset(ctx context.Context, t backend.Tx, op backend.DeleteFromRRset) (bool, error) {
	st, err := asTx(t)
	if err != nil {
		return false, err
	}
	row, err := toRow(st.zone, op.Name, op.Type, 0, op.RData)
	if err != nil {
		return false, err
	}
	q := st.gdb.Where("zone = ? AND name = ? AND type = ?", st.zone, records.Normalize(op.Name), string(op.Type))
	switch op.Type {
	case records.TypeA, records.TypeAAAA:
		q = q.Where("address = ?", row.Address)
	case records.TypeCNAME:
		q = q.Where("target = ?", row.Target)
	case records.TypeMX:
		q = q.Where("priority = ? AND target = ?", row.Priority, row.Target)
	case records.TypeSRV:
		q = q.Where("priority = ? AND weight = ? AND port = ? AND target = ?", row.Priority, row.Weight, row.Port, row.Target)
	case records.TypeTXT:
		q = q.Where("text = ?", row.Text)
	}
	if err := q.Delete(&RecordRow{}).Error; err != nil {
		return false, duppyerr.Wrap(duppyerr.KindBackendFailure, "sqlstore.ApplyDeleteFromRRset", err)
	}
	return true, nil
}

func (s *Store) ApplyDeleteRRset(ctx context.Context, t backend.Tx, op backend.DeleteRRset) (bool, error) {
	st, err := asTx(t)
	if err != nil {
		return false, err
	}
	err = st.gdb.Where("zone = ? AND name = ? AND type = ?", st.zone, records.Normalize(op.Name), string(op.Type)).
		Delete(&RecordRow{}).Error
	if err != nil {
		return false, duppyerr.Wrap(duppyerr.KindBackendFailure, "sqlstore.ApplyDeleteRRset", err)
	}
	return true, nil
}

func (s *Store) ApplyDeleteAllRRsets(ctx context.Context, t backend.Tx, op backend.DeleteAllRRsets) (bool, error) {
	st, err := asTx(t)
	if err != nil {
		return false, err
	}
	err = st.gdb.Where("zone = ? AND name = ?", st.zone, records.Normalize(op.Name)).Delete(&RecordRow{}).Error
	if err != nil {
		return false, duppyerr.Wrap(duppyerr.KindBackendFailure, "sqlstore.ApplyDeleteAllRRsets", err)
	}
	return true, nil
}

func (s *Store) NotifyChanged(ctx context.Context, t backend.Tx, zone string) (bool, error) {
	st, err := asTx(t)
	if err != nil {
		return false, err
	}
	err = st.gdb.Model(&ZoneRow{}).Where("name = ?", st.zone).
		UpdateColumn("serial", gorm.Expr("serial + 1")).Error
	if err != nil {
		return false, duppyerr.Wrap(duppyerr.KindBackendFailure, "sqlstore.NotifyChanged", err)
	}
	return true, nil
}

func (s *Store) TransactionCommit(ctx context.Context, t backend.Tx, zone string) (bool, error) {
	st, err := asTx(t)
	if err != nil {
		return false, err
	}
	defer s.release(st)
	if err := st.gdb.Commit().Error; err != nil {
		return false, duppyerr.Wrap(duppyerr.KindBackendFailure, "sqlstore.TransactionCommit", err)
	}
	return true, nil
}

func (s *Store) TransactionRollback(ctx context.Context, t backend.Tx, zone string, silent bool) error {
	st, err := asTx(t)
	if err != nil {
		return err
	}
	defer s.release(st)
	if err := st.gdb.Rollback().Error; err != nil {
		return duppyerr.Wrap(duppyerr.KindBackendFailure, "sqlstore.TransactionRollback", err)
	}
	return nil
}

func (s *Store) release(st *tx) {
	if st.released {
		return
	}
	st.released = true
	st.lock.Unlock()
}

func toRow(zone, name string, rtype records.Type, ttl uint32, r records.Record) (RecordRow, error) {
	row := RecordRow{Zone: zone, Name: records.Normalize(name), Type: string(rtype), TTL: ttl}
	switch rtype {
	case records.TypeA, records.TypeAAAA:
		if r.Address != nil {
			row.Address = r.Address.String()
		}
	case records.TypeCNAME:
		row.Target = r.Target
	case records.TypeMX:
		row.Target = r.Target
		row.Priority = r.Priority
	case records.TypeSRV:
		row.Target = r.Target
		row.Priority = r.Priority
		row.Weight = r.Weight
		row.Port = r.Port
	case records.TypeTXT:
		for i, s := range r.Strings {
			if i > 0 {
				row.Text += "\n"
			}
			row.Text += s
		}
	default:
		return RecordRow{}, duppyerr.New(duppyerr.KindPolicyRejected, "sqlstore.toRow",
			fmt.Sprintf("unimplemented record type %q", rtype))
	}
	return row, nil
}
