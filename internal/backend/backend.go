// Package backend defines the contract every storage driver must satisfy,
// and the UpdateOp sum type the update engine dispatches against it.
// Concrete backends (internal/memstore, internal/sqlstore,
// internal/powerdnsstore) are ordinary values that implement Backend; no
// inheritance hierarchy is involved.
package backend

import (
	"context"

	"github.com/pagekite/duppy-go/internal/records"
)

// Key is a named shared secret bound to one or more zones.
type Key struct {
	Name      string
	Algorithm string // default "hmac-sha256"
	Secret    string // base64-encoded
}

// ZoneInfo describes a zone as the backend knows it.
type ZoneInfo struct {
	Name       string
	Type       string // usually "SOA"
	Hostname   string
	Serial     uint32
	DefaultTTL uint32
}

// Tx is an opaque per-request transaction handle. It carries no methods
// of its own; all mutation goes through the Backend methods that accept
// a Tx, keeping the transaction lifecycle entirely in the engine's hands.
type Tx interface {
	// backendTx is unexported so only this package's (and a backend's own)
	// Tx implementations satisfy the interface.
	backendTx()
}

// UpdateOp is the tagged union of mutation operations the engine can
// apply. Each concrete type below is one variant.
type UpdateOp interface {
	// ZoneName is the normalized zone name every variant's Name must live
	// under; the engine validates this once per op before dispatch.
	ZoneName() string
	OpName() string
}

// AddToRRset appends one record to the RRset at (name, type), subject to
// the minimum-TTL invariant.
type AddToRRset struct {
	Zone string
	Name string
	Type records.Type
	TTL  uint32
	// I1, I2, I3 hold priority/weight/port where applicable, else 0.
	I1, I2, I3 uint16
	RData      records.Record
}

func (o AddToRRset) ZoneName() string { return o.Zone }
func (o AddToRRset) OpName() string   { return "add_to_rrset" }

// DeleteFromRRset deletes exactly one matching record from the RRset at
// (name, type).
type DeleteFromRRset struct {
	Zone  string
	Name  string
	Type  records.Type
	RData records.Record
}

func (o DeleteFromRRset) ZoneName() string { return o.Zone }
func (o DeleteFromRRset) OpName() string   { return "delete_from_rrset" }

// DeleteRRset deletes every record of one type at a name.
type DeleteRRset struct {
	Zone string
	Name string
	Type records.Type
}

func (o DeleteRRset) ZoneName() string { return o.Zone }
func (o DeleteRRset) OpName() string   { return "delete_rrset" }

// DeleteAllRRsets deletes every record at a name, regardless of type.
// Forbidden when Name equals the zone apex (invariant 4).
type DeleteAllRRsets struct {
	Zone string
	Name string
}

func (o DeleteAllRRsets) ZoneName() string { return o.Zone }
func (o DeleteAllRRsets) OpName() string   { return "delete_all_rrsets" }

// Backend is the contract a storage driver must satisfy. Every method may
// suspend (perform I/O); none may be assumed to complete synchronously.
type Backend interface {
	GetAllZones(ctx context.Context) (map[string]ZoneInfo, error)
	GetAllKeys(ctx context.Context) (map[string]Key, error)
	GetKeys(ctx context.Context, zone string) (map[string]Key, error)
	CheckKeyInZone(ctx context.Context, keyName, zone string) (bool, error)
	IsInZone(ctx context.Context, zone, dnsName string) (bool, error)

	TransactionStart(ctx context.Context, zone string) (Tx, error)

	ApplyAddToRRset(ctx context.Context, tx Tx, op AddToRRset) (bool, error)
	ApplyDeleteFromRRset(ctx context.Context, tx Tx, op DeleteFromRRset) (bool, error)
	ApplyDeleteRRset(ctx context.Context, tx Tx, op DeleteRRset) (bool, error)
	ApplyDeleteAllRRsets(ctx context.Context, tx Tx, op DeleteAllRRsets) (bool, error)

	NotifyChanged(ctx context.Context, tx Tx, zone string) (bool, error)
	TransactionCommit(ctx context.Context, tx Tx, zone string) (bool, error)
	// TransactionRollback must be safe to call on any Tx, including one
	// whose commit already succeeded would be a programmer error to call
	// on — backends should treat a rollback after commit as a no-op
	// rather than panicking, since the engine always rolls back unless it
	// observed a successful commit itself.
	TransactionRollback(ctx context.Context, tx Tx, zone string, silent bool) error
}

// DefaultIsInZone implements spec §3 invariant 1: dnsName must equal the
// zone, or end with "."+zone. Backends that have no zone-specific policy
// hook can delegate IsInZone to this.
func DefaultIsInZone(zone, dnsName string) bool {
	return records.IsInZone(zone, dnsName)
}
