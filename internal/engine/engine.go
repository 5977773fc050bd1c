// Package engine implements the update pipeline shared by both front-ends:
// validate a batch of mutations against zone-policy invariants, then drive
// one all-or-nothing backend transaction.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pagekite/duppy-go/internal/backend"
	"github.com/pagekite/duppy-go/internal/duppyerr"
	"github.com/pagekite/duppy-go/internal/records"
)

// MinimumTTL is overridden per-Engine from configuration; 120s is the
// spec-documented default.
const DefaultMinimumTTL = 120

// Engine drives the update pipeline against one Backend.
type Engine struct {
	Backend    backend.Backend
	MinimumTTL uint32
	Log        *zap.SugaredLogger
}

// New builds an Engine. minimumTTL of 0 is replaced with DefaultMinimumTTL.
func New(be backend.Backend, minimumTTL uint32, log *zap.SugaredLogger) *Engine {
	if minimumTTL == 0 {
		minimumTTL = DefaultMinimumTTL
	}
	return &Engine{Backend: be, MinimumTTL: minimumTTL, Log: log}
}

// Result summarizes the outcome of a successful Update call.
type Result struct {
	Changes int
}

// Validate checks every op in a batch against spec §3's invariants that
// don't require a live backend round-trip: zone containment (delegated to
// the backend's IsInZone, which may suspend), single shared zone,
// TTL-floor-on-add, and apex-delete refusal. Delete ops carry no TTL, so
// the wire-level zero-TTL rule for deletes is checked by the DNS
// front-end's translation, not here. It does
// not check key binding (invariant 5) — that is an authentication concern
// the front-end resolves before building the op batch.
func (e *Engine) Validate(ctx context.Context, zone string, ops []backend.UpdateOp) error {
	const op = "engine.Validate"

	if len(ops) == 0 {
		return duppyerr.New(duppyerr.KindMalformed, op, "update request has no operations")
	}

	normZone := records.Normalize(zone)
	for _, u := range ops {
		if records.Normalize(u.ZoneName()) != normZone {
			return duppyerr.New(duppyerr.KindPolicyRejected, op, "all operations in one request must share one zone")
		}

		var name string
		switch v := u.(type) {
		case backend.AddToRRset:
			name = v.Name
			if v.TTL < e.MinimumTTL {
				return duppyerr.New(duppyerr.KindPolicyRejected, op,
					fmt.Sprintf("TTL is too low, %d < %d", v.TTL, e.MinimumTTL))
			}
		case backend.DeleteFromRRset:
			name = v.Name
		case backend.DeleteRRset:
			name = v.Name
		case backend.DeleteAllRRsets:
			name = v.Name
			if records.Normalize(v.Name) == normZone {
				return duppyerr.New(duppyerr.KindPolicyRejected, op,
					fmt.Sprintf("refused to delete entire zone: %s", zone))
			}
		default:
			return duppyerr.New(duppyerr.KindInternal, op, "unknown UpdateOp variant")
		}

		inZone, err := e.Backend.IsInZone(ctx, normZone, name)
		if err != nil {
			return duppyerr.Wrap(duppyerr.KindBackendFailure, op, err)
		}
		if !inZone {
			return duppyerr.New(duppyerr.KindPolicyRejected, op,
				fmt.Sprintf("not in zone %s: %s", zone, name))
		}
	}

	return nil
}

// Update drives the six-step pipeline from spec §4.3: start a
// transaction, apply every op in client order, notify-on-change, commit,
// and roll back on any failure. A guard ensures rollback fires on every
// exit path unless commit already succeeded.
func (e *Engine) Update(ctx context.Context, clientID, zone string, ops []backend.UpdateOp) (*Result, error) {
	const op = "engine.Update"

	if err := e.Validate(ctx, zone, ops); err != nil {
		return nil, err
	}

	normZone := records.Normalize(zone)

	tx, err := e.Backend.TransactionStart(ctx, normZone)
	if err != nil {
		return nil, duppyerr.Wrap(duppyerr.KindBackendFailure, op, err)
	}

	changes := 0
	needsRollback := true
	defer func() {
		if needsRollback {
			if rbErr := e.Backend.TransactionRollback(ctx, tx, normZone, changes == 0); rbErr != nil {
				e.logf("rollback failed for client %s zone %s: %v", clientID, normZone, rbErr)
			}
		}
	}()

	ok := true
	var applyErr error
	for _, u := range ops {
		ok, applyErr = e.apply(ctx, tx, u)
		if applyErr != nil {
			return nil, duppyerr.Wrap(duppyerr.KindBackendFailure, op, applyErr)
		}
		if !ok {
			break
		}
		changes++
	}

	if ok && changes > 0 {
		notified, err := e.Backend.NotifyChanged(ctx, tx, normZone)
		if err != nil {
			return nil, duppyerr.Wrap(duppyerr.KindBackendFailure, op, err)
		}
		ok = ok && notified
	}

	if !ok {
		return nil, duppyerr.New(duppyerr.KindBackendFailure, op, "update batch failed")
	}

	committed, err := e.Backend.TransactionCommit(ctx, tx, normZone)
	if err != nil {
		return nil, duppyerr.Wrap(duppyerr.KindBackendFailure, op, err)
	}
	if !committed {
		return nil, duppyerr.New(duppyerr.KindBackendFailure, op, "commit failed")
	}

	needsRollback = false
	e.logf("client %s applied %d change(s) to zone %s", clientID, changes, normZone)
	return &Result{Changes: changes}, nil
}

func (e *Engine) apply(ctx context.Context, tx backend.Tx, u backend.UpdateOp) (bool, error) {
	switch v := u.(type) {
	case backend.AddToRRset:
		return e.Backend.ApplyAddToRRset(ctx, tx, v)
	case backend.DeleteFromRRset:
		return e.Backend.ApplyDeleteFromRRset(ctx, tx, v)
	case backend.DeleteRRset:
		return e.Backend.ApplyDeleteRRset(ctx, tx, v)
	case backend.DeleteAllRRsets:
		return e.Backend.ApplyDeleteAllRRsets(ctx, tx, v)
	default:
		return false, fmt.Errorf("engine.apply: unknown UpdateOp variant %T", u)
	}
}

func (e *Engine) logf(format string, args ...any) {
	if e.Log != nil {
		e.Log.Infof(format, args...)
	}
}
