package httpfrontend

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pagekite/duppy-go/internal/backend"
	"github.com/pagekite/duppy-go/internal/duppyerr"
	"github.com/pagekite/duppy-go/internal/records"
)

func marshalRaw(v any) ([]byte, error) {
	return json.Marshal(v)
}

// jsonUpdateRequest is the wire shape of POST {prefix}/v1/update.
type jsonUpdateRequest struct {
	Zone    string   `json:"zone" binding:"required"`
	Key     string   `json:"key"`
	Updates []jsonRaw `json:"updates" binding:"required"`
}

// jsonRaw defers parsing of each update element to records.DecodeJSONUpdate
// so its own validation (type-specific data shape) runs once, in one place.
type jsonRaw = map[string]any

// handleJSONUpdate implements POST {prefix}/v1/update: body key, then
// ?key=, then Authorization header auth precedence; matches the secret
// against get_keys(zone); submits the translated ops to the engine.
func (f *Frontend) handleJSONUpdate(c *gin.Context) {
	var req jsonUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), RequestTimeout)
	defer cancel()

	token := req.Key
	if token == "" {
		token = c.Query("key")
	}
	if token == "" {
		token = normalizeHeaderSecret(c.GetHeader("Authorization"))
	}
	if token == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "missing authentication key"})
		return
	}

	keys, err := resolveKeySecret(ctx, f.Backend, req.Zone)
	if err != nil {
		f.Log.Errorf("httpfrontend: GetKeys(%s): %v", req.Zone, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if _, ok := matchesAnyKey(keys, token); !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	ops := make([]backend.UpdateOp, 0, len(req.Updates))
	for _, raw := range req.Updates {
		op, encErr := jsonRawToOp(req.Zone, raw)
		if encErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": clientMessageForError(encErr)})
			return
		}
		ops = append(ops, op)
	}

	result, err := f.Engine.Update(ctx, req.Zone, req.Zone, ops)
	if err != nil {
		status := httpStatusForKind(duppyerr.KindOf(err))
		c.JSON(status, gin.H{"error": clientMessageForError(err)})
		return
	}

	resp := make([][2]any, 0, len(req.Updates))
	for _, raw := range req.Updates {
		resp = append(resp, [2]any{"ok", raw})
	}
	f.Log.Infof("httpfrontend: applied %d change(s) to zone %s", result.Changes, req.Zone)
	c.JSON(http.StatusOK, resp)
}

// jsonRawToOp re-marshals one loosely-typed update element (gin already
// decoded the envelope as map[string]any) back to bytes so
// records.DecodeJSONUpdate's single validation path can run, then
// converts the op/type to the matching backend.UpdateOp variant.
func jsonRawToOp(zone string, raw jsonRaw) (backend.UpdateOp, error) {
	buf, err := marshalRaw(raw)
	if err != nil {
		return nil, err
	}

	u, err := records.DecodeJSONUpdate(buf)
	if err != nil {
		return nil, err
	}

	rtype, err := records.ParseType(u.Type)
	if err != nil {
		return nil, err
	}

	switch u.Op {
	case "add":
		rec, err := u.ToRecord()
		if err != nil {
			return nil, err
		}
		return backend.AddToRRset{
			Zone: zone, Name: u.DNSName, Type: rtype, TTL: u.TTL,
			I1: rec.Priority, I2: rec.Weight, I3: rec.Port, RData: rec,
		}, nil
	case "delete":
		if u.Data == "" && len(u.DataList) == 0 {
			return backend.DeleteRRset{Zone: zone, Name: u.DNSName, Type: rtype}, nil
		}
		rec, err := u.ToRecord()
		if err != nil {
			return nil, err
		}
		return backend.DeleteFromRRset{Zone: zone, Name: u.DNSName, Type: rtype, RData: rec}, nil
	default:
		return nil, duppyerr.New(duppyerr.KindMalformed, "httpfrontend.jsonRawToOp", "unknown op")
	}
}
