package httpfrontend

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pagekite/duppy-go/internal/backend"
	"github.com/pagekite/duppy-go/internal/duppyerr"
	"github.com/pagekite/duppy-go/internal/records"
)

// handleSimpleUpdate implements GET {prefix}/v1/simple: the legacy
// DynDNS-compatible API. HTTP Basic auth (username=zone, password=secret),
// hostname/myip/myipv6/ttl/offline query parameters; per hostname and
// address family, one add op per address or one delete op.
func (f *Frontend) handleSimpleUpdate(c *gin.Context) {
	zone, secret, ok := c.Request.BasicAuth()
	if !ok {
		c.String(http.StatusForbidden, "badauth")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), RequestTimeout)
	defer cancel()

	keys, err := resolveKeySecret(ctx, f.Backend, zone)
	if err != nil {
		f.Log.Errorf("httpfrontend: GetKeys(%s): %v", zone, err)
		c.String(http.StatusInternalServerError, "911")
		return
	}
	if _, ok := matchesAnyKey(keys, secret); !ok {
		c.String(http.StatusForbidden, "badauth")
		return
	}

	hostnames := splitCSV(c.Query("hostname"))
	if len(hostnames) == 0 {
		c.String(http.StatusBadRequest, "Bad request: hostname is required")
		return
	}

	ttl := uint32(f.Cfg.DefaultTTL)
	if ttlStr := c.Query("ttl"); ttlStr != "" {
		v, err := strconv.Atoi(ttlStr)
		if err != nil || v < 0 {
			c.String(http.StatusBadRequest, "Bad request: invalid ttl")
			return
		}
		ttl = uint32(v)
	}

	offline := c.Query("offline") == "1"

	v4, v6 := splitByFamily(c.Query("myip"), c.Query("myipv6"))
	if offline {
		v4, v6 = nil, nil
	}

	var ops []backend.UpdateOp
	var goodLines []string
	for _, host := range hostnames {
		addrOps, addrs, err := simpleOpsForHost(zone, host, records.TypeA, v4, ttl)
		if err != nil {
			c.String(http.StatusBadRequest, "Bad request: "+clientMessageForError(err))
			return
		}
		ops = append(ops, addrOps...)

		aaaaOps, addrs6, err := simpleOpsForHost(zone, host, records.TypeAAAA, v6, ttl)
		if err != nil {
			c.String(http.StatusBadRequest, "Bad request: "+clientMessageForError(err))
			return
		}
		ops = append(ops, aaaaOps...)

		all := append(append([]string{}, addrs...), addrs6...)
		if len(all) > 0 {
			goodLines = append(goodLines, "good "+strings.Join(all, ","))
		} else {
			goodLines = append(goodLines, "good")
		}
	}

	if len(ops) == 0 {
		c.String(http.StatusOK, strings.Join(goodLines, "\n"))
		return
	}

	if _, err := f.Engine.Update(ctx, zone, zone, ops); err != nil {
		switch duppyerr.KindOf(err) {
		case duppyerr.KindMalformed, duppyerr.KindPolicyRejected:
			c.String(http.StatusBadRequest, "Bad request: "+clientMessageForError(err))
		case duppyerr.KindUnauthenticated, duppyerr.KindUnauthorized:
			c.String(http.StatusForbidden, "badauth")
		default:
			c.String(http.StatusInternalServerError, "911")
		}
		return
	}

	c.String(http.StatusOK, strings.Join(goodLines, "\n"))
}

// simpleOpsForHost builds the add/delete ops for one hostname and address
// family: an add-per-address when addrs is non-empty, or a single
// delete-rrset to clear stale records when it is empty.
func simpleOpsForHost(zone, host string, rtype records.Type, addrs []string, ttl uint32) ([]backend.UpdateOp, []string, error) {
	if len(addrs) == 0 {
		return []backend.UpdateOp{backend.DeleteRRset{Zone: zone, Name: host, Type: rtype}}, nil, nil
	}

	var ops []backend.UpdateOp
	for _, a := range addrs {
		ip := net.ParseIP(a)
		if ip == nil {
			return nil, nil, errInvalidAddress(a)
		}
		rec := records.Record{Owner: records.Normalize(host), Type: rtype, Class: "IN", TTL: ttl, Address: ip}
		ops = append(ops, backend.AddToRRset{Zone: zone, Name: host, Type: rtype, TTL: ttl, RData: rec})
	}
	return ops, addrs, nil
}

func errInvalidAddress(a string) error {
	return duppyerr.New(duppyerr.KindMalformed, "httpfrontend.simpleOpsForHost", "invalid address literal: "+a)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitByFamily applies spec.md §4.5's promotion rule: if myipv6 is
// absent, any ':'-containing entries in myip are promoted to the IPv6
// list.
func splitByFamily(myip, myipv6 string) (v4, v6 []string) {
	v6 = splitCSV(myipv6)
	for _, a := range splitCSV(myip) {
		if myipv6 == "" && strings.Contains(a, ":") {
			v6 = append(v6, a)
			continue
		}
		v4 = append(v4, a)
	}
	return v4, v6
}
