package dnsfrontend

import (
	"github.com/miekg/dns"

	"github.com/pagekite/duppy-go/internal/backend"
	"github.com/pagekite/duppy-go/internal/duppyerr"
	"github.com/pagekite/duppy-go/internal/records"
)

// translateUpdateSection maps the wire update section (RFC 2136 §2.5) onto
// the engine's UpdateOp variants:
//
//	class ANY, type ANY, ttl 0, empty rdata   -> DeleteAllRRsets
//	class ANY, type T,   ttl 0, empty rdata   -> DeleteRRset(T)
//	class NONE, type T,  ttl 0, present rdata -> DeleteFromRRset(T, rdata)
//	class IN,  type T,   ttl >=min, present   -> AddToRRset(T, ...)
//	anything else                             -> FORMERR
func translateUpdateSection(zone string, rrs []dns.RR) ([]backend.UpdateOp, error) {
	const op = "dnsfrontend.translateUpdateSection"

	ops := make([]backend.UpdateOp, 0, len(rrs))
	for _, rr := range rrs {
		hdr := rr.Header()
		name := records.Normalize(hdr.Name)
		isEmpty := isEmptyRdata(rr)

		switch {
		case hdr.Class == dns.ClassANY && hdr.Rrtype == dns.TypeANY && hdr.Ttl == 0 && isEmpty:
			ops = append(ops, backend.DeleteAllRRsets{Zone: zone, Name: name})

		case hdr.Class == dns.ClassANY && hdr.Ttl == 0 && isEmpty:
			rtype, err := records.ParseType(dns.TypeToString[hdr.Rrtype])
			if err != nil {
				return nil, err
			}
			ops = append(ops, backend.DeleteRRset{Zone: zone, Name: name, Type: rtype})

		case hdr.Class == dns.ClassNONE && hdr.Ttl == 0 && !isEmpty:
			rec, err := records.DecodeWireRR(rr)
			if err != nil {
				return nil, err
			}
			ops = append(ops, backend.DeleteFromRRset{Zone: zone, Name: name, Type: rec.Type, RData: rec})

		case hdr.Class == dns.ClassINET && !isEmpty:
			rec, err := records.DecodeWireRR(rr)
			if err != nil {
				return nil, err
			}
			ops = append(ops, backend.AddToRRset{
				Zone: zone, Name: name, Type: rec.Type, TTL: hdr.Ttl,
				I1: rec.Priority, I2: rec.Weight, I3: rec.Port, RData: rec,
			})

		default:
			return nil, duppyerr.New(duppyerr.KindMalformed, op, "update RR does not match any RFC 2136 class/ttl/rdata combination")
		}
	}

	return ops, nil
}

// isEmptyRdata reports whether rr carries RFC 2136's empty-rdata deletion
// marker: a zero-length payload for its type (e.g. an A record with no
// address). Wire decoding elsewhere treats this defensively rather than
// erroring, but here it is the signal that distinguishes a delete marker
// from a record to add.
func isEmptyRdata(rr dns.RR) bool {
	switch v := rr.(type) {
	case *dns.A:
		return v.A == nil
	case *dns.AAAA:
		return v.AAAA == nil
	case *dns.CNAME:
		return v.Target == ""
	case *dns.MX:
		return v.Mx == ""
	case *dns.SRV:
		return v.Target == ""
	case *dns.TXT:
		return len(v.Txt) == 0
	case *dns.ANY:
		return true
	default:
		return false
	}
}
