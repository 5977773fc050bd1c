// Package records holds the canonical representation of DNS resource
// records used throughout duppy-go, plus codecs between that canonical
// form, the DNS wire format (github.com/miekg/dns), and the JSON update
// payload the HTTP front-end accepts.
package records

import (
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/miekg/dns"

	"github.com/pagekite/duppy-go/internal/duppyerr"
)

// Type is a string label for a supported resource record type. Strings
// (not the numeric miekg/dns constants) are used in the canonical form so
// that equality, hashing and backend parameter sets are stable across
// library versions.
type Type string

const (
	TypeA     Type = "A"
	TypeAAAA  Type = "AAAA"
	TypeCNAME Type = "CNAME"
	TypeMX    Type = "MX"
	TypeSRV   Type = "SRV"
	TypeTXT   Type = "TXT"
	TypeSOA   Type = "SOA"
)

// targetNameRegex matches the restrictive syntax RFC1035 host names use
// for CNAME/MX/SRV targets. Internationalized names are rejected on
// purpose (spec Open Question 4).
var targetNameRegex = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*\.?$`)

// SOAData carries the fields of an SOA record, used only for zone
// discovery replies.
type SOAData struct {
	MName   string
	RName   string
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

// Record is the canonical, wire/JSON-agnostic representation of one
// resource record's payload.
type Record struct {
	Owner string
	Type  Type
	Class string // always "IN"
	TTL   uint32

	Address  net.IP   // A / AAAA
	Target   string   // CNAME / MX / SRV
	Priority uint16   // MX / SRV
	Weight   uint16   // SRV
	Port     uint16   // SRV
	Strings  []string // TXT
	SOA      *SOAData // SOA
}

// Normalize lowercases a DNS name and strips any trailing dot, the form
// used for equality, hashing, and zone-membership comparisons everywhere
// in duppy-go.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, "."))
}

// IsInZone reports whether dnsName is the zone apex or a name below it.
// This is the default policy referenced by spec §3 invariant 1 and §4.2;
// backends may override it with stricter or looser rules.
func IsInZone(zone, dnsName string) bool {
	zone = Normalize(zone)
	dnsName = Normalize(dnsName)
	return dnsName == zone || strings.HasSuffix(dnsName, "."+zone)
}

// ValidateTargetName applies the restrictive CNAME/MX/SRV target syntax
// check carried over from the original implementation.
func ValidateTargetName(name string) error {
	if !targetNameRegex.MatchString(name) {
		return duppyerr.New(duppyerr.KindMalformed, "records.ValidateTargetName",
			fmt.Sprintf("invalid target name %q", name))
	}
	return nil
}

// EncodeWireRR converts a canonical Record into a github.com/miekg/dns RR,
// suitable for placing in a dns.Msg answer or update section.
func (r Record) EncodeWireRR() (dns.RR, error) {
	hdr := dns.RR_Header{
		Name:   dns.Fqdn(r.Owner),
		Rrtype: wireType(r.Type),
		Class:  dns.ClassINET,
		Ttl:    r.TTL,
	}
	if hdr.Rrtype == 0 {
		return nil, duppyerr.New(duppyerr.KindPolicyRejected, "records.EncodeWireRR",
			fmt.Sprintf("unimplemented record type %q", r.Type))
	}

	switch r.Type {
	case TypeA:
		ip := r.Address.To4()
		if ip == nil {
			ip = net.IPv4(0, 0, 0, 0).To4()
		}
		return &dns.A{Hdr: hdr, A: ip}, nil
	case TypeAAAA:
		ip := r.Address.To16()
		if ip == nil {
			ip = net.IPv6zero
		}
		return &dns.AAAA{Hdr: hdr, AAAA: ip}, nil
	case TypeCNAME:
		return &dns.CNAME{Hdr: hdr, Target: dns.Fqdn(r.Target)}, nil
	case TypeMX:
		return &dns.MX{Hdr: hdr, Preference: r.Priority, Mx: dns.Fqdn(r.Target)}, nil
	case TypeSRV:
		return &dns.SRV{Hdr: hdr, Priority: r.Priority, Weight: r.Weight, Port: r.Port, Target: dns.Fqdn(r.Target)}, nil
	case TypeTXT:
		return &dns.TXT{Hdr: hdr, Txt: r.Strings}, nil
	case TypeSOA:
		s := r.SOA
		if s == nil {
			s = &SOAData{}
		}
		return &dns.SOA{
			Hdr:     hdr,
			Ns:      dns.Fqdn(s.MName),
			Mbox:    dns.Fqdn(s.RName),
			Serial:  s.Serial,
			Refresh: s.Refresh,
			Retry:   s.Retry,
			Expire:  s.Expire,
			Minttl:  s.Minimum,
		}, nil
	default:
		return nil, duppyerr.New(duppyerr.KindPolicyRejected, "records.EncodeWireRR",
			fmt.Sprintf("unimplemented record type %q", r.Type))
	}
}

// DecodeWireRR converts a github.com/miekg/dns RR into the canonical
// Record form. Decoding is defensive: a zero-length A/AAAA rdata (used by
// RFC 2136 §2.5 as an empty-rdata deletion marker) decodes to a Record
// with a nil Address instead of returning an error.
func DecodeWireRR(rr dns.RR) (Record, error) {
	hdr := rr.Header()
	owner := Normalize(hdr.Name)
	ttl := hdr.Ttl

	switch v := rr.(type) {
	case *dns.A:
		return Record{Owner: owner, Type: TypeA, Class: "IN", TTL: ttl, Address: v.A}, nil
	case *dns.AAAA:
		return Record{Owner: owner, Type: TypeAAAA, Class: "IN", TTL: ttl, Address: v.AAAA}, nil
	case *dns.CNAME:
		return Record{Owner: owner, Type: TypeCNAME, Class: "IN", TTL: ttl, Target: Normalize(v.Target)}, nil
	case *dns.MX:
		return Record{Owner: owner, Type: TypeMX, Class: "IN", TTL: ttl, Priority: v.Preference, Target: Normalize(v.Mx)}, nil
	case *dns.SRV:
		return Record{Owner: owner, Type: TypeSRV, Class: "IN", TTL: ttl, Priority: v.Priority, Weight: v.Weight, Port: v.Port, Target: Normalize(v.Target)}, nil
	case *dns.TXT:
		return Record{Owner: owner, Type: TypeTXT, Class: "IN", TTL: ttl, Strings: v.Txt}, nil
	case *dns.SOA:
		return Record{Owner: owner, Type: TypeSOA, Class: "IN", TTL: ttl, SOA: &SOAData{
			MName: Normalize(v.Ns), RName: Normalize(v.Mbox), Serial: v.Serial,
			Refresh: v.Refresh, Retry: v.Retry, Expire: v.Expire, Minimum: v.Minttl,
		}}, nil
	default:
		return Record{}, duppyerr.New(duppyerr.KindPolicyRejected, "records.DecodeWireRR",
			fmt.Sprintf("unimplemented record type %s", dns.TypeToString[hdr.Rrtype]))
	}
}

func wireType(t Type) uint16 {
	switch t {
	case TypeA:
		return dns.TypeA
	case TypeAAAA:
		return dns.TypeAAAA
	case TypeCNAME:
		return dns.TypeCNAME
	case TypeMX:
		return dns.TypeMX
	case TypeSRV:
		return dns.TypeSRV
	case TypeTXT:
		return dns.TypeTXT
	case TypeSOA:
		return dns.TypeSOA
	default:
		return 0
	}
}

// ParseType maps a wire-level or JSON-level type string/code to a Type,
// reporting KindPolicyRejected ("unimplemented") for anything else.
func ParseType(s string) (Type, error) {
	switch strings.ToUpper(s) {
	case string(TypeA):
		return TypeA, nil
	case string(TypeAAAA):
		return TypeAAAA, nil
	case string(TypeCNAME):
		return TypeCNAME, nil
	case string(TypeMX):
		return TypeMX, nil
	case string(TypeSRV):
		return TypeSRV, nil
	case string(TypeTXT):
		return TypeTXT, nil
	case string(TypeSOA):
		return TypeSOA, nil
	default:
		return "", duppyerr.New(duppyerr.KindPolicyRejected, "records.ParseType",
			fmt.Sprintf("unimplemented record type %q", s))
	}
}
