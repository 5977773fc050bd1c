package records

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/pagekite/duppy-go/internal/duppyerr"
)

// JSONUpdate mirrors the wire shape of one element in an HTTP "v1/update"
// request body.
type JSONUpdate struct {
	Op       string   `json:"op"`
	DNSName  string   `json:"dns_name"`
	Type     string   `json:"type"`
	TTL      uint32   `json:"ttl,omitempty"`
	Data     string   `json:"data,omitempty"`
	DataList []string `json:"-"` // populated/consumed only for TXT
	Priority int      `json:"priority,omitempty"`
	Weight   int      `json:"weight,omitempty"`
	Port     int      `json:"port,omitempty"`
}

// jsonUpdateWire exists because TXT's "data" field is a list of strings on
// the wire while every other type's "data" is a single string; we decode
// into a raw json.RawMessage first to tell them apart.
type jsonUpdateWire struct {
	Op       string          `json:"op"`
	DNSName  string          `json:"dns_name"`
	Type     string          `json:"type"`
	TTL      uint32          `json:"ttl,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Priority int             `json:"priority,omitempty"`
	Weight   int             `json:"weight,omitempty"`
	Port     int             `json:"port,omitempty"`
}

// DecodeJSONUpdate parses one update element from the HTTP API's JSON
// body into a JSONUpdate, performing the syntactic validation spec §4.1
// requires (IP literal parsing for A/AAAA, target-name regex for
// CNAME/MX/SRV, non-negative numeric fields).
func DecodeJSONUpdate(raw []byte) (JSONUpdate, error) {
	const op = "records.DecodeJSONUpdate"

	var w jsonUpdateWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return JSONUpdate{}, duppyerr.Wrap(duppyerr.KindMalformed, op, err)
	}

	out := JSONUpdate{
		Op:       w.Op,
		DNSName:  w.DNSName,
		Type:     w.Type,
		TTL:      w.TTL,
		Priority: w.Priority,
		Weight:   w.Weight,
		Port:     w.Port,
	}

	if out.Op != "add" && out.Op != "delete" {
		return JSONUpdate{}, duppyerr.New(duppyerr.KindMalformed, op, fmt.Sprintf("unknown op %q", out.Op))
	}
	if out.DNSName == "" {
		return JSONUpdate{}, duppyerr.New(duppyerr.KindMalformed, op, "dns_name is required")
	}

	rtype, err := ParseType(out.Type)
	if err != nil {
		return JSONUpdate{}, err
	}

	if len(w.Data) > 0 {
		if rtype == TypeTXT {
			var list []string
			if err := json.Unmarshal(w.Data, &list); err != nil {
				var single string
				if err2 := json.Unmarshal(w.Data, &single); err2 != nil {
					return JSONUpdate{}, duppyerr.Wrap(duppyerr.KindMalformed, op, err)
				}
				list = []string{single}
			}
			out.DataList = list
		} else {
			var single string
			if err := json.Unmarshal(w.Data, &single); err != nil {
				return JSONUpdate{}, duppyerr.Wrap(duppyerr.KindMalformed, op, err)
			}
			out.Data = single
		}
	}

	if out.Op == "add" {
		switch rtype {
		case TypeA:
			if net.ParseIP(out.Data).To4() == nil {
				return JSONUpdate{}, duppyerr.New(duppyerr.KindMalformed, op, fmt.Sprintf("invalid IPv4 literal %q", out.Data))
			}
		case TypeAAAA:
			ip := net.ParseIP(out.Data)
			if ip == nil || ip.To4() != nil {
				return JSONUpdate{}, duppyerr.New(duppyerr.KindMalformed, op, fmt.Sprintf("invalid IPv6 literal %q", out.Data))
			}
		case TypeCNAME:
			if err := ValidateTargetName(out.Data); err != nil {
				return JSONUpdate{}, err
			}
		case TypeMX:
			if err := ValidateTargetName(out.Data); err != nil {
				return JSONUpdate{}, err
			}
			if out.Priority <= 0 {
				return JSONUpdate{}, duppyerr.New(duppyerr.KindMalformed, op, "priority must be positive for MX")
			}
		case TypeSRV:
			if err := ValidateTargetName(out.Data); err != nil {
				return JSONUpdate{}, err
			}
			if out.Priority < 0 || out.Weight < 0 || out.Port < 0 {
				return JSONUpdate{}, duppyerr.New(duppyerr.KindMalformed, op, "priority/weight/port must be non-negative for SRV")
			}
		case TypeTXT:
			if len(out.DataList) == 0 {
				return JSONUpdate{}, duppyerr.New(duppyerr.KindMalformed, op, "data is required for TXT")
			}
		}
	}

	return out, nil
}

// Encode serializes a JSONUpdate back to the wire JSON form.
func (u JSONUpdate) Encode() ([]byte, error) {
	w := jsonUpdateWire{
		Op:       u.Op,
		DNSName:  u.DNSName,
		Type:     u.Type,
		TTL:      u.TTL,
		Priority: u.Priority,
		Weight:   u.Weight,
		Port:     u.Port,
	}
	var raw []byte
	var err error
	if Type(u.Type) == TypeTXT && u.DataList != nil {
		raw, err = json.Marshal(u.DataList)
	} else if u.Data != "" {
		raw, err = json.Marshal(u.Data)
	}
	if err != nil {
		return nil, duppyerr.Wrap(duppyerr.KindInternal, "records.JSONUpdate.Encode", err)
	}
	w.Data = raw
	return json.Marshal(w)
}

// ToRecord converts a validated add-op JSONUpdate into a canonical Record.
func (u JSONUpdate) ToRecord() (Record, error) {
	rtype, err := ParseType(u.Type)
	if err != nil {
		return Record{}, err
	}
	r := Record{Owner: Normalize(u.DNSName), Type: rtype, Class: "IN", TTL: u.TTL}
	switch rtype {
	case TypeA, TypeAAAA:
		r.Address = net.ParseIP(u.Data)
	case TypeCNAME:
		r.Target = Normalize(u.Data)
	case TypeMX:
		r.Target = Normalize(u.Data)
		r.Priority = uint16(u.Priority)
	case TypeSRV:
		r.Target = Normalize(u.Data)
		r.Priority = uint16(u.Priority)
		r.Weight = uint16(u.Weight)
		r.Port = uint16(u.Port)
	case TypeTXT:
		r.Strings = u.DataList
	}
	return r, nil
}
