// Package dnsfrontend serves RFC 2136 DNS UPDATE over UDP and TCP, built
// on github.com/miekg/dns the way the retrieval pack's dlukt-dnsctl and
// johanix-tdns servers are: one dns.ServeMux handler fed by a pair of
// dns.Server listeners (one per transport), TSIG verified by the library
// against a keyring this package rebuilds from the backend on every
// message.
package dnsfrontend

import (
	"context"
	"fmt"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/pagekite/duppy-go/internal/backend"
	"github.com/pagekite/duppy-go/internal/duppyerr"
	"github.com/pagekite/duppy-go/internal/engine"
	"github.com/pagekite/duppy-go/internal/records"
)

// RequestTimeout bounds how long one UPDATE is allowed to block on the
// engine/backend before the front-end gives up and answers SERVFAIL.
const RequestTimeout = 30 * time.Second

// Frontend is the RFC 2136 DNS UPDATE listener.
type Frontend struct {
	Engine  *engine.Engine
	Backend backend.Backend
	Log     *zap.SugaredLogger

	servers []*dns.Server
}

// New builds a Frontend. The listen address and the UDP/TCP transport
// choice are passed to ListenAndServe.
func New(eng *engine.Engine, be backend.Backend, log *zap.SugaredLogger) *Frontend {
	return &Frontend{Engine: eng, Backend: be, Log: log}
}

// ListenAndServe starts the requested transports and blocks until ctx is
// cancelled, then shuts every listener down, mirroring the teacher's own
// goroutine-per-listener / shutdown-on-context-cancel pattern.
func (f *Frontend) ListenAndServe(ctx context.Context, addr string, udp, tcp bool) error {
	mux := dns.NewServeMux()
	mux.HandleFunc(".", f.handle)

	var transports []string
	if udp {
		transports = append(transports, "udp")
	}
	if tcp {
		transports = append(transports, "tcp")
	}

	errCh := make(chan error, len(transports))
	for _, transport := range transports {
		srv := &dns.Server{
			Addr:    addr,
			Net:     transport,
			Handler: mux,
		}
		if transport == "udp" {
			srv.UDPSize = dns.DefaultMsgSize
		}
		f.servers = append(f.servers, srv)

		go func(s *dns.Server) {
			if err := s.ListenAndServe(); err != nil {
				f.logf("dnsfrontend: %s listener on %s stopped: %v", s.Net, s.Addr, err)
				errCh <- fmt.Errorf("dnsfrontend: %s listener: %w", s.Net, err)
				return
			}
			errCh <- nil
		}(srv)
	}

	<-ctx.Done()
	return f.Shutdown(context.Background())
}

// Shutdown gracefully stops every running listener.
func (f *Frontend) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, s := range f.servers {
		if err := s.ShutdownContext(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// handle is the shared UDP/TCP entry point for every inbound message.
func (f *Frontend) handle(w dns.ResponseWriter, r *dns.Msg) {
	defer func() {
		if rec := recover(); rec != nil {
			f.logf("dnsfrontend: panic handling message: %v", rec)
			reply(w, r, dns.RcodeServerFailure)
		}
	}()

	switch r.Opcode {
	case dns.OpcodeQuery:
		f.handleQuery(w, r)
	case dns.OpcodeUpdate:
		f.handleUpdate(w, r)
	default:
		reply(w, r, dns.RcodeNotImplemented)
	}
}

// handleQuery answers only SOA discovery queries (spec's QueryHandling
// state); everything else is out of scope for this server.
func (f *Frontend) handleQuery(w dns.ResponseWriter, r *dns.Msg) {
	if len(r.Question) != 1 || r.Question[0].Qtype != dns.TypeSOA {
		reply(w, r, dns.RcodeNotImplemented)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
	defer cancel()

	qname := records.Normalize(r.Question[0].Name)
	zones, err := f.Backend.GetAllZones(ctx)
	if err != nil {
		f.logf("dnsfrontend: GetAllZones failed: %v", err)
		reply(w, r, dns.RcodeServerFailure)
		return
	}

	zi, ok := zones[qname]
	if !ok {
		reply(w, r, dns.RcodeNameError)
		return
	}

	soaRec := records.Record{
		Owner: zi.Name,
		Type:  records.TypeSOA,
		Class: "IN",
		TTL:   zi.DefaultTTL,
		SOA: &records.SOAData{
			MName:   zi.Hostname,
			RName:   "hostmaster." + zi.Name,
			Serial:  zi.Serial,
			Refresh: 3600,
			Retry:   600,
			Expire:  604800,
			Minimum: zi.DefaultTTL,
		},
	}
	rr, err := soaRec.EncodeWireRR()
	if err != nil {
		f.logf("dnsfrontend: encoding SOA for %s: %v", qname, err)
		reply(w, r, dns.RcodeServerFailure)
		return
	}

	m := new(dns.Msg)
	m.SetReply(r)
	m.Authoritative = true
	m.Answer = append(m.Answer, rr)
	_ = w.WriteMsg(m)
}

// handleUpdate implements the UpdateHandling states: TSIG/key-binding
// check, prerequisite rejection, wire→UpdateOp translation, engine
// dispatch, and RCODE mapping.
func (f *Frontend) handleUpdate(w dns.ResponseWriter, r *dns.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
	defer cancel()

	if len(r.Question) != 1 {
		reply(w, r, dns.RcodeFormatError)
		return
	}
	zone := records.Normalize(r.Question[0].Name)

	keyName, secret, ok := f.authenticate(ctx, w, r, zone)
	if !ok {
		reply(w, r, dns.RcodeRefused)
		return
	}

	if len(r.Answer) > 0 {
		// Prerequisite section (wire "answer" section on an UPDATE message)
		// is non-empty: prerequisites are not supported (spec Open Question 3).
		reply(w, r, dns.RcodeNotImplemented)
		return
	}

	ops, err := translateUpdateSection(zone, r.Ns)
	if err != nil {
		if duppyerr.KindOf(err) == duppyerr.KindMalformed {
			reply(w, r, dns.RcodeFormatError)
		} else {
			reply(w, r, dns.RcodeNotImplemented)
		}
		return
	}

	_, err = f.Engine.Update(ctx, keyName, zone, ops)
	if err != nil {
		f.replyForError(w, r, err)
		return
	}

	f.signedReply(w, r, keyName, secret, dns.RcodeSuccess)
}

// authenticate requires at least one TSIG RR naming a key bound to the
// request's zone, then verifies the message against that key's secret —
// the "try every candidate secret for the zone" requirement from spec.md
// §4.4 reduces to a single candidate once the key name narrows it, since
// TSIG carries its own key name on the wire. Returns the validating key's
// name and base64 secret so the reply can be signed with the same key.
func (f *Frontend) authenticate(ctx context.Context, w dns.ResponseWriter, r *dns.Msg, zone string) (string, string, bool) {
	tsig := r.IsTsig()
	if tsig == nil {
		return "", "", false
	}

	keys, err := f.Backend.GetKeys(ctx, zone)
	if err != nil || len(keys) == 0 {
		return "", "", false
	}

	// The wire key name is fully qualified; a key may be stored under
	// that form or under its normalized (dot-less) form.
	keyName := tsig.Hdr.Name
	key, bound := keys[keyName]
	if !bound {
		keyName = records.Normalize(keyName)
		key, bound = keys[keyName]
	}
	if !bound {
		return "", "", false
	}

	buf, err := r.Pack()
	if err != nil {
		return "", "", false
	}
	if err := dns.TsigVerify(buf, key.Secret, "", false); err != nil {
		return "", "", false
	}

	inZone, err := f.Backend.CheckKeyInZone(ctx, keyName, zone)
	if err != nil || !inZone {
		return "", "", false
	}

	return keyName, key.Secret, true
}

// signedReply writes a reply TSIG-signed with the key that authenticated
// the request, per spec.md §4.4 ("the response to an authenticated UPDATE
// is signed with the key that validated it").
func (f *Frontend) signedReply(w dns.ResponseWriter, r *dns.Msg, keyName, secret string, rcode int) {
	m := new(dns.Msg)
	m.SetRcode(r, rcode)

	reqTsig := r.IsTsig()
	if keyName == "" || reqTsig == nil {
		_ = w.WriteMsg(m)
		return
	}

	m.SetTsig(dns.Fqdn(keyName), dns.HmacSHA256, 300, time.Now().Unix())
	buf, _, err := dns.TsigGenerate(m, secret, reqTsig.MAC, false)
	if err != nil {
		f.logf("dnsfrontend: signing reply for key %s: %v", keyName, err)
		_ = w.WriteMsg(m)
		return
	}
	_, _ = w.Write(buf)
}

func (f *Frontend) replyForError(w dns.ResponseWriter, r *dns.Msg, err error) {
	switch duppyerr.KindOf(err) {
	case duppyerr.KindMalformed:
		reply(w, r, dns.RcodeFormatError)
	case duppyerr.KindUnauthenticated, duppyerr.KindUnauthorized:
		reply(w, r, dns.RcodeRefused)
	case duppyerr.KindPolicyRejected:
		reply(w, r, dns.RcodeNotImplemented)
	case duppyerr.KindNotFound:
		reply(w, r, dns.RcodeNameError)
	default:
		reply(w, r, dns.RcodeServerFailure)
	}
}

func reply(w dns.ResponseWriter, r *dns.Msg, rcode int) {
	m := new(dns.Msg)
	m.SetRcode(r, rcode)
	_ = w.WriteMsg(m)
}

func (f *Frontend) logf(format string, args ...any) {
	if f.Log != nil {
		f.Log.Infof(format, args...)
	}
}
