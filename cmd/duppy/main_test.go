package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/pagekite/duppy-go/internal/backend"
	"github.com/pagekite/duppy-go/internal/dnsfrontend"
	"github.com/pagekite/duppy-go/internal/engine"
	"github.com/pagekite/duppy-go/internal/httpfrontend"
	"github.com/pagekite/duppy-go/internal/memstore"
	"github.com/pagekite/duppy-go/internal/records"
)

// TestRoundtrip starts the DNS and HTTP front-ends against an in-process
// memstore, performs an RFC 2136 update, confirms it in the store's
// snapshot (the DNS front-end answers only SOA queries), and exercises the JSON update API end to end — the same roundtrip shape as
// the teacher's own integration test, minus its PDNS test container since
// memstore needs no external process to stand up.
func TestRoundtrip(t *testing.T) {
	const dnsAddr = "127.0.0.1:15353"
	const httpAddr = "127.0.0.1:18053"
	const zone = "example.test"
	const keyName = "roundtrip-key."

	store := memstore.New()
	store.AddZone(backend.ZoneInfo{Name: zone, Type: "SOA", Hostname: "ns1." + zone, DefaultTTL: 300})
	if err := store.AddKey(zone, backend.Key{Name: keyName, Algorithm: "hmac-sha256", Secret: "c2VjcmV0c2VjcmV0c2VjcmV0c2VjcmV0MTY="}); err != nil {
		t.Fatalf("AddKey: %v", err)
	}

	log := zap.NewNop().Sugar()
	eng := engine.New(store, 60, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dnsFront := dnsfrontend.New(eng, store, log)
	go func() {
		if err := dnsFront.ListenAndServe(ctx, dnsAddr, true, true); err != nil {
			t.Logf("dnsFront.ListenAndServe: %v", err)
		}
	}()

	httpFront := httpfrontend.New(eng, store, log, httpfrontend.Config{})
	go func() {
		if err := httpFront.ListenAndServe(ctx, httpAddr); err != nil {
			t.Logf("httpFront.ListenAndServe: %v", err)
		}
	}()

	time.Sleep(200 * time.Millisecond)

	testDNSUpdateAndSnapshot(t, store, dnsAddr, zone, keyName)
	testJSONUpdate(t, httpAddr, zone, keyName)
}

func testDNSUpdateAndSnapshot(t *testing.T, store *memstore.Store, dnsAddr, zone, keyName string) {
	const testName = "test." + "example.test."
	const testContent = "111.222.33.44"
	const snapshotKey = "test.example.test/A"

	client := new(dns.Client)
	client.TsigSecret = map[string]string{keyName: "c2VjcmV0c2VjcmV0c2VjcmV0c2VjcmV0MTY="}

	assert.Empty(t, store.Snapshot(zone)[snapshotKey], "expected no A record before update")

	update := new(dns.Msg)
	update.SetUpdate(dns.Fqdn(zone))
	rr, err := dns.NewRR(testName + " 3600 IN A " + testContent)
	if err != nil {
		t.Fatalf("building RR: %v", err)
	}
	update.Insert([]dns.RR{rr})
	update.SetTsig(keyName, dns.HmacSHA256, 300, time.Now().Unix())

	resp, _, err := client.Exchange(update, dnsAddr)
	if err != nil {
		t.Fatalf("update exchange: %v", err)
	}
	assert.Equal(t, dns.RcodeSuccess, resp.Rcode, "update should succeed")

	stored := store.Snapshot(zone)[snapshotKey]
	if assert.Len(t, stored, 1) {
		if assert.Equal(t, records.TypeA, stored[0].Type, "stored record should be an A record") {
			assert.Equal(t, testContent, stored[0].Address.String())
		}
	}
}

func testJSONUpdate(t *testing.T, httpAddr, zone, keyName string) {
	body := map[string]any{
		"zone": zone,
		"key":  "c2VjcmV0c2VjcmV0c2VjcmV0c2VjcmV0MTY=",
		"updates": []map[string]any{
			{"op": "add", "dns_name": "json." + zone, "type": "A", "ttl": 300, "data": "10.0.0.1"},
		},
	}
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	resp, err := http.Post("http://"+httpAddr+"/v1/update", "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST /v1/update: %v", err)
	}
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode, "JSON update should succeed")
}
