package dnsfrontend

import (
	"context"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagekite/duppy-go/internal/backend"
	"github.com/pagekite/duppy-go/internal/engine"
	"github.com/pagekite/duppy-go/internal/memstore"
)

const testKeySecret = "c2VjcmV0c2VjcmV0c2VjcmV0c2VjcmV0MTY="

func startTestFrontend(t *testing.T, addr string) (*memstore.Store, *dns.Client) {
	t.Helper()

	store := memstore.New()
	store.AddZone(backend.ZoneInfo{Name: "example.com", Type: "SOA", Hostname: "ns1.example.com", DefaultTTL: 300, Serial: 1})
	require.NoError(t, store.AddKey("example.com", backend.Key{Name: "testkey.", Algorithm: "hmac-sha256", Secret: testKeySecret}))

	log := zap.NewNop().Sugar()
	eng := engine.New(store, 60, log)
	front := New(eng, store, log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		_ = front.ListenAndServe(ctx, addr, true, false)
	}()
	time.Sleep(150 * time.Millisecond)

	client := new(dns.Client)
	client.TsigSecret = map[string]string{"testkey.": testKeySecret}
	return store, client
}

func TestUpdateRequiresTSIG(t *testing.T) {
	const addr = "127.0.0.1:15453"
	_, client := startTestFrontend(t, addr)

	update := new(dns.Msg)
	update.SetUpdate(dns.Fqdn("example.com"))
	rr, err := dns.NewRR("www.example.com. 300 IN A 10.0.0.1")
	require.NoError(t, err)
	update.Insert([]dns.RR{rr})

	resp, _, err := client.Exchange(update, addr)
	require.NoError(t, err)
	assert.Equal(t, dns.RcodeRefused, resp.Rcode)
}

func TestUpdateWithUnboundKeyIsRefused(t *testing.T) {
	const addr = "127.0.0.1:15454"
	startTestFrontend(t, addr)

	client := new(dns.Client)
	client.TsigSecret = map[string]string{"unbound-key.": testKeySecret}

	update := new(dns.Msg)
	update.SetUpdate(dns.Fqdn("example.com"))
	rr, err := dns.NewRR("www.example.com. 300 IN A 10.0.0.1")
	require.NoError(t, err)
	update.Insert([]dns.RR{rr})
	update.SetTsig("unbound-key.", dns.HmacSHA256, 300, time.Now().Unix())

	resp, _, err := client.Exchange(update, addr)
	require.NoError(t, err)
	assert.Equal(t, dns.RcodeRefused, resp.Rcode)
}

func TestUpdateSuccessAppliesRecord(t *testing.T) {
	const addr = "127.0.0.1:15455"
	store, client := startTestFrontend(t, addr)

	update := new(dns.Msg)
	update.SetUpdate(dns.Fqdn("example.com"))
	rr, err := dns.NewRR("www.example.com. 300 IN A 10.0.0.1")
	require.NoError(t, err)
	update.Insert([]dns.RR{rr})
	update.SetTsig("testkey.", dns.HmacSHA256, 300, time.Now().Unix())

	resp, _, err := client.Exchange(update, addr)
	require.NoError(t, err)
	assert.Equal(t, dns.RcodeSuccess, resp.Rcode)

	snap := store.Snapshot("example.com")
	assert.Len(t, snap["www.example.com/A"], 1)
}

func TestUpdateApexDeleteAllIsNotImplemented(t *testing.T) {
	const addr = "127.0.0.1:15456"
	_, client := startTestFrontend(t, addr)

	update := new(dns.Msg)
	update.SetUpdate(dns.Fqdn("example.com"))
	update.RemoveName([]dns.RR{&dns.ANY{Hdr: dns.RR_Header{Name: dns.Fqdn("example.com")}}})
	update.SetTsig("testkey.", dns.HmacSHA256, 300, time.Now().Unix())

	resp, _, err := client.Exchange(update, addr)
	require.NoError(t, err)
	assert.Equal(t, dns.RcodeNotImplemented, resp.Rcode)
}

func TestQueryUnknownZoneReturnsNameError(t *testing.T) {
	const addr = "127.0.0.1:15457"
	startTestFrontend(t, addr)

	client := new(dns.Client)
	q := new(dns.Msg)
	q.SetQuestion(dns.Fqdn("notexample.com"), dns.TypeSOA)

	resp, _, err := client.Exchange(q, addr)
	require.NoError(t, err)
	assert.Equal(t, dns.RcodeNameError, resp.Rcode)
}

func TestQuerySOAKnownZoneReturnsAnswer(t *testing.T) {
	const addr = "127.0.0.1:15458"
	startTestFrontend(t, addr)

	client := new(dns.Client)
	q := new(dns.Msg)
	q.SetQuestion(dns.Fqdn("example.com"), dns.TypeSOA)

	resp, _, err := client.Exchange(q, addr)
	require.NoError(t, err)
	assert.Equal(t, dns.RcodeSuccess, resp.Rcode)
	require.Len(t, resp.Answer, 1)
	_, ok := resp.Answer[0].(*dns.SOA)
	assert.True(t, ok)
}
