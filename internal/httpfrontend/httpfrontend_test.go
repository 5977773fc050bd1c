package httpfrontend

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagekite/duppy-go/internal/backend"
	"github.com/pagekite/duppy-go/internal/engine"
	"github.com/pagekite/duppy-go/internal/memstore"
)

const testSecret = "c2VjcmV0c2VjcmV0c2VjcmV0c2VjcmV0MTY="

func newTestServer(t *testing.T) (*httptest.Server, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	store.AddZone(backend.ZoneInfo{Name: "example.com", Type: "SOA", Hostname: "ns1.example.com", DefaultTTL: 300})
	require.NoError(t, store.AddKey("example.com", backend.Key{Name: "key1.", Algorithm: "hmac-sha256", Secret: testSecret}))

	log := zap.NewNop().Sugar()
	eng := engine.New(store, 60, log)
	front := New(eng, store, log, Config{})

	return httptest.NewServer(front.router()), store
}

func TestJSONUpdateSuccess(t *testing.T) {
	srv, store := newTestServer(t)
	defer srv.Close()

	body := map[string]any{
		"zone": "example.com",
		"key":  testSecret,
		"updates": []map[string]any{
			{"op": "add", "dns_name": "www.example.com", "type": "A", "ttl": 300, "data": "10.0.0.5"},
		},
	}
	buf, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/v1/update", "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	snap := store.Snapshot("example.com")
	assert.Len(t, snap["www.example.com/A"], 1)
}

func TestJSONUpdateTTLTooLow(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	body := map[string]any{
		"zone": "example.com",
		"key":  testSecret,
		"updates": []map[string]any{
			{"op": "add", "dns_name": "www.example.com", "type": "A", "ttl": 1, "data": "10.0.0.5"},
		},
	}
	buf, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/v1/update", "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var decoded map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, "TTL is too low, 1 < 60", decoded["error"])
}

func TestJSONUpdateWrongKeyIsForbidden(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	body := map[string]any{
		"zone": "example.com",
		"key":  "d29uZ3dvbmd3cm9uZ3dyb25nd3JvbmcxNg==",
		"updates": []map[string]any{
			{"op": "add", "dns_name": "www.example.com", "type": "A", "ttl": 300, "data": "10.0.0.5"},
		},
	}
	buf, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/v1/update", "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSimpleUpdateDualStack(t *testing.T) {
	srv, store := newTestServer(t)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/simple?hostname=host1.example.com&myip=10.0.0.9&myipv6=2001:db8::1", nil)
	require.NoError(t, err)
	req.SetBasicAuth("example.com", testSecret)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	snap := store.Snapshot("example.com")
	assert.Len(t, snap["host1.example.com/A"], 1)
	assert.Len(t, snap["host1.example.com/AAAA"], 1)
}

func TestSimpleUpdateBadAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/simple?hostname=host1.example.com&myip=10.0.0.9", nil)
	require.NoError(t, err)
	req.SetBasicAuth("example.com", "wrong-secret")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	buf := make([]byte, 64)
	n, _ := resp.Body.Read(buf)
	assert.Contains(t, string(buf[:n]), "badauth")
}

func TestSimpleUpdateMissingHostname(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/simple?myip=10.0.0.9", nil)
	require.NoError(t, err)
	req.SetBasicAuth("example.com", testSecret)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
