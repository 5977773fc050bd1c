package adminapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagekite/duppy-go/internal/adminstore"
	"github.com/pagekite/duppy-go/internal/sqlstore"
)

func newTestFrontend(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := sqlstore.Open("sqlite", "file:"+t.Name()+"-zones?mode=memory&cache=shared")
	require.NoError(t, err)

	tokens, err := adminstore.Open("file:" + t.Name() + "-tokens?mode=memory&cache=shared")
	require.NoError(t, err)

	front := New(store, store, tokens, nil, zap.NewNop().Sugar(), Config{AllowFakeAuth: true})
	return httptest.NewServer(front.router())
}

func TestZoneLifecycle(t *testing.T) {
	srv := newTestFrontend(t)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/zones/example.com", "application/json", bytes.NewReader([]byte(`{"hostname":"ns1.example.com","default_ttl":300}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/zones/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var listed zonesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	require.Len(t, listed.Zones, 1)
	assert.Equal(t, "example.com", listed.Zones[0].Name)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/zones/example.com", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/zones/")
	require.NoError(t, err)
	defer resp.Body.Close()
	var afterDelete zonesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&afterDelete))
	assert.Empty(t, afterDelete.Zones)
}

func TestKeyLifecycle(t *testing.T) {
	srv := newTestFrontend(t)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/zones/example.com", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/v1/zones/example.com/keys/clientkey.", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created createKeyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "clientkey.", created.Key.Name)
	assert.NotEmpty(t, created.Key.Secret)

	resp, err = http.Get(srv.URL + "/v1/zones/example.com/keys/")
	require.NoError(t, err)
	defer resp.Body.Close()
	var listed keysResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	require.Len(t, listed.Keys, 1)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/zones/example.com/keys/clientkey.", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestTokenLifecycle(t *testing.T) {
	srv := newTestFrontend(t)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/tokens/", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Token adminstoreToken `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotEmpty(t, created.Token.TokenString)

	resp, err = http.Get(srv.URL + "/v1/tokens/")
	require.NoError(t, err)
	defer resp.Body.Close()
	var listed tokensResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	require.Len(t, listed.Tokens, 1)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/tokens/1", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
