package records

import (
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "example.com", Normalize("Example.Com."))
	assert.Equal(t, "example.com", Normalize("EXAMPLE.COM"))
}

func TestIsInZone(t *testing.T) {
	assert.True(t, IsInZone("example.com", "example.com"))
	assert.True(t, IsInZone("example.com", "www.example.com"))
	assert.True(t, IsInZone("example.com.", "www.EXAMPLE.com."))
	assert.False(t, IsInZone("example.com", "notexample.com"))
	assert.False(t, IsInZone("example.com", "evilexample.com"))
}

func TestValidateTargetName(t *testing.T) {
	assert.NoError(t, ValidateTargetName("host.example.com."))
	assert.NoError(t, ValidateTargetName("host.example.com"))
	assert.Error(t, ValidateTargetName("h@st.example.com"))
}

func TestEncodeDecodeWireRRRoundtrip(t *testing.T) {
	cases := []Record{
		{Owner: "www.example.com", Type: TypeA, Class: "IN", TTL: 300, Address: net.ParseIP("10.0.0.1")},
		{Owner: "www.example.com", Type: TypeAAAA, Class: "IN", TTL: 300, Address: net.ParseIP("::1")},
		{Owner: "www.example.com", Type: TypeCNAME, Class: "IN", TTL: 300, Target: "target.example.com"},
		{Owner: "mail.example.com", Type: TypeMX, Class: "IN", TTL: 300, Target: "mx.example.com", Priority: 10},
		{Owner: "_sip._tcp.example.com", Type: TypeSRV, Class: "IN", TTL: 300, Target: "sip.example.com", Priority: 1, Weight: 2, Port: 5060},
		{Owner: "www.example.com", Type: TypeTXT, Class: "IN", TTL: 300, Strings: []string{"hello world"}},
	}

	for _, want := range cases {
		rr, err := want.EncodeWireRR()
		require.NoError(t, err, want.Type)

		got, err := DecodeWireRR(rr)
		require.NoError(t, err, want.Type)

		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, want.TTL, got.TTL)
		switch want.Type {
		case TypeA, TypeAAAA:
			assert.True(t, want.Address.Equal(got.Address))
		case TypeCNAME, TypeMX:
			assert.Equal(t, want.Target, got.Target)
		case TypeSRV:
			assert.Equal(t, want.Target, got.Target)
			assert.Equal(t, want.Priority, got.Priority)
			assert.Equal(t, want.Weight, got.Weight)
			assert.Equal(t, want.Port, got.Port)
		case TypeTXT:
			assert.Equal(t, want.Strings, got.Strings)
		}
	}
}

func TestEncodeWireRREmptyRDataDeletionMarker(t *testing.T) {
	r := Record{Owner: "www.example.com", Type: TypeA, Class: "IN", TTL: 0}
	rr, err := r.EncodeWireRR()
	require.NoError(t, err)
	a, ok := rr.(*dns.A)
	require.True(t, ok)
	assert.Equal(t, net.IPv4(0, 0, 0, 0).To4(), a.A)
}

func TestEncodeWireRRUnimplementedType(t *testing.T) {
	r := Record{Owner: "www.example.com", Type: Type("BOGUS")}
	_, err := r.EncodeWireRR()
	assert.Error(t, err)
}

func TestParseType(t *testing.T) {
	got, err := ParseType("a")
	require.NoError(t, err)
	assert.Equal(t, TypeA, got)

	_, err = ParseType("BOGUS")
	assert.Error(t, err)
}

func TestDecodeJSONUpdateValidation(t *testing.T) {
	t.Run("valid A add", func(t *testing.T) {
		u, err := DecodeJSONUpdate([]byte(`{"op":"add","dns_name":"www.example.com","type":"A","ttl":300,"data":"10.0.0.1"}`))
		require.NoError(t, err)
		assert.Equal(t, "add", u.Op)
		assert.Equal(t, "10.0.0.1", u.Data)
	})

	t.Run("invalid IPv4 literal", func(t *testing.T) {
		_, err := DecodeJSONUpdate([]byte(`{"op":"add","dns_name":"www.example.com","type":"A","data":"not-an-ip"}`))
		assert.Error(t, err)
	})

	t.Run("MX without priority", func(t *testing.T) {
		_, err := DecodeJSONUpdate([]byte(`{"op":"add","dns_name":"example.com","type":"MX","data":"mail.example.com"}`))
		assert.Error(t, err)
	})

	t.Run("TXT list data", func(t *testing.T) {
		u, err := DecodeJSONUpdate([]byte(`{"op":"add","dns_name":"www.example.com","type":"TXT","data":["a","b"]}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, u.DataList)
	})

	t.Run("unknown op", func(t *testing.T) {
		_, err := DecodeJSONUpdate([]byte(`{"op":"frobnicate","dns_name":"www.example.com","type":"A","data":"10.0.0.1"}`))
		assert.Error(t, err)
	})

	t.Run("missing dns_name", func(t *testing.T) {
		_, err := DecodeJSONUpdate([]byte(`{"op":"add","type":"A","data":"10.0.0.1"}`))
		assert.Error(t, err)
	})

	t.Run("delete requires no data validation", func(t *testing.T) {
		u, err := DecodeJSONUpdate([]byte(`{"op":"delete","dns_name":"www.example.com","type":"A"}`))
		require.NoError(t, err)
		assert.Equal(t, "delete", u.Op)
	})
}

func TestJSONUpdateToRecord(t *testing.T) {
	u := JSONUpdate{Op: "add", DNSName: "www.Example.com", Type: "A", TTL: 300, Data: "10.0.0.1"}
	r, err := u.ToRecord()
	require.NoError(t, err)
	assert.Equal(t, "www.example.com", r.Owner)
	assert.True(t, net.ParseIP("10.0.0.1").Equal(r.Address))
}
