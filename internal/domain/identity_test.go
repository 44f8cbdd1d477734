package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"default wss port and trailing slash", "wss://Relay.Example.com:443/", "wss://relay.example.com"},
		{"default ws port with path", "ws://host:80/path/", "ws://host/path"},
		{"non default port kept", "wss://relay.example.com:8443", "wss://relay.example.com:8443"},
		{"surrounding whitespace", "  wss://relay.damus.io  ", "wss://relay.damus.io"},
		{"ipv6 literal", "wss://[::1]:7777/", "wss://[::1]:7777"},
		{"query kept", "wss://relay.example.com/?x=1", "wss://relay.example.com?x=1"},
		{"empty", "", ""},
		{"unparseable falls back", "Not A URL/", "not a url"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Canonicalize(tt.raw))
		})
	}
}

var idempotenceSeeds = []string{
	"wss://Relay.Example.com:443/",
	"ws://h:81/a/",
	"junk",
	"0 /",
	"JUNK / / ",
	"x\t/\n/",
	"wss://h/a /",
	"wss://[::1]:443/",
	"://",
	"  ",
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	for _, raw := range idempotenceSeeds {
		once := Canonicalize(raw)
		assert.Equal(t, once, Canonicalize(once), "%q", raw)
	}
}

func TestFallbackIdentityStripsMixedTail(t *testing.T) {
	assert.Equal(t, "0", Canonicalize("0 /"))
	assert.Equal(t, "junk", Canonicalize("JUNK / / "))
}

func FuzzCanonicalizeIdempotent(f *testing.F) {
	for _, seed := range idempotenceSeeds {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		once := Canonicalize(raw)
		if twice := Canonicalize(once); twice != once {
			t.Fatalf("%q -> %q -> %q", raw, once, twice)
		}
	})
}

func TestIsValidRelayURL(t *testing.T) {
	tests := []struct {
		raw   string
		valid bool
	}{
		{"wss://relay.example.com", true},
		{"ws://localhost:7777", true},
		{"WSS://relay.example.com", true},
		{"https://relay.example.com", false},
		{"wss://", false},
		{"relay.example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidRelayURL(tt.raw))
		})
	}
}

func TestSameRelay(t *testing.T) {
	assert.True(t, SameRelay("wss://relay.example.com", "WSS://RELAY.example.com:443/"))
	assert.False(t, SameRelay("wss://relay.example.com", "ws://relay.example.com"))
}

func TestDeduplicate(t *testing.T) {
	got := Deduplicate([]string{"wss://A.com/", " wss://a.com", "", "  ", "wss://b.com"})
	assert.Equal(t, []string{"wss://A.com/", "wss://b.com"}, got)

	empty := Deduplicate(nil)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestInfoURL(t *testing.T) {
	got, err := InfoURL("wss://relay.example.com/path")
	require.NoError(t, err)
	assert.Equal(t, "https://relay.example.com/path", got)

	got, err = InfoURL("ws://localhost:7777")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:7777", got)

	_, err = InfoURL("ftp://relay.example.com")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	_, err = InfoURL("wss:///nohost")
	assert.ErrorIs(t, err, ErrMissingHost)
}
