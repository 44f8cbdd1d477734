package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{"remote addr", "198.51.100.7:4000", nil, false, "198.51.100.7"},
		{"proxy headers ignored", "198.51.100.7:4000", map[string]string{"X-Forwarded-For": "203.0.113.9"}, false, "198.51.100.7"},
		{"forwarded for", "127.0.0.1:4000", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, true, "203.0.113.9"},
		{"cloudflare first", "127.0.0.1:4000", map[string]string{"CF-Connecting-IP": "203.0.113.1", "X-Forwarded-For": "203.0.113.9"}, true, "203.0.113.1"},
		{"real ip", "127.0.0.1:4000", map[string]string{"X-Real-IP": "203.0.113.5"}, true, "203.0.113.5"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r, tt.trustProxy))
		})
	}
}

func TestIPMatcher(t *testing.T) {
	m := NewIPMatcher([]string{"10.0.0.0/8", " 192.168.1.5 ", "junk", ""})
	assert.False(t, m.IsEmpty())
	assert.True(t, m.Allow("10.20.30.40"))
	assert.True(t, m.Allow("192.168.1.5"))
	assert.False(t, m.Allow("192.168.1.6"))
	assert.False(t, m.Allow("not-an-ip"))

	assert.True(t, m.Allow("::ffff:10.0.0.1"), "mapped v4 compares as v4")

	v6 := NewIPMatcher([]string{"2001:db8::/32"})
	assert.True(t, v6.Allow("2001:db8::1"))
	assert.False(t, v6.Allow("10.0.0.1"))

	assert.True(t, NewIPMatcher(nil).IsEmpty())
}

func TestParseHostNoPort(t *testing.T) {
	tests := map[string]string{
		"":                "",
		"example.com":     "example.com",
		"example.com:443": "example.com",
		"[::1]:8080":      "::1",
		"[::1]":           "::1",
		"10.0.0.1:80":     "10.0.0.1",
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseHostNoPort(in), in)
	}
}
