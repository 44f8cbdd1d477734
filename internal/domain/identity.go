package domain

import (
	"net"
	"net/url"
	"strings"
)

// defaultPorts maps a scheme to the port it implies when none is given.
var defaultPorts = map[string]string{
	"wss":   "443",
	"https": "443",
	"ws":    "80",
	"http":  "80",
}

// Canonicalize returns the identity key of a relay URL.
//
// Two raw URLs with the same identity denote the same relay:
//   - "wss://Relay.Example.com:443/" -> "wss://relay.example.com"
//   - "ws://host:80/path/"           -> "ws://host/path"
//
// It never fails: input that cannot be parsed degrades to a lowercase/trim
// transform so callers always get a usable key.
func Canonicalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fallbackIdentity(s)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fallbackIdentity(s)
	}
	if strings.Contains(host, ":") {
		// IPv6 literal
		host = "[" + host + "]"
	}

	if port := u.Port(); port != "" && port != defaultPorts[scheme] {
		host = net.JoinHostPort(strings.Trim(host, "[]"), port)
	}

	path := strings.TrimRight(u.EscapedPath(), "/")

	var b strings.Builder
	b.Grow(len(scheme) + 3 + len(host) + len(path) + len(u.RawQuery) + 1)
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(host)
	b.WriteString(path)
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	return b.String()
}

// fallbackIdentity lowercases s and strips trailing slashes and whitespace
// until neither is left, so "a /" and "a" share one identity.
func fallbackIdentity(s string) string {
	s = strings.ToLower(s)
	for {
		t := strings.TrimRight(strings.TrimSpace(s), "/")
		if t == s {
			return t
		}
		s = t
	}
}

// IsValidRelayURL reports whether raw is a ws:// or wss:// URL with a host.
func IsValidRelayURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
	default:
		return false
	}
	return u.Hostname() != ""
}

// SameRelay reports whether a and b canonicalize to the same identity.
func SameRelay(a, b string) bool {
	return Canonicalize(a) == Canonicalize(b)
}

// Deduplicate drops later duplicates (by identity) while keeping the first
// raw form seen and the input order. Blank entries are dropped.
func Deduplicate(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		id := Canonicalize(raw)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, strings.TrimSpace(raw))
	}
	return out
}

// InfoURL derives the HTTP(S) URL serving a relay's information document.
// Relays answer NIP-11 requests on the same host and path as their socket.
func InfoURL(relayURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(relayURL))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "wss":
		u.Scheme = "https"
	case "ws":
		u.Scheme = "http"
	case "https", "http":
	default:
		return "", &url.Error{Op: "info", URL: relayURL, Err: ErrUnsupportedScheme}
	}
	if u.Host == "" {
		return "", &url.Error{Op: "info", URL: relayURL, Err: ErrMissingHost}
	}
	return u.String(), nil
}
