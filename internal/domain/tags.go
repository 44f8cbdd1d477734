package domain

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Mailbox markers on "r" tags.
const (
	MarkerRead  = "read"
	MarkerWrite = "write"
)

// BuildMailboxTags reconciles inbox (read) and outbox (write) lists into "r" tags.
// A relay in both lists carries no marker; otherwise "read" or "write".
// Relays are deduplicated by identity and the first raw URL seen wins,
// inbox first.
func BuildMailboxTags(inbox, outbox []string) []Tag {
	type entry struct {
		url         string
		read, write bool
	}

	var order []string
	entries := make(map[string]*entry)
	add := func(raw string, read bool) {
		id := Canonicalize(raw)
		if id == "" || !IsValidRelayURL(raw) {
			return
		}
		e, ok := entries[id]
		if !ok {
			e = &entry{url: strings.TrimSpace(raw)}
			entries[id] = e
			order = append(order, id)
		}
		if read {
			e.read = true
		} else {
			e.write = true
		}
	}
	for _, u := range inbox {
		add(u, true)
	}
	for _, u := range outbox {
		add(u, false)
	}

	tags := make([]Tag, 0, len(order))
	for _, id := range order {
		e := entries[id]
		switch {
		case e.read && e.write:
			tags = append(tags, Tag{"r", e.url})
		case e.read:
			tags = append(tags, Tag{"r", e.url, MarkerRead})
		default:
			tags = append(tags, Tag{"r", e.url, MarkerWrite})
		}
	}
	return tags
}

// ParseMailboxTags is the inverse of BuildMailboxTags. Unknown markers are
// ignored, as are tags whose URL is not a relay URL.
func ParseMailboxTags(tags []Tag) (read, write []string) {
	for _, t := range tags {
		if t.Name() != "r" || !IsValidRelayURL(t.Value()) {
			continue
		}
		marker := ""
		if len(t) > 2 {
			marker = strings.ToLower(strings.TrimSpace(t[2]))
		}
		switch marker {
		case "":
			read = append(read, t.Value())
			write = append(write, t.Value())
		case MarkerRead:
			read = append(read, t.Value())
		case MarkerWrite:
			write = append(write, t.Value())
		}
	}
	return Deduplicate(read), Deduplicate(write)
}

// BuildRelayTags renders a single-list category as ["relay", url] tags.
func BuildRelayTags(urls []string) []Tag {
	urls = Deduplicate(urls)
	tags := make([]Tag, 0, len(urls))
	for _, u := range urls {
		if IsValidRelayURL(u) {
			tags = append(tags, Tag{"relay", u})
		}
	}
	return tags
}

// ParseRelayTags extracts relay URLs from ["relay", url] tags.
func ParseRelayTags(tags []Tag) []string {
	var out []string
	for _, t := range tags {
		if t.Name() == "relay" && IsValidRelayURL(t.Value()) {
			out = append(out, t.Value())
		}
	}
	return Deduplicate(out)
}

// BuildReviewTags renders a relay review. Ratings are clamped to [0, 1].
func BuildReviewTags(relayURL string, rating float64) []Tag {
	switch {
	case rating < 0:
		rating = 0
	case rating > 1:
		rating = 1
	}
	return []Tag{
		{"r", strings.TrimSpace(relayURL)},
		{"rating", strconv.FormatFloat(rating, 'f', 1, 64)},
	}
}

// ParseLegacyRelays reads the relay map some clients still store in the
// content of their contact list: {"wss://...": {"read": true, "write": true}}.
// Only URLs are returned; read/write flags are irrelevant for discovery.
func ParseLegacyRelays(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" || content[0] != '{' {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &m); err != nil {
		return nil
	}
	urls := make([]string, 0, len(m))
	for u := range m {
		if IsValidRelayURL(u) {
			urls = append(urls, u)
		}
	}
	// map order is random; sort for a stable discovery order
	sort.Slice(urls, func(i, j int) bool {
		return Canonicalize(urls[i]) < Canonicalize(urls[j])
	})
	return Deduplicate(urls)
}
