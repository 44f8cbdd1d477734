package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMailboxTagsRoundTrip(t *testing.T) {
	inbox := []string{"wss://a.example.com", "wss://b.example.com"}
	outbox := []string{"wss://B.example.com/", "wss://c.example.com"}

	tags := BuildMailboxTags(inbox, outbox)
	assert.Equal(t, []Tag{
		{"r", "wss://a.example.com", MarkerRead},
		{"r", "wss://b.example.com"},
		{"r", "wss://c.example.com", MarkerWrite},
	}, tags)

	read, write := ParseMailboxTags(tags)
	assert.Equal(t, []string{"wss://a.example.com", "wss://b.example.com"}, read)
	assert.Equal(t, []string{"wss://b.example.com", "wss://c.example.com"}, write)
}

func TestParseMailboxTagsSkipsJunk(t *testing.T) {
	read, write := ParseMailboxTags([]Tag{
		{"p", "deadbeef"},
		{"r", "https://not-a-relay.example.com"},
		{"r", "wss://x.example.com", "bogus"},
		{"r"},
		{"r", "wss://y.example.com", " WRITE "},
	})
	assert.Empty(t, read)
	assert.Equal(t, []string{"wss://y.example.com"}, write)
}

func TestTagBuildersSkipNonRelayURLs(t *testing.T) {
	assert.Equal(t, []Tag{{"relay", "wss://ok.example.com"}},
		BuildRelayTags([]string{"https://not-a-relay", "garbage", "wss://ok.example.com"}))
	assert.Equal(t, []Tag{{"r", "wss://in.example.com", MarkerRead}},
		BuildMailboxTags([]string{"wss://in.example.com", "http://x.example.com"}, []string{"junk"}))
}

func TestRelayTags(t *testing.T) {
	tags := BuildRelayTags([]string{"wss://a.example.com", "wss://A.example.com/", "wss://b.example.com"})
	assert.Equal(t, []Tag{{"relay", "wss://a.example.com"}, {"relay", "wss://b.example.com"}}, tags)
	assert.Equal(t, []string{"wss://a.example.com", "wss://b.example.com"}, ParseRelayTags(tags))
}

func TestBuildReviewTags(t *testing.T) {
	tests := []struct {
		name   string
		rating float64
		want   string
	}{
		{"in range", 0.5, "0.5"},
		{"above range", 1.7, "1.0"},
		{"below range", -2, "0.0"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tags := BuildReviewTags(" wss://relay.example.com ", tt.rating)
			assert.Equal(t, []Tag{{"r", "wss://relay.example.com"}, {"rating", tt.want}}, tags)
		})
	}
}

func TestParseLegacyRelays(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "relay map",
			content: `{"wss://b.example.com":{"read":true,"write":false},"wss://a.example.com":{},"https://web.example.com":{}}`,
			want:    []string{"wss://a.example.com", "wss://b.example.com"},
		},
		{name: "empty content", content: "", want: nil},
		{name: "array content", content: `["wss://a.example.com"]`, want: nil},
		{name: "broken json", content: `{"wss://a.example.com":`, want: nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLegacyRelays(tt.content)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
