package relaylist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relays.yaml")
	content := `---
inbox:
  - wss://Relay.Example.com/
  - wss://relay.example.com:443
outbox:
  - wss://outbox.example.com
dm:
  - wss://dm.example.com
search:
  - https://not-a-relay.example.com
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	lists, rejected, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"wss://Relay.Example.com/"}, lists.Inbox)
	assert.Equal(t, []string{"wss://outbox.example.com"}, lists.Outbox)
	assert.Equal(t, []string{"wss://dm.example.com"}, lists.DirectMessage)
	assert.Empty(t, lists.Search)
	assert.Equal(t, []string{"https://not-a-relay.example.com"}, rejected)
}

func TestLoaderLoadWithPlaceholders(t *testing.T) {
	lists, rejected, err := Parse([]byte(`
inbox:
  - ${PRIMARY_RELAY}
  - wss://relay.example.com
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"wss://relay.example.com"}, lists.Inbox)
	assert.Empty(t, rejected)
}

func TestLoaderLoadFileNotFound(t *testing.T) {
	_, _, err := NewLoader("/nonexistent/relays.yaml").Load()
	assert.Error(t, err)
}

func TestParseUnknownCategory(t *testing.T) {
	_, _, err := Parse([]byte("favourites:\n  - wss://relay.example.com\n"))
	assert.Error(t, err)
}

func TestParseEmpty(t *testing.T) {
	lists, _, err := Parse(nil)
	require.NoError(t, err)
	assert.True(t, lists.Empty())
}

func TestStripPlaceholders(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"single placeholder", "- ${RELAY}", `- ""`},
		{"no placeholder", "- wss://a.example", "- wss://a.example"},
		{"two placeholders", "${A} ${B}", `"" ""`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(stripPlaceholders([]byte(tt.input))))
		})
	}
}
