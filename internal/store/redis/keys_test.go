package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "relayscope:status:wss://relay.example.com", StatusKey("wss://relay.example.com"))
	assert.Equal(t, "relayscope:suggestions:abc", SuggestionsKey("abc"))
}
