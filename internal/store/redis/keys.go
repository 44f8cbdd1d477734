package redis

const (
	// KeyPrefixStatus is the prefix for relay status keys
	KeyPrefixStatus = "relayscope:status:"
	// KeyPrefixSuggestions is the prefix for cached suggestion sets
	KeyPrefixSuggestions = "relayscope:suggestions:"
	// KeyAllStatuses is the set of every stored relay identity
	KeyAllStatuses = "relayscope:statuses:all"
)

// StatusKey returns the key for a relay identity
func StatusKey(identity string) string {
	return KeyPrefixStatus + identity
}

// SuggestionsKey returns the key for a subject's cached suggestions
func SuggestionsKey(subject string) string {
	return KeyPrefixSuggestions + subject
}
