package domain

import (
	"fmt"
	"strings"
)

// Category is a role a relay list plays. The set is closed: every value
// maps to exactly one record kind and tag shape.
type Category int

const (
	// CategoryMailboxes is the combined inbox (read) / outbox (write) list.
	CategoryMailboxes Category = iota
	CategoryDirectMessage
	CategorySearch
	CategoryBlocked
	CategoryIndexer
	CategoryProxy
	CategoryBroadcast
	CategoryTrusted
)

// Categories lists every category in publication order.
var Categories = []Category{
	CategoryMailboxes,
	CategoryDirectMessage,
	CategorySearch,
	CategoryBlocked,
	CategoryIndexer,
	CategoryProxy,
	CategoryBroadcast,
	CategoryTrusted,
}

var categoryInfo = map[Category]struct {
	key   string
	label string
	kind  int
}{
	CategoryMailboxes:     {"mailboxes", "Inbox/Outbox", KindMailboxes},
	CategoryDirectMessage: {"dm", "Direct messages", KindDMRelays},
	CategorySearch:        {"search", "Search", KindSearchRelays},
	CategoryBlocked:       {"blocked", "Blocked", KindBlockedRelays},
	CategoryIndexer:       {"indexer", "Indexers", KindIndexerRelays},
	CategoryProxy:         {"proxy", "Proxy", KindProxyRelays},
	CategoryBroadcast:     {"broadcast", "Broadcast", KindBroadcastRelay},
	CategoryTrusted:       {"trusted", "Trusted", KindTrustedRelays},
}

// String returns the stable machine key ("dm", "search", ...).
func (c Category) String() string {
	if info, ok := categoryInfo[c]; ok {
		return info.key
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// Label returns the human-readable name used in messages.
func (c Category) Label() string {
	if info, ok := categoryInfo[c]; ok {
		return info.label
	}
	return c.String()
}

// Kind returns the record kind the category is published as.
func (c Category) Kind() int {
	return categoryInfo[c].kind
}

// ParseCategory resolves a machine key back to a category.
func ParseCategory(key string) (Category, error) {
	for c, info := range categoryInfo {
		if info.key == key {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", key)
}

// MarshalText implements encoding.TextMarshaler so categories can key JSON maps.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// RelayLists is the user's configuration: one URL list per role.
type RelayLists struct {
	Inbox         []string `json:"inbox,omitempty" yaml:"inbox,omitempty"`
	Outbox        []string `json:"outbox,omitempty" yaml:"outbox,omitempty"`
	DirectMessage []string `json:"dm,omitempty" yaml:"dm,omitempty"`
	Search        []string `json:"search,omitempty" yaml:"search,omitempty"`
	Blocked       []string `json:"blocked,omitempty" yaml:"blocked,omitempty"`
	Indexer       []string `json:"indexer,omitempty" yaml:"indexer,omitempty"`
	Proxy         []string `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Broadcast     []string `json:"broadcast,omitempty" yaml:"broadcast,omitempty"`
	Trusted       []string `json:"trusted,omitempty" yaml:"trusted,omitempty"`
}

// For returns the list backing a single-list category. Mailboxes has two
// lists and returns inbox followed by outbox.
func (l RelayLists) For(c Category) []string {
	switch c {
	case CategoryMailboxes:
		out := make([]string, 0, len(l.Inbox)+len(l.Outbox))
		out = append(out, l.Inbox...)
		return append(out, l.Outbox...)
	case CategoryDirectMessage:
		return l.DirectMessage
	case CategorySearch:
		return l.Search
	case CategoryBlocked:
		return l.Blocked
	case CategoryIndexer:
		return l.Indexer
	case CategoryProxy:
		return l.Proxy
	case CategoryBroadcast:
		return l.Broadcast
	case CategoryTrusted:
		return l.Trusted
	default:
		return nil
	}
}

// Empty reports whether no category has any relay.
func (l RelayLists) Empty() bool {
	for _, c := range Categories {
		if len(l.For(c)) > 0 {
			return false
		}
	}
	return true
}

// Sanitize drops blank and duplicate entries from every list and removes
// entries that are not relay URLs. The removed entries are returned in
// category order.
func (l RelayLists) Sanitize() (RelayLists, []string) {
	var rejected []string
	clean := func(urls []string) []string {
		if len(urls) == 0 {
			return nil
		}
		valid := make([]string, 0, len(urls))
		for _, raw := range urls {
			switch {
			case strings.TrimSpace(raw) == "":
			case IsValidRelayURL(raw):
				valid = append(valid, raw)
			default:
				rejected = append(rejected, strings.TrimSpace(raw))
			}
		}
		if len(valid) == 0 {
			return nil
		}
		return Deduplicate(valid)
	}

	out := RelayLists{
		Inbox:         clean(l.Inbox),
		Outbox:        clean(l.Outbox),
		DirectMessage: clean(l.DirectMessage),
		Search:        clean(l.Search),
		Blocked:       clean(l.Blocked),
		Indexer:       clean(l.Indexer),
		Proxy:         clean(l.Proxy),
		Broadcast:     clean(l.Broadcast),
		Trusted:       clean(l.Trusted),
	}
	return out, rejected
}

// All returns every configured relay across categories, deduplicated.
func (l RelayLists) All() []string {
	var all []string
	for _, c := range Categories {
		all = append(all, l.For(c)...)
	}
	return Deduplicate(all)
}
