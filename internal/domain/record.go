package domain

import (
	"encoding/json"
	"time"
)

// Record kinds used by the engine.
const (
	KindProfile        = 0
	KindContacts       = 3
	KindRelayReview    = 1986
	KindBlockedRelays  = 10006
	KindSearchRelays   = 10007
	KindMailboxes      = 10002
	KindDMRelays       = 10050
	KindIndexerRelays  = 10086
	KindProxyRelays    = 10087
	KindBroadcastRelay = 10088
	KindTrustedRelays  = 10089
)

// Tag is one record tag: a name followed by its values.
type Tag []string

// Name returns the tag name, or "" for an empty tag.
func (t Tag) Name() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Value returns the first value, or "".
func (t Tag) Value() string {
	if len(t) < 2 {
		return ""
	}
	return t[1]
}

// Record is a signed, immutable protocol event.
type Record struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      int    `json:"kind"`
	Tags      []Tag  `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// Time returns CreatedAt as a time.Time.
func (r *Record) Time() time.Time {
	return time.Unix(r.CreatedAt, 0)
}

// TagsNamed returns every tag with the given name, in order.
func (r *Record) TagsNamed(name string) []Tag {
	var out []Tag
	for _, t := range r.Tags {
		if t.Name() == name {
			out = append(out, t)
		}
	}
	return out
}

// IsReplaceable reports whether only the newest record per (author, kind) counts.
func IsReplaceable(kind int) bool {
	return kind == KindProfile || kind == KindContacts || (kind >= 10000 && kind < 20000)
}

// Filter selects records on a relay.
type Filter struct {
	IDs     []string
	Kinds   []int
	Authors []string
	// Tags maps a single-letter tag name to accepted values ("#r": [...]).
	Tags  map[string][]string
	Since *int64
	Until *int64
	Limit int
}

// MarshalJSON renders the filter in wire form, with tag filters as "#x" keys.
func (f Filter) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 6+len(f.Tags))
	if len(f.IDs) > 0 {
		m["ids"] = f.IDs
	}
	if len(f.Kinds) > 0 {
		m["kinds"] = f.Kinds
	}
	if len(f.Authors) > 0 {
		m["authors"] = f.Authors
	}
	for name, values := range f.Tags {
		m["#"+name] = values
	}
	if f.Since != nil {
		m["since"] = *f.Since
	}
	if f.Until != nil {
		m["until"] = *f.Until
	}
	if f.Limit > 0 {
		m["limit"] = f.Limit
	}
	return json.Marshal(m)
}

// Matches reports whether r satisfies f. Relays do the real filtering; this
// is used to discard records a misbehaving relay sends anyway.
func (f Filter) Matches(r *Record) bool {
	if r == nil {
		return false
	}
	if len(f.IDs) > 0 && !containsString(f.IDs, r.ID) {
		return false
	}
	if len(f.Kinds) > 0 && !containsInt(f.Kinds, r.Kind) {
		return false
	}
	if len(f.Authors) > 0 && !containsString(f.Authors, r.PubKey) {
		return false
	}
	for name, values := range f.Tags {
		found := false
		for _, t := range r.TagsNamed(name) {
			if containsString(values, t.Value()) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Since != nil && r.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && r.CreatedAt > *f.Until {
		return false
	}
	return true
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsInt(list []int, v int) bool {
	for _, n := range list {
		if n == v {
			return true
		}
	}
	return false
}
