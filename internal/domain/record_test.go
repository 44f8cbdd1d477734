package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterMarshalJSON(t *testing.T) {
	since := int64(100)
	b, err := json.Marshal(Filter{
		Kinds:   []int{KindMailboxes},
		Authors: []string{"abc"},
		Tags:    map[string][]string{"p": {"def"}},
		Since:   &since,
		Limit:   1,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kinds":[10002],"authors":["abc"],"#p":["def"],"since":100,"limit":1}`, string(b))

	b, err = json.Marshal(Filter{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(b))
}

func TestFilterMatches(t *testing.T) {
	rec := &Record{
		ID:        "id1",
		PubKey:    "alice",
		CreatedAt: 200,
		Kind:      KindContacts,
		Tags:      []Tag{{"p", "bob"}, {"p", "carol"}},
	}
	early, late := int64(100), int64(150)

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter", Filter{}, true},
		{"kind and author", Filter{Kinds: []int{KindContacts}, Authors: []string{"alice"}}, true},
		{"wrong kind", Filter{Kinds: []int{KindProfile}}, false},
		{"wrong author", Filter{Authors: []string{"bob"}}, false},
		{"tag match", Filter{Tags: map[string][]string{"p": {"carol"}}}, true},
		{"tag miss", Filter{Tags: map[string][]string{"p": {"dave"}}}, false},
		{"since", Filter{Since: &early}, true},
		{"until", Filter{Until: &late}, false},
		{"ids", Filter{IDs: []string{"id2"}}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(rec))
		})
	}
	assert.False(t, Filter{}.Matches(nil))
}

func TestRecordHelpers(t *testing.T) {
	rec := &Record{CreatedAt: 1700000000, Tags: []Tag{{"r", "wss://a"}, {}, {"p"}, {"r", "wss://b"}}}
	assert.Equal(t, int64(1700000000), rec.Time().Unix())
	assert.Len(t, rec.TagsNamed("r"), 2)
	assert.Equal(t, "", Tag{"p"}.Value())
	assert.Equal(t, "", Tag{}.Name())

	assert.True(t, IsReplaceable(KindProfile))
	assert.False(t, IsReplaceable(KindRelayReview))
}
