package social

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
	"github.com/MrSnakeDoc/relayscope/internal/logger"
	"github.com/MrSnakeDoc/relayscope/internal/metrics"
)

const subject = "5ub1ec7"

// fakeQuerier answers from an in-memory record set. Indexers listed in
// alive answer the indexer probe; every other indexer fails.
type fakeQuerier struct {
	mu         sync.Mutex
	records    []*domain.Record
	alive      map[string]bool
	failAuthor string // batches containing this author fail
	everyBatch []*domain.Record // appended to every batch answer
	batchCalls [][]string
	sources    [][]string
	nextID     int
}

func (f *fakeQuerier) add(pubkey string, kind int, content string, tags []domain.Tag, at int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.records = append(f.records, &domain.Record{
		ID:        string(rune('a'+f.nextID)) + pubkey,
		PubKey:    pubkey,
		Kind:      kind,
		Content:   content,
		Tags:      tags,
		CreatedAt: at,
	})
}

func (f *fakeQuerier) Query(_ context.Context, filters []domain.Filter, relays []string, _ time.Duration) ([]*domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	filter := filters[0]
	isIndexerProbe := len(relays) == 1 && slices.Equal(filter.Kinds, []int{domain.KindMailboxes}) && filter.Limit == 1 && len(filter.Authors) == 0
	if isIndexerProbe {
		if !f.alive[relays[0]] {
			return nil, errors.New("connection refused")
		}
		return []*domain.Record{{ID: "probe", Kind: domain.KindMailboxes}}, nil
	}

	isBatch := len(filter.Kinds) == 3
	if isBatch {
		f.batchCalls = append(f.batchCalls, filter.Authors)
		f.sources = append(f.sources, relays)
		if f.failAuthor != "" && slices.Contains(filter.Authors, f.failAuthor) {
			return nil, errors.New("batch timed out")
		}
	}

	var out []*domain.Record
	for _, rec := range f.records {
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	if isBatch {
		out = append(out, f.everyBatch...)
	}
	return out, nil
}

func contactList(contacts ...string) []domain.Tag {
	tags := make([]domain.Tag, 0, len(contacts))
	for _, c := range contacts {
		tags = append(tags, domain.Tag{"p", c})
	}
	return tags
}

func newAggregator(q Querier, cfg Config) *Aggregator {
	if cfg.Indexers == nil {
		cfg.Indexers = []string{"wss://idx1.example.com", "wss://idx2.example.com"}
	}
	return New(q, cfg, logger.NewNop(), metrics.New())
}

func TestAggregate_RanksByContactCount(t *testing.T) {
	q := &fakeQuerier{alive: map[string]bool{"wss://idx2.example.com": true}}
	q.add(subject, domain.KindContacts, "", contactList("c1", "c2", "C3", "c1"), 100)
	// an older contact list must be ignored
	q.add(subject, domain.KindContacts, "", contactList("old"), 50)

	q.add("c1", domain.KindMailboxes, "", []domain.Tag{{"r", "wss://x.example.com"}, {"r", "wss://y.example.com", "read"}}, 10)
	q.add("c1", domain.KindProfile, `{"name":"one","display_name":"Contact One","picture":"https://img.example.com/1.png"}`, nil, 10)
	q.add("c2", domain.KindMailboxes, "", []domain.Tag{{"r", "wss://X.example.com/"}}, 10)
	// newer mailbox record replaces the older one
	q.add("c2", domain.KindMailboxes, "", []domain.Tag{{"r", "wss://x.example.com"}}, 20)
	q.add("c3", domain.KindContacts, `{"wss://x.example.com":{"read":true},"wss://z.example.com":{}}`, nil, 10)
	q.add("c3", domain.KindMailboxes, "", []domain.Tag{{"r", "wss://x.example.com"}}, 10)

	agg := newAggregator(q, Config{})
	set, err := agg.Aggregate(context.Background(), subject, []string{"wss://y.example.com"})
	require.NoError(t, err)

	assert.Equal(t, subject, set.Subject)
	assert.Equal(t, 3, set.ContactTotal)
	assert.Equal(t, 3, set.AnalyzedTotal)
	require.Len(t, set.Suggestions, 3)

	x, y, z := set.Suggestions[0], set.Suggestions[1], set.Suggestions[2]
	assert.Equal(t, "wss://x.example.com", x.Identity)
	assert.Equal(t, 3, x.ContactCount)
	assert.Equal(t, domain.ProvenanceBoth, x.Provenance)
	assert.False(t, x.AlreadyConfigured)
	assert.Equal(t, "c1", x.Contacts[0].ContactID)
	assert.Equal(t, "Contact One", x.Contacts[0].DisplayName)
	assert.Equal(t, "https://img.example.com/1.png", x.Contacts[0].AvatarURL)

	assert.Equal(t, "wss://y.example.com", y.Identity)
	assert.Equal(t, 1, y.ContactCount)
	assert.True(t, y.AlreadyConfigured)

	assert.Equal(t, "wss://z.example.com", z.Identity)
	assert.Equal(t, domain.ProvenanceLegacy, z.Provenance)

	// the first responsive indexer is the batch source
	require.NotEmpty(t, q.sources)
	assert.Equal(t, []string{"wss://idx2.example.com"}, q.sources[0])
}

func mailboxes(urls ...string) []domain.Tag {
	tags := make([]domain.Tag, 0, len(urls))
	for _, u := range urls {
		tags = append(tags, domain.Tag{"r", u})
	}
	return tags
}

func TestAggregate_StableTieBreak(t *testing.T) {
	const (
		x = "wss://x.example.com"
		y = "wss://y.example.com"
		z = "wss://z.example.com"
	)

	tests := []struct {
		name      string
		relays    map[string][]string
		batchSize int
		want      []string
		counts    []int
	}{
		{
			name:   "x discovered before y",
			relays: map[string][]string{"c1": {x, y}, "c2": {x}, "c3": {y, z}},
			want:   []string{x, y, z},
			counts: []int{2, 2, 1},
		},
		{
			name:   "y discovered before x",
			relays: map[string][]string{"c1": {y, x}, "c2": {x}, "c3": {y, z}},
			want:   []string{y, x, z},
			counts: []int{2, 2, 1},
		},
		{
			name:      "one contact per batch keeps contact order",
			relays:    map[string][]string{"c1": {x, y}, "c2": {x}, "c3": {y, z}},
			batchSize: 1,
			want:      []string{x, y, z},
			counts:    []int{2, 2, 1},
		},
		{
			name:   "higher count wins over discovery order",
			relays: map[string][]string{"c1": {z}, "c2": {x}, "c3": {x}},
			want:   []string{x, z},
			counts: []int{2, 1},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuerier{}
			q.add(subject, domain.KindContacts, "", contactList("c1", "c2", "c3"), 100)
			for _, c := range []string{"c1", "c2", "c3"} {
				q.add(c, domain.KindMailboxes, "", mailboxes(tt.relays[c]...), 10)
			}

			set, err := newAggregator(q, Config{BatchSize: tt.batchSize}).Aggregate(context.Background(), subject, []string{z})
			require.NoError(t, err)

			var got []string
			var counts []int
			for _, s := range set.Suggestions {
				got = append(got, s.Identity)
				counts = append(counts, s.ContactCount)
				assert.Equal(t, s.Identity == z, s.AlreadyConfigured, s.Identity)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.counts, counts)
		})
	}
}

func TestAggregate_DuplicateRecordAcrossBatches(t *testing.T) {
	q := &fakeQuerier{}
	q.add(subject, domain.KindContacts, "", contactList("c1", "c2"), 100)
	q.everyBatch = []*domain.Record{{
		ID:        "shared-mailbox",
		PubKey:    "c1",
		Kind:      domain.KindMailboxes,
		Tags:      mailboxes("wss://x.example.com"),
		CreatedAt: 10,
	}}

	set, err := newAggregator(q, Config{BatchSize: 1}).Aggregate(context.Background(), subject, nil)
	require.NoError(t, err)

	assert.Len(t, q.batchCalls, 2, "the record arrives once per batch")
	assert.Equal(t, 2, set.ContactTotal)
	assert.Equal(t, 1, set.AnalyzedTotal)
	require.Len(t, set.Suggestions, 1)
	assert.Equal(t, 1, set.Suggestions[0].ContactCount)
	assert.Len(t, set.Suggestions[0].Contacts, 1)
}

func TestAggregate_EmptySubject(t *testing.T) {
	agg := newAggregator(&fakeQuerier{}, Config{})

	_, err := agg.Aggregate(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, domain.ErrNoSubject)
}

func TestAggregate_NoContacts(t *testing.T) {
	q := &fakeQuerier{}
	agg := newAggregator(q, Config{})

	set, err := agg.Aggregate(context.Background(), subject, nil)
	require.NoError(t, err)
	assert.NotNil(t, set.Suggestions)
	assert.Empty(t, set.Suggestions)
	assert.Zero(t, set.ContactTotal)
	assert.Empty(t, q.batchCalls, "no batch query without contacts")
}

func TestAggregate_IndexerFallback(t *testing.T) {
	q := &fakeQuerier{}
	q.add(subject, domain.KindContacts, "", contactList("c1"), 100)
	q.add("c1", domain.KindMailboxes, "", []domain.Tag{{"r", "wss://x.example.com"}}, 10)

	set, err := newAggregator(q, Config{}).Aggregate(context.Background(), subject, nil)
	require.NoError(t, err)
	require.Len(t, set.Suggestions, 1)
	require.Len(t, q.sources, 1)
	assert.Nil(t, q.sources[0], "falls back to the default scope")
}

func TestAggregate_FailedBatchDegrades(t *testing.T) {
	q := &fakeQuerier{alive: map[string]bool{"wss://idx1.example.com": true}}
	q.add(subject, domain.KindContacts, "", contactList("c1", "c2", "c3"), 100)
	q.add("c1", domain.KindMailboxes, "", []domain.Tag{{"r", "wss://x.example.com"}}, 10)
	q.add("c3", domain.KindMailboxes, "", []domain.Tag{{"r", "wss://y.example.com"}}, 10)
	q.failAuthor = "c3"

	set, err := newAggregator(q, Config{BatchSize: 2}).Aggregate(context.Background(), subject, nil)
	require.NoError(t, err)

	assert.Len(t, q.batchCalls, 2)
	assert.Equal(t, 3, set.ContactTotal)
	assert.Equal(t, 1, set.AnalyzedTotal)
	require.Len(t, set.Suggestions, 1)
	assert.Equal(t, "wss://x.example.com", set.Suggestions[0].Identity)
}

func TestAggregate_ContactsWithoutRelays(t *testing.T) {
	q := &fakeQuerier{}
	q.add(subject, domain.KindContacts, "", contactList("c1", "c2"), 100)
	q.add("c1", domain.KindProfile, `{"name":"quiet"}`, nil, 10)
	q.add("c2", domain.KindMailboxes, "", []domain.Tag{{"r", "https://not-a-relay.example.com"}}, 10)

	set, err := newAggregator(q, Config{}).Aggregate(context.Background(), subject, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, set.ContactTotal)
	assert.Zero(t, set.AnalyzedTotal)
	assert.Empty(t, set.Suggestions)
}

func TestPartition(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, partition(items, 2))
	assert.Equal(t, [][]string{{"a", "b", "c", "d", "e"}}, partition(items, 10))
	assert.Nil(t, partition(nil, 3))
}

func TestParseProfile(t *testing.T) {
	tests := []struct {
		content    string
		wantName   string
		wantAvatar string
	}{
		{`{"display_name":" Ann ","name":"ann","picture":"p.png"}`, "Ann", "p.png"},
		{`{"name":"ann"}`, "ann", ""},
		{`not json`, "", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.content, func(t *testing.T) {
			name, avatar := parseProfile(tt.content)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantAvatar, avatar)
		})
	}
}
