package social

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
	"github.com/MrSnakeDoc/relayscope/internal/logger"
	"github.com/MrSnakeDoc/relayscope/internal/metrics"
)

const (
	DefaultBatchSize        = 100
	DefaultBatchConcurrency = 4
	DefaultQueryTimeout     = 8 * time.Second
	DefaultIndexerTimeout   = 3 * time.Second
)

// DefaultIndexers is the fallback chain, in order of preference.
var DefaultIndexers = []string{
	"wss://purplepag.es",
	"wss://user.kindpag.es",
	"wss://relay.nos.social",
	"wss://indexer.coracle.social",
}

// Querier runs a one-shot query. A nil relay list means the transport's
// default scope.
type Querier interface {
	Query(ctx context.Context, filters []domain.Filter, relays []string, timeout time.Duration) ([]*domain.Record, error)
}

// Config tunes an Aggregator. Zero values take the defaults above.
type Config struct {
	Indexers         []string
	BatchSize        int
	BatchConcurrency int
	QueryTimeout     time.Duration
	IndexerTimeout   time.Duration
}

// Aggregator discovers which relays the subject's contacts use.
type Aggregator struct {
	querier Querier
	cfg     Config
	logger  logger.Logger
	metrics *metrics.Metrics
}

// New creates an aggregator. m may be nil.
func New(q Querier, cfg Config, log logger.Logger, m *metrics.Metrics) *Aggregator {
	if cfg.Indexers == nil {
		cfg.Indexers = DefaultIndexers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = DefaultBatchConcurrency
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.IndexerTimeout <= 0 {
		cfg.IndexerTimeout = DefaultIndexerTimeout
	}
	return &Aggregator{querier: q, cfg: cfg, logger: log, metrics: m}
}

// Aggregate builds ranked relay suggestions from the subject's contacts.
// current is the subject's configured relay set, used to flag suggestions
// that are already in use.
//
// Only an empty subject is an error. Missing records, unreachable indexers
// and failed batches all degrade to smaller (possibly empty) results.
func (a *Aggregator) Aggregate(ctx context.Context, subject string, current []string) (*domain.SuggestionSet, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, domain.ErrNoSubject
	}

	result := &domain.SuggestionSet{
		Subject:     subject,
		Suggestions: []*domain.Suggestion{},
	}

	contacts, err := a.resolveContacts(ctx, subject)
	if err != nil {
		a.logger.Warn("could not resolve contact list",
			logger.String("subject", subject),
			logger.Error(err))
	}
	result.ContactTotal = len(contacts)
	if len(contacts) == 0 {
		a.metrics.ObserveAggregation(0)
		return result, nil
	}

	source := a.resolveSource(ctx)
	batches := partition(contacts, a.cfg.BatchSize)
	slots, failed := a.queryBatches(ctx, source, batches)

	latest := newestByAuthorKind(slots)
	usages := buildUsages(contacts, latest)

	configured := make(map[string]bool, len(current))
	for _, raw := range current {
		configured[domain.Canonicalize(raw)] = true
	}
	result.Suggestions = rank(usages, configured)
	result.AnalyzedTotal = len(usages)

	a.metrics.ObserveAggregation(failed)
	a.logger.Info("aggregation finished",
		logger.String("subject", subject),
		logger.Int("contacts", result.ContactTotal),
		logger.Int("analyzed", result.AnalyzedTotal),
		logger.Int("suggestions", len(result.Suggestions)),
		logger.Int("failed_batches", failed))
	return result, nil
}

// resolveContacts reads the p tags of the subject's newest contact list.
func (a *Aggregator) resolveContacts(ctx context.Context, subject string) ([]string, error) {
	records, err := a.querier.Query(ctx, []domain.Filter{{
		Kinds:   []int{domain.KindContacts},
		Authors: []string{subject},
		Limit:   1,
	}}, nil, a.cfg.QueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contact list: %w", err)
	}

	var newest *domain.Record
	for _, rec := range records {
		if rec.Kind != domain.KindContacts || rec.PubKey != subject {
			continue
		}
		if newest == nil || rec.CreatedAt > newest.CreatedAt {
			newest = rec
		}
	}
	if newest == nil {
		return nil, nil
	}

	seen := make(map[string]bool)
	var contacts []string
	for _, t := range newest.TagsNamed("p") {
		id := strings.ToLower(strings.TrimSpace(t.Value()))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		contacts = append(contacts, id)
	}
	return contacts, nil
}

// resolveSource walks the indexer chain and adopts the first one that
// returns a record. nil means the broad default scope.
func (a *Aggregator) resolveSource(ctx context.Context) []string {
	probe := []domain.Filter{{Kinds: []int{domain.KindMailboxes}, Limit: 1}}
	for _, indexer := range a.cfg.Indexers {
		if ctx.Err() != nil {
			break
		}
		records, err := a.querier.Query(ctx, probe, []string{indexer}, a.cfg.IndexerTimeout)
		if err == nil && len(records) > 0 {
			a.logger.Debug("indexer adopted", logger.String("relay", indexer))
			return []string{indexer}
		}
		a.logger.Debug("indexer unavailable",
			logger.String("relay", indexer),
			logger.Error(err))
	}
	a.logger.Warn("no indexer responded, using default relays")
	return nil
}

// queryBatches runs the batch queries with bounded concurrency. Results
// land in per-batch slots so downstream order does not depend on timing.
func (a *Aggregator) queryBatches(ctx context.Context, source []string, batches [][]string) ([][]*domain.Record, int) {
	slots := make([][]*domain.Record, len(batches))
	failed := make([]bool, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.BatchConcurrency)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			records, err := a.querier.Query(gctx, []domain.Filter{{
				Kinds:   []int{domain.KindProfile, domain.KindContacts, domain.KindMailboxes},
				Authors: batch,
			}}, source, a.cfg.QueryTimeout)
			if err != nil {
				a.logger.Warn("contact batch failed",
					logger.Int("batch", i),
					logger.Int("size", len(batch)),
					logger.Error(err))
				failed[i] = true
				return nil
			}
			slots[i] = records
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, f := range failed {
		if f {
			n++
		}
	}
	return slots, n
}

type authorKind struct {
	author string
	kind   int
}

// newestByAuthorKind drops duplicate record IDs and keeps the newest
// replaceable record per author and kind.
func newestByAuthorKind(slots [][]*domain.Record) map[authorKind]*domain.Record {
	seen := make(map[string]bool)
	latest := make(map[authorKind]*domain.Record)
	for _, records := range slots {
		for _, rec := range records {
			if rec == nil || seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			if !domain.IsReplaceable(rec.Kind) {
				continue
			}
			key := authorKind{author: rec.PubKey, kind: rec.Kind}
			if prev, ok := latest[key]; !ok || rec.CreatedAt > prev.CreatedAt {
				latest[key] = rec
			}
		}
	}
	return latest
}

type relayHit struct {
	url        string
	provenance domain.Provenance
}

// buildUsages extracts each contact's relays, walking contacts in list order.
// Contacts with no relay are left out.
func buildUsages(contacts []string, latest map[authorKind]*domain.Record) []*contactRelays {
	var out []*contactRelays
	for _, contact := range contacts {
		hits := make(map[string]*relayHit)
		var order []string
		add := func(raw string, p domain.Provenance) {
			if !domain.IsValidRelayURL(raw) {
				return
			}
			id := domain.Canonicalize(raw)
			if h, ok := hits[id]; ok {
				h.provenance = h.provenance.Merge(p)
				return
			}
			hits[id] = &relayHit{url: raw, provenance: p}
			order = append(order, id)
		}

		if rec, ok := latest[authorKind{contact, domain.KindMailboxes}]; ok {
			for _, t := range rec.TagsNamed("r") {
				add(strings.TrimSpace(t.Value()), domain.ProvenanceGraph)
			}
		}
		if rec, ok := latest[authorKind{contact, domain.KindContacts}]; ok {
			for _, u := range domain.ParseLegacyRelays(rec.Content) {
				add(u, domain.ProvenanceLegacy)
			}
		}
		if len(order) == 0 {
			continue
		}

		usage := &domain.ContactUsage{ContactID: contact}
		for _, id := range order {
			usage.Relays = append(usage.Relays, id)
			usage.Provenance = usage.Provenance.Merge(hits[id].provenance)
		}
		if rec, ok := latest[authorKind{contact, domain.KindProfile}]; ok {
			usage.DisplayName, usage.AvatarURL = parseProfile(rec.Content)
		}

		out = append(out, &contactRelays{usage: usage, hits: hits, order: order})
	}
	return out
}

type contactRelays struct {
	usage *domain.ContactUsage
	hits  map[string]*relayHit
	order []string
}

type candidate struct {
	suggestion *domain.Suggestion
	contacts   mapset.Set[string]
}

// rank folds contact usages into suggestions ordered by contact count.
func rank(usages []*contactRelays, configured map[string]bool) []*domain.Suggestion {
	byID := make(map[string]*candidate)
	var order []*candidate

	for _, cr := range usages {
		for _, id := range cr.order {
			hit := cr.hits[id]
			c, ok := byID[id]
			if !ok {
				c = &candidate{
					suggestion: &domain.Suggestion{
						Identity:          id,
						URL:               hit.url,
						AlreadyConfigured: configured[id],
					},
					contacts: mapset.NewThreadUnsafeSet[string](),
				}
				byID[id] = c
				order = append(order, c)
			}
			if c.contacts.Add(cr.usage.ContactID) {
				c.suggestion.Contacts = append(c.suggestion.Contacts, cr.usage)
			}
			c.suggestion.Provenance = c.suggestion.Provenance.Merge(hit.provenance)
		}
	}

	out := make([]*domain.Suggestion, len(order))
	for i, c := range order {
		c.suggestion.ContactCount = c.contacts.Cardinality()
		out[i] = c.suggestion
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ContactCount > out[j].ContactCount
	})
	return out
}

type profile struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Picture     string `json:"picture"`
}

func parseProfile(content string) (name, avatar string) {
	var p profile
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return "", ""
	}
	name = strings.TrimSpace(p.DisplayName)
	if name == "" {
		name = strings.TrimSpace(p.Name)
	}
	return name, strings.TrimSpace(p.Picture)
}

func partition(items []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
