package publish

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
	"github.com/MrSnakeDoc/relayscope/internal/logger"
	"github.com/MrSnakeDoc/relayscope/internal/metrics"
)

// DefaultTimeout bounds each category's publish.
const DefaultTimeout = 10 * time.Second

// AllRejectedMessage replaces the transport error when no relay accepted a record.
const AllRejectedMessage = "None of the relays accepted the update. Check your connection and try again."

// Signer turns record content into a signed record.
type Signer interface {
	PublicKey() string
	Sign(kind int, content string, tags []domain.Tag, createdAt time.Time) (*domain.Record, error)
}

// Transport delivers a signed record to the network. It must wrap
// domain.ErrAllRelaysRejected when every relay refused the record.
type Transport interface {
	Publish(ctx context.Context, rec *domain.Record, timeout time.Duration) error
}

// Options tune a single publish call.
type Options struct {
	// SecureOrigin adds a client tag naming ClientName to every record.
	SecureOrigin bool
	ClientName   string
}

// Publisher builds one record per category and publishes them independently.
type Publisher struct {
	signer    Signer
	transport Transport
	clock     clock.Clock
	timeout   time.Duration
	logger    logger.Logger
	metrics   *metrics.Metrics
}

// Config configures a Publisher. Signer may be nil: publishing then fails
// with domain.ErrNoSubject.
type Config struct {
	Signer    Signer
	Transport Transport
	Clock     clock.Clock
	Timeout   time.Duration
	Metrics   *metrics.Metrics
}

func New(cfg Config, log logger.Logger) *Publisher {
	p := &Publisher{
		signer:    cfg.Signer,
		transport: cfg.Transport,
		clock:     cfg.Clock,
		timeout:   cfg.Timeout,
		logger:    log,
		metrics:   cfg.Metrics,
	}
	if p.clock == nil {
		p.clock = clock.New()
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	return p
}

// Subject returns the signing identity, or "" without a signer.
func (p *Publisher) Subject() string {
	if p.signer == nil {
		return ""
	}
	return p.signer.PublicKey()
}

// Publish signs and publishes every non-empty category concurrently. A
// category's failure is recorded in the outcome and never affects the
// others. The returned error is reserved for precondition failures: no
// signer, a list entry that is not a relay URL, or nothing left to publish
// once blanks and duplicates are dropped.
func (p *Publisher) Publish(ctx context.Context, lists domain.RelayLists, opts Options) (*domain.PublicationOutcome, error) {
	if p.signer == nil {
		return nil, domain.ErrNoSubject
	}
	lists, rejected := lists.Sanitize()
	if len(rejected) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidRelayURL, quoteAll(rejected))
	}
	if lists.Empty() {
		return nil, domain.ErrNothingToPublish
	}

	var (
		mu      sync.Mutex
		outcome = domain.NewPublicationOutcome()
		errs    = make(map[domain.Category]string)
	)

	var g errgroup.Group
	for _, category := range domain.Categories {
		category := category
		tags := buildTags(category, lists)
		if len(tags) == 0 {
			continue
		}
		g.Go(func() error {
			err := p.publishRecord(ctx, category.Kind(), tags, opts)
			p.metrics.ObservePublish(category.String(), err == nil)

			mu.Lock()
			defer mu.Unlock()
			outcome.Results[category] = err == nil
			if err != nil {
				errs[category] = formatError(err)
				p.logger.Warn("category publish failed",
					logger.String("category", category.String()),
					logger.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, category := range domain.Categories {
		if msg, ok := errs[category]; ok {
			outcome.Errors = append(outcome.Errors, domain.CategoryError{Category: category, Message: msg})
		}
	}

	p.logger.Info("relay lists published",
		logger.Int("attempted", len(outcome.Results)),
		logger.Int("failed", len(outcome.Errors)))
	return outcome, nil
}

// Review publishes a rating in [0,1] for relayURL.
func (p *Publisher) Review(ctx context.Context, relayURL string, rating float64, comment string, opts Options) (*domain.Record, error) {
	if p.signer == nil {
		return nil, domain.ErrNoSubject
	}
	if !domain.IsValidRelayURL(relayURL) {
		return nil, fmt.Errorf("invalid relay url %q: %w", relayURL, domain.ErrUnsupportedScheme)
	}

	tags := domain.BuildReviewTags(relayURL, rating)
	rec, err := p.sign(domain.KindRelayReview, strings.TrimSpace(comment), tags, opts)
	if err != nil {
		return nil, err
	}
	if err := p.transport.Publish(ctx, rec, p.timeout); err != nil {
		return nil, errors.New(formatError(err))
	}
	return rec, nil
}

func (p *Publisher) publishRecord(ctx context.Context, kind int, tags []domain.Tag, opts Options) error {
	rec, err := p.sign(kind, "", tags, opts)
	if err != nil {
		return err
	}
	return p.transport.Publish(ctx, rec, p.timeout)
}

func (p *Publisher) sign(kind int, content string, tags []domain.Tag, opts Options) (*domain.Record, error) {
	if opts.SecureOrigin && opts.ClientName != "" {
		tags = append(tags, domain.Tag{"client", opts.ClientName})
	}
	rec, err := p.signer.Sign(kind, content, tags, p.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to sign record: %w", err)
	}
	return rec, nil
}

func buildTags(c domain.Category, lists domain.RelayLists) []domain.Tag {
	if c == domain.CategoryMailboxes {
		return domain.BuildMailboxTags(lists.Inbox, lists.Outbox)
	}
	return domain.BuildRelayTags(lists.For(c))
}

func quoteAll(urls []string) string {
	quoted := make([]string, len(urls))
	for i, u := range urls {
		quoted[i] = strconv.Quote(u)
	}
	return strings.Join(quoted, ", ")
}

func formatError(err error) string {
	if errors.Is(err, domain.ErrAllRelaysRejected) {
		return AllRejectedMessage
	}
	return err.Error()
}
