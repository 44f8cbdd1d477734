package prober

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
	"github.com/MrSnakeDoc/relayscope/internal/index"
	"github.com/MrSnakeDoc/relayscope/internal/logger"
	"github.com/MrSnakeDoc/relayscope/internal/metrics"
	"github.com/MrSnakeDoc/relayscope/internal/utils"
	"github.com/MrSnakeDoc/relayscope/internal/version"
)

const (
	// DefaultTimeout bounds a single information document fetch.
	DefaultTimeout = 5 * time.Second
	// DefaultStagger is the dispatch gap between consecutive probes of a batch.
	DefaultStagger = 100 * time.Millisecond

	acceptRelayInfo = "application/nostr+json"
	maxInfoBytes    = 1 << 20
)

// Prober measures relay reachability, latency and capabilities and records
// the results in the status index.
//
// A probe never fails: unreachable relays resolve to a Bad status. There is
// no retry; callers re-probe stale entries when they want to.
type Prober struct {
	index   *index.StatusIndex
	client  *http.Client
	clock   clock.Clock
	logger  logger.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	stagger time.Duration
}

// Option configures a Prober.
type Option func(*Prober)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(p *Prober) { p.client = c } }

// WithClock injects a clock (tests use clock.NewMock()).
func WithClock(c clock.Clock) Option { return func(p *Prober) { p.clock = c } }

// WithTimeout sets the per-probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithStagger sets the dispatch gap used by ProbeMany. Zero disables staggering.
func WithStagger(d time.Duration) Option {
	return func(p *Prober) {
		if d >= 0 {
			p.stagger = d
		}
	}
}

// WithMetrics records probe outcomes.
func WithMetrics(m *metrics.Metrics) Option { return func(p *Prober) { p.metrics = m } }

// New creates a prober writing into idx.
func New(idx *index.StatusIndex, log logger.Logger, opts ...Option) *Prober {
	p := &Prober{
		index:   idx,
		clock:   clock.New(),
		logger:  log,
		timeout: DefaultTimeout,
		stagger: DefaultStagger,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = newHTTPClient(p.timeout)
	}
	return p
}

// newHTTPClient builds a short-lived, no-keepalive client: probes hit many
// different hosts once, so pooling connections buys nothing.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   timeout,
				KeepAlive: 0,
			}).DialContext,
			TLSHandshakeTimeout: timeout,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			DisableKeepAlives: true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// ProbeOne tests a single relay. The index entry moves to Testing, then to
// the final state once the probe settles.
func (p *Prober) ProbeOne(ctx context.Context, relayURL string) domain.RelayStatus {
	p.index.MarkTesting(relayURL)

	status := p.probe(ctx, relayURL)

	p.index.Upsert(status)
	p.metrics.ObserveProbe(string(status.State), status.Latency())
	return status
}

// ProbeMany probes every relay concurrently and returns once all probes
// have settled. Dispatch of probe i is delayed by i*stagger so a batch does
// not hit shared infrastructure all at once.
//
// Each probe runs under its own timeout: one slow relay never cancels the
// others. Cancelling ctx resolves pending probes as Bad.
func (p *Prober) ProbeMany(ctx context.Context, relayURLs []string) map[string]domain.RelayStatus {
	relayURLs = domain.Deduplicate(relayURLs)
	if len(relayURLs) == 0 {
		return map[string]domain.RelayStatus{}
	}

	results := make([]domain.RelayStatus, len(relayURLs))
	var g errgroup.Group
	for i, raw := range relayURLs {
		i, raw := i, raw
		g.Go(func() error {
			p.wait(ctx, time.Duration(i)*p.stagger)
			results[i] = p.ProbeOne(ctx, raw)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]domain.RelayStatus, len(results))
	for _, status := range results {
		out[status.Identity] = status
	}

	p.logger.Debug("probe batch settled",
		logger.Int("relays", len(out)))
	return out
}

// wait sleeps for d on the prober's clock, returning early if ctx ends.
func (p *Prober) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := p.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (p *Prober) probe(ctx context.Context, relayURL string) domain.RelayStatus {
	status := domain.NewRelayStatus(relayURL)

	latency, info, err := p.fetchInfo(ctx, relayURL)
	status.LastTestedAt = p.clock.Now()
	if err != nil {
		p.logger.Debug("relay probe failed",
			logger.String("relay", relayURL),
			logger.Error(err))
		status.State = domain.StateBad
		return status
	}

	ms := latency.Milliseconds()
	status.LatencyMS = &ms
	status.Info = info
	status.State = domain.BucketLatency(&latency)

	p.logger.Debug("relay probed",
		logger.String("relay", relayURL),
		logger.String("state", string(status.State)),
		logger.Duration("latency", latency),
		logger.Bool("info", info != nil))
	return status
}

// fetchInfo requests the relay information document. Any HTTP response
// counts as reachable; the document is only parsed from 2xx responses and a
// body that fails to parse just leaves info nil.
func (p *Prober) fetchInfo(ctx context.Context, relayURL string) (time.Duration, *domain.RelayInfo, error) {
	infoURL, err := domain.InfoURL(relayURL)
	if err != nil {
		return 0, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL, http.NoBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", acceptRelayInfo)
	req.Header.Set("User-Agent", version.UserAgent())

	start := p.clock.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to reach relay: %w", err)
	}
	latency := p.clock.Since(start)
	defer utils.CloseLogged(resp.Body, p.logger, "info document body")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return latency, nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxInfoBytes))
	if err != nil && !errors.Is(err, io.EOF) {
		return latency, nil, nil
	}
	return latency, domain.ParseRelayInfo(body), nil
}
