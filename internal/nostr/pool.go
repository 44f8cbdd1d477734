package nostr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
	"github.com/MrSnakeDoc/relayscope/internal/logger"
)

const (
	wsReadLimit      = 4 * 1024 * 1024
	wsHandshake      = 5 * time.Second
	defaultRelayRate = 20 // relay sessions per second, pool-wide
)

// PoolConfig configures a Pool.
type PoolConfig struct {
	// ReadRelays is the broad scope used when a query names no relays.
	ReadRelays []string
	// WriteRelays always receive published records.
	WriteRelays []string
	// SessionsPerSecond paces how fast new relay sessions are opened.
	SessionsPerSecond float64
	// VerifySignatures drops incoming records with a bad ID or signature.
	VerifySignatures bool
	// UserAgent is sent on the websocket handshake.
	UserAgent string
}

// Pool talks to many relays over short-lived websocket sessions: one
// session per relay per call, closed once the call completes.
type Pool struct {
	cfg     PoolConfig
	dialer  *websocket.Dialer
	limiter *rate.Limiter
	logger  logger.Logger
}

// NewPool creates a pool.
func NewPool(cfg PoolConfig, log logger.Logger) *Pool {
	perSecond := cfg.SessionsPerSecond
	if perSecond <= 0 {
		perSecond = defaultRelayRate
	}
	cfg.ReadRelays = domain.Deduplicate(cfg.ReadRelays)
	cfg.WriteRelays = domain.Deduplicate(cfg.WriteRelays)

	return &Pool{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: wsHandshake,
		},
		limiter: rate.NewLimiter(rate.Limit(perSecond), int(perSecond)+1),
		logger:  log,
	}
}

// ReadRelays returns the broad query scope.
func (p *Pool) ReadRelays() []string {
	return append([]string(nil), p.cfg.ReadRelays...)
}

// RelayError is one relay's failure within a multi-relay call.
type RelayError struct {
	Relay string
	Err   error
}

func (e *RelayError) Error() string { return e.Relay + ": " + e.Err.Error() }
func (e *RelayError) Unwrap() error { return e.Err }

// Query sends filters to relays (or the read scope when relays is nil) and
// returns the union of matching records, deduplicated by ID. It succeeds if
// at least one relay answered; the error is non-nil only when every relay
// failed.
func (p *Pool) Query(ctx context.Context, filters []domain.Filter, relays []string, timeout time.Duration) ([]*domain.Record, error) {
	if relays == nil {
		relays = p.cfg.ReadRelays
	}
	relays = domain.Deduplicate(relays)
	if len(relays) == 0 {
		return nil, domain.ErrNoRelays
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		seen    = make(map[string]bool)
		records []*domain.Record
		errs    error
		answers int
	)

	var g errgroup.Group
	for _, relay := range relays {
		relay := relay
		g.Go(func() error {
			got, err := p.queryRelay(ctx, relay, filters)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, &RelayError{Relay: relay, Err: err})
			}
			if err == nil || len(got) > 0 {
				answers++
			}
			for _, rec := range got {
				if !seen[rec.ID] {
					seen[rec.ID] = true
					records = append(records, rec)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if answers == 0 {
		return nil, fmt.Errorf("query failed on all %d relays: %w", len(relays), errs)
	}
	if errs != nil {
		p.logger.Debug("query partially failed",
			logger.Int("relays", len(relays)),
			logger.Int("answered", answers),
			logger.Error(errs))
	}
	return records, nil
}

// Publish sends rec to the write relays. Mailbox records also go to every
// relay they list, so readers can find them where they point.
func (p *Pool) Publish(ctx context.Context, rec *domain.Record, timeout time.Duration) error {
	targets := append([]string(nil), p.cfg.WriteRelays...)
	if rec.Kind == domain.KindMailboxes {
		_, write := domain.ParseMailboxTags(rec.Tags)
		targets = append(targets, write...)
	}
	return p.PublishTo(ctx, rec, targets, timeout)
}

// PublishTo sends rec to relays. It succeeds when at least one relay
// accepts the record; when none does the error wraps domain.ErrAllRelaysRejected.
func (p *Pool) PublishTo(ctx context.Context, rec *domain.Record, relays []string, timeout time.Duration) error {
	relays = domain.Deduplicate(relays)
	if len(relays) == 0 {
		return domain.ErrNoRelays
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu       sync.Mutex
		errs     error
		accepted int
	)

	var g errgroup.Group
	for _, relay := range relays {
		relay := relay
		g.Go(func() error {
			err := p.publishRelay(ctx, relay, rec)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, &RelayError{Relay: relay, Err: err})
				return nil
			}
			accepted++
			return nil
		})
	}
	_ = g.Wait()

	if accepted == 0 {
		return fmt.Errorf("%w (%d relays): %v", domain.ErrAllRelaysRejected, len(relays), errs)
	}
	p.logger.Debug("record published",
		logger.String("id", rec.ID),
		logger.Int("kind", rec.Kind),
		logger.Int("accepted", accepted),
		logger.Int("relays", len(relays)))
	return nil
}

func (p *Pool) queryRelay(ctx context.Context, relay string, filters []domain.Filter) ([]*domain.Record, error) {
	conn, err := p.open(ctx, relay)
	if err != nil {
		return nil, err
	}
	defer closeConn(conn)

	subID := uuid.NewString()
	req := make([]any, 0, len(filters)+2)
	req = append(req, "REQ", subID)
	for _, f := range filters {
		req = append(req, f)
	}
	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("failed to send REQ: %w", err)
	}

	var records []*domain.Record
	for {
		frame, err := readFrame(conn)
		if err != nil {
			return records, err
		}

		switch frame.label {
		case "EVENT":
			if len(frame.args) < 2 || !sameSub(frame.args[0], subID) {
				continue
			}
			var rec domain.Record
			if err := json.Unmarshal(frame.args[1], &rec); err != nil {
				continue
			}
			if !matchesAny(filters, &rec) {
				continue
			}
			if p.cfg.VerifySignatures && !Verify(&rec) {
				p.logger.Debug("dropping record with invalid signature",
					logger.String("relay", relay),
					logger.String("id", rec.ID))
				continue
			}
			records = append(records, &rec)
		case "EOSE":
			_ = conn.WriteJSON([]any{"CLOSE", subID})
			return records, nil
		case "CLOSED":
			return records, fmt.Errorf("subscription closed by relay: %s", frame.message(1))
		case "NOTICE":
			p.logger.Debug("relay notice",
				logger.String("relay", relay),
				logger.String("notice", frame.message(0)))
		}
	}
}

func (p *Pool) publishRelay(ctx context.Context, relay string, rec *domain.Record) error {
	conn, err := p.open(ctx, relay)
	if err != nil {
		return err
	}
	defer closeConn(conn)

	if err := conn.WriteJSON([]any{"EVENT", rec}); err != nil {
		return fmt.Errorf("failed to send EVENT: %w", err)
	}

	for {
		frame, err := readFrame(conn)
		if err != nil {
			return err
		}
		if frame.label != "OK" || len(frame.args) < 2 || !sameSub(frame.args[0], rec.ID) {
			continue
		}
		var ok bool
		if err := json.Unmarshal(frame.args[1], &ok); err != nil {
			return fmt.Errorf("malformed OK frame: %w", err)
		}
		if !ok {
			return fmt.Errorf("rejected: %s", frame.message(2))
		}
		return nil
	}
}

// open paces and dials a relay session bound to ctx's deadline.
func (p *Pool) open(ctx context.Context, relay string) (*websocket.Conn, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	header := http.Header{}
	if p.cfg.UserAgent != "" {
		header.Set("User-Agent", p.cfg.UserAgent)
	}
	conn, _, err := p.dialer.DialContext(ctx, relay, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	conn.SetReadLimit(wsReadLimit)

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}
	// unblock reads when the caller cancels without a deadline
	context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	return conn, nil
}

func closeConn(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = conn.Close()
}

type frame struct {
	label string
	args  []json.RawMessage
}

func (f frame) message(i int) string {
	if i >= len(f.args) {
		return ""
	}
	var s string
	if err := json.Unmarshal(f.args[i], &s); err != nil {
		return string(f.args[i])
	}
	return s
}

func readFrame(conn *websocket.Conn) (frame, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return frame{}, fmt.Errorf("read failed: %w", err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || len(raw) == 0 {
		return frame{}, errors.Join(errMalformedFrame, err)
	}
	var label string
	if err := json.Unmarshal(raw[0], &label); err != nil {
		return frame{}, errors.Join(errMalformedFrame, err)
	}
	return frame{label: label, args: raw[1:]}, nil
}

var errMalformedFrame = errors.New("malformed relay frame")

func sameSub(raw json.RawMessage, want string) bool {
	var got string
	return json.Unmarshal(raw, &got) == nil && got == want
}

func matchesAny(filters []domain.Filter, rec *domain.Record) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f.Matches(rec) {
			return true
		}
	}
	return false
}
