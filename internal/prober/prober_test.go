package prober

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
	"github.com/MrSnakeDoc/relayscope/internal/index"
	"github.com/MrSnakeDoc/relayscope/internal/logger"
	"github.com/MrSnakeDoc/relayscope/internal/metrics"
)

// relayServer serves handler and returns its ws:// URL.
func relayServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestProber(idx *index.StatusIndex, mock *clock.Mock) *Prober {
	return New(idx, logger.NewNop(),
		WithClock(mock),
		WithTimeout(2*time.Second),
		WithStagger(0),
		WithMetrics(metrics.New()),
	)
}

func TestProbeOne(t *testing.T) {
	mock := clock.NewMock()

	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantState domain.State
		wantName  string
		wantInfo  bool
	}{
		{
			name: "fast relay with document",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "application/nostr+json", r.Header.Get("Accept"))
				w.Header().Set("Content-Type", "application/nostr+json")
				_, _ = w.Write([]byte(`{"name":"fast","supported_nips":[1,11]}`))
			},
			wantState: domain.StateGood,
			wantName:  "fast",
			wantInfo:  true,
		},
		{
			name: "slow relay",
			handler: func(w http.ResponseWriter, r *http.Request) {
				mock.Add(150 * time.Millisecond)
				_, _ = w.Write([]byte(`{"name":"slow"}`))
			},
			wantState: domain.StateOk,
			wantName:  "slow",
			wantInfo:  true,
		},
		{
			name: "unparseable document is still reachable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>hello</html>`))
			},
			wantState: domain.StateGood,
		},
		{
			name: "error status is reachable without info",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantState: domain.StateGood,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			idx := index.NewStatusIndex()
			p := newTestProber(idx, mock)
			url := relayServer(t, tt.handler)

			status := p.ProbeOne(context.Background(), url)

			assert.Equal(t, tt.wantState, status.State)
			require.NotNil(t, status.LatencyMS)
			assert.Equal(t, mock.Now(), status.LastTestedAt)
			if tt.wantInfo {
				require.NotNil(t, status.Info)
				assert.Equal(t, tt.wantName, status.Info.Name)
			} else {
				assert.Nil(t, status.Info)
			}

			stored, ok := idx.Get(url)
			require.True(t, ok)
			assert.Equal(t, status.State, stored.State)
		})
	}
}

func TestProbeOne_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	idx := index.NewStatusIndex()
	p := newTestProber(idx, clock.NewMock())

	status := p.ProbeOne(context.Background(), url)
	assert.Equal(t, domain.StateBad, status.State)
	assert.Nil(t, status.LatencyMS)
	assert.Nil(t, status.Info)
	assert.False(t, status.LastTestedAt.IsZero())
}

func TestProbeOne_UnsupportedScheme(t *testing.T) {
	p := newTestProber(index.NewStatusIndex(), clock.NewMock())

	status := p.ProbeOne(context.Background(), "ftp://relay.example.com")
	assert.Equal(t, domain.StateBad, status.State)
}

func TestProbeMany(t *testing.T) {
	a := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"a"}`))
	})
	b := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"b"}`))
	})

	idx := index.NewStatusIndex()
	p := newTestProber(idx, clock.NewMock())

	// duplicates collapse to one probe per identity
	results := p.ProbeMany(context.Background(), []string{a, b, a + "/"})
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[domain.Canonicalize(a)].Info.Name)
	assert.Equal(t, "b", results[domain.Canonicalize(b)].Info.Name)

	for _, s := range idx.List() {
		assert.True(t, s.Settled())
	}
}

func TestProbeMany_StaggersDispatch(t *testing.T) {
	tests := []struct {
		name    string
		stagger time.Duration
		relays  int
	}{
		{"default stagger", DefaultStagger, 3},
		{"wide stagger", 250 * time.Millisecond, 4},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			mock := clock.NewMock()
			start := mock.Now()

			var mu sync.Mutex
			hitAt := make(map[int]time.Time)
			hits := func() int {
				mu.Lock()
				defer mu.Unlock()
				return len(hitAt)
			}

			urls := make([]string, tt.relays)
			for i := range urls {
				i := i
				urls[i] = relayServer(t, func(w http.ResponseWriter, r *http.Request) {
					mu.Lock()
					hitAt[i] = mock.Now()
					mu.Unlock()
					_, _ = w.Write([]byte(`{}`))
				})
			}

			p := New(index.NewStatusIndex(), logger.NewNop(),
				WithClock(mock),
				WithTimeout(2*time.Second),
				WithStagger(tt.stagger),
			)

			done := make(chan map[string]domain.RelayStatus, 1)
			go func() { done <- p.ProbeMany(context.Background(), urls) }()

			// the first probe needs no clock movement, the rest wait on it
			require.Eventually(t, func() bool { return hits() == 1 }, 2*time.Second, time.Millisecond)
			time.Sleep(20 * time.Millisecond)
			assert.Equal(t, 1, hits(), "later probes wait for the clock")

			require.Eventually(t, func() bool {
				mock.Add(10 * time.Millisecond)
				return hits() == tt.relays
			}, 5*time.Second, time.Millisecond)

			results := <-done
			assert.Len(t, results, tt.relays)

			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, start, hitAt[0])
			for i := 1; i < tt.relays; i++ {
				assert.GreaterOrEqual(t, hitAt[i].Sub(start), time.Duration(i)*tt.stagger, "probe %d", i)
			}
		})
	}
}

func TestProbeMany_Empty(t *testing.T) {
	p := newTestProber(index.NewStatusIndex(), clock.NewMock())

	results := p.ProbeMany(context.Background(), nil)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestProbeMany_CancelledResolvesBad(t *testing.T) {
	url := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	idx := index.NewStatusIndex()
	p := New(idx, logger.NewNop(), WithClock(clock.NewMock()), WithStagger(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := p.ProbeMany(ctx, []string{url, "wss://other.invalid"})
	require.Len(t, results, 2)
	for _, s := range results {
		assert.Equal(t, domain.StateBad, s.State)
	}
}
