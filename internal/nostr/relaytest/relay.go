// Package relaytest runs an in-process relay speaking the REQ/EVENT/OK/EOSE
// frames, for tests that exercise the websocket transport end to end.
package relaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
	"github.com/MrSnakeDoc/relayscope/internal/utils"
)

// Relay stores every accepted record and answers queries from memory.
type Relay struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	records  []*domain.Record
	received []*domain.Record
	reject   string // non-empty: refuse every EVENT with this message
	requests int
}

// New starts a relay. Close it with Close.
func New() *Relay {
	r := &Relay{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	r.srv = httptest.NewServer(http.HandlerFunc(r.serve))
	return r
}

// URL returns the relay's ws:// address.
func (r *Relay) URL() string {
	return "ws" + strings.TrimPrefix(r.srv.URL, "http")
}

func (r *Relay) Close() {
	r.srv.Close()
}

// Seed adds records served to queries.
func (r *Relay) Seed(records ...*domain.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)
}

// Reject makes the relay refuse every published record.
func (r *Relay) Reject(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reject = msg
}

// Received returns the records published to the relay, in arrival order.
func (r *Relay) Received() []*domain.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.Record(nil), r.received...)
}

// Requests returns how many REQ frames the relay has answered.
func (r *Relay) Requests() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests
}

func (r *Relay) serve(w http.ResponseWriter, req *http.Request) {
	if !websocket.IsWebSocketUpgrade(req) {
		w.Header().Set("Content-Type", "application/nostr+json")
		_, _ = w.Write([]byte(`{"name":"relaytest","supported_nips":[1,11]}`))
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	defer utils.Close(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame []json.RawMessage
		if err := json.Unmarshal(data, &frame); err != nil || len(frame) == 0 {
			continue
		}
		var label string
		_ = json.Unmarshal(frame[0], &label)

		switch label {
		case "REQ":
			r.handleReq(conn, frame[1:])
		case "EVENT":
			r.handleEvent(conn, frame[1:])
		}
	}
}

func (r *Relay) handleReq(conn *websocket.Conn, args []json.RawMessage) {
	if len(args) == 0 {
		return
	}
	var subID string
	_ = json.Unmarshal(args[0], &subID)

	var filters []wireFilter
	for _, raw := range args[1:] {
		var f wireFilter
		if err := json.Unmarshal(raw, &f); err == nil {
			filters = append(filters, f)
		}
	}

	r.mu.Lock()
	r.requests++
	var matched []*domain.Record
	for _, rec := range r.records {
		for _, f := range filters {
			if f.toFilter().Matches(rec) {
				matched = append(matched, rec)
				break
			}
		}
	}
	r.mu.Unlock()

	for _, rec := range matched {
		_ = conn.WriteJSON([]any{"EVENT", subID, rec})
	}
	_ = conn.WriteJSON([]any{"EOSE", subID})
}

func (r *Relay) handleEvent(conn *websocket.Conn, args []json.RawMessage) {
	if len(args) == 0 {
		return
	}
	var rec domain.Record
	if err := json.Unmarshal(args[0], &rec); err != nil {
		return
	}

	r.mu.Lock()
	reject := r.reject
	if reject == "" {
		r.received = append(r.received, &rec)
		r.records = append(r.records, &rec)
	}
	r.mu.Unlock()

	if reject != "" {
		_ = conn.WriteJSON([]any{"OK", rec.ID, false, reject})
		return
	}
	_ = conn.WriteJSON([]any{"OK", rec.ID, true, ""})
}

// wireFilter decodes the subset of filter fields the relay honours.
type wireFilter struct {
	IDs     []string `json:"ids"`
	Kinds   []int    `json:"kinds"`
	Authors []string `json:"authors"`
	Limit   int      `json:"limit"`
}

func (f wireFilter) toFilter() domain.Filter {
	return domain.Filter{IDs: f.IDs, Kinds: f.Kinds, Authors: f.Authors, Limit: f.Limit}
}
