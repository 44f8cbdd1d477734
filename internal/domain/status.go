package domain

import (
	"time"
)

// State is the health bucket of a relay.
type State string

const (
	StateUnknown State = "unknown"
	StateTesting State = "testing"
	StateGood    State = "good"
	StateOk      State = "ok"
	StateBad     State = "bad"
)

// Latency thresholds used by BucketLatency.
const (
	GoodLatency = 100 * time.Millisecond
	OkLatency   = 300 * time.Millisecond
)

// BucketLatency maps a probe latency to a state. A nil latency means the
// relay could not be reached.
func BucketLatency(latency *time.Duration) State {
	switch {
	case latency == nil:
		return StateBad
	case *latency < GoodLatency:
		return StateGood
	case *latency < OkLatency:
		return StateOk
	default:
		return StateBad
	}
}

// RelayStatus is the last known health of one relay.
//
// Lifecycle: Unknown -> Testing (probe start) -> Good | Ok | Bad (probe end).
// Re-probing restarts the cycle. Entries are owned by the status index and
// only written by the prober.
type RelayStatus struct {
	// Identity is the canonical key (see Canonicalize).
	Identity string `json:"identity"`

	// URL is the raw form used for display.
	URL string `json:"url"`

	// LatencyMS is nil when the relay was unreachable or never tested.
	LatencyMS *int64 `json:"latency_ms,omitempty"`

	State State `json:"state"`

	// Info is the relay information document, when the relay served one.
	Info *RelayInfo `json:"info,omitempty"`

	LastTestedAt time.Time `json:"last_tested_at,omitempty"`
}

// NewRelayStatus returns an Unknown status for raw.
func NewRelayStatus(raw string) RelayStatus {
	return RelayStatus{
		Identity: Canonicalize(raw),
		URL:      raw,
		State:    StateUnknown,
	}
}

// Latency returns the probe latency as a duration, or nil.
func (s RelayStatus) Latency() *time.Duration {
	if s.LatencyMS == nil {
		return nil
	}
	d := time.Duration(*s.LatencyMS) * time.Millisecond
	return &d
}

// Settled reports whether the status is the result of a finished probe.
func (s RelayStatus) Settled() bool {
	switch s.State {
	case StateGood, StateOk, StateBad:
		return true
	default:
		return false
	}
}

// Stale reports whether the status should be re-probed at now.
func (s RelayStatus) Stale(now time.Time, maxAge time.Duration) bool {
	if !s.Settled() || s.LastTestedAt.IsZero() {
		return true
	}
	return now.Sub(s.LastTestedAt) > maxAge
}
