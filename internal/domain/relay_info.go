package domain

import (
	"encoding/json"
	"strconv"
)

// RelayInfo is the NIP-11 relay information document.
// Relays publish wildly different subsets of it, so every field is optional.
type RelayInfo struct {
	Name          string   `json:"name,omitempty"`
	Description   string   `json:"description,omitempty"`
	Banner        string   `json:"banner,omitempty"`
	Icon          string   `json:"icon,omitempty"`
	PubKey        string   `json:"pubkey,omitempty"`
	Contact       string   `json:"contact,omitempty"`
	SupportedNIPs NIPList  `json:"supported_nips,omitempty"`
	Software      string   `json:"software,omitempty"`
	Version       string   `json:"version,omitempty"`
	Countries     []string `json:"relay_countries,omitempty"`
	LanguageTags  []string `json:"language_tags,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	PostingPolicy string   `json:"posting_policy,omitempty"`
	PaymentsURL   string   `json:"payments_url,omitempty"`

	Limitation *RelayLimitation `json:"limitation,omitempty"`
	Fees       *RelayFees       `json:"fees,omitempty"`
	Retention  []RelayRetention `json:"retention,omitempty"`
}

// RelayLimitation lists the server-side limits a relay advertises.
type RelayLimitation struct {
	MaxMessageLength    *int   `json:"max_message_length,omitempty"`
	MaxSubscriptions    *int   `json:"max_subscriptions,omitempty"`
	MaxLimit            *int   `json:"max_limit,omitempty"`
	MaxSubIDLength      *int   `json:"max_subid_length,omitempty"`
	MaxEventTags        *int   `json:"max_event_tags,omitempty"`
	MaxContentLength    *int   `json:"max_content_length,omitempty"`
	MinPowDifficulty    *int   `json:"min_pow_difficulty,omitempty"`
	AuthRequired        *bool  `json:"auth_required,omitempty"`
	PaymentRequired     *bool  `json:"payment_required,omitempty"`
	RestrictedWrites    *bool  `json:"restricted_writes,omitempty"`
	CreatedAtLowerLimit *int64 `json:"created_at_lower_limit,omitempty"`
	CreatedAtUpperLimit *int64 `json:"created_at_upper_limit,omitempty"`
}

// RelayFees is the fee schedule of a paid relay.
type RelayFees struct {
	Admission    []RelayFee `json:"admission,omitempty"`
	Subscription []RelayFee `json:"subscription,omitempty"`
	Publication  []RelayFee `json:"publication,omitempty"`
}

type RelayFee struct {
	Amount int64  `json:"amount"`
	Unit   string `json:"unit,omitempty"`
	Period int64  `json:"period,omitempty"`
	Kinds  []int  `json:"kinds,omitempty"`
}

type RelayRetention struct {
	Kinds []json.RawMessage `json:"kinds,omitempty"`
	Time  *int64            `json:"time,omitempty"`
	Count *int64            `json:"count,omitempty"`
}

// SupportsNIP reports whether the relay advertises support for nip.
func (ri *RelayInfo) SupportsNIP(nip int) bool {
	if ri == nil {
		return false
	}
	for _, n := range ri.SupportedNIPs {
		if n == nip {
			return true
		}
	}
	return false
}

// NIPList decodes supported_nips arrays that mix numbers and numeric strings.
// Entries that are neither are skipped.
type NIPList []int

func (l *NIPList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(NIPList, 0, len(raw))
	for _, item := range raw {
		var n int
		if err := json.Unmarshal(item, &n); err == nil {
			out = append(out, n)
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if n, err := strconv.Atoi(s); err == nil {
				out = append(out, n)
			}
		}
	}
	*l = out
	return nil
}

// ParseRelayInfo decodes a relay information document. It returns nil for
// anything that is not a JSON object: a missing document is not an error.
func ParseRelayInfo(body []byte) *RelayInfo {
	if len(body) == 0 {
		return nil
	}
	var info RelayInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil
	}
	return &info
}
