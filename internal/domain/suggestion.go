package domain

import "encoding/json"

// Provenance records which record type(s) revealed a contact's relays.
type Provenance int

const (
	ProvenanceNone Provenance = iota
	// ProvenanceGraph means a relay list record (kind 10002).
	ProvenanceGraph
	// ProvenanceLegacy means the relay map inside a contact list's content.
	ProvenanceLegacy
	ProvenanceBoth
)

// Merge combines two provenances.
func (p Provenance) Merge(other Provenance) Provenance {
	switch {
	case p == ProvenanceNone:
		return other
	case other == ProvenanceNone, p == other:
		return p
	default:
		return ProvenanceBoth
	}
}

func (p Provenance) String() string {
	switch p {
	case ProvenanceGraph:
		return "graph"
	case ProvenanceLegacy:
		return "legacy"
	case ProvenanceBoth:
		return "both"
	default:
		return "none"
	}
}

func (p Provenance) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Provenance) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "graph":
		*p = ProvenanceGraph
	case "legacy":
		*p = ProvenanceLegacy
	case "both":
		*p = ProvenanceBoth
	default:
		*p = ProvenanceNone
	}
	return nil
}

// ContactUsage is the set of relays one contact was found using.
// It is built once per aggregation run and not modified afterwards.
type ContactUsage struct {
	ContactID   string     `json:"contact_id"`
	DisplayName string     `json:"display_name,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	Relays      []string   `json:"relays"`
	Provenance  Provenance `json:"provenance"`
}

// Suggestion is a relay used by part of the subject's social graph.
type Suggestion struct {
	Identity string `json:"identity"`
	URL      string `json:"url"`
	// Contacts is in discovery order.
	Contacts          []*ContactUsage `json:"contacts"`
	ContactCount      int             `json:"contact_count"`
	Provenance        Provenance      `json:"provenance"`
	AlreadyConfigured bool            `json:"already_configured"`
}

// SuggestionSet is the result of one aggregation run.
type SuggestionSet struct {
	Subject     string        `json:"subject"`
	Suggestions []*Suggestion `json:"suggestions"`
	// ContactTotal is the size of the subject's contact list.
	ContactTotal int `json:"contact_total"`
	// AnalyzedTotal counts contacts that revealed at least one relay.
	AnalyzedTotal int `json:"analyzed_total"`
}
