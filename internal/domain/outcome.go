package domain

import (
	"fmt"
	"strings"
)

// CategoryError is one failed category publish.
type CategoryError struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
}

func (e CategoryError) String() string {
	return fmt.Sprintf("%s: %s", e.Category.Label(), e.Message)
}

// PublicationOutcome summarises one publish call. Results only has entries
// for categories that were attempted.
type PublicationOutcome struct {
	Results map[Category]bool `json:"results"`
	Errors  []CategoryError   `json:"errors,omitempty"`
}

func NewPublicationOutcome() *PublicationOutcome {
	return &PublicationOutcome{Results: make(map[Category]bool)}
}

// Succeeded returns the categories that were published, in category order.
func (o *PublicationOutcome) Succeeded() []Category {
	return o.filter(true)
}

// Failed returns the categories that failed, in category order.
func (o *PublicationOutcome) Failed() []Category {
	return o.filter(false)
}

func (o *PublicationOutcome) filter(want bool) []Category {
	var out []Category
	for _, c := range Categories {
		if ok, attempted := o.Results[c]; attempted && ok == want {
			out = append(out, c)
		}
	}
	return out
}

// Complete reports whether every attempted category succeeded.
func (o *PublicationOutcome) Complete() bool {
	return len(o.Errors) == 0
}

// Summary renders the combined success/partial failure message shown to users.
func (o *PublicationOutcome) Summary() string {
	ok := labels(o.Succeeded())
	if o.Complete() {
		return "Published " + strings.Join(ok, ", ") + "."
	}

	var b strings.Builder
	if len(ok) > 0 {
		b.WriteString("Published " + strings.Join(ok, ", ") + ". ")
	}
	b.WriteString("Failed: ")
	for i, e := range o.Errors {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.String())
	}
	return b.String()
}

func labels(cs []Category) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Label()
	}
	return out
}
