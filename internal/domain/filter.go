package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Combinator joins the criteria that are present.
type Combinator int

const (
	And Combinator = iota
	Or
)

func (c Combinator) String() string {
	if c == Or {
		return "or"
	}
	return "and"
}

// ParseCombinator accepts "and" or "or" in any case; empty means And.
func ParseCombinator(s string) (Combinator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "and":
		return And, nil
	case "or":
		return Or, nil
	default:
		return And, fmt.Errorf("unknown combinator %q", s)
	}
}

// Criteria selects observations for export. A nil field is absent and takes
// no part in the combination, so an Or over one present criterion is that
// criterion alone. With nothing present every observation matches.
type Criteria struct {
	Stages     []Stage
	Categories []Category
	Landfall   *bool
	Combinator Combinator
}

// IsZero reports whether no criterion is present.
func (c Criteria) IsZero() bool {
	return c.Stages == nil && c.Categories == nil && c.Landfall == nil
}

// Match evaluates the criteria against one observation of a storm with the
// given landfall flag.
func (c Criteria) Match(o Observation, landfall bool) bool {
	results := make([]bool, 0, 3)
	if c.Stages != nil {
		results = append(results, slices.Contains(c.Stages, o.Stage))
	}
	if c.Categories != nil {
		results = append(results, slices.Contains(c.Categories, o.Category()))
	}
	if c.Landfall != nil {
		results = append(results, *c.Landfall == landfall)
	}
	if len(results) == 0 {
		return true
	}

	if c.Combinator == Or {
		return slices.Contains(results, true)
	}
	return !slices.Contains(results, false)
}

// Apply returns the storm restricted to its matching observations and
// whether any remain. The input storm is not modified.
func (c Criteria) Apply(s Storm) (Storm, bool) {
	if c.IsZero() {
		return s, len(s.Observations) > 0
	}
	kept := make([]Observation, 0, len(s.Observations))
	for _, o := range s.Observations {
		if c.Match(o, s.Landfall) {
			kept = append(kept, o)
		}
	}
	s.Observations = kept
	return s, len(kept) > 0
}
