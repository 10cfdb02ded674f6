package rules

import "context"

// Store is the networking API as seen by rule management. ReplaceRules
// overwrites the owner's whole collection and returns the authoritative
// result; there is no partial update.
type Store interface {
	ListRules(ctx context.Context, owner Owner) ([]Rule, error)
	ReplaceRules(ctx context.Context, owner Owner, rules []WireRule) ([]Rule, error)
}

// Collection is an ordered set of rules belonging to one owner. It is a
// transient, caller-owned copy of upstream state.
type Collection struct {
	Owner Owner  `json:"owner" yaml:"owner"`
	Rules []Rule `json:"rules" yaml:"rules"`
}

// With returns a copy of c with r placed first and the existing rules
// following in their original order.
func (c Collection) With(r Rule) Collection {
	out := make([]Rule, 0, len(c.Rules)+1)
	out = append(out, r)
	out = append(out, c.Rules...)
	return Collection{Owner: c.Owner, Rules: out}
}

// Without returns a copy of c minus every rule with the given priority.
func (c Collection) Without(priority int) Collection {
	out := make([]Rule, 0, len(c.Rules))
	for _, r := range c.Rules {
		if r.Priority != priority {
			out = append(out, r)
		}
	}
	return Collection{Owner: c.Owner, Rules: out}
}

// Find returns the rule with the given priority.
func (c Collection) Find(priority int) (Rule, bool) {
	for _, r := range c.Rules {
		if r.Priority == priority {
			return r, true
		}
	}
	return Rule{}, false
}

// Priorities returns the priorities in use.
func (c Collection) Priorities() []int {
	return Priorities(c.Rules)
}

// Wire formats every rule for submission.
func (c Collection) Wire() []WireRule {
	return FormatAll(c.Rules)
}

// Keys returns the identity key of each rule, in order.
func (c Collection) Keys() []string {
	keys := make([]string, len(c.Rules))
	for i, r := range c.Rules {
		keys[i] = r.Key(c.Owner)
	}
	return keys
}
