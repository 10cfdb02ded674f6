package rules

import "strings"

// Input is a rule as entered by a user, before defaults apply. Unset
// optional fields are nil or empty.
type Input struct {
	Priority        *int
	Source          string
	Destination     string
	Action          string
	Nexthops        string // comma delimited
	SourcePort      int
	DestinationPort int
	Protocol        string
}

// Rule applies the input defaults: a missing priority becomes NoPriority,
// missing nexthops become empty, a match-everything network becomes "any",
// and a deny action drops any nexthops. The result still needs Validate.
func (in Input) Rule() Rule {
	prio := NoPriority
	if in.Priority != nil {
		prio = *in.Priority
	}

	r := Rule{
		Priority:        prio,
		Source:          strings.TrimSpace(in.Source),
		Destination:     strings.TrimSpace(in.Destination),
		Action:          Action(strings.ToLower(strings.TrimSpace(in.Action))),
		SourcePort:      in.SourcePort,
		DestinationPort: in.DestinationPort,
		Protocol:        Protocol(strings.ToLower(strings.TrimSpace(in.Protocol))),
	}
	if r.Action != ActionDeny {
		r.Nexthops = SplitNexthops(in.Nexthops, ",")
	}
	return Canonicalize(r)
}
