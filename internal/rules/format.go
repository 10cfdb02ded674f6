package rules

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Nexthops is an ordered list of next-hop addresses. It decodes from either
// a JSON list or a delimited string, since the networking API echoes back
// whichever form it was given.
type Nexthops []string

// UnmarshalJSON implements json.Unmarshaler.
func (n *Nexthops) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = nil
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*n = trimNexthops(list)
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("nexthops must be a list or a string: %w", err)
	}
	*n = SplitNexthops(joined, NexthopDelimiter)
	return nil
}

// SplitNexthops splits s on sep, trimming and dropping empty entries.
func SplitNexthops(s, sep string) Nexthops {
	return trimNexthops(strings.Split(s, sep))
}

func trimNexthops(in []string) Nexthops {
	var out Nexthops
	for _, nh := range in {
		if nh = strings.TrimSpace(nh); nh != "" {
			out = append(out, nh)
		}
	}
	return out
}

// WireRule is the flattened form of a Rule submitted to the networking API.
// Nexthops is omitted entirely when there are none.
type WireRule struct {
	Priority        int      `json:"priority" yaml:"priority"`
	Source          string   `json:"source" yaml:"source"`
	Destination     string   `json:"destination" yaml:"destination"`
	Action          Action   `json:"action" yaml:"action"`
	Nexthops        string   `json:"nexthops,omitempty" yaml:"nexthops,omitempty"`
	SourcePort      int      `json:"source_port,omitempty" yaml:"source_port,omitempty"`
	DestinationPort int      `json:"destination_port,omitempty" yaml:"destination_port,omitempty"`
	Protocol        Protocol `json:"protocol,omitempty" yaml:"protocol,omitempty"`
}

// HasNexthops reports whether the nexthops field is present.
func (w WireRule) HasNexthops() bool {
	return w.Nexthops != ""
}

// Format converts r to its wire form. r is not modified.
func Format(r Rule) WireRule {
	return WireRule{
		Priority:        r.Priority,
		Source:          r.Source,
		Destination:     r.Destination,
		Action:          r.Action,
		Nexthops:        strings.Join(trimNexthops(r.Nexthops), NexthopDelimiter),
		SourcePort:      r.SourcePort,
		DestinationPort: r.DestinationPort,
		Protocol:        r.Protocol,
	}
}

// FormatAll formats rs preserving order.
func FormatAll(rs []Rule) []WireRule {
	out := make([]WireRule, len(rs))
	for i, r := range rs {
		out[i] = Format(r)
	}
	return out
}

// Rule converts w back into a Rule, splitting the nexthops string.
func (w WireRule) Rule() Rule {
	r := Rule{
		Priority:        w.Priority,
		Source:          w.Source,
		Destination:     w.Destination,
		Action:          w.Action,
		SourcePort:      w.SourcePort,
		DestinationPort: w.DestinationPort,
		Protocol:        w.Protocol,
	}
	if w.HasNexthops() {
		r.Nexthops = SplitNexthops(w.Nexthops, NexthopDelimiter)
	}
	return r
}
