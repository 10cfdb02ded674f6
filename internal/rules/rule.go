package rules

import (
	"fmt"
	"strconv"
	"strings"

	"grimm.is/policyctl/internal/validation"
)

// Priority bounds. Lower value = higher priority.
const (
	MinPriority = 1
	MaxPriority = 3000

	// NoPriority is assigned when a caller submits a rule without one.
	NoPriority = -1
)

// Reserved source/destination keywords.
const (
	KeywordAny      = "any"
	KeywordExternal = "external"
)

// NexthopDelimiter joins nexthop addresses in the wire format.
const NexthopDelimiter = "+"

// Action is the verdict for traffic matching a rule.
type Action string

const (
	ActionPermit Action = "permit"
	ActionDeny   Action = "deny"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return validation.ValidateAllowlist(string(a), []string{string(ActionPermit), string(ActionDeny)}) == nil
}

// Protocol restricts a rule with ports to one transport.
type Protocol string

const (
	ProtocolNone Protocol = ""
	ProtocolTCP  Protocol = "tcp"
	ProtocolUDP  Protocol = "udp"
)

// Valid reports whether p may accompany a port match.
func (p Protocol) Valid() bool {
	return p == ProtocolTCP || p == ProtocolUDP
}

// OwnerKind distinguishes router rules from tenant policies.
type OwnerKind string

const (
	OwnerRouter OwnerKind = "router"
	OwnerTenant OwnerKind = "tenant"
)

// Owner identifies the router or tenant a rule collection belongs to.
type Owner struct {
	Kind OwnerKind `json:"kind" yaml:"kind"`
	ID   string    `json:"id" yaml:"id"`
}

// Router returns the owner for a router ID.
func Router(id string) Owner { return Owner{Kind: OwnerRouter, ID: id} }

// Tenant returns the owner for a tenant ID.
func Tenant(id string) Owner { return Owner{Kind: OwnerTenant, ID: id} }

func (o Owner) String() string {
	return string(o.Kind) + "/" + o.ID
}

// Noun returns the user-facing name of the owner's rules.
func (o Owner) Noun() string {
	if o.Kind == OwnerTenant {
		return "tenant policies"
	}
	return "router policies"
}

// Rule is one router rule or tenant policy.
type Rule struct {
	Priority        int      `json:"priority" yaml:"priority"`
	Source          string   `json:"source" yaml:"source"`
	Destination     string   `json:"destination" yaml:"destination"`
	Action          Action   `json:"action" yaml:"action"`
	Nexthops        Nexthops `json:"nexthops,omitempty" yaml:"nexthops,omitempty"`
	SourcePort      int      `json:"source_port,omitempty" yaml:"source_port,omitempty"`
	DestinationPort int      `json:"destination_port,omitempty" yaml:"destination_port,omitempty"`
	Protocol        Protocol `json:"protocol,omitempty" yaml:"protocol,omitempty"`
}

// MatchKey returns the tuple that decides whether two rules are the same
// for diffing purposes. Endpoints are canonicalized first.
func (r Rule) MatchKey() MatchKey {
	return MatchKey{
		Source:      canonicalEndpoint(r.Source),
		Destination: canonicalEndpoint(r.Destination),
		Action:      r.Action,
		Priority:    r.Priority,
	}
}

// Key returns the identity key of r within owner.
func (r Rule) Key(owner Owner) string {
	return Key(r.Priority, owner.ID)
}

func (r Rule) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Rule{%d, %s -> %s, %s", r.Priority, r.Source, r.Destination, r.Action)
	if r.Protocol != ProtocolNone {
		fmt.Fprintf(&sb, ", %s %d->%d", r.Protocol, r.SourcePort, r.DestinationPort)
	}
	if len(r.Nexthops) > 0 {
		fmt.Fprintf(&sb, ", via %s", strings.Join(r.Nexthops, ","))
	}
	sb.WriteString("}")
	return sb.String()
}

// MatchKey is the equality class of a rule: nexthops, ports and protocol
// are ignored.
type MatchKey struct {
	Source      string `json:"source" yaml:"source"`
	Destination string `json:"destination" yaml:"destination"`
	Action      Action `json:"action" yaml:"action"`
	Priority    int    `json:"priority" yaml:"priority"`
}

func (k MatchKey) String() string {
	return fmt.Sprintf("%d:%s->%s:%s", k.Priority, k.Source, k.Destination, k.Action)
}

// Key builds the identity key "<priority>_<ownerID>". It only changes when
// the rule is deleted and recreated under another priority or owner.
func Key(priority int, ownerID string) string {
	return strconv.Itoa(priority) + "_" + ownerID
}

// ParseKey splits a key produced by Key. The owner ID is everything after
// the first underscore.
func ParseKey(key string) (int, string, error) {
	prio, owner, ok := strings.Cut(key, "_")
	if !ok || owner == "" {
		return 0, "", fmt.Errorf("invalid rule key %q: expected <priority>_<owner>", key)
	}
	p, err := strconv.Atoi(prio)
	if err != nil {
		return 0, "", fmt.Errorf("invalid rule key %q: %w", key, err)
	}
	return p, owner, nil
}

// Priorities returns the priorities used by rs, in order.
func Priorities(rs []Rule) []int {
	out := make([]int, len(rs))
	for i, r := range rs {
		out[i] = r.Priority
	}
	return out
}
