package rules

import (
	"strings"

	"grimm.is/policyctl/internal/validation"
)

var keywords = []string{KeywordAny, KeywordExternal}

// Validator checks a candidate rule before it is submitted upstream.
type Validator struct {
	// AllowUnsetPriority accepts NoPriority, mirroring the dashboard which
	// defaults a missing priority instead of rejecting the form.
	AllowUnsetPriority bool
}

// NewValidator returns a Validator with the default policy.
func NewValidator() Validator {
	return Validator{AllowUnsetPriority: true}
}

// Validate checks r against the priorities already used by its owner and
// returns the canonical form of r. The input is never modified.
func (v Validator) Validate(r Rule, existing []int) (Rule, error) {
	r = Canonicalize(r)

	if err := validateEndpoint("source", r.Source); err != nil {
		return Rule{}, err
	}
	if err := validateEndpoint("destination", r.Destination); err != nil {
		return Rule{}, err
	}

	if err := validation.ValidatePortNumber(r.SourcePort); err != nil {
		return Rule{}, fieldErr("source_port", r.SourcePort, ErrInvalidPort)
	}
	if err := validation.ValidatePortNumber(r.DestinationPort); err != nil {
		return Rule{}, fieldErr("destination_port", r.DestinationPort, ErrInvalidPort)
	}
	if (r.SourcePort > 0 || r.DestinationPort > 0) && !r.Protocol.Valid() {
		return Rule{}, fieldErr("protocol", string(r.Protocol), ErrMissingProtocol)
	}
	if r.Protocol != ProtocolNone {
		if err := validation.ValidateProtocol(string(r.Protocol)); err != nil {
			return Rule{}, fieldErr("protocol", string(r.Protocol), ErrInvalidProtocol)
		}
	}

	if !r.Action.Valid() {
		return Rule{}, fieldErr("action", string(r.Action), ErrInvalidAction)
	}
	if r.Action == ActionDeny && len(trimNexthops(r.Nexthops)) > 0 {
		return Rule{}, fieldErr("nexthops", strings.Join(r.Nexthops, ","), ErrNexthopsWithDeny)
	}
	for _, nh := range trimNexthops(r.Nexthops) {
		if err := validation.ValidateIP(nh); err != nil {
			return Rule{}, fieldErr("nexthops", nh, ErrInvalidNexthop)
		}
	}

	if err := v.validatePriority(r.Priority, existing); err != nil {
		return Rule{}, err
	}

	return r, nil
}

func (v Validator) validatePriority(p int, existing []int) error {
	unset := p == NoPriority && v.AllowUnsetPriority
	if !unset && (p < MinPriority || p > MaxPriority) {
		return fieldErr("priority", p, ErrInvalidPriority)
	}
	// An unset priority is still a priority value; two of them would share a key.
	for _, e := range existing {
		if e == p {
			return fieldErr("priority", p, ErrDuplicatePriority)
		}
	}
	return nil
}

func validateEndpoint(field, value string) error {
	if err := validation.ValidateCIDROrKeyword(value, keywords); err != nil {
		return fieldErr(field, value, ErrInvalidCIDR)
	}
	return nil
}

// Canonicalize rewrites a match-everything source or destination to the
// keyword "any" and lower-cases the protocol. Nexthops are copied so the
// result shares nothing with r.
func Canonicalize(r Rule) Rule {
	r.Source = canonicalEndpoint(r.Source)
	r.Destination = canonicalEndpoint(r.Destination)
	r.Protocol = Protocol(strings.ToLower(strings.TrimSpace(string(r.Protocol))))
	if r.Nexthops != nil {
		r.Nexthops = append(Nexthops(nil), r.Nexthops...)
	}
	return r
}

func canonicalEndpoint(s string) string {
	s = strings.TrimSpace(s)
	if s == KeywordAny || s == KeywordExternal {
		return s
	}
	prefix, err := validation.ValidateCIDR(s)
	if err != nil {
		return s
	}
	if prefix.Bits() == 0 && prefix.Addr().IsUnspecified() {
		return KeywordAny
	}
	return s
}
