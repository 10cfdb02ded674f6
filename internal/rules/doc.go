// Package rules validates, formats and diffs router rules and tenant policies.
//
// # Overview
//
// A rule collection belongs to one owner (a router or a tenant) and is
// always replaced as a whole upstream; there is no partial update. A typical
// change looks like:
//
//	existing, _ := store.ListRules(ctx, owner)
//	rule, err := rules.NewValidator().Validate(candidate, rules.Priorities(existing))
//	coll := rules.Collection{Owner: owner, Rules: existing}.With(rule)
//	updated, _ := store.ReplaceRules(ctx, owner, coll.Wire())
//	d := rules.Diff(existing, updated)
//
// # Key Types
//
//   - [Rule]: one rule as returned by the networking API
//   - [WireRule]: the flattened form submitted upstream
//   - [Collection]: an ordered, owner-scoped set of rules
//   - [MatchKey]: the (source, destination, action, priority) tuple used for
//     diffing; nexthops, ports and protocol are not part of it
//
// # Canonical Sources
//
// The match-everything networks 0.0.0.0/0 and ::/0 are rewritten to the
// keyword "any" during validation, so a rule entered either way diffs as
// the keyword.
package rules
