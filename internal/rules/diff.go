package rules

// Delta is the outcome of comparing two rule collections.
type Delta struct {
	Removed []MatchKey `json:"removed" yaml:"removed"`
	Added   []MatchKey `json:"added" yaml:"added"`
}

// Empty reports the no-op outcome: nothing added and nothing removed.
func (d Delta) Empty() bool {
	return len(d.Removed) == 0 && len(d.Added) == 0
}

// Diff computes which rules disappeared from old and which appeared in updated,
// comparing only MatchKeys. Rules sharing a MatchKey are one class, so each
// key is reported at most once. Keys are listed in first-occurrence order;
// callers must not depend on it.
func Diff(old, updated []Rule) Delta {
	oldSet := matchSet(old)
	newSet := matchSet(updated)
	return Delta{
		Removed: missingFrom(old, newSet),
		Added:   missingFrom(updated, oldSet),
	}
}

func matchSet(rs []Rule) map[MatchKey]struct{} {
	set := make(map[MatchKey]struct{}, len(rs))
	for _, r := range rs {
		set[r.MatchKey()] = struct{}{}
	}
	return set
}

func missingFrom(rs []Rule, other map[MatchKey]struct{}) []MatchKey {
	var out []MatchKey
	seen := make(map[MatchKey]struct{})
	for _, r := range rs {
		k := r.MatchKey()
		if _, ok := other[k]; ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
