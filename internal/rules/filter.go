package rules

import "strings"

// Filter keeps the rules whose rendered form contains q, ignoring case.
// An empty query keeps everything.
func Filter(rs []Rule, q string) []Rule {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return rs
	}

	var out []Rule
	for _, r := range rs {
		if strings.Contains(strings.ToLower(r.String()), q) {
			out = append(out, r)
		}
	}
	return out
}
