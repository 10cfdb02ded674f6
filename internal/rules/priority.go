package rules

// AvailablePriorities lists the priorities not present in used, highest
// value first.
func AvailablePriorities(used []int) []int {
	taken := make(map[int]struct{}, len(used))
	for _, p := range used {
		taken[p] = struct{}{}
	}

	out := make([]int, 0, max(0, MaxPriority-len(taken)))
	for p := MaxPriority; p >= MinPriority; p-- {
		if _, ok := taken[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}
