package service

// NextLabels returns count new cell labels given the labels already in
// use.  Gaps are filled lowest first, then numbering continues past the
// highest label.  existing does not need to be sorted.
func NextLabels(existing []int, count int) []int {
	if count <= 0 {
		return nil
	}
	used := make(map[int]struct{}, len(existing))
	for _, l := range existing {
		used[l] = struct{}{}
	}
	out := make([]int, 0, count)
	for l := 1; len(out) < count; l++ {
		if _, taken := used[l]; !taken {
			out = append(out, l)
		}
	}
	return out
}
