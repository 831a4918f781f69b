package api

// thin keeps at most maxPoints evenly spaced elements of items, always
// including the first and the last. maxPoints below 2 is treated as 2.
func thin[T any](items []T, maxPoints int) []T {
	if maxPoints < 2 {
		maxPoints = 2
	}
	n := len(items)
	if n <= maxPoints {
		return items
	}

	out := make([]T, 0, maxPoints)
	for i := 0; i < maxPoints; i++ {
		idx := i * (n - 1) / (maxPoints - 1)
		out = append(out, items[idx])
	}
	return out
}
