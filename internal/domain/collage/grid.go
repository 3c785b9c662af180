package collage

// Pad places items into a fixed grid in rank order.
// Missing slots are empty; items beyond GridSize are dropped.
func Pad(items []ResolvedItem) Grid {
	var g Grid
	for i := range g {
		if i < len(items) {
			g[i] = Occupied(items[i])
			continue
		}
		g[i] = Empty()
	}
	return g
}
