package util

// Map applies fn to every item, keeping order.
func Map[I, O any](items []I, fn func(I) O) []O {
	out := make([]O, len(items))
	for i, item := range items {
		out[i] = fn(item)
	}
	return out
}
