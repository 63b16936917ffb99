package counter

import "sort"

type Counter[T comparable] map[T]int

func (c Counter[T]) Inc(key T, n int) {
	c[key] += n
}

func (c Counter[T]) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Entry is one key of a Counter with its count.
type Entry[T comparable] struct {
	Key   T
	Count int
}

// Ranked returns the entries by descending count; ties are ordered with less.
func (c Counter[T]) Ranked(less func(a, b T) bool) []Entry[T] {
	entries := make([]Entry[T], 0, len(c))
	for key, n := range c {
		entries = append(entries, Entry[T]{Key: key, Count: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return less(entries[i].Key, entries[j].Key)
	})
	return entries
}
