package util

import "sort"

// Collect is a set backed by a map.
type Collect[T comparable] map[T]struct{}

func MakeCollect[T comparable](items ...T) Collect[T] {
	c := make(Collect[T], len(items))
	for _, item := range items {
		c.Add(item)
	}
	return c
}

func (c Collect[T]) Add(item T) {
	c[item] = struct{}{}
}

func (c Collect[T]) Size() int {
	return len(c)
}

func (c Collect[T]) Exist(item T) bool {
	_, exist := c[item]
	return exist
}

func (c Collect[T]) Export() []T {
	res := make([]T, 0, c.Size())
	for i := range c {
		res = append(res, i)
	}
	return res
}

// Missing returns the items not in c, keeping their order and dropping duplicates.
func (c Collect[T]) Missing(items []T) []T {
	seen := MakeCollect[T]()
	res := make([]T, 0)
	for _, item := range items {
		if c.Exist(item) || seen.Exist(item) {
			continue
		}
		seen.Add(item)
		res = append(res, item)
	}
	return res
}

// SortedStrings exports a string set in ascending order.
func SortedStrings(c Collect[string]) []string {
	res := c.Export()
	sort.Strings(res)
	return res
}
