package util

// DefaultSlice returns the zero value for out-of-range indexes, e.g. short spreadsheet rows.
type DefaultSlice[T any] []T

func (s DefaultSlice[T]) At(index int) (res T) {
	if index >= 0 && index < len(s) {
		res = s[index]
	}
	return
}
