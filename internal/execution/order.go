package execution

import (
	"slices"
	"sort"

	"gocut/internal/domain"
)

// sortByName orders items by raw byte comparison of their names.
// Descending is the exact reverse of ascending, ties included.
func sortByName[T any](items []T, order Order, name func(T) string) []T {
	sorted := append([]T(nil), items...)
	if order == OrderNone {
		return sorted
	}
	sort.SliceStable(sorted, func(i, j int) bool { return name(sorted[i]) < name(sorted[j]) })
	if order == OrderDescending {
		slices.Reverse(sorted)
	}
	return sorted
}

func sortCases(cases []*domain.TestCase, order Order) []*domain.TestCase {
	return sortByName(cases, order, func(c *domain.TestCase) string { return c.Name })
}

func sortTests(tests []*domain.Test, order Order) []*domain.Test {
	return sortByName(tests, order, func(t *domain.Test) string { return t.Name })
}

// SortNames applies order to plain names.
func SortNames(names []string, order Order) []string {
	return sortByName(names, order, func(s string) string { return s })
}
