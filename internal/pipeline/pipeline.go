// Package pipeline implements the list-processing pipeline shared by every
// dashboard page: free-text search, tab segmentation, structured filters and
// pagination over an already-fetched collection.
//
// Every function returns a new slice and preserves input order.
package pipeline

import (
	"sort"
	"strings"
)

// All is the sentinel value meaning "this dimension is not filtered".
const All = "all"

// Predicate reports whether an item survives a filter dimension.
type Predicate[T any] func(T) bool

// Tabs maps a tab key to its predicate. The "all" tab always passes.
type Tabs[T any] map[string]Predicate[T]

// Predicate returns the predicate for key. "all", an empty key and keys
// without a registered predicate pass everything.
func (t Tabs[T]) Predicate(key string) Predicate[T] {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || key == All {
		return nil
	}
	p, ok := t[key]
	if !ok {
		return nil
	}
	return p
}

// Query is the full filter state of one list page.
type Query[T any] struct {
	Search  string
	Fields  func(T) []string
	Tab     string
	Tabs    Tabs[T]
	Filters []Predicate[T]
}

// Apply runs search, then tab segmentation, then the structured filters.
// All stages are ANDed.
func Apply[T any](items []T, q Query[T]) []T {
	preds := make([]Predicate[T], 0, len(q.Filters)+2)
	if p := SearchPredicate(q.Search, q.Fields); p != nil {
		preds = append(preds, p)
	}
	if p := q.Tabs.Predicate(q.Tab); p != nil {
		preds = append(preds, p)
	}
	for _, p := range q.Filters {
		if p != nil {
			preds = append(preds, p)
		}
	}
	return Where(items, preds...)
}

// Where keeps the items that satisfy every predicate. Nil predicates are
// skipped.
func Where[T any](items []T, preds ...Predicate[T]) []T {
	out := make([]T, 0, len(items))
next:
	for _, item := range items {
		for _, p := range preds {
			if p != nil && !p(item) {
				continue next
			}
		}
		out = append(out, item)
	}
	return out
}

// Search keeps the items where any configured field contains query,
// case-insensitively. A blank query keeps everything.
func Search[T any](items []T, query string, fields func(T) []string) []T {
	return Where(items, SearchPredicate(query, fields))
}

// SearchPredicate builds the free-text predicate, or nil for a blank query.
func SearchPredicate[T any](query string, fields func(T) []string) Predicate[T] {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || fields == nil {
		return nil
	}
	return func(item T) bool {
		for _, f := range fields(item) {
			if strings.Contains(strings.ToLower(f), q) {
				return true
			}
		}
		return false
	}
}

// SortBy returns a stably sorted copy of items.
func SortBy[T any](items []T, less func(a, b T) bool) []T {
	out := make([]T, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
