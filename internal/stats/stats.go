// Package stats computes the summary numbers shown above every list page and
// the series behind its charts. All functions are pure and accept empty
// input.
package stats

import (
	"sort"
	"time"
)

// DayLabelLayout formats trend-chart buckets, e.g. "Oct 17".
const DayLabelLayout = "Jan 02"

// Sum adds a float field across items.
func Sum[T any](items []T, field func(T) float64) float64 {
	var total float64
	for _, item := range items {
		total += field(item)
	}
	return total
}

// SumInt adds an int field across items.
func SumInt[T any](items []T, field func(T) int) int {
	total := 0
	for _, item := range items {
		total += field(item)
	}
	return total
}

// Average divides sum by count, returning 0 for an empty set.
func Average(sum float64, count int) float64 {
	if count <= 0 {
		return 0
	}
	return sum / float64(count)
}

// Percent returns part as a percentage of whole, 0 when whole is 0.
func Percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}

// Slice is one category of a pie or bar chart.
type Slice struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Breakdown counts items per category in first-seen order. Percentages sum
// to 100 up to floating point rounding; an empty input yields no slices.
func Breakdown[T any](items []T, key func(T) string) []Slice {
	index := make(map[string]int)
	var out []Slice
	for _, item := range items {
		k := key(item)
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, Slice{Label: k})
		}
		out[i].Count++
	}
	for i := range out {
		out[i].Percent = Percent(out[i].Count, len(items))
	}
	return out
}

// MostCommon returns the label with the highest count, the earliest on ties,
// or "" when there are no slices.
func MostCommon(slices []Slice) string {
	best := ""
	bestCount := 0
	for _, s := range slices {
		if s.Count > bestCount {
			best, bestCount = s.Label, s.Count
		}
	}
	return best
}

// TopN returns the n highest-scoring items, keeping input order among equal
// scores. A non-positive n returns every item ranked.
func TopN[T any](items []T, n int, score func(T) float64) []T {
	ranked := make([]T, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool { return score(ranked[i]) > score(ranked[j]) })
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// Bucket is one point of a daily trend series.
type Bucket struct {
	Label string    `json:"label"`
	Day   time.Time `json:"day"`
	Count int       `json:"count"`
	Value float64   `json:"value"`
}

// BucketByDay groups items by calendar day and returns the buckets in
// chronological order regardless of input order.
func BucketByDay[T any](items []T, at func(T) time.Time, value func(T) float64) []Bucket {
	index := make(map[string]int)
	var out []Bucket
	for _, item := range items {
		t := at(item)
		if t.IsZero() {
			continue
		}
		y, m, d := t.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
		key := day.Format("2006-01-02")
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, Bucket{Label: day.Format(DayLabelLayout), Day: day})
		}
		out[i].Count++
		if value != nil {
			out[i].Value += value(item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}
