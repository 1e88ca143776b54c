package pipeline

import (
	"strconv"
	"strings"
	"time"
)

// Range is an inclusive numeric range parsed from the dashboard's filter
// encodings: "1001-5000" or "15000+". An inactive range matches everything.
type Range struct {
	Min    float64
	Max    float64
	HasMax bool
	Active bool
}

// ParseRange parses a range filter such as "1001-5000" or "15000+". "all",
// blank and malformed values yield an inactive range instead of an error.
func ParseRange(raw string) Range {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, All) {
		return Range{}
	}

	if strings.HasSuffix(s, "+") {
		lo, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "+")), 64)
		if err != nil {
			return Range{}
		}
		return Range{Min: lo, Active: true}
	}

	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return Range{}
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Range{}
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || hi < lo {
		return Range{}
	}
	return Range{Min: lo, Max: hi, HasMax: true, Active: true}
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float64) bool {
	if !r.Active {
		return true
	}
	if v < r.Min {
		return false
	}
	return !r.HasMax || v <= r.Max
}

// IntRange filters on an integer field.
func IntRange[T any](raw string, field func(T) int) Predicate[T] {
	r := ParseRange(raw)
	if !r.Active {
		return nil
	}
	return func(item T) bool { return r.Contains(float64(field(item))) }
}

// FloatRange filters on a float field.
func FloatRange[T any](raw string, field func(T) float64) Predicate[T] {
	r := ParseRange(raw)
	if !r.Active {
		return nil
	}
	return func(item T) bool { return r.Contains(field(item)) }
}

// InSet keeps items whose field value is one of selected. An empty
// selection or one containing "all" is a no-op. field returns false for a
// missing value, which never matches a specific selection.
func InSet[T any](selected []string, field func(T) (string, bool)) Predicate[T] {
	set := make(map[string]struct{}, len(selected))
	for _, v := range selected {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.EqualFold(v, All) {
			return nil
		}
		set[strings.ToUpper(v)] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}
	return func(item T) bool {
		v, ok := field(item)
		if !ok {
			return false
		}
		_, hit := set[strings.ToUpper(v)]
		return hit
	}
}

// Equals is InSet for a single-valued dropdown.
func Equals[T any](value string, field func(T) (string, bool)) Predicate[T] {
	return InSet([]string{value}, field)
}

// DateWindow bounds a timestamp on either side. Zero bounds are open.
type DateWindow struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether neither bound is set.
func (w DateWindow) IsZero() bool {
	return w.From.IsZero() && w.To.IsZero()
}

// Contains reports whether t falls inside the window, bounds inclusive.
func (w DateWindow) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && t.After(w.To) {
		return false
	}
	return true
}

// ParseDateWindow accepts RFC3339 timestamps or YYYY-MM-DD dates. A date-only
// upper bound covers the whole day. Unparsable bounds are left open.
func ParseDateWindow(from, to string) DateWindow {
	var w DateWindow
	if t, _, ok := parseTime(from); ok {
		w.From = t
	}
	if t, dateOnly, ok := parseTime(to); ok {
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		w.To = t
	}
	return w
}

func parseTime(s string) (time.Time, bool, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true, true
	}
	return time.Time{}, false, false
}

// PresetWindow converts the join-date style presets ("7d", "30d", "90d",
// "today", "all") into a window ending at now. Unknown presets are open.
func PresetWindow(preset string, now time.Time) DateWindow {
	switch strings.ToLower(strings.TrimSpace(preset)) {
	case "today":
		y, m, d := now.Date()
		return DateWindow{From: time.Date(y, m, d, 0, 0, 0, 0, now.Location()), To: now}
	case "7d":
		return DateWindow{From: now.AddDate(0, 0, -7), To: now}
	case "30d":
		return DateWindow{From: now.AddDate(0, 0, -30), To: now}
	case "90d":
		return DateWindow{From: now.AddDate(0, 0, -90), To: now}
	}
	return DateWindow{}
}

// Within filters on a timestamp field.
func Within[T any](w DateWindow, field func(T) time.Time) Predicate[T] {
	if w.IsZero() {
		return nil
	}
	return func(item T) bool { return w.Contains(field(item)) }
}
