package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type walk struct {
	Name  string
	Email string
	Type  string
	Steps int
	Rank  *string
	At    time.Time
}

func strPtr(s string) *string { return &s }

func walkFields(w walk) []string { return []string{w.Name, w.Email} }

func walkRank(w walk) (string, bool) {
	if w.Rank == nil {
		return "", false
	}
	return *w.Rank, true
}

func sampleWalks() []walk {
	return []walk{
		{Name: "Abebe", Email: "abebe@example.com", Type: "WALKING", Steps: 500, Rank: strPtr("GOLD")},
		{Name: "Sara", Email: "sara@example.com", Type: "RUNNING", Steps: 12000, Rank: nil},
		{Name: "Kebede", Email: "kebede@example.com", Type: "WALKING", Steps: 8000, Rank: strPtr("SILVER")},
		{Name: "Hana", Email: "hana@sheger.et", Type: "HIKING", Steps: 15000, Rank: strPtr("GOLD")},
	}
}

func TestStepsRangeScenario(t *testing.T) {
	items := []walk{{Steps: 500}, {Steps: 12000}, {Steps: 8000}}

	got := Apply(items, Query[walk]{
		Filters: []Predicate[walk]{IntRange("5001-10000", func(w walk) int { return w.Steps })},
	})

	require.Len(t, got, 1)
	assert.Equal(t, 8000, got[0].Steps)
}

func TestApply_AllDimensionsAllReturnsInputInOrder(t *testing.T) {
	items := sampleWalks()

	got := Apply(items, Query[walk]{
		Search: "",
		Fields: walkFields,
		Tab:    All,
		Tabs: Tabs[walk]{
			"running": func(w walk) bool { return w.Type == "RUNNING" },
		},
		Filters: []Predicate[walk]{
			IntRange(All, func(w walk) int { return w.Steps }),
			InSet([]string{All}, walkRank),
			Equals(All, func(w walk) (string, bool) { return w.Type, true }),
			Within(PresetWindow(All, time.Now()), func(w walk) time.Time { return w.At }),
		},
	})

	assert.Equal(t, items, got)
}

func TestApply_Conjunction(t *testing.T) {
	items := sampleWalks()

	got := Apply(items, Query[walk]{
		Search: "example.com",
		Fields: walkFields,
		Tab:    "walking",
		Tabs: Tabs[walk]{
			"walking": func(w walk) bool { return w.Type == "WALKING" },
		},
		Filters: []Predicate[walk]{
			IntRange("1001-10000", func(w walk) int { return w.Steps }),
		},
	})

	require.Len(t, got, 1)
	assert.Equal(t, "Kebede", got[0].Name)

	for _, w := range got {
		assert.Contains(t, w.Email, "example.com")
		assert.Equal(t, "WALKING", w.Type)
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	items := sampleWalks()
	before := append([]walk(nil), items...)

	_ = Apply(items, Query[walk]{Search: "sara", Fields: walkFields})

	assert.Equal(t, before, items)
}

func TestSearch_CaseInsensitiveAnyField(t *testing.T) {
	items := sampleWalks()

	assert.Len(t, Search(items, "HANA", walkFields), 1)
	assert.Len(t, Search(items, "SHEGER.ET", walkFields), 1)
	assert.Len(t, Search(items, "   ", walkFields), len(items))
	assert.Empty(t, Search(items, "nobody", walkFields))
}

func TestInSet_NilFieldNeverMatchesSpecificValue(t *testing.T) {
	items := sampleWalks()

	got := Where(items, InSet([]string{"gold", "silver"}, walkRank))

	require.Len(t, got, 3)
	for _, w := range got {
		assert.NotNil(t, w.Rank)
	}
	assert.Len(t, Where(items, InSet(nil, walkRank)), len(items))
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		raw    string
		active bool
		in     []float64
		out    []float64
	}{
		{raw: "1001-5000", active: true, in: []float64{1001, 3000, 5000}, out: []float64{1000, 5001}},
		{raw: "15000+", active: true, in: []float64{15000, 99999}, out: []float64{14999}},
		{raw: " 0 - 10 ", active: true, in: []float64{0, 10}, out: []float64{11}},
		{raw: "all", active: false, in: []float64{-1, 0, 1e9}},
		{raw: "", active: false, in: []float64{42}},
		{raw: "abc-def", active: false, in: []float64{42}},
		{raw: "10-1", active: false, in: []float64{5}},
		{raw: "1-2-3", active: false, in: []float64{5}},
		{raw: "x+", active: false, in: []float64{5}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			r := ParseRange(tt.raw)
			assert.Equal(t, tt.active, r.Active)
			for _, v := range tt.in {
				assert.True(t, r.Contains(v), "%v should be inside %q", v, tt.raw)
			}
			for _, v := range tt.out {
				assert.False(t, r.Contains(v), "%v should be outside %q", v, tt.raw)
			}
		})
	}
}

func TestDateWindow(t *testing.T) {
	w := ParseDateWindow("2026-10-01", "2026-10-10")

	assert.True(t, w.Contains(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2026, 10, 10, 23, 59, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, 10, 11, 0, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, 9, 30, 23, 0, 0, 0, time.UTC)))

	assert.True(t, ParseDateWindow("garbage", "").IsZero())
}

func TestPresetWindow(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	w := PresetWindow("30d", now)
	assert.True(t, w.Contains(now.AddDate(0, 0, -29)))
	assert.False(t, w.Contains(now.AddDate(0, 0, -31)))
	assert.True(t, PresetWindow("forever", now).IsZero())
}

func TestSortBy_StableCopy(t *testing.T) {
	items := sampleWalks()
	sorted := SortBy(items, func(a, b walk) bool { return a.Type < b.Type })

	require.Len(t, sorted, 4)
	assert.Equal(t, "Hana", sorted[0].Name)
	assert.Equal(t, "Sara", sorted[1].Name)
	assert.Equal(t, "Abebe", sorted[2].Name)
	assert.Equal(t, "Kebede", sorted[3].Name)
	assert.Equal(t, "Abebe", items[0].Name)
}
