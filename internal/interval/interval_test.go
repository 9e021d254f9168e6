package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func span(t *testing.T, startHour, startMin, endHour, endMin int) Span {
	t.Helper()
	s, err := New(at(startHour, startMin), at(endHour, endMin))
	require.NoError(t, err)
	return s
}

func TestNewRejectsInvertedSpan(t *testing.T) {
	_, err := New(at(12, 0), at(10, 0))
	assert.Error(t, err)

	_, err = New(at(12, 0), at(12, 0))
	assert.Error(t, err, "zero-length span must be rejected")
}

func TestMinutes(t *testing.T) {
	assert.Equal(t, int64(150), span(t, 10, 0, 12, 30).Minutes())
	assert.Equal(t, int64(1), span(t, 10, 0, 10, 1).Minutes())
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Span
		want bool
	}{
		{"disjoint", span(t, 9, 0, 10, 0), span(t, 11, 0, 12, 0), false},
		{"touching at boundary", span(t, 9, 0, 10, 0), span(t, 10, 0, 11, 0), false},
		{"partial overlap", span(t, 9, 0, 11, 0), span(t, 10, 0, 12, 0), true},
		{"contained", span(t, 9, 0, 18, 0), span(t, 10, 0, 11, 0), true},
		{"identical", span(t, 9, 0, 10, 0), span(t, 9, 0, 10, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			assert.Equal(t, tt.want, Overlaps(tt.b, tt.a), "overlap must be symmetric")
		})
	}
}

func TestIntersect(t *testing.T) {
	got, ok := Intersect(span(t, 18, 0, 22, 0), span(t, 20, 0, 23, 0))
	require.True(t, ok)
	assert.Equal(t, at(20, 0), got.Start)
	assert.Equal(t, at(22, 0), got.End)

	_, ok = Intersect(span(t, 9, 0, 10, 0), span(t, 10, 0, 11, 0))
	assert.False(t, ok, "touching spans have empty intersection")
}

func TestSubtractNoCutsReturnsBase(t *testing.T) {
	base := span(t, 9, 0, 18, 0)
	got := Subtract(base, nil)
	require.Len(t, got, 1)
	assert.Equal(t, base, got[0])
}

func TestSubtract(t *testing.T) {
	base := span(t, 9, 0, 18, 0)

	tests := []struct {
		name string
		cuts []Span
		want []Span
	}{
		{
			name: "single middle cut",
			cuts: []Span{span(t, 12, 0, 13, 0)},
			want: []Span{span(t, 9, 0, 12, 0), span(t, 13, 0, 18, 0)},
		},
		{
			name: "cut covers start",
			cuts: []Span{span(t, 8, 0, 10, 0)},
			want: []Span{span(t, 10, 0, 18, 0)},
		},
		{
			name: "cut covers end",
			cuts: []Span{span(t, 17, 0, 19, 0)},
			want: []Span{span(t, 9, 0, 17, 0)},
		},
		{
			name: "cut outside base contributes nothing",
			cuts: []Span{span(t, 19, 0, 20, 0)},
			want: []Span{base},
		},
		{
			name: "unsorted overlapping cuts",
			cuts: []Span{span(t, 14, 0, 16, 0), span(t, 10, 0, 12, 0), span(t, 11, 0, 15, 0)},
			want: []Span{span(t, 9, 0, 10, 0), span(t, 16, 0, 18, 0)},
		},
		{
			name: "cut swallows base",
			cuts: []Span{span(t, 8, 0, 19, 0)},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Subtract(base, tt.cuts))
		})
	}
}

// Total minutes must be conserved: remaining + covered == base.
func TestSubtractConservesMinutes(t *testing.T) {
	base := span(t, 0, 0, 23, 0)
	cuts := []Span{
		span(t, 1, 30, 3, 0),
		span(t, 2, 0, 5, 45),  // overlaps previous
		span(t, 22, 0, 23, 0), // flush with base end
		span(t, 10, 15, 10, 30),
	}

	remaining := Subtract(base, cuts)
	var remainingMin int64
	for _, s := range remaining {
		remainingMin += s.Minutes()
	}

	// Union of cuts clipped to base, computed independently.
	var coveredMin int64
	for _, gap := range Subtract(base, remaining) {
		coveredMin += gap.Minutes()
	}

	assert.Equal(t, base.Minutes(), remainingMin+coveredMin)
}

func TestClipToDay(t *testing.T) {
	s := Span{
		Start: time.Date(2026, 3, 2, 22, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 3, 2, 0, 0, 0, time.UTC),
	}

	first, ok := ClipToDay(s, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, int64(120), first.Minutes())

	second, ok := ClipToDay(s, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, int64(120), second.Minutes())

	_, ok = ClipToDay(s, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}
