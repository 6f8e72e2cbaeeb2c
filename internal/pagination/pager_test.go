package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total, size, want int
	}{
		{0, 10, 1},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 0, 3},
		{-4, 5, 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Pager{Total: tc.total, PageSize: tc.size}.TotalPages(), "%+v", tc)
	}
}

func TestClamp(t *testing.T) {
	p := Pager{Total: 45, PageSize: 10}
	assert.Equal(t, 1, p.Clamp(-3))
	assert.Equal(t, 1, p.Clamp(0))
	assert.Equal(t, 3, p.Clamp(3))
	assert.Equal(t, 5, p.Clamp(5))
	assert.Equal(t, 5, p.Clamp(99))
	assert.True(t, p.HasNext(4))
	assert.False(t, p.HasNext(5))
	assert.False(t, p.HasPrev(1))
	assert.Equal(t, 40, p.Offset(99))
}

func TestWindow_NeverLeavesRange(t *testing.T) {
	for total := 0; total <= 60; total += 7 {
		for size := 1; size <= 12; size += 5 {
			p := Pager{Total: total, PageSize: size}
			last := p.TotalPages()
			for current := -2; current <= last+2; current++ {
				for width := 0; width <= 7; width++ {
					w := p.Window(current, width)
					assert.NotEmpty(t, w)
					for i, n := range w {
						assert.GreaterOrEqual(t, n, 1)
						assert.LessOrEqual(t, n, last)
						if i > 0 {
							assert.Equal(t, w[i-1]+1, n)
						}
					}
					assert.Contains(t, w, p.Clamp(current))
				}
			}
		}
	}
}

func TestWindow_Centers(t *testing.T) {
	p := Pager{Total: 100, PageSize: 10}
	assert.Equal(t, []int{3, 4, 5, 6, 7}, p.Window(5, 5))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, p.Window(1, 5))
	assert.Equal(t, []int{6, 7, 8, 9, 10}, p.Window(10, 5))
	assert.Equal(t, []int{1}, Pager{}.Window(4, 5))
}

func TestSlice(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	assert.Equal(t, []string{"a", "b"}, Slice(items, 1, 2))
	assert.Equal(t, []string{"e"}, Slice(items, 3, 2))
	assert.Equal(t, []string{"e"}, Slice(items, 42, 2))
	assert.Equal(t, []string{"a", "b"}, Slice(items, 0, 2))
	assert.Empty(t, Slice([]string{}, 1, 2))
}
