// Package pagination does the page arithmetic for list views, both over
// backend page/pageSize responses and over arrays already fetched whole.
package pagination

const DefaultPageSize = 10

// Pager describes a list of Total items split into pages of PageSize.
// A non-positive PageSize means DefaultPageSize.
type Pager struct {
	Total    int
	PageSize int
}

func (p Pager) size() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	return p.PageSize
}

// TotalPages is never less than 1; an empty list still has one (empty) page.
func (p Pager) TotalPages() int {
	if p.Total <= 0 {
		return 1
	}
	return (p.Total + p.size() - 1) / p.size()
}

// Clamp moves page into [1, TotalPages].
func (p Pager) Clamp(page int) int {
	if page < 1 {
		return 1
	}
	if last := p.TotalPages(); page > last {
		return last
	}
	return page
}

// Offset is the index of the first item on page, after clamping.
func (p Pager) Offset(page int) int {
	return (p.Clamp(page) - 1) * p.size()
}

func (p Pager) HasPrev(page int) bool {
	return p.Clamp(page) > 1
}

func (p Pager) HasNext(page int) bool {
	return p.Clamp(page) < p.TotalPages()
}

// Window returns up to width consecutive page numbers around current for a
// page selector. Every number is inside [1, TotalPages].
func (p Pager) Window(current, width int) []int {
	last := p.TotalPages()
	if width < 1 {
		width = 1
	}
	if width > last {
		width = last
	}
	current = p.Clamp(current)

	start := current - width/2
	if start < 1 {
		start = 1
	}
	if start+width-1 > last {
		start = last - width + 1
	}

	pages := make([]int, width)
	for i := range pages {
		pages[i] = start + i
	}
	return pages
}

// Slice returns the items on page of an array fetched in full. The page is
// clamped first, so the result is only empty when items is.
func Slice[T any](items []T, page, pageSize int) []T {
	p := Pager{Total: len(items), PageSize: pageSize}
	start := p.Offset(page)
	end := start + p.size()
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
