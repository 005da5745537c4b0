package conversation

// Ellipsis marks a gap in Pager.Numbers.
const Ellipsis = 0

const pageWindow = 5

// Pager describes pagination controls for the conversation list.
type Pager struct {
	Current int
	Total   int
	// Numbers lists the page buttons to show; Ellipsis marks skipped ranges.
	Numbers []int
}

func (p Pager) HasPrev() bool { return p.Current > 1 }

func (p Pager) HasNext() bool { return p.Current < p.Total }

// NewPager shows up to five consecutive pages around current, plus first and last page.
func NewPager(current, total int) Pager {
	p := Pager{Current: current, Total: total}

	start := max(1, current-2)
	end := min(total, start+pageWindow-1)
	if end-start < pageWindow-1 {
		start = max(1, end-pageWindow+1)
	}

	if start > 1 {
		p.Numbers = append(p.Numbers, 1)
		if start > 2 {
			p.Numbers = append(p.Numbers, Ellipsis)
		}
	}
	for i := start; i <= end; i++ {
		p.Numbers = append(p.Numbers, i)
	}
	if end < total {
		if end < total-1 {
			p.Numbers = append(p.Numbers, Ellipsis)
		}
		p.Numbers = append(p.Numbers, total)
	}
	return p
}
