package pagination

// PageButton is one numbered control in the pager.
type PageButton struct {
	Number int
	Active bool
}

// Pager is the derived navigation state for one listing page.
type Pager struct {
	CurrentPage int
	PerPage     int
	TotalPages  int
	TotalItems  int

	// From, To and Total render as "showing From–To of Total".
	From  int
	To    int
	Total int

	Pages []PageButton

	FirstDisabled bool
	PrevDisabled  bool
	NextDisabled  bool
	LastDisabled  bool
}

// NewPager derives the pager for the given listing state.
func NewPager(currentPage, perPage, totalPages, totalItems int) Pager {
	from, to := Bounds(currentPage, perPage, totalItems)

	p := Pager{
		CurrentPage:   currentPage,
		PerPage:       perPage,
		TotalPages:    totalPages,
		TotalItems:    totalItems,
		From:          from,
		To:            to,
		Total:         totalItems,
		FirstDisabled: currentPage == 1,
		PrevDisabled:  currentPage == 1,
		NextDisabled:  currentPage == totalPages,
		LastDisabled:  currentPage == totalPages,
	}

	if totalPages > 0 {
		p.Pages = make([]PageButton, 0, totalPages)
		for n := 1; n <= totalPages; n++ {
			p.Pages = append(p.Pages, PageButton{Number: n, Active: n == currentPage})
		}
	}

	return p
}

// Visible reports whether the pager should be rendered at all.
func (p Pager) Visible() bool {
	return p.TotalPages > 0
}

// PrevPage is the target of the "previous" control.
func (p Pager) PrevPage() int {
	return p.CurrentPage - 1
}

// NextPage is the target of the "next" control.
func (p Pager) NextPage() int {
	return p.CurrentPage + 1
}

// Bounds returns the 1-based index of the first and last item shown on
// currentPage: from = (currentPage-1)*perPage+1, to = min(currentPage*perPage, totalItems).
func Bounds(currentPage, perPage, totalItems int) (from, to int) {
	from = (currentPage-1)*perPage + 1
	to = currentPage * perPage
	if totalItems < to {
		to = totalItems
	}
	return from, to
}

// TotalPages returns how many pages of perPage items hold totalItems.
func TotalPages(totalItems, perPage int) int {
	if perPage <= 0 || totalItems <= 0 {
		return 0
	}
	return (totalItems + perPage - 1) / perPage
}

// InRange reports whether page n exists among totalPages pages.
func InRange(n, totalPages int) bool {
	return n >= 1 && n <= totalPages
}
