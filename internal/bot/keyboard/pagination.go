package keyboard

import (
	"fmt"
	"strconv"

	"github.com/Proton-105/himera-dialogs/internal/chat"
)

const DefaultItemsPerPage = 5

// Pagination slices items into pages numbered from 1.
type Pagination[T any] struct {
	items   []T
	perPage int
	page    int
	pages   int
	cycle   bool
}

type PaginationOption func(*paginationOptions)

type paginationOptions struct {
	perPage int
	page    int
	noCycle bool
}

// PerPage sets the page size.
func PerPage(n int) PaginationOption {
	return func(o *paginationOptions) { o.perPage = n }
}

// StartPage selects the initial page.
func StartPage(n int) PaginationOption {
	return func(o *paginationOptions) { o.page = n }
}

// NoCycle clamps out-of-range pages instead of wrapping around.
func NoCycle() PaginationOption {
	return func(o *paginationOptions) { o.noCycle = true }
}

func NewPagination[T any](items []T, opts ...PaginationOption) *Pagination[T] {
	o := paginationOptions{perPage: DefaultItemsPerPage, page: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.perPage < 1 {
		o.perPage = DefaultItemsPerPage
	}

	p := &Pagination[T]{
		items:   items,
		perPage: o.perPage,
		cycle:   !o.noCycle,
		pages:   max(1, (len(items)+o.perPage-1)/o.perPage),
	}
	p.SetPage(o.page)

	return p
}

// SetPage moves to page and returns the page actually selected.
func (p *Pagination[T]) SetPage(page int) int {
	switch {
	case page < 1 && p.cycle:
		p.page = p.pages
	case page < 1:
		p.page = 1
	case page > p.pages && p.cycle:
		p.page = 1
	case page > p.pages:
		p.page = p.pages
	default:
		p.page = page
	}

	return p.page
}

// Items returns the items of the current page.
func (p *Pagination[T]) Items() []T {
	start := (p.page - 1) * p.perPage
	if start >= len(p.items) {
		return nil
	}
	end := min(start+p.perPage, len(p.items))

	return p.items[start:end]
}

func (p *Pagination[T]) Page() int     { return p.page }
func (p *Pagination[T]) Pages() int    { return p.pages }
func (p *Pagination[T]) IsFirst() bool { return p.page == 1 }
func (p *Pagination[T]) IsLast() bool  { return p.page == p.pages }

// Label renders the position as "page / pages".
func (p *Pagination[T]) Label() string {
	return fmt.Sprintf("%d / %d", p.page, p.pages)
}

// PaginationLabels holds the texts of the navigation buttons.
type PaginationLabels struct {
	Prev string
	Next string
}

var DefaultPaginationLabels = PaginationLabels{Prev: "◀️", Next: "▶️"}

// PaginationButtons returns up to three buttons (prev, current page, next)
// whose data is the action encoded with a "page" parameter. Prev and next
// wrap around on cycling paginations and are omitted at the edges otherwise.
func PaginationButtons[T any](p *Pagination[T], action string, labels PaginationLabels) ([]chat.Button, error) {
	if labels.Prev == "" {
		labels.Prev = DefaultPaginationLabels.Prev
	}
	if labels.Next == "" {
		labels.Next = DefaultPaginationLabels.Next
	}

	type navButton struct {
		text string
		page int
	}

	navs := make([]navButton, 0, 3)
	if p.pages > 1 && (p.cycle || !p.IsFirst()) {
		navs = append(navs, navButton{labels.Prev, wrap(p.page-1, p.pages)})
	}
	navs = append(navs, navButton{p.Label(), p.page})
	if p.pages > 1 && (p.cycle || !p.IsLast()) {
		navs = append(navs, navButton{labels.Next, wrap(p.page+1, p.pages)})
	}

	buttons := make([]chat.Button, 0, len(navs))
	for _, s := range navs {
		btn, err := ActionButton(s.text, action, map[string]string{"page": strconv.Itoa(s.page)})
		if err != nil {
			return nil, err
		}
		buttons = append(buttons, btn)
	}

	return buttons, nil
}

func wrap(page, pages int) int {
	switch {
	case page < 1:
		return pages
	case page > pages:
		return 1
	default:
		return page
	}
}
