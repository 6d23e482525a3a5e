package query

import (
	"context"

	"github.com/tunebridge/console/internal/models"
)

// Pager accumulates pages for infinite scroll. It stops when a page comes
// back shorter than the limit or the backend reports no further pages.
type Pager struct {
	state      State
	fetch      Fetcher
	items      []models.WorkflowEntity
	pagination models.Pagination
	next       int
	done       bool
}

func NewPager(state State, fetch Fetcher) *Pager {
	return &Pager{state: state.WithPage(1), fetch: fetch, next: 1}
}

// Next fetches and appends the following page. It returns the new items;
// after the end it returns nothing and does not call the backend.
func (p *Pager) Next(ctx context.Context) ([]models.WorkflowEntity, error) {
	if p.done {
		return nil, nil
	}
	page, err := p.fetch(ctx, p.state.WithPage(p.next))
	if err != nil {
		return nil, err
	}
	p.items = append(p.items, page.Items...)
	p.pagination = page.Pagination
	p.next++
	if len(page.Items) < p.state.Limit || (page.Pagination.TotalPages > 0 && page.Pagination.CurrentPage >= page.Pagination.TotalPages) {
		p.done = true
	}
	return page.Items, nil
}

// Reset starts over with a new state, e.g. after a filter change.
func (p *Pager) Reset(state State) {
	p.state = state.WithPage(1)
	p.items = nil
	p.pagination = models.Pagination{}
	p.next = 1
	p.done = false
}

// Seek makes the next call fetch the given page, for a view that already
// shows the pages before it.
func (p *Pager) Seek(page int) {
	if page < 1 {
		page = 1
	}
	p.next = page
}

// State is the query the pager pages through, at page 1.
func (p *Pager) State() State { return p.state }

func (p *Pager) Items() []models.WorkflowEntity { return p.items }

func (p *Pager) Done() bool { return p.done }

// Pagination is the backend's metadata from the last page fetched.
func (p *Pager) Pagination() models.Pagination { return p.pagination }
