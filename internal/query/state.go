package query

import (
	"fmt"
	"strings"

	"github.com/tunebridge/console/internal/models"
)

// State is an immutable list query. Every With method returns a new value;
// filter changes reset the page to 1 and page changes keep the filters.
type State struct {
	Search    string            `json:"search"`
	Status    models.Status     `json:"status,omitempty"`
	Category  models.Category   `json:"category,omitempty"`
	Page      int               `json:"page"`
	Limit     int               `json:"limit"`
	SortOrder models.SortOrder  `json:"sort_order"`
	Entity    models.EntityType `json:"entity"`
}

func NewState(entity models.EntityType, category models.Category, limit int) State {
	return State{
		Entity:    entity,
		Category:  category,
		Page:      1,
		Limit:     limit,
		SortOrder: models.SortNewest,
	}
}

func (s State) WithSearch(search string) State {
	s.Search = search
	s.Page = 1
	return s
}

func (s State) WithStatus(status models.Status) State {
	s.Status = status
	s.Page = 1
	return s
}

func (s State) WithCategory(category models.Category) State {
	s.Category = category
	s.Page = 1
	return s
}

func (s State) WithSortOrder(order models.SortOrder) State {
	s.SortOrder = order
	s.Page = 1
	return s
}

func (s State) WithLimit(limit int) State {
	s.Limit = limit
	s.Page = 1
	return s
}

func (s State) WithPage(page int) State {
	if page < 1 {
		page = 1
	}
	s.Page = page
	return s
}

// Params converts the state to the remote list contract. Search text is
// trimmed; an all-blank search is no search.
func (s State) Params() models.ListParams {
	return models.ListParams{
		Page:      s.Page,
		Limit:     s.Limit,
		Status:    s.Status,
		Search:    strings.TrimSpace(s.Search),
		SortOrder: s.SortOrder,
		Category:  s.Category,
	}
}

// Key identifies the remote result of the state, for caching.
func (s State) Key() string {
	p := s.Params()
	return fmt.Sprintf("%s:%s:%s:%s:%s:%d:%d", s.Entity, p.Category, p.Status, p.SortOrder, p.Search, p.Page, p.Limit)
}
