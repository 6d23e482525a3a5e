package bulk

import (
	"fmt"

	"github.com/tunebridge/console/internal/models"
	"github.com/tunebridge/console/internal/workflow"
)

// Selection is an ordered set of entities locked to the status and
// category of the first entity added. Removing the last entity releases
// the lock.
type Selection struct {
	entity models.EntityType
	items  []models.WorkflowEntity
	index  map[string]int
}

func NewSelection(entity models.EntityType) *Selection {
	return &Selection{entity: entity, index: map[string]int{}}
}

// Add appends an entity. Adding an entity whose position or category
// differs from the locked ones is refused; adding an id twice is a no-op.
func (s *Selection) Add(e models.WorkflowEntity) error {
	if e.Type != s.entity {
		return &workflow.ValidationError{
			Field:   "items",
			Message: fmt.Sprintf("cannot mix %s with %s in one selection", e.Type, s.entity),
			Err:     workflow.ErrMixedSelection,
		}
	}
	if _, ok := s.index[e.ID]; ok {
		return nil
	}
	if len(s.items) > 0 {
		first := s.items[0]
		if first.Position() != e.Position() || first.Category != e.Category {
			return &workflow.ValidationError{
				Field: "items",
				Message: fmt.Sprintf("%s is %s/%s but the selection is locked to %s/%s",
					e.ID, e.Category, e.Position(), first.Category, first.Position()),
				Err: workflow.ErrMixedSelection,
			}
		}
	}
	s.index[e.ID] = len(s.items)
	s.items = append(s.items, e)
	return nil
}

func (s *Selection) Remove(id string) {
	i, ok := s.index[id]
	if !ok {
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j].ID] = j
	}
}

// Locked returns the position and category every member shares.
func (s *Selection) Locked() (models.Status, models.Category, bool) {
	if len(s.items) == 0 {
		return "", "", false
	}
	return s.items[0].Position(), s.items[0].Category, true
}

func (s *Selection) Len() int { return len(s.items) }

func (s *Selection) Entity() models.EntityType { return s.entity }

// Items returns the members in insertion order.
func (s *Selection) Items() []models.WorkflowEntity {
	out := make([]models.WorkflowEntity, len(s.items))
	copy(out, s.items)
	return out
}
