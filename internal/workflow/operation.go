package workflow

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tunebridge/console/internal/models"
)

// Operation is the concrete remote call an action resolves to.
type Operation struct {
	Entity   models.EntityType `json:"entity"`
	Category models.Category   `json:"category"`
	Action   models.ActionID   `json:"action"`
	Method   string            `json:"method"`
	// Family is the endpoint family prefix, e.g. "releases/advanced".
	Family string `json:"family"`
	// Segment is the action's path segment inside the family.
	Segment string `json:"segment"`
}

// Path builds the request path for one entity id.
func (o Operation) Path(id string) string {
	return fmt.Sprintf("/%s/%s/%s", o.Family, url.PathEscape(id), o.Segment)
}

// CollectionPath is the list endpoint of the operation's family.
func CollectionPath(family string) string {
	return "/" + family
}

// ResolveOperation maps an action and category onto the category's
// endpoint family. Two releases in the same status but different
// categories resolve to different families.
func (m *Machine) ResolveOperation(action models.ActionID, category models.Category) (Operation, error) {
	if !m.actions[action] {
		return Operation{}, fmt.Errorf("%w: %s for %s", ErrUnknownAction, action, m.def.Entity)
	}
	family, err := m.Family(category)
	if err != nil {
		return Operation{}, err
	}
	segment := strings.ReplaceAll(string(action), "_", "-")
	if override, ok := m.def.ActionPaths[category][action]; ok {
		segment = override
	}
	return Operation{
		Entity:   m.def.Entity,
		Category: category,
		Action:   action,
		Method:   http.MethodPost,
		Family:   family,
		Segment:  segment,
	}, nil
}

// Family returns the endpoint family prefix for a category.
func (m *Machine) Family(category models.Category) (string, error) {
	if err := m.checkCategory(category); err != nil {
		return "", err
	}
	return m.def.Families[category], nil
}
