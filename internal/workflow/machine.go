package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/qmuntal/stateless"

	"github.com/tunebridge/console/internal/models"
)

// PayloadField is one extra field an action must carry to the backend.
type PayloadField struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
	// FromOperator fields are filled from the authenticated operator and
	// never read from the request body.
	FromOperator bool `json:"from_operator,omitempty"`
}

// Requirement describes the side-channel input an action needs.
type Requirement struct {
	RequiresReason bool           `json:"requires_reason"`
	Payload        []PayloadField `json:"payload,omitempty"`
}

// Transition is one row of an entity's transition table. An empty
// Categories slice means the row applies to every category of the entity.
// To equal to From marks a reentry: the backend keeps the status and only
// request bookkeeping changes.
type Transition struct {
	From       models.Status     `json:"from"`
	Action     models.ActionID   `json:"action"`
	To         models.Status     `json:"to"`
	Categories []models.Category `json:"categories,omitempty"`
}

func (t Transition) appliesTo(category models.Category) bool {
	if len(t.Categories) == 0 {
		return true
	}
	for _, c := range t.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Definition is the static transition table and endpoint layout of one
// entity type.
type Definition struct {
	Entity       models.EntityType
	Transitions  []Transition
	Requirements map[models.ActionID]Requirement
	// Families maps each category to the remote path prefix of its
	// endpoint family.
	Families map[models.Category]string
	// ActionPaths overrides the default action path segment per category.
	ActionPaths map[models.Category]map[models.ActionID]string
	// Positions lists machine positions beyond the backend vocabulary.
	Positions []models.Status
}

type transitionKey struct {
	from   models.Status
	action models.ActionID
}

type positionKey struct{}

// Machine answers legality questions for one entity type. The underlying
// state machine keeps no state of its own: the position is supplied per
// call through the context, so one Machine is shared by all requests.
type Machine struct {
	def     Definition
	sm      *stateless.StateMachine
	known   map[models.Status]bool
	actions map[models.ActionID]bool
	rows    map[transitionKey][]Transition
}

// NewMachine compiles a definition. It rejects tables that reference
// statuses or categories outside the entity's vocabulary, or that list the
// same action twice from one status for overlapping categories.
func NewMachine(def Definition) (*Machine, error) {
	positions := map[models.Status]bool{}
	for _, s := range models.Statuses(def.Entity) {
		positions[s] = true
	}
	for _, s := range def.Positions {
		positions[s] = true
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("%w: %s has no statuses", ErrInvalidDefinition, def.Entity)
	}
	for _, c := range models.Categories(def.Entity) {
		if _, ok := def.Families[c]; !ok {
			return nil, fmt.Errorf("%w: %s category %s has no endpoint family", ErrInvalidDefinition, def.Entity, c)
		}
	}

	m := &Machine{
		def:     def,
		known:   positions,
		actions: map[models.ActionID]bool{},
		rows:    map[transitionKey][]Transition{},
	}
	m.sm = stateless.NewStateMachineWithExternalStorage(
		func(ctx context.Context) (any, error) {
			pos, ok := ctx.Value(positionKey{}).(models.Status)
			if !ok {
				return nil, errors.New("workflow: no position in context")
			}
			return pos, nil
		},
		func(context.Context, any) error {
			return errors.New("workflow: machine is read-only")
		},
		stateless.FiringImmediate,
	)

	// Every position is configured up front so lookups never grow the
	// machine's internal state map.
	for _, s := range models.Statuses(def.Entity) {
		m.sm.Configure(s)
	}
	for _, s := range def.Positions {
		m.sm.Configure(s)
	}

	for _, t := range def.Transitions {
		if !positions[t.From] || !positions[t.To] {
			return nil, fmt.Errorf("%w: %s %s -> %s uses unknown status", ErrInvalidDefinition, def.Entity, t.From, t.To)
		}
		for _, c := range t.Categories {
			if _, err := models.ParseCategory(def.Entity, string(c)); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
			}
		}
		key := transitionKey{t.From, t.Action}
		for _, prior := range m.rows[key] {
			if overlaps(prior, t, def.Entity) {
				return nil, fmt.Errorf("%w: %s %s/%s defined twice", ErrInvalidDefinition, def.Entity, t.From, t.Action)
			}
		}
		m.rows[key] = append(m.rows[key], t)
		m.actions[t.Action] = true

		row := t
		guard := func(_ context.Context, args ...any) bool {
			if len(args) == 0 {
				return false
			}
			c, ok := args[0].(models.Category)
			return ok && row.appliesTo(c)
		}
		if t.To == t.From {
			m.sm.Configure(t.From).PermitReentry(t.Action, guard)
		} else {
			m.sm.Configure(t.From).Permit(t.Action, t.To, guard)
		}
	}
	return m, nil
}

func overlaps(a, b Transition, entity models.EntityType) bool {
	for _, c := range models.Categories(entity) {
		if a.appliesTo(c) && b.appliesTo(c) {
			return true
		}
	}
	return false
}

// Entity returns the entity type this machine governs.
func (m *Machine) Entity() models.EntityType { return m.def.Entity }

// Definition returns the compiled table.
func (m *Machine) Definition() Definition { return m.def }

func (m *Machine) checkCategory(category models.Category) error {
	for _, c := range models.Categories(m.def.Entity) {
		if c == category {
			return nil
		}
	}
	return fmt.Errorf("%w: %s for %s", ErrCategoryMismatch, category, m.def.Entity)
}

// LegalActions returns the actions allowed from a position for a category,
// in table order. Terminal positions yield an empty, non-nil slice.
func (m *Machine) LegalActions(ctx context.Context, position models.Status, category models.Category) ([]models.ActionID, error) {
	if err := m.checkCategory(category); err != nil {
		return nil, err
	}
	if !m.known[position] {
		return []models.ActionID{}, nil
	}
	triggers, err := m.sm.PermittedTriggersCtx(context.WithValue(ctx, positionKey{}, position), category)
	if err != nil {
		return nil, err
	}
	permitted := make(map[models.ActionID]bool, len(triggers))
	for _, t := range triggers {
		if a, ok := t.(models.ActionID); ok {
			permitted[a] = true
		}
	}

	actions := []models.ActionID{}
	for _, t := range m.def.Transitions {
		if t.From == position && permitted[t.Action] && t.appliesTo(category) {
			actions = append(actions, t.Action)
			delete(permitted, t.Action)
		}
	}
	return actions, nil
}

// CanPerform returns nil when action is legal for the entity's position.
func (m *Machine) CanPerform(ctx context.Context, entity models.WorkflowEntity, action models.ActionID) error {
	if !m.actions[action] {
		return fmt.Errorf("%w: %s for %s", ErrUnknownAction, action, m.def.Entity)
	}
	if err := m.checkCategory(entity.Category); err != nil {
		return err
	}
	if !m.known[entity.Position()] {
		return &IllegalActionError{Entity: m.def.Entity, Status: entity.Position(), Action: action}
	}
	ok, err := m.sm.CanFireCtx(context.WithValue(ctx, positionKey{}, entity.Position()), action, entity.Category)
	if err != nil {
		return err
	}
	if !ok {
		return &IllegalActionError{Entity: m.def.Entity, Status: entity.Position(), Action: action}
	}
	return nil
}

// Target returns the status the table expects after action fires from
// position. The backend's reported state remains authoritative.
func (m *Machine) Target(position models.Status, category models.Category, action models.ActionID) (models.Status, bool) {
	for _, t := range m.rows[transitionKey{position, action}] {
		if t.appliesTo(category) {
			return t.To, true
		}
	}
	return "", false
}

// ActionRequirement returns the declared input requirement of an action.
// Actions with no declaration require nothing.
func (m *Machine) ActionRequirement(action models.ActionID) (Requirement, error) {
	if !m.actions[action] {
		return Requirement{}, fmt.Errorf("%w: %s for %s", ErrUnknownAction, action, m.def.Entity)
	}
	return m.def.Requirements[action], nil
}

// Validate checks action input against the action's requirement. Reason
// text that is empty after trimming never satisfies a reason requirement.
func (m *Machine) Validate(action models.ActionID, input models.ActionInput) error {
	req, err := m.ActionRequirement(action)
	if err != nil {
		return err
	}
	if req.RequiresReason && strings.TrimSpace(input.Reason) == "" {
		return &ValidationError{
			Field:   "reason",
			Message: fmt.Sprintf("a reason is required to %s", strings.ReplaceAll(string(action), "_", " ")),
			Err:     ErrReasonRequired,
		}
	}
	for _, f := range req.Payload {
		if !f.Required {
			continue
		}
		if strings.TrimSpace(input.Payload[f.Name]) == "" {
			return &ValidationError{
				Field:   f.Name,
				Message: fmt.Sprintf("%s is required", f.Label),
				Err:     ErrPayloadMissing,
			}
		}
	}
	return nil
}

// Transitions returns the actions reachable from position for a category,
// with their expected targets.
func (m *Machine) Transitions(position models.Status, category models.Category) []Transition {
	out := []Transition{}
	for _, t := range m.def.Transitions {
		if t.From == position && t.appliesTo(category) {
			out = append(out, t)
		}
	}
	return out
}

// Graph renders the table in DOT format.
func (m *Machine) Graph() string {
	return m.sm.ToGraph()
}
