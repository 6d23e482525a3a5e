package workflow

import (
	"context"
	"fmt"

	"github.com/tunebridge/console/internal/models"
)

// Registry holds one compiled machine per entity type.
type Registry struct {
	machines map[models.EntityType]*Machine
}

func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{machines: make(map[models.EntityType]*Machine, len(defs))}
	for _, def := range defs {
		if _, dup := r.machines[def.Entity]; dup {
			return nil, fmt.Errorf("%w: %s registered twice", ErrInvalidDefinition, def.Entity)
		}
		m, err := NewMachine(def)
		if err != nil {
			return nil, err
		}
		r.machines[def.Entity] = m
	}
	return r, nil
}

// DefaultRegistry compiles the built-in tables. The tables are static, so a
// compile failure is a programming error.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Definitions()...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Machine(entity models.EntityType) (*Machine, error) {
	m, ok := r.machines[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	return m, nil
}

// LegalActions returns the actions allowed for the entity in its current
// position.
func (r *Registry) LegalActions(ctx context.Context, entity models.WorkflowEntity) ([]models.ActionID, error) {
	m, err := r.Machine(entity.Type)
	if err != nil {
		return nil, err
	}
	return m.LegalActions(ctx, entity.Position(), entity.Category)
}

// Check verifies legality and input for one action before any network call.
func (r *Registry) Check(ctx context.Context, entity models.WorkflowEntity, action models.ActionID, input models.ActionInput) (Operation, error) {
	m, err := r.Machine(entity.Type)
	if err != nil {
		return Operation{}, err
	}
	if err := m.CanPerform(ctx, entity, action); err != nil {
		return Operation{}, err
	}
	if err := m.Validate(action, input); err != nil {
		return Operation{}, err
	}
	return m.ResolveOperation(action, entity.Category)
}
