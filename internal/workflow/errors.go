package workflow

import (
	"errors"
	"fmt"

	"github.com/tunebridge/console/internal/models"
)

var (
	// ErrUnknownEntity indicates no definition is registered for the entity type.
	ErrUnknownEntity = errors.New("workflow: entity type not registered")
	// ErrUnknownAction indicates the action is not part of the entity's vocabulary.
	ErrUnknownAction = errors.New("workflow: unknown action")
	// ErrIllegalAction indicates the action is not defined for the current status.
	ErrIllegalAction = errors.New("workflow: action not allowed from current status")
	// ErrCategoryMismatch indicates a category outside the entity's endpoint families.
	ErrCategoryMismatch = errors.New("workflow: category not valid for entity")
	// ErrReasonRequired indicates a reason-carrying action was given blank reason text.
	ErrReasonRequired = errors.New("workflow: reason is required")
	// ErrPayloadMissing indicates a required payload field was not supplied.
	ErrPayloadMissing = errors.New("workflow: required payload field missing")
	// ErrMixedSelection indicates a bulk selection spans more than one status or category.
	ErrMixedSelection = errors.New("workflow: selection mixes statuses or categories")
	// ErrEmptySelection indicates a bulk run was requested with no entities.
	ErrEmptySelection = errors.New("workflow: selection is empty")
	// ErrInvalidDefinition indicates a transition table failed to compile.
	ErrInvalidDefinition = errors.New("workflow: invalid definition")
)

// ValidationError is raised before any network call. It blocks the single
// action or the whole bulk run it belongs to.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IllegalActionError reports an action requested from a status that does
// not permit it, typically because another operator moved the entity.
type IllegalActionError struct {
	Entity models.EntityType
	Status models.Status
	Action models.ActionID
}

func (e *IllegalActionError) Error() string {
	return fmt.Sprintf("%s: %s in %s cannot %s", ErrIllegalAction.Error(), e.Entity, e.Status, e.Action)
}

func (e *IllegalActionError) Unwrap() error { return ErrIllegalAction }
