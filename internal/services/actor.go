package services

import (
	"errors"

	"github.com/tunebridge/console/internal/backend"
	"github.com/tunebridge/console/internal/models"
	"github.com/tunebridge/console/internal/workflow"
)

// Actor is the operator behind a request together with the request
// metadata recorded in the audit log.
type Actor struct {
	Operator  *models.Operator
	IPAddress string
	UserAgent string
}

func (a Actor) OperatorID() string {
	if a.Operator == nil {
		return ""
	}
	return a.Operator.ID
}

func (a Actor) Token() string {
	if a.Operator == nil {
		return ""
	}
	return a.Operator.Token
}

// ErrorKind values recorded for failures that never reached the backend.
const (
	kindValidation backend.ErrorKind = "validation"
	kindIllegal    backend.ErrorKind = "illegal_action"
)

func errorKind(err error) backend.ErrorKind {
	if k := backend.KindOf(err); k != "" {
		return k
	}
	var verr *workflow.ValidationError
	if errors.As(err, &verr) {
		return kindValidation
	}
	if errors.Is(err, workflow.ErrIllegalAction) {
		return kindIllegal
	}
	return backend.KindNetwork
}

// withOperatorFields copies input and fills payload fields that come from
// the operator identity rather than the request body.
func withOperatorFields(req workflow.Requirement, input models.ActionInput, actor Actor) models.ActionInput {
	payload := make(map[string]string, len(input.Payload)+len(req.Payload))
	for k, v := range input.Payload {
		payload[k] = v
	}
	for _, f := range req.Payload {
		if f.FromOperator {
			payload[f.Name] = actor.OperatorID()
		}
	}
	input.Payload = payload
	return input
}
