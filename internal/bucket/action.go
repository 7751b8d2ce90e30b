package bucket

import (
	"fmt"

	"github.com/TimurManjosov/flagship-go-sdk/internal/evaluator"
	"github.com/TimurManjosov/flagship-go-sdk/internal/workspace"
)

// ActionResolver resolves a rule's action into a concrete variation, either
// directly by variation id or through deterministic bucketing. A false result
// means the user fell outside every allocated slot range; callers treat that
// as traffic-not-allocated.
type ActionResolver struct {
	bucketer Bucketer
}

// NewActionResolver returns an ActionResolver backed by the given bucketer.
func NewActionResolver(b Bucketer) ActionResolver {
	return ActionResolver{bucketer: b}
}

// Resolve maps the action to a variation of the request's experiment.
func (r ActionResolver) Resolve(req evaluator.Request, action workspace.Action) (workspace.Variation, bool, error) {
	experiment := req.Experiment
	switch action.Type {
	case workspace.ActionVariation:
		variation, ok := experiment.VariationByID(action.VariationID)
		if !ok {
			return workspace.Variation{}, false, fmt.Errorf("variation %d not found in experiment %d", action.VariationID, experiment.ID)
		}
		return variation, true, nil

	case workspace.ActionBucket:
		bk, ok := req.Workspace.GetBucket(action.BucketID)
		if !ok {
			return workspace.Variation{}, false, fmt.Errorf("bucket %d not found", action.BucketID)
		}
		identifier, ok := req.User.Identifier(experiment.IdentifierType)
		if !ok {
			return workspace.Variation{}, false, nil
		}
		slot, ok := r.bucketer.Bucketing(bk, identifier)
		if !ok {
			return workspace.Variation{}, false, nil
		}
		variation, ok := experiment.VariationByID(slot.VariationID)
		if !ok {
			return workspace.Variation{}, false, nil
		}
		return variation, true, nil

	default:
		return workspace.Variation{}, false, fmt.Errorf("unsupported action type %q", action.Type)
	}
}
