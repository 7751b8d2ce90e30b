package match

import (
	"github.com/TimurManjosov/flagship-go-sdk/internal/evaluator"
	"github.com/TimurManjosov/flagship-go-sdk/internal/workspace"
)

// TargetMatcher applies AND-of-conditions within a target and OR-of-targets
// across a target list.
type TargetMatcher struct {
	conditions *ConditionMatcher
}

// NewTargetMatcher returns a target matcher over the given condition matcher.
func NewTargetMatcher(conditions *ConditionMatcher) TargetMatcher {
	return TargetMatcher{conditions: conditions}
}

// Matches reports whether every condition of the target matches.
func (m TargetMatcher) Matches(req evaluator.Request, ctx *evaluator.Context, target workspace.Target) (bool, error) {
	for _, condition := range target.Conditions {
		ok, err := m.conditions.Matches(req, ctx, condition)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// AnyMatches reports whether any target in the list matches. An empty list
// matches everyone.
func (m TargetMatcher) AnyMatches(req evaluator.Request, ctx *evaluator.Context, targets []workspace.Target) (bool, error) {
	if len(targets) == 0 {
		return true, nil
	}
	for _, target := range targets {
		ok, err := m.Matches(req, ctx, target)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
