package match

import (
	"fmt"
	"strconv"

	"github.com/TimurManjosov/flagship-go-sdk/internal/evaluator"
	"github.com/TimurManjosov/flagship-go-sdk/internal/workspace"
)

// ConditionMatcher evaluates one atomic condition against the request's user.
type ConditionMatcher struct {
	user       userConditionMatcher
	segment    segmentConditionMatcher
	experiment experimentConditionMatcher
}

// NewConditionMatcher builds a condition matcher. The evaluator is consulted
// for experiment and feature-flag conditions and may be bound late via
// SetEvaluator to break the construction cycle with the delegating evaluator.
func NewConditionMatcher() *ConditionMatcher {
	return &ConditionMatcher{}
}

// SetEvaluator binds the evaluator used for experiment conditions. Must be
// called before the first evaluation.
func (m *ConditionMatcher) SetEvaluator(e evaluator.Evaluator) {
	m.experiment.evaluator = e
}

// Matches dispatches on the condition key type. Unknown key types fail
// closed.
func (m *ConditionMatcher) Matches(req evaluator.Request, ctx *evaluator.Context, condition workspace.Condition) (bool, error) {
	switch condition.Key.Type {
	case workspace.KeyTypeUserID, workspace.KeyTypeUserProperty, workspace.KeyTypeSystemProperty:
		return m.user.matches(req, condition), nil
	case workspace.KeyTypeSegment:
		return m.segment.matches(m, req, ctx, condition)
	case workspace.KeyTypeABTest, workspace.KeyTypeFeatureFlag:
		return m.experiment.matches(req, ctx, condition)
	default:
		return false, nil
	}
}

// userConditionMatcher resolves a raw value from the user's identifiers or
// property maps and applies the typed operator match.
type userConditionMatcher struct{}

func (userConditionMatcher) matches(req evaluator.Request, condition workspace.Condition) bool {
	var userValue any
	var ok bool
	switch condition.Key.Type {
	case workspace.KeyTypeUserID:
		userValue, ok = req.User.Identifier(condition.Key.Name)
	case workspace.KeyTypeUserProperty:
		userValue, ok = req.User.Property(condition.Key.Name)
	case workspace.KeyTypeSystemProperty:
		userValue, ok = req.User.SystemProperty(condition.Key.Name)
	}
	if !ok {
		return false
	}
	return Matches(condition.Match, userValue)
}

// segmentConditionMatcher resolves named segments and tests their targets.
// Segment targets may only contain user conditions; anything else indicates a
// corrupted snapshot.
type segmentConditionMatcher struct{}

func (segmentConditionMatcher) matches(cm *ConditionMatcher, req evaluator.Request, ctx *evaluator.Context, condition workspace.Condition) (bool, error) {
	matched := false
	for _, value := range condition.Match.Values {
		segmentKey, ok := value.(string)
		if !ok {
			continue
		}
		segment, ok := req.Workspace.GetSegment(segmentKey)
		if !ok {
			continue
		}
		inSegment, err := segmentMatches(cm, req, segment)
		if err != nil {
			return false, err
		}
		if inSegment {
			matched = true
			break
		}
	}
	switch condition.Match.Type {
	case workspace.MatchTypeNotMatch:
		return !matched, nil
	default:
		return matched, nil
	}
}

// segmentMatches tests a segment's targets (OR) over user-only conditions.
func segmentMatches(cm *ConditionMatcher, req evaluator.Request, segment workspace.Segment) (bool, error) {
	for _, target := range segment.Targets {
		allMatch := true
		for _, condition := range target.Conditions {
			switch condition.Key.Type {
			case workspace.KeyTypeUserID, workspace.KeyTypeUserProperty, workspace.KeyTypeSystemProperty:
				if !cm.user.matches(req, condition) {
					allMatch = false
				}
			default:
				return false, fmt.Errorf("segment %q contains unsupported condition type %q", segment.Key, condition.Key.Type)
			}
			if !allMatch {
				break
			}
		}
		if allMatch && len(target.Conditions) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// experimentConditionMatcher recursively evaluates a referenced experiment or
// feature flag through the delegating evaluator. Memoization in the call
// context avoids recomputation; cycle detection fails fast on self-reference.
type experimentConditionMatcher struct {
	evaluator evaluator.Evaluator
}

// assignedReasons are the reasons under which an experiment assignment is
// considered an actual assignment for condition-matching purposes.
var assignedReasons = map[string]bool{
	evaluator.ReasonOverridden:          true,
	evaluator.ReasonTrafficAllocated:    true,
	evaluator.ReasonExperimentCompleted: true,
}

func (m experimentConditionMatcher) matches(req evaluator.Request, ctx *evaluator.Context, condition workspace.Condition) (bool, error) {
	if m.evaluator == nil {
		return false, fmt.Errorf("experiment condition matcher has no evaluator bound")
	}
	key, err := strconv.ParseInt(condition.Key.Name, 10, 64)
	if err != nil {
		return false, nil
	}

	switch condition.Key.Type {
	case workspace.KeyTypeABTest:
		experiment, ok := req.Workspace.GetExperiment(key)
		if !ok {
			return false, nil
		}
		evaluation, err := m.evaluate(req, ctx, evaluator.KindExperiment, &experiment)
		if err != nil {
			return false, err
		}
		if !assignedReasons[evaluation.Reason] {
			return false, nil
		}
		return Matches(condition.Match, evaluation.VariationKey), nil

	case workspace.KeyTypeFeatureFlag:
		flag, ok := req.Workspace.GetFeatureFlag(key)
		if !ok {
			return false, nil
		}
		evaluation, err := m.evaluate(req, ctx, evaluator.KindFeatureFlag, &flag)
		if err != nil {
			return false, err
		}
		isOn := evaluation.VariationKey != "A"
		return Matches(condition.Match, isOn), nil
	}
	return false, nil
}

func (m experimentConditionMatcher) evaluate(parent evaluator.Request, ctx *evaluator.Context, kind evaluator.Kind, experiment *workspace.Experiment) (evaluator.Evaluation, error) {
	subReq := evaluator.Request{
		Kind:                kind,
		Workspace:           parent.Workspace,
		User:                parent.User,
		Timestamp:           parent.Timestamp,
		Experiment:          experiment,
		DefaultVariationKey: "A",
	}
	evaluation, err := m.evaluator.Evaluate(subReq, ctx)
	if err != nil {
		return evaluator.Evaluation{}, err
	}
	ctx.AddEvaluation(evaluation)
	return evaluation, nil
}
