package flow

import (
	"fmt"

	"github.com/TimurManjosov/flagship-go-sdk/internal/bucket"
	"github.com/TimurManjosov/flagship-go-sdk/internal/evaluator"
	"github.com/TimurManjosov/flagship-go-sdk/internal/match"
	"github.com/TimurManjosov/flagship-go-sdk/internal/workspace"
)

// ExperimentHandler routes experiment and feature-flag requests to their
// respective flow chains. The two chains diverge deliberately: a feature flag
// resolves lifecycle status before overrides (a killed flag is off for
// everyone), while an A/B test honors overrides even before audience checks.
type ExperimentHandler struct {
	abFlow Flow
	ffFlow Flow
}

// NewExperimentHandler wires the two experiment flow chains.
func NewExperimentHandler(matcher match.TargetMatcher, bucketer bucket.Bucketer, actions bucket.ActionResolver) *ExperimentHandler {
	overrides := overrideResolver{matcher: matcher, actions: actions}

	abFlow := NewFlow(
		func(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, error) {
			return defaultEvaluation(req, ctx, evaluator.ReasonTrafficNotAllocated), nil
		},
		overrideStep{overrides: overrides},
		identifierStep{},
		containerStep{bucketer: bucketer},
		audienceStep{matcher: matcher},
		draftStep{reason: evaluator.ReasonExperimentDraft},
		pausedStep{reason: evaluator.ReasonExperimentPaused},
		completedStep{},
		allocateStep{actions: actions},
	)

	ffFlow := NewFlow(
		func(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, error) {
			return defaultEvaluation(req, ctx, evaluator.ReasonTrafficNotAllocated), nil
		},
		draftStep{reason: evaluator.ReasonFeatureFlagInactive},
		pausedStep{reason: evaluator.ReasonFeatureFlagInactive},
		completedStep{},
		overrideStep{overrides: overrides},
		identifierStep{},
		targetRuleStep{matcher: matcher, actions: actions},
		defaultRuleStep{actions: actions},
	)

	return &ExperimentHandler{abFlow: abFlow, ffFlow: ffFlow}
}

// Supports reports the kinds this handler evaluates.
func (h *ExperimentHandler) Supports(kind evaluator.Kind) bool {
	return kind == evaluator.KindExperiment || kind == evaluator.KindFeatureFlag
}

// Evaluate runs the flow chain for the request's kind.
func (h *ExperimentHandler) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, error) {
	if req.Kind == evaluator.KindFeatureFlag {
		return h.ffFlow.Evaluate(req, ctx)
	}
	return h.abFlow.Evaluate(req, ctx)
}

// overrideResolver applies manual override precedence: the explicit per-user
// override first, then the first matching segment-override rule.
type overrideResolver struct {
	matcher match.TargetMatcher
	actions bucket.ActionResolver
}

func (r overrideResolver) resolve(req evaluator.Request, ctx *evaluator.Context) (workspace.Variation, bool, error) {
	experiment := req.Experiment
	if identifier, ok := req.User.Identifier(experiment.IdentifierType); ok {
		if variationID, ok := experiment.UserOverrides[identifier]; ok {
			if v, ok := experiment.VariationByID(variationID); ok {
				return v, true, nil
			}
		}
	}
	for _, rule := range experiment.SegmentOverrides {
		matched, err := r.matcher.Matches(req, ctx, rule.Target)
		if err != nil {
			return workspace.Variation{}, false, err
		}
		if !matched {
			continue
		}
		return r.actions.Resolve(req, rule.Action)
	}
	return workspace.Variation{}, false, nil
}

type overrideStep struct {
	overrides overrideResolver
}

func (overrideStep) Name() string { return "override" }

func (s overrideStep) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, bool, error) {
	v, ok, err := s.overrides.resolve(req, ctx)
	if err != nil || !ok {
		return evaluator.Evaluation{}, false, err
	}
	return variationEvaluation(req, ctx, v, evaluator.ReasonOverridden), true, nil
}

type identifierStep struct{}

func (identifierStep) Name() string { return "identifier" }

func (identifierStep) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, bool, error) {
	if _, ok := req.User.Identifier(req.Experiment.IdentifierType); !ok {
		return defaultEvaluation(req, ctx, evaluator.ReasonIdentifierNotFound), true, nil
	}
	return evaluator.Evaluation{}, false, nil
}

// containerStep gates mutual-exclusion membership: the container bucket
// assigns the user to one group, and only experiments in that group proceed.
type containerStep struct {
	bucketer bucket.Bucketer
}

func (containerStep) Name() string { return "container" }

func (s containerStep) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, bool, error) {
	experiment := req.Experiment
	if experiment.ContainerID == 0 {
		return evaluator.Evaluation{}, false, nil
	}
	container, ok := req.Workspace.GetContainer(experiment.ContainerID)
	if !ok {
		return evaluator.Evaluation{}, false, fmt.Errorf("container %d not found for experiment %d", experiment.ContainerID, experiment.ID)
	}
	bk, ok := req.Workspace.GetBucket(container.BucketID)
	if !ok {
		return evaluator.Evaluation{}, false, fmt.Errorf("container bucket %d not found", container.BucketID)
	}
	identifier, ok := req.User.Identifier(experiment.IdentifierType)
	if !ok {
		return defaultEvaluation(req, ctx, evaluator.ReasonIdentifierNotFound), true, nil
	}
	slot, ok := s.bucketer.Bucketing(bk, identifier)
	if !ok {
		return defaultEvaluation(req, ctx, evaluator.ReasonNotInMutualExclusion), true, nil
	}
	group, ok := container.GroupByID(slot.VariationID)
	if !ok {
		return defaultEvaluation(req, ctx, evaluator.ReasonNotInMutualExclusion), true, nil
	}
	for _, id := range group.Experiments {
		if id == experiment.ID {
			return evaluator.Evaluation{}, false, nil
		}
	}
	return defaultEvaluation(req, ctx, evaluator.ReasonNotInMutualExclusion), true, nil
}

type audienceStep struct {
	matcher match.TargetMatcher
}

func (audienceStep) Name() string { return "audience" }

func (s audienceStep) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, bool, error) {
	matched, err := s.matcher.AnyMatches(req, ctx, req.Experiment.TargetAudiences)
	if err != nil {
		return evaluator.Evaluation{}, false, err
	}
	if !matched {
		return defaultEvaluation(req, ctx, evaluator.ReasonNotInExperimentTarget), true, nil
	}
	return evaluator.Evaluation{}, false, nil
}

type draftStep struct {
	reason string
}

func (draftStep) Name() string { return "draft" }

func (s draftStep) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, bool, error) {
	if req.Experiment.Status == workspace.StatusDraft {
		return defaultEvaluation(req, ctx, s.reason), true, nil
	}
	return evaluator.Evaluation{}, false, nil
}

type pausedStep struct {
	reason string
}

func (pausedStep) Name() string { return "paused" }

func (s pausedStep) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, bool, error) {
	if req.Experiment.Status == workspace.StatusPaused {
		return defaultEvaluation(req, ctx, s.reason), true, nil
	}
	return evaluator.Evaluation{}, false, nil
}

type completedStep struct{}

func (completedStep) Name() string { return "completed" }

func (completedStep) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, bool, error) {
	experiment := req.Experiment
	if experiment.Status != workspace.StatusCompleted {
		return evaluator.Evaluation{}, false, nil
	}
	winner, ok := experiment.VariationByID(experiment.WinnerVariationID)
	if !ok {
		return evaluator.Evaluation{}, false, fmt.Errorf("completed experiment %d has no winner variation", experiment.ID)
	}
	return variationEvaluation(req, ctx, winner, evaluator.ReasonExperimentCompleted), true, nil
}

// allocateStep performs normal traffic allocation and is the last step of the
// A/B chain. Reaching it with a non-running experiment means an earlier
// status step was skipped, which indicates an inconsistent snapshot.
type allocateStep struct {
	actions bucket.ActionResolver
}

func (allocateStep) Name() string { return "allocate" }

func (s allocateStep) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, bool, error) {
	experiment := req.Experiment
	if experiment.Status != workspace.StatusRunning {
		return evaluator.Evaluation{}, false, fmt.Errorf("experiment %d must be RUNNING to allocate (status=%s)", experiment.ID, experiment.Status)
	}
	v, ok, err := s.actions.Resolve(req, experiment.DefaultRule)
	if err != nil {
		return evaluator.Evaluation{}, false, err
	}
	if !ok {
		return defaultEvaluation(req, ctx, evaluator.ReasonTrafficNotAllocated), true, nil
	}
	if v.IsDropped {
		return defaultEvaluation(req, ctx, evaluator.ReasonVariationDropped), true, nil
	}
	return variationEvaluation(req, ctx, v, evaluator.ReasonTrafficAllocated), true, nil
}

// targetRuleStep applies the feature flag's ordered target rules; the first
// rule whose target matches and whose action resolves decides the flag.
type targetRuleStep struct {
	matcher match.TargetMatcher
	actions bucket.ActionResolver
}

func (targetRuleStep) Name() string { return "target-rule" }

func (s targetRuleStep) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, bool, error) {
	experiment := req.Experiment
	if experiment.Status != workspace.StatusRunning {
		return evaluator.Evaluation{}, false, fmt.Errorf("feature flag %d must be RUNNING to apply target rules (status=%s)", experiment.ID, experiment.Status)
	}
	for _, rule := range experiment.TargetRules {
		matched, err := s.matcher.Matches(req, ctx, rule.Target)
		if err != nil {
			return evaluator.Evaluation{}, false, err
		}
		if !matched {
			continue
		}
		v, ok, err := s.actions.Resolve(req, rule.Action)
		if err != nil {
			return evaluator.Evaluation{}, false, err
		}
		if !ok {
			continue
		}
		return variationEvaluation(req, ctx, v, evaluator.ReasonTargetRuleMatch), true, nil
	}
	return evaluator.Evaluation{}, false, nil
}

type defaultRuleStep struct {
	actions bucket.ActionResolver
}

func (defaultRuleStep) Name() string { return "default-rule" }

func (s defaultRuleStep) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, bool, error) {
	v, ok, err := s.actions.Resolve(req, req.Experiment.DefaultRule)
	if err != nil {
		return evaluator.Evaluation{}, false, err
	}
	if !ok {
		return defaultEvaluation(req, ctx, evaluator.ReasonDefaultRule), true, nil
	}
	return variationEvaluation(req, ctx, v, evaluator.ReasonDefaultRule), true, nil
}
