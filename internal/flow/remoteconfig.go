package flow

import (
	"github.com/TimurManjosov/flagship-go-sdk/internal/bucket"
	"github.com/TimurManjosov/flagship-go-sdk/internal/evaluator"
	"github.com/TimurManjosov/flagship-go-sdk/internal/match"
	"github.com/TimurManjosov/flagship-go-sdk/internal/workspace"
)

// RemoteConfigHandler resolves a remote config parameter to a value: the
// first matching target rule wins, otherwise the parameter default applies.
// A resolved value whose type differs from the caller-supplied default
// degrades to the caller default with TYPE_MISMATCH.
type RemoteConfigHandler struct {
	matcher  match.TargetMatcher
	bucketer bucket.Bucketer
}

// NewRemoteConfigHandler returns the remote config evaluator.
func NewRemoteConfigHandler(matcher match.TargetMatcher, bucketer bucket.Bucketer) *RemoteConfigHandler {
	return &RemoteConfigHandler{matcher: matcher, bucketer: bucketer}
}

// Supports reports the kinds this handler evaluates.
func (h *RemoteConfigHandler) Supports(kind evaluator.Kind) bool {
	return kind == evaluator.KindRemoteConfig
}

// Evaluate resolves the parameter value, recording decision properties for
// telemetry.
func (h *RemoteConfigHandler) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, error) {
	parameter := req.Parameter
	properties := map[string]any{
		"requestValueType":    string(parameter.Type),
		"requestDefaultValue": req.DefaultValue,
	}

	if _, ok := req.User.Identifier(parameter.IdentifierType); !ok {
		return h.resolved(req, ctx, 0, req.DefaultValue, evaluator.ReasonIdentifierNotFound, properties), nil
	}

	for _, rule := range parameter.TargetRules {
		matched, err := h.ruleMatches(req, ctx, rule)
		if err != nil {
			return evaluator.Evaluation{}, err
		}
		if !matched {
			continue
		}
		properties["targetRuleKey"] = rule.Key
		properties["targetRuleName"] = rule.Name
		return h.typedResolved(req, ctx, rule.Value, evaluator.ReasonTargetRuleMatch, properties), nil
	}
	return h.typedResolved(req, ctx, parameter.DefaultValue, evaluator.ReasonDefaultRule, properties), nil
}

// ruleMatches tests the rule target and, for a non-zero bucket id, the
// percentage gate via deterministic bucketing.
func (h *RemoteConfigHandler) ruleMatches(req evaluator.Request, ctx *evaluator.Context, rule workspace.RemoteConfigTargetRule) (bool, error) {
	matched, err := h.matcher.Matches(req, ctx, rule.Target)
	if err != nil || !matched {
		return false, err
	}
	if rule.BucketID == 0 {
		return true, nil
	}
	bk, ok := req.Workspace.GetBucket(rule.BucketID)
	if !ok {
		return false, nil
	}
	identifier, ok := req.User.Identifier(req.Parameter.IdentifierType)
	if !ok {
		return false, nil
	}
	_, ok = h.bucketer.Bucketing(bk, identifier)
	return ok, nil
}

// typedResolved applies the type-mismatch degradation before finalizing.
func (h *RemoteConfigHandler) typedResolved(req evaluator.Request, ctx *evaluator.Context, value workspace.RemoteConfigValue, reason string, properties map[string]any) evaluator.Evaluation {
	if !sameValueKind(value.RawValue, req.DefaultValue) {
		return h.resolved(req, ctx, 0, req.DefaultValue, evaluator.ReasonTypeMismatch, properties)
	}
	return h.resolved(req, ctx, value.ID, value.RawValue, reason, properties)
}

func (h *RemoteConfigHandler) resolved(req evaluator.Request, ctx *evaluator.Context, valueID int64, value any, reason string, properties map[string]any) evaluator.Evaluation {
	properties["returnValue"] = value
	return evaluator.Evaluation{
		Kind:              evaluator.KindRemoteConfig,
		Reason:            reason,
		EntityID:          req.Parameter.ID,
		ParameterKey:      req.Parameter.Key,
		ValueID:           valueID,
		Value:             value,
		Properties:        properties,
		TargetEvaluations: ctx.Evaluations(),
	}
}

// sameValueKind reports whether two values have the same remote config value
// kind (string, number or bool). A nil caller default accepts any kind.
func sameValueKind(resolved, requested any) bool {
	if requested == nil {
		return true
	}
	return valueKind(resolved) == valueKind(requested)
}

func valueKind(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int32, int64, float32, float64:
		return "number"
	default:
		return "unknown"
	}
}
