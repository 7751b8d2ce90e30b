// Package flow implements the chained rule-evaluation pipelines: ordered,
// short-circuiting step chains per decision kind, plus the remote config and
// in-app message evaluators. A step either decides a final evaluation or
// passes to the next step; once a step decides, the chain stops.
package flow

import (
	"github.com/TimurManjosov/flagship-go-sdk/internal/evaluator"
	"github.com/TimurManjosov/flagship-go-sdk/internal/workspace"
)

// Step is one named evaluator in a flow. Evaluate returns (evaluation, true)
// to decide and stop the chain, or false to pass to the next step.
type Step interface {
	Name() string
	Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, bool, error)
}

// Terminal produces the evaluation when every step has passed.
type Terminal func(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, error)

// Flow is an immutable ordered step chain with a terminal default.
type Flow struct {
	steps    []Step
	terminal Terminal
}

// NewFlow builds a flow from ordered steps and a terminal default.
func NewFlow(terminal Terminal, steps ...Step) Flow {
	return Flow{steps: steps, terminal: terminal}
}

// Evaluate runs the chain. The flow itself is stateless; all per-call state
// lives in the context.
func (f Flow) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, error) {
	for _, step := range f.steps {
		evaluation, decided, err := step.Evaluate(req, ctx)
		if err != nil {
			return evaluator.Evaluation{}, err
		}
		if decided {
			return evaluation, nil
		}
	}
	return f.terminal(req, ctx)
}

// variationEvaluation builds a final evaluation for an allocated variation,
// attaching the context's accumulated target evaluations.
func variationEvaluation(req evaluator.Request, ctx *evaluator.Context, v workspace.Variation, reason string) evaluator.Evaluation {
	return evaluator.Evaluation{
		Kind:              req.Kind,
		Reason:            reason,
		EntityID:          req.Experiment.ID,
		ExperimentKey:     req.Experiment.Key,
		VariationID:       v.ID,
		VariationKey:      v.Key,
		ParameterConfigID: v.ParameterConfigurationID,
		TargetEvaluations: ctx.Evaluations(),
	}
}

// defaultEvaluation builds a final evaluation for the request's default
// variation key. The default key may not exist as a variation, in which case
// only the key is carried.
func defaultEvaluation(req evaluator.Request, ctx *evaluator.Context, reason string) evaluator.Evaluation {
	if v, ok := req.Experiment.VariationByKey(req.DefaultVariationKey); ok {
		return variationEvaluation(req, ctx, v, reason)
	}
	return evaluator.Evaluation{
		Kind:              req.Kind,
		Reason:            reason,
		EntityID:          req.Experiment.ID,
		ExperimentKey:     req.Experiment.Key,
		VariationKey:      req.DefaultVariationKey,
		TargetEvaluations: ctx.Evaluations(),
	}
}
