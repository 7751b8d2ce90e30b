// Package evaluator defines the core request/evaluation types shared by all
// decision flows, the per-call evaluation context, and the delegating
// evaluator that routes a request to the flow registered for its kind.
package evaluator

import (
	"fmt"
	"time"

	"github.com/TimurManjosov/flagship-go-sdk/internal/user"
	"github.com/TimurManjosov/flagship-go-sdk/internal/workspace"
)

// Kind tags the decision type of a request or evaluation.
type Kind string

const (
	KindExperiment   Kind = "EXPERIMENT"
	KindFeatureFlag  Kind = "FEATURE_FLAG"
	KindRemoteConfig Kind = "REMOTE_CONFIG"
	KindInAppMessage Kind = "IN_APP_MESSAGE"
)

// Request is a tagged union over the decision kinds. Exactly one of
// Experiment, Parameter or Message is set, matching Kind.
type Request struct {
	Kind      Kind
	Workspace workspace.Workspace
	User      user.User
	Timestamp time.Time

	// Experiment is set for KindExperiment and KindFeatureFlag.
	Experiment *workspace.Experiment
	// DefaultVariationKey is the variation returned when evaluation cannot
	// allocate (experiments and feature flags).
	DefaultVariationKey string

	// Parameter and DefaultValue are set for KindRemoteConfig.
	Parameter    *workspace.RemoteConfigParameter
	DefaultValue any

	// Message is set for KindInAppMessage. Platform identifies the host
	// platform; SkipAudience skips the audience re-check on deliver-time
	// re-evaluation. TriggerEvent is the tracked event key that prompted the
	// evaluation, empty when the caller evaluates directly.
	Message      *workspace.InAppMessage
	Platform     string
	SkipAudience bool
	TriggerEvent string
}

// EntityID returns the workspace id of the requested entity.
func (r Request) EntityID() int64 {
	switch r.Kind {
	case KindExperiment, KindFeatureFlag:
		return r.Experiment.ID
	case KindRemoteConfig:
		return r.Parameter.ID
	case KindInAppMessage:
		return r.Message.ID
	}
	return 0
}

// Evaluation is the outcome of one request. Fields are populated per Kind:
// variation fields for experiments and flags, value fields for remote config,
// eligibility fields for in-app messages.
type Evaluation struct {
	Kind     Kind
	Reason   string
	EntityID int64

	// ExperimentKey is set for experiment and feature-flag evaluations;
	// ParameterKey for remote config.
	ExperimentKey int64
	ParameterKey  string

	VariationID       int64
	VariationKey      string
	ParameterConfigID int64

	ValueID    int64
	Value      any
	Properties map[string]any

	Eligible  bool
	LayoutKey string

	// TargetEvaluations are the sub-decisions consulted while resolving this
	// one; recorded for telemetry only.
	TargetEvaluations []Evaluation
}

type entityRef struct {
	kind Kind
	id   int64
}

// Context is the per-top-level-call scratch state: a memo of completed
// sub-evaluations, the stack of in-flight entities for cycle detection, and
// the accumulated target evaluations. It is created at call start, discarded
// at call end and never shared between calls.
type Context struct {
	stack       []entityRef
	memo        map[entityRef]Evaluation
	evaluations []Evaluation
}

// NewContext returns an empty evaluation context.
func NewContext() *Context {
	return &Context{memo: make(map[entityRef]Evaluation)}
}

func (c *Context) contains(ref entityRef) bool {
	for _, r := range c.stack {
		if r == ref {
			return true
		}
	}
	return false
}

func (c *Context) push(ref entityRef) { c.stack = append(c.stack, ref) }

func (c *Context) pop() { c.stack = c.stack[:len(c.stack)-1] }

// Cached returns the memoized evaluation of the given entity within this call.
func (c *Context) Cached(kind Kind, id int64) (Evaluation, bool) {
	e, ok := c.memo[entityRef{kind: kind, id: id}]
	return e, ok
}

// AddEvaluation records a sub-evaluation for telemetry attribution and
// memoizes it for repeated lookups within the same call.
func (c *Context) AddEvaluation(e Evaluation) {
	ref := entityRef{kind: e.Kind, id: e.EntityID}
	if _, ok := c.memo[ref]; ok {
		return
	}
	c.memo[ref] = e
	c.evaluations = append(c.evaluations, e)
}

// Evaluations returns the sub-evaluations recorded so far.
func (c *Context) Evaluations() []Evaluation {
	return c.evaluations
}

// Evaluator evaluates one request within a call context.
type Evaluator interface {
	Evaluate(req Request, ctx *Context) (Evaluation, error)
}

// Handler is one kind-specific evaluator registered with the delegating
// evaluator.
type Handler interface {
	Supports(kind Kind) bool
	Evaluator
}

// Delegating routes each request to the handler for its kind and guards
// against circular references: an entity that directly or indirectly depends
// on evaluating itself fails fast instead of recursing unboundedly.
type Delegating struct {
	handlers []Handler
}

// NewDelegating returns a delegating evaluator with no handlers registered.
func NewDelegating() *Delegating {
	return &Delegating{}
}

// Register adds a handler. Handlers are consulted in registration order.
func (d *Delegating) Register(h Handler) {
	d.handlers = append(d.handlers, h)
}

// Evaluate routes the request to its handler. Sub-evaluations of the same
// entity within one call are served from the context memo.
func (d *Delegating) Evaluate(req Request, ctx *Context) (Evaluation, error) {
	ref := entityRef{kind: req.Kind, id: req.EntityID()}
	if ctx.contains(ref) {
		return Evaluation{}, fmt.Errorf("%w: %s %d", ErrCircularReference, req.Kind, req.EntityID())
	}
	if cached, ok := ctx.Cached(req.Kind, req.EntityID()); ok {
		return cached, nil
	}

	for _, h := range d.handlers {
		if !h.Supports(req.Kind) {
			continue
		}
		ctx.push(ref)
		evaluation, err := h.Evaluate(req, ctx)
		ctx.pop()
		return evaluation, err
	}
	return Evaluation{}, fmt.Errorf("no evaluator registered for kind %s", req.Kind)
}
