package evaluator

import (
	"errors"
	"testing"

	"github.com/TimurManjosov/flagship-go-sdk/internal/workspace"
)

// recordingHandler counts evaluations and optionally recurses through the
// delegating evaluator to exercise memoization and cycle detection.
type recordingHandler struct {
	kind     Kind
	calls    int
	evaluate func(req Request, ctx *Context) (Evaluation, error)
}

func (h *recordingHandler) Supports(kind Kind) bool { return kind == h.kind }

func (h *recordingHandler) Evaluate(req Request, ctx *Context) (Evaluation, error) {
	h.calls++
	if h.evaluate != nil {
		return h.evaluate(req, ctx)
	}
	return Evaluation{Kind: req.Kind, EntityID: req.EntityID(), Reason: ReasonDefaultRule}, nil
}

func experimentRequest(id int64) Request {
	return Request{
		Kind:       KindExperiment,
		Experiment: &workspace.Experiment{ID: id, Key: id},
	}
}

func TestDelegatingRouting(t *testing.T) {
	experiments := &recordingHandler{kind: KindExperiment}
	flags := &recordingHandler{kind: KindFeatureFlag}
	d := NewDelegating()
	d.Register(experiments)
	d.Register(flags)

	got, err := d.Evaluate(experimentRequest(1), NewContext())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got.Kind != KindExperiment || got.EntityID != 1 {
		t.Errorf("Expected experiment evaluation for entity 1, got %+v", got)
	}
	if experiments.calls != 1 || flags.calls != 0 {
		t.Errorf("Expected only the experiment handler to run, got (%d, %d)",
			experiments.calls, flags.calls)
	}
}

func TestDelegatingNoHandler(t *testing.T) {
	d := NewDelegating()
	if _, err := d.Evaluate(experimentRequest(1), NewContext()); err == nil {
		t.Error("Expected error when no handler is registered")
	}
}

func TestDelegatingMemoization(t *testing.T) {
	h := &recordingHandler{kind: KindExperiment}
	d := NewDelegating()
	d.Register(h)

	ctx := NewContext()
	first, err := d.Evaluate(experimentRequest(1), ctx)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	ctx.AddEvaluation(first)

	second, err := d.Evaluate(experimentRequest(1), ctx)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if h.calls != 1 {
		t.Errorf("Expected memoized second evaluation, handler ran %d times", h.calls)
	}
	if second.EntityID != first.EntityID || second.Reason != first.Reason {
		t.Errorf("Expected cached evaluation %+v, got %+v", first, second)
	}

	// A fresh context starts with an empty memo.
	if _, err := d.Evaluate(experimentRequest(1), NewContext()); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if h.calls != 2 {
		t.Errorf("Expected re-evaluation in a new context, handler ran %d times", h.calls)
	}
}

func TestDelegatingCycleDetection(t *testing.T) {
	d := NewDelegating()
	selfReferencing := &recordingHandler{kind: KindExperiment}
	selfReferencing.evaluate = func(req Request, ctx *Context) (Evaluation, error) {
		// Entity 1 depends on entity 2, which depends back on entity 1.
		next := int64(2)
		if req.EntityID() == 2 {
			next = 1
		}
		return d.Evaluate(experimentRequest(next), ctx)
	}
	d.Register(selfReferencing)

	_, err := d.Evaluate(experimentRequest(1), NewContext())
	if !errors.Is(err, ErrCircularReference) {
		t.Errorf("Expected ErrCircularReference, got %v", err)
	}
}

func TestContextEvaluations(t *testing.T) {
	ctx := NewContext()
	ctx.AddEvaluation(Evaluation{Kind: KindExperiment, EntityID: 1, VariationKey: "A"})
	ctx.AddEvaluation(Evaluation{Kind: KindExperiment, EntityID: 1, VariationKey: "B"})
	ctx.AddEvaluation(Evaluation{Kind: KindFeatureFlag, EntityID: 1})

	got := ctx.Evaluations()
	if len(got) != 2 {
		t.Fatalf("Expected 2 recorded evaluations, got %d", len(got))
	}
	if got[0].VariationKey != "A" {
		t.Errorf("Expected first recording to win, got %s", got[0].VariationKey)
	}

	cached, ok := ctx.Cached(KindExperiment, 1)
	if !ok || cached.VariationKey != "A" {
		t.Errorf("Expected cached evaluation A, got (%+v, %v)", cached, ok)
	}
	if _, ok := ctx.Cached(KindRemoteConfig, 1); ok {
		t.Error("Expected no cached remote config evaluation")
	}
}
