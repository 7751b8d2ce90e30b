package event

import (
	"time"

	"github.com/TimurManjosov/flagship-go-sdk/internal/evaluator"
	"github.com/TimurManjosov/flagship-go-sdk/internal/user"
	"github.com/TimurManjosov/flagship-go-sdk/internal/workspace"
	"github.com/google/uuid"
)

// Properties attached to events so server-side analytics can attribute
// sub-decisions to the triggering decision.
const (
	propParameterConfigID = "$parameterConfigurationId"
	propTargetingRootType = "$targetingRootType"
	propTargetingRootID   = "$targetingRootId"
)

// Factory converts evaluations into user events: one root event for the
// primary decision plus one event per nested target evaluation.
type Factory struct {
	now func() time.Time
}

// NewFactory returns an event factory using the given clock. A nil clock
// defaults to time.Now.
func NewFactory(now func() time.Time) *Factory {
	if now == nil {
		now = time.Now
	}
	return &Factory{now: now}
}

// Create builds the events for one top-level evaluation.
func (f *Factory) Create(req evaluator.Request, evaluation evaluator.Evaluation) []UserEvent {
	ts := req.Timestamp
	if ts.IsZero() {
		ts = f.now()
	}

	events := make([]UserEvent, 0, 1+len(evaluation.TargetEvaluations))
	if root, ok := f.decisionEvent(req.User, ts, evaluation, nil); ok {
		events = append(events, root)
	}
	rootProps := map[string]any{
		propTargetingRootType: string(evaluation.Kind),
		propTargetingRootID:   evaluation.EntityID,
	}
	for _, nested := range evaluation.TargetEvaluations {
		if e, ok := f.decisionEvent(req.User, ts, nested, rootProps); ok {
			events = append(events, e)
		}
	}
	return events
}

// decisionEvent maps one evaluation to its event. In-app message evaluations
// produce no decision event; impressions are recorded by the presenting
// layer.
func (f *Factory) decisionEvent(u user.User, ts time.Time, evaluation evaluator.Evaluation, extra map[string]any) (UserEvent, bool) {
	switch evaluation.Kind {
	case evaluator.KindExperiment, evaluator.KindFeatureFlag:
		properties := make(map[string]any, len(extra)+1)
		for k, v := range extra {
			properties[k] = v
		}
		if evaluation.ParameterConfigID != 0 {
			properties[propParameterConfigID] = evaluation.ParameterConfigID
		}
		return Exposure{
			base:          f.newBase(u, ts),
			ExperimentID:  evaluation.EntityID,
			ExperimentKey: evaluation.ExperimentKey,
			VariationID:   evaluation.VariationID,
			VariationKey:  evaluation.VariationKey,
			Reason:        evaluation.Reason,
			Properties:    properties,
		}, true

	case evaluator.KindRemoteConfig:
		properties := make(map[string]any, len(extra)+len(evaluation.Properties))
		for k, v := range evaluation.Properties {
			properties[k] = v
		}
		for k, v := range extra {
			properties[k] = v
		}
		return RemoteConfig{
			base:         f.newBase(u, ts),
			ParameterID:  evaluation.EntityID,
			ParameterKey: evaluation.ParameterKey,
			ValueID:      evaluation.ValueID,
			Reason:       evaluation.Reason,
			Properties:   properties,
		}, true

	default:
		return nil, false
	}
}

// CreateTrack builds one track event. A zero event type means the key is not
// registered in the workspace; the event is still recorded with id 0.
func (f *Factory) CreateTrack(u user.User, ts time.Time, eventType workspace.EventType, key string, value float64, properties map[string]any) Track {
	if ts.IsZero() {
		ts = f.now()
	}
	return Track{
		base:        f.newBase(u, ts),
		EventTypeID: eventType.ID,
		EventKey:    key,
		Value:       value,
		Properties:  properties,
	}
}

func (f *Factory) newBase(u user.User, ts time.Time) base {
	return base{insertID: uuid.NewString(), timestamp: ts, user: u}
}
