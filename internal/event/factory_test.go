package event

import (
	"testing"
	"time"

	"github.com/TimurManjosov/flagship-go-sdk/internal/evaluator"
	"github.com/TimurManjosov/flagship-go-sdk/internal/user"
	"github.com/TimurManjosov/flagship-go-sdk/internal/workspace"
)

func TestFactoryCreateExposure(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := NewFactory(func() time.Time { return ts })
	u := user.User{Identifiers: map[string]string{user.IdentifierTypeID: "u1"}}

	evaluation := evaluator.Evaluation{
		Kind:              evaluator.KindExperiment,
		Reason:            evaluator.ReasonTrafficAllocated,
		EntityID:          1,
		ExperimentKey:     42,
		VariationID:       10,
		VariationKey:      "B",
		ParameterConfigID: 7,
	}
	events := f.Create(evaluator.Request{Kind: evaluator.KindExperiment, User: u}, evaluation)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}

	exposure, ok := events[0].(Exposure)
	if !ok {
		t.Fatalf("Expected Exposure, got %T", events[0])
	}
	if exposure.ExperimentID != 1 || exposure.ExperimentKey != 42 {
		t.Errorf("Expected experiment 1/42, got %d/%d", exposure.ExperimentID, exposure.ExperimentKey)
	}
	if exposure.VariationID != 10 || exposure.VariationKey != "B" {
		t.Errorf("Expected variation 10/B, got %d/%s", exposure.VariationID, exposure.VariationKey)
	}
	if exposure.Reason != evaluator.ReasonTrafficAllocated {
		t.Errorf("Expected reason TRAFFIC_ALLOCATED, got %s", exposure.Reason)
	}
	if exposure.Properties[propParameterConfigID] != int64(7) {
		t.Errorf("Expected parameter configuration property, got %v", exposure.Properties)
	}
	if exposure.InsertID() == "" {
		t.Error("Expected a generated insert id")
	}
	if !exposure.Timestamp().Equal(ts) {
		t.Errorf("Expected clock timestamp %v, got %v", ts, exposure.Timestamp())
	}
}

func TestFactoryCreateRemoteConfig(t *testing.T) {
	f := NewFactory(nil)
	u := user.User{Identifiers: map[string]string{user.IdentifierTypeID: "u1"}}

	evaluation := evaluator.Evaluation{
		Kind:         evaluator.KindRemoteConfig,
		Reason:       evaluator.ReasonTargetRuleMatch,
		EntityID:     3,
		ParameterKey: "greeting",
		ValueID:      101,
		Properties:   map[string]any{"returnValue": "hallo"},
	}
	events := f.Create(evaluator.Request{Kind: evaluator.KindRemoteConfig, User: u}, evaluation)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}

	rc, ok := events[0].(RemoteConfig)
	if !ok {
		t.Fatalf("Expected RemoteConfig, got %T", events[0])
	}
	if rc.ParameterID != 3 || rc.ParameterKey != "greeting" || rc.ValueID != 101 {
		t.Errorf("Expected parameter 3/greeting/101, got %d/%s/%d", rc.ParameterID, rc.ParameterKey, rc.ValueID)
	}
	if rc.Properties["returnValue"] != "hallo" {
		t.Errorf("Expected decision properties carried over, got %v", rc.Properties)
	}
}

func TestFactoryNestedEvaluations(t *testing.T) {
	f := NewFactory(nil)
	u := user.User{Identifiers: map[string]string{user.IdentifierTypeID: "u1"}}

	evaluation := evaluator.Evaluation{
		Kind:         evaluator.KindExperiment,
		Reason:       evaluator.ReasonTrafficAllocated,
		EntityID:     1,
		VariationKey: "B",
		TargetEvaluations: []evaluator.Evaluation{{
			Kind:         evaluator.KindFeatureFlag,
			Reason:       evaluator.ReasonDefaultRule,
			EntityID:     5,
			VariationKey: "A",
		}},
	}
	events := f.Create(evaluator.Request{Kind: evaluator.KindExperiment, User: u}, evaluation)
	if len(events) != 2 {
		t.Fatalf("Expected root plus nested event, got %d", len(events))
	}

	nested, ok := events[1].(Exposure)
	if !ok {
		t.Fatalf("Expected nested Exposure, got %T", events[1])
	}
	if nested.Properties[propTargetingRootType] != string(evaluator.KindExperiment) {
		t.Errorf("Expected targeting root type, got %v", nested.Properties[propTargetingRootType])
	}
	if nested.Properties[propTargetingRootID] != int64(1) {
		t.Errorf("Expected targeting root id 1, got %v", nested.Properties[propTargetingRootID])
	}
}

func TestFactoryMessageEvaluationsProduceNoEvents(t *testing.T) {
	f := NewFactory(nil)
	evaluation := evaluator.Evaluation{
		Kind:     evaluator.KindInAppMessage,
		Reason:   evaluator.ReasonMessageTarget,
		EntityID: 9,
		Eligible: true,
	}
	events := f.Create(evaluator.Request{Kind: evaluator.KindInAppMessage}, evaluation)
	if len(events) != 0 {
		t.Errorf("Expected no events for message evaluations, got %d", len(events))
	}
}

func TestFactoryCreateTrack(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := NewFactory(func() time.Time { return ts })
	u := user.User{Identifiers: map[string]string{user.IdentifierTypeID: "u1"}}

	track := f.CreateTrack(u, time.Time{}, workspace.EventType{ID: 4, Key: "purchase"},
		"purchase", 19.99, map[string]any{"sku": "a-1"})
	if track.EventTypeID != 4 || track.EventKey != "purchase" {
		t.Errorf("Expected event type 4/purchase, got %d/%s", track.EventTypeID, track.EventKey)
	}
	if track.Value != 19.99 {
		t.Errorf("Expected value 19.99, got %v", track.Value)
	}
	if !track.Timestamp().Equal(ts) {
		t.Errorf("Expected clock timestamp for zero input, got %v", track.Timestamp())
	}
	if _, dedupable := track.DedupKey(); dedupable {
		t.Error("Expected track events to be non-dedupable")
	}
}
