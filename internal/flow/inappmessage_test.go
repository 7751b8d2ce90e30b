package flow

import (
	"testing"
	"time"

	"github.com/TimurManjosov/flagship-go-sdk/internal/evaluator"
	"github.com/TimurManjosov/flagship-go-sdk/internal/match"
	"github.com/TimurManjosov/flagship-go-sdk/internal/user"
	"github.com/TimurManjosov/flagship-go-sdk/internal/workspace"
)

type fakeHistory struct {
	impressions int
	hidden      bool
}

func (f fakeHistory) ImpressionCount(int64, time.Time) (int, error) { return f.impressions, nil }
func (f fakeHistory) IsHidden(int64, time.Time) (bool, error)       { return f.hidden, nil }

func newMessageHandler(history MessageHistory) *MessageHandler {
	return NewMessageHandler(match.NewTargetMatcher(match.NewConditionMatcher()), history)
}

func activeMessage() workspace.InAppMessage {
	return workspace.InAppMessage{
		ID:        1,
		Key:       1,
		Status:    workspace.MessageStatusActive,
		Platforms: []string{"ANDROID", "IOS"},
		LayoutKey: "modal",
	}
}

func messageRequest(m workspace.InAppMessage, userID string) evaluator.Request {
	identifiers := map[string]string{}
	if userID != "" {
		identifiers[user.IdentifierTypeID] = userID
	}
	return evaluator.Request{
		Kind:      evaluator.KindInAppMessage,
		Workspace: workspace.NewBuilder().Build(),
		User:      user.User{Identifiers: identifiers},
		Message:   &m,
		Platform:  "ANDROID",
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMessageEligibility(t *testing.T) {
	h := newMessageHandler(nil)

	t.Run("eligible message carries layout", func(t *testing.T) {
		got, err := h.Evaluate(messageRequest(activeMessage(), "u1"), evaluator.NewContext())
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if !got.Eligible {
			t.Error("Expected eligible message")
		}
		if got.Reason != evaluator.ReasonMessageTarget {
			t.Errorf("Expected reason IN_APP_MESSAGE_TARGET, got %s", got.Reason)
		}
		if got.LayoutKey != "modal" {
			t.Errorf("Expected layout modal, got %s", got.LayoutKey)
		}
	})

	tests := []struct {
		name       string
		mutate     func(m *workspace.InAppMessage, req *evaluator.Request)
		wantReason string
	}{
		{
			name: "unsupported platform",
			mutate: func(m *workspace.InAppMessage, req *evaluator.Request) {
				req.Platform = "WEB"
			},
			wantReason: evaluator.ReasonUnsupportedPlatform,
		},
		{
			name: "draft",
			mutate: func(m *workspace.InAppMessage, req *evaluator.Request) {
				m.Status = workspace.MessageStatusDraft
			},
			wantReason: evaluator.ReasonMessageDraft,
		},
		{
			name: "paused",
			mutate: func(m *workspace.InAppMessage, req *evaluator.Request) {
				m.Status = workspace.MessageStatusPaused
			},
			wantReason: evaluator.ReasonMessagePaused,
		},
		{
			name: "outside display period",
			mutate: func(m *workspace.InAppMessage, req *evaluator.Request) {
				m.Period = workspace.Period{
					Within: true,
					Start:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
					End:    time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
				}
			},
			wantReason: evaluator.ReasonNotInMessagePeriod,
		},
		{
			name: "out of audience",
			mutate: func(m *workspace.InAppMessage, req *evaluator.Request) {
				m.Targets = []workspace.Target{{Conditions: []workspace.Condition{{
					Key: workspace.ConditionKey{Type: workspace.KeyTypeUserProperty, Name: "plan"},
					Match: workspace.Match{
						Type:      workspace.MatchTypeMatch,
						Operator:  workspace.OpIn,
						ValueType: workspace.ValueTypeString,
						Values:    []any{"pro"},
					},
				}}}}
			},
			wantReason: evaluator.ReasonNotInMessageTarget,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := activeMessage()
			req := messageRequest(m, "u1")
			tt.mutate(&m, &req)
			req.Message = &m
			got, err := h.Evaluate(req, evaluator.NewContext())
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got.Eligible {
				t.Error("Expected ineligible message")
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Expected reason %s, got %s", tt.wantReason, got.Reason)
			}
			if got.LayoutKey != "" {
				t.Errorf("Expected no layout on ineligible message, got %s", got.LayoutKey)
			}
		})
	}
}

func TestMessageOverride(t *testing.T) {
	h := newMessageHandler(nil)

	t.Run("override user is eligible before status checks", func(t *testing.T) {
		m := activeMessage()
		m.Status = workspace.MessageStatusDraft
		m.OverrideUserIDs = []string{"u1"}
		got, err := h.Evaluate(messageRequest(m, "u1"), evaluator.NewContext())
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if !got.Eligible || got.Reason != evaluator.ReasonOverridden {
			t.Errorf("Expected eligible OVERRIDDEN, got (%v, %s)", got.Eligible, got.Reason)
		}
	})

	t.Run("override does not bypass platform check", func(t *testing.T) {
		m := activeMessage()
		m.OverrideUserIDs = []string{"u1"}
		req := messageRequest(m, "u1")
		req.Platform = "WEB"
		got, err := h.Evaluate(req, evaluator.NewContext())
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if got.Eligible || got.Reason != evaluator.ReasonUnsupportedPlatform {
			t.Errorf("Expected ineligible UNSUPPORTED_PLATFORM, got (%v, %s)", got.Eligible, got.Reason)
		}
	})
}

func TestMessageEventTrigger(t *testing.T) {
	h := newMessageHandler(nil)
	m := activeMessage()
	m.EventTriggers = []workspace.EventTrigger{{EventKey: "purchase"}}

	t.Run("direct evaluation of a triggered message is ineligible", func(t *testing.T) {
		got, err := h.Evaluate(messageRequest(m, "u1"), evaluator.NewContext())
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if got.Eligible || got.Reason != evaluator.ReasonNotInMessageTrigger {
			t.Errorf("Expected ineligible NOT_IN_IN_APP_MESSAGE_TRIGGER, got (%v, %s)", got.Eligible, got.Reason)
		}
	})

	t.Run("matching tracked event fires the trigger", func(t *testing.T) {
		req := messageRequest(m, "u1")
		req.TriggerEvent = "purchase"
		got, err := h.Evaluate(req, evaluator.NewContext())
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if !got.Eligible {
			t.Errorf("Expected eligible on trigger match, got %s", got.Reason)
		}
	})

	t.Run("non-matching tracked event does not fire", func(t *testing.T) {
		req := messageRequest(m, "u1")
		req.TriggerEvent = "signup"
		got, err := h.Evaluate(req, evaluator.NewContext())
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if got.Eligible || got.Reason != evaluator.ReasonNotInMessageTrigger {
			t.Errorf("Expected ineligible NOT_IN_IN_APP_MESSAGE_TRIGGER, got (%v, %s)", got.Eligible, got.Reason)
		}
	})

	t.Run("trigger targets restrict qualifying occurrences", func(t *testing.T) {
		restricted := activeMessage()
		restricted.EventTriggers = []workspace.EventTrigger{{
			EventKey: "purchase",
			Targets: []workspace.Target{{Conditions: []workspace.Condition{{
				Key: workspace.ConditionKey{Type: workspace.KeyTypeUserProperty, Name: "plan"},
				Match: workspace.Match{
					Type:      workspace.MatchTypeMatch,
					Operator:  workspace.OpIn,
					ValueType: workspace.ValueTypeString,
					Values:    []any{"pro"},
				},
			}}}},
		}}
		req := messageRequest(restricted, "u1")
		req.TriggerEvent = "purchase"
		got, err := h.Evaluate(req, evaluator.NewContext())
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if got.Eligible || got.Reason != evaluator.ReasonNotInMessageTrigger {
			t.Errorf("Expected ineligible NOT_IN_IN_APP_MESSAGE_TRIGGER, got (%v, %s)", got.Eligible, got.Reason)
		}
	})
}

func TestMessageTimetable(t *testing.T) {
	h := newMessageHandler(nil)

	// The request timestamp is Sunday 2025-06-01 12:00 UTC, minute 720.
	tests := []struct {
		name     string
		slots    []workspace.TimetableSlot
		eligible bool
	}{
		{"empty timetable never gates", nil, true},
		{"inside window", []workspace.TimetableSlot{
			{DaysOfWeek: []string{"SUNDAY"}, StartMinuteOfDay: 600, EndMinuteOfDay: 780},
		}, true},
		{"wrong weekday", []workspace.TimetableSlot{
			{DaysOfWeek: []string{"MONDAY"}, StartMinuteOfDay: 600, EndMinuteOfDay: 780},
		}, false},
		{"outside minute range", []workspace.TimetableSlot{
			{DaysOfWeek: []string{"SUNDAY"}, StartMinuteOfDay: 800, EndMinuteOfDay: 900},
		}, false},
		{"second slot matches", []workspace.TimetableSlot{
			{DaysOfWeek: []string{"MONDAY"}, StartMinuteOfDay: 600, EndMinuteOfDay: 780},
			{DaysOfWeek: []string{"SATURDAY", "SUNDAY"}, StartMinuteOfDay: 700, EndMinuteOfDay: 730},
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := activeMessage()
			m.Timetable = tt.slots
			got, err := h.Evaluate(messageRequest(m, "u1"), evaluator.NewContext())
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got.Eligible != tt.eligible {
				t.Errorf("Expected eligible=%v, got (%v, %s)", tt.eligible, got.Eligible, got.Reason)
			}
			if !tt.eligible && got.Reason != evaluator.ReasonNotInMessageTimetable {
				t.Errorf("Expected reason NOT_IN_IN_APP_MESSAGE_TIMETABLE, got %s", got.Reason)
			}
		})
	}
}

func TestMessageFrequencyCap(t *testing.T) {
	m := activeMessage()
	m.FrequencyCap = workspace.FrequencyCap{Count: 3, DurationMillis: 86400000}

	tests := []struct {
		name        string
		impressions int
		wantReason  string
		eligible    bool
	}{
		{"under cap", 2, evaluator.ReasonMessageTarget, true},
		{"at cap", 3, evaluator.ReasonMessageFrequencyCap, false},
		{"over cap", 5, evaluator.ReasonMessageFrequencyCap, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newMessageHandler(fakeHistory{impressions: tt.impressions})
			got, err := h.Evaluate(messageRequest(m, "u1"), evaluator.NewContext())
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got.Eligible != tt.eligible || got.Reason != tt.wantReason {
				t.Errorf("Expected (%v, %s), got (%v, %s)",
					tt.eligible, tt.wantReason, got.Eligible, got.Reason)
			}
		})
	}

	t.Run("zero count disables the cap", func(t *testing.T) {
		uncapped := activeMessage()
		h := newMessageHandler(fakeHistory{impressions: 100})
		got, err := h.Evaluate(messageRequest(uncapped, "u1"), evaluator.NewContext())
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if !got.Eligible {
			t.Errorf("Expected eligible without a cap, got %s", got.Reason)
		}
	})
}

func TestMessageHidden(t *testing.T) {
	h := newMessageHandler(fakeHistory{hidden: true})
	got, err := h.Evaluate(messageRequest(activeMessage(), "u1"), evaluator.NewContext())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got.Eligible || got.Reason != evaluator.ReasonMessageHidden {
		t.Errorf("Expected ineligible IN_APP_MESSAGE_HIDDEN, got (%v, %s)", got.Eligible, got.Reason)
	}
}

func TestMessageSkipAudience(t *testing.T) {
	h := newMessageHandler(nil)
	m := activeMessage()
	m.Targets = []workspace.Target{{Conditions: []workspace.Condition{{
		Key: workspace.ConditionKey{Type: workspace.KeyTypeUserProperty, Name: "plan"},
		Match: workspace.Match{
			Type:      workspace.MatchTypeMatch,
			Operator:  workspace.OpIn,
			ValueType: workspace.ValueTypeString,
			Values:    []any{"pro"},
		},
	}}}}

	req := messageRequest(m, "u1")
	req.SkipAudience = true
	got, err := h.Evaluate(req, evaluator.NewContext())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !got.Eligible {
		t.Errorf("Expected audience re-check skipped, got %s", got.Reason)
	}
}
