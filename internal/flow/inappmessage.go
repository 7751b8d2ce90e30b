package flow

import (
	"time"

	"github.com/TimurManjosov/flagship-go-sdk/internal/evaluator"
	"github.com/TimurManjosov/flagship-go-sdk/internal/match"
	"github.com/TimurManjosov/flagship-go-sdk/internal/user"
	"github.com/TimurManjosov/flagship-go-sdk/internal/workspace"
)

// MessageHistory exposes the per-user impression record consulted by the
// frequency-cap and hidden-suppression steps.
type MessageHistory interface {
	// ImpressionCount returns how many times the message was shown to the
	// current user since the given instant.
	ImpressionCount(messageID int64, since time.Time) (int, error)

	// IsHidden reports whether the user has dismissed the message into a
	// hide window that is still open at now.
	IsHidden(messageID int64, now time.Time) (bool, error)
}

// noHistory is the default history when none is configured: nothing is
// capped, nothing is hidden.
type noHistory struct{}

func (noHistory) ImpressionCount(int64, time.Time) (int, error) { return 0, nil }
func (noHistory) IsHidden(int64, time.Time) (bool, error)       { return false, nil }

// MessageHandler evaluates in-app message eligibility through a step chain
// structurally identical to the experiment flows. Deliver-time re-evaluation
// (SkipAudience) skips the audience re-check and reuses the resolved layout.
type MessageHandler struct {
	flow Flow
}

// NewMessageHandler wires the eligibility flow. A nil history disables
// frequency capping and hidden suppression.
func NewMessageHandler(matcher match.TargetMatcher, history MessageHistory) *MessageHandler {
	if history == nil {
		history = noHistory{}
	}
	eligibility := NewFlow(
		func(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, error) {
			return messageEvaluation(req, ctx, true, evaluator.ReasonMessageTarget), nil
		},
		platformStep{},
		messageOverrideStep{},
		messageDraftStep{},
		messagePausedStep{},
		periodStep{},
		triggerTimetableStep{matcher: matcher},
		messageAudienceStep{matcher: matcher},
		frequencyCapStep{history: history},
		hiddenStep{history: history},
	)
	return &MessageHandler{flow: eligibility}
}

// Supports reports the kinds this handler evaluates.
func (h *MessageHandler) Supports(kind evaluator.Kind) bool {
	return kind == evaluator.KindInAppMessage
}

// Evaluate runs the eligibility chain.
func (h *MessageHandler) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, error) {
	return h.flow.Evaluate(req, ctx)
}

func messageEvaluation(req evaluator.Request, ctx *evaluator.Context, eligible bool, reason string) evaluator.Evaluation {
	e := evaluator.Evaluation{
		Kind:              evaluator.KindInAppMessage,
		Reason:            reason,
		EntityID:          req.Message.ID,
		Eligible:          eligible,
		TargetEvaluations: ctx.Evaluations(),
	}
	if eligible {
		e.LayoutKey = req.Message.LayoutKey
	}
	return e
}

type platformStep struct{}

func (platformStep) Name() string { return "platform" }

func (platformStep) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, bool, error) {
	if !req.Message.SupportsPlatform(req.Platform) {
		return messageEvaluation(req, ctx, false, evaluator.ReasonUnsupportedPlatform), true, nil
	}
	return evaluator.Evaluation{}, false, nil
}

type messageOverrideStep struct{}

func (messageOverrideStep) Name() string { return "override" }

func (messageOverrideStep) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, bool, error) {
	id, ok := req.User.Identifier(user.IdentifierTypeID)
	if !ok {
		return evaluator.Evaluation{}, false, nil
	}
	for _, overrideID := range req.Message.OverrideUserIDs {
		if overrideID == id {
			return messageEvaluation(req, ctx, true, evaluator.ReasonOverridden), true, nil
		}
	}
	return evaluator.Evaluation{}, false, nil
}

type messageDraftStep struct{}

func (messageDraftStep) Name() string { return "draft" }

func (messageDraftStep) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, bool, error) {
	if req.Message.Status == workspace.MessageStatusDraft {
		return messageEvaluation(req, ctx, false, evaluator.ReasonMessageDraft), true, nil
	}
	return evaluator.Evaluation{}, false, nil
}

type messagePausedStep struct{}

func (messagePausedStep) Name() string { return "paused" }

func (messagePausedStep) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, bool, error) {
	if req.Message.Status == workspace.MessageStatusPaused {
		return messageEvaluation(req, ctx, false, evaluator.ReasonMessagePaused), true, nil
	}
	return evaluator.Evaluation{}, false, nil
}

type periodStep struct{}

func (periodStep) Name() string { return "period" }

func (periodStep) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, bool, error) {
	if !req.Message.Period.Contains(req.Timestamp) {
		return messageEvaluation(req, ctx, false, evaluator.ReasonNotInMessagePeriod), true, nil
	}
	return evaluator.Evaluation{}, false, nil
}

// triggerTimetableStep gates delivery on the message's event triggers and
// weekly timetable. A message without triggers shows on direct evaluation;
// one with triggers shows only when the evaluation was prompted by a matching
// tracked event. An empty timetable never gates.
type triggerTimetableStep struct {
	matcher match.TargetMatcher
}

func (triggerTimetableStep) Name() string { return "trigger-timetable" }

func (s triggerTimetableStep) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, bool, error) {
	if len(req.Message.EventTriggers) > 0 {
		triggered, err := s.triggered(req, ctx)
		if err != nil {
			return evaluator.Evaluation{}, false, err
		}
		if !triggered {
			return messageEvaluation(req, ctx, false, evaluator.ReasonNotInMessageTrigger), true, nil
		}
	}
	if !req.Message.DeliverableAt(req.Timestamp) {
		return messageEvaluation(req, ctx, false, evaluator.ReasonNotInMessageTimetable), true, nil
	}
	return evaluator.Evaluation{}, false, nil
}

func (s triggerTimetableStep) triggered(req evaluator.Request, ctx *evaluator.Context) (bool, error) {
	for _, trigger := range req.Message.EventTriggers {
		if trigger.EventKey != req.TriggerEvent {
			continue
		}
		matched, err := s.matcher.AnyMatches(req, ctx, trigger.Targets)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

type messageAudienceStep struct {
	matcher match.TargetMatcher
}

func (messageAudienceStep) Name() string { return "audience" }

func (s messageAudienceStep) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, bool, error) {
	if req.SkipAudience {
		return evaluator.Evaluation{}, false, nil
	}
	matched, err := s.matcher.AnyMatches(req, ctx, req.Message.Targets)
	if err != nil {
		return evaluator.Evaluation{}, false, err
	}
	if !matched {
		return messageEvaluation(req, ctx, false, evaluator.ReasonNotInMessageTarget), true, nil
	}
	return evaluator.Evaluation{}, false, nil
}

type frequencyCapStep struct {
	history MessageHistory
}

func (frequencyCapStep) Name() string { return "frequency-cap" }

func (s frequencyCapStep) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, bool, error) {
	cap := req.Message.FrequencyCap
	if cap.Count <= 0 {
		return evaluator.Evaluation{}, false, nil
	}
	since := req.Timestamp.Add(-time.Duration(cap.DurationMillis) * time.Millisecond)
	count, err := s.history.ImpressionCount(req.Message.ID, since)
	if err != nil {
		return evaluator.Evaluation{}, false, err
	}
	if count >= cap.Count {
		return messageEvaluation(req, ctx, false, evaluator.ReasonMessageFrequencyCap), true, nil
	}
	return evaluator.Evaluation{}, false, nil
}

type hiddenStep struct {
	history MessageHistory
}

func (hiddenStep) Name() string { return "hidden" }

func (s hiddenStep) Evaluate(req evaluator.Request, ctx *evaluator.Context) (evaluator.Evaluation, bool, error) {
	hidden, err := s.history.IsHidden(req.Message.ID, req.Timestamp)
	if err != nil {
		return evaluator.Evaluation{}, false, err
	}
	if hidden {
		return messageEvaluation(req, ctx, false, evaluator.ReasonMessageHidden), true, nil
	}
	return evaluator.Evaluation{}, false, nil
}
