package evaluator

import "errors"

// Decision reason codes reported to callers and recorded on telemetry events.
const (
	ReasonSDKNotReady        = "SDK_NOT_READY"
	ReasonInvalidInput       = "INVALID_INPUT"
	ReasonException          = "EXCEPTION"
	ReasonIdentifierNotFound = "IDENTIFIER_NOT_FOUND"

	ReasonExperimentNotFound    = "EXPERIMENT_NOT_FOUND"
	ReasonExperimentDraft       = "EXPERIMENT_DRAFT"
	ReasonExperimentPaused      = "EXPERIMENT_PAUSED"
	ReasonExperimentCompleted   = "EXPERIMENT_COMPLETED"
	ReasonOverridden            = "OVERRIDDEN"
	ReasonTrafficNotAllocated   = "TRAFFIC_NOT_ALLOCATED"
	ReasonTrafficAllocated      = "TRAFFIC_ALLOCATED"
	ReasonNotInExperimentTarget = "NOT_IN_EXPERIMENT_TARGET"
	ReasonVariationDropped      = "VARIATION_DROPPED"

	ReasonNotInMutualExclusion = "NOT_IN_MUTUAL_EXCLUSION_EXPERIMENT"

	ReasonFeatureFlagNotFound = "FEATURE_FLAG_NOT_FOUND"
	ReasonFeatureFlagInactive = "FEATURE_FLAG_INACTIVE"
	ReasonTargetRuleMatch     = "TARGET_RULE_MATCH"
	ReasonDefaultRule         = "DEFAULT_RULE"

	ReasonRemoteConfigNotFound = "REMOTE_CONFIG_PARAMETER_NOT_FOUND"
	ReasonTypeMismatch         = "TYPE_MISMATCH"

	ReasonMessageNotFound       = "IN_APP_MESSAGE_NOT_FOUND"
	ReasonUnsupportedPlatform   = "UNSUPPORTED_PLATFORM"
	ReasonMessageDraft          = "IN_APP_MESSAGE_DRAFT"
	ReasonMessagePaused         = "IN_APP_MESSAGE_PAUSED"
	ReasonNotInMessagePeriod    = "NOT_IN_IN_APP_MESSAGE_PERIOD"
	ReasonNotInMessageTrigger   = "NOT_IN_IN_APP_MESSAGE_TRIGGER"
	ReasonNotInMessageTimetable = "NOT_IN_IN_APP_MESSAGE_TIMETABLE"
	ReasonNotInMessageTarget    = "NOT_IN_IN_APP_MESSAGE_TARGET"
	ReasonMessageFrequencyCap   = "IN_APP_MESSAGE_FREQUENCY_CAPPED"
	ReasonMessageHidden         = "IN_APP_MESSAGE_HIDDEN"
	ReasonMessageTarget         = "IN_APP_MESSAGE_TARGET"
)

// ErrCircularReference is returned when an entity transitively depends on
// evaluating itself. This is a snapshot inconsistency, not a caller error.
var ErrCircularReference = errors.New("circular evaluation detected")
