// Package workspace defines the immutable targeting configuration snapshot
// consumed by the evaluation engine: experiments, feature flags, segments,
// buckets, mutual-exclusion containers, remote config parameters and in-app
// messages. A snapshot is read-only after construction; absence of any entity
// is a normal, non-fatal lookup outcome.
package workspace

import (
	"strings"
	"time"
)

// ExperimentType distinguishes A/B tests from feature flags. Both share the
// Experiment shape but are evaluated through different flow chains.
type ExperimentType string

const (
	TypeABTest      ExperimentType = "AB_TEST"
	TypeFeatureFlag ExperimentType = "FEATURE_FLAG"
)

// ExperimentStatus is the lifecycle status of an experiment.
type ExperimentStatus string

const (
	StatusDraft     ExperimentStatus = "DRAFT"
	StatusRunning   ExperimentStatus = "RUNNING"
	StatusPaused    ExperimentStatus = "PAUSED"
	StatusCompleted ExperimentStatus = "COMPLETED"
)

// Experiment represents one A/B test or feature flag with its full targeting
// configuration. The zero value of ContainerID and WinnerVariationID means
// "none".
type Experiment struct {
	ID                int64
	Key               int64
	Type              ExperimentType
	IdentifierType    string
	Status            ExperimentStatus
	Version           int
	Variations        []Variation
	UserOverrides     map[string]int64 // identifier value -> variation id
	SegmentOverrides  []TargetRule     // ordered, first match wins
	TargetAudiences   []Target
	TargetRules       []TargetRule // ordered, first match wins
	DefaultRule       Action
	ContainerID       int64
	WinnerVariationID int64
}

// Variation is one arm of an experiment. ParameterConfigurationID of zero
// means the variation carries no parameter configuration.
type Variation struct {
	ID                       int64
	Key                      string
	IsDropped                bool
	ParameterConfigurationID int64
}

// VariationByID returns the variation with the given id.
func (e Experiment) VariationByID(id int64) (Variation, bool) {
	for _, v := range e.Variations {
		if v.ID == id {
			return v, true
		}
	}
	return Variation{}, false
}

// VariationByKey returns the variation with the given key.
func (e Experiment) VariationByKey(key string) (Variation, bool) {
	for _, v := range e.Variations {
		if v.Key == key {
			return v, true
		}
	}
	return Variation{}, false
}

// KeyType identifies where a condition's left-hand value is resolved from.
type KeyType string

const (
	KeyTypeUserID         KeyType = "USER_ID"
	KeyTypeUserProperty   KeyType = "USER_PROPERTY"
	KeyTypeSystemProperty KeyType = "SYSTEM_PROPERTY"
	KeyTypeSegment        KeyType = "SEGMENT"
	KeyTypeABTest         KeyType = "AB_TEST"
	KeyTypeFeatureFlag    KeyType = "FEATURE_FLAG"
)

// MatchType applies or inverts the result of an operator match.
type MatchType string

const (
	MatchTypeMatch    MatchType = "MATCH"
	MatchTypeNotMatch MatchType = "NOT_MATCH"
)

// Operator is a closed-set comparison operator used in targeting conditions.
type Operator string

const (
	OpIn         Operator = "IN"
	OpContains   Operator = "CONTAINS"
	OpStartsWith Operator = "STARTS_WITH"
	OpEndsWith   Operator = "ENDS_WITH"
	OpGT         Operator = "GT"
	OpGTE        Operator = "GTE"
	OpLT         Operator = "LT"
	OpLTE        Operator = "LTE"
)

// ValueType is the declared type of a condition's match values.
type ValueType string

const (
	ValueTypeString  ValueType = "STRING"
	ValueTypeNumber  ValueType = "NUMBER"
	ValueTypeBool    ValueType = "BOOLEAN"
	ValueTypeVersion ValueType = "VERSION"
)

// ConditionKey names the attribute a condition tests.
type ConditionKey struct {
	Type KeyType
	Name string
}

// Match describes how a resolved user value is compared against the
// condition's values. The condition matches when the operator holds for any
// one of Values, then MatchType is applied.
type Match struct {
	Type      MatchType
	Operator  Operator
	ValueType ValueType
	Values    []any
}

// Condition is one atomic targeting predicate.
type Condition struct {
	Key   ConditionKey
	Match Match
}

// Target is a conjunction of conditions: all must match.
type Target struct {
	Conditions []Condition
}

// ActionType distinguishes a literal variation assignment from a bucket
// allocation.
type ActionType string

const (
	ActionVariation ActionType = "VARIATION"
	ActionBucket    ActionType = "BUCKET"
)

// Action resolves to a variation, either directly or through a bucket.
type Action struct {
	Type        ActionType
	VariationID int64
	BucketID    int64
}

// TargetRule pairs a target with the action taken when the target matches.
type TargetRule struct {
	Target Target
	Action Action
}

// SegmentType classifies a segment.
type SegmentType string

const (
	SegmentTypeUserID   SegmentType = "USER_ID"
	SegmentTypeProperty SegmentType = "USER_PROPERTY"
)

// Segment is a disjunction of targets, each built from user-only conditions.
// Segments cannot reference other segments.
type Segment struct {
	ID      int64
	Key     string
	Type    SegmentType
	Targets []Target
}

// Slot is a half-open slot range [RangeStart, RangeEnd) owned by a variation.
type Slot struct {
	RangeStart  int
	RangeEnd    int
	VariationID int64
}

// Contains reports whether the slot number falls inside this slot's range.
func (s Slot) Contains(slotNumber int) bool {
	return s.RangeStart <= slotNumber && slotNumber < s.RangeEnd
}

// Bucket is the deterministic traffic-allocation table for an experiment or
// container. SlotSize is the total slot space the hash maps into.
type Bucket struct {
	ID       int64
	Seed     int64
	SlotSize int
	Slots    []Slot
}

// SlotByNumber returns the slot owning the given slot number, if any.
func (b Bucket) SlotByNumber(slotNumber int) (Slot, bool) {
	for _, s := range b.Slots {
		if s.Contains(slotNumber) {
			return s, true
		}
	}
	return Slot{}, false
}

// ContainerGroup is one arm of a mutual-exclusion container.
type ContainerGroup struct {
	ID          int64
	Experiments []int64
}

// Container is a mutual-exclusion group: the container bucket assigns each
// user to at most one group, and only experiments in that group proceed to
// normal allocation.
type Container struct {
	ID       int64
	BucketID int64
	Groups   []ContainerGroup
}

// GroupByID returns the container group with the given id.
func (c Container) GroupByID(id int64) (ContainerGroup, bool) {
	for _, g := range c.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return ContainerGroup{}, false
}

// ParameterConfiguration is the per-variation remote parameter payload.
type ParameterConfiguration struct {
	ID         int64
	Parameters map[string]any
}

// RemoteConfigValue is one resolvable remote config value.
type RemoteConfigValue struct {
	ID       int64
	RawValue any
}

// RemoteConfigTargetRule assigns a value to users matching its target. A
// non-zero BucketID further gates the rule by deterministic bucketing.
type RemoteConfigTargetRule struct {
	Key      string
	Name     string
	Target   Target
	BucketID int64
	Value    RemoteConfigValue
}

// RemoteConfigParameter is one remote config key with its ordered target
// rules and default value.
type RemoteConfigParameter struct {
	ID             int64
	Key            string
	Type           ValueType
	IdentifierType string
	TargetRules    []RemoteConfigTargetRule
	DefaultValue   RemoteConfigValue
}

// EventType is a registered trackable event.
type EventType struct {
	ID  int64
	Key string
}

// InAppMessageStatus is the lifecycle status of an in-app message.
type InAppMessageStatus string

const (
	MessageStatusDraft  InAppMessageStatus = "DRAFT"
	MessageStatusPaused InAppMessageStatus = "PAUSE"
	MessageStatusActive InAppMessageStatus = "ACTIVE"
)

// Period is the display window of an in-app message. When Within is false
// the message is always inside its period.
type Period struct {
	Within bool
	Start  time.Time
	End    time.Time
}

// Contains reports whether ts falls inside the period.
func (p Period) Contains(ts time.Time) bool {
	if !p.Within {
		return true
	}
	return !ts.Before(p.Start) && ts.Before(p.End)
}

// FrequencyCap limits how often a message may be shown to one user.
// Count of zero disables the cap.
type FrequencyCap struct {
	Count          int
	DurationMillis int64
}

// EventTrigger fires a message off a tracked event. Targets further restrict
// which occurrences qualify; an empty target list accepts every occurrence.
type EventTrigger struct {
	EventKey string
	Targets  []Target
}

// TimetableSlot is one recurring weekly delivery window, as minutes of the
// day on the named weekdays ("MONDAY".."SUNDAY").
type TimetableSlot struct {
	DaysOfWeek       []string
	StartMinuteOfDay int
	EndMinuteOfDay   int
}

// Contains reports whether ts falls on one of the slot's weekdays inside
// [StartMinuteOfDay, EndMinuteOfDay).
func (s TimetableSlot) Contains(ts time.Time) bool {
	day := strings.ToUpper(ts.Weekday().String())
	minute := ts.Hour()*60 + ts.Minute()
	for _, d := range s.DaysOfWeek {
		if d == day && s.StartMinuteOfDay <= minute && minute < s.EndMinuteOfDay {
			return true
		}
	}
	return false
}

// InAppMessage is one in-app message with its eligibility configuration.
type InAppMessage struct {
	ID              int64
	Key             int64
	Status          InAppMessageStatus
	Period          Period
	Platforms       []string
	OverrideUserIDs []string
	Targets         []Target
	EventTriggers   []EventTrigger
	Timetable       []TimetableSlot
	FrequencyCap    FrequencyCap
	LayoutKey       string
}

// DeliverableAt reports whether ts falls inside the delivery timetable. An
// empty timetable allows delivery at any time.
func (m InAppMessage) DeliverableAt(ts time.Time) bool {
	if len(m.Timetable) == 0 {
		return true
	}
	for _, slot := range m.Timetable {
		if slot.Contains(ts) {
			return true
		}
	}
	return false
}

// SupportsPlatform reports whether the message targets the given platform.
func (m InAppMessage) SupportsPlatform(platform string) bool {
	for _, p := range m.Platforms {
		if p == platform {
			return true
		}
	}
	return false
}
