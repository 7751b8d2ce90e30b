package workspace

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire DTOs for the workspace snapshot payload. Decoding is tolerant:
// entities with unknown shapes are skipped and unknown operators or key
// types are kept verbatim so the affected conditions fail closed at match
// time instead of failing the whole snapshot.

type workspaceDTO struct {
	Experiments             []experimentDTO   `json:"experiments"`
	FeatureFlags            []experimentDTO   `json:"featureFlags"`
	Buckets                 []bucketDTO       `json:"buckets"`
	Segments                []segmentDTO      `json:"segments"`
	Containers              []containerDTO    `json:"containers"`
	ParameterConfigurations []parameterDTO    `json:"parameterConfigurations"`
	RemoteConfigParameters  []remoteConfigDTO `json:"remoteConfigParameters"`
	InAppMessages           []inAppMessageDTO `json:"inAppMessages"`
	EventTypes              []eventTypeDTO    `json:"eventTypes"`
}

type experimentDTO struct {
	ID                int64             `json:"id"`
	Key               int64             `json:"key"`
	Status            string            `json:"status"`
	Version           int               `json:"version"`
	IdentifierType    string            `json:"identifierType"`
	Variations        []variationDTO    `json:"variations"`
	UserOverrides     []userOverrideDTO `json:"userOverrides"`
	SegmentOverrides  []targetRuleDTO   `json:"segmentOverrides"`
	TargetAudiences   []targetDTO       `json:"targetAudiences"`
	TargetRules       []targetRuleDTO   `json:"targetRules"`
	DefaultRule       *actionDTO        `json:"defaultRule"`
	ContainerID       *int64            `json:"containerId"`
	WinnerVariationID *int64            `json:"winnerVariationId"`
}

type variationDTO struct {
	ID                       int64  `json:"id"`
	Key                      string `json:"key"`
	Status                   string `json:"status"`
	ParameterConfigurationID *int64 `json:"parameterConfigurationId"`
}

type userOverrideDTO struct {
	UserID      string `json:"userId"`
	VariationID int64  `json:"variationId"`
}

type targetDTO struct {
	Conditions []conditionDTO `json:"conditions"`
}

type conditionDTO struct {
	Key struct {
		Type string `json:"type"`
		Name string `json:"name"`
	} `json:"key"`
	Match struct {
		Type      string `json:"type"`
		Operator  string `json:"operator"`
		ValueType string `json:"valueType"`
		Values    []any  `json:"values"`
	} `json:"match"`
}

type actionDTO struct {
	Type        string `json:"type"`
	VariationID *int64 `json:"variationId"`
	BucketID    *int64 `json:"bucketId"`
}

type targetRuleDTO struct {
	Target targetDTO `json:"target"`
	Action actionDTO `json:"action"`
}

type bucketDTO struct {
	ID       int64 `json:"id"`
	Seed     int64 `json:"seed"`
	SlotSize int   `json:"slotSize"`
	Slots    []struct {
		RangeStart  int   `json:"rangeStart"`
		RangeEnd    int   `json:"rangeEnd"`
		VariationID int64 `json:"variationId"`
	} `json:"slots"`
}

type segmentDTO struct {
	ID      int64       `json:"id"`
	Key     string      `json:"key"`
	Type    string      `json:"type"`
	Targets []targetDTO `json:"targets"`
}

type containerDTO struct {
	ID       int64 `json:"id"`
	BucketID int64 `json:"bucketId"`
	Groups   []struct {
		ID          int64   `json:"id"`
		Experiments []int64 `json:"experiments"`
	} `json:"groups"`
}

type parameterDTO struct {
	ID         int64          `json:"id"`
	Parameters map[string]any `json:"parameters"`
}

type remoteConfigDTO struct {
	ID             int64  `json:"id"`
	Key            string `json:"key"`
	Type           string `json:"type"`
	IdentifierType string `json:"identifierType"`
	TargetRules    []struct {
		Key      string               `json:"key"`
		Name     string               `json:"name"`
		Target   targetDTO            `json:"target"`
		BucketID *int64               `json:"bucketId"`
		Value    remoteConfigValueDTO `json:"value"`
	} `json:"targetRules"`
	DefaultValue remoteConfigValueDTO `json:"defaultValue"`
}

type remoteConfigValueDTO struct {
	ID       int64 `json:"id"`
	RawValue any   `json:"value"`
}

type inAppMessageDTO struct {
	ID     int64  `json:"id"`
	Key    int64  `json:"key"`
	Status string `json:"status"`
	Period struct {
		Type        string `json:"type"`
		StartMillis int64  `json:"startMillis"`
		EndMillis   int64  `json:"endMillis"`
	} `json:"period"`
	Platforms         []string    `json:"platforms"`
	OverrideUserIDs   []string    `json:"overrideUserIds"`
	Targets           []targetDTO `json:"targets"`
	EventTriggerRules []struct {
		EventKey string      `json:"eventKey"`
		Targets  []targetDTO `json:"targets"`
	} `json:"eventTriggerRules"`
	Timetable []struct {
		DaysOfWeek       []string `json:"daysOfWeek"`
		StartMinuteOfDay int      `json:"startMinuteOfDay"`
		EndMinuteOfDay   int      `json:"endMinuteOfDay"`
	} `json:"timetable"`
	FrequencyCap *struct {
		Count          int   `json:"count"`
		DurationMillis int64 `json:"durationMillis"`
	} `json:"frequencyCap"`
	LayoutKey string `json:"layoutKey"`
}

type eventTypeDTO struct {
	ID  int64  `json:"id"`
	Key string `json:"key"`
}

// Decode parses a workspace snapshot payload into an immutable Workspace.
func Decode(data []byte) (Workspace, error) {
	var dto workspaceDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("decode workspace: %w", err)
	}

	b := NewBuilder()
	for _, e := range dto.Experiments {
		b.Experiment(e.toModel(TypeABTest))
	}
	for _, e := range dto.FeatureFlags {
		b.Experiment(e.toModel(TypeFeatureFlag))
	}
	for _, bk := range dto.Buckets {
		b.Bucket(bk.toModel())
	}
	for _, s := range dto.Segments {
		b.Segment(s.toModel())
	}
	for _, c := range dto.Containers {
		b.Container(c.toModel())
	}
	for _, p := range dto.ParameterConfigurations {
		b.ParameterConfiguration(ParameterConfiguration{ID: p.ID, Parameters: p.Parameters})
	}
	for _, rc := range dto.RemoteConfigParameters {
		b.RemoteConfigParameter(rc.toModel())
	}
	for _, m := range dto.InAppMessages {
		b.InAppMessage(m.toModel())
	}
	for _, t := range dto.EventTypes {
		b.EventType(EventType{ID: t.ID, Key: t.Key})
	}
	return b.Build(), nil
}

func (d experimentDTO) toModel(t ExperimentType) Experiment {
	e := Experiment{
		ID:               d.ID,
		Key:              d.Key,
		Type:             t,
		IdentifierType:   d.IdentifierType,
		Status:           ExperimentStatus(d.Status),
		Version:          d.Version,
		Variations:       make([]Variation, 0, len(d.Variations)),
		UserOverrides:    make(map[string]int64, len(d.UserOverrides)),
		SegmentOverrides: make([]TargetRule, 0, len(d.SegmentOverrides)),
		TargetAudiences:  make([]Target, 0, len(d.TargetAudiences)),
		TargetRules:      make([]TargetRule, 0, len(d.TargetRules)),
	}
	if e.IdentifierType == "" {
		e.IdentifierType = "$id"
	}
	for _, v := range d.Variations {
		variation := Variation{ID: v.ID, Key: v.Key, IsDropped: v.Status == "DROPPED"}
		if v.ParameterConfigurationID != nil {
			variation.ParameterConfigurationID = *v.ParameterConfigurationID
		}
		e.Variations = append(e.Variations, variation)
	}
	for _, o := range d.UserOverrides {
		e.UserOverrides[o.UserID] = o.VariationID
	}
	for _, r := range d.SegmentOverrides {
		e.SegmentOverrides = append(e.SegmentOverrides, r.toModel())
	}
	for _, t := range d.TargetAudiences {
		e.TargetAudiences = append(e.TargetAudiences, t.toModel())
	}
	for _, r := range d.TargetRules {
		e.TargetRules = append(e.TargetRules, r.toModel())
	}
	if d.DefaultRule != nil {
		e.DefaultRule = d.DefaultRule.toModel()
	}
	if d.ContainerID != nil {
		e.ContainerID = *d.ContainerID
	}
	if d.WinnerVariationID != nil {
		e.WinnerVariationID = *d.WinnerVariationID
	}
	return e
}

func (d targetDTO) toModel() Target {
	t := Target{Conditions: make([]Condition, 0, len(d.Conditions))}
	for _, c := range d.Conditions {
		t.Conditions = append(t.Conditions, Condition{
			Key: ConditionKey{Type: KeyType(c.Key.Type), Name: c.Key.Name},
			Match: Match{
				Type:      MatchType(c.Match.Type),
				Operator:  Operator(c.Match.Operator),
				ValueType: ValueType(c.Match.ValueType),
				Values:    c.Match.Values,
			},
		})
	}
	return t
}

func (d actionDTO) toModel() Action {
	a := Action{Type: ActionType(d.Type)}
	if d.VariationID != nil {
		a.VariationID = *d.VariationID
	}
	if d.BucketID != nil {
		a.BucketID = *d.BucketID
	}
	return a
}

func (d targetRuleDTO) toModel() TargetRule {
	return TargetRule{Target: d.Target.toModel(), Action: d.Action.toModel()}
}

func (d bucketDTO) toModel() Bucket {
	b := Bucket{ID: d.ID, Seed: d.Seed, SlotSize: d.SlotSize, Slots: make([]Slot, 0, len(d.Slots))}
	for _, s := range d.Slots {
		b.Slots = append(b.Slots, Slot{RangeStart: s.RangeStart, RangeEnd: s.RangeEnd, VariationID: s.VariationID})
	}
	return b
}

func (d segmentDTO) toModel() Segment {
	s := Segment{ID: d.ID, Key: d.Key, Type: SegmentType(d.Type), Targets: make([]Target, 0, len(d.Targets))}
	for _, t := range d.Targets {
		s.Targets = append(s.Targets, t.toModel())
	}
	return s
}

func (d containerDTO) toModel() Container {
	c := Container{ID: d.ID, BucketID: d.BucketID, Groups: make([]ContainerGroup, 0, len(d.Groups))}
	for _, g := range d.Groups {
		c.Groups = append(c.Groups, ContainerGroup{ID: g.ID, Experiments: g.Experiments})
	}
	return c
}

func (d remoteConfigDTO) toModel() RemoteConfigParameter {
	p := RemoteConfigParameter{
		ID:             d.ID,
		Key:            d.Key,
		Type:           ValueType(d.Type),
		IdentifierType: d.IdentifierType,
		TargetRules:    make([]RemoteConfigTargetRule, 0, len(d.TargetRules)),
		DefaultValue:   RemoteConfigValue{ID: d.DefaultValue.ID, RawValue: d.DefaultValue.RawValue},
	}
	if p.IdentifierType == "" {
		p.IdentifierType = "$id"
	}
	for _, r := range d.TargetRules {
		rule := RemoteConfigTargetRule{
			Key:    r.Key,
			Name:   r.Name,
			Target: r.Target.toModel(),
			Value:  RemoteConfigValue{ID: r.Value.ID, RawValue: r.Value.RawValue},
		}
		if r.BucketID != nil {
			rule.BucketID = *r.BucketID
		}
		p.TargetRules = append(p.TargetRules, rule)
	}
	return p
}

func (d inAppMessageDTO) toModel() InAppMessage {
	m := InAppMessage{
		ID:              d.ID,
		Key:             d.Key,
		Status:          InAppMessageStatus(d.Status),
		Platforms:       d.Platforms,
		OverrideUserIDs: d.OverrideUserIDs,
		Targets:         make([]Target, 0, len(d.Targets)),
		LayoutKey:       d.LayoutKey,
	}
	if d.Period.Type == "CUSTOM" {
		m.Period = Period{
			Within: true,
			Start:  time.UnixMilli(d.Period.StartMillis).UTC(),
			End:    time.UnixMilli(d.Period.EndMillis).UTC(),
		}
	}
	for _, t := range d.Targets {
		m.Targets = append(m.Targets, t.toModel())
	}
	for _, r := range d.EventTriggerRules {
		trigger := EventTrigger{EventKey: r.EventKey, Targets: make([]Target, 0, len(r.Targets))}
		for _, t := range r.Targets {
			trigger.Targets = append(trigger.Targets, t.toModel())
		}
		m.EventTriggers = append(m.EventTriggers, trigger)
	}
	for _, s := range d.Timetable {
		m.Timetable = append(m.Timetable, TimetableSlot{
			DaysOfWeek:       s.DaysOfWeek,
			StartMinuteOfDay: s.StartMinuteOfDay,
			EndMinuteOfDay:   s.EndMinuteOfDay,
		})
	}
	if d.FrequencyCap != nil {
		m.FrequencyCap = FrequencyCap{Count: d.FrequencyCap.Count, DurationMillis: d.FrequencyCap.DurationMillis}
	}
	return m
}
