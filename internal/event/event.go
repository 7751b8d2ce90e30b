// Package event turns evaluations into telemetry events and carries them to
// delivery: the event factory, the time-windowed dedup cache, the buffered
// processor with periodic flush, and the batch dispatcher.
package event

import (
	"time"

	"github.com/TimurManjosov/flagship-go-sdk/internal/user"
)

// Type discriminates the user event union.
type Type int

const (
	TypeExposure Type = iota
	TypeTrack
	TypeRemoteConfig
)

// UserEvent is one immutable telemetry event. Concrete types are Exposure,
// Track and RemoteConfig.
type UserEvent interface {
	EventType() Type
	InsertID() string
	Timestamp() time.Time
	User() user.User

	// DedupKey returns the identity of the decision this event records, used
	// by the dedup cache. Track events are never deduplicated and return
	// false.
	DedupKey() (string, bool)
}

type base struct {
	insertID  string
	timestamp time.Time
	user      user.User
}

func (b base) InsertID() string     { return b.insertID }
func (b base) Timestamp() time.Time { return b.timestamp }
func (b base) User() user.User      { return b.user }

// Exposure records that a user was assigned a variation.
type Exposure struct {
	base
	ExperimentID  int64
	ExperimentKey int64
	VariationID   int64
	VariationKey  string
	Reason        string
	Properties    map[string]any
}

func (Exposure) EventType() Type { return TypeExposure }

func (e Exposure) DedupKey() (string, bool) {
	return dedupKey("exposure", e.ExperimentID, e.VariationID, e.VariationKey, e.Reason), true
}

// Track records an application event reported through the track API.
type Track struct {
	base
	EventTypeID int64
	EventKey    string
	Value       float64
	Properties  map[string]any
}

func (Track) EventType() Type { return TypeTrack }

func (Track) DedupKey() (string, bool) { return "", false }

// RemoteConfig records a remote config value decision.
type RemoteConfig struct {
	base
	ParameterID  int64
	ParameterKey string
	ValueID      int64
	Reason       string
	Properties   map[string]any
}

func (RemoteConfig) EventType() Type { return TypeRemoteConfig }

func (e RemoteConfig) DedupKey() (string, bool) {
	return dedupKey("remoteconfig", e.ParameterID, e.ValueID, "", e.Reason), true
}
