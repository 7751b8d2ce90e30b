package workspace

import "sort"

// Workspace is one immutable snapshot of targeting configuration. All lookup
// methods are safe for concurrent use and return false when the entity does
// not exist in the snapshot.
type Workspace interface {
	// GetExperiment returns the A/B test experiment with the given key.
	GetExperiment(key int64) (Experiment, bool)

	// GetFeatureFlag returns the feature flag with the given key.
	GetFeatureFlag(key int64) (Experiment, bool)

	// GetSegment returns the segment with the given key.
	GetSegment(key string) (Segment, bool)

	// GetBucket returns the bucket with the given id.
	GetBucket(id int64) (Bucket, bool)

	// GetContainer returns the mutual-exclusion container with the given id.
	GetContainer(id int64) (Container, bool)

	// GetParameterConfiguration returns the parameter configuration with the
	// given id.
	GetParameterConfiguration(id int64) (ParameterConfiguration, bool)

	// GetRemoteConfigParameter returns the remote config parameter with the
	// given key.
	GetRemoteConfigParameter(key string) (RemoteConfigParameter, bool)

	// GetInAppMessage returns the in-app message with the given key.
	GetInAppMessage(key int64) (InAppMessage, bool)

	// GetEventType returns the registered event type with the given key.
	GetEventType(key string) (EventType, bool)
}

// mapWorkspace is the canonical in-memory Workspace built once from decoded
// configuration and never mutated afterwards.
type mapWorkspace struct {
	experiments     map[int64]Experiment
	featureFlags    map[int64]Experiment
	segments        map[string]Segment
	buckets         map[int64]Bucket
	containers      map[int64]Container
	parameterConfig map[int64]ParameterConfiguration
	remoteConfigs   map[string]RemoteConfigParameter
	inAppMessages   map[int64]InAppMessage
	eventTypes      map[string]EventType
}

// Builder assembles an immutable Workspace.
type Builder struct {
	ws mapWorkspace
}

// NewBuilder returns an empty workspace builder.
func NewBuilder() *Builder {
	return &Builder{ws: mapWorkspace{
		experiments:     make(map[int64]Experiment),
		featureFlags:    make(map[int64]Experiment),
		segments:        make(map[string]Segment),
		buckets:         make(map[int64]Bucket),
		containers:      make(map[int64]Container),
		parameterConfig: make(map[int64]ParameterConfiguration),
		remoteConfigs:   make(map[string]RemoteConfigParameter),
		inAppMessages:   make(map[int64]InAppMessage),
		eventTypes:      make(map[string]EventType),
	}}
}

// Experiment registers an experiment under its key. Feature-flag typed
// experiments are registered in the feature flag index.
func (b *Builder) Experiment(e Experiment) *Builder {
	switch e.Type {
	case TypeFeatureFlag:
		b.ws.featureFlags[e.Key] = e
	default:
		b.ws.experiments[e.Key] = e
	}
	return b
}

// Segment registers a segment under its key.
func (b *Builder) Segment(s Segment) *Builder {
	b.ws.segments[s.Key] = s
	return b
}

// Bucket registers a bucket under its id.
func (b *Builder) Bucket(bk Bucket) *Builder {
	b.ws.buckets[bk.ID] = bk
	return b
}

// Container registers a container under its id.
func (b *Builder) Container(c Container) *Builder {
	b.ws.containers[c.ID] = c
	return b
}

// ParameterConfiguration registers a parameter configuration under its id.
func (b *Builder) ParameterConfiguration(p ParameterConfiguration) *Builder {
	b.ws.parameterConfig[p.ID] = p
	return b
}

// RemoteConfigParameter registers a remote config parameter under its key.
func (b *Builder) RemoteConfigParameter(p RemoteConfigParameter) *Builder {
	b.ws.remoteConfigs[p.Key] = p
	return b
}

// InAppMessage registers an in-app message under its key.
func (b *Builder) InAppMessage(m InAppMessage) *Builder {
	b.ws.inAppMessages[m.Key] = m
	return b
}

// EventType registers an event type under its key.
func (b *Builder) EventType(t EventType) *Builder {
	b.ws.eventTypes[t.Key] = t
	return b
}

// Build returns the immutable workspace.
func (b *Builder) Build() Workspace {
	ws := b.ws
	return &ws
}

// Lister enumerates snapshot entities in key order. Implemented by decoded
// workspaces for tooling; evaluation never lists.
type Lister interface {
	Experiments() []Experiment
	FeatureFlags() []Experiment
	RemoteConfigParameters() []RemoteConfigParameter
	InAppMessages() []InAppMessage
}

func (w *mapWorkspace) Experiments() []Experiment {
	return sortedByKey(w.experiments)
}

func (w *mapWorkspace) FeatureFlags() []Experiment {
	return sortedByKey(w.featureFlags)
}

func (w *mapWorkspace) RemoteConfigParameters() []RemoteConfigParameter {
	out := make([]RemoteConfigParameter, 0, len(w.remoteConfigs))
	for _, p := range w.remoteConfigs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (w *mapWorkspace) InAppMessages() []InAppMessage {
	return sortedByKey(w.inAppMessages)
}

func sortedByKey[T any](m map[int64]T) []T {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]T, 0, len(m))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func (w *mapWorkspace) GetExperiment(key int64) (Experiment, bool) {
	e, ok := w.experiments[key]
	return e, ok
}

func (w *mapWorkspace) GetFeatureFlag(key int64) (Experiment, bool) {
	e, ok := w.featureFlags[key]
	return e, ok
}

func (w *mapWorkspace) GetSegment(key string) (Segment, bool) {
	s, ok := w.segments[key]
	return s, ok
}

func (w *mapWorkspace) GetBucket(id int64) (Bucket, bool) {
	b, ok := w.buckets[id]
	return b, ok
}

func (w *mapWorkspace) GetContainer(id int64) (Container, bool) {
	c, ok := w.containers[id]
	return c, ok
}

func (w *mapWorkspace) GetParameterConfiguration(id int64) (ParameterConfiguration, bool) {
	p, ok := w.parameterConfig[id]
	return p, ok
}

func (w *mapWorkspace) GetRemoteConfigParameter(key string) (RemoteConfigParameter, bool) {
	p, ok := w.remoteConfigs[key]
	return p, ok
}

func (w *mapWorkspace) GetInAppMessage(key int64) (InAppMessage, bool) {
	m, ok := w.inAppMessages[key]
	return m, ok
}

func (w *mapWorkspace) GetEventType(key string) (EventType, bool) {
	t, ok := w.eventTypes[key]
	return t, ok
}
