package flagship

// ExperimentDecision is the outcome of one A/B test evaluation.
type ExperimentDecision struct {
	ExperimentKey int64
	VariationKey  string
	Reason        string
	Config        ParameterConfig
}

// FeatureFlagDecision is the outcome of one feature flag evaluation. IsOn is
// derived from the allocated variation: the control variation "A" is off,
// everything else is on.
type FeatureFlagDecision struct {
	FeatureKey   int64
	IsOn         bool
	VariationKey string
	Reason       string
	Config       ParameterConfig
}

// RemoteConfigDecision is the outcome of one remote config evaluation. Value
// is the matched value or the caller default.
type RemoteConfigDecision struct {
	ParameterKey string
	Value        any
	Reason       string
}

// InAppMessageDecision is the outcome of one in-app message eligibility
// evaluation. LayoutKey is set only when the message is eligible.
type InAppMessageDecision struct {
	MessageKey int64
	Eligible   bool
	LayoutKey  string
	Reason     string
}

// ParameterConfig is the remote parameter payload attached to a variation.
// Accessors return the caller default on a missing key or type mismatch.
type ParameterConfig struct {
	parameters map[string]any
}

// GetString returns the string parameter under key, or defaultValue.
func (c ParameterConfig) GetString(key, defaultValue string) string {
	if v, ok := c.parameters[key].(string); ok {
		return v
	}
	return defaultValue
}

// GetNumber returns the numeric parameter under key, or defaultValue.
func (c ParameterConfig) GetNumber(key string, defaultValue float64) float64 {
	switch v := c.parameters[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return defaultValue
}

// GetBool returns the boolean parameter under key, or defaultValue.
func (c ParameterConfig) GetBool(key string, defaultValue bool) bool {
	if v, ok := c.parameters[key].(bool); ok {
		return v
	}
	return defaultValue
}
