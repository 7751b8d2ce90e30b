package match

import (
	"testing"

	"github.com/TimurManjosov/flagship-go-sdk/internal/workspace"
)

func TestValueMatches(t *testing.T) {
	tests := []struct {
		name       string
		op         workspace.Operator
		valueType  workspace.ValueType
		userValue  any
		matchValue any
		want       bool
	}{
		{"in string equal", workspace.OpIn, workspace.ValueTypeString, "blue", "blue", true},
		{"in string different", workspace.OpIn, workspace.ValueTypeString, "blue", "red", false},
		{"in number equal", workspace.OpIn, workspace.ValueTypeNumber, 42.0, 42.0, true},
		{"in number int widths", workspace.OpIn, workspace.ValueTypeNumber, int64(42), 42.0, true},
		{"in bool equal", workspace.OpIn, workspace.ValueTypeBool, true, true, true},
		{"in bool different", workspace.OpIn, workspace.ValueTypeBool, true, false, false},

		{"contains hit", workspace.OpContains, workspace.ValueTypeString, "hello world", "lo wo", true},
		{"contains miss", workspace.OpContains, workspace.ValueTypeString, "hello", "xyz", false},
		{"contains number invalid", workspace.OpContains, workspace.ValueTypeNumber, 42.0, 4.0, false},
		{"startsWith hit", workspace.OpStartsWith, workspace.ValueTypeString, "prefix_rest", "prefix", true},
		{"startsWith miss", workspace.OpStartsWith, workspace.ValueTypeString, "rest_prefix", "prefix", false},
		{"endsWith hit", workspace.OpEndsWith, workspace.ValueTypeString, "file.json", ".json", true},
		{"endsWith miss", workspace.OpEndsWith, workspace.ValueTypeString, "file.yaml", ".json", false},

		{"gt true", workspace.OpGT, workspace.ValueTypeNumber, 3.0, 2.0, true},
		{"gt equal", workspace.OpGT, workspace.ValueTypeNumber, 2.0, 2.0, false},
		{"gte equal", workspace.OpGTE, workspace.ValueTypeNumber, 2.0, 2.0, true},
		{"lt true", workspace.OpLT, workspace.ValueTypeNumber, 1.0, 2.0, true},
		{"lte equal", workspace.OpLTE, workspace.ValueTypeNumber, 2.0, 2.0, true},
		{"gt string invalid", workspace.OpGT, workspace.ValueTypeString, "b", "a", false},
		{"gt bool invalid", workspace.OpGT, workspace.ValueTypeBool, true, false, false},

		{"version equal", workspace.OpIn, workspace.ValueTypeVersion, "1.2.3", "1.2.3", true},
		{"version gt", workspace.OpGT, workspace.ValueTypeVersion, "2.0.0", "1.9.9", true},
		{"version gte equal", workspace.OpGTE, workspace.ValueTypeVersion, "1.2.3", "1.2.3", true},
		{"version lt", workspace.OpLT, workspace.ValueTypeVersion, "1.0.0", "1.0.1", true},
		{"version unparseable", workspace.OpGT, workspace.ValueTypeVersion, "not-a-version", "1.0.0", false},
		{"version contains invalid", workspace.OpContains, workspace.ValueTypeVersion, "1.2.3", "1.2", false},

		{"type coercion failure", workspace.OpIn, workspace.ValueTypeNumber, "42", 42.0, false},
		{"unknown operator", workspace.Operator("REGEX"), workspace.ValueTypeString, "a", "a", false},
		{"unknown value type", workspace.OpIn, workspace.ValueType("JSON"), "a", "a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValueMatches(tt.op, tt.valueType, tt.userValue, tt.matchValue)
			if got != tt.want {
				t.Errorf("ValueMatches(%s, %s, %v, %v) = %v, want %v",
					tt.op, tt.valueType, tt.userValue, tt.matchValue, got, tt.want)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	m := workspace.Match{
		Type:      workspace.MatchTypeMatch,
		Operator:  workspace.OpIn,
		ValueType: workspace.ValueTypeString,
		Values:    []any{"red", "green", "blue"},
	}

	t.Run("any value matches", func(t *testing.T) {
		if !Matches(m, "green") {
			t.Error("Expected match against one of the values")
		}
	})

	t.Run("no value matches", func(t *testing.T) {
		if Matches(m, "purple") {
			t.Error("Expected no match")
		}
	})

	t.Run("not match inverts", func(t *testing.T) {
		inverted := m
		inverted.Type = workspace.MatchTypeNotMatch
		if Matches(inverted, "green") {
			t.Error("Expected NOT_MATCH to invert a hit")
		}
		if !Matches(inverted, "purple") {
			t.Error("Expected NOT_MATCH to invert a miss")
		}
	})

	t.Run("empty values never match", func(t *testing.T) {
		empty := workspace.Match{
			Type:      workspace.MatchTypeMatch,
			Operator:  workspace.OpIn,
			ValueType: workspace.ValueTypeString,
		}
		if Matches(empty, "anything") {
			t.Error("Expected no match with empty values")
		}
	})
}
