// Package match evaluates targeting conditions against a resolved user:
// typed operator matchers, condition matchers keyed by condition-key type,
// and target/segment matching with AND-of-conditions, OR-of-targets
// semantics.
package match

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/TimurManjosov/flagship-go-sdk/internal/workspace"
)

// operatorHandler evaluates one operator per value type. A mismatched value
// type always yields false, never an error.
type operatorHandler interface {
	stringMatch(userValue, matchValue string) bool
	numberMatch(userValue, matchValue float64) bool
	boolMatch(userValue, matchValue bool) bool
	versionMatch(userValue, matchValue *semver.Version) bool
}

var operatorHandlers = map[workspace.Operator]operatorHandler{
	workspace.OpIn:         inHandler{},
	workspace.OpContains:   containsHandler{},
	workspace.OpStartsWith: startsWithHandler{},
	workspace.OpEndsWith:   endsWithHandler{},
	workspace.OpGT:         compareHandler{num: func(a, b float64) bool { return a > b }, ver: func(a, b *semver.Version) bool { return a.GreaterThan(b) }},
	workspace.OpGTE:        compareHandler{num: func(a, b float64) bool { return a >= b }, ver: func(a, b *semver.Version) bool { return !a.LessThan(b) }},
	workspace.OpLT:         compareHandler{num: func(a, b float64) bool { return a < b }, ver: func(a, b *semver.Version) bool { return a.LessThan(b) }},
	workspace.OpLTE:        compareHandler{num: func(a, b float64) bool { return a <= b }, ver: func(a, b *semver.Version) bool { return !a.GreaterThan(b) }},
}

type inHandler struct{}

func (inHandler) stringMatch(u, m string) bool           { return u == m }
func (inHandler) numberMatch(u, m float64) bool          { return u == m }
func (inHandler) boolMatch(u, m bool) bool               { return u == m }
func (inHandler) versionMatch(u, m *semver.Version) bool { return u.Equal(m) }

type containsHandler struct{}

func (containsHandler) stringMatch(u, m string) bool           { return strings.Contains(u, m) }
func (containsHandler) numberMatch(float64, float64) bool      { return false }
func (containsHandler) boolMatch(bool, bool) bool              { return false }
func (containsHandler) versionMatch(u, m *semver.Version) bool { return false }

type startsWithHandler struct{}

func (startsWithHandler) stringMatch(u, m string) bool           { return strings.HasPrefix(u, m) }
func (startsWithHandler) numberMatch(float64, float64) bool      { return false }
func (startsWithHandler) boolMatch(bool, bool) bool              { return false }
func (startsWithHandler) versionMatch(u, m *semver.Version) bool { return false }

type endsWithHandler struct{}

func (endsWithHandler) stringMatch(u, m string) bool           { return strings.HasSuffix(u, m) }
func (endsWithHandler) numberMatch(float64, float64) bool      { return false }
func (endsWithHandler) boolMatch(bool, bool) bool              { return false }
func (endsWithHandler) versionMatch(u, m *semver.Version) bool { return false }

// compareHandler covers the ordering operators, valid for numbers and
// versions only.
type compareHandler struct {
	num func(a, b float64) bool
	ver func(a, b *semver.Version) bool
}

func (compareHandler) stringMatch(string, string) bool { return false }

func (h compareHandler) numberMatch(u, m float64) bool { return h.num(u, m) }

func (compareHandler) boolMatch(bool, bool) bool { return false }

func (h compareHandler) versionMatch(u, m *semver.Version) bool { return h.ver(u, m) }

// ValueMatches applies one operator to a resolved user value and a single
// match value under the declared value type. Unknown operators fail closed.
func ValueMatches(op workspace.Operator, valueType workspace.ValueType, userValue, matchValue any) bool {
	handler, ok := operatorHandlers[op]
	if !ok {
		return false
	}

	switch valueType {
	case workspace.ValueTypeString:
		u, uok := asString(userValue)
		m, mok := asString(matchValue)
		return uok && mok && handler.stringMatch(u, m)
	case workspace.ValueTypeNumber:
		u, uok := asNumber(userValue)
		m, mok := asNumber(matchValue)
		return uok && mok && handler.numberMatch(u, m)
	case workspace.ValueTypeBool:
		u, uok := asBool(userValue)
		m, mok := asBool(matchValue)
		return uok && mok && handler.boolMatch(u, m)
	case workspace.ValueTypeVersion:
		u, uok := asVersion(userValue)
		m, mok := asVersion(matchValue)
		return uok && mok && handler.versionMatch(u, m)
	default:
		return false
	}
}

// Matches evaluates a full Match clause: the operator is applied against each
// match value (OR), then the match type is applied to the combined result.
func Matches(m workspace.Match, userValue any) bool {
	matched := false
	for _, value := range m.Values {
		if ValueMatches(m.Operator, m.ValueType, userValue, value) {
			matched = true
			break
		}
	}
	switch m.Type {
	case workspace.MatchTypeNotMatch:
		return !matched
	default:
		return matched
	}
}
