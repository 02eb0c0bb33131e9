package dispatch

import (
	"regexp"
	"strconv"

	"github.com/sglre6355/slashkit/definitions"
)

// TypeAdapter converts a raw platform value into a typed parameter value. The
// boolean is false when the raw value could not be parsed; that is a user
// error, not a failure.
type TypeAdapter func(raw string, ev any) (any, bool)

// TypeAdapterRegistry resolves adapters by target parameter type.
type TypeAdapterRegistry interface {
	Lookup(targetType string) (TypeAdapter, bool)
}

// AdapterMap is a map-backed TypeAdapterRegistry.
type AdapterMap map[string]TypeAdapter

// Lookup returns the adapter registered for the given type.
func (m AdapterMap) Lookup(targetType string) (TypeAdapter, bool) {
	a, ok := m[targetType]
	return a, ok
}

// Has reports whether an adapter is registered for the given type. It
// satisfies the registry's index-time adapter check.
func (m AdapterMap) Has(targetType string) bool {
	_, ok := m[targetType]
	return ok
}

// DefaultAdapters returns adapters for the primitive parameter types.
func DefaultAdapters() AdapterMap {
	return AdapterMap{
		"string": func(raw string, _ any) (any, bool) {
			return raw, true
		},
		"int": func(raw string, _ any) (any, bool) {
			v, err := strconv.ParseInt(raw, 10, 64)
			return v, err == nil
		},
		"float64": func(raw string, _ any) (any, bool) {
			v, err := strconv.ParseFloat(raw, 64)
			return v, err == nil
		},
		"bool": func(raw string, _ any) (any, bool) {
			v, err := strconv.ParseBool(raw)
			return v, err == nil
		},
	}
}

// ValidatorFunc tests an adapted value against one constraint annotation. On
// failure it returns false and a user-facing message.
type ValidatorFunc func(value any, c definitions.Constraint) (bool, string)

// ValidatorRegistry resolves validators by constraint kind and parameter
// type.
type ValidatorRegistry interface {
	Lookup(constraintKind, paramType string) (ValidatorFunc, bool)
}

// ValidatorMap is a map-backed ValidatorRegistry. Keys are either
// "kind:type" for type-specific validators or just "kind".
type ValidatorMap map[string]ValidatorFunc

// Lookup tries the type-specific validator first, then the generic one.
func (m ValidatorMap) Lookup(constraintKind, paramType string) (ValidatorFunc, bool) {
	if v, ok := m[constraintKind+":"+paramType]; ok {
		return v, true
	}
	v, ok := m[constraintKind]
	return v, ok
}

// DefaultValidators returns validators for the built-in constraint kinds.
func DefaultValidators() ValidatorMap {
	return ValidatorMap{
		"min:int": func(value any, c definitions.Constraint) (bool, string) {
			v, _ := value.(int64)
			min, _ := toInt64(c.Value)
			if v < min {
				return false, "value is below the minimum of " + strconv.FormatInt(min, 10)
			}
			return true, ""
		},
		"max:int": func(value any, c definitions.Constraint) (bool, string) {
			v, _ := value.(int64)
			max, _ := toInt64(c.Value)
			if v > max {
				return false, "value is above the maximum of " + strconv.FormatInt(max, 10)
			}
			return true, ""
		},
		"min-length": func(value any, c definitions.Constraint) (bool, string) {
			s, _ := value.(string)
			min, _ := toInt64(c.Value)
			if int64(len(s)) < min {
				return false, "input is shorter than " + strconv.FormatInt(min, 10) + " characters"
			}
			return true, ""
		},
		"max-length": func(value any, c definitions.Constraint) (bool, string) {
			s, _ := value.(string)
			max, _ := toInt64(c.Value)
			if int64(len(s)) > max {
				return false, "input is longer than " + strconv.FormatInt(max, 10) + " characters"
			}
			return true, ""
		},
		"pattern": func(value any, c definitions.Constraint) (bool, string) {
			s, _ := value.(string)
			pattern, _ := c.Value.(string)
			re, err := regexp.Compile(pattern)
			if err != nil || !re.MatchString(s) {
				return false, "input does not match the required format"
			}
			return true, ""
		},
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
