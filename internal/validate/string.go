package validate

import (
	"fmt"
	"strings"
	"unicode"
)

// StringRule checks the length and content of a string field. Names and
// usernames end up in launch artifacts, one option per line, so Printable
// should be set for any value copied into them.
type StringRule struct {
	Value string
	// Name of the field in json.
	Name string

	// MinLength and MaxLength bound the length of the string in bytes.
	MinLength int
	MaxLength int

	// Printable rejects control characters, including line breaks.
	Printable bool
}

func (s StringRule) Validate() *Failure {
	value := s.Value
	if value == "" {
		return nil
	}

	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	if s.MinLength > 0 && len(value) < s.MinLength {
		add("length of string is %d, must be at least %d", len(value), s.MinLength)
	}
	if s.MaxLength > 0 && len(value) > s.MaxLength {
		add("length of string is %d, must be no more than %d", len(value), s.MaxLength)
	}

	if s.Printable {
		if i := strings.IndexFunc(value, unicode.IsControl); i >= 0 {
			add("control character at position %v is not allowed", i)
		}
	}

	if len(problems) > 0 {
		return fail(s.Name, problems...)
	}
	return nil
}

// Enum returns a validation rule that checks that value is one of the allowed
// strings.
func Enum(name string, value string, allowed []string) ValidationRule {
	return enum{Name: name, Value: value, Allowed: allowed}
}

type enum struct {
	Name    string
	Value   string
	Allowed []string
}

func (e enum) Validate() *Failure {
	if e.Value == "" {
		return nil
	}
	for _, ok := range e.Allowed {
		if e.Value == ok {
			return nil
		}
	}
	return fail(e.Name, fmt.Sprintf("must be one of (%v)", strings.Join(e.Allowed, ", ")))
}

// Distinct returns a validation rule that checks every value is set, and
// that no value is listed twice.
func Distinct(name string, values []string) ValidationRule {
	return distinct{Name: name, Values: values}
}

type distinct struct {
	Name   string
	Values []string
}

func (d distinct) Validate() *Failure {
	seen := make(map[string]struct{}, len(d.Values))
	for i, v := range d.Values {
		if v == "" {
			return fail(d.Name, fmt.Sprintf("value at position %v is empty", i))
		}
		if _, ok := seen[v]; ok {
			return fail(d.Name, fmt.Sprintf("%q is listed more than once", v))
		}
		seen[v] = struct{}{}
	}
	return nil
}
