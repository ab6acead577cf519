// Package validate checks API request structs before they reach the broker.
// Request types implement Request by listing their ValidationRules.
package validate

import (
	"reflect"
	"sort"
	"strings"
)

// Validate that the values in the Request struct are valid according to the
// validation rules defined on the struct.
// If validation fails the error will be of type Error.
//
// Validate automatically traverses the fields on the struct. If any of the
// fields are of a type that implement Request, the validation rules of that
// field will be used as well.
func Validate(req Request) error {
	reqV := reflect.Indirect(reflect.ValueOf(req))
	err := validateStruct(reqV)
	if len(err) > 0 {
		return err
	}
	return nil
}

func validateStruct(v reflect.Value) Error {
	err := make(Error)

	if !v.IsValid() || !v.CanInterface() {
		return err
	}

	req, ok := v.Interface().(Request)
	if ok && (v.Kind() != reflect.Pointer || !v.IsNil()) {
		for _, rule := range req.ValidationRules() {
			if failure := rule.Validate(); failure != nil {
				err[failure.Name] = append(err[failure.Name], failure.Problems...)
			}
		}
	}

	switch v.Kind() { // nolint:exhaustive
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			f := v.Field(i)
			if !v.Type().Field(i).IsExported() {
				continue
			}
			if v.Type().Field(i).Anonymous {
				for k, v := range validateStruct(f) {
					err[k] = append(err[k], v...)
				}
				continue
			}
			name := fieldName(v.Type().Field(i))
			for k, v := range validateStruct(f) {
				n := name
				if k != "" {
					n = name + "." + k
				}
				err[n] = append(err[n], v...)
			}
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			for k, v := range validateStruct(v.Index(i)) {
				err[k] = append(err[k], v...)
			}
		}
	}
	return err
}

// ValidationRule performs validation on one or more struct fields.
//
// Rules are optional by default and do nothing for a zero value. Use Required
// to make a field required.
type ValidationRule interface {
	// Validate should return nil if the validation passes. If the validation
	// fails the Failure should contain the name of the field and the list of
	// problems.
	Validate() *Failure
}

// Failure describes a validation failures.
type Failure struct {
	// Name of the field as it appears in the API (json field or query
	// parameter), not the name of the struct field.
	Name string
	// Problems is a list of messages that describe the validation failure. They
	// will be part of the API response.
	Problems []string
}

// Request is implemented by all request structs.
type Request interface {
	ValidationRules() []ValidationRule
}

// Error is a map of field names to errors associated with those fields. Errors
// that are associated with the struct or multiple fields will have a key of
// "".
type Error map[string][]string

// Error lists the fields in sorted order, so the message is stable.
func (e Error) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf strings.Builder
	buf.WriteString("validation failed: ")
	for i, k := range keys {
		if i != 0 {
			buf.WriteString(", ")
		}
		if k == "" {
			buf.WriteString(strings.Join(e[k], ", "))
			continue
		}
		buf.WriteString(k + ": " + strings.Join(e[k], ", "))
	}
	return buf.String()
}

func fail(name string, problems ...string) *Failure {
	return &Failure{Name: name, Problems: problems}
}

type requiredRule struct {
	name  string
	value any
}

// Required checks that the value does not have a zero value.
// Zero values are nil, "", 0, false, empty map, empty slice, or the zero value of
// a struct.
func Required(name string, value any) ValidationRule {
	return requiredRule{name: name, value: value}
}

func (r requiredRule) Validate() *Failure {
	if !reflect.ValueOf(r.value).IsZero() {
		return nil
	}
	return fail(r.name, "is required")
}

func fieldName(f reflect.StructField) string {
	if name, ok := f.Tag.Lookup("form"); ok {
		return name
	}

	if name, ok := f.Tag.Lookup("uri"); ok {
		return name
	}

	// lookup json tag last, as a field may have a uri or form name, but a
	// json name of "-".
	if name, ok := f.Tag.Lookup("json"); ok {
		name = strings.Split(name, ",")[0]
		if name == "-" {
			return ""
		}
		return name
	}

	if f.Name == "" {
		return ""
	}

	return strings.ToLower(f.Name[:1]) + f.Name[1:]
}
